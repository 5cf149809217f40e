package checkout

import (
	"strings"

	"github.com/smallbiznis/paysite/internal/payment/domain"
)

const DefaultCurrency = "huf"

// LineItems converts cart entries into provider line items. Prices are whole
// currency units and become minor units by multiplying with 100.
func LineItems(cart []domain.CartItem, currency string) []domain.LineItem {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	items := make([]domain.LineItem, 0, len(cart))
	for _, item := range cart {
		metadata := item.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		items = append(items, domain.LineItem{
			PriceData: domain.PriceData{
				Currency:   currency,
				UnitAmount: item.Price * 100,
				ProductData: domain.ProductData{
					Name:     item.Name,
					Metadata: metadata,
				},
			},
			Quantity: item.Qty,
		})
	}
	return items
}
