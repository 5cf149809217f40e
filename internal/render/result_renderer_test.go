package render

import (
	"testing"

	"github.com/smallbiznis/paysite/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResultPageStatuses(t *testing.T) {
	cases := []struct {
		status string
		want   string
		icon   string
	}{
		{domain.PaymentStatusPaid, StatusSuccess, "✓"},
		{domain.PaymentStatusUnpaid, StatusCancel, "!"},
		{"no_payment_required", StatusUnknown, "?"},
	}
	for _, tc := range cases {
		page := NewResultPage(domain.Session{PaymentStatus: tc.status}, "Shop", "https://shop.example")
		assert.Equal(t, tc.want, page.Status, tc.status)
		assert.Equal(t, tc.icon, page.Icon, tc.status)
	}
}

func TestRenderSuccessShowsBackLinkAndAmount(t *testing.T) {
	r := NewResultRenderer()
	page := NewResultPage(domain.Session{PaymentStatus: "paid", AmountTotal: 2990000}, "Apartman <Szallo>", "https://shop.example/")

	html, err := r.RenderHTML(page)
	require.NoError(t, err)
	assert.Contains(t, html, "Összeg: 29900 Ft")
	assert.Contains(t, html, `href="https://shop.example/"`)
	assert.Contains(t, html, "A fizetés sikeres!")
	assert.Contains(t, html, "Apartman &lt;Szallo&gt;")
	assert.NotContains(t, html, "history.back()")
}

func TestRenderCancelShowsRetryLink(t *testing.T) {
	r := NewResultRenderer()
	html, err := r.RenderHTML(NewResultPage(domain.Session{PaymentStatus: "unpaid"}, "Shop", ""))
	require.NoError(t, err)
	assert.Contains(t, html, "history.back()")
	assert.Contains(t, html, "megszakítva")
	assert.NotContains(t, html, "Összeg")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "", formatAmount(0))
	assert.Equal(t, "12.5", formatAmount(1250))
	assert.Equal(t, "100", formatAmount(10000))
}
