package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/paysite/internal/payment/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidateRequest checks the request that will be sent to the provider.
func ValidateRequest(req domain.PaymentRequest) error {
	if len(req.Cart) == 0 {
		return fmt.Errorf("%w: cart is empty", domain.ErrMalformedRequest)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrMalformedRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}
	first := validationErrs[0]
	path := first.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	switch first.Tag() {
	case "required":
		return path + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", path, first.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", path, first.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", path, first.Tag())
	}
}
