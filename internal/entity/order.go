package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidOrder = errors.New("invalid order request")

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// OrderRequest is what the storefront asks the gateway to open.
// Amount is in the smallest currency unit (paise for INR).
type OrderRequest struct {
	Amount   int64  `validate:"gt=0"`
	Currency string `validate:"required,iso4217"`
}

// NewOrderRequest normalises the currency code (trimmed, upper case).
func NewOrderRequest(amount int64, currency string) OrderRequest {
	return OrderRequest{
		Amount:   amount,
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
	}
}

func (o OrderRequest) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidOrder, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	return nil
}

// PaymentConfirmation is the triple the checkout widget hands back after a payment attempt.
type PaymentConfirmation struct {
	OrderID   string
	PaymentID string
	Signature string // hex HMAC-SHA256 of OrderID|PaymentID
}

func (p PaymentConfirmation) Complete() bool {
	return p.OrderID != "" && p.PaymentID != "" && p.Signature != ""
}
