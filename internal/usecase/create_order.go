package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/aq2208/payment-relay/internal/entity"
	"github.com/google/uuid"
)

var ErrInvalidOrder = domain.ErrInvalidOrder

type CreateOrderInput struct {
	Amount   int64
	Currency string
}

type CreateOrderOutput struct {
	Receipt string
	Order   json.RawMessage
}

type CreateOrder struct {
	gw  OrderGateway
	now func() time.Time
}

func NewCreateOrder(gw OrderGateway) *CreateOrder {
	return &CreateOrder{gw: gw, now: time.Now}
}

// NewReceiptLabel returns receipt_order_<unix millis>_<8 hex>. The suffix keeps
// concurrent requests in the same millisecond apart; the label stays within
// the gateway's 40 character receipt limit.
func NewReceiptLabel(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("receipt_order_%d_%s", now.UnixMilli(), suffix)
}

func (uc *CreateOrder) Execute(ctx context.Context, in CreateOrderInput) (CreateOrderOutput, error) {
	req := domain.NewOrderRequest(in.Amount, in.Currency)
	if err := req.Validate(); err != nil {
		return CreateOrderOutput{}, err
	}

	receipt := NewReceiptLabel(uc.now())
	order, err := uc.gw.CreateOrder(ctx, GatewayOrder{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  receipt,
	})
	if err != nil {
		return CreateOrderOutput{}, fmt.Errorf("create gateway order %s: %w", receipt, err)
	}
	return CreateOrderOutput{Receipt: receipt, Order: order}, nil
}
