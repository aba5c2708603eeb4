package usecase

import (
	"context"
	"encoding/json"
	"time"
)

// GatewayOrder is the body sent to the gateway's order API.
type GatewayOrder struct {
	Amount   int64
	Currency string
	Receipt  string
}

// OrderGateway opens orders on the payment gateway. The returned body is
// the gateway's order object exactly as received.
type OrderGateway interface {
	CreateOrder(ctx context.Context, o GatewayOrder) (json.RawMessage, error)
}

type SignatureVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// RateLimiter admits or rejects one request for key within window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
