package usecase

import (
	"context"

	domain "github.com/aq2208/payment-relay/internal/entity"
	"github.com/aq2208/payment-relay/internal/logging"
)

type VerifyPaymentInput struct {
	OrderID, PaymentID, Signature string
}

type VerifyPayment struct {
	verifier SignatureVerifier
}

func NewVerifyPayment(v SignatureVerifier) *VerifyPayment {
	return &VerifyPayment{verifier: v}
}

// Execute reports whether the signature authenticates the order/payment pair.
// A mismatch is a normal outcome, not an error.
func (uc *VerifyPayment) Execute(ctx context.Context, in VerifyPaymentInput) bool {
	pc := domain.PaymentConfirmation{
		OrderID:   in.OrderID,
		PaymentID: in.PaymentID,
		Signature: in.Signature,
	}
	l := logging.FromCtx(ctx).With("order_id", pc.OrderID, "payment_id", pc.PaymentID)
	if !pc.Complete() {
		l.Info("payment verification failed: incomplete confirmation")
		return false
	}
	if !uc.verifier.Verify(pc.OrderID, pc.PaymentID, pc.Signature) {
		l.Info("payment verification failed: signature mismatch")
		return false
	}
	l.Info("payment verified")
	return true
}
