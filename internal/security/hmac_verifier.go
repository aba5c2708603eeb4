package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACVerifier checks the signature Razorpay attaches to a completed
// checkout: hex(HMAC-SHA256(key_secret, order_id + "|" + payment_id)).
// It holds no mutable state and is safe for concurrent use.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(km KeyMaterial) (*HMACVerifier, error) {
	if km.Secret == "" {
		return nil, ErrNoKeyMaterial
	}
	return &HMACVerifier{secret: []byte(km.Secret.Reveal())}, nil
}

// PaymentMessage is the signed payload. Field order matters.
func PaymentMessage(orderID, paymentID string) string {
	return orderID + "|" + paymentID
}

// Sign returns the lowercase hex digest for the pair.
func (v *HMACVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(PaymentMessage(orderID, paymentID)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. The comparison is on the hex text, so
// an upper-case signature does not match.
func (v *HMACVerifier) Verify(orderID, paymentID, signature string) bool {
	expected := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
