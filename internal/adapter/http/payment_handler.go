package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aq2208/payment-relay/internal/adapter/http/middleware"
	"github.com/aq2208/payment-relay/internal/logging"
	"github.com/aq2208/payment-relay/internal/usecase"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	create *usecase.CreateOrder
	verify *usecase.VerifyPayment
}

func NewPaymentHandler(create *usecase.CreateOrder, verify *usecase.VerifyPayment) *PaymentHandler {
	return &PaymentHandler{create: create, verify: verify}
}

type createOrderReq struct {
	Amount   *int64 `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

type verifyPaymentReq struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

type verifyPaymentResp struct {
	Status string `json:"status"`
}

const (
	msgCreateFailed  = "Error creating order"
	msgMalformedBody = "Malformed JSON body"
)

// malformedJSON reports a body that is not JSON at all. Well-formed JSON
// with missing or mistyped fields is not malformed.
func malformedJSON(err error) bool {
	var syntaxErr *json.SyntaxError
	return errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// CreateOrder relays {amount, currency} to the gateway and answers with the
// gateway's order object unchanged.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	l := logging.From(c)

	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			l.Warn("create order: body too large")
			c.String(http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
		case malformedJSON(err):
			l.Warn("create order: malformed body", "error", err)
			c.String(http.StatusBadRequest, msgMalformedBody)
		default:
			// the gateway would reject this order; answer as it would without calling it
			l.Warn("create order: invalid request", "error", err)
			c.String(http.StatusInternalServerError, msgCreateFailed)
		}
		return
	}

	out, err := h.create.Execute(c.Request.Context(), usecase.CreateOrderInput{
		Amount:   *req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidOrder) {
			l.Warn("create order: rejected locally", "error", err)
			c.String(http.StatusInternalServerError, msgCreateFailed)
			return
		}
		l.Error("create order: gateway call failed", "error", err)
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, msgCreateFailed)
		return
	}

	var ref struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(out.Order, &ref)
	l.Info("order created", "order_id", ref.ID, "receipt", out.Receipt)

	c.Data(http.StatusOK, "application/json; charset=utf-8", out.Order)
}

// VerifyPayment checks the checkout signature. Any malformed body counts as failed.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		logging.From(c).Info("verify payment: bad request", "error", err)
		middleware.ObserveVerification(false)
		c.JSON(http.StatusBadRequest, verifyPaymentResp{Status: "failed"})
		return
	}

	ok := h.verify.Execute(c.Request.Context(), usecase.VerifyPaymentInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	middleware.ObserveVerification(ok)
	if !ok {
		c.JSON(http.StatusBadRequest, verifyPaymentResp{Status: "failed"})
		return
	}
	c.JSON(http.StatusOK, verifyPaymentResp{Status: "success"})
}
