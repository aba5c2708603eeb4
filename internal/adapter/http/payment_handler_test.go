package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/payment-relay/internal/adapter/gateway"
	"github.com/aq2208/payment-relay/internal/security"
	"github.com/aq2208/payment-relay/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockGateway struct {
	mu    sync.Mutex
	body  json.RawMessage
	err   error
	calls []usecase.GatewayOrder
}

func (m *mockGateway) CreateOrder(ctx context.Context, o usecase.GatewayOrder) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, o)
	return m.body, m.err
}

type recordingLimiter struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return true, nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

const testSecret = "testsecret"

func newTestRouter(t *testing.T, gw usecase.OrderGateway, opts RouterOptions) (*gin.Engine, *security.HMACVerifier) {
	t.Helper()
	v, err := security.NewHMACVerifier(security.KeyMaterial{KeyID: "rzp_test", Secret: testSecret})
	require.NoError(t, err)
	h := NewPaymentHandler(usecase.NewCreateOrder(gw), usecase.NewVerifyPayment(v))
	return NewRouter(h, opts), v
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrder_RelaysGatewayResponseVerbatim(t *testing.T) {
	gatewayBody := `{"id":"order_ABC","entity":"order","amount":50000,"amount_paid":0,"currency":"INR","receipt":"x","status":"created","attempts":0,"notes":[],"created_at":1700000000}`
	gw := &mockGateway{body: json.RawMessage(gatewayBody)}
	r, _ := newTestRouter(t, gw, RouterOptions{})

	w := doJSON(r, http.MethodPost, "/create-order", `{"amount":50000,"currency":"INR"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gatewayBody, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	require.Len(t, gw.calls, 1)
	assert.Equal(t, int64(50000), gw.calls[0].Amount)
	assert.Equal(t, "INR", gw.calls[0].Currency)
	assert.Regexp(t, `^receipt_order_\d+_[0-9a-f]{8}$`, gw.calls[0].Receipt)
}

func TestCreateOrder_GatewayFailuresAre500(t *testing.T) {
	for _, gwErr := range []error{
		gateway.ErrGatewayUnavailable,
		&gateway.APIError{StatusCode: 401, Code: "BAD_REQUEST_ERROR", Description: "Authentication failed"},
		errors.New("anything else"),
	} {
		r, _ := newTestRouter(t, &mockGateway{err: gwErr}, RouterOptions{})
		w := doJSON(r, http.MethodPost, "/create-order", `{"amount":100,"currency":"INR"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Error creating order", w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
		assert.NotContains(t, w.Body.String(), testSecret)
	}
}

func TestCreateOrder_InvalidOrderIsServerErrorWithoutGatewayCall(t *testing.T) {
	bodies := []string{
		``,
		`{}`,
		`{"currency":"INR"}`,
		`{"amount":100}`,
		`{"amount":"100","currency":"INR"}`,
		`{"amount":12.5,"currency":"INR"}`,
		`{"amount":0,"currency":"INR"}`,
		`{"amount":-5,"currency":"INR"}`,
		`{"amount":100,"currency":"NOPE"}`,
	}
	for _, body := range bodies {
		gw := &mockGateway{body: json.RawMessage(`{}`)}
		r, _ := newTestRouter(t, gw, RouterOptions{})

		w := doJSON(r, http.MethodPost, "/create-order", body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, "body %q", body)
		assert.Equal(t, "Error creating order", w.Body.String())
		assert.Empty(t, gw.calls, "body %q must not reach the gateway", body)
	}
}

func TestCreateOrder_UnparsableJSONIsBadRequest(t *testing.T) {
	for _, body := range []string{`not json`, `{"amount":`, `{"amount":100,}`} {
		gw := &mockGateway{body: json.RawMessage(`{}`)}
		r, _ := newTestRouter(t, gw, RouterOptions{})

		w := doJSON(r, http.MethodPost, "/create-order", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.Equal(t, "Malformed JSON body", w.Body.String())
		assert.Empty(t, gw.calls)
	}
}

func TestCreateOrder_OversizedBodyAnyContentType(t *testing.T) {
	gw := &mockGateway{body: json.RawMessage(`{}`)}
	r, _ := newTestRouter(t, gw, RouterOptions{})

	big := `{"amount":100,"currency":"INR","pad":"` + strings.Repeat("x", 2<<20) + `"}`
	for _, ct := range []string{"text/plain", ""} {
		// declared length
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/create-order", strings.NewReader(big))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, "content type %q", ct)

		// chunked, caught while the handler decodes
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, "/create-order", io.MultiReader(strings.NewReader(big)))
		req.ContentLength = -1
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, "content type %q", ct)
	}
	assert.Empty(t, gw.calls)
}

func TestVerifyPayment_ValidSignature(t *testing.T) {
	r, v := newTestRouter(t, &mockGateway{}, RouterOptions{})
	sig := v.Sign("order_ABC", "pay_XYZ")

	w := doJSON(r, http.MethodPost, "/verify-payment",
		`{"razorpay_order_id":"order_ABC","razorpay_payment_id":"pay_XYZ","razorpay_signature":"`+sig+`"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success"}`, w.Body.String())
}

func TestVerifyPayment_MutatedSignatureFails(t *testing.T) {
	r, v := newTestRouter(t, &mockGateway{}, RouterOptions{})
	sig := []byte(v.Sign("order_ABC", "pay_XYZ"))
	if sig[0] == '0' {
		sig[0] = '1'
	} else {
		sig[0] = '0'
	}

	w := doJSON(r, http.MethodPost, "/verify-payment",
		`{"razorpay_order_id":"order_ABC","razorpay_payment_id":"pay_XYZ","razorpay_signature":"`+string(sig)+`"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"status":"failed"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), v.Sign("order_ABC", "pay_XYZ"))
}

func TestVerifyPayment_MalformedBodiesFail(t *testing.T) {
	r, _ := newTestRouter(t, &mockGateway{}, RouterOptions{})
	for _, body := range []string{
		``,
		`[]`,
		`{"razorpay_order_id":"order_ABC","razorpay_payment_id":"pay_XYZ"}`,
		`{"razorpay_order_id":1,"razorpay_payment_id":"pay_XYZ","razorpay_signature":"x"}`,
	} {
		w := doJSON(r, http.MethodPost, "/verify-payment", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.JSONEq(t, `{"status":"failed"}`, w.Body.String())
	}
}

func TestVerifyPayment_Deterministic(t *testing.T) {
	r, v := newTestRouter(t, &mockGateway{}, RouterOptions{})
	body := `{"razorpay_order_id":"order_D","razorpay_payment_id":"pay_D","razorpay_signature":"` + v.Sign("order_D", "pay_D") + `"}`
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/verify-payment", body).Code)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, &mockGateway{}, RouterOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	_ = doJSON(r, http.MethodPost, "/verify-payment", `{}`)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payment_verifications_total")
}

func TestRouter_CORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, &mockGateway{}, RouterOptions{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/create-order", nil)
	req.Header.Set("Origin", "https://storefront.example")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimitAppliesToPaymentRoutesOnly(t *testing.T) {
	r, _ := newTestRouter(t, &mockGateway{body: json.RawMessage(`{}`)}, RouterOptions{Limiter: denyAll{}, PerMinute: 1})

	assert.Equal(t, http.StatusTooManyRequests, doJSON(r, http.MethodPost, "/create-order", `{"amount":1,"currency":"INR"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(r, http.MethodPost, "/verify-payment", `{}`).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func postFrom(r http.Handler, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/verify-payment", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_RateLimitKeyIgnoresSpoofedForwardedFor(t *testing.T) {
	l := &recordingLimiter{}
	r, _ := newTestRouter(t, &mockGateway{}, RouterOptions{Limiter: l, PerMinute: 1})

	postFrom(r, "203.0.113.7:5555", "1.1.1.1")
	postFrom(r, "203.0.113.7:5556", "2.2.2.2")

	require.Len(t, l.keys, 2)
	assert.Equal(t, "203.0.113.7:/verify-payment", l.keys[0])
	assert.Equal(t, l.keys[0], l.keys[1])
}

func TestRouter_RateLimitKeyHonoursTrustedProxy(t *testing.T) {
	l := &recordingLimiter{}
	r, _ := newTestRouter(t, &mockGateway{}, RouterOptions{
		Limiter:        l,
		PerMinute:      1,
		TrustedProxies: []string{"10.0.0.0/8"},
	})

	postFrom(r, "10.1.2.3:443", "198.51.100.9")
	postFrom(r, "203.0.113.7:5555", "198.51.100.9")

	require.Len(t, l.keys, 2)
	assert.Equal(t, "198.51.100.9:/verify-payment", l.keys[0])
	assert.Equal(t, "203.0.113.7:/verify-payment", l.keys[1])
}
