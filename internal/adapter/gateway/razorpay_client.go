package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/payment-relay/internal/security"
	"github.com/aq2208/payment-relay/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected request")
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: status %d", e.StatusCode)
	}
	return fmt.Sprintf("razorpay: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

func (e *APIError) Unwrap() error { return ErrGatewayRejected }

const maxResponseBytes = 1 << 20

var (
	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Calls to the payment gateway by outcome",
		},
		[]string{"operation", "outcome"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_ms",
			Help:    "Duration of payment gateway calls in ms",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
		},
		[]string{"operation"},
	)
)

// RazorpayClient implements usecase.OrderGateway over the Razorpay REST API.
// Build one at startup; it is read-only afterwards and shared by all requests.
type RazorpayClient struct {
	http    *http.Client
	baseURL string
	keys    security.KeyMaterial
	timeout time.Duration
	ua      string
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client // optional
}

func NewRazorpayClient(keys security.KeyMaterial, opts Options) *RazorpayClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &RazorpayClient{
		http:    hc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		keys:    keys,
		timeout: opts.Timeout,
		ua:      opts.UserAgent,
	}
}

type orderPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, o usecase.GatewayOrder) (json.RawMessage, error) {
	const op = "orders.create"

	// ensure per-call timeout if caller didn't set one
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(orderPayload{Amount: o.Amount, Currency: o.Currency, Receipt: o.Receipt})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.keys.KeyID, c.keys.Secret.Reveal())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	start := time.Now()
	defer func() {
		gatewayDuration.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		gatewayRequests.WithLabelValues(op, "unavailable").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		gatewayRequests.WithLabelValues(op, "unavailable").Inc()
		return nil, fmt.Errorf("%w: read body: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gatewayRequests.WithLabelValues(op, "rejected").Inc()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Description = env.Error.Description
		}
		return nil, apiErr
	}
	if !json.Valid(raw) {
		gatewayRequests.WithLabelValues(op, "rejected").Inc()
		return nil, fmt.Errorf("%w: response is not JSON", ErrGatewayRejected)
	}

	gatewayRequests.WithLabelValues(op, "ok").Inc()
	return json.RawMessage(raw), nil
}

var _ usecase.OrderGateway = (*RazorpayClient)(nil)
