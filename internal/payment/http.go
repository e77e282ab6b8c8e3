package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
)

const (
	initialInterval = 200 * time.Millisecond
	maxInterval     = 2 * time.Second
	randomization   = 0.5
	multiplier      = 2.0
	maxBodyBytes    = 1 << 20
)

// ErrGateway wraps failures talking to the provider.
var ErrGateway = errors.New("payment gateway")

type chargeBody struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
	Token     string `json:"token"`
}

type chargeReply struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

// HTTPGateway posts charges as JSON to a provider endpoint.
type HTTPGateway struct {
	client   *http.Client
	endpoint string
	apiKey   string
	provider string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHTTPGateway builds a gateway for the configured endpoint.
func NewHTTPGateway(cfg config.Payment, logger *zap.Logger) *HTTPGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGateway{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

func (g *HTTPGateway) Provider() string { return g.provider }

// Charge submits req, retrying throttled and server-side failures until the
// configured timeout elapses. The reference doubles as the idempotency key.
func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	payload, err := json.Marshal(chargeBody{
		Amount:    req.Amount.StringFixed(2),
		Currency:  req.Currency,
		Reference: req.Reference,
		Token:     req.Token,
	})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("%w: encode charge: %v", ErrGateway, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = g.timeout
	b.RandomizationFactor = randomization
	b.Multiplier = multiplier

	var (
		result  ChargeResult
		attempt int
		start   = time.Now()
	)
	err = backoff.RetryNotify(func() error {
		attempt++
		var err error
		result, err = g.post(ctx, req.Reference, payload)
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		g.logger.Warn("payment charge retry", zap.String("reference", req.Reference), zap.Error(err), zap.Duration("retry_in", wait))
	})

	outcome := "approved"
	switch {
	case err != nil:
		outcome = "error"
	case !result.Success:
		outcome = "declined"
	}
	GatewayRequestDuration.WithLabelValues(g.provider, outcome).Observe(time.Since(start).Seconds())
	if attempt > 1 {
		GatewayRetriesTotal.WithLabelValues(g.provider, outcome).Inc()
	}

	if err != nil {
		return ChargeResult{}, fmt.Errorf("%w: charge %s: %w", ErrGateway, req.Reference, err)
	}
	return result, nil
}

func (g *HTTPGateway) post(ctx context.Context, reference string, payload []byte) (ChargeResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return ChargeResult{}, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", reference)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ChargeResult{}, backoff.Permanent(ctx.Err())
		}
		return ChargeResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ChargeResult{}, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return ChargeResult{}, fmt.Errorf("provider returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusPaymentRequired, resp.StatusCode < http.StatusMultipleChoices:
		var reply chargeReply
		if err := json.Unmarshal(body, &reply); err != nil {
			return ChargeResult{}, backoff.Permanent(fmt.Errorf("decode reply: %w", err))
		}
		return ChargeResult{
			Success:       reply.Success && resp.StatusCode < http.StatusMultipleChoices,
			TransactionID: reply.TransactionID,
			Message:       reply.Message,
		}, nil
	default:
		return ChargeResult{}, backoff.Permanent(fmt.Errorf("provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}
}
