package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/payment"
)

func chargeRequest(token string) payment.ChargeRequest {
	return payment.ChargeRequest{
		Amount:    decimal.RequireFromString("16.00"),
		Currency:  "GBP",
		Reference: "ST-001",
		Token:     token,
	}
}

func TestSandbox_Charge(t *testing.T) {
	t.Parallel()

	gw := payment.NewSandbox()

	ok, err := gw.Charge(t.Context(), chargeRequest("tok_visa"))
	require.NoError(t, err)
	assert.True(t, ok.Success)
	assert.NotEmpty(t, ok.TransactionID)

	declined, err := gw.Charge(t.Context(), chargeRequest(payment.DeclineToken))
	require.NoError(t, err)
	assert.False(t, declined.Success)
	assert.Empty(t, declined.TransactionID)

	zero := chargeRequest("tok_visa")
	zero.Amount = decimal.Zero
	res, err := gw.Charge(t.Context(), zero)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestNewGateway_SelectsDriver(t *testing.T) {
	t.Parallel()

	gw, err := payment.NewGateway(config.Config{Payment: config.Payment{Driver: "sandbox"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sandbox", gw.Provider())

	gw, err = payment.NewGateway(config.Config{Payment: config.Payment{Driver: "http", Provider: "sumup", Endpoint: "http://pay.local"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sumup", gw.Provider())

	_, err = payment.NewGateway(config.Config{Payment: config.Payment{Driver: "cash"}}, nil)
	assert.Error(t, err)
}

func newHTTPGateway(url string) *payment.HTTPGateway {
	return payment.NewHTTPGateway(config.Payment{
		Provider: "stripe",
		Endpoint: url,
		APIKey:   "sk_test",
		Timeout:  3 * time.Second,
	}, nil)
}

func TestHTTPGateway_Approved(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "ST-001", r.Header.Get("Idempotency-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "16.00", body["amount"])
		assert.Equal(t, "tok_visa", body["token"])

		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "transactionId": "ch_1", "message": "ok"})
	}))
	defer srv.Close()

	res, err := newHTTPGateway(srv.URL).Charge(t.Context(), chargeRequest("tok_visa"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ch_1", res.TransactionID)
}

func TestHTTPGateway_DeclineIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "insufficient funds"})
	}))
	defer srv.Close()

	res, err := newHTTPGateway(srv.URL).Charge(t.Context(), chargeRequest("tok_visa"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient funds", res.Message)
}

func TestHTTPGateway_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "transactionId": "ch_2"})
	}))
	defer srv.Close()

	res, err := newHTTPGateway(srv.URL).Charge(t.Context(), chargeRequest("tok_visa"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPGateway_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newHTTPGateway(srv.URL).Charge(t.Context(), chargeRequest("tok_visa"))
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrGateway)
	assert.Contains(t, err.Error(), "bad token")
	assert.Equal(t, int32(1), calls.Load())
}
