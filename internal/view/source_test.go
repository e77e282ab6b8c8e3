package view

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/hatch/internal/config"
)

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "READY_FOR_PICKUP,OUT_FOR_DELIVERY", r.URL.Query().Get("status"))
		assert.Equal(t, "4", r.URL.Query().Get("driverId"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":1,"number":"ST-001","status":"OUT_FOR_DELIVERY","total":"16.00","driverId":4}]}`))
	}))
	defer srv.Close()

	driverID := int64(4)
	src := NewHTTPSource(config.View{APIBaseURL: srv.URL + "/", Timeout: time.Second})

	orders, err := src.Fetch(t.Context(), Driver(&driverID).Query())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ST-001", orders[0].Number)
	assert.Equal(t, "16.00", orders[0].Total)
}

func TestHTTPSource_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":{"kind":"internal","message":"failed to list orders"}}`))
	}))
	defer srv.Close()

	src := NewHTTPSource(config.View{APIBaseURL: srv.URL, Timeout: time.Second})
	_, err := src.Fetch(t.Context(), Kitchen().Query())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list orders")
}

func TestHTTPSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src := NewHTTPSource(config.View{APIBaseURL: url, Timeout: time.Second})
	_, err := src.Fetch(t.Context(), Till().Query())
	assert.Error(t, err)
}
