package view

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Additional-Code/hatch/internal/config"
	"github.com/Additional-Code/hatch/internal/dto"
	"github.com/Additional-Code/hatch/internal/presentation/http/response"
)

const maxResponseBytes = 4 << 20

// HTTPSource reads orders from the API's GET /orders endpoint.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource builds a source for the configured API.
func NewHTTPSource(cfg config.View) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, q Query) ([]dto.OrderResponse, error) {
	params := url.Values{}
	if len(q.Statuses) > 0 {
		params.Set("status", strings.Join(q.Statuses, ","))
	}
	if q.OrderNumber != "" {
		params.Set("orderNumber", q.OrderNumber)
	}
	if q.DriverID != nil {
		params.Set("driverId", strconv.FormatInt(*q.DriverID, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	target := s.baseURL + "/orders"
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request orders: %w", err)
	}
	defer resp.Body.Close()

	var body response.Envelope[[]dto.OrderResponse]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode orders (status %d): %w", resp.StatusCode, err)
	}
	if !body.Success || resp.StatusCode >= http.StatusBadRequest {
		msg := http.StatusText(resp.StatusCode)
		if body.Error != nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return nil, fmt.Errorf("orders endpoint returned %d: %s", resp.StatusCode, msg)
	}
	return body.Data, nil
}
