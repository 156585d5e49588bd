// Package api implements the store.Backend interface as an HTTP client
// for the vigild candles service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vigilspace/vigil/internal/model"
	"github.com/vigilspace/vigil/pkg/core"
)

// Client talks to the candles service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Init checks that the candles service is reachable.
func (c *Client) Init() error {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Create inserts a candle and assigns the server-issued ID and CreatedAt
// on the passed pointer.
func (c *Client) Create(ctx context.Context, candle *core.Candle) error {
	body, err := json.Marshal(model.FromCore(*candle))
	if err != nil {
		return fmt.Errorf("failed to encode candle: %w", err)
	}

	var row model.Candle
	if err := c.do(ctx, http.MethodPost, "/api/v1/candles", body, http.StatusCreated, &row); err != nil {
		return err
	}

	candle.ID = row.ID
	candle.CreatedAt = row.CreatedAt
	return nil
}

type updateRequest struct {
	Note        *string `json:"note,omitempty"`
	CountryCode *string `json:"country_code,omitempty"`
}

// Update fills in annotation fields keyed by ID.
func (c *Client) Update(ctx context.Context, id uint, patch core.CandlePatch) error {
	body, err := json.Marshal(updateRequest{Note: patch.Note, CountryCode: patch.CountryCode})
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}
	path := fmt.Sprintf("/api/v1/candles/%d", id)
	return c.do(ctx, http.MethodPatch, path, body, http.StatusOK, nil)
}

// List returns candles ordered by created_at ascending, optionally
// filtered to created_at >= since.
func (c *Client) List(ctx context.Context, since time.Time) ([]core.Candle, error) {
	path := "/api/v1/candles"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339Nano))
	}

	var rows []model.Candle
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &rows); err != nil {
		return nil, err
	}
	return model.ManyToCore(rows), nil
}

type countResponse struct {
	Count int64 `json:"count"`
}

// Count returns the number of stored candles.
func (c *Client) Count(ctx context.Context) (int64, error) {
	var out countResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/candles/count", nil, http.StatusOK, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, wantStatus int, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
