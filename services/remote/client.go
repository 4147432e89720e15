package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"rapidcare/models"
	syncsvc "rapidcare/services/sync"

	"go.uber.org/zap"
)

// Client calls the upstream hospital API's poll endpoints. Every endpoint
// answers with the common {hasChanges, changes, currentTimestamp} envelope.
type Client struct {
	baseURL     string
	http        *http.Client
	tokenSource func() string
	logger      *zap.Logger
}

// NewClient builds a client for the given base URL. tokenSource is read on
// every request so rotated auth tokens take effect immediately.
func NewClient(baseURL string, tokenSource func() string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: 30 * time.Second},
		tokenSource: tokenSource,
		logger:      logger,
	}
}

// FetchResources polls the hospital's resource counters, optionally filtered
// by resource type.
func (c *Client) FetchResources(ctx context.Context, hospitalID string, resourceType string) (*models.FetchResult, error) {
	query := url.Values{}
	if resourceType != "" {
		query.Set("resourceType", resourceType)
	}
	return c.poll(ctx, fmt.Sprintf("/hospitals/%s/resources/poll", hospitalID), query)
}

// FetchBookings polls the hospital's bookings, optionally filtered by status.
func (c *Client) FetchBookings(ctx context.Context, hospitalID string, status string) (*models.FetchResult, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	return c.poll(ctx, fmt.Sprintf("/hospitals/%s/bookings/poll", hospitalID), query)
}

// FetchDashboard polls the hospital's dashboard aggregates.
func (c *Client) FetchDashboard(ctx context.Context, hospitalID string) (*models.FetchResult, error) {
	return c.poll(ctx, fmt.Sprintf("/hospitals/%s/dashboard/poll", hospitalID), nil)
}

func (c *Client) poll(ctx context.Context, path string, query url.Values) (*models.FetchResult, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tokenSource != nil {
		if token := c.tokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, syncsvc.NewNetworkError("poll request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, syncsvc.NewEndpointUnavailable(fmt.Sprintf("%s answered %d", path, resp.StatusCode))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, syncsvc.NewNetworkError(
			fmt.Sprintf("%s answered %d: %s", path, resp.StatusCode, string(body)), nil)
	}

	var result models.FetchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, syncsvc.NewNetworkError("failed to decode poll response", err)
	}
	return &result, nil
}
