package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Kerhoff/synclist/internal/models"
)

// ErrNotFound is returned when the server answers 404
var ErrNotFound = errors.New("not found")

// APIClient talks to the REST endpoints used to create, fetch and join lists.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for the server at baseURL
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateList creates a list owned by deviceID
func (c *APIClient) CreateList(ctx context.Context, name, deviceID string) (*models.List, error) {
	var list models.List
	body := map[string]string{"name": name, "deviceId": deviceID}
	if err := c.do(ctx, http.MethodPost, "/lists", body, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetList fetches a list with its items
func (c *APIClient) GetList(ctx context.Context, id string) (*models.ListWithItems, error) {
	var list models.ListWithItems
	if err := c.do(ctx, http.MethodGet, "/lists/"+url.PathEscape(id), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// JoinList looks a list up by join code
func (c *APIClient) JoinList(ctx context.Context, joinCode, deviceID string) (*models.List, error) {
	var list models.List
	body := map[string]string{"joinCode": joinCode, "deviceId": deviceID}
	if err := c.do(ctx, http.MethodPost, "/lists/join", body, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = fmt.Sprintf("request failed: %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error)
		}
		return errors.New(apiErr.Error)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
