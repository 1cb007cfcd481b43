package render

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

	"server/internal/domain"
)

// Client is the outbound contract with the batch rendering service.
type Client interface {
	CreateCollection(ctx context.Context, req CreateCollectionRequest) (*Collection, error)
	GetCollection(ctx context.Context, uid string) (*Collection, error)
}

const defaultTimeout = 30 * time.Second

// Options configures the HTTP client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// HTTPClient talks to a Bannerbear-compatible collections API.
type HTTPClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a rendering service client.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("render api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.bannerbear.com/v2"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPClient{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}, nil
}

// CreateCollection submits a batch request. The service accepts
// synchronously and renders asynchronously, so the returned collection
// carries a UID and a pending status.
func (c *HTTPClient) CreateCollection(ctx context.Context, req CreateCollectionRequest) (*Collection, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("encode collection request: %w", err)
	}
	var out Collection
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/collections", &buf, &out); err != nil {
		return nil, err
	}
	if out.UID == "" {
		return nil, fmt.Errorf("%w: response missing uid", domain.ErrServiceRejected)
	}
	return &out, nil
}

// GetCollection queries current collection status by UID.
func (c *HTTPClient) GetCollection(ctx context.Context, uid string) (*Collection, error) {
	var out Collection
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, uid)
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: status %d: %s", domain.ErrServiceRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
