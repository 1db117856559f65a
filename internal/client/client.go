// Package client is a typed HTTP client for the hybridex API.
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
	"strconv"
	"strings"
	"time"

	api "github.com/kailas-cloud/hybridex/internal/transport/chi"
)

const (
	// DefaultBaseURL is the address of a locally running server.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds one request, rebuilds included.
	DefaultTimeout = 5 * time.Minute
)

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int
	Code       api.ErrorCode
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one hybridex server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "hybridex-client",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchParams are the optional query parameters of a search. Zero values
// leave the server defaults in place.
type SearchParams struct {
	Query string
	Type  string
	Limit int
	Alpha *float64
}

// Search runs a ranked search.
func (c *Client) Search(ctx context.Context, p SearchParams) (api.SearchResponse, error) {
	q := url.Values{"q": {p.Query}}
	if p.Type != "" {
		q.Set("type", p.Type)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Alpha != nil {
		q.Set("alpha", strconv.FormatFloat(*p.Alpha, 'f', -1, 64))
	}

	var out api.SearchResponse
	err := c.do(ctx, http.MethodGet, "/api/search?"+q.Encode(), nil, &out)
	return out, err
}

// AddDocument creates one document.
func (c *Client) AddDocument(ctx context.Context, doc api.DocumentRequest) (api.DocumentResponse, error) {
	var out api.DocumentResponse
	err := c.do(ctx, http.MethodPost, "/api/documents", doc, &out)
	return out, err
}

// AddBatch creates documents in one request. Per-item failures are reported
// in the response, not as an error.
func (c *Client) AddBatch(ctx context.Context, docs []api.DocumentRequest) (api.BatchResponse, error) {
	var out api.BatchResponse
	err := c.do(ctx, http.MethodPost, "/api/documents/batch", api.BatchRequest{Documents: docs}, &out)
	return out, err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(id), nil, nil)
}

// Rebuild refits and rebuilds both indices.
func (c *Client) Rebuild(ctx context.Context) (api.RebuildResponse, error) {
	var out api.RebuildResponse
	err := c.do(ctx, http.MethodPost, "/api/index/rebuild", nil, &out)
	return out, err
}

// Stats returns search counters and index statistics.
func (c *Client) Stats(ctx context.Context) (api.SearchStatsResponse, error) {
	var out api.SearchStatsResponse
	err := c.do(ctx, http.MethodGet, "/api/search/stats", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		return apiErr
	}
	apiErr.Code = api.ErrorCode(strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_")))
	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}
