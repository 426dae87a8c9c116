// Package notion is the read-only upstream client for the workspace API.
// Every call is scoped to the single integration token the gateway is
// configured with; caller permissions are enforced above this layer.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/pagegate/pagegate/pkg/errors"
	"github.com/pagegate/pagegate/pkg/logging"
)

const (
	// DefaultBaseURL is the production workspace API endpoint.
	DefaultBaseURL = "https://api.notion.com"
	// DefaultVersion pins the upstream API revision.
	DefaultVersion = "2022-06-28"

	defaultTimeout = 30 * time.Second
)

// API is the upstream surface the gateway depends on. The concrete client
// talks HTTP; tests substitute a stub.
type API interface {
	Search(ctx context.Context, query string) ([]json.RawMessage, error)
	RetrievePage(ctx context.Context, pageID string) (json.RawMessage, error)
	ListBlockChildren(ctx context.Context, blockID string) ([]json.RawMessage, error)
	QueryDatabase(ctx context.Context, databaseID string, filter json.RawMessage) (json.RawMessage, error)
}

// APIError is a structured upstream failure decoded from the API's error
// body. The gateway surfaces its message inside tool results.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("notion api error %d: %s", e.Status, e.Message)
}

// Client is a minimal HTTP client for the workspace API.
type Client struct {
	baseURL string
	token   string
	version string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithVersion overrides the pinned API revision.
func WithVersion(v string) Option {
	return func(c *Client) { c.version = v }
}

// WithTimeout bounds each upstream request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTransport installs a custom round tripper, wrapped with the
// authenticating transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.http.Transport = rt
		}
	}
}

// WithDebugLogging wraps the transport so every upstream exchange is logged
// with credentials masked.
func WithDebugLogging(logger *logging.Logger) Option {
	return func(c *Client) {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http.Transport = &debugTransport{base: base, logger: logger}
	}
}

// NewClient creates a client authenticated with the given integration token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		version: DefaultVersion,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchRequest narrows search to page objects; databases and other object
// kinds never appear in results.
type searchRequest struct {
	Query  string       `json:"query"`
	Filter searchFilter `json:"filter"`
}

type searchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type listEnvelope struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}

// Search runs a workspace search restricted to page objects and returns the
// raw result objects.
func (c *Client) Search(ctx context.Context, query string) ([]json.RawMessage, error) {
	body := searchRequest{
		Query:  query,
		Filter: searchFilter{Property: "object", Value: "page"},
	}
	var out listEnvelope
	if err := c.do(ctx, http.MethodPost, "/v1/search", body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// RetrievePage fetches page metadata and properties.
func (c *Client) RetrievePage(ctx context.Context, pageID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+url.PathEscape(pageID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBlockChildren fetches the direct children of a block or page, following
// pagination cursors until the listing is complete.
func (c *Client) ListBlockChildren(ctx context.Context, blockID string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	cursor := ""
	for {
		path := "/v1/blocks/" + url.PathEscape(blockID) + "/children?page_size=100"
		if cursor != "" {
			path += "&start_cursor=" + url.QueryEscape(cursor)
		}
		var out listEnvelope
		if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Results...)
		if !out.HasMore || out.NextCursor == "" {
			return all, nil
		}
		cursor = out.NextCursor
	}
}

// QueryDatabase runs a database query. The filter is passed through verbatim
// when present; its shape belongs to the upstream API, not to this gateway.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter json.RawMessage) (json.RawMessage, error) {
	body := map[string]json.RawMessage{}
	if len(filter) > 0 {
		body["filter"] = filter
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/v1/databases/"+url.PathEscape(databaseID)+"/query", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, "upstream request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, "read upstream response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, "decode upstream response")
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	} else {
		apiErr.Message = http.StatusText(status)
	}
	return apperrors.Wrap(apiErr, apperrors.ErrCodeUpstream, "upstream rejected request")
}
