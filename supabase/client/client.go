// Package client talks to a hosted Supabase project: PostgREST tables and
// functions (rest.go), GoTrue accounts (gotrue.go), storage buckets
// (storage.go) and the realtime change stream (realtime.go).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultTimeout = 30 * time.Second

// Client is shared by every sub-API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	schema     string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	Schema     string
	HTTPClient *http.Client
	// Breaker, when set, short-circuits requests while the backend is failing.
	// Requests are never retried.
	Breaker *CircuitBreaker
}

// New validates cfg and returns a client for the project at cfg.URL.
func New(cfg Config) (*Client, error) {
	switch {
	case cfg.URL == "":
		return nil, fmt.Errorf("supabase url is required")
	case cfg.APIKey == "":
		return nil, fmt.Errorf("supabase api key is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		schema:     cfg.Schema,
		httpClient: hc,
		breaker:    cfg.Breaker,
	}, nil
}

// BaseURL returns the project URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is a successful (or decoded failed) HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON decodes the body into v. An empty body leaves v untouched.
func (r *Response) JSON(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Count reads the row total from a Content-Range header like "0-9/42" or "*/0".
func (r *Response) Count() (int, error) {
	cr := r.Headers.Get("Content-Range")
	_, total, ok := strings.Cut(cr, "/")
	if !ok || total == "" {
		return 0, fmt.Errorf("missing count in content-range %q", cr)
	}
	if total == "*" {
		return 0, fmt.Errorf("count not requested")
	}
	return strconv.Atoi(total)
}

// APIError is a failed Supabase response. Message holds the backend's own
// text so it can be shown to users unchanged.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    string
	Hint       string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether a single-row request matched nothing.
func (e *APIError) IsNotFound() bool {
	return e.Code == "PGRST116" || e.StatusCode == http.StatusNotAcceptable || e.StatusCode == http.StatusNotFound
}

// IsConflict reports a unique-constraint violation.
func (e *APIError) IsConflict() bool {
	return e.Code == "23505" || e.StatusCode == http.StatusConflict
}

// parseAPIError understands the error bodies of PostgREST, GoTrue and storage.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)
		apiErr.Code = firstString(doc, "code", "error_code", "statusCode")
		apiErr.Message = firstString(doc, "message", "msg", "error_description", "error")
		apiErr.Details = doc.Get("details").String()
		apiErr.Hint = doc.Get("hint").String()
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("supabase error: status %d", status)
	}
	return apiErr
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// newRequest builds an authenticated request. A non-nil payload is sent as
// JSON unless it is already raw bytes.
func (c *Client) newRequest(ctx context.Context, method, target string, payload any) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	switch p := payload.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(p)
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, target, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// useSchema routes PostgREST calls to a non-default schema.
func (c *Client) useSchema(req *http.Request, write bool) {
	if c.schema == "" || c.schema == "public" {
		return
	}
	header := "Accept-Profile"
	if write {
		header = "Content-Profile"
	}
	req.Header.Set(header, c.schema)
}

// do sends req through the breaker. Transport errors and 5xx answers count
// as failures; 4xx answers are the caller's problem and count as success.
func (c *Client) do(req *http.Request) (*Response, error) {
	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(err)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(err)
		return nil, fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}
	out := &Response{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}

	if resp.StatusCode < http.StatusBadRequest {
		c.observe(nil)
		return out, nil
	}
	apiErr := parseAPIError(resp.StatusCode, body)
	if resp.StatusCode >= http.StatusInternalServerError {
		c.observe(apiErr)
	} else {
		c.observe(nil)
	}
	return out, apiErr
}

func (c *Client) observe(err error) {
	if c.breaker == nil {
		return
	}
	if err != nil {
		c.breaker.RecordFailure(err)
		return
	}
	c.breaker.RecordSuccess()
}
