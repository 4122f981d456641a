// Package rest is the JSON over HTTP transport shared by the vendor adapters.
// It owns request building, body limits and the translation of non 2xx
// responses into *pos.Error values.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/pos-gateway/internal/pos"
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorParser extracts vendor error messages from a failed response body.
type ErrorParser func(body []byte) []string

// RequestHook runs on every outgoing request after headers are set. Vendors
// use it for authentication schemes that sign the request.
type RequestHook func(req *http.Request) error

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL sets the base URL every request path is appended to.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" && value != "" {
			c.headers.Set(key, value)
		}
	}
}

// WithBearerToken sets the Authorization header to a bearer token.
func WithBearerToken(token string) Option {
	return WithHeader("Authorization", "Bearer "+strings.TrimSpace(token))
}

// WithBasicAuth authenticates every request with HTTP basic auth.
func WithBasicAuth(user, password string) Option {
	return WithRequestHook(func(req *http.Request) error {
		req.SetBasicAuth(user, password)
		return nil
	})
}

// WithRequestHook appends a hook executed before each request is sent.
func WithRequestHook(hook RequestHook) Option {
	return func(c *Client) {
		if hook != nil {
			c.hooks = append(c.hooks, hook)
		}
	}
}

// WithErrorParser sets the vendor specific error body parser.
func WithErrorParser(parser ErrorParser) Option {
	return func(c *Client) {
		if parser != nil {
			c.parseErrors = parser
		}
	}
}

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Client sends JSON requests to one vendor API.
type Client struct {
	vendor      string
	baseURL     string
	httpClient  HTTPClient
	timeout     time.Duration
	headers     http.Header
	hooks       []RequestHook
	parseErrors ErrorParser
}

// New builds a Client for vendor. The vendor name prefixes error details.
func New(vendor string, opts ...Option) *Client {
	c := &Client{
		vendor:      vendor,
		timeout:     30 * time.Second,
		headers:     make(http.Header),
		parseErrors: genericErrors,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Request describes one API call. JSON and Form are mutually exclusive.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	JSON    any
	Form    url.Values
	Headers map[string]string
}

// Response carries the status and raw body of a successful call.
type Response struct {
	Status int
	Body   []byte
}

// Do sends req and decodes a 2xx JSON body into out when out is non-nil.
// Failures are returned as *pos.Error.
func (c *Client) Do(ctx context.Context, req Request, out any) (*Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, pos.Wrap(pos.KindVendor, ctxErr, fmt.Sprintf("%s: request cancelled", c.vendor))
		}
		return nil, pos.Wrap(pos.KindVendor, err, fmt.Sprintf("%s: http do", c.vendor))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, pos.Wrap(pos.KindVendor, err, fmt.Sprintf("%s: read body", c.vendor))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp.StatusCode, body)
	}

	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return nil, pos.Wrap(pos.KindVendor, err, fmt.Sprintf("%s: decode response", c.vendor))
		}
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	endpoint := c.baseURL
	if path := strings.TrimLeft(req.Path, "/"); path != "" {
		endpoint += "/" + path
	}
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, pos.Wrap(pos.KindValidation, err, fmt.Sprintf("%s: encode request", c.vendor))
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, pos.Wrap(pos.KindVendor, err, fmt.Sprintf("%s: new request", c.vendor))
	}
	for key, values := range c.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Headers {
		if value != "" {
			httpReq.Header.Set(key, value)
		}
	}
	for _, hook := range c.hooks {
		if err := hook(httpReq); err != nil {
			return nil, pos.Wrap(pos.KindAuthentication, err, fmt.Sprintf("%s: sign request", c.vendor))
		}
	}
	return httpReq, nil
}

func (c *Client) statusError(status int, body []byte) *pos.Error {
	kind := pos.KindVendor
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = pos.KindAuthentication
	case http.StatusNotFound:
		kind = pos.KindNotFound
	}

	messages := c.parseErrors(body)
	if len(messages) == 0 {
		if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
			messages = []string{text}
		}
	}
	return &pos.Error{
		Kind:   kind,
		Detail: fmt.Sprintf("%s: http %d", c.vendor, status),
		Errors: messages,
		Status: status,
	}
}

// IsStatus reports whether err is a *pos.Error carrying the HTTP status.
func IsStatus(err error, status int) bool {
	var pe *pos.Error
	return errors.As(err, &pe) && pe.Status == status
}

func genericErrors(body []byte) []string {
	var generic struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
		Errors  []any  `json:"errors"`
	}
	if err := json.Unmarshal(body, &generic); err != nil {
		return nil
	}
	var out []string
	if generic.Message != "" {
		out = append(out, generic.Message)
	}
	switch e := generic.Error.(type) {
	case string:
		if e != "" {
			out = append(out, e)
		}
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			out = append(out, msg)
		}
	}
	for _, item := range generic.Errors {
		switch e := item.(type) {
		case string:
			out = append(out, e)
		case map[string]any:
			for _, key := range []string{"detail", "message", "description"} {
				if msg, ok := e[key].(string); ok && msg != "" {
					out = append(out, msg)
					break
				}
			}
		}
	}
	return out
}
