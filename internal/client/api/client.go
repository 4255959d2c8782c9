package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultTimeout = 10 * time.Second

	RequestIDHeader = "X-Request-ID"
)

// Doer is what the stores need from the adapter.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error
}

// TokenSource supplies the current bearer token. An empty token means the
// request goes out without an Authorization header.
type TokenSource interface {
	Token() string
}

type unauthorizedListener struct {
	id int
	fn func(ctx context.Context)
}

// Client talks JSON to the blog REST API.
//
// Contract:
//   - every request carries an X-Request-ID and, when a token is known, an
//     Authorization: Bearer header;
//   - a response without a status becomes *TransportError, a non-2xx
//     status becomes *HTTPError;
//   - a 401 runs the OnUnauthorized listeners before Do returns.
//
// A Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     logging.Logger
	metrics *metrics

	mu        sync.RWMutex
	tokens    TokenSource
	listeners []unauthorizedListener
	nextID    int
}

// Option configures a Client in New.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the request logger. The default discards.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics registers the request counter and latency histogram on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = newMetrics(reg) }
}

// WithTokenSource sets where the bearer token is read from on each request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New returns a Client rooted at baseURL. A trailing slash is ignored.
// Without options it uses a plain *http.Client and DefaultTimeout.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		log:     logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	c.log = c.log.With("component", "api")
	return c
}

// BaseURL is the API root every request path is appended to.
func (c *Client) BaseURL() string { return c.baseURL }

// SetTokenSource replaces the token source. The session store is usually
// built after the client, so it is attached here.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnUnauthorized registers fn to be called whenever a response comes back
// with 401. Listeners run synchronously, in registration order, before the
// failing call returns. The returned func removes the listener.
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, unauthorizedListener{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) fireUnauthorized(ctx context.Context) {
	c.mu.RLock()
	ls := make([]unauthorizedListener, len(c.listeners))
	copy(ls, c.listeners)
	c.mu.RUnlock()

	// the request deadline may already be spent; listeners still need to
	// finish their cleanup
	ctx = context.WithoutCancel(ctx)
	for _, l := range ls {
		l.fn(ctx)
	}
}

func (c *Client) token() string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	return ts.Token()
}

// Do sends body (if not nil) as JSON to baseURL+path and decodes a 2xx
// response into out (if not nil).
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	ro := requestOptions{}
	for _, o := range opts {
		o(&ro)
	}

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = bytes.NewReader(b)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}

	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)

	token := ro.bearer
	if token == "" {
		token = c.token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.log.With("method", method, "path", path, "request_id", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		took := time.Since(start)
		c.metrics.observe(method, "transport", took)
		te := &TransportError{Method: method, Path: path, Err: err}
		log.Error(ctx, "request failed", "took", took, "timeout", te.Timeout(), "error", err)
		return te
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	took := time.Since(start)
	if err != nil {
		c.metrics.observe(method, "transport", took)
		log.Error(ctx, "read response failed", "status", resp.StatusCode, "took", took, "error", err)
		return &TransportError{Method: method, Path: path, Err: err}
	}
	c.metrics.observe(method, strconv.Itoa(resp.StatusCode), took)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		he := newHTTPError(resp.StatusCode, raw)
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			log.Warn(ctx, "unauthorized, dropping session", "took", took)
			c.fireUnauthorized(ctx)
		case resp.StatusCode == http.StatusForbidden:
			log.Warn(ctx, "access forbidden", "took", took)
		case resp.StatusCode == http.StatusNotFound:
			log.Warn(ctx, "resource not found", "took", took)
		case resp.StatusCode >= 500:
			log.Error(ctx, "server error", "status", resp.StatusCode, "took", took, "message", he.Message)
		default:
			log.Warn(ctx, "request rejected", "status", resp.StatusCode, "took", took, "message", he.Message)
		}
		return he
	}

	log.Debug(ctx, "request completed", "status", resp.StatusCode, "took", took)

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Get decodes the response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Delete issues DELETE path and ignores the response body.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, opts...)
}
