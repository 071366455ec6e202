package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"TasteClient/internal/domain"
	"TasteClient/internal/ports"
)

const (
	// DefaultBaseURL is where the scoring service listens in local setups.
	DefaultBaseURL = "http://localhost:8001"
	// DefaultTimeout bounds every call, including reading the response.
	DefaultTimeout = 30 * time.Second
	// DefaultLoginPath is handed to AuthExpired listeners.
	DefaultLoginPath = "/login"

	defaultUserAgent = "TasteClient/1.0"
	maxResponseBytes = 16 << 20
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	LoginPath  string
	HTTPClient *http.Client
}

// Request is one call against the service, relative to the base URL.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// Response is a successful (2xx) answer with its body fully read.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client issues requests against a fixed base endpoint and applies the
// cross-cutting policies: bearer header, timeout, forced logout on 401.
type Client struct {
	base        *url.URL
	http        *http.Client
	credentials ports.CredentialStore
	userAgent   string
	loginPath   string
	logger      *slog.Logger

	mu        sync.RWMutex
	listeners []ports.AuthExpiredListener
}

// New builds a client; credentials may be nil for anonymous-only use.
func New(opts Options, credentials ports.CredentialStore, log *slog.Logger) (*Client, error) {
	rawBase := strings.TrimSpace(opts.BaseURL)
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(rawBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %s: %w", rawBase, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %s: unsupported scheme %q", rawBase, base.Scheme)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	} else {
		clone := *httpClient
		httpClient = &clone
	}
	httpClient.Timeout = timeout

	c := &Client{
		base:        base,
		http:        httpClient,
		credentials: credentials,
		userAgent:   opts.UserAgent,
		loginPath:   opts.LoginPath,
		logger:      log,
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.loginPath == "" {
		c.loginPath = DefaultLoginPath
	}
	return c, nil
}

// OnAuthExpired subscribes l to forced-logout events.
func (c *Client) OnAuthExpired(l ports.AuthExpiredListener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// BaseURL reports the configured endpoint.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Timeout reports the per-call budget.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// Do sends req and returns the 2xx response or a *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + req.Path

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.resolve(req.Path, req.Query), body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", op, err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if c.credentials != nil {
		if token, ok := c.credentials.Current(); ok && token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+string(token))
		}
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.failure(op, requestID, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.failure(op, requestID, err)
	}

	c.debug("request done", "op", op, "status", resp.StatusCode,
		"request_id", requestID, "duration_ms", time.Since(started).Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, c.expire(ctx, method, req.Path, op, payload)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:    domain.KindHTTP,
			Op:      op,
			Status:  resp.StatusCode,
			Body:    payload,
			Message: describeBody(resp.Header.Get("Content-Type"), payload),
		}
	}

	return &Response{
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      payload,
		RequestID: requestID,
	}, nil
}

// expire applies the global 401 policy: drop the credential, tell the
// presentation layer, then hand the failure back to the caller.
func (c *Client) expire(ctx context.Context, method, path, op string, payload []byte) error {
	if c.credentials != nil {
		if err := c.credentials.Clear(context.WithoutCancel(ctx)); err != nil {
			c.warn("clear credential after 401 failed", "op", op, "error", err)
		}
	}
	c.warn("authorization expired", "op", op)

	event := domain.AuthExpired{
		LoginPath: c.loginPath,
		Method:    method,
		Path:      path,
		At:        time.Now(),
	}
	c.mu.RLock()
	listeners := append([]ports.AuthExpiredListener(nil), c.listeners...)
	c.mu.RUnlock()
	for _, l := range listeners {
		l.OnAuthExpired(event)
	}

	return &Error{
		Kind:    domain.KindUnauthorized,
		Op:      op,
		Status:  http.StatusUnauthorized,
		Body:    payload,
		Message: describeBody("", payload),
	}
}

func (c *Client) failure(op, requestID string, err error) error {
	kind := domain.KindNetwork
	switch {
	case isTimeout(err):
		kind = domain.KindTimeout
	case errors.Is(err, context.Canceled):
		// the caller gave up; nothing is known about the connection
		kind = domain.KindUnknown
	}
	c.debug("request failed", "op", op, "request_id", requestID, "kind", kind, "error", err)
	return &Error{Kind: kind, Op: op, Err: err}
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
