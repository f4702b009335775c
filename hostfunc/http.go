package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
	DefaultRetryDelay     = 200 * time.Millisecond
)

var (
	ErrHTTPDisabled = errors.New("http not enabled")
	errServerStatus = errors.New("server error")
)

type HTTPConfig struct {
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
	// Retries is how many extra attempts a GET, HEAD or OPTIONS request
	// gets after a transport error or a 5xx response.
	Retries    uint
	RetryDelay time.Duration
}

// HTTP lets rule files call allowlisted hosts.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client

	mu    sync.RWMutex
	ctxFn ContextFunc
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return &HTTP{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// bindContext makes script-facing calls use the context fn returns, so a
// cancelled or timed out run aborts the request in flight.
func (h *HTTP) bindContext(fn ContextFunc) {
	h.mu.Lock()
	h.ctxFn = fn
	h.mu.Unlock()
}

func (h *HTTP) requestContext() context.Context {
	h.mu.RLock()
	fn := h.ctxFn
	h.mu.RUnlock()
	if fn == nil {
		return context.Background()
	}
	return fn()
}

// Get is the script-facing shorthand for a GET request.
func (h *HTTP) Get(rawURL string) (*HTTPResponse, error) {
	return h.Do(h.requestContext(), HTTPRequest{Method: http.MethodGet, URL: rawURL})
}

// Request is the script-facing form of Do.
func (h *HTTP) Request(req HTTPRequest) (*HTTPResponse, error) {
	return h.Do(h.requestContext(), req)
}

func (h *HTTP) Do(ctx context.Context, r HTTPRequest) (*HTTPResponse, error) {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}

	switch method {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS":
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}

	if r.URL == "" {
		return nil, fmt.Errorf("url required")
	}
	if len(r.URL) > h.cfg.MaxURLLength {
		return nil, fmt.Errorf("url exceeds max length")
	}

	parsed, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https")
	}

	if len(h.cfg.AllowedHosts) == 0 {
		return nil, ErrHTTPDisabled
	}

	host := parsed.Hostname()
	if !h.isHostAllowed(host) {
		return nil, fmt.Errorf("host not allowed: %s", host)
	}

	if int64(len(r.Body)) > h.cfg.MaxBodySize {
		return nil, fmt.Errorf("request body exceeds max size")
	}

	attempts := uint(1)
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		attempts += h.cfg.Retries
	}

	var resp *HTTPResponse
	err = retry.Do(func() error {
		var err error
		resp, err = h.send(ctx, method, r)
		if err != nil {
			return err
		}
		if resp.Status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %d", errServerStatus, resp.Status)
		}
		return nil
	},
		retry.Attempts(attempts),
		retry.Delay(h.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	// A 5xx that outlived its retries is still a response the script can inspect.
	if err != nil && !(errors.Is(err, errServerStatus) && resp != nil) {
		return nil, err
	}
	return resp, nil
}

func (h *HTTP) send(ctx context.Context, method string, r HTTPRequest) (*HTTPResponse, error) {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return &HTTPResponse{
		Status:  resp.StatusCode,
		Body:    string(respBody),
		Headers: headers,
	}, nil
}

func (h *HTTP) isHostAllowed(host string) bool {
	for _, allowed := range h.cfg.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
