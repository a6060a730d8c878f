// Package lookup queries the VirusTotal v3 file report endpoint by content
// hash.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http/httpproxy"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the VirusTotal v3 API root.
	DefaultBaseURL = "https://www.virustotal.com/api/v3"

	// DefaultRequestsPerMinute matches the public API quota.
	DefaultRequestsPerMinute = 4

	maxErrorBody = 4 << 10
)

// Report is the outcome of one successful lookup. Payload is the raw JSON
// returned by the service, or a synthesized message when the hash is unknown.
type Report struct {
	Digest   string
	Payload  json.RawMessage
	NotFound bool
}

// NotFoundPayload is the payload reported for a hash the service has never
// seen.
func NotFoundPayload(digest string) json.RawMessage {
	msg, _ := json.Marshal("File not found for hash " + digest) //nolint:errchkjson // string marshal cannot fail
	return json.RawMessage(`{"message": ` + string(msg) + `}`)
}

// Client performs authenticated report lookups. It owns one HTTP client for
// its lifetime; call Close when done.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	baseURL string
	apiKey  string

	closeOnce sync.Once
	closed    atomic.Bool
}

type options struct {
	baseURL    string
	httpClient *http.Client
	perMinute  int
	proxy      *httpproxy.Config
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL points the client at a different API root (for testing).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient replaces the owned HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRateLimit caps lookups per minute. Zero or less disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(o *options) { o.perMinute = perMinute }
}

// WithProxy routes requests through the given proxy settings. Ignored when
// WithHTTPClient is also used.
func WithProxy(cfg httpproxy.Config) Option {
	return func(o *options) { o.proxy = &cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a lookup client. It fails with ErrAuthRequired when apiKey is
// blank.
func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrAuthRequired
	}

	o := options{
		baseURL:   DefaultBaseURL,
		perMinute: DefaultRequestsPerMinute,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
		if o.proxy != nil {
			proxyFn := o.proxy.ProxyFunc()
			tr.Proxy = func(r *http.Request) (*url.URL, error) { return proxyFn(r.URL) }
		}
		httpClient = &http.Client{Transport: tr}
	}

	var limiter *rate.Limiter
	if o.perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.perMinute)), 1)
	}

	return &Client{
		http:    httpClient,
		limiter: limiter,
		logger:  o.logger.With(slog.String("component", "lookup")),
		baseURL: strings.TrimRight(o.baseURL, "/"),
		apiKey:  apiKey,
	}, nil
}

// FetchReport looks up digest. An unknown hash is a successful Report with
// NotFound set. Deadline and cancellation from ctx are preserved in the
// returned error chain.
func (c *Client) FetchReport(ctx context.Context, digest string) (Report, error) {
	if digest == "" {
		return Report{}, ErrEmptyDigest
	}
	if c.closed.Load() {
		return Report{}, ErrClosed
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Report{}, fmt.Errorf("rate limiter: %w", ctxErr)
			}
			// Wait refuses up front when the next slot lies past the deadline.
			return Report{}, fmt.Errorf("rate limiter: %v: %w", err, context.DeadlineExceeded)
		}
	}

	reqURL := c.baseURL + "/files/" + url.PathEscape(digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Report{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req) //nolint:gosec // URL built from configured base + hex digest
	if err != nil {
		return Report{}, &NetworkError{Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("lookup response",
		slog.String("digest", digest),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck
		return Report{Digest: digest, Payload: NotFoundPayload(digest), NotFound: true}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Report{}, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Report{}, &NetworkError{Cause: fmt.Errorf("reading response: %w", err)}
	}
	return Report{Digest: digest, Payload: body}, nil
}

// Close releases pooled connections. Further lookups return ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.http.CloseIdleConnections()
	})
	return nil
}
