// Package client is the access layer for the linksnap HTTP API. Identical
// in-flight requests are collapsed into one, failed requests are retried
// with exponential backoff, and reads can be cached per key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = time.Second
	defaultTimeout    = 30 * time.Second
	maxResponseBytes  = 10 << 20
)

// Client talks to one linksnap server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	http       *http.Client
	cache      *Cache
	group      singleflight.Group
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger

	mu    sync.RWMutex
	token string

	flightsMu sync.Mutex
	flights   map[string]*flight
}

// flight tracks the callers waiting on one shared request. The request is
// cancelled once the last of them stops waiting.
type flight struct {
	waiters int
	cancel  context.CancelFunc
	left    bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 30s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache replaces the default five minute cache.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithRetry sets the retry budget and the first backoff delay, which
// doubles for every further retry.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a client for the server at baseURL, e.g.
// "https://sho.rt" or "https://example.com/linksnap".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		flights:    make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.cache == nil {
		c.cache = NewCache(DefaultCacheTTL, nil)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	return c, nil
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// InvalidateCache drops one cached read.
func (c *Client) InvalidateCache(key string) { c.cache.Invalidate(key) }

// ClearCache drops every cached read.
func (c *Client) ClearCache() { c.cache.Clear() }

// request describes one logical call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	// cacheKey opts a read into the cache.
	cacheKey string
	progress *progress
}

func (r request) url(base string) string {
	u := base + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	return u
}

// envelope is the part of every response the client inspects.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Expired bool   `json:"expired"`
}

// do runs req and decodes a successful answer into out. Identical calls
// in flight share one network round trip; each caller still stops
// waiting when its own ctx is done, and the round trip with its retries is
// abandoned when no caller is left.
func (c *Client) do(ctx context.Context, req request, out any) error {
	if req.cacheKey != "" {
		if body, ok := c.cache.Get(req.cacheKey); ok {
			c.logger.Debug("cache hit", zap.String("key", req.cacheKey))
			return decodeBody(body, out)
		}
	}

	target := req.url(c.baseURL)
	key := req.method + " " + target + "\n" + string(req.body)

	ch, leave := c.join(ctx, key, req, target)
	defer leave()

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return res.Err
	}

	body := res.Val.([]byte)
	if err := decodeBody(body, out); err != nil {
		return err
	}
	req.progress.done()
	if req.cacheKey != "" {
		c.cache.Set(req.cacheKey, body)
	}
	return nil
}

// join registers the caller as a waiter on key and returns the channel that
// delivers the shared result. The caller must call leave once it stops
// waiting.
func (c *Client) join(ctx context.Context, key string, req request, target string) (<-chan singleflight.Result, func()) {
	c.flightsMu.Lock()
	f, ok := c.flights[key]
	if !ok {
		f = &flight{}
		c.flights[key] = f
	}
	f.waiters++
	c.flightsMu.Unlock()

	ch := c.group.DoChan(key, func() (any, error) {
		// Detached from the starting caller; only the last waiter leaving
		// cancels it.
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()

		c.flightsMu.Lock()
		if f.left {
			c.flightsMu.Unlock()
			return nil, context.Canceled
		}
		f.cancel = cancel
		c.flightsMu.Unlock()

		return c.fetch(shared, req, target)
	})
	return ch, func() { c.leave(key, f) }
}

func (c *Client) leave(key string, f *flight) {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.left = true
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	if f.cancel != nil {
		f.cancel()
	}
	// A later identical call must start fresh rather than attach to a
	// cancelled one.
	c.group.Forget(key)
}

// fetch performs the round trip with retries and returns the raw body of
// a 2xx answer.
func (c *Client) fetch(ctx context.Context, req request, target string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.baseDelay << c.maxRetries
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)

	attempt := 0
	var body []byte
	op := func() error {
		attempt++
		var err error
		body, err = c.roundTrip(ctx, req, target)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("request failed, retrying",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, req request, target string) ([]byte, error) {
	var body io.Reader
	if req.body != nil {
		body = req.progress.reader(bytes.NewReader(req.body), int64(len(req.body)))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if req.body != nil {
		httpReq.ContentLength = int64(len(req.body))
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// decodeBody turns a {"success":false} answer into an APIError and
// otherwise unmarshals into out.
func decodeBody(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return &APIError{Message: msg, Expired: env.Expired}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		return env.Message
	}
	return strings.TrimSpace(string(body))
}
