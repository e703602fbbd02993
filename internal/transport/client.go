// Package transport executes request envelopes over HTTP. It knows nothing
// about the meaning of replies: statuses and bodies are handed back as they
// arrived.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/taler-client/internal/cache"
	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/validate"
)

// defaultMaxReply bounds how much of a reply is read.
const defaultMaxReply = 8 << 20

// Client sends envelopes to one backend.
type Client struct {
	base     *url.URL
	http     Doer
	mws      []Middleware
	doer     Doer
	store    cache.Store
	cacheTTL time.Duration
	maxReply int64
	log      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the HTTP client.
func WithDoer(d Doer) Option { return func(c *Client) { c.http = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithMaxReply bounds reply bodies to n bytes; larger replies fail with
// errs.ErrReplyTooLarge.
func WithMaxReply(n int64) Option { return func(c *Client) { c.maxReply = n } }

// WithToken authenticates requests with a merchant access token.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.mws = append(c.mws, Bearer(token))
		}
	}
}

// WithCache enables the response cache for Cached lookups.
func WithCache(s cache.Store, ttl time.Duration) Option {
	return func(c *Client) {
		c.store = s
		c.cacheTTL = ttl
	}
}

// New returns a Client for baseURL, which must be absolute and end with "/".
func New(baseURL string, opts ...Option) (*Client, error) {
	if !validate.BaseURL(baseURL) {
		return nil, fmt.Errorf("invalid base url %q: must be absolute http(s) and end with \"/\"", baseURL)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		base:     base,
		http:     &http.Client{Timeout: 30 * time.Second},
		store:    cache.Nop{},
		maxReply: defaultMaxReply,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.doer = Chain(c.http, append([]Middleware{Logging(c.log)}, c.mws...)...)
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// Do sends env with the extra header and returns the reply unchanged.
func (c *Client) Do(ctx context.Context, env convert.Envelope, header http.Header) (convert.Response, error) {
	var body io.Reader
	if env.Body != nil {
		body = bytes.NewReader(env.Body)
	}
	req, err := http.NewRequestWithContext(ctx, env.Method, env.Target(c.base).String(), body)
	if err != nil {
		return convert.Response{}, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if env.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return convert.Response{}, fmt.Errorf("%s %s: %w", env.Method, env.Path, err)
	}
	defer resp.Body.Close()

	out := convert.Response{Status: resp.StatusCode, Header: resp.Header}
	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxReply+1))
	if err != nil {
		return out, fmt.Errorf("%s %s: read body: %w", env.Method, env.Path, err)
	}
	if int64(len(b)) > c.maxReply {
		return out, fmt.Errorf("%s %s: %w: over %d bytes", env.Method, env.Path, errs.ErrReplyTooLarge, c.maxReply)
	}
	out.Body = b
	return out, nil
}

// Cached is Do for idempotent reads: a cached body is returned as a 200
// reply, and fresh 200 replies are stored under the envelope key.
// Cache failures are logged and never fail the request.
func (c *Client) Cached(ctx context.Context, env convert.Envelope) (convert.Response, error) {
	key := c.base.String() + " " + env.Key()
	if b, ok, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn("cache get", zap.String("key", env.Key()), zap.Error(err))
	} else if ok {
		return convert.Response{Status: http.StatusOK, Body: b}, nil
	}

	resp, err := c.Do(ctx, env, nil)
	if err != nil {
		return resp, err
	}
	if resp.Status == http.StatusOK {
		if err := c.store.Set(ctx, key, resp.Body, c.cacheTTL); err != nil {
			c.log.Warn("cache set", zap.String("key", env.Key()), zap.Error(err))
		}
	}
	return resp, nil
}
