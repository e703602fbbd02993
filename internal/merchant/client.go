// Package merchant is a client for the merchant backend: instance
// management, the second-factor challenge endpoints and orders.
//
// Privileged operations return a *challenge.Flow when the backend answers
// with 202 Accepted. The caller solves it (Request, Confirm) and hands it
// back to Complete, which resends the request exactly once.
package merchant

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/taler-client/internal/challenge"
	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/limiter"
	"github.com/and161185/taler-client/internal/model"
)

// DefaultInstance is the instance challenges are issued for unless
// WithInstance says otherwise.
const DefaultInstance = "admin"

// Transport sends envelopes to the backend.
type Transport interface {
	Do(ctx context.Context, env convert.Envelope, header http.Header) (convert.Response, error)
}

// Client talks to one merchant backend as one instance.
type Client struct {
	tr       Transport
	instance string
	limiter  limiter.Limiter
	decode   model.DecodeOptions
	log      *zap.Logger
}

var _ challenge.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithInstance selects the instance used for orders and challenges.
func WithInstance(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.instance = id
		}
	}
}

// WithLimiter shares a retransmission limiter across the flows this client
// starts.
func WithLimiter(l limiter.Limiter) Option { return func(c *Client) { c.limiter = l } }

// WithDecodeOptions controls how order replies are decoded.
func WithDecodeOptions(o model.DecodeOptions) Option { return func(c *Client) { c.decode = o } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a Client sending through tr.
func New(tr Transport, opts ...Option) *Client {
	c := &Client{
		tr:       tr,
		instance: DefaultInstance,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Instance returns the instance the client acts as.
func (c *Client) Instance() string { return c.instance }

func (c *Client) now() time.Time {
	if c.decode.Now != nil {
		return c.decode.Now()
	}
	return time.Now()
}

// instancePath joins elem below instances/{instance}/.
func (c *Client) instancePath(elem ...string) string {
	p := "instances/" + url.PathEscape(c.instance)
	for _, e := range elem {
		p += "/" + e
	}
	return p
}

// privileged sends env and turns a 202 into a flow. A direct success
// returns a nil flow.
func (c *Client) privileged(ctx context.Context, env convert.Envelope) (*challenge.Flow, error) {
	resp, err := c.tr.Do(ctx, env, nil)
	if err != nil {
		return nil, err
	}
	return c.outcome(env, resp)
}

func (c *Client) outcome(env convert.Envelope, resp convert.Response) (*challenge.Flow, error) {
	out, err := convert.DecodeOutcome[struct{}](resp, nil)
	if err != nil {
		return nil, err
	}
	if !out.Challenged() {
		return nil, nil
	}
	return challenge.New(c.instance, env, *out.Challenge, c, c.tr, c.flowOptions()...), nil
}

func (c *Client) flowOptions() []challenge.Option {
	opts := []challenge.Option{challenge.WithLogger(c.log)}
	if c.limiter != nil {
		opts = append(opts, challenge.WithLimiter(c.limiter))
	}
	return opts
}

// Resume rebuilds a flow saved with Flow.Snapshot so that it is solved
// against this client.
func (c *Client) Resume(ctx context.Context, s challenge.Snapshot) (*challenge.Flow, error) {
	return challenge.Restore(ctx, s, c, c.tr, c.flowOptions()...)
}

// Complete resends a satisfied flow's request. The backend may challenge
// again, in which case the new flow is returned.
func (c *Client) Complete(ctx context.Context, f *challenge.Flow) (*challenge.Flow, error) {
	resp, err := f.Retry(ctx)
	if err != nil {
		return nil, err
	}
	return c.outcome(f.Envelope(), resp)
}
