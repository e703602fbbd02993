// Package exchange is a client for the exchange's public key material.
package exchange

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/model"
	"github.com/and161185/taler-client/internal/transport"
)

// Fetcher performs cacheable reads.
type Fetcher interface {
	Cached(ctx context.Context, env convert.Envelope) (convert.Response, error)
}

// Client reads from one exchange.
type Client struct {
	f      Fetcher
	decode model.DecodeOptions
	log    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDecodeOptions controls how replies are decoded.
func WithDecodeOptions(o model.DecodeOptions) Option { return func(c *Client) { c.decode = o } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a Client reading through f.
func New(f Fetcher, opts ...Option) *Client {
	c := &Client{f: f, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetKeys fetches /keys: denomination keys and the wire accounts with their
// debit and credit restrictions.
func (c *Client) GetKeys(ctx context.Context) (model.ExchangeKeys, error) {
	env, err := convert.NewEnvelope(http.MethodGet, "keys", nil)
	if err != nil {
		return model.ExchangeKeys{}, err
	}
	resp, err := c.f.Cached(ctx, env)
	if err != nil {
		return model.ExchangeKeys{}, err
	}
	keys, err := convert.Expect(resp, func(b []byte) (model.ExchangeKeys, error) {
		return model.DecodeExchangeKeys(b, c.decode)
	})
	if err != nil {
		return model.ExchangeKeys{}, fmt.Errorf("get keys: %w", err)
	}
	c.log.Debug("exchange keys",
		zap.Int("denominations", len(keys.Denominations)),
		zap.Int("accounts", len(keys.Accounts)),
	)
	return keys, nil
}

// GetKeysAsync is the asynchronous form of GetKeys.
func (c *Client) GetKeysAsync(ctx context.Context) *transport.Future[model.ExchangeKeys] {
	return transport.Go(func() (model.ExchangeKeys, error) { return c.GetKeys(ctx) })
}
