package merchant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/model"
)

// CreateOrder creates an order for the client's instance.
func (c *Client) CreateOrder(ctx context.Context, req model.PostOrderRequest) (model.PostOrderResponse, error) {
	if err := req.Validate(c.now()); err != nil {
		return model.PostOrderResponse{}, err
	}
	env, err := convert.NewEnvelope(http.MethodPost, c.instancePath("private", "orders"), req)
	if err != nil {
		return model.PostOrderResponse{}, err
	}
	resp, err := c.tr.Do(ctx, env, nil)
	if err != nil {
		return model.PostOrderResponse{}, err
	}
	r, err := convert.Expect(resp, model.DecodePostOrderResponse)
	if err != nil {
		return model.PostOrderResponse{}, fmt.Errorf("create order: %w", err)
	}
	return r, nil
}

// GetOrder returns the status of order id. Contract terms embedded in the
// reply are validated unless the client was built with SkipValidation.
func (c *Client) GetOrder(ctx context.Context, id string) (model.OrderStatusResponse, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	env, err := convert.NewEnvelope(http.MethodGet, c.instancePath("private", "orders", url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.tr.Do(ctx, env, nil)
	if err != nil {
		return nil, err
	}
	st, err := convert.Expect(resp, func(b []byte) (model.OrderStatusResponse, error) {
		return model.DecodeOrderStatus(b, c.decode)
	})
	if err != nil {
		return nil, fmt.Errorf("get order %q: %w", id, err)
	}
	return st, nil
}
