package merchant

import (
	"context"

	"github.com/and161185/taler-client/internal/challenge"
	"github.com/and161185/taler-client/internal/model"
	"github.com/and161185/taler-client/internal/transport"
)

// FlowFuture is the pending result of a privileged operation.
type FlowFuture = *transport.Future[*challenge.Flow]

// CreateInstanceAsync is the asynchronous form of CreateInstance.
func (c *Client) CreateInstanceAsync(ctx context.Context, cfg model.InstanceConfig) FlowFuture {
	return transport.Go(func() (*challenge.Flow, error) { return c.CreateInstance(ctx, cfg) })
}

// UpdateInstanceAsync is the asynchronous form of UpdateInstance.
func (c *Client) UpdateInstanceAsync(ctx context.Context, id string, cfg model.InstanceReconfig) FlowFuture {
	return transport.Go(func() (*challenge.Flow, error) { return c.UpdateInstance(ctx, id, cfg) })
}

// DeleteInstanceAsync is the asynchronous form of DeleteInstance.
func (c *Client) DeleteInstanceAsync(ctx context.Context, id string, purge bool) FlowFuture {
	return transport.Go(func() (*challenge.Flow, error) { return c.DeleteInstance(ctx, id, purge) })
}

// ChangeAuthAsync is the asynchronous form of ChangeAuth.
func (c *Client) ChangeAuthAsync(ctx context.Context, id string, auth model.InstanceAuthConfig) FlowFuture {
	return transport.Go(func() (*challenge.Flow, error) { return c.ChangeAuth(ctx, id, auth) })
}

// CompleteAsync is the asynchronous form of Complete.
func (c *Client) CompleteAsync(ctx context.Context, f *challenge.Flow) FlowFuture {
	return transport.Go(func() (*challenge.Flow, error) { return c.Complete(ctx, f) })
}

// RequestChallengeAsync is the asynchronous form of RequestChallenge.
func (c *Client) RequestChallengeAsync(ctx context.Context, instance, id string) *transport.Future[model.ChallengeRequestResponse] {
	return transport.Go(func() (model.ChallengeRequestResponse, error) { return c.RequestChallenge(ctx, instance, id) })
}

// ConfirmChallengeAsync is the asynchronous form of ConfirmChallenge.
func (c *Client) ConfirmChallengeAsync(ctx context.Context, instance, id, tan string) *transport.Future[struct{}] {
	return transport.Go(func() (struct{}, error) { return struct{}{}, c.ConfirmChallenge(ctx, instance, id, tan) })
}

// GetInstanceAsync is the asynchronous form of GetInstance.
func (c *Client) GetInstanceAsync(ctx context.Context, id string) *transport.Future[model.InstanceDetails] {
	return transport.Go(func() (model.InstanceDetails, error) { return c.GetInstance(ctx, id) })
}

// CreateOrderAsync is the asynchronous form of CreateOrder.
func (c *Client) CreateOrderAsync(ctx context.Context, req model.PostOrderRequest) *transport.Future[model.PostOrderResponse] {
	return transport.Go(func() (model.PostOrderResponse, error) { return c.CreateOrder(ctx, req) })
}

// GetOrderAsync is the asynchronous form of GetOrder.
func (c *Client) GetOrderAsync(ctx context.Context, id string) *transport.Future[model.OrderStatusResponse] {
	return transport.Go(func() (model.OrderStatusResponse, error) { return c.GetOrder(ctx, id) })
}
