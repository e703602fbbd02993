package merchant

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/model"
)

func TestClient_Async(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{t: t, tan: "5"}
	c := newTestClient(t, b)
	ctx := context.Background()

	f, err := c.DeleteInstanceAsync(ctx, "shop", false).Receive()
	require.NoError(t, err)
	require.NotNil(t, f)

	timing, err := c.RequestChallengeAsync(ctx, c.Instance(), "ch-1").Receive()
	require.NoError(t, err)
	require.Equal(t, uint64(1000), timing.EarliestRetransmission.Seconds())

	_, err = c.ConfirmChallengeAsync(ctx, c.Instance(), "ch-1", "5").Receive()
	require.NoError(t, err)
	require.NoError(t, f.Confirm(ctx, "ch-1", "5"))

	next, err := c.CompleteAsync(ctx, f).Receive()
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestClient_OrdersAsync(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{resp: convert.Response{Status: http.StatusOK, Body: []byte(`{"order_id":"2026.001","token":"TOK"}`)}}
	c := New(tr, WithInstance("shop"))

	amount, err := model.NewAmount("KUDOS", "5")
	require.NoError(t, err)
	req := model.PostOrderRequest{Order: &model.Order{
		Summary:        "Coffee",
		Amount:         &amount,
		FulfillmentURL: "https://shop.example.com/thanks",
	}}
	r, err := c.CreateOrderAsync(context.Background(), req).Receive()
	require.NoError(t, err)
	require.Equal(t, model.PostOrderResponse{OrderID: "2026.001", Token: "TOK"}, r)
	require.Equal(t, http.MethodPost, tr.calls[0].Method)
	require.Equal(t, "instances/shop/private/orders", tr.calls[0].Path)

	tr.resp = convert.Response{Status: http.StatusOK, Body: []byte(`{
		"order_status":"unpaid",
		"taler_pay_uri":"taler://pay/backend.example.com/2026.001/",
		"creation_time":{"t_s":1700000000},
		"summary":"Coffee",
		"total_amount":"KUDOS:5",
		"order_status_url":"https://backend.example.com/orders/2026.001"
	}`)}
	st, err := c.GetOrderAsync(context.Background(), "2026.001").Receive()
	require.NoError(t, err)
	require.Equal(t, model.OrderUnpaid, st.OrderStatus())
	require.Equal(t, "instances/shop/private/orders/2026.001", tr.calls[1].Path)

	tr.resp = convert.Response{Status: http.StatusOK, Body: []byte(`{"name":"Shop","merchant_pub":"MPUB","auth":{"method":"external"}}`)}
	d, err := c.GetInstanceAsync(context.Background(), "shop").Receive()
	require.NoError(t, err)
	require.Equal(t, model.AuthMethodExternal, d.Auth.Method)
	require.Equal(t, "management/instances/shop", tr.calls[2].Path)
}
