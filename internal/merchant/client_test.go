package merchant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/taler-client/internal/challenge"
	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/model"
	"github.com/and161185/taler-client/internal/transport"
)

// fakeBackend is a merchant backend that challenges every management
// request arriving without evidence.
type fakeBackend struct {
	t   *testing.T
	tan string

	mu          sync.Mutex
	ops         []*http.Request
	opBodies    [][]byte
	requested   []string
	confirmed   map[string]bool
	rechallenge bool
	rejectRetry bool
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	switch {
	case strings.HasPrefix(r.URL.Path, "/management/instances"):
		b.ops = append(b.ops, r)
		b.opBodies = append(b.opBodies, body)
		ev := r.Header.Get(challenge.HeaderChallengeIDs)
		if ev == "" || b.rechallenge {
			b.rechallenge = false
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"challenges":[{"challenge_id":"ch-1","tan_channel":"sms","tan_info":"+41***12"}],"combi_and":true}`))
			return
		}
		if b.rejectRetry {
			writeError(w, http.StatusConflict, 2000, "instance busy")
			return
		}
		for _, id := range strings.Split(ev, ",") {
			if !b.confirmed[id] {
				writeError(w, http.StatusForbidden, 2126, "challenge not solved")
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(r.URL.Path, "/confirm"):
		var req model.ChallengeSolveRequest
		require.NoError(b.t, json.Unmarshal(body, &req))
		if req.Tan != b.tan {
			writeError(w, http.StatusConflict, 2125, "invalid TAN")
			return
		}
		if b.confirmed == nil {
			b.confirmed = map[string]bool{}
		}
		b.confirmed[r.URL.Path[len("/instances/admin/challenge/"):len(r.URL.Path)-len("/confirm")]] = true
		w.WriteHeader(http.StatusNoContent)
	case strings.HasPrefix(r.URL.Path, "/instances/admin/challenge/"):
		b.requested = append(b.requested, r.URL.Path)
		_, _ = w.Write([]byte(`{"solve_expiration":{"t_s":2000},"earliest_retransmission":{"t_s":1000}}`))
	default:
		writeError(w, http.StatusNotFound, 2000, "unknown endpoint")
	}
}

func writeError(w http.ResponseWriter, status, code int, hint string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errs.ErrorDetail{Code: code, Hint: hint})
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tr, err := transport.New(srv.URL+"/", transport.WithToken("sandbox"))
	require.NoError(t, err)
	return New(tr, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func TestClient_DeleteInstanceChallenge(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{t: t, tan: "1234"}
	c := newTestClient(t, b)
	ctx := context.Background()

	f, err := c.DeleteInstance(ctx, "shop", true)
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Equal(t, challenge.Issued, f.State())
	ch, ok := f.Challenges().Find("ch-1")
	require.True(t, ok)
	require.Equal(t, model.TanChannelSMS, ch.TanChannel)

	timing, err := f.Request(ctx, "ch-1")
	require.NoError(t, err)
	require.Equal(t, uint64(2000), timing.SolveExpiration.Seconds())
	require.Equal(t, []string{"/instances/admin/challenge/ch-1"}, b.requested)

	err = f.Confirm(ctx, "ch-1", "0000")
	require.ErrorIs(t, err, errs.ErrConflict)
	var pe *errs.ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 2125, pe.Code)
	require.Len(t, b.ops, 1, "a rejected TAN must not resend the operation")

	require.NoError(t, f.Confirm(ctx, "ch-1", "1234"))
	require.True(t, f.Satisfied())

	next, err := c.Complete(ctx, f)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Equal(t, challenge.Retried, f.State())

	require.Len(t, b.ops, 2)
	retry := b.ops[1]
	require.Equal(t, http.MethodDelete, retry.Method)
	require.Equal(t, "/management/instances/shop", retry.URL.Path)
	require.Equal(t, "purge=YES", retry.URL.RawQuery)
	require.Equal(t, "ch-1", retry.Header.Get(challenge.HeaderChallengeIDs))
	require.Equal(t, b.opBodies[0], b.opBodies[1])

	_, err = c.Complete(ctx, f)
	require.ErrorIs(t, err, errs.ErrAlreadyRetried)
}

func TestClient_CreateInstanceIdenticalRetry(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{t: t, tan: "42"}
	c := newTestClient(t, b)
	ctx := context.Background()

	cfg := model.InstanceConfig{
		ID:   "shop",
		Name: "Shop",
		Auth: model.InstanceAuthConfig{Method: model.AuthMethodToken, Password: "pw"},
	}
	f, err := c.CreateInstance(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, f.Confirm(ctx, "ch-1", "42"))

	next, err := c.Complete(ctx, f)
	require.NoError(t, err)
	require.Nil(t, next)

	require.Len(t, b.opBodies, 2)
	require.Equal(t, b.opBodies[0], b.opBodies[1])
	var sent model.InstanceConfig
	require.NoError(t, json.Unmarshal(b.opBodies[1], &sent))
	require.Equal(t, cfg.ID, sent.ID)
}

func TestClient_CompleteRechallenged(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{t: t, tan: "1"}
	c := newTestClient(t, b)
	ctx := context.Background()

	f, err := c.ChangeAuth(ctx, "shop", model.InstanceAuthConfig{Method: model.AuthMethodExternal})
	require.NoError(t, err)
	require.NoError(t, f.Confirm(ctx, "ch-1", "1"))

	b.mu.Lock()
	b.rechallenge = true
	b.mu.Unlock()

	next, err := c.Complete(ctx, f)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.NotEqual(t, f.ID(), next.ID())
	require.Equal(t, challenge.Issued, next.State())
	require.Equal(t, "management/instances/shop/auth", next.Envelope().Path)
}

func TestClient_CompleteFailedReplyConsumesRetry(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{t: t, tan: "7", rejectRetry: true}
	c := newTestClient(t, b)
	ctx := context.Background()

	f, err := c.DeleteInstance(ctx, "shop", false)
	require.NoError(t, err)
	require.NoError(t, f.Confirm(ctx, "ch-1", "7"))

	next, err := c.Complete(ctx, f)
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Nil(t, next)
	require.Equal(t, challenge.Retried, f.State())

	_, err = c.Complete(ctx, f)
	require.ErrorIs(t, err, errs.ErrAlreadyRetried)
	require.Len(t, b.ops, 2, "the evidence must be sent once")

	g, err := c.Resume(ctx, f.Snapshot())
	require.NoError(t, err)
	_, err = c.Complete(ctx, g)
	require.ErrorIs(t, err, errs.ErrAlreadyRetried)
	require.Len(t, b.ops, 2)
}

func TestClient_UnsolvedEvidenceRejected(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{t: t, tan: "1"}
	c := newTestClient(t, b)
	ctx := context.Background()

	f, err := c.DeleteInstance(ctx, "shop", false)
	require.NoError(t, err)
	_, err = c.Complete(ctx, f)
	require.ErrorIs(t, err, errs.ErrChallengeUnsatisfied)
	require.Len(t, b.ops, 1)
}

func TestClient_ResumeFromSnapshot(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{t: t, tan: "9"}
	c := newTestClient(t, b)
	ctx := context.Background()

	f, err := c.UpdateInstance(ctx, "shop", model.InstanceReconfig{Name: "Shop 2"})
	require.NoError(t, err)
	require.NoError(t, f.Confirm(ctx, "ch-1", "9"))

	raw, err := json.Marshal(f.Snapshot())
	require.NoError(t, err)
	var snap challenge.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	g, err := c.Resume(ctx, snap)
	require.NoError(t, err)
	require.True(t, g.Satisfied())

	next, err := c.Complete(ctx, g)
	require.NoError(t, err)
	require.Nil(t, next)
	require.Equal(t, http.MethodPatch, b.ops[1].Method)
}

// fakeTransport answers every request with one canned reply.
type fakeTransport struct {
	resp  convert.Response
	err   error
	calls []convert.Envelope
}

var _ Transport = (*fakeTransport)(nil)

func (f *fakeTransport) Do(_ context.Context, env convert.Envelope, _ http.Header) (convert.Response, error) {
	f.calls = append(f.calls, env)
	return f.resp, f.err
}

func TestClient_ValidationBeforeSend(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	c := New(tr)
	ctx := context.Background()

	_, err := c.CreateInstance(ctx, model.InstanceConfig{ID: "bad id!", Name: "x", Auth: model.InstanceAuthConfig{Method: model.AuthMethodExternal}})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = c.ChangeAuth(ctx, "shop", model.InstanceAuthConfig{Method: model.AuthMethodToken})
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "token_password", ve.Rule)

	_, err = c.DeleteInstance(ctx, "", false)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = c.CreateOrder(ctx, model.PostOrderRequest{})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "order", ve.Field)

	require.Empty(t, tr.calls)
}

func TestClient_DirectSuccess(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{resp: convert.Response{Status: http.StatusNoContent}}
	c := New(tr)

	f, err := c.DeleteInstance(context.Background(), "shop", false)
	require.NoError(t, err)
	require.Nil(t, f)
	require.Len(t, tr.calls, 1)
	require.Equal(t, "management/instances/shop", tr.calls[0].Path)
	require.Empty(t, tr.calls[0].Query)
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{resp: convert.Response{Status: http.StatusNotFound, Body: []byte(`{"code":2000,"hint":"instance unknown"}`)}}
	c := New(tr)

	_, err := c.GetInstance(context.Background(), "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Contains(t, err.Error(), "instance unknown")

	boom := errors.New("connection reset")
	tr.err = boom
	_, err = c.UpdateInstance(context.Background(), "shop", model.InstanceReconfig{Name: "n"})
	require.ErrorIs(t, err, boom)
}

func TestClient_ChallengeEndpoints(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{resp: convert.Response{Status: http.StatusOK, Body: []byte(`{"solve_expiration":{"t_s":20},"earliest_retransmission":{"t_s":10}}`)}}
	c := New(tr, WithInstance("shop"))

	r, err := c.RequestChallenge(context.Background(), "shop", "ch/1")
	require.NoError(t, err)
	require.Equal(t, uint64(10), r.EarliestRetransmission.Seconds())
	require.Equal(t, "instances/shop/challenge/ch%2F1", tr.calls[0].Path)

	tr.resp = convert.Response{Status: http.StatusNoContent}
	require.NoError(t, c.ConfirmChallenge(context.Background(), "shop", "ch-1", "77"))
	require.Equal(t, "instances/shop/challenge/ch-1/confirm", tr.calls[1].Path)
	require.JSONEq(t, `{"tan":"77"}`, string(tr.calls[1].Body))

	tr.resp = convert.Response{Status: http.StatusAccepted, Body: []byte(`{"challenges":[{"challenge_id":"ch-1","tan_channel":"email"}],"combi_and":false}`)}
	_, err = c.RequestChallenge(context.Background(), "shop", "ch-1")
	require.ErrorIs(t, err, errs.ErrChallengeRequired)
}
