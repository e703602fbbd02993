package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/taler-client/internal/cache"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/model"
	"github.com/and161185/taler-client/internal/transport"
)

const keysJSON = `{
	"version": "20:0:0",
	"base_url": "https://exchange.example.com/",
	"currency": "KUDOS",
	"master_public_key": "MPK",
	"list_issue_date": {"t_s": 1700000000},
	"denominations": [{
		"value": "KUDOS:1", "fee_withdraw": "KUDOS:0.01", "fee_deposit": "KUDOS:0.01",
		"fee_refresh": "KUDOS:0.01", "fee_refund": "KUDOS:0.01",
		"stamp_start": {"t_s": 1}, "stamp_expire_withdraw": {"t_s": 2},
		"stamp_expire_deposit": {"t_s": 3}, "stamp_expire_legal": {"t_s": 4},
		"master_sig": "SIG",
		"denom_pub": {"cipher": "CS", "cs_pub": "K"}
	}],
	"accounts": [{
		"payto_uri": "payto://iban/CH93",
		"master_sig": "SIG",
		"debit_restrictions": [{"type": "regex", "payto_regex": "^payto://iban/CH.*", "human_hint": "Swiss only"}]
	}]
}`

func newServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/keys" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestClient_GetKeysCached(t *testing.T) {
	t.Parallel()

	srv, hits := newServer(t, keysJSON, http.StatusOK)
	tr, err := transport.New(srv.URL+"/", transport.WithCache(cache.NewMemory(16), time.Minute))
	require.NoError(t, err)
	c := New(tr, WithLogger(zaptest.NewLogger(t)))

	for i := 0; i < 3; i++ {
		keys, err := c.GetKeys(context.Background())
		require.NoError(t, err)
		require.Equal(t, "KUDOS", keys.Currency)
		require.Len(t, keys.Denominations, 1)
		require.Len(t, keys.Accounts, 1)
		require.Len(t, keys.Accounts[0].DebitRestrictions, 1)
	}
	require.Equal(t, int32(1), hits.Load())

	keys, err := c.GetKeysAsync(context.Background()).Receive()
	require.NoError(t, err)
	require.Equal(t, "MPK", keys.MasterPublicKey)
	require.Equal(t, int32(1), hits.Load())
}

func TestClient_GetKeysErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, `{"code":1000,"hint":"maintenance"}`, http.StatusServiceUnavailable)
	tr, err := transport.New(srv.URL + "/")
	require.NoError(t, err)

	_, err = New(tr).GetKeys(context.Background())
	var pe *errs.ProtocolError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, http.StatusServiceUnavailable, pe.Status)
	require.Equal(t, "maintenance", pe.Hint)

	mixed := `{"version":"1","base_url":"https://e.example.com/","currency":"EUR","master_public_key":"M",
		"denominations":[{"value":"KUDOS:1","fee_withdraw":"KUDOS:0","fee_deposit":"KUDOS:0","fee_refresh":"KUDOS:0",
		"fee_refund":"KUDOS:0","stamp_start":{"t_s":1},"stamp_expire_withdraw":{"t_s":2},"stamp_expire_deposit":{"t_s":3},
		"stamp_expire_legal":{"t_s":4},"master_sig":"S","denom_pub":{"cipher":"CS","cs_pub":"K"}}]}`
	srv2, _ := newServer(t, mixed, http.StatusOK)
	tr2, err := transport.New(srv2.URL + "/")
	require.NoError(t, err)

	_, err = New(tr2).GetKeys(context.Background())
	require.ErrorIs(t, err, errs.ErrValidation)

	keys, err := New(tr2, WithDecodeOptions(model.DecodeOptions{SkipValidation: true})).GetKeys(context.Background())
	require.NoError(t, err)
	require.Equal(t, "EUR", keys.Currency)
}
