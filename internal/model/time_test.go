package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/taler-client/internal/errs"
)

func TestTimestamp_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, ts := range []Timestamp{TimestampFromSeconds(0), TimestampFromSeconds(1700000000), Never()} {
		b, err := json.Marshal(ts)
		require.NoError(t, err)
		got, err := ParseTimestamp(b)
		require.NoError(t, err)
		require.Equal(t, ts, got)
	}

	b, err := json.Marshal(Never())
	require.NoError(t, err)
	require.JSONEq(t, `{"t_s":"never"}`, string(b))
}

func TestTimestamp_TimeSaturates(t *testing.T) {
	t.Parallel()

	ts, err := ParseTimestamp([]byte(`{"t_s":18446744073709551615}`))
	require.NoError(t, err)
	tm, ok := ts.Time()
	require.True(t, ok)
	require.True(t, tm.After(time.Unix(1<<40, 0)), tm)
	require.Equal(t, int64(maxUnixSeconds), tm.Unix())

	tm, ok = TimestampFromSeconds(1700000000).Time()
	require.True(t, ok)
	require.Equal(t, int64(1700000000), tm.Unix())
}

func TestParseTimestamp_Invalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`{"t_s":-1}`,
		`{"t_s":"soon"}`,
		`{"t_s":"Never"}`,
		`{"t_s":1.5}`,
		`{"t_s":true}`,
		`{}`,
		`"never"`,
		`5`,
	} {
		_, err := ParseTimestamp([]byte(raw))
		require.ErrorIs(t, err, errs.ErrDecode, raw)
	}

	_, err := ParseTimestamp([]byte(`{"t_s":-5}`))
	require.ErrorContains(t, err, "-5")
}

func TestTimestamp_Ordering(t *testing.T) {
	t.Parallel()

	a := TimestampFromSeconds(10)
	b := TimestampFromSeconds(20)
	require.True(t, a.Before(b))
	require.False(t, b.Before(a))
	require.True(t, b.Before(Never()))
	require.False(t, Never().Before(Never()))
	require.False(t, Never().Before(a))

	tm, ok := a.Time()
	require.True(t, ok)
	require.Equal(t, int64(10), tm.Unix())
	_, ok = Never().Time()
	require.False(t, ok)

	require.Equal(t, uint64(0), TimestampFromTime(time.Unix(-100, 0)).Seconds())
}

func TestRelativeTime_RoundTrip(t *testing.T) {
	t.Parallel()

	maxRel, err := RelativeFromMicros(MaxRelativeMicros)
	require.NoError(t, err)

	for _, r := range []RelativeTime{RelativeFromDuration(0), RelativeFromDuration(90 * time.Second), maxRel, Forever()} {
		b, err := json.Marshal(r)
		require.NoError(t, err)
		got, err := ParseRelativeTime(b)
		require.NoError(t, err)
		require.Equal(t, r, got)
	}

	d, ok := RelativeFromDuration(1500 * time.Millisecond).Duration()
	require.True(t, ok)
	require.Equal(t, 1500*time.Millisecond, d)
	_, ok = Forever().Duration()
	require.False(t, ok)
}

func TestParseRelativeTime_Invalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`{"d_us":9007199254740992}`,
		`{"d_us":-1}`,
		`{"d_us":"never"}`,
		`{"d_us":"infinite"}`,
		`{"t_s":5}`,
	} {
		_, err := ParseRelativeTime([]byte(raw))
		require.ErrorIs(t, err, errs.ErrDecode, raw)
	}

	_, err := RelativeFromMicros(MaxRelativeMicros + 1)
	require.Error(t, err)
}
