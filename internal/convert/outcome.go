package convert

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/model"
)

// Response is what the transport hands back: status, headers and body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decoder turns a success body into T.
type Decoder[T any] func([]byte) (T, error)

// Outcome is either a direct result or a challenge the caller must solve.
type Outcome[T any] struct {
	Value     T
	Challenge *model.ChallengeResponse
}

// Challenged reports whether the backend asked for a second factor.
func (o Outcome[T]) Challenged() bool { return o.Challenge != nil }

// DecodeOutcome maps a reply: 200/201 decode the body, 204 yields the zero
// value, 202 yields the challenge set and 4xx/5xx a *errs.ProtocolError.
// A nil decode ignores any success body.
func DecodeOutcome[T any](resp Response, decode Decoder[T]) (Outcome[T], error) {
	var out Outcome[T]
	switch {
	case resp.Status == http.StatusOK || resp.Status == http.StatusCreated:
		if decode == nil {
			return out, nil
		}
		v, err := decode(resp.Body)
		if err != nil {
			return out, err
		}
		out.Value = v
		return out, nil
	case resp.Status == http.StatusNoContent:
		return out, nil
	case resp.Status == http.StatusAccepted:
		ch, err := model.DecodeChallengeResponse(resp.Body)
		if err != nil {
			return out, fmt.Errorf("challenge response: %w", err)
		}
		out.Challenge = &ch
		return out, nil
	case resp.Status >= 400:
		return out, ProtocolErrorFrom(resp)
	default:
		return out, &errs.ProtocolError{
			Status:      resp.Status,
			ErrorDetail: errs.ErrorDetail{Hint: "unexpected status " + http.StatusText(resp.Status)},
			Err:         errs.ErrProtocol,
		}
	}
}

// Expect is DecodeOutcome for endpoints that are never challenge-gated;
// a 202 is reported as errs.ErrChallengeRequired.
func Expect[T any](resp Response, decode Decoder[T]) (T, error) {
	out, err := DecodeOutcome(resp, decode)
	if err != nil {
		return out.Value, err
	}
	if out.Challenged() {
		var zero T
		return zero, fmt.Errorf("%w: %d challenge(s) issued", errs.ErrChallengeRequired, len(out.Challenge.Challenges))
	}
	return out.Value, nil
}

// ProtocolErrorFrom builds the error for a 4xx/5xx reply. Bodies that are not
// an error detail fall back to the status text as hint.
func ProtocolErrorFrom(resp Response) *errs.ProtocolError {
	pe := &errs.ProtocolError{Status: resp.Status, Err: statusSentinel(resp.Status)}
	var detail errs.ErrorDetail
	if len(resp.Body) > 0 && json.Unmarshal(resp.Body, &detail) == nil {
		pe.ErrorDetail = detail
	}
	if pe.Hint == "" {
		pe.Hint = http.StatusText(resp.Status)
	}
	return pe
}

func statusSentinel(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	case http.StatusConflict:
		return errs.ErrConflict
	case http.StatusTooManyRequests:
		return errs.ErrRateLimited
	default:
		return errs.ErrProtocol
	}
}
