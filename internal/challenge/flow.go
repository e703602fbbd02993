// Package challenge drives privileged operations the backend refused to run
// without second-factor confirmation: request a TAN per challenge, confirm
// it, then resend the original request once with the confirmed ids.
package challenge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/crypto"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/limiter"
	"github.com/and161185/taler-client/internal/model"
)

// HeaderChallengeIDs carries the confirmed challenge ids on the retry.
const HeaderChallengeIDs = "Taler-Challenge-Ids"

// Backend performs the TAN exchange for one challenge.
type Backend interface {
	RequestChallenge(ctx context.Context, instance, challengeID string) (model.ChallengeRequestResponse, error)
	ConfirmChallenge(ctx context.Context, instance, challengeID, tan string) error
}

// Sender sends an envelope and returns the raw reply.
type Sender interface {
	Do(ctx context.Context, env convert.Envelope, header http.Header) (convert.Response, error)
}

// Flow is the client side of one challenged operation. It is safe for
// concurrent use; backend calls run without holding the lock.
type Flow struct {
	id       uuid.UUID
	instance string
	env      convert.Envelope
	print    []byte
	set      model.ChallengeResponse

	backend Backend
	sender  Sender
	limiter limiter.Limiter
	log     *zap.Logger

	mu      sync.Mutex
	states  map[string]State
	timing  map[string]model.ChallengeRequestResponse
	retried bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithLimiter sets the retransmission limiter. The default allows every request
// but still honours earliest_retransmission within the flow.
func WithLimiter(l limiter.Limiter) Option { return func(f *Flow) { f.limiter = l } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(f *Flow) { f.log = l } }

// New starts a flow for the request env that was answered with set.
func New(instance string, env convert.Envelope, set model.ChallengeResponse, backend Backend, sender Sender, opts ...Option) *Flow {
	id, err := uuid.NewV4()
	if err != nil {
		id = uuid.Nil
	}
	f := newFlow(id, instance, env.Clone(), set, backend, sender, opts)
	f.print = fingerprint(f.env)
	for _, c := range set.Challenges {
		f.states[c.ChallengeID] = Issued
	}
	f.log.Info("challenge issued",
		zap.String("flow", f.id.String()),
		zap.String("instance", instance),
		zap.String("op", env.Method+" "+env.Path),
		zap.Int("challenges", len(set.Challenges)),
		zap.Bool("combi_and", set.CombiAnd),
	)
	return f
}

func newFlow(id uuid.UUID, instance string, env convert.Envelope, set model.ChallengeResponse, backend Backend, sender Sender, opts []Option) *Flow {
	f := &Flow{
		id:       id,
		instance: instance,
		env:      env,
		set:      set,
		backend:  backend,
		sender:   sender,
		limiter:  limiter.NewMemory(uint32(max(len(set.Challenges), 1))),
		log:      zap.NewNop(),
		states:   make(map[string]State, len(set.Challenges)),
		timing:   make(map[string]model.ChallengeRequestResponse),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func fingerprint(env convert.Envelope) []byte {
	return crypto.Fingerprint(env.Method, env.Path, env.Query.Encode(), env.Body)
}

// ID identifies the flow in logs and on disk.
func (f *Flow) ID() uuid.UUID { return f.id }

// Instance is the instance whose challenge endpoints are used.
func (f *Flow) Instance() string { return f.instance }

// Envelope returns a copy of the original request.
func (f *Flow) Envelope() convert.Envelope { return f.env.Clone() }

// Challenges returns the challenge set of the 202 reply.
func (f *Flow) Challenges() model.ChallengeResponse { return f.set }

// State summarises the flow: the furthest step any challenge reached, with
// Satisfied and Retried taking precedence.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.retried:
		return Retried
	case f.satisfiedLocked():
		return Satisfied
	}
	st := Issued
	for _, s := range f.states {
		if s > st {
			st = s
		}
	}
	return st
}

// ChallengeState returns the state of one challenge.
func (f *Flow) ChallengeState(id string) (State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[id]
	return s, ok
}

// Timing returns the reply of the last TAN request for id.
func (f *Flow) Timing(id string) (model.ChallengeRequestResponse, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.timing[id]
	return t, ok
}

func (f *Flow) check(id string) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retried {
		return 0, errs.ErrAlreadyRetried
	}
	s, ok := f.states[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", errs.ErrUnknownChallenge, id)
	}
	return s, nil
}

// Request asks the backend to send a TAN for challenge id. It fails with
// errs.ErrRateLimited before the previous earliest_retransmission.
func (f *Flow) Request(ctx context.Context, id string) (model.ChallengeRequestResponse, error) {
	s, err := f.check(id)
	if err != nil {
		return model.ChallengeRequestResponse{}, err
	}
	if s == Confirmed {
		return model.ChallengeRequestResponse{}, fmt.Errorf("challenge %q: %w: already confirmed", id, errs.ErrConflict)
	}
	key := limiter.Key(f.instance, id)
	ok, wait, err := f.limiter.Allow(ctx, key)
	if err != nil {
		return model.ChallengeRequestResponse{}, fmt.Errorf("retransmission check: %w", err)
	}
	if !ok {
		return model.ChallengeRequestResponse{}, fmt.Errorf("%w: next TAN for %q in %s", errs.ErrRateLimited, id, wait.Round(time.Second))
	}

	resp, err := f.backend.RequestChallenge(ctx, f.instance, id)
	if err != nil {
		f.log.Warn("tan request failed", zap.String("flow", f.id.String()), zap.String("challenge", id), zap.Error(err))
		return model.ChallengeRequestResponse{}, err
	}
	if t, ok := resp.EarliestRetransmission.Time(); ok {
		if err := f.limiter.Record(ctx, key, t); err != nil {
			f.log.Warn("retransmission record", zap.String("challenge", id), zap.Error(err))
		}
	}

	f.mu.Lock()
	if f.states[id] != Confirmed {
		f.states[id] = Requested
	}
	f.timing[id] = resp
	f.mu.Unlock()

	f.log.Info("tan requested",
		zap.String("flow", f.id.String()),
		zap.String("challenge", id),
		zap.Stringer("solve_expiration", resp.SolveExpiration),
	)
	return resp, nil
}

// Confirm submits tan for challenge id. On failure the challenge keeps its
// previous state and the backend error is returned; other confirmed
// challenges are unaffected. Confirming a confirmed challenge is a no-op.
func (f *Flow) Confirm(ctx context.Context, id, tan string) error {
	s, err := f.check(id)
	if err != nil {
		return err
	}
	if s == Confirmed {
		return nil
	}
	if err := f.backend.ConfirmChallenge(ctx, f.instance, id, tan); err != nil {
		f.log.Warn("tan rejected", zap.String("flow", f.id.String()), zap.String("challenge", id), zap.Error(err))
		return err
	}

	f.mu.Lock()
	f.states[id] = Confirmed
	satisfied := f.satisfiedLocked()
	f.mu.Unlock()

	if err := f.limiter.Reset(ctx, limiter.Key(f.instance, id)); err != nil {
		f.log.Warn("retransmission reset", zap.String("challenge", id), zap.Error(err))
	}
	f.log.Info("tan confirmed",
		zap.String("flow", f.id.String()),
		zap.String("challenge", id),
		zap.Bool("satisfied", satisfied),
	)
	return nil
}

// Satisfied reports whether enough challenges are confirmed: all of them
// when combi_and is set, otherwise at least one.
func (f *Flow) Satisfied() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.satisfiedLocked()
}

func (f *Flow) satisfiedLocked() bool {
	if len(f.set.Challenges) == 0 {
		return false
	}
	n := len(f.confirmedLocked())
	if f.set.CombiAnd {
		return n == len(f.set.Challenges)
	}
	return n > 0
}

// Confirmed returns the confirmed challenge ids in issue order.
func (f *Flow) Confirmed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmedLocked()
}

func (f *Flow) confirmedLocked() []string {
	var ids []string
	for _, c := range f.set.Challenges {
		if f.states[c.ChallengeID] == Confirmed {
			ids = append(ids, c.ChallengeID)
		}
	}
	return ids
}

// Evidence is the HeaderChallengeIDs value for the retry.
func (f *Flow) Evidence() string {
	return strings.Join(f.Confirmed(), ",")
}

// Retry resends the original request with the evidence header. It is allowed
// once, after the flow is satisfied. The reply is returned undecoded. Only a
// transport error with no reply status leaves the flow retryable; once the
// backend answered, the retry is spent.
func (f *Flow) Retry(ctx context.Context) (convert.Response, error) {
	env := f.env.Clone()
	if !crypto.SameFingerprint(fingerprint(env), f.print) {
		return convert.Response{}, errs.ErrBodyMismatch
	}

	f.mu.Lock()
	switch {
	case f.retried:
		f.mu.Unlock()
		return convert.Response{}, errs.ErrAlreadyRetried
	case !f.satisfiedLocked():
		f.mu.Unlock()
		return convert.Response{}, errs.ErrChallengeUnsatisfied
	}
	evidence := strings.Join(f.confirmedLocked(), ",")
	f.retried = true
	f.mu.Unlock()

	resp, err := f.sender.Do(ctx, env, http.Header{HeaderChallengeIDs: {evidence}})
	if err != nil {
		if resp.Status == 0 {
			f.mu.Lock()
			f.retried = false
			f.mu.Unlock()
		}
		return convert.Response{}, err
	}
	f.log.Info("operation retried",
		zap.String("flow", f.id.String()),
		zap.String("op", env.Method+" "+env.Path),
		zap.String("evidence", evidence),
		zap.Int("status", resp.Status),
	)
	return resp, nil
}
