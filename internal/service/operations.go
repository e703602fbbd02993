// Package service runs privileged merchant operations end to end and keeps
// pending operations between process invocations.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/taler-client/internal/challenge"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/model"
)

// ErrSkipChallenge is returned by a Solver to pass on a challenge. In an
// any-of set the next challenge is tried.
var ErrSkipChallenge = errors.New("challenge skipped")

// Solver obtains the TAN for a challenge, typically by asking the user.
type Solver interface {
	Solve(ctx context.Context, ch model.Challenge, timing model.ChallengeRequestResponse) (tan string, err error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, ch model.Challenge, timing model.ChallengeRequestResponse) (string, error)

// Solve calls fn.
func (fn SolverFunc) Solve(ctx context.Context, ch model.Challenge, timing model.ChallengeRequestResponse) (string, error) {
	return fn(ctx, ch, timing)
}

// Completer resends satisfied flows.
type Completer interface {
	Complete(ctx context.Context, f *challenge.Flow) (*challenge.Flow, error)
}

// StartFunc issues a privileged operation.
type StartFunc func(ctx context.Context) (*challenge.Flow, error)

// OperationService runs privileged operations to completion.
type OperationService interface {
	// Run starts the operation and solves every challenge the backend issues.
	Run(ctx context.Context, op string, start StartFunc) error
	// Solve confirms enough challenges of f to satisfy it.
	Solve(ctx context.Context, f *challenge.Flow) error
}

type OperationServiceImpl struct {
	m         Completer
	solver    Solver
	maxRounds int
	attempts  int
	log       *zap.Logger
}

// OperationOption configures OperationServiceImpl.
type OperationOption func(*OperationServiceImpl)

// WithMaxRounds bounds how often a resend may be challenged again.
func WithMaxRounds(n int) OperationOption {
	return func(s *OperationServiceImpl) {
		if n > 0 {
			s.maxRounds = n
		}
	}
}

// WithTanAttempts sets how many TANs are asked for per challenge before a
// rejection is returned.
func WithTanAttempts(n int) OperationOption {
	return func(s *OperationServiceImpl) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) OperationOption {
	return func(s *OperationServiceImpl) { s.log = l }
}

// NewOperationService constructs OperationService.
func NewOperationService(m Completer, solver Solver, opts ...OperationOption) *OperationServiceImpl {
	s := &OperationServiceImpl{m: m, solver: solver, maxRounds: 3, attempts: 1, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes start, then alternates solving and resending until the
// backend answers directly.
func (s *OperationServiceImpl) Run(ctx context.Context, op string, start StartFunc) error {
	f, err := start(ctx)
	for round := 0; ; round++ {
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if f == nil {
			return nil
		}
		if round == s.maxRounds {
			return fmt.Errorf("%s: %w: still challenged after %d rounds", op, errs.ErrChallengeRequired, round)
		}
		if err := s.Solve(ctx, f); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		f, err = s.m.Complete(ctx, f)
	}
}

// Solve walks the challenges in issue order until the flow is satisfied.
func (s *OperationServiceImpl) Solve(ctx context.Context, f *challenge.Flow) error {
	set := f.Challenges()
	for _, ch := range set.Challenges {
		if f.Satisfied() {
			break
		}
		if st, _ := f.ChallengeState(ch.ChallengeID); st == challenge.Confirmed {
			continue
		}
		err := s.solveOne(ctx, f, ch)
		if err == nil {
			continue
		}
		if !set.CombiAnd && errors.Is(err, ErrSkipChallenge) {
			s.log.Info("challenge skipped", zap.String("flow", f.ID().String()), zap.String("challenge", ch.ChallengeID))
			continue
		}
		return err
	}
	if !f.Satisfied() {
		return errs.ErrChallengeUnsatisfied
	}
	return nil
}

func (s *OperationServiceImpl) solveOne(ctx context.Context, f *challenge.Flow, ch model.Challenge) error {
	timing, err := f.Request(ctx, ch.ChallengeID)
	if errors.Is(err, errs.ErrRateLimited) {
		// A TAN is already on its way.
		prev, ok := f.Timing(ch.ChallengeID)
		if !ok {
			return err
		}
		timing, err = prev, nil
	}
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		tan, err := s.solver.Solve(ctx, ch, timing)
		if err != nil {
			return err
		}
		err = f.Confirm(ctx, ch.ChallengeID, tan)
		if err == nil || !errors.Is(err, errs.ErrConflict) || attempt >= s.attempts {
			return err
		}
		s.log.Warn("tan rejected",
			zap.String("flow", f.ID().String()),
			zap.String("challenge", ch.ChallengeID),
			zap.Int("attempt", attempt),
		)
	}
}
