package challenge

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/crypto"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/limiter"
	"github.com/and161185/taler-client/internal/model"
)

// Snapshot is the serialisable form of a Flow, used to continue a flow in a
// later process.
type Snapshot struct {
	ID          uuid.UUID                                 `json:"id"`
	Instance    string                                    `json:"instance"`
	Method      string                                    `json:"method"`
	Path        string                                    `json:"path"`
	Query       string                                    `json:"query,omitempty"`
	Body        []byte                                    `json:"body,omitempty"`
	Fingerprint []byte                                    `json:"fingerprint"`
	Challenges  model.ChallengeResponse                   `json:"challenges"`
	States      map[string]string                         `json:"states"`
	Timing      map[string]model.ChallengeRequestResponse `json:"timing,omitempty"`
	Retried     bool                                      `json:"retried"`
}

// Snapshot captures the flow.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Snapshot{
		ID:          f.id,
		Instance:    f.instance,
		Method:      f.env.Method,
		Path:        f.env.Path,
		Query:       f.env.Query.Encode(),
		Body:        append([]byte(nil), f.env.Body...),
		Fingerprint: append([]byte(nil), f.print...),
		Challenges:  f.set,
		States:      make(map[string]string, len(f.states)),
		Retried:     f.retried,
	}
	for id, st := range f.states {
		s.States[id] = st.String()
	}
	if len(f.timing) > 0 {
		s.Timing = make(map[string]model.ChallengeRequestResponse, len(f.timing))
		for id, t := range f.timing {
			s.Timing[id] = t
		}
	}
	return s
}

// Restore rebuilds a flow from s. The stored body must still match the
// fingerprint taken when the challenge was issued.
func Restore(ctx context.Context, s Snapshot, backend Backend, sender Sender, opts ...Option) (*Flow, error) {
	q, err := url.ParseQuery(s.Query)
	if err != nil {
		return nil, fmt.Errorf("restore flow %s: query: %w", s.ID, err)
	}
	env := convert.Envelope{Method: s.Method, Path: s.Path, Body: s.Body}
	if len(q) > 0 {
		env.Query = q
	}
	if !crypto.SameFingerprint(fingerprint(env), s.Fingerprint) {
		return nil, fmt.Errorf("restore flow %s: %w", s.ID, errs.ErrBodyMismatch)
	}

	f := newFlow(s.ID, s.Instance, env.Clone(), s.Challenges, backend, sender, opts)
	f.print = append([]byte(nil), s.Fingerprint...)
	f.retried = s.Retried
	for _, c := range s.Challenges.Challenges {
		st, ok := ParseState(s.States[c.ChallengeID])
		if !ok {
			st = Issued
		}
		f.states[c.ChallengeID] = st
	}
	for id, t := range s.Timing {
		if _, ok := f.states[id]; !ok {
			continue
		}
		f.timing[id] = t
		if at, ok := t.EarliestRetransmission.Time(); ok {
			if err := f.limiter.Record(ctx, limiter.Key(s.Instance, id), at); err != nil {
				return nil, fmt.Errorf("restore flow %s: %w", s.ID, err)
			}
		}
	}
	return f, nil
}
