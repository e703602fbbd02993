package model

import (
	"github.com/and161185/taler-client/internal/codec"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/validate"
)

// TanChannel names how a TAN is delivered.
type TanChannel string

// Known TAN channels.
const (
	TanChannelSMS   TanChannel = "sms"
	TanChannelEmail TanChannel = "email"
)

// Challenge is one second-factor confirmation requirement.
type Challenge struct {
	ChallengeID string     `json:"challenge_id" validate:"required"`
	TanChannel  TanChannel `json:"tan_channel" validate:"required"`
	TanInfo     string     `json:"tan_info"` // masked contact address
}

// ChallengeResponse is the body of a 202 reply to a privileged request.
type ChallengeResponse struct {
	Challenges []Challenge `json:"challenges" validate:"dive"`
	// CombiAnd: true means every challenge must be confirmed, false means any one.
	CombiAnd bool `json:"combi_and"`
}

// DecodeChallengeResponse decodes and checks a 202 body.
func DecodeChallengeResponse(raw []byte) (ChallengeResponse, error) {
	obj, err := codec.ParseObject(raw)
	if err != nil {
		return ChallengeResponse{}, err
	}
	if err := codec.RequireFields(obj, "challenges"); err != nil {
		return ChallengeResponse{}, err
	}
	var out ChallengeResponse
	if err := codec.Unmarshal(raw, &out); err != nil {
		return ChallengeResponse{}, err
	}
	if err := validate.Struct(out); err != nil {
		return ChallengeResponse{}, err
	}
	// A 202 that lists nothing to confirm can never be satisfied.
	if len(out.Challenges) == 0 {
		return ChallengeResponse{}, errs.Decodef("challenges", "challenge response lists no challenges")
	}
	return out, nil
}

// Find returns the challenge with the given id.
func (r ChallengeResponse) Find(id string) (Challenge, bool) {
	for _, c := range r.Challenges {
		if c.ChallengeID == id {
			return c, true
		}
	}
	return Challenge{}, false
}

// ChallengeRequestResponse is returned when a TAN was dispatched.
type ChallengeRequestResponse struct {
	// SolveExpiration is when the TAN stops being accepted.
	SolveExpiration Timestamp `json:"solve_expiration"`
	// EarliestRetransmission is when another TAN may be requested.
	EarliestRetransmission Timestamp `json:"earliest_retransmission"`
}

// DecodeChallengeRequestResponse decodes a TAN dispatch reply.
func DecodeChallengeRequestResponse(raw []byte) (ChallengeRequestResponse, error) {
	obj, err := codec.ParseObject(raw)
	if err != nil {
		return ChallengeRequestResponse{}, err
	}
	if err := codec.RequireFields(obj, "solve_expiration", "earliest_retransmission"); err != nil {
		return ChallengeRequestResponse{}, err
	}
	var out ChallengeRequestResponse
	if err := codec.Unmarshal(raw, &out); err != nil {
		return ChallengeRequestResponse{}, err
	}
	return out, nil
}

// ChallengeSolveRequest is the body of a TAN confirmation.
type ChallengeSolveRequest struct {
	Tan string `json:"tan"`
}
