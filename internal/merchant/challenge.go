package merchant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/model"
)

func challengePath(instance, id string, elem ...string) string {
	p := "instances/" + url.PathEscape(instance) + "/challenge/" + url.PathEscape(id)
	for _, e := range elem {
		p += "/" + e
	}
	return p
}

// RequestChallenge asks the backend to send the TAN for challenge id.
func (c *Client) RequestChallenge(ctx context.Context, instance, id string) (model.ChallengeRequestResponse, error) {
	env, err := convert.NewEnvelope(http.MethodPost, challengePath(instance, id), struct{}{})
	if err != nil {
		return model.ChallengeRequestResponse{}, err
	}
	resp, err := c.tr.Do(ctx, env, nil)
	if err != nil {
		return model.ChallengeRequestResponse{}, err
	}
	r, err := convert.Expect(resp, model.DecodeChallengeRequestResponse)
	if err != nil {
		return model.ChallengeRequestResponse{}, fmt.Errorf("request challenge %q: %w", id, err)
	}
	return r, nil
}

// ConfirmChallenge submits the TAN the user received for challenge id.
func (c *Client) ConfirmChallenge(ctx context.Context, instance, id, tan string) error {
	env, err := convert.NewEnvelope(http.MethodPost, challengePath(instance, id, "confirm"), model.ChallengeSolveRequest{Tan: tan})
	if err != nil {
		return err
	}
	resp, err := c.tr.Do(ctx, env, nil)
	if err != nil {
		return err
	}
	if _, err := convert.Expect[struct{}](resp, nil); err != nil {
		return fmt.Errorf("confirm challenge %q: %w", id, err)
	}
	return nil
}
