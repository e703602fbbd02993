package merchant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/and161185/taler-client/internal/challenge"
	"github.com/and161185/taler-client/internal/convert"
	"github.com/and161185/taler-client/internal/errs"
	"github.com/and161185/taler-client/internal/model"
)

func managementPath(id string, elem ...string) string {
	p := "management/instances"
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	for _, e := range elem {
		p += "/" + e
	}
	return p
}

func requireID(id string) error {
	if id == "" {
		return &errs.ValidationError{Field: "id", Rule: "required", Message: `missing required field "id"`}
	}
	return nil
}

// CreateInstance creates a merchant instance.
func (c *Client) CreateInstance(ctx context.Context, cfg model.InstanceConfig) (*challenge.Flow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	env, err := convert.NewEnvelope(http.MethodPost, managementPath(""), cfg)
	if err != nil {
		return nil, err
	}
	return c.privileged(ctx, env)
}

// UpdateInstance replaces the settings of instance id.
func (c *Client) UpdateInstance(ctx context.Context, id string, cfg model.InstanceReconfig) (*challenge.Flow, error) {
	if err := validateAll(requireID(id), cfg.Validate()); err != nil {
		return nil, err
	}
	env, err := convert.NewEnvelope(http.MethodPatch, managementPath(id), cfg)
	if err != nil {
		return nil, err
	}
	return c.privileged(ctx, env)
}

// DeleteInstance disables instance id, or removes all of its data when
// purge is set.
func (c *Client) DeleteInstance(ctx context.Context, id string, purge bool) (*challenge.Flow, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	env, err := convert.NewEnvelope(http.MethodDelete, managementPath(id), nil)
	if err != nil {
		return nil, err
	}
	if purge {
		env = env.WithQuery("purge", "YES")
	}
	return c.privileged(ctx, env)
}

// ChangeAuth changes how clients authenticate against instance id.
func (c *Client) ChangeAuth(ctx context.Context, id string, auth model.InstanceAuthConfig) (*challenge.Flow, error) {
	if err := validateAll(requireID(id), auth.Validate()); err != nil {
		return nil, err
	}
	env, err := convert.NewEnvelope(http.MethodPost, managementPath(id, "auth"), auth)
	if err != nil {
		return nil, err
	}
	return c.privileged(ctx, env)
}

// GetInstance returns the details of instance id.
func (c *Client) GetInstance(ctx context.Context, id string) (model.InstanceDetails, error) {
	if err := requireID(id); err != nil {
		return model.InstanceDetails{}, err
	}
	env, err := convert.NewEnvelope(http.MethodGet, managementPath(id), nil)
	if err != nil {
		return model.InstanceDetails{}, err
	}
	resp, err := c.tr.Do(ctx, env, nil)
	if err != nil {
		return model.InstanceDetails{}, err
	}
	d, err := convert.Expect(resp, model.DecodeInstanceDetails)
	if err != nil {
		return model.InstanceDetails{}, fmt.Errorf("get instance %q: %w", id, err)
	}
	return d, nil
}

// validateAll returns the first non-nil error.
func validateAll(errList ...error) error {
	for _, err := range errList {
		if err != nil {
			return err
		}
	}
	return nil
}
