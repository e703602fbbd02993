// Package validate evaluates ordered validation rules. The first violated
// rule wins; failures are never accumulated.
package validate

import "github.com/and161185/taler-client/internal/errs"

// Rule is one predicate with the message reported when it does not hold.
type Rule struct {
	Field   string
	Name    string
	Message string
	// Holds reports whether the rule is satisfied.
	Holds func() bool
}

// Run evaluates rules in order and returns the first failure.
func Run(rules ...Rule) error {
	for _, r := range rules {
		if r.Holds() {
			continue
		}
		return &errs.ValidationError{Field: r.Field, Rule: r.Name, Message: r.Message}
	}
	return nil
}

// Chain runs the given stages in order, stopping at the first error.
func Chain(stages ...func() error) error {
	for _, s := range stages {
		if err := s(); err != nil {
			return err
		}
	}
	return nil
}
