// Package tier provides a small ordered-strategy evaluator. Callers list
// strategies in order of preference; the first one to succeed wins. Used
// for table discovery, dropdown matching, and results-frame access, where
// the precedence must stay explicit and independently testable.
package tier

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Strategy is one candidate approach. Try returns the value and true on
// success; false means "not applicable here, try the next one". A non-nil
// error also falls through to the next strategy but is logged.
type Strategy[T any] struct {
	Name string
	Try  func() (T, bool, error)
}

// Evaluate runs strategies in order and returns the first success along
// with the name of the winning strategy.
func Evaluate[T any](what string, strategies []Strategy[T]) (T, string, error) {
	var zero T
	for _, s := range strategies {
		v, ok, err := s.Try()
		if err != nil {
			zap.L().Debug("tier: strategy errored, trying next",
				zap.String("subject", what),
				zap.String("strategy", s.Name),
				zap.Error(err),
			)
			continue
		}
		if ok {
			return v, s.Name, nil
		}
	}
	return zero, "", eris.Errorf("tier: no strategy succeeded for %s", what)
}
