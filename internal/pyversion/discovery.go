// Package pyversion discovers which concrete CPython versions are
// currently available, via an ordered chain of strategies.
package pyversion

import (
	"context"
	"fmt"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// DiscoveryStrategy knows one way to produce a list of published or
// locally-installed Python version strings (e.g. "3.11.9").
type DiscoveryStrategy interface {
	Name() string
	Discover(ctx context.Context) ([]string, error)
}

// Discover tries each strategy in order. The first strategy that returns a
// non-empty list containing at least one version inside [min, max) wins;
// a strategy that errors, or whose result has no version in range, is
// skipped in favor of the next one. An error is returned only once every
// strategy has been exhausted.
func Discover(ctx context.Context, strategies []DiscoveryStrategy, min, max string) ([]string, error) {
	var lastErr error

	for _, s := range strategies {
		versions, err := s.Discover(ctx)
		if err != nil {
			lastErr = fmt.Errorf("pyversion: strategy %s: %w", s.Name(), err)

			continue
		}

		if len(versions) == 0 {
			continue
		}

		inRange, err := filterInRange(versions, min, max)
		if err != nil {
			lastErr = fmt.Errorf("pyversion: strategy %s: %w", s.Name(), err)

			continue
		}

		if len(inRange) > 0 {
			return inRange, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("pyversion: no strategy produced an in-range version: %w", lastErr)
	}

	return nil, fmt.Errorf("pyversion: no strategy produced an in-range version")
}

func filterInRange(versions []string, min, max string) ([]string, error) {
	var minSpec, maxSpec *pep440.Specifiers

	if min != "" {
		s, err := pep440.NewSpecifiers(">=" + min)
		if err != nil {
			return nil, fmt.Errorf("parsing min bound %q: %w", min, err)
		}

		minSpec = &s
	}

	if max != "" {
		s, err := pep440.NewSpecifiers(max)
		if err != nil {
			return nil, fmt.Errorf("parsing max bound %q: %w", max, err)
		}

		maxSpec = &s
	}

	var out []string

	for _, raw := range versions {
		v, err := pep440.Parse(raw)
		if err != nil {
			continue
		}

		if minSpec != nil && !minSpec.Check(v) {
			continue
		}

		if maxSpec != nil && !maxSpec.Check(v) {
			continue
		}

		out = append(out, raw)
	}

	return out, nil
}
