// Package pathdeps discovers wheels produced by sibling, path-referenced
// Python projects (the "path dependency" case: a requirement that points at
// a local project directory rather than an index), via a pluggable,
// ordered set of project-manager strategies.
package pathdeps

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Strategy knows how to recognize a project directory as belonging to a
// particular build backend and locate its built wheels. Only Default is
// fully implemented here; Poetry/Pdm/Hatch are named stubs matching the
// out-of-scope project-manager conventions.
type Strategy interface {
	Name() string
	// Applies reports whether this strategy recognizes projectDir as one
	// of its kind (e.g. by inspecting build-system.build-backend).
	Applies(projectDir string) (bool, error)
	// DiscoverWheels returns the built wheel paths for projectDir.
	DiscoverWheels(projectDir string) ([]string, error)
}

// ErrUnsupportedProjectManager is returned by the non-default strategy
// stubs: recognizing these conventions is out of scope for the core.
var ErrUnsupportedProjectManager = fmt.Errorf("pathdeps: project-manager convention not supported by the core")

// DefaultStrategy applies to any project directory and looks for built
// wheels under "{projectDir}/dist/*.whl", the convention every Python
// build backend (setuptools, poetry, pdm, hatch) shares for its output.
type DefaultStrategy struct{}

var _ Strategy = DefaultStrategy{}

func (DefaultStrategy) Name() string { return "default" }

func (DefaultStrategy) Applies(_ string) (bool, error) { return true, nil }

func (DefaultStrategy) DiscoverWheels(projectDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(projectDir, "dist", "*.whl"))
	if err != nil {
		return nil, fmt.Errorf("pathdeps: globbing %s/dist: %w", projectDir, err)
	}

	sort.Strings(matches)

	return matches, nil
}

// PoetryStrategy, PdmStrategy, and HatchStrategy are named stubs: the core
// declares their interfaces but defers actual detection of
// poetry/pdm/hatch-specific pyproject.toml conventions to the surrounding
// CLI tooling, per the spec's explicit non-goal.
type PoetryStrategy struct{}

var _ Strategy = PoetryStrategy{}

func (PoetryStrategy) Name() string                          { return "poetry" }
func (PoetryStrategy) Applies(string) (bool, error)           { return false, nil }
func (PoetryStrategy) DiscoverWheels(string) ([]string, error) { return nil, ErrUnsupportedProjectManager }

type PdmStrategy struct{}

var _ Strategy = PdmStrategy{}

func (PdmStrategy) Name() string                          { return "pdm" }
func (PdmStrategy) Applies(string) (bool, error)           { return false, nil }
func (PdmStrategy) DiscoverWheels(string) ([]string, error) { return nil, ErrUnsupportedProjectManager }

type HatchStrategy struct{}

var _ Strategy = HatchStrategy{}

func (HatchStrategy) Name() string                          { return "hatch" }
func (HatchStrategy) Applies(string) (bool, error)           { return false, nil }
func (HatchStrategy) DiscoverWheels(string) ([]string, error) { return nil, ErrUnsupportedProjectManager }

// DefaultRegistry is the ordered strategy chain the orchestrator uses:
// poetry and pdm and hatch are tried first but never apply (their Applies
// always reports false), so default, which always applies and runs last,
// handles every directory.
func DefaultRegistry() []Strategy {
	return []Strategy{PoetryStrategy{}, PdmStrategy{}, HatchStrategy{}, DefaultStrategy{}}
}

// Discover finds the wheel(s) built by projectDir using the first strategy
// in registry that applies.
func Discover(registry []Strategy, projectDir string) ([]string, error) {
	for _, s := range registry {
		ok, err := s.Applies(projectDir)
		if err != nil {
			return nil, fmt.Errorf("pathdeps: strategy %s: %w", s.Name(), err)
		}

		if !ok {
			continue
		}

		wheels, err := s.DiscoverWheels(projectDir)
		if err != nil {
			return nil, fmt.Errorf("pathdeps: strategy %s: %w", s.Name(), err)
		}

		return wheels, nil
	}

	return nil, fmt.Errorf("pathdeps: no strategy applies to %s", projectDir)
}
