package graph

import (
	"context"
	"fmt"
	"sort"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/chubforge/chub/internal/domain"
)

// DependencySelector chooses which concrete WheelKey satisfies a parsed
// Requirement. Per the specification, the dependency-selection algorithm
// (general-purpose version/conflict resolution) is delegated to an
// external resolver contract rather than fixed by the core — this
// interface is that contract boundary. Build only guarantees it calls the
// metadata resolver by WheelKey and records the resulting nodes.
type DependencySelector interface {
	Select(ctx context.Context, req Requirement) (domain.WheelKey, error)
}

// CandidateVersionsProvider supplies the known published versions for a
// canonical project name, the input DefaultDependencySelector filters
// against a requirement's specifier.
type CandidateVersionsProvider interface {
	CandidateVersions(ctx context.Context, canonicalName string) ([]string, error)
}

// DefaultDependencySelector picks the highest stable version satisfying a
// requirement's specifier, grounded on the same highest-match BFS
// resolution the core previously used directly. It is the default,
// swappable implementation of DependencySelector.
type DefaultDependencySelector struct {
	Versions CandidateVersionsProvider
}

var _ DependencySelector = (*DefaultDependencySelector)(nil)

func (s *DefaultDependencySelector) Select(ctx context.Context, req Requirement) (domain.WheelKey, error) {
	candidates, err := s.Versions.CandidateVersions(ctx, req.Name)
	if err != nil {
		return domain.WheelKey{}, fmt.Errorf("graph: fetching candidate versions for %s: %w", req.Name, err)
	}

	best, err := findBestVersion(candidates, req.Specifier)
	if err != nil {
		return domain.WheelKey{}, fmt.Errorf("graph: selecting version for %s: %w", req.Name, err)
	}

	if best == "" {
		return domain.WheelKey{}, fmt.Errorf("graph: no version of %s satisfies %q", req.Name, req.Specifier)
	}

	return domain.NewWheelKey(req.Name, best), nil
}

// findBestVersion returns the highest stable version in candidates
// matching specifier ("" matches everything), preferring a stable release
// over a pre-release when one exists.
func findBestVersion(candidates []string, specifier string) (string, error) {
	sorted, err := sortVersionsDesc(candidates)
	if err != nil {
		return "", err
	}

	for _, v := range sorted {
		parsed, _ := pep440.Parse(v)
		if parsed.IsPreRelease() {
			continue
		}

		ok, err := matches(v, specifier)
		if err != nil {
			return "", err
		}

		if ok {
			return v, nil
		}
	}

	// No stable release matched; fall back to pre-releases.
	for _, v := range sorted {
		ok, err := matches(v, specifier)
		if err != nil {
			return "", err
		}

		if ok {
			return v, nil
		}
	}

	return "", nil
}

func matches(versionStr, specifier string) (bool, error) {
	if specifier == "" {
		return true, nil
	}

	v, err := pep440.Parse(versionStr)
	if err != nil {
		return false, fmt.Errorf("parsing version %q: %w", versionStr, err)
	}

	ss, err := pep440.NewSpecifiers(specifier)
	if err != nil {
		return false, fmt.Errorf("parsing specifier %q: %w", specifier, err)
	}

	return ss.Check(v), nil
}

func sortVersionsDesc(versions []string) ([]string, error) {
	type parsedVersion struct {
		raw string
		ver pep440.Version
	}

	var valid []parsedVersion

	for _, raw := range versions {
		v, err := pep440.Parse(raw)
		if err != nil {
			continue
		}

		valid = append(valid, parsedVersion{raw: raw, ver: v})
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].ver.GreaterThan(valid[j].ver)
	})

	result := make([]string, len(valid))
	for i, v := range valid {
		result[i] = v.raw
	}

	return result, nil
}
