package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// PythonVersionsSpec configures the accepted CPython version range and
// explicit interpreter overrides.
type PythonVersionsSpec struct {
	Min             string   `json:"min"`
	Max             string   `json:"max,omitempty"` // e.g. "<3.13" or "<=3.12"; defaults to "<(min_major+1).0"
	Types           []string `json:"types,omitempty"`
	AcceptUniversal bool     `json:"accept_universal,omitempty"`
	Specific        []string `json:"specific,omitempty"`
	SpecificOnly    bool     `json:"specific_only,omitempty"`
	Excludes        []string `json:"excludes,omitempty"`
}

var minVersionRE = regexp.MustCompile(`^\s*(\d+)\.(\d+)\s*$`)

// NewPythonVersionsSpec validates min/max and synthesizes the default max
// when unset, matching the teacher construction-time-validation idiom.
func NewPythonVersionsSpec(min, max string) (PythonVersionsSpec, error) {
	s := PythonVersionsSpec{Min: strings.TrimSpace(min), Max: max, AcceptUniversal: true}

	m := minVersionRE.FindStringSubmatch(s.Min)
	if m == nil {
		return PythonVersionsSpec{}, fmt.Errorf("domain: invalid python min version %q", min)
	}

	if s.Max == "" {
		majorInt, _ := strconv.Atoi(m[1])
		s.Max = fmt.Sprintf("<%d.0", majorInt+1)
	}

	if _, _, err := parseMaxBound(s.Max); err != nil {
		return PythonVersionsSpec{}, err
	}

	return s, nil
}

var maxVersionRE = regexp.MustCompile(`^\s*(<=|<)?\s*(\d+\.\d+)\s*$`)

func parseMaxBound(max string) (op string, ver string, err error) {
	m := maxVersionRE.FindStringSubmatch(max)
	if m == nil {
		return "", "", fmt.Errorf("domain: invalid python max version syntax %q", max)
	}

	op = m[1]
	if op == "" {
		op = "<="
	}

	return op, m[2], nil
}

// FilterVersions returns the X.Y versions from candidates that satisfy
// [min,max], sorted ascending.
func (s PythonVersionsSpec) FilterVersions(candidates []string) ([]string, error) {
	minV, err := pep440.Parse(s.Min)
	if err != nil {
		return nil, fmt.Errorf("domain: parsing python min %q: %w", s.Min, err)
	}

	op, maxStr, err := parseMaxBound(s.Max)
	if err != nil {
		return nil, err
	}

	maxV, err := pep440.Parse(maxStr)
	if err != nil {
		return nil, fmt.Errorf("domain: parsing python max %q: %w", maxStr, err)
	}

	maxInclusive := op == "<="

	var out []string

	seen := make(map[string]bool)

	for _, c := range candidates {
		parts := strings.SplitN(strings.TrimSpace(c), ".", 3)
		if len(parts) < 2 {
			continue
		}

		v, err := pep440.Parse(parts[0] + "." + parts[1])
		if err != nil {
			continue
		}

		if v.Compare(minV) < 0 {
			continue
		}

		if maxInclusive && v.Compare(maxV) > 0 {
			continue
		}

		if !maxInclusive && v.Compare(maxV) >= 0 {
			continue
		}

		if seen[v.String()] {
			continue
		}

		seen[v.String()] = true
		out = append(out, v.String())
	}

	sort.Slice(out, func(i, j int) bool {
		vi, _ := pep440.Parse(out[i])
		vj, _ := pep440.Parse(out[j])

		return vi.Compare(vj) < 0
	})

	return out, nil
}

// AbiValuesSpec configures which wheel ABI tags are accepted.
type AbiValuesSpec struct {
	IncludeDebug  bool     `json:"include_debug,omitempty"`
	IncludeStable bool     `json:"include_stable,omitempty"`
	Specific      []string `json:"specific,omitempty"`
	SpecificOnly  bool     `json:"specific_only,omitempty"`
	Excludes      []string `json:"excludes,omitempty"`
}

// PlatformFamilySpec bounds a platform flavor (manylinux, musllinux, ...) by
// glibc-like major.minor version. "*" (or empty) means unbounded.
type PlatformFamilySpec struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// PlatformOSSpec is one OS block of the platform spec: an arch allowlist,
// specific platform overrides, and per-flavor family bounds.
type PlatformOSSpec struct {
	Arches       []string                      `json:"arches,omitempty"`
	Specific     []string                      `json:"specific,omitempty"`
	SpecificOnly bool                          `json:"specific_only,omitempty"`
	Excludes     []string                      `json:"excludes,omitempty"`
	Families     map[string]PlatformFamilySpec `json:"families,omitempty"`
}

// CompatibilityTagsSpec is one named profile of explicit full-tag overrides.
type CompatibilityTagsSpec struct {
	Specific     []string `json:"specific,omitempty"`
	SpecificOnly bool     `json:"specific_only,omitempty"`
	Excludes     []string `json:"excludes,omitempty"`
}

// CompatibilitySpec is the full, possibly-unrealized specification of which
// (interpreter, abi, platform) triples a wheel set supports.
type CompatibilitySpec struct {
	PythonVersions PythonVersionsSpec
	ABI            AbiValuesSpec
	Platforms      map[string]PlatformOSSpec
	TagProfiles    map[string]CompatibilityTagsSpec

	realized                bool
	resolvedPythonVersions  []string // exact "X.Y" strings, ascending
	acceptedPythonMajors    map[string]struct{}
	tags                    map[Tag]struct{}
	tagsWhitelist           map[Tag]struct{}
	excludeTags             map[Tag]struct{}
	tagsSpecificOnly        bool
	allowedTags             map[Tag]struct{}
}

// NotRealizedError is a programmer error: derived state was read before
// Realize was called.
type NotRealizedError struct{ Op string }

func (e *NotRealizedError) Error() string {
	return fmt.Sprintf("domain: %s: compatibility spec not realized", e.Op)
}

// Realize computes derived state (resolved Python version range, tag
// sets) from a pool of candidate Python versions. It must be called
// exactly once before any accessor below is used.
func (s *CompatibilitySpec) Realize(candidatePythonVersions []string) error {
	filtered, err := s.PythonVersions.FilterVersions(candidatePythonVersions)
	if err != nil {
		return err
	}

	if len(filtered) == 0 {
		return fmt.Errorf("domain: no python versions in range [%s,%s]", s.PythonVersions.Min, s.PythonVersions.Max)
	}

	s.resolvedPythonVersions = filtered

	majors := make(map[string]struct{})
	for _, v := range filtered {
		majors[strings.SplitN(v, ".", 2)[0]] = struct{}{}
	}

	s.acceptedPythonMajors = majors

	tags := make(map[Tag]struct{})
	whitelist := make(map[Tag]struct{})
	excludes := make(map[Tag]struct{})
	specificOnly := false

	for _, profile := range s.TagProfiles {
		if profile.SpecificOnly {
			specificOnly = true
		}

		for _, raw := range profile.Specific {
			ts, err := ParseCompressedTag(raw)
			if err != nil {
				return fmt.Errorf("domain: realizing tag profile: %w", err)
			}

			for _, t := range ts {
				tags[t] = struct{}{}

				if profile.SpecificOnly {
					whitelist[t] = struct{}{}
				}
			}
		}

		for _, raw := range profile.Excludes {
			ts, err := ParseCompressedTag(raw)
			if err != nil {
				return fmt.Errorf("domain: realizing tag profile excludes: %w", err)
			}

			for _, t := range ts {
				excludes[t] = struct{}{}
			}
		}
	}

	allowed := make(map[Tag]struct{})

	if specificOnly {
		for t := range whitelist {
			allowed[t] = struct{}{}
		}
	} else {
		for t := range tags {
			allowed[t] = struct{}{}
		}

		for t := range whitelist {
			allowed[t] = struct{}{}
		}
	}

	for t := range excludes {
		delete(allowed, t)
	}

	s.tags = tags
	s.tagsWhitelist = whitelist
	s.excludeTags = excludes
	s.tagsSpecificOnly = specificOnly
	s.allowedTags = allowed
	s.realized = true

	return nil
}

func (s *CompatibilitySpec) mustBeRealized(op string) error {
	if !s.realized {
		return &NotRealizedError{Op: op}
	}

	return nil
}

// ResolvedPythonVersions returns the exact "X.Y" versions found to be in
// range, ascending. Requires Realize to have been called.
func (s *CompatibilitySpec) ResolvedPythonVersions() ([]string, error) {
	if err := s.mustBeRealized("ResolvedPythonVersions"); err != nil {
		return nil, err
	}

	return s.resolvedPythonVersions, nil
}

// AcceptsMajor reports whether the given major version string (e.g. "3")
// has at least one resolved X.Y version.
func (s *CompatibilitySpec) AcceptsMajor(major string) (bool, error) {
	if err := s.mustBeRealized("AcceptsMajor"); err != nil {
		return false, err
	}

	_, ok := s.acceptedPythonMajors[major]

	return ok, nil
}

// InPythonRange reports whether major.minor lies within the resolved
// version range.
func (s *CompatibilitySpec) InPythonRange(major, minor int) (bool, error) {
	if err := s.mustBeRealized("InPythonRange"); err != nil {
		return false, err
	}

	target := fmt.Sprintf("%d.%d", major, minor)
	for _, v := range s.resolvedPythonVersions {
		if v == target {
			return true, nil
		}
	}

	return false, nil
}

// AllowedTags returns the final (whitelist if specific_only else tags ∪
// whitelist) − excludes tag set.
func (s *CompatibilitySpec) AllowedTags() (map[Tag]struct{}, error) {
	if err := s.mustBeRealized("AllowedTags"); err != nil {
		return nil, err
	}

	return s.allowedTags, nil
}

// TagSpecificOnly reports whether any tag profile requested specific_only.
func (s *CompatibilitySpec) TagSpecificOnly() (bool, error) {
	if err := s.mustBeRealized("TagSpecificOnly"); err != nil {
		return false, err
	}

	return s.tagsSpecificOnly, nil
}

// TagExcluded reports whether t is tag-level excluded.
func (s *CompatibilitySpec) TagExcluded(t Tag) (bool, error) {
	if err := s.mustBeRealized("TagExcluded"); err != nil {
		return false, err
	}

	_, ok := s.excludeTags[t]

	return ok, nil
}

// TagWhitelisted reports whether t is in the tag whitelist.
func (s *CompatibilitySpec) TagWhitelisted(t Tag) (bool, error) {
	if err := s.mustBeRealized("TagWhitelisted"); err != nil {
		return false, err
	}

	_, ok := s.tagsWhitelist[t]

	return ok, nil
}

// TagSpecific reports whether t was additively listed in any profile.
func (s *CompatibilitySpec) TagSpecific(t Tag) (bool, error) {
	if err := s.mustBeRealized("TagSpecific"); err != nil {
		return false, err
	}

	_, ok := s.tags[t]

	return ok, nil
}
