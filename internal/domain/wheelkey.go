// Package domain holds the identity, tag, and cache-entry types shared by
// the compatibility evaluator and the artifact resolution engine.
package domain

import (
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// CanonicalName normalizes a Python distribution name per PEP 503:
// lowercase, with runs of '-', '_', '.' collapsed to a single '-'.
func CanonicalName(name string) string {
	name = strings.ToLower(name)

	var b strings.Builder

	prevHyphen := false

	for i := range len(name) {
		switch name[i] {
		case '-', '_', '.':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		default:
			b.WriteByte(name[i])
			prevHyphen = false
		}
	}

	return b.String()
}

// NormalizeVersion applies PEP 440 normalization when the version parses;
// otherwise the literal string is preserved, per spec.
func NormalizeVersion(version string) string {
	v, err := pep440.Parse(version)
	if err != nil {
		return version
	}

	return v.String()
}

// WheelKeyMetadata is optional metadata attached to a WheelKey. It is not
// part of WheelKey identity (equality/hash use only name+version).
type WheelKeyMetadata struct {
	ActualTag     string
	SatisfiedTags map[string]struct{}
	OriginURI     string
}

// Valid reports whether the invariant ActualTag ∈ SatisfiedTags holds.
func (m *WheelKeyMetadata) Valid() bool {
	if m == nil {
		return true
	}

	_, ok := m.SatisfiedTags[m.ActualTag]

	return ok
}

// WheelKey identifies a distribution by canonicalized name and
// PEP-440-normalized version. Equality and hashing use only these two
// fields; Metadata is informational and excluded from both.
type WheelKey struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Metadata *WheelKeyMetadata `json:"metadata,omitempty"`
}

// NewWheelKey canonicalizes name and normalizes version before construction.
func NewWheelKey(name, version string) WheelKey {
	return WheelKey{Name: CanonicalName(name), Version: NormalizeVersion(version)}
}

// Equal compares identity only: canonical name and normalized version.
func (k WheelKey) Equal(other WheelKey) bool {
	return k.Name == other.Name && k.Version == other.Version
}

// String renders the identity as "name-version", used as a map key and in
// diagnostics.
func (k WheelKey) String() string {
	return k.Name + "-" + k.Version
}
