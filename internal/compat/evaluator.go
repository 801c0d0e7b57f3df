// Package compat implements the compatibility evaluator: given a realized
// domain.CompatibilitySpec, decide whether a given wheel compatibility tag
// is accepted, and score/select the best tag among several candidates.
package compat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/chubforge/chub/internal/domain"
)

// Evaluator decides tag acceptance against a realized CompatibilitySpec.
// Evaluator calls never panic for ordinary rejection; NotRealizedError
// propagates as an error only, per spec.md §4.2's failure semantics.
type Evaluator struct {
	Spec *domain.CompatibilitySpec
}

// New builds an Evaluator over a realized spec.
func New(spec *domain.CompatibilitySpec) *Evaluator {
	return &Evaluator{Spec: spec}
}

// Accepts evaluates a single Tag, applying the three global overrides
// (universal fast path, tag-level excludes, tag-level whitelist/additive)
// before falling back to the per-axis conjunction.
func (e *Evaluator) Accepts(t domain.Tag) (bool, error) {
	universal, err := e.acceptsUniversal(t)
	if err != nil {
		return false, err
	}

	if universal {
		return true, nil
	}

	excluded, err := e.Spec.TagExcluded(t)
	if err != nil {
		return false, err
	}

	if excluded {
		return false, nil
	}

	specificOnly, err := e.Spec.TagSpecificOnly()
	if err != nil {
		return false, err
	}

	if specificOnly {
		return e.Spec.TagWhitelisted(t)
	}

	additive, err := e.Spec.TagSpecific(t)
	if err != nil {
		return false, err
	}

	if additive {
		return true, nil
	}

	interp, err := e.acceptInterpreter(t.Interpreter)
	if err != nil {
		return false, err
	}

	if !interp {
		return false, nil
	}

	abi, err := e.acceptABI(t.ABI)
	if err != nil {
		return false, err
	}

	if !abi {
		return false, nil
	}

	return e.acceptPlatform(t.Platform)
}

// AcceptsString parses a compressed tag string and evaluates every Tag it
// expands to; a compressed tag is accepted if at least one expansion is.
func (e *Evaluator) AcceptsString(tagStr string) (bool, error) {
	tags, err := domain.ParseCompressedTag(tagStr)
	if err != nil {
		return false, err
	}

	for _, t := range tags {
		ok, err := e.Accepts(t)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

func (e *Evaluator) acceptsUniversal(t domain.Tag) (bool, error) {
	if t.ABI != "none" || t.Platform != "any" {
		return false, nil
	}

	if !e.Spec.PythonVersions.AcceptUniversal {
		return false, nil
	}

	major := universalMajor(t.Interpreter)
	if major == "" {
		return false, nil
	}

	return e.Spec.AcceptsMajor(major)
}

// universalMajor extracts the major-version digit from a "pyN" universal
// interpreter label, or "" if the label isn't of that form.
func universalMajor(interpreter string) string {
	if !strings.HasPrefix(interpreter, "py") {
		return ""
	}

	rest := interpreter[2:]
	if rest == "" || !allDigits(rest) {
		return ""
	}

	return rest
}

func allDigits(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return len(s) > 0
}

// ---------------- interpreter axis ----------------

func (e *Evaluator) acceptInterpreter(interpreter string) (bool, error) {
	vspec := e.Spec.PythonVersions

	if contains(vspec.Excludes, interpreter) {
		return false, nil
	}

	if vspec.SpecificOnly {
		return contains(vspec.Specific, interpreter), nil
	}

	if contains(vspec.Specific, interpreter) {
		return true, nil
	}

	if major := universalMajor(interpreter); major != "" && vspec.AcceptUniversal {
		return e.Spec.AcceptsMajor(major)
	}

	maj, min, ok := parsePythonVersionLabel(interpreter)
	if !ok {
		return false, nil
	}

	return e.Spec.InPythonRange(maj, min)
}

// ---------------- ABI axis ----------------

func (e *Evaluator) acceptABI(abi string) (bool, error) {
	if abi == "none" {
		return true, nil
	}

	aspec := e.Spec.ABI

	if contains(aspec.Excludes, abi) {
		return false, nil
	}

	if aspec.SpecificOnly {
		return contains(aspec.Specific, abi), nil
	}

	if contains(aspec.Specific, abi) {
		return true, nil
	}

	if isDebugABI(abi) {
		return aspec.IncludeDebug, nil
	}

	if isStableABI(abi) {
		if !aspec.IncludeStable {
			return false, nil
		}

		major := stableABIMajor(abi)
		if major == "" {
			return false, nil
		}

		return e.Spec.AcceptsMajor(major)
	}

	maj, min, ok := parsePythonVersionLabel(abi)
	if !ok {
		return false, nil
	}

	return e.Spec.InPythonRange(maj, min)
}

func isDebugABI(abi string) bool {
	return strings.HasSuffix(abi, "d")
}

var stableABIRE = regexp.MustCompile(`^abi(\d+)$`)

func isStableABI(abi string) bool {
	return abi == "none" || stableABIRE.MatchString(abi)
}

func stableABIMajor(abi string) string {
	if abi == "none" {
		return ""
	}

	m := stableABIRE.FindStringSubmatch(abi)
	if m == nil {
		return ""
	}

	return m[1]
}

// ---------------- platform axis ----------------

func (e *Evaluator) acceptPlatform(platform string) (bool, error) {
	if platform == "any" {
		return true, nil
	}

	specs := e.Spec.Platforms
	if len(specs) == 0 {
		return false, nil // fail-closed: no platform constraints configured
	}

	for _, osSpec := range specs {
		if contains(osSpec.Excludes, platform) {
			return false, nil
		}
	}

	var specificOnlyWhitelist map[string]struct{}

	for _, osSpec := range specs {
		if osSpec.SpecificOnly {
			if specificOnlyWhitelist == nil {
				specificOnlyWhitelist = make(map[string]struct{})
			}

			for _, p := range osSpec.Specific {
				specificOnlyWhitelist[p] = struct{}{}
			}
		}
	}

	if specificOnlyWhitelist != nil {
		_, ok := specificOnlyWhitelist[platform]

		return ok, nil
	}

	for _, osSpec := range specs {
		if contains(osSpec.Specific, platform) {
			return true, nil
		}
	}

	flavor, version, arch := splitPlatformTag(platform)

	var (
		family *domain.PlatformFamilySpec
		owning *domain.PlatformOSSpec
	)

	for _, osSpec := range specs {
		if fam, ok := osSpec.Families[flavor]; ok {
			f := fam
			o := osSpec
			family = &f
			owning = &o

			break
		}
	}

	if family == nil {
		return false, nil
	}

	if owning != nil && len(owning.Arches) > 0 {
		if arch == "" || !contains(owning.Arches, arch) {
			return false, nil
		}
	}

	if (family.Min != "" || family.Max != "") && version == "" {
		return false, nil
	}

	if version != "" {
		vMaj, vMin := parseGlibcLikeVersion(version)

		if family.Min != "" && family.Min != "*" {
			minMaj, minMin := parseGlibcLikeVersion(family.Min)
			if vMaj < minMaj || (vMaj == minMaj && vMin < minMin) {
				return false, nil
			}
		}

		if family.Max != "" && family.Max != "*" {
			maxMaj, maxMin := parseGlibcLikeVersion(family.Max)
			if vMaj > maxMaj || (vMaj == maxMaj && vMin > maxMin) {
				return false, nil
			}
		}
	}

	return true, nil
}

var platformRE = regexp.MustCompile(`^([a-zA-Z0-9]+?)(?:_(\d+)_(\d+))?(?:_([A-Za-z0-9_]+))?$`)

// splitPlatformTag splits "manylinux_2_17_x86_64" into
// ("manylinux", "2_17", "x86_64"). Unparsable tags yield the whole string
// as flavor with empty version/arch.
func splitPlatformTag(platform string) (flavor, version, arch string) {
	m := platformRE.FindStringSubmatch(platform)
	if m == nil {
		return platform, "", ""
	}

	flavor = m[1]

	if m[2] != "" && m[3] != "" {
		version = m[2] + "_" + m[3]
	}

	arch = m[4]

	return flavor, version, arch
}

func parseGlibcLikeVersion(v string) (major, minor int) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ".", "_")

	parts := strings.SplitN(v, "_", 2)

	major, _ = strconv.Atoi(parts[0])

	if len(parts) == 2 {
		minor, _ = strconv.Atoi(parts[1])
	}

	return major, minor
}

// parsePythonVersionLabel extracts (major, minor) from labels like "3.11",
// "cp311", "cp39", "py3". Returns ok=false when unparsable.
func parsePythonVersionLabel(label string) (major, minor int, ok bool) {
	s := strings.TrimSpace(label)

	if m := dottedVersionRE.FindStringSubmatch(s); m != nil {
		maj, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])

		return maj, min, true
	}

	m := trailingDigitsRE.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}

	digits := m[1]

	switch len(digits) {
	case 1:
		maj, _ := strconv.Atoi(digits)

		return maj, 0, true
	case 2:
		maj, _ := strconv.Atoi(digits[:1])
		min, _ := strconv.Atoi(digits[1:])

		return maj, min, true
	case 3:
		maj, _ := strconv.Atoi(digits[:1])
		min, _ := strconv.Atoi(digits[1:])

		return maj, min, true
	default:
		return 0, 0, false
	}
}

var (
	dottedVersionRE  = regexp.MustCompile(`^(\d+)\.(\d+)$`)
	trailingDigitsRE = regexp.MustCompile(`(\d+)$`)
)

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}

	return false
}
