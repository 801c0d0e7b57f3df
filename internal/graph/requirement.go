package graph

import (
	"regexp"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/chubforge/chub/internal/domain"
)

// Requirement is a parsed PEP 508 dependency specifier.
type Requirement struct {
	Name      string // canonicalized (PEP 503) package name
	Specifier string // version specifier, e.g. ">=3.0,<4.0"
	Marker    string // environment marker, e.g. `python_version < "3.10"`
}

// MarkerEnv holds the environment values a PEP 508 marker can reference.
type MarkerEnv struct {
	PythonVersion string
	SysPlatform   string
	OsName        string
}

// MarkerEnvFromResolutionContext derives a MarkerEnv from the ambient axis
// values carried by one resolution context, so graph traversal can decide
// which dependencies apply to that context.
func MarkerEnvFromResolutionContext(rc domain.ResolutionContext) MarkerEnv {
	return MarkerEnv{
		PythonVersion: rc.PythonVersion,
		SysPlatform:   osFamilyToSysPlatform(rc.OSFamily),
		OsName:        osFamilyToOsName(rc.OSFamily),
	}
}

func osFamilyToSysPlatform(family string) string {
	switch strings.ToLower(family) {
	case "windows":
		return "win32"
	case "darwin", "macos":
		return "darwin"
	default:
		return "linux"
	}
}

func osFamilyToOsName(family string) string {
	if strings.ToLower(family) == "windows" {
		return "nt"
	}

	return "posix"
}

// ParseRequirement parses a PEP 508 requirement string of the forms:
//
//	"flask"
//	"flask>=3.0,<4.0"
//	"flask (>=3.0)"
//	"importlib-metadata>=3.6.0; python_version < \"3.10\""
func ParseRequirement(s string) Requirement {
	marker := ""

	parts := strings.SplitN(s, ";", 2)
	nameSpec := strings.TrimSpace(parts[0])

	if len(parts) > 1 {
		marker = strings.TrimSpace(parts[1])
	}

	if idx := strings.Index(nameSpec, "["); idx >= 0 {
		if endIdx := strings.Index(nameSpec, "]"); endIdx > idx {
			nameSpec = nameSpec[:idx] + nameSpec[endIdx+1:]
		}
	}

	nameSpec = strings.NewReplacer("(", "", ")", "").Replace(nameSpec)
	nameSpec = strings.TrimSpace(nameSpec)

	specStart := strings.IndexAny(nameSpec, "><=!~")
	name := nameSpec
	specifier := ""

	if specStart >= 0 {
		name = strings.TrimSpace(nameSpec[:specStart])
		specifier = strings.TrimSpace(nameSpec[specStart:])
	}

	return Requirement{
		Name:      domain.CanonicalName(name),
		Specifier: specifier,
		Marker:    marker,
	}
}

// EvalMarker evaluates a PEP 508 environment marker against env. Markers
// referencing extras are treated as unsatisfied: the graph builder has no
// notion of which extras were requested for a transitive dependency.
func EvalMarker(marker string, env MarkerEnv) bool {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return true
	}

	if strings.Contains(marker, "extra") {
		return false
	}

	for _, orGroup := range splitOutside(marker, " or ") {
		allTrue := true

		for _, term := range splitOutside(strings.TrimSpace(orGroup), " and ") {
			if !evalTerm(strings.TrimSpace(term), env) {
				allTrue = false

				break
			}
		}

		if allTrue {
			return true
		}
	}

	return false
}

var markerTermRE = regexp.MustCompile(
	`^\s*([\w.]+|"[^"]*"|'[^']*')\s*(>=|<=|!=|==|~=|>|<|not\s+in|in)\s*([\w.]+|"[^"]*"|'[^']*')\s*$`,
)

func evalTerm(term string, env MarkerEnv) bool {
	m := markerTermRE.FindStringSubmatch(term)
	if m == nil {
		return true
	}

	left := resolveMarkerValue(m[1], env)
	op := m[2]
	right := resolveMarkerValue(m[3], env)

	lVar := unquote(m[1])
	if isVersionVariable(lVar) || isVersionVariable(unquote(m[3])) {
		return compareVersionMarker(left, op, right)
	}

	return compareStringMarker(left, op, right)
}

func resolveMarkerValue(token string, env MarkerEnv) string {
	token = unquote(token)

	switch token {
	case "python_version", "python_full_version":
		return env.PythonVersion
	case "sys_platform":
		return env.SysPlatform
	case "os_name":
		return env.OsName
	default:
		return token
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}

	return s
}

func isVersionVariable(name string) bool {
	return name == "python_version" || name == "python_full_version"
}

func compareVersionMarker(left, op, right string) bool {
	lv, err1 := pep440.Parse(left)
	rv, err2 := pep440.Parse(right)

	if err1 != nil || err2 != nil {
		return compareStringMarker(left, op, right)
	}

	cmp := lv.Compare(rv)

	switch op {
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "~=":
		return cmp >= 0
	default:
		return false
	}
}

func compareStringMarker(left, op, right string) bool {
	switch op {
	case "==":
		return left == right
	case "!=":
		return left != right
	case "in":
		return strings.Contains(right, left)
	case "not in":
		return !strings.Contains(right, left)
	default:
		return left == right
	}
}

// splitOutside splits s on sep, ignoring occurrences inside parentheses or
// quotes. Used to separate "and"/"or" marker terms.
func splitOutside(s, sep string) []string {
	var parts []string

	depth := 0
	inQuote := byte(0)
	start := 0

	for i := 0; i < len(s); i++ {
		switch {
		case inQuote != 0:
			if s[i] == inQuote {
				inQuote = 0
			}
		case s[i] == '"' || s[i] == '\'':
			inQuote = s[i]
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
		case depth == 0 && i+len(sep) <= len(s) && s[i:i+len(sep)] == sep:
			parts = append(parts, s[start:i])
			start = i + len(sep)
			i += len(sep) - 1
		}
	}

	parts = append(parts, s[start:])

	return parts
}
