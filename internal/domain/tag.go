package domain

import (
	"fmt"
	"strings"
)

// Tag is a single PEP 425 compatibility triple.
type Tag struct {
	Interpreter string
	ABI         string
	Platform    string
}

// String renders the tag in compressed wheel-filename form.
func (t Tag) String() string {
	return t.Interpreter + "-" + t.ABI + "-" + t.Platform
}

// ParseCompressedTag parses a compressed tag string such as
// "cp311.cp312-none-any" into the cross product of its dotted components.
// Reparsing a formatted Tag's String() always yields a one-element set
// containing that Tag back (the round-trip invariant from spec.md §8).
func ParseCompressedTag(s string) ([]Tag, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return nil, fmt.Errorf("domain: invalid compressed tag %q: expected 3 dash-separated components", s)
	}

	interpreters := strings.Split(parts[0], ".")
	abis := strings.Split(parts[1], ".")
	platforms := strings.Split(parts[2], ".")

	tags := make([]Tag, 0, len(interpreters)*len(abis)*len(platforms))
	for _, i := range interpreters {
		for _, a := range abis {
			for _, p := range platforms {
				tags = append(tags, Tag{Interpreter: i, ABI: a, Platform: p})
			}
		}
	}

	return tags, nil
}

// WheelFilename is the parsed form of {name}-{version}(-{build})?-{tags}.whl.
type WheelFilename struct {
	Name    string
	Version string
	Build   string
	Tags    []Tag
}

// ParseWheelFilename parses a wheel filename into name, version, optional
// build tag, and the cross-product Tag set of its compressed tag string.
// It rejects anything that doesn't match the expected shape.
func ParseWheelFilename(filename string) (WheelFilename, error) {
	base := strings.TrimSuffix(filename, ".whl")

	parts := strings.Split(base, "-")
	if len(parts) < 5 {
		return WheelFilename{}, fmt.Errorf("domain: invalid wheel filename %q: expected at least 5 dash-separated parts", filename)
	}

	compressedTag := strings.Join(parts[len(parts)-3:], "-")

	tags, err := ParseCompressedTag(compressedTag)
	if err != nil {
		return WheelFilename{}, fmt.Errorf("domain: invalid wheel filename %q: %w", filename, err)
	}

	name := parts[0]
	version := parts[1]
	build := ""

	// Parts between version and the final 3 tag components, if any, form
	// the optional build tag (itself may contain hyphens is disallowed by
	// the wheel spec, so it is exactly one part when present).
	if middle := parts[2 : len(parts)-3]; len(middle) == 1 {
		build = middle[0]
	} else if len(middle) > 1 {
		return WheelFilename{}, fmt.Errorf("domain: invalid wheel filename %q: malformed build tag", filename)
	}

	return WheelFilename{Name: name, Version: version, Build: build, Tags: tags}, nil
}
