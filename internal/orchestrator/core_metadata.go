package orchestrator

import (
	"bufio"
	"strings"
)

// CoreMetadata is the subset of a wheel's *.dist-info/METADATA (the PEP
// 566/658 core metadata format) the dependency graph needs.
type CoreMetadata struct {
	Name           string
	Version        string
	RequiresPython string
	RequiresDist   []string
}

// ParseCoreMetadataText parses RFC822-style core metadata text, collecting
// every "Requires-Dist" header (there may be many) plus Name/Version/
// Requires-Python. Unrecognized headers and the free-text description body
// are ignored.
func ParseCoreMetadataText(text string) CoreMetadata {
	var meta CoreMetadata

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// The body begins after the first blank line; core metadata headers
		// never appear past that point.
		if strings.TrimSpace(line) == "" {
			break
		}

		key, value, ok := splitHeader(line)
		if !ok {
			continue
		}

		switch key {
		case "Name":
			meta.Name = value
		case "Version":
			meta.Version = value
		case "Requires-Python":
			meta.RequiresPython = value
		case "Requires-Dist":
			meta.RequiresDist = append(meta.RequiresDist, value)
		}
	}

	return meta
}

func splitHeader(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}

	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}
