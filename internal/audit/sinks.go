package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ParseSinkSpecs turns CLI/config sink descriptors ("stdout", "stderr",
// "file:PATH") into Sinks, opening any file targets for append.
func ParseSinkSpecs(specs []string) ([]Sink, []io.Closer, error) {
	var sinks []Sink

	var closers []io.Closer

	for _, spec := range specs {
		switch {
		case spec == "stdout":
			sinks = append(sinks, NewWriterSink(os.Stdout))
		case spec == "stderr":
			sinks = append(sinks, NewWriterSink(os.Stderr))
		case strings.HasPrefix(spec, "file:"):
			path := strings.TrimPrefix(spec, "file:")
			if path == "" {
				return nil, nil, fmt.Errorf("audit: empty path in sink spec %q", spec)
			}

			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("audit: opening sink file %s: %w", path, err)
			}

			sinks = append(sinks, NewWriterSink(f))
			closers = append(closers, f)
		default:
			return nil, nil, fmt.Errorf("audit: unknown sink spec %q", spec)
		}
	}

	return sinks, closers, nil
}

// DefaultAuditFilePath returns the default audit log path within a staging
// directory: "{stagingDir}/build.audit.json".
func DefaultAuditFilePath(stagingDir string) string {
	return filepath.Join(stagingDir, "build.audit.json")
}
