package pathdeps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsLocalPath distinguishes a wheels[] entry that names a local project
// directory (or wheel file) from one that is a PEP-508 requirement string.
func IsLocalPath(entry string) bool {
	if strings.ContainsAny(entry, "/\\") || entry == "." || entry == ".." {
		return true
	}

	if info, err := os.Stat(entry); err == nil {
		return info.IsDir() || strings.HasSuffix(entry, ".whl")
	}

	return false
}

// DiscoverRecursive walks the path-dependency closure starting from roots
// (project directories), consulting each project's pyproject.toml for
// further path-dependency entries, and returns the union of every wheel
// file discovered along the way. Directories are visited at most once.
func DiscoverRecursive(registry []Strategy, roots []string, readDeps func(projectDir string) ([]string, error)) ([]string, error) {
	visited := make(map[string]bool)
	wheelSet := make(map[string]bool)

	queue := append([]string(nil), roots...)

	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("pathdeps: resolving %s: %w", dir, err)
		}

		if visited[abs] {
			continue
		}

		visited[abs] = true

		if strings.HasSuffix(abs, ".whl") {
			wheelSet[abs] = true

			continue
		}

		wheels, err := Discover(registry, abs)
		if err != nil {
			return nil, err
		}

		for _, w := range wheels {
			wheelSet[w] = true
		}

		if readDeps == nil {
			continue
		}

		deps, err := readDeps(abs)
		if err != nil {
			return nil, fmt.Errorf("pathdeps: reading dependency projects of %s: %w", abs, err)
		}

		for _, d := range deps {
			if IsLocalPath(d) {
				queue = append(queue, d)
			}
		}
	}

	out := make([]string, 0, len(wheelSet))
	for w := range wheelSet {
		out = append(out, w)
	}

	return out, nil
}
