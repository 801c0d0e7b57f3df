package main

import (
	"testing"

	"github.com/chubforge/chub/internal/project"
)

func TestParseMetadataEntries(t *testing.T) {
	got := parseMetadataEntries([]string{"author=jane", "license = MIT", "malformed"})

	if got["author"] != "jane" || got["license"] != "MIT" {
		t.Fatalf("unexpected metadata: %v", got)
	}

	if len(got) != 2 {
		t.Fatalf("expected malformed entry to be skipped, got %v", got)
	}
}

func TestParseMetadataEntriesEmpty(t *testing.T) {
	if got := parseMetadataEntries(nil); got != nil {
		t.Fatalf("expected nil map for no entries, got %v", got)
	}
}

func TestBuildRootsSkipsLocalPaths(t *testing.T) {
	proj := &project.ChubProject{
		Wheels: []string{"widget-1.0.0-py3-none-any.whl", "./local-project"},
	}

	roots, err := buildRoots(proj, []string{"dep-2.0.0-py3-none-any.whl"})
	if err != nil {
		t.Fatalf("buildRoots: %v", err)
	}

	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %v", roots)
	}

	if roots[0].Name != "widget" || roots[0].Version != "1.0.0" {
		t.Fatalf("unexpected first root: %+v", roots[0])
	}

	if roots[1].Name != "dep" || roots[1].Version != "2.0.0" {
		t.Fatalf("unexpected second root: %+v", roots[1])
	}
}

func TestBuildRootsRejectsBadFilename(t *testing.T) {
	proj := &project.ChubProject{Wheels: []string{"not-a-wheel"}}

	if _, err := buildRoots(proj, nil); err == nil {
		t.Fatal("expected an error for an unparsable wheel filename")
	}
}

func TestCompatibilitySpecFromProjectDefaultsWhenAbsent(t *testing.T) {
	spec, err := compatibilitySpecFromProject(&project.ChubProject{})
	if err != nil {
		t.Fatalf("compatibilitySpecFromProject: %v", err)
	}

	if spec.PythonVersions.Min != "3.9" {
		t.Fatalf("unexpected default min version: %q", spec.PythonVersions.Min)
	}
}

func TestCompatibilitySpecFromProjectDecodesOverride(t *testing.T) {
	proj := &project.ChubProject{
		CompatibilitySpec: map[string]any{
			"python_versions": map[string]any{"min": "3.11", "max": "<3.13"},
		},
	}

	spec, err := compatibilitySpecFromProject(proj)
	if err != nil {
		t.Fatalf("compatibilitySpecFromProject: %v", err)
	}

	if spec.PythonVersions.Min != "3.11" || spec.PythonVersions.Max != "<3.13" {
		t.Fatalf("unexpected decoded spec: %+v", spec.PythonVersions)
	}
}

func TestCacheRootFromEnvPrefersChubCacheRoot(t *testing.T) {
	t.Setenv("CHUB_CACHE_ROOT", "/tmp/chub-root")
	t.Setenv("PYCHUB_CACHE_ROOT", "/tmp/pychub-root")

	if got := cacheRootFromEnv(); got != "/tmp/chub-root" {
		t.Fatalf("cacheRootFromEnv() = %q, want /tmp/chub-root", got)
	}
}

func TestCacheRootFromEnvFallsBackToPychub(t *testing.T) {
	t.Setenv("CHUB_CACHE_ROOT", "")
	t.Setenv("PYCHUB_CACHE_ROOT", "/tmp/pychub-root")

	if got := cacheRootFromEnv(); got != "/tmp/pychub-root" {
		t.Fatalf("cacheRootFromEnv() = %q, want /tmp/pychub-root", got)
	}
}
