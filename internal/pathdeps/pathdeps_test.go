package pathdeps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultStrategyDiscoversDistWheels(t *testing.T) {
	dir := t.TempDir()

	distDir := filepath.Join(dir, "dist")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, name := range []string{"widget-1.0.0-py3-none-any.whl", "widget-1.0.0.tar.gz"} {
		if err := os.WriteFile(filepath.Join(distDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	wheels, err := DefaultStrategy{}.DiscoverWheels(dir)
	if err != nil {
		t.Fatalf("DiscoverWheels: %v", err)
	}

	if len(wheels) != 1 || filepath.Base(wheels[0]) != "widget-1.0.0-py3-none-any.whl" {
		t.Fatalf("expected exactly the .whl file, got %v", wheels)
	}
}

func TestDiscoverFallsThroughToDefault(t *testing.T) {
	dir := t.TempDir()

	distDir := filepath.Join(dir, "dist")
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(filepath.Join(distDir, "widget-1.0.0-py3-none-any.whl"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing wheel: %v", err)
	}

	wheels, err := Discover(DefaultRegistry(), dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(wheels) != 1 {
		t.Fatalf("expected 1 wheel, got %v", wheels)
	}
}

func TestPoetryStubsReturnUnsupported(t *testing.T) {
	if _, err := (PoetryStrategy{}).DiscoverWheels("/anywhere"); err != ErrUnsupportedProjectManager {
		t.Fatalf("expected ErrUnsupportedProjectManager, got %v", err)
	}
}

func TestIsLocalPath(t *testing.T) {
	cases := map[string]bool{
		"../sibling-project":  true,
		"./sibling":           true,
		"requests>=2.0":       false,
		"widget==1.0.0":       false,
	}

	for entry, want := range cases {
		if got := IsLocalPath(entry); got != want {
			t.Errorf("IsLocalPath(%q) = %v, want %v", entry, got, want)
		}
	}
}

func TestDiscoverRecursiveFollowsDependencyProjects(t *testing.T) {
	root := t.TempDir()
	sibling := t.TempDir()

	for _, dir := range []string{root, sibling} {
		if err := os.MkdirAll(filepath.Join(dir, "dist"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	if err := os.WriteFile(filepath.Join(root, "dist", "root-1.0.0-py3-none-any.whl"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing root wheel: %v", err)
	}

	if err := os.WriteFile(filepath.Join(sibling, "dist", "sibling-1.0.0-py3-none-any.whl"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing sibling wheel: %v", err)
	}

	readDeps := func(projectDir string) ([]string, error) {
		abs, _ := filepath.Abs(root)
		if absDir, _ := filepath.Abs(projectDir); absDir == abs {
			return []string{sibling}, nil
		}

		return nil, nil
	}

	wheels, err := DiscoverRecursive(DefaultRegistry(), []string{root}, readDeps)
	if err != nil {
		t.Fatalf("DiscoverRecursive: %v", err)
	}

	if len(wheels) != 2 {
		t.Fatalf("expected 2 wheels across root+sibling, got %v", wheels)
	}
}
