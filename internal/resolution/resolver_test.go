package resolution_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chubforge/chub/internal/domain"
	"github.com/chubforge/chub/internal/resolution"
)

type fakeChooser struct {
	tag domain.Tag
	err error
}

func (f fakeChooser) ChooseWheelTag(_, _, _ string) (domain.Tag, error) {
	return f.tag, f.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWheelResolverFilesystemStrategy(t *testing.T) {
	srcDir := t.TempDir()
	cacheDir := t.TempDir()

	wheelPath := filepath.Join(srcDir, "flask-3.0.0-py3-none-any.whl")
	writeFile(t, wheelPath, "fake wheel bytes")

	cfg := resolution.NewWheelResolverConfig(resolution.ResolverConfig{
		LocalCacheRoot:   cacheDir,
		GlobalCacheRoot:  cacheDir,
		ProjectIsolation: true,
	})

	fsStrategy := resolution.NewFilesystemWheelStrategy(resolution.DefaultFilesystemWheelStrategyConfig())
	chooser := fakeChooser{tag: domain.Tag{Interpreter: "py3", ABI: "none", Platform: "any"}}

	r, err := resolution.NewWheelResolver(cfg, []resolution.Strategy{fsStrategy}, chooser)
	if err != nil {
		t.Fatalf("NewWheelResolver: %v", err)
	}

	entry, err := r.Resolve(context.Background(), resolution.ResolveRequest{
		URI: "file://" + wheelPath,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if entry.WheelKey.Name != "flask" || entry.WheelKey.Version != "3.0.0" {
		t.Errorf("WheelKey = %+v, want flask/3.0.0", entry.WheelKey)
	}

	if entry.CompatibilityTag != "py3-none-any" {
		t.Errorf("CompatibilityTag = %q, want py3-none-any", entry.CompatibilityTag)
	}

	if _, err := os.Stat(entry.Path); err != nil {
		t.Errorf("resolved path %s does not exist: %v", entry.Path, err)
	}

	// A second resolve should hit the cache and not need the strategy.
	entry2, err := r.Resolve(context.Background(), resolution.ResolveRequest{
		URI: "file://" + wheelPath,
	})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if entry2.Key != entry.Key {
		t.Errorf("second resolve returned a different cache key: %q vs %q", entry2.Key, entry.Key)
	}
}

func TestWheelResolverNoStrategySucceeds(t *testing.T) {
	cacheDir := t.TempDir()

	cfg := resolution.NewWheelResolverConfig(resolution.ResolverConfig{
		LocalCacheRoot:   cacheDir,
		GlobalCacheRoot:  cacheDir,
		ProjectIsolation: true,
	})

	chooser := fakeChooser{tag: domain.Tag{Interpreter: "py3", ABI: "none", Platform: "any"}}

	r, err := resolution.NewWheelResolver(cfg, nil, chooser)
	if err != nil {
		t.Fatalf("NewWheelResolver: %v", err)
	}

	_, err = r.Resolve(context.Background(), resolution.ResolveRequest{
		URI: "https://example.invalid/flask-3.0.0-py3-none-any.whl",
	})
	if err == nil {
		t.Fatal("expected error when no strategy can resolve the artifact")
	}
}
