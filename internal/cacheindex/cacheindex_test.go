package cacheindex_test

import (
	"testing"
	"time"

	"github.com/chubforge/chub/internal/cacheindex"
	"github.com/chubforge/chub/internal/domain"
)

type fakeEntry struct {
	Key  string
	Exp  time.Time
}

func (f fakeEntry) CacheKey() string            { return f.Key }
func (f fakeEntry) Expired(now time.Time) bool  { return !f.Exp.IsZero() && !now.Before(f.Exp) }

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()

	idx, err := cacheindex.Open[fakeEntry]("index.json", cacheindex.WithDir(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	now := time.Now()

	if err := idx.Put(fakeEntry{Key: "flask-3.0.0-py3-none-any"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := idx.Get("flask-3.0.0-py3-none-any", now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if !ok || got.Key != "flask-3.0.0-py3-none-any" {
		t.Fatalf("Get = %+v, %v, want present entry", got, ok)
	}

	// Reopen from disk to verify persistence survived.
	idx2, err := cacheindex.Open[fakeEntry]("index.json", cacheindex.WithDir(dir))
	if err != nil {
		t.Fatalf("Open (reload): %v", err)
	}

	if idx2.Len() != 1 {
		t.Fatalf("Len after reload = %d, want 1", idx2.Len())
	}
}

func TestGetExpiredIsRemoved(t *testing.T) {
	dir := t.TempDir()

	idx, err := cacheindex.Open[fakeEntry]("index.json", cacheindex.WithDir(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	past := time.Now().Add(-time.Hour)

	if err := idx.Put(fakeEntry{Key: "stale", Exp: past}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, ok, err := idx.Get("stale", time.Now())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if ok {
		t.Fatal("expected expired entry to be absent")
	}

	if idx.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after expiry prune", idx.Len())
	}
}

func TestWheelCacheKey(t *testing.T) {
	key := domain.NewWheelKey("Flask", "3.0.0")
	tag := domain.Tag{Interpreter: "py3", ABI: "none", Platform: "any"}

	got := cacheindex.WheelCacheKey(key, tag)
	want := "flask-3.0.0-py3-none-any"

	if got != want {
		t.Errorf("WheelCacheKey = %q, want %q", got, want)
	}
}

func TestProjectCacheKey(t *testing.T) {
	key := domain.NewWheelKey("My_Package", "1.0")

	got := cacheindex.ProjectCacheKey(key)
	want := "my-package"

	if got != want {
		t.Errorf("ProjectCacheKey = %q, want %q", got, want)
	}
}
