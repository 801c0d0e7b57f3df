package pyversion

import (
	"context"
	"errors"
	"testing"
)

type fakeStrategy struct {
	name     string
	versions []string
	err      error
}

func (f fakeStrategy) Name() string { return f.name }

func (f fakeStrategy) Discover(_ context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.versions, nil
}

func TestDiscoverFirstInRangeWins(t *testing.T) {
	strategies := []DiscoveryStrategy{
		fakeStrategy{name: "empty", versions: nil},
		fakeStrategy{name: "good", versions: []string{"3.11.9", "3.12.4"}},
		fakeStrategy{name: "unreached", versions: []string{"3.13.0"}},
	}

	got, err := Discover(context.Background(), strategies, "3.9", "<3.14")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 versions, got %v", got)
	}
}

func TestDiscoverSkipsErroringStrategy(t *testing.T) {
	strategies := []DiscoveryStrategy{
		fakeStrategy{name: "broken", err: errors.New("network down")},
		fakeStrategy{name: "fallback", versions: []string{"3.10.0"}},
	}

	got, err := Discover(context.Background(), strategies, "3.9", "<3.14")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(got) != 1 || got[0] != "3.10.0" {
		t.Fatalf("expected fallback result, got %v", got)
	}
}

func TestDiscoverSkipsOutOfRangeResult(t *testing.T) {
	strategies := []DiscoveryStrategy{
		fakeStrategy{name: "too-old", versions: []string{"2.7.18"}},
		fakeStrategy{name: "in-range", versions: []string{"3.12.0"}},
	}

	got, err := Discover(context.Background(), strategies, "3.9", "<3.14")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(got) != 1 || got[0] != "3.12.0" {
		t.Fatalf("expected in-range result, got %v", got)
	}
}

func TestDiscoverAllExhaustedReturnsError(t *testing.T) {
	strategies := []DiscoveryStrategy{
		fakeStrategy{name: "broken", err: errors.New("boom")},
		fakeStrategy{name: "too-old", versions: []string{"2.7.18"}},
	}

	if _, err := Discover(context.Background(), strategies, "3.9", "<3.14"); err == nil {
		t.Fatal("expected error when all strategies exhausted")
	}
}

func TestHardcodedDefaultStrategy(t *testing.T) {
	s := NewHardcodedDefaultStrategy()

	versions, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected a non-empty hardcoded version list")
	}
}

func TestLocalInterpreterStrategyUsesCommandRunner(t *testing.T) {
	s := NewLocalInterpreterStrategy(WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "python3" {
			t.Fatalf("unexpected interpreter binary %q", name)
		}

		return []byte("3.12.4\n"), nil
	}))

	versions, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(versions) != 1 || versions[0] != "3.12.4" {
		t.Fatalf("expected [3.12.4], got %v", versions)
	}
}

func TestLocalInterpreterStrategyPropagatesCommandError(t *testing.T) {
	s := NewLocalInterpreterStrategy(WithCommandRunner(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, errors.New("executable file not found")
	}))

	if _, err := s.Discover(context.Background()); err == nil {
		t.Fatal("expected error when the command runner fails")
	}
}

func TestLocalInterpreterStrategyCustomBinary(t *testing.T) {
	var gotName string

	s := NewLocalInterpreterStrategy(
		WithPythonBin("python3.12"),
		WithCommandRunner(func(_ context.Context, name string, _ ...string) ([]byte, error) {
			gotName = name

			return []byte("3.12.4\n"), nil
		}),
	)

	if _, err := s.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if gotName != "python3.12" {
		t.Fatalf("expected custom binary to be used, got %q", gotName)
	}
}
