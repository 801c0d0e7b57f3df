package graph_test

import (
	"context"
	"testing"

	"github.com/chubforge/chub/internal/domain"
	"github.com/chubforge/chub/internal/graph"
)

type fakeMetadata struct {
	requiresDist map[string][]string
}

func (f *fakeMetadata) RequiresDist(_ context.Context, key domain.WheelKey, _ domain.ResolutionContext) ([]string, error) {
	return f.requiresDist[key.String()], nil
}

type fakeVersions struct {
	versions map[string][]string
}

func (f *fakeVersions) CandidateVersions(_ context.Context, canonicalName string) ([]string, error) {
	return f.versions[canonicalName], nil
}

func TestBuildFixpoint(t *testing.T) {
	root := domain.NewWheelKey("app", "1.0.0")

	metadata := &fakeMetadata{
		requiresDist: map[string][]string{
			"app-1.0.0": {"requests>=2.0", `colorama; sys_platform == "win32"`},
			"requests-2.31.0": {"urllib3>=1.26"},
			"urllib3-1.26.18": nil,
		},
	}

	versions := &fakeVersions{
		versions: map[string][]string{
			"requests": {"2.31.0", "2.0.0"},
			"urllib3":  {"1.26.18"},
		},
	}

	builder := &graph.Builder{
		Metadata: metadata,
		Selector: &graph.DefaultDependencySelector{Versions: versions},
	}

	contexts := []domain.ResolutionContext{
		{Arch: "x86_64", OSFamily: "linux", PythonImplementation: "cpython", PythonVersion: "3.11"},
	}

	result, err := builder.Build(context.Background(), []domain.WheelKey{root}, contexts, []string{"3.11"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if err := result.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(result.Nodes) != 3 {
		t.Fatalf("len(Nodes) = %d, want 3 (app, requests, urllib3); got %+v", len(result.Nodes), result.Nodes)
	}

	appNode, ok := result.Nodes[root.String()]
	if !ok {
		t.Fatal("root node missing")
	}

	if len(appNode.Dependencies) != 1 {
		t.Fatalf("app should have exactly 1 dependency on linux (colorama is windows-only), got %+v", appNode.Dependencies)
	}

	if appNode.Dependencies[0].Name != "requests" {
		t.Errorf("app dependency = %s, want requests", appNode.Dependencies[0].Name)
	}
}

func TestValidateCatchesMissingDependencyNode(t *testing.T) {
	root := domain.NewWheelKey("app", "1.0.0")
	missing := domain.NewWheelKey("ghost", "1.0.0")

	result := graph.CompatibilityResolution{
		Roots: []domain.WheelKey{root},
		Nodes: map[string]graph.Node{
			root.String(): {Key: root, Dependencies: []domain.WheelKey{missing}},
		},
	}

	if err := result.Validate(); err == nil {
		t.Fatal("expected Validate to catch a dependency with no corresponding node")
	}
}
