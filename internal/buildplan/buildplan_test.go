package buildplan

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/chubforge/chub/internal/audit"
	"github.com/chubforge/chub/internal/project"
)

func TestProjectHashIsStableAndOrderIndependent(t *testing.T) {
	p1 := &project.ChubProject{Name: "widget", Version: "1.0.0", Wheels: []string{"a==1", "b==2"}}
	p2 := &project.ChubProject{Name: "widget", Version: "1.0.0", Wheels: []string{"b==2", "a==1"}}

	if ProjectHash(p1) != ProjectHash(p2) {
		t.Fatal("expected project hash to be independent of wheel list order")
	}

	p3 := &project.ChubProject{Name: "widget", Version: "2.0.0", Wheels: []string{"a==1", "b==2"}}
	if ProjectHash(p1) == ProjectHash(p3) {
		t.Fatal("expected different versions to hash differently")
	}
}

func TestPersistWritesExpectedFiles(t *testing.T) {
	dir := t.TempDir()

	proj := &project.ChubProject{Name: "widget", Version: "1.0.0", SourcePath: filepath.Join(dir, "pyproject.toml")}
	plan := New(proj, dir, audit.New())

	if err := plan.Persist("0.1.0"); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	planBytes, err := os.ReadFile(filepath.Join(plan.Layout().Root, "buildplan.json"))
	if err != nil {
		t.Fatalf("reading buildplan.json: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(planBytes, &decoded); err != nil {
		t.Fatalf("decoding buildplan.json: %v", err)
	}

	if decoded["project_hash"] != plan.ProjectHash {
		t.Fatalf("unexpected decoded project_hash: %v", decoded["project_hash"])
	}

	metaBytes, err := os.ReadFile(filepath.Join(plan.Layout().Root, "meta.json"))
	if err != nil {
		t.Fatalf("reading meta.json: %v", err)
	}

	var meta Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		t.Fatalf("decoding meta.json: %v", err)
	}

	if meta.ProjectHash != plan.ProjectHash || meta.ChubVersion != "0.1.0" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	for _, sub := range []string{"wheels", "metadata", "scripts", "includes", "runtime", "build"} {
		if info, err := os.Stat(filepath.Join(plan.Layout().Root, sub)); err != nil || !info.IsDir() {
			t.Errorf("expected staging subdirectory %s to exist", sub)
		}
	}
}

func TestPackagingContextRoundTrip(t *testing.T) {
	if _, err := PackagingContextFrom(context.Background()); err == nil {
		t.Fatal("expected error when no packaging context is active")
	}

	plan := &BuildPlan{}
	pc := &PackagingContext{Plan: plan}

	ctx := WithPackagingContext(context.Background(), pc)

	got, err := PackagingContextFrom(ctx)
	if err != nil {
		t.Fatalf("PackagingContextFrom: %v", err)
	}

	if got.Plan != plan {
		t.Fatal("expected to retrieve the same plan")
	}
}
