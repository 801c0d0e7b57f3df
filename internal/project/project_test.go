package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}

	return path
}

func TestLoadPyprojectNestedTable(t *testing.T) {
	path := writeTemp(t, "pyproject.toml", `
[tool.pychub.package]
name = "widget"
version = "1.0.0"
wheels = ["widget==1.0.0"]
`)

	proj, err := LoadPyproject(path)
	if err != nil {
		t.Fatalf("LoadPyproject: %v", err)
	}

	if proj == nil {
		t.Fatal("expected a non-nil project")
	}

	if proj.Name != "widget" || proj.Version != "1.0.0" || !proj.Enabled {
		t.Fatalf("unexpected project: %+v", proj)
	}
}

func TestLoadPyprojectAbsentTableReturnsNil(t *testing.T) {
	path := writeTemp(t, "pyproject.toml", `
[project]
name = "widget"
`)

	proj, err := LoadPyproject(path)
	if err != nil {
		t.Fatalf("LoadPyproject: %v", err)
	}

	if proj != nil {
		t.Fatalf("expected nil project, got %+v", proj)
	}
}

func TestLoadPyprojectDisabled(t *testing.T) {
	path := writeTemp(t, "pyproject.toml", `
[tool.pychub.package]
name = "widget"
enabled = false
`)

	proj, err := LoadPyproject(path)
	if err != nil {
		t.Fatalf("LoadPyproject: %v", err)
	}

	if proj.Enabled {
		t.Fatal("expected Enabled to be false")
	}
}

func TestLoadChubProjectFlatShape(t *testing.T) {
	path := writeTemp(t, "my.chubproject.toml", `
name = "widget"
version = "2.0.0"
pre_scripts = ["setup.sh"]
`)

	proj, err := LoadChubProject(path)
	if err != nil {
		t.Fatalf("LoadChubProject: %v", err)
	}

	if proj.Name != "widget" || len(proj.PreScripts) != 1 {
		t.Fatalf("unexpected project: %+v", proj)
	}
}

func TestLoadChubProjectNestedPackageShape(t *testing.T) {
	path := writeTemp(t, "chubproject.toml", `
[package]
name = "widget"
version = "3.0.0"
`)

	proj, err := LoadChubProject(path)
	if err != nil {
		t.Fatalf("LoadChubProject: %v", err)
	}

	if proj.Name != "widget" || proj.Version != "3.0.0" {
		t.Fatalf("unexpected project: %+v", proj)
	}
}

func TestLoadChubProjectScriptsTable(t *testing.T) {
	path := writeTemp(t, "chubproject.toml", `
name = "widget"

[scripts]
pre = ["pre.sh"]
post = ["post.sh"]
`)

	proj, err := LoadChubProject(path)
	if err != nil {
		t.Fatalf("LoadChubProject: %v", err)
	}

	if len(proj.PreScripts) != 1 || proj.PreScripts[0] != "pre.sh" {
		t.Fatalf("expected scripts.pre to populate PreScripts, got %+v", proj.PreScripts)
	}

	if len(proj.PostScripts) != 1 || proj.PostScripts[0] != "post.sh" {
		t.Fatalf("expected scripts.post to populate PostScripts, got %+v", proj.PostScripts)
	}
}

func TestIsChubProjectFile(t *testing.T) {
	cases := map[string]bool{
		"chubproject.toml":        true,
		"my.chubproject.toml":     true,
		"/a/b/foo.chubproject.toml": true,
		"pyproject.toml":          false,
		"chubproject.yaml":        false,
	}

	for path, want := range cases {
		if got := IsChubProjectFile(path); got != want {
			t.Errorf("IsChubProjectFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestMergeOverridesNonZeroFields(t *testing.T) {
	base := &ChubProject{Name: "widget", Version: "1.0.0", Wheels: []string{"widget==1.0.0"}}
	override := &ChubProject{Version: "2.0.0"}

	merged := Merge(base, override)

	if merged.Name != "widget" || merged.Version != "2.0.0" {
		t.Fatalf("unexpected merge result: %+v", merged)
	}

	if len(merged.Wheels) != 1 {
		t.Fatalf("expected base wheels to survive merge, got %+v", merged.Wheels)
	}
}

func TestMergeMetadataUnion(t *testing.T) {
	base := &ChubProject{Metadata: map[string]string{"a": "1"}}
	override := &ChubProject{Metadata: map[string]string{"b": "2"}}

	merged := Merge(base, override)

	if merged.Metadata["a"] != "1" || merged.Metadata["b"] != "2" {
		t.Fatalf("unexpected merged metadata: %+v", merged.Metadata)
	}
}
