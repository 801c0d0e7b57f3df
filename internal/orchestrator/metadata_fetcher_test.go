package orchestrator_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chubforge/chub/internal/compat"
	"github.com/chubforge/chub/internal/domain"
	"github.com/chubforge/chub/internal/orchestrator"
	"github.com/chubforge/chub/internal/resolution"
)

func TestParseCoreMetadataTextExtractsRequiresDist(t *testing.T) {
	text := "Metadata-Version: 2.1\n" +
		"Name: widget\n" +
		"Version: 1.0.0\n" +
		"Requires-Python: >=3.9\n" +
		"Requires-Dist: requests>=2.0\n" +
		"Requires-Dist: colorama; sys_platform == \"win32\"\n" +
		"\n" +
		"A long description that must not be parsed as a header.\n"

	meta := orchestrator.ParseCoreMetadataText(text)

	if meta.Name != "widget" || meta.Version != "1.0.0" || meta.RequiresPython != ">=3.9" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	if len(meta.RequiresDist) != 2 {
		t.Fatalf("expected 2 Requires-Dist lines, got %v", meta.RequiresDist)
	}
}

func TestMetadataFetcherCandidateVersionsAndRequiresDist(t *testing.T) {
	const metadataBody = "Metadata-Version: 2.1\nName: widget\nVersion: 1.0.0\nRequires-Dist: requests>=2.0\n"

	var srvURL string

	mux := http.NewServeMux()
	mux.HandleFunc("/widget/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		fmt.Fprintf(w, `{
			"name": "widget",
			"versions": ["1.0.0"],
			"files": [
				{
					"filename": "widget-1.0.0-py3-none-any.whl",
					"url": "%s/widget-1.0.0-py3-none-any.whl",
					"core-metadata": true
				}
			],
			"meta": {"api-version": "1.0"}
		}`, srvURL)
	})
	mux.HandleFunc("/widget-1.0.0-py3-none-any.whl.metadata", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, metadataBody)
	})
	mux.HandleFunc("/widget-1.0.0-py3-none-any.whl", func(w http.ResponseWriter, r *http.Request) {})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	srvURL = srv.URL

	spec, err := newRealizedSpec(t)
	if err != nil {
		t.Fatalf("building spec: %v", err)
	}

	evaluator := compat.New(spec)

	baseCfg := resolution.ResolverConfig{GlobalCacheRoot: t.TempDir()}
	metadataCfg := resolution.NewMetadataResolverConfig(baseCfg)

	candidateResolver, err := resolution.NewMetadataResolver(
		metadataCfg,
		[]resolution.Strategy{resolution.NewPep691SimpleAPIStrategy(resolution.DefaultPep691SimpleAPIStrategyConfig(), resolution.WithPep691BaseURL(srv.URL))},
		domain.CandidateMetadata,
	)
	if err != nil {
		t.Fatalf("NewMetadataResolver (candidate): %v", err)
	}

	dependencyResolver, err := resolution.NewMetadataResolver(
		metadataCfg,
		[]resolution.Strategy{resolution.NewPep658SidecarStrategy(resolution.DefaultPep658SidecarStrategyConfig(), resolution.WithPep658BaseURL(srv.URL))},
		domain.DependencyMetadata,
	)
	if err != nil {
		t.Fatalf("NewMetadataResolver (dependency): %v", err)
	}

	fetcher := &orchestrator.MetadataFetcher{
		CandidateResolver:  candidateResolver,
		DependencyResolver: dependencyResolver,
		Evaluator:          evaluator,
	}

	ctx := context.Background()

	versions, err := fetcher.CandidateVersions(ctx, "widget")
	if err != nil {
		t.Fatalf("CandidateVersions: %v", err)
	}

	if len(versions) != 1 || versions[0] != "1.0.0" {
		t.Fatalf("unexpected versions: %v", versions)
	}

	key := domain.NewWheelKey("widget", "1.0.0")
	rc := domain.ResolutionContext{
		PythonVersion:        "3.11",
		PythonImplementation: "cpython",
		Arch:                 "amd64",
		OSFamily:             "linux",
		Tag:                  domain.Tag{Interpreter: "py3", ABI: "none", Platform: "any"},
	}

	requires, err := fetcher.RequiresDist(ctx, key, rc)
	if err != nil {
		t.Fatalf("RequiresDist: %v", err)
	}

	if len(requires) != 1 || requires[0] != "requests>=2.0" {
		t.Fatalf("unexpected requires-dist: %v", requires)
	}
}

func TestMetadataFetcherFallsBackToWheelInspectionWithoutSidecar(t *testing.T) {
	const metadataText = "Metadata-Version: 2.1\nName: gizmo\nVersion: 1.0.0\nRequires-Dist: colorama>=0.4\n"

	wheelBytes := buildTestWheelZip(t, "gizmo-1.0.0.dist-info/METADATA", metadataText)

	var srvURL string

	mux := http.NewServeMux()
	mux.HandleFunc("/gizmo/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		fmt.Fprintf(w, `{
			"name": "gizmo",
			"versions": ["1.0.0"],
			"files": [
				{
					"filename": "gizmo-1.0.0-py3-none-any.whl",
					"url": "%s/gizmo-1.0.0-py3-none-any.whl"
				}
			],
			"meta": {"api-version": "1.0"}
		}`, srvURL)
	})
	mux.HandleFunc("/gizmo-1.0.0-py3-none-any.whl", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(wheelBytes)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	srvURL = srv.URL

	spec, err := newRealizedSpec(t)
	if err != nil {
		t.Fatalf("building spec: %v", err)
	}

	evaluator := compat.New(spec)

	baseCfg := resolution.ResolverConfig{GlobalCacheRoot: t.TempDir()}
	metadataCfg := resolution.NewMetadataResolverConfig(baseCfg)
	wheelCfg := resolution.NewWheelResolverConfig(baseCfg)

	candidateResolver, err := resolution.NewMetadataResolver(
		metadataCfg,
		[]resolution.Strategy{resolution.NewPep691SimpleAPIStrategy(resolution.DefaultPep691SimpleAPIStrategyConfig(), resolution.WithPep691BaseURL(srv.URL))},
		domain.CandidateMetadata,
	)
	if err != nil {
		t.Fatalf("NewMetadataResolver (candidate): %v", err)
	}

	wheelResolver, err := resolution.NewWheelResolver(
		wheelCfg,
		[]resolution.Strategy{resolution.NewHTTPWheelStrategy(resolution.DefaultHTTPWheelStrategyConfig())},
		evaluator,
	)
	if err != nil {
		t.Fatalf("NewWheelResolver: %v", err)
	}

	dependencyResolver, err := resolution.NewMetadataResolver(
		metadataCfg,
		[]resolution.Strategy{
			resolution.NewPep658SidecarStrategy(resolution.DefaultPep658SidecarStrategyConfig(), resolution.WithPep658BaseURL(srv.URL)),
			resolution.NewWheelInspectionStrategy(resolution.DefaultWheelInspectionStrategyConfig(), wheelResolver),
		},
		domain.DependencyMetadata,
	)
	if err != nil {
		t.Fatalf("NewMetadataResolver (dependency): %v", err)
	}

	fetcher := &orchestrator.MetadataFetcher{
		CandidateResolver:  candidateResolver,
		DependencyResolver: dependencyResolver,
		Evaluator:          evaluator,
	}

	ctx := context.Background()

	key := domain.NewWheelKey("gizmo", "1.0.0")
	rc := domain.ResolutionContext{
		PythonVersion:        "3.11",
		PythonImplementation: "cpython",
		Arch:                 "amd64",
		OSFamily:             "linux",
		Tag:                  domain.Tag{Interpreter: "py3", ABI: "none", Platform: "any"},
	}

	requires, err := fetcher.RequiresDist(ctx, key, rc)
	if err != nil {
		t.Fatalf("RequiresDist: %v", err)
	}

	if len(requires) != 1 || requires[0] != "colorama>=0.4" {
		t.Fatalf("unexpected requires-dist from wheel-inspection fallback: %v", requires)
	}
}

// buildTestWheelZip builds an in-memory wheel archive with a single entry
// at name containing content.
func buildTestWheelZip(t *testing.T, name, content string) []byte {
	t.Helper()

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)

	f, err := w.Create(name)
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}

	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatalf("writing zip entry: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}

	return buf.Bytes()
}

func newRealizedSpec(t *testing.T) (*domain.CompatibilitySpec, error) {
	t.Helper()

	pv, err := domain.NewPythonVersionsSpec("3.9", "<3.13")
	if err != nil {
		return nil, err
	}

	spec := &domain.CompatibilitySpec{PythonVersions: pv}
	if err := spec.Realize([]string{"3.9", "3.10", "3.11", "3.12"}); err != nil {
		return nil, err
	}

	return spec, nil
}
