// Package orchestrator drives the build-plan lifecycle: INIT normalizes
// and merges the project configuration and discovers path dependencies;
// PLAN realizes the compatibility spec, grows the dependency graph to
// fixpoint, and persists the BuildPlan. Every stage and substage emits
// START/COMPLETE/FAIL audit events; a FAIL re-raises after the audit log
// is flushed, matching the propagation policy every resolver and strategy
// below it already follows.
package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/chubforge/chub/internal/audit"
	"github.com/chubforge/chub/internal/buildplan"
	"github.com/chubforge/chub/internal/compat"
	"github.com/chubforge/chub/internal/domain"
	"github.com/chubforge/chub/internal/graph"
	"github.com/chubforge/chub/internal/pathdeps"
	"github.com/chubforge/chub/internal/project"
	"github.com/chubforge/chub/internal/pyversion"
	"github.com/chubforge/chub/internal/resolution"
)

const (
	stageInit = "INIT"
	stagePlan = "PLAN"
)

// Options is the normalized form of the CLI surface (§6): values the
// front end has already parsed out of flags, ready to merge with whatever
// project file is found.
type Options struct {
	ProjectPath        string
	ChubprojectPath    string
	ChubprojectSave    string
	Entrypoint         string
	EntrypointArgs     []string
	Wheels             []string
	Includes           []string
	IncludeChubs       []string
	MetadataEntries    map[string]string
	PreScripts         []string
	PostScripts        []string
	Verbose            bool
	PrintVersion       bool
	AnalyzeCompat      bool

	GlobalCacheRoot  string
	ProjectIsolation bool
	ClearOnStartup   bool
	SimpleAPIBaseURL string
	AuditSinks       []string
}

// ErrImmediateExit signals that an immediate operation (version print,
// compatibility analysis, project save) was requested. Init stops after
// INIT and returns it together with the plan, and the caller performs the
// operation; the audit log records the stage as COMPLETE, not FAIL.
var ErrImmediateExit = errors.New("orchestrator: immediate operation requested exit")

// Orchestrator wires the resolvers, evaluator, and dependency-graph
// builder into the INIT→PLAN lifecycle.
type Orchestrator struct {
	ChubVersion string
	HTTPClient  *http.Client
}

// New builds an Orchestrator. chubVersion is stamped into meta.json.
func New(chubVersion string) *Orchestrator {
	return &Orchestrator{ChubVersion: chubVersion, HTTPClient: &http.Client{Timeout: 20 * time.Second}}
}

// stageRunner wraps fn with the START/COMPLETE/FAIL audit bracket the
// spec requires around every lifecycle stage/substage.
func stageRunner(log *audit.Log, stage, substage, message string, fn func() error) error {
	if err := log.Start(stage, substage, message); err != nil {
		return err
	}

	if err := fn(); err != nil {
		if errors.Is(err, ErrImmediateExit) {
			_ = log.Complete(stage, substage, message)

			return err
		}

		_ = log.Fail(stage, substage, err)

		return err
	}

	return log.Complete(stage, substage, message)
}

// Init runs the INIT stage: parse options → merge/override project →
// analyze path deps → cache project → check immediate ops. It returns the
// constructed BuildPlan; if an immediate operation short-circuits the rest
// of the pipeline, it returns that plan together with ErrImmediateExit.
func (o *Orchestrator) Init(ctx context.Context, opts Options) (*buildplan.BuildPlan, error) {
	log := audit.New()

	sinks, closers, err := audit.ParseSinkSpecs(opts.AuditSinks)
	if err != nil {
		return nil, err
	}

	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	for _, s := range sinks {
		audit.WithSink(s)(log)
	}

	var plan *buildplan.BuildPlan

	err = stageRunner(log, stageInit, "", "initializing build", func() error {
		proj, err := o.parseOptionsStage(log, opts)
		if err != nil {
			return err
		}

		proj, err = o.mergeProjectStage(log, opts, proj)
		if err != nil {
			return err
		}

		pathDepWheels, err := o.analyzePathDepsStage(log, proj)
		if err != nil {
			return err
		}

		plan = buildplan.New(proj, o.cacheRoot(opts), log)
		plan.PathDepWheelLocations = pathDepWheels

		if err := o.cacheProjectStage(log, plan); err != nil {
			return err
		}

		return o.checkImmediateOpsStage(log, opts, proj)
	})
	if err != nil {
		if errors.Is(err, ErrImmediateExit) {
			return plan, err
		}

		return nil, err
	}

	return plan, nil
}

func (o *Orchestrator) cacheRoot(opts Options) string {
	if opts.GlobalCacheRoot != "" {
		return opts.GlobalCacheRoot
	}

	if env := os.Getenv("CHUB_CACHE_ROOT"); env != "" {
		return env
	}

	return filepath.Join(os.TempDir(), "chub-cache")
}

func (o *Orchestrator) parseOptionsStage(log *audit.Log, opts Options) (*project.ChubProject, error) {
	var proj *project.ChubProject

	err := stageRunner(log, stageInit, "parse-options", "parsing CLI options", func() error {
		if opts.ProjectPath == "" && opts.ChubprojectPath == "" {
			proj = &project.ChubProject{Enabled: true}

			return nil
		}

		var err error
		if opts.ChubprojectPath != "" {
			proj, err = project.LoadChubProject(opts.ChubprojectPath)
		} else {
			proj, err = project.LoadPyproject(opts.ProjectPath)
		}

		if err != nil {
			return err
		}

		if proj == nil {
			proj = &project.ChubProject{Enabled: true}
		}

		return nil
	})

	return proj, err
}

func (o *Orchestrator) mergeProjectStage(log *audit.Log, opts Options, proj *project.ChubProject) (*project.ChubProject, error) {
	err := stageRunner(log, stageInit, "merge-override-project", "merging CLI overrides into project", func() error {
		override := &project.ChubProject{
			Entrypoint:     opts.Entrypoint,
			EntrypointArgs: opts.EntrypointArgs,
			Wheels:         opts.Wheels,
			Includes:       opts.Includes,
			IncludeChubs:   opts.IncludeChubs,
			PreScripts:     opts.PreScripts,
			PostScripts:    opts.PostScripts,
			Metadata:       opts.MetadataEntries,
		}

		proj = project.Merge(proj, override)

		return nil
	})

	return proj, err
}

func (o *Orchestrator) analyzePathDepsStage(log *audit.Log, proj *project.ChubProject) ([]string, error) {
	var wheels []string

	err := stageRunner(log, stageInit, "analyze-path-deps", "discovering path-dependency wheels", func() error {
		var roots []string

		for _, w := range proj.Wheels {
			if pathdeps.IsLocalPath(w) {
				roots = append(roots, w)
			}
		}

		if len(roots) == 0 {
			return nil
		}

		var err error

		wheels, err = pathdeps.DiscoverRecursive(pathdeps.DefaultRegistry(), roots, func(projectDir string) ([]string, error) {
			depProj, err := project.LoadPyproject(filepath.Join(projectDir, "pyproject.toml"))
			if err != nil || depProj == nil {
				return nil, nil
			}

			return depProj.Wheels, nil
		})

		return err
	})

	return wheels, err
}

func (o *Orchestrator) cacheProjectStage(log *audit.Log, plan *buildplan.BuildPlan) error {
	return stageRunner(log, stageInit, "cache-project", "staging project cache directory", func() error {
		return plan.Layout().EnsureDirs()
	})
}

func (o *Orchestrator) checkImmediateOpsStage(log *audit.Log, opts Options, proj *project.ChubProject) error {
	return stageRunner(log, stageInit, "check-immediate-ops", "checking for immediate operations", func() error {
		if opts.PrintVersion {
			return ErrImmediateExit
		}

		if opts.ChubprojectSave != "" {
			return ErrImmediateExit
		}

		if opts.AnalyzeCompat {
			return ErrImmediateExit
		}

		_ = proj

		return nil
	})
}

// Resolvers bundles the three per-invocation resolvers plus the
// compatibility evaluator, assembled once at the start of PLAN.
type Resolvers struct {
	Wheel      *resolution.Resolver[domain.WheelCacheEntry]
	Dependency *resolution.Resolver[domain.MetadataCacheEntry]
	Candidate  *resolution.Resolver[domain.MetadataCacheEntry]
	Evaluator  *compat.Evaluator
}

// Plan runs the PLAN stage: init resolvers → resolve compatibility →
// build dependency graph → persist buildplan.
func (o *Orchestrator) Plan(ctx context.Context, plan *buildplan.BuildPlan, spec *domain.CompatibilitySpec, roots []domain.WheelKey, opts Options) (graph.CompatibilityResolution, error) {
	log := plan.AuditLog()

	var planned graphResult

	err := stageRunner(log, stagePlan, "", "planning build", func() error {
		plan.CompatibilitySpec = spec

		resolvers, err := o.initResolversStage(log, plan, opts)
		if err != nil {
			return err
		}

		contexts, err := o.resolveCompatibilityStage(log, spec, opts)
		if err != nil {
			return err
		}

		versions, err := spec.ResolvedPythonVersions()
		if err != nil {
			return err
		}

		plan.ResolvedPythonVersions = versions

		result, err := o.buildDependencyGraphStage(ctx, log, resolvers, roots, contexts, versions)
		if err != nil {
			return err
		}

		planned = graphResult{result}

		return o.persistBuildplanStage(log, plan)
	})

	return planned.r, err
}

type graphResult struct {
	r graph.CompatibilityResolution
}

func (o *Orchestrator) initResolversStage(log *audit.Log, plan *buildplan.BuildPlan, opts Options) (*Resolvers, error) {
	var resolvers *Resolvers

	err := stageRunner(log, stagePlan, "init-resolvers", "initializing resolvers", func() error {
		baseCfg := resolution.ResolverConfig{
			LocalCacheRoot:   plan.Layout().Root,
			GlobalCacheRoot:  o.cacheRoot(opts),
			ProjectIsolation: opts.ProjectIsolation,
			ClearOnStartup:   opts.ClearOnStartup,
		}

		wheelCfg := resolution.NewWheelResolverConfig(baseCfg)
		metadataCfg := resolution.NewMetadataResolverConfig(baseCfg)

		evaluator := compat.New(plan.CompatibilitySpec)

		wheelStrategies := []resolution.Strategy{
			resolution.NewFilesystemWheelStrategy(resolution.DefaultFilesystemWheelStrategyConfig()),
			resolution.NewHTTPWheelStrategy(resolution.DefaultHTTPWheelStrategyConfig(), resolution.WithHTTPClient(o.HTTPClient)),
		}

		wheelResolver, err := resolution.NewWheelResolver(wheelCfg, wheelStrategies, evaluator)
		if err != nil {
			return err
		}

		baseURL := opts.SimpleAPIBaseURL
		if baseURL == "" {
			baseURL = "https://pypi.org/simple"
		}

		candidateStrategies := []resolution.Strategy{
			resolution.NewPep691SimpleAPIStrategy(resolution.DefaultPep691SimpleAPIStrategyConfig(), resolution.WithPep691BaseURL(baseURL), resolution.WithPep691HTTPClient(o.HTTPClient)),
		}

		candidateResolver, err := resolution.NewMetadataResolver(metadataCfg, candidateStrategies, domain.CandidateMetadata)
		if err != nil {
			return err
		}

		dependencyStrategies := []resolution.Strategy{
			resolution.NewPep658SidecarStrategy(resolution.DefaultPep658SidecarStrategyConfig(), resolution.WithPep658BaseURL(baseURL), resolution.WithPep658HTTPClient(o.HTTPClient)),
			resolution.NewWheelInspectionStrategy(resolution.DefaultWheelInspectionStrategyConfig(), wheelResolver),
		}

		dependencyResolver, err := resolution.NewMetadataResolver(metadataCfg, dependencyStrategies, domain.DependencyMetadata)
		if err != nil {
			return err
		}

		resolvers = &Resolvers{
			Wheel:      wheelResolver,
			Dependency: dependencyResolver,
			Candidate:  candidateResolver,
			Evaluator:  evaluator,
		}

		return nil
	})

	return resolvers, err
}

func (o *Orchestrator) resolveCompatibilityStage(log *audit.Log, spec *domain.CompatibilitySpec, opts Options) ([]domain.ResolutionContext, error) {
	var contexts []domain.ResolutionContext

	err := stageRunner(log, stagePlan, "resolve-compatibility", "resolving compatibility spec", func() error {
		strategies := []pyversion.DiscoveryStrategy{
			pyversion.NewLocalInterpreterStrategy(),
			pyversion.NewExternalAPIStrategy("", o.HTTPClient),
			pyversion.NewHTMLPageStrategy("", o.HTTPClient),
			pyversion.NewHardcodedDefaultStrategy(),
		}

		available, err := pyversion.Discover(context.Background(), strategies, spec.PythonVersions.Min, spec.PythonVersions.Max)
		if err != nil {
			return err
		}

		if err := spec.Realize(available); err != nil {
			return err
		}

		versions, err := spec.ResolvedPythonVersions()
		if err != nil {
			return err
		}

		contexts = buildResolutionContexts(versions)

		return nil
	})

	return contexts, err
}

func buildResolutionContexts(versions []string) []domain.ResolutionContext {
	contexts := make([]domain.ResolutionContext, 0, len(versions))

	for _, v := range versions {
		tag := domain.Tag{Interpreter: "py" + compactVersion(v), ABI: "none", Platform: "any"}

		contexts = append(contexts, domain.ResolutionContext{
			Arch:                 runtime.GOARCH,
			OSFamily:             runtime.GOOS,
			PythonImplementation: "cpython",
			PythonVersion:        v,
			Tag:                  tag,
		})
	}

	return contexts
}

func compactVersion(v string) string {
	out := make([]byte, 0, len(v))

	for i := range len(v) {
		if v[i] != '.' {
			out = append(out, v[i])
		}
	}

	return string(out)
}

func (o *Orchestrator) buildDependencyGraphStage(
	ctx context.Context,
	log *audit.Log,
	resolvers *Resolvers,
	roots []domain.WheelKey,
	contexts []domain.ResolutionContext,
	supportedPythonBand []string,
) (graph.CompatibilityResolution, error) {
	var result graph.CompatibilityResolution

	err := stageRunner(log, stagePlan, "build-dependency-graph", "building dependency graph", func() error {
		fetcher := &MetadataFetcher{
			CandidateResolver:  resolvers.Candidate,
			DependencyResolver: resolvers.Dependency,
			Evaluator:          resolvers.Evaluator,
		}

		builder := &graph.Builder{
			Metadata: fetcher,
			Selector: &graph.DefaultDependencySelector{Versions: fetcher},
		}

		built, err := builder.Build(ctx, roots, contexts, supportedPythonBand)
		if err != nil {
			return err
		}

		result = built

		return nil
	})

	return result, err
}

func (o *Orchestrator) persistBuildplanStage(log *audit.Log, plan *buildplan.BuildPlan) error {
	return stageRunner(log, stagePlan, "persist-buildplan", "persisting build plan", func() error {
		return plan.Persist(o.ChubVersion)
	})
}
