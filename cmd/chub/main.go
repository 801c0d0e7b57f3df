// Command chub packages a Python wheel and its transitive dependency
// closure, plus auxiliary assets, into a single self-describing chub
// archive. It drives the INIT/PLAN build-plan lifecycle in
// internal/orchestrator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/chubforge/chub/internal/buildplan"
	"github.com/chubforge/chub/internal/domain"
	"github.com/chubforge/chub/internal/graph"
	"github.com/chubforge/chub/internal/orchestrator"
	"github.com/chubforge/chub/internal/pathdeps"
	"github.com/chubforge/chub/internal/project"
	"github.com/chubforge/chub/internal/pyversion"
)

var version = "0.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags mirrors the CLI surface onto plain fields so runChub can build
// an orchestrator.Options without re-querying cobra's flag set.
type cliFlags struct {
	analyzeCompat   bool
	chub            string
	chubproject     string
	chubprojectSave string
	entrypoint      string
	entrypointArgs  []string
	includes        []string
	includeChubs    []string
	metadataEntries []string
	postScripts     []string
	preScripts      []string
	printVersion    bool
	projectPath     string
	table           bool
	verbose         bool
	wheels          []string
}

func run() error {
	var flags cliFlags

	rootCmd := &cobra.Command{
		Use:           "chub",
		Short:         "Package a Python wheel and its dependency closure into a chub archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChub(cmd.Context(), flags)
		},
	}

	rootCmd.Flags().BoolVar(&flags.analyzeCompat, "analyze-compatibility", false, "Print the realized compatibility resolution and exit")
	rootCmd.Flags().StringVarP(&flags.chub, "chub", "c", "", "Output chub archive path")
	rootCmd.Flags().StringVar(&flags.chubproject, "chubproject", "", "Path to a standalone chubproject.toml")
	rootCmd.Flags().StringVar(&flags.chubprojectSave, "chubproject-save", "", "Write the merged project configuration to this path and exit")
	rootCmd.Flags().StringVarP(&flags.entrypoint, "entrypoint", "e", "", "Console-script entrypoint to run on install")
	rootCmd.Flags().StringSliceVar(&flags.entrypointArgs, "entrypoint-args", nil, "Arguments passed to the entrypoint")
	rootCmd.Flags().StringSliceVarP(&flags.includes, "include", "i", nil, "Extra files to bundle verbatim")
	rootCmd.Flags().StringSliceVar(&flags.includeChubs, "include-chub", nil, "Nested chub archives to bundle")
	rootCmd.Flags().StringSliceVarP(&flags.metadataEntries, "metadata-entry", "m", nil, "key=value metadata entries")
	rootCmd.Flags().StringSliceVarP(&flags.postScripts, "post-script", "o", nil, "Post-install script paths")
	rootCmd.Flags().StringSliceVarP(&flags.preScripts, "pre-script", "p", nil, "Pre-install script paths")
	rootCmd.Flags().StringVar(&flags.projectPath, "project-path", "pyproject.toml", "Path to the project's pyproject.toml")
	rootCmd.Flags().BoolVarP(&flags.table, "table", "t", false, "Print the dependency graph as a table instead of JSON")
	rootCmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Verbose audit output to stderr")
	rootCmd.Flags().BoolVarP(&flags.printVersion, "version", "v", false, "Print the chub version and exit")
	rootCmd.Flags().StringSliceVarP(&flags.wheels, "wheel", "w", nil, "Wheel files or local project paths to package")

	return rootCmd.Execute()
}

func runChub(ctx context.Context, flags cliFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	opts := orchestrator.Options{
		ProjectPath:      flags.projectPath,
		ChubprojectPath:  flags.chubproject,
		ChubprojectSave:  flags.chubprojectSave,
		Entrypoint:       flags.entrypoint,
		EntrypointArgs:   flags.entrypointArgs,
		Wheels:           flags.wheels,
		Includes:         flags.includes,
		IncludeChubs:     flags.includeChubs,
		MetadataEntries:  parseMetadataEntries(flags.metadataEntries),
		PreScripts:       flags.preScripts,
		PostScripts:      flags.postScripts,
		Verbose:          flags.verbose,
		PrintVersion:     flags.printVersion,
		AnalyzeCompat:    flags.analyzeCompat,
		GlobalCacheRoot:  cacheRootFromEnv(),
		ProjectIsolation: true,
		AuditSinks:       auditSinks(flags.verbose),
	}

	o := orchestrator.New(version)

	plan, err := o.Init(ctx, opts)
	if err != nil {
		if errors.Is(err, orchestrator.ErrImmediateExit) {
			return handleImmediateOp(flags, plan)
		}

		return fmt.Errorf("initializing build: %w", err)
	}

	spec, err := compatibilitySpecFromProject(plan.Project)
	if err != nil {
		return fmt.Errorf("building compatibility spec: %w", err)
	}

	roots, err := buildRoots(plan.Project, plan.PathDepWheelLocations)
	if err != nil {
		return fmt.Errorf("resolving wheel roots: %w", err)
	}

	result, err := o.Plan(ctx, plan, spec, roots, opts)
	if err != nil {
		return fmt.Errorf("planning build: %w", err)
	}

	if flags.table {
		printResolutionTable(result)

		return nil
	}

	return printResolutionJSON(result)
}

// handleImmediateOp performs whichever immediate operation Init's
// check-immediate-ops substage detected, in priority order: version print,
// chubproject save, compatibility analysis.
func handleImmediateOp(flags cliFlags, plan *buildplan.BuildPlan) error {
	if flags.printVersion {
		fmt.Println(version)

		return nil
	}

	if flags.chubprojectSave != "" {
		return saveChubproject(plan.Project, flags.chubprojectSave)
	}

	if flags.analyzeCompat {
		return analyzeCompatibility(plan.Project)
	}

	return nil
}

func saveChubproject(proj *project.ChubProject, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(proj)
}

// analyzeCompatibility discovers the available Python interpreters and
// prints the realized compatibility spec without running the rest of
// PLAN (no dependency graph, no network fetch of any wheel).
func analyzeCompatibility(proj *project.ChubProject) error {
	spec, err := compatibilitySpecFromProject(proj)
	if err != nil {
		return err
	}

	strategies := []pyversion.DiscoveryStrategy{
		pyversion.NewLocalInterpreterStrategy(),
		pyversion.NewExternalAPIStrategy("", nil),
		pyversion.NewHTMLPageStrategy("", nil),
		pyversion.NewHardcodedDefaultStrategy(),
	}

	available, err := pyversion.Discover(context.Background(), strategies, spec.PythonVersions.Min, spec.PythonVersions.Max)
	if err != nil {
		return fmt.Errorf("discovering python versions: %w", err)
	}

	if err := spec.Realize(available); err != nil {
		return fmt.Errorf("realizing compatibility spec: %w", err)
	}

	resolvedVersions, err := spec.ResolvedPythonVersions()
	if err != nil {
		return err
	}

	allowedTags, err := spec.AllowedTags()
	if err != nil {
		return err
	}

	tagStrings := make([]string, 0, len(allowedTags))
	for t := range allowedTags {
		tagStrings = append(tagStrings, t.String())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(map[string]any{
		"resolved_python_versions": resolvedVersions,
		"allowed_tags":             tagStrings,
	})
}

func parseMetadataEntries(entries []string) map[string]string {
	if len(entries) == 0 {
		return nil
	}

	out := make(map[string]string, len(entries))

	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}

		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return out
}

func cacheRootFromEnv() string {
	for _, name := range []string{"CHUB_CACHE_ROOT", "PYCHUB_CACHE_ROOT"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}

	return ""
}

func auditSinks(verbose bool) []string {
	if verbose {
		return []string{"stderr"}
	}

	return nil
}

func compatibilitySpecFromProject(proj *project.ChubProject) (*domain.CompatibilitySpec, error) {
	if proj == nil || proj.CompatibilitySpec == nil {
		pv, err := domain.NewPythonVersionsSpec("3.9", "")
		if err != nil {
			return nil, err
		}

		return &domain.CompatibilitySpec{PythonVersions: pv}, nil
	}

	spec, err := domain.DecodeCompatibilitySpec(proj.CompatibilitySpec)
	if err != nil {
		return nil, err
	}

	if spec.PythonVersions.Min == "" {
		pv, err := domain.NewPythonVersionsSpec("3.9", "")
		if err != nil {
			return nil, err
		}

		spec.PythonVersions = pv
	}

	return spec, nil
}

// buildRoots turns a project's wheels[] entries (skipping local path
// dependencies, already expanded into pathDepWheels by INIT) into root
// WheelKeys by parsing each entry as a wheel filename.
func buildRoots(proj *project.ChubProject, pathDepWheels []string) ([]domain.WheelKey, error) {
	var filenames []string

	if proj != nil {
		for _, w := range proj.Wheels {
			if pathdeps.IsLocalPath(w) {
				continue
			}

			filenames = append(filenames, w)
		}
	}

	filenames = append(filenames, pathDepWheels...)

	roots := make([]domain.WheelKey, 0, len(filenames))

	for _, f := range filenames {
		parsed, err := domain.ParseWheelFilename(filepath.Base(f))
		if err != nil {
			return nil, fmt.Errorf("parsing wheel root %s: %w", f, err)
		}

		roots = append(roots, domain.NewWheelKey(parsed.Name, parsed.Version))
	}

	return roots, nil
}

func printResolutionJSON(result graph.CompatibilityResolution) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func printResolutionTable(result graph.CompatibilityResolution) {
	fmt.Printf("Supported Python versions: %s\n\n", strings.Join(result.SupportedPythonBand, ", "))

	for _, root := range result.Roots {
		printNodeTree(root, result.Nodes, "", make(map[string]bool))
	}
}

func printNodeTree(key domain.WheelKey, nodes map[string]graph.Node, prefix string, visited map[string]bool) {
	node, ok := nodes[key.String()]
	if !ok {
		return
	}

	fmt.Printf("%s%s %s\n", prefix, node.Key.Name, node.Key.Version)

	if visited[key.String()] {
		return
	}

	visited[key.String()] = true

	for _, dep := range node.Dependencies {
		printNodeTree(dep, nodes, prefix+"  ", visited)
	}
}
