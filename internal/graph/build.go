package graph

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chubforge/chub/internal/domain"
)

// DependencyMetadataFetcher resolves one WheelKey's requires_dist lines for
// a given resolution context, via the metadata resolver (PEP 658 sidecar,
// wheel inspection, ...). A nil/empty result means no declared dependencies.
type DependencyMetadataFetcher interface {
	RequiresDist(ctx context.Context, key domain.WheelKey, rc domain.ResolutionContext) ([]string, error)
}

// Builder walks the dependency graph to fixpoint: starting from a root
// WheelKey set, it repeatedly resolves dependency metadata, applies
// environment markers per active resolution context, and selects concrete
// child WheelKeys until no unseen keys remain.
type Builder struct {
	Metadata DependencyMetadataFetcher
	Selector DependencySelector

	// MaxWorkers bounds concurrent RequiresDist fetches per node's active
	// resolution contexts. Defaults to runtime.GOMAXPROCS(0) when <= 0.
	MaxWorkers int
}

// Build runs the fixpoint traversal described in the compatibility
// resolution pipeline. supportedPythonBand is carried through unchanged
// (it is computed earlier, from realizing the CompatibilitySpec against
// discovered interpreter versions) and attached to the result.
func (b *Builder) Build(
	ctx context.Context,
	roots []domain.WheelKey,
	contexts []domain.ResolutionContext,
	supportedPythonBand []string,
) (CompatibilityResolution, error) {
	nodes := make(map[string]Node)
	seen := make(map[string]bool)

	queue := append([]domain.WheelKey(nil), roots...)

	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]

		keyStr := key.String()
		if seen[keyStr] {
			continue
		}

		seen[keyStr] = true

		deps, err := b.resolveDependencies(ctx, key, contexts)
		if err != nil {
			return CompatibilityResolution{}, err
		}

		nodes[keyStr] = Node{Key: key, Dependencies: deps}

		for _, dep := range deps {
			if !seen[dep.String()] {
				queue = append(queue, dep)
			}
		}
	}

	result := CompatibilityResolution{
		SupportedPythonBand: supportedPythonBand,
		Roots:               roots,
		Nodes:               nodes,
	}

	if err := result.Validate(); err != nil {
		return CompatibilityResolution{}, err
	}

	return result, nil
}

// resolveDependencies fetches requires_dist for key in every active
// context, unions the requirements whose marker matches at least one
// context, and selects a concrete child WheelKey for each.
func (b *Builder) resolveDependencies(ctx context.Context, key domain.WheelKey, contexts []domain.ResolutionContext) ([]domain.WheelKey, error) {
	linesPerContext, err := b.fetchRequiresDist(ctx, key, contexts)
	if err != nil {
		return nil, err
	}

	seenReqs := make(map[string]bool)

	var children []domain.WheelKey

	for i, rc := range contexts {
		env := MarkerEnvFromResolutionContext(rc)

		for _, line := range linesPerContext[i] {
			req := ParseRequirement(line)
			if !EvalMarker(req.Marker, env) {
				continue
			}

			dedupeKey := req.Name + "|" + req.Specifier
			if seenReqs[dedupeKey] {
				continue
			}

			seenReqs[dedupeKey] = true

			childKey, err := b.Selector.Select(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("graph: selecting dependency %s of %s: %w", req.Name, key, err)
			}

			children = append(children, childKey)
		}
	}

	return children, nil
}

// fetchRequiresDist fetches requires_dist for key across every active
// resolution context concurrently, bounded by MaxWorkers, mirroring the
// concurrent-download shape used elsewhere in this module.
func (b *Builder) fetchRequiresDist(ctx context.Context, key domain.WheelKey, contexts []domain.ResolutionContext) ([][]string, error) {
	results := make([][]string, len(contexts))

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	maxWorkers := b.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}

	g.SetLimit(maxWorkers)

	for i, rc := range contexts {
		g.Go(func() error {
			lines, err := b.Metadata.RequiresDist(gctx, key, rc)
			if err != nil {
				return fmt.Errorf("graph: resolving dependency metadata for %s: %w", key, err)
			}

			mu.Lock()
			results[i] = lines
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
