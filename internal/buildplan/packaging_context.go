package buildplan

import (
	"context"
	"errors"

	"github.com/chubforge/chub/internal/domain"
	"github.com/chubforge/chub/internal/resolution"
)

// PackagingContext is the ambient per-invocation value carrying the live
// BuildPlan and the three resolvers (wheel, dependency-metadata,
// candidate-metadata). It is acquired at orchestrator entry and released
// on every exit path via context.Context, rather than a global variable.
type PackagingContext struct {
	Plan                *BuildPlan
	WheelResolver       *resolution.Resolver[domain.WheelCacheEntry]
	DependencyResolver  *resolution.Resolver[domain.MetadataCacheEntry]
	CandidateResolver   *resolution.Resolver[domain.MetadataCacheEntry]
}

type packagingContextKey struct{}

// ErrNoPackagingContext is returned when code expecting an active
// PackagingContext runs outside of one.
var ErrNoPackagingContext = errors.New("buildplan: no packaging context active")

// WithPackagingContext scopes pc onto ctx for the duration of a single
// orchestrator invocation.
func WithPackagingContext(ctx context.Context, pc *PackagingContext) context.Context {
	return context.WithValue(ctx, packagingContextKey{}, pc)
}

// PackagingContextFrom retrieves the active PackagingContext, failing if
// none was scoped onto ctx.
func PackagingContextFrom(ctx context.Context) (*PackagingContext, error) {
	pc, ok := ctx.Value(packagingContextKey{}).(*PackagingContext)
	if !ok || pc == nil {
		return nil, ErrNoPackagingContext
	}

	return pc, nil
}
