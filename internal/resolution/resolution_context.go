package resolution

import (
	"context"
	"errors"

	"github.com/chubforge/chub/internal/domain"
)

type resolutionContextKey struct{}

// ErrNoResolutionContext is returned by ResolutionContextFrom when ctx
// carries no domain.ResolutionContext, mirroring the LookupError the
// original contextvar-based implementation raises.
var ErrNoResolutionContext = errors.New("resolution: no resolution context set")

// WithResolutionContext returns a derived context carrying rc, replacing
// the ambient env/arch/tag scope that cache-key derivation and strategies
// read back out via ResolutionContextFrom.
func WithResolutionContext(ctx context.Context, rc domain.ResolutionContext) context.Context {
	return context.WithValue(ctx, resolutionContextKey{}, rc)
}

// ResolutionContextFrom retrieves the domain.ResolutionContext set by the
// nearest enclosing WithResolutionContext call.
func ResolutionContextFrom(ctx context.Context) (domain.ResolutionContext, error) {
	rc, ok := ctx.Value(resolutionContextKey{}).(domain.ResolutionContext)
	if !ok {
		return domain.ResolutionContext{}, ErrNoResolutionContext
	}

	return rc, nil
}
