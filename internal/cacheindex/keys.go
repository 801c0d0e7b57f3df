package cacheindex

import (
	"fmt"

	"github.com/chubforge/chub/internal/domain"
)

// WheelCacheKey derives the cache key for a resolved wheel artifact:
// "{canonical_name}-{version}-{chosen_tag}". chosenTag is the tag already
// selected by the compatibility evaluator for the wheel at uri.
func WheelCacheKey(key domain.WheelKey, chosenTag domain.Tag) string {
	return fmt.Sprintf("%s-%s-%s", domain.CanonicalName(key.Name), key.Version, chosenTag.String())
}

// MetadataCacheKey derives the cache key for a dependency-metadata lookup:
// "{canonical_name}-{version}-{context_tag}". The context tag scopes the
// entry to the resolution it was fetched for, since a distribution's
// declared dependencies can vary by environment marker.
func MetadataCacheKey(key domain.WheelKey, ctx domain.ResolutionContext) string {
	return fmt.Sprintf("%s-%s-%s", domain.CanonicalName(key.Name), key.Version, ctx.TagString())
}

// ProjectCacheKey derives the cache key for project-wide candidate metadata,
// which is not scoped to any particular resolution context.
func ProjectCacheKey(key domain.WheelKey) string {
	return domain.CanonicalName(key.Name)
}
