package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chubforge/chub/internal/cacheindex"
	"github.com/chubforge/chub/internal/domain"
)

// NewMetadataResolver builds a Resolver specialized for metadata
// artifacts. metadataType picks the cache-key shape: dependency metadata is
// scoped to (wheel_key, ambient resolution-context tag) since a
// distribution's declared requirements can vary by environment marker;
// candidate metadata is project-wide and unscoped.
func NewMetadataResolver(cfg MetadataResolverConfig, strategies []Strategy, metadataType domain.MetadataType, opts ...ResolverOption) (*Resolver[domain.MetadataCacheEntry], error) {
	index, err := cacheindex.Open[domain.MetadataCacheEntry]("metadata-index.json", cacheindex.WithDir(cfg.CacheRoot()))
	if err != nil {
		return nil, err
	}

	r := &Resolver[domain.MetadataCacheEntry]{
		cfg:         cfg.ResolverConfig,
		index:       index,
		strategies:  strategies,
		artifactDir: filepath.Join(cfg.CacheRoot(), "metadata"),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(&resolverOptions{resolver: r})
	}

	r.cacheKeyFor = func(ctx context.Context, wheelKey *domain.WheelKey, _ string) (string, error) {
		if wheelKey == nil {
			return "", fmt.Errorf("resolution: cannot compute cache key for a metadata resolver without a wheel key")
		}

		if metadataType == domain.DependencyMetadata {
			rc, err := ResolutionContextFrom(ctx)
			if err != nil {
				return "", fmt.Errorf("resolution: dependency metadata cache key: %w", err)
			}

			return cacheindex.MetadataCacheKey(*wheelKey, rc), nil
		}

		return cacheindex.ProjectCacheKey(*wheelKey), nil
	}

	r.buildEntry = func(resolvedPath, originURI string, wheelKey *domain.WheelKey, cacheKey string, expiration time.Time) (domain.MetadataCacheEntry, error) {
		hash, size, err := computeHashAndSize(resolvedPath)
		if err != nil {
			return domain.MetadataCacheEntry{}, err
		}

		now := domain.TruncateToSecond(time.Now())

		return domain.MetadataCacheEntry{
			CacheEntry: domain.CacheEntry{
				Key:        cacheKey,
				Path:       resolvedPath,
				OriginURI:  originURI,
				Timestamp:  now,
				Expiration: expiration,
			},
			MetadataType:  metadataType,
			HashAlgorithm: HashAlgorithm,
			Hash:          hash,
			SizeBytes:     size,
		}, nil
	}

	return r, nil
}
