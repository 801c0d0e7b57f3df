package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chubforge/chub/internal/cacheindex"
	"github.com/chubforge/chub/internal/compat"
	"github.com/chubforge/chub/internal/domain"
)

// TagChooser is the subset of *compat.Evaluator the wheel resolver needs:
// picking the single best tag a wheel filename offers.
type TagChooser interface {
	ChooseWheelTag(filename, name, version string) (domain.Tag, error)
}

var _ TagChooser = (*compat.Evaluator)(nil)

// NewWheelResolver builds a Resolver specialized for wheel-file artifacts.
// Its cache key is "{canonical_name}-{version}-{chosen_tag}", derived from
// the URI's filename via chooser; wheel entries never expire unless cfg
// sets a nonzero UpdateInterval (wheel bytes are immutable once published,
// so the default resolver config leaves this at zero).
func NewWheelResolver(cfg WheelResolverConfig, strategies []Strategy, chooser TagChooser, opts ...ResolverOption) (*Resolver[domain.WheelCacheEntry], error) {
	index, err := cacheindex.Open[domain.WheelCacheEntry]("wheel-index.json", cacheindex.WithDir(cfg.CacheRoot()))
	if err != nil {
		return nil, err
	}

	r := &Resolver[domain.WheelCacheEntry]{
		cfg:         cfg.ResolverConfig,
		index:       index,
		strategies:  strategies,
		artifactDir: filepath.Join(cfg.CacheRoot(), "wheels"),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(&resolverOptions{resolver: r})
	}

	r.cacheKeyFor = func(_ context.Context, wheelKey *domain.WheelKey, uri string) (string, error) {
		if uri == "" {
			return "", fmt.Errorf("resolution: cannot compute cache key for a wheel resolver without a URI")
		}

		filename := filepath.Base(stripQuery(uri))

		name, version, tag, err := chosenWheelIdentity(filename, chooser)
		if err != nil {
			return "", err
		}

		key := domain.NewWheelKey(name, version)

		return cacheindex.WheelCacheKey(key, tag), nil
	}

	r.buildEntry = func(resolvedPath, originURI string, wheelKey *domain.WheelKey, cacheKey string, expiration time.Time) (domain.WheelCacheEntry, error) {
		filename := filepath.Base(resolvedPath)

		name, version, tag, err := chosenWheelIdentity(filename, chooser)
		if err != nil {
			return domain.WheelCacheEntry{}, err
		}

		key := wheelKey
		if key == nil {
			nk := domain.NewWheelKey(name, version)
			key = &nk
		}

		hash, size, err := computeHashAndSize(resolvedPath)
		if err != nil {
			return domain.WheelCacheEntry{}, err
		}

		now := domain.TruncateToSecond(time.Now())

		return domain.WheelCacheEntry{
			CacheEntry: domain.CacheEntry{
				Key:        cacheKey,
				Path:       resolvedPath,
				OriginURI:  originURI,
				Timestamp:  now,
				Expiration: expiration,
			},
			WheelKey:         *key,
			CompatibilityTag: tag.String(),
			HashAlgorithm:    HashAlgorithm,
			Hash:             hash,
			SizeBytes:        size,
		}, nil
	}

	return r, nil
}

func chosenWheelIdentity(filename string, chooser TagChooser) (name, version string, tag domain.Tag, err error) {
	parsed, err := domain.ParseWheelFilename(filename)
	if err != nil {
		return "", "", domain.Tag{}, fmt.Errorf("resolution: parsing wheel filename %q: %w", filename, err)
	}

	tag, err = chooser.ChooseWheelTag(filename, parsed.Name, parsed.Version)
	if err != nil {
		return "", "", domain.Tag{}, err
	}

	return parsed.Name, parsed.Version, tag, nil
}

func stripQuery(uri string) string {
	for i := range len(uri) {
		if uri[i] == '?' {
			return uri[:i]
		}
	}

	return uri
}

// ResolverOption configures a Resolver at construction time.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	resolver interface{ setLogger(*slog.Logger) }
}

// WithResolverLogger sets the structured logger used for strategy-fallthrough
// diagnostics.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(o *resolverOptions) {
		if l != nil && o.resolver != nil {
			o.resolver.setLogger(l)
		}
	}
}

func (r *Resolver[E]) setLogger(l *slog.Logger) { r.logger = l }
