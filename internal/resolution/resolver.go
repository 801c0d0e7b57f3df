// Package resolution implements the artifact resolution and caching
// engine: resolution strategies that each know how to produce one kind of
// artifact, and a generic coordinator that checks the cache, falls through
// strategies in precedence order, and writes the result back to the cache.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chubforge/chub/internal/cacheindex"
	"github.com/chubforge/chub/internal/domain"
)

// ErrNoStrategySucceeded is returned when every configured strategy
// declined or failed to produce the requested artifact.
var ErrNoStrategySucceeded = errors.New("resolution: no strategy resolved the requested artifact")

// Resolver is the generic artifact-resolution coordinator: cache lookup,
// then strategy fallthrough in precedence order, then cache write. E is
// the concrete cache-entry type (domain.WheelCacheEntry or
// domain.MetadataCacheEntry); the two injected functions (cacheKeyFor and
// buildEntry) supply the
// behavior specific to that entry type, mirroring how the original
// coordinator's abstract hooks were implemented per concrete subclass.
type Resolver[E cacheindex.Entry] struct {
	cfg         ResolverConfig
	index       *cacheindex.Index[E]
	strategies  []Strategy
	artifactDir string
	logger      *slog.Logger
	group       singleflight.Group

	cacheKeyFor func(ctx context.Context, wheelKey *domain.WheelKey, uri string) (string, error)
	buildEntry  func(resolvedPath, originURI string, wheelKey *domain.WheelKey, cacheKey string, expiration time.Time) (E, error)
}

// ResolveRequest bundles the optional inputs a Resolve call may supply.
type ResolveRequest struct {
	WheelKey     *domain.WheelKey
	URI          string
	WheelPath    string
	ForceRefresh bool
}

// Resolve runs the cache-lookup / strategy-fallthrough / cache-write flow
// for one artifact request. Concurrent calls that share a cache key are
// collapsed into a single in-flight resolution via singleflight.
func (r *Resolver[E]) Resolve(ctx context.Context, req ResolveRequest) (E, error) {
	var zero E

	cacheKey, err := r.cacheKeyFor(ctx, req.WheelKey, req.URI)
	if err != nil {
		return zero, err
	}

	if !req.ForceRefresh {
		if entry, ok, err := r.index.Get(cacheKey, time.Now()); err != nil {
			return zero, err
		} else if ok {
			return entry, nil
		}
	}

	result, err, _ := r.group.Do(cacheKey, func() (any, error) {
		return r.resolveAndCache(ctx, cacheKey, req)
	})
	if err != nil {
		return zero, err
	}

	return result.(E), nil
}

func (r *Resolver[E]) resolveAndCache(ctx context.Context, cacheKey string, req ResolveRequest) (E, error) {
	var zero E

	// Re-check the cache: another goroutine may have populated it while we
	// waited to acquire the singleflight slot.
	if !req.ForceRefresh {
		if entry, ok, err := r.index.Get(cacheKey, time.Now()); err != nil {
			return zero, err
		} else if ok {
			return entry, nil
		}
	}

	if err := os.MkdirAll(r.artifactDir, 0o755); err != nil {
		return zero, fmt.Errorf("resolution: creating artifact dir %s: %w", r.artifactDir, err)
	}

	path, originURI, err := r.runStrategies(ctx, req)
	if err != nil {
		return zero, err
	}

	if path == "" {
		return zero, fmt.Errorf("%w: key %s", ErrNoStrategySucceeded, cacheKey)
	}

	expiration := time.Time{}
	if r.cfg.UpdateInterval > 0 {
		expiration = domain.TruncateToSecond(time.Now().Add(r.cfg.UpdateInterval))
	}

	entry, err := r.buildEntry(path, originURI, req.WheelKey, cacheKey, expiration)
	if err != nil {
		return zero, err
	}

	if err := r.index.Put(entry); err != nil {
		return zero, err
	}

	return entry, nil
}

// runStrategies tries each configured strategy in ascending precedence
// order. An Imperative strategy's failure aborts the whole resolution
// immediately; a Required/Optional strategy's failure is logged and the
// coordinator falls through to the next strategy.
func (r *Resolver[E]) runStrategies(ctx context.Context, req ResolveRequest) (path, originURI string, err error) {
	ordered := append([]Strategy(nil), r.strategies...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Config().Precedence < ordered[j].Config().Precedence
	})

	sreq := Request{
		DestDir:   r.artifactDir,
		WheelKey:  req.WheelKey,
		URI:       req.URI,
		WheelPath: req.WheelPath,
	}

	for _, strat := range ordered {
		resolved, serr := strat.Resolve(ctx, sreq)
		if serr != nil {
			if strat.Config().Criticality == domain.Imperative {
				return "", "", fmt.Errorf("resolution: imperative strategy %s failed: %w", strat.Config().Name, serr)
			}

			r.logger.Debug("strategy failed, falling through",
				slog.String("strategy", strat.Config().Name), slog.String("error", serr.Error()))

			continue
		}

		if resolved.ok() {
			return resolved.Path, resolved.OriginURI, nil
		}
	}

	return "", "", nil
}
