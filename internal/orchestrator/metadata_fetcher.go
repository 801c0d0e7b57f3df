package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chubforge/chub/internal/compat"
	"github.com/chubforge/chub/internal/domain"
	"github.com/chubforge/chub/internal/graph"
	"github.com/chubforge/chub/internal/resolution"
)

// MetadataFetcher implements both graph.DependencyMetadataFetcher and
// graph.CandidateVersionsProvider against the live resolver pair:
// candidate metadata (PEP 691 project listing) and dependency metadata
// (PEP 658 sidecar, falling back to wheel introspection — the wheel
// resolver that fallback needs is wired directly into the
// WheelInspectionStrategy at construction, not routed through here).
type MetadataFetcher struct {
	CandidateResolver  *resolution.Resolver[domain.MetadataCacheEntry]
	DependencyResolver *resolution.Resolver[domain.MetadataCacheEntry]
	Evaluator          *compat.Evaluator
}

var (
	_ graph.DependencyMetadataFetcher = (*MetadataFetcher)(nil)
	_ graph.CandidateVersionsProvider = (*MetadataFetcher)(nil)
)

// CandidateVersions fetches the PEP 691 Simple API project listing for
// canonicalName and returns its published version strings.
func (f *MetadataFetcher) CandidateVersions(ctx context.Context, canonicalName string) ([]string, error) {
	key := domain.NewWheelKey(canonicalName, "0")

	entry, err := f.CandidateResolver.Resolve(ctx, resolution.ResolveRequest{WheelKey: &key})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: fetching candidate versions for %s: %w", canonicalName, err)
	}

	detail, err := readSimpleAPIDetail(entry.Path)
	if err != nil {
		return nil, err
	}

	return detail.Versions, nil
}

// RequiresDist resolves key's dependency metadata under resolution context
// rc and returns its Requires-Dist lines, trying the PEP 658 sidecar first
// and falling through to wheel introspection (both are configured on
// DependencyResolver in precedence order; only the routing between
// candidate-metadata lookup and tag selection lives here).
func (f *MetadataFetcher) RequiresDist(ctx context.Context, key domain.WheelKey, rc domain.ResolutionContext) ([]string, error) {
	ctx = resolution.WithResolutionContext(ctx, rc)

	taggedKey, err := f.withChosenTag(ctx, key)
	if err != nil {
		return nil, err
	}

	entry, err := f.DependencyResolver.Resolve(ctx, resolution.ResolveRequest{WheelKey: &taggedKey})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolving dependency metadata for %s: %w", key, err)
	}

	text, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reading metadata file %s: %w", entry.Path, err)
	}

	return ParseCoreMetadataText(string(text)).RequiresDist, nil
}

// withChosenTag resolves key's candidate metadata, picks the best
// compatible wheel file among the project's listing, and attaches the
// chosen tag to a copy of key so PEP 658 sidecar resolution can proceed.
func (f *MetadataFetcher) withChosenTag(ctx context.Context, key domain.WheelKey) (domain.WheelKey, error) {
	entry, err := f.CandidateResolver.Resolve(ctx, resolution.ResolveRequest{WheelKey: &key})
	if err != nil {
		return domain.WheelKey{}, fmt.Errorf("orchestrator: fetching candidate metadata for %s: %w", key, err)
	}

	detail, err := readSimpleAPIDetail(entry.Path)
	if err != nil {
		return domain.WheelKey{}, err
	}

	filenames := make([]string, 0, len(detail.Files))
	yanked := make([]bool, 0, len(detail.Files))
	urlByFilename := make(map[string]string, len(detail.Files))

	for _, file := range detail.Files {
		filenames = append(filenames, file.Filename)
		yanked = append(yanked, file.IsYanked())
		urlByFilename[file.Filename] = file.URL
	}

	chosenFile, tag, err := f.Evaluator.ChooseBestWheelFile(filenames, yanked, key.Name, key.Version)
	if err != nil {
		return domain.WheelKey{}, fmt.Errorf("orchestrator: choosing wheel file for %s: %w", key, err)
	}

	satisfied := map[string]struct{}{tag.String(): {}}

	tagged := key
	tagged.Metadata = &domain.WheelKeyMetadata{
		ActualTag:     tag.String(),
		SatisfiedTags: satisfied,
		OriginURI:     urlByFilename[chosenFile],
	}

	return tagged, nil
}

func readSimpleAPIDetail(path string) (*resolution.SimpleAPIProjectDetail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: reading simple api detail %s: %w", path, err)
	}

	var detail resolution.SimpleAPIProjectDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("orchestrator: decoding simple api detail %s: %w", path, err)
	}

	return &detail, nil
}
