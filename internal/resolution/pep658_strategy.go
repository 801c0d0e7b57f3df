package resolution

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chubforge/chub/internal/domain"
)

// Pep658SidecarStrategy resolves dependency metadata by locating the
// requested wheel's entry on its project's Simple API page and, if the
// server advertises a PEP 658 ".metadata" sidecar for it, fetching that
// sidecar directly instead of the whole wheel.
type Pep658SidecarStrategy struct {
	cfg            domain.StrategyConfig
	baseSimpleURL  string
	requestHeaders map[string]string
	httpClient     *http.Client
	logger         *slog.Logger
}

var _ Strategy = (*Pep658SidecarStrategy)(nil)

// Pep658Option configures a Pep658SidecarStrategy.
type Pep658Option func(*Pep658SidecarStrategy)

func WithPep658BaseURL(u string) Pep658Option {
	return func(s *Pep658SidecarStrategy) {
		if u != "" {
			s.baseSimpleURL = u
		}
	}
}

func WithPep658HTTPClient(c *http.Client) Pep658Option {
	return func(s *Pep658SidecarStrategy) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// NewPep658SidecarStrategy builds a Pep658SidecarStrategy with cfg, or
// DefaultPep658SidecarStrategyConfig() if cfg is the zero value.
func NewPep658SidecarStrategy(cfg domain.StrategyConfig, opts ...Pep658Option) *Pep658SidecarStrategy {
	if cfg.Name == "" {
		cfg = DefaultPep658SidecarStrategyConfig()
	}

	s := &Pep658SidecarStrategy{
		cfg:            cfg,
		baseSimpleURL:  "https://pypi.org/simple",
		requestHeaders: map[string]string{"Accept": simpleAPIAccept},
		httpClient:     &http.Client{},
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Pep658SidecarStrategy) Config() domain.StrategyConfig { return s.cfg }

func (s *Pep658SidecarStrategy) Resolve(ctx context.Context, req Request) (Resolved, error) {
	if req.WheelKey == nil || req.WheelKey.Metadata == nil || req.WheelKey.Metadata.ActualTag == "" {
		return Resolved{}, nil
	}

	detail, err := fetchSimpleAPIProject(ctx, s.httpClient, s.logger, s.baseSimpleURL, req.WheelKey.Name, s.requestHeaders)
	if err != nil {
		return Resolved{}, err
	}

	file, ok := findMatchingFile(detail.Files, *req.WheelKey)
	if !ok || !file.HasMetadataSidecar() {
		return Resolved{}, nil
	}

	sidecarURL := file.URL + ".metadata"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, sidecarURL, nil)
	if err != nil {
		return Resolved{}, fmt.Errorf("resolution: creating request for %s: %w", sidecarURL, err)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return Resolved{}, fmt.Errorf("resolution: requesting %s: %w", sidecarURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// No sidecar despite the marker: not an error, just nothing to offer.
		return Resolved{}, nil
	}

	destPath := filepath.Join(req.DestDir, file.Filename+".metadata")

	out, err := os.Create(destPath)
	if err != nil {
		return Resolved{}, fmt.Errorf("resolution: creating %s: %w", destPath, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()

		return Resolved{}, fmt.Errorf("resolution: writing %s: %w", destPath, err)
	}

	if err := out.Close(); err != nil {
		return Resolved{}, fmt.Errorf("resolution: closing %s: %w", destPath, err)
	}

	return Resolved{Path: destPath, OriginURI: sidecarURL}, nil
}

// findMatchingFile locates the Simple API file entry whose filename
// identifies the same (name, version, tag) as key.
func findMatchingFile(files []SimpleAPIFile, key domain.WheelKey) (SimpleAPIFile, bool) {
	for _, f := range files {
		if f.IsYanked() {
			continue
		}

		parsed, err := domain.ParseWheelFilename(f.Filename)
		if err != nil {
			continue
		}

		if domain.CanonicalName(parsed.Name) != key.Name || domain.NormalizeVersion(parsed.Version) != key.Version {
			continue
		}

		for _, t := range parsed.Tags {
			if t.String() == key.Metadata.ActualTag {
				return f, true
			}
		}
	}

	return SimpleAPIFile{}, false
}
