package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chubforge/chub/internal/domain"
)

// Pep691SimpleAPIStrategy resolves project-wide candidate metadata by
// fetching a project's PEP 691 Simple API page and caching the decoded
// listing, re-encoded as JSON, in {name}.json. It never resolves per-wheel
// dependency metadata.
type Pep691SimpleAPIStrategy struct {
	cfg            domain.StrategyConfig
	baseSimpleURL  string
	requestHeaders map[string]string
	httpClient     *http.Client
	logger         *slog.Logger
}

var _ Strategy = (*Pep691SimpleAPIStrategy)(nil)

// Pep691Option configures a Pep691SimpleAPIStrategy.
type Pep691Option func(*Pep691SimpleAPIStrategy)

func WithPep691BaseURL(u string) Pep691Option {
	return func(s *Pep691SimpleAPIStrategy) {
		if u != "" {
			s.baseSimpleURL = u
		}
	}
}

func WithPep691Headers(h map[string]string) Pep691Option {
	return func(s *Pep691SimpleAPIStrategy) {
		if h != nil {
			s.requestHeaders = h
		}
	}
}

func WithPep691HTTPClient(c *http.Client) Pep691Option {
	return func(s *Pep691SimpleAPIStrategy) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// NewPep691SimpleAPIStrategy builds a Pep691SimpleAPIStrategy with cfg, or
// DefaultPep691SimpleAPIStrategyConfig() if cfg is the zero value.
func NewPep691SimpleAPIStrategy(cfg domain.StrategyConfig, opts ...Pep691Option) *Pep691SimpleAPIStrategy {
	if cfg.Name == "" {
		cfg = DefaultPep691SimpleAPIStrategyConfig()
	}

	s := &Pep691SimpleAPIStrategy{
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

func (s *Pep691SimpleAPIStrategy) Config() domain.StrategyConfig { return s.cfg }

func (s *Pep691SimpleAPIStrategy) Resolve(ctx context.Context, req Request) (Resolved, error) {
	if req.WheelKey == nil {
		return Resolved{}, nil
	}

	detail, err := fetchSimpleAPIProject(ctx, s.httpClient, s.logger, s.baseSimpleURL, req.WheelKey.Name, s.requestHeaders)
	if err != nil {
		return Resolved{}, err
	}

	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return Resolved{}, fmt.Errorf("resolution: encoding simple api response: %w", err)
	}

	destPath := filepath.Join(req.DestDir, req.WheelKey.Name+".json")

	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return Resolved{}, fmt.Errorf("resolution: writing %s: %w", destPath, err)
	}

	originURI := fmt.Sprintf("%s/%s/", s.baseSimpleURL, req.WheelKey.Name)

	return Resolved{Path: destPath, OriginURI: originURI}, nil
}
