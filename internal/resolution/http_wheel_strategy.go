package resolution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chubforge/chub/internal/domain"
)

const httpWheelMaxRetries = 3

// retryableError wraps errors that are transient and worth a retry (network
// failures, 5xx responses). Permanent errors (4xx, hash mismatch) are
// returned bare so the caller fails fast.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// HttpWheelStrategy resolves "http(s)://" URIs by downloading the wheel,
// retrying transient failures with exponential backoff.
type HttpWheelStrategy struct {
	cfg        domain.StrategyConfig
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Strategy = (*HttpWheelStrategy)(nil)

// HTTPOption configures an HttpWheelStrategy.
type HTTPOption func(*HttpWheelStrategy)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HttpWheelStrategy) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(s *HttpWheelStrategy) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewHTTPWheelStrategy builds an HttpWheelStrategy with cfg, or
// DefaultHTTPWheelStrategyConfig() if cfg is the zero value.
func NewHTTPWheelStrategy(cfg domain.StrategyConfig, opts ...HTTPOption) *HttpWheelStrategy {
	if cfg.Name == "" {
		cfg = DefaultHTTPWheelStrategyConfig()
	}

	s := &HttpWheelStrategy{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *HttpWheelStrategy) Config() domain.StrategyConfig { return s.cfg }

func (s *HttpWheelStrategy) Resolve(ctx context.Context, req Request) (Resolved, error) {
	if req.URI == "" {
		return Resolved{}, nil
	}

	u, err := url.Parse(req.URI)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Resolved{}, nil
	}

	destPath := filepath.Join(req.DestDir, filepath.Base(u.Path))

	if err := s.downloadWithRetry(ctx, req.URI, destPath); err != nil {
		return Resolved{}, err
	}

	return Resolved{Path: destPath, OriginURI: req.URI}, nil
}

func (s *HttpWheelStrategy) downloadWithRetry(ctx context.Context, uri, destPath string) error {
	var lastErr error

	for attempt := range httpWheelMaxRetries {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 500 * time.Millisecond

			s.logger.Debug("retrying wheel download",
				slog.String("uri", uri), slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return fmt.Errorf("resolution: download canceled: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		err := s.doDownload(ctx, uri, destPath)
		if err == nil {
			return nil
		}

		var re *retryableError
		if !errors.As(err, &re) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("resolution: after %d attempts: %w", httpWheelMaxRetries, lastErr)
}

func (s *HttpWheelStrategy) doDownload(ctx context.Context, uri, destPath string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("resolution: creating request: %w", err)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return &retryableError{err: fmt.Errorf("resolution: requesting %s: %w", uri, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("resolution: unexpected status %d from %s", resp.StatusCode, uri)

		if resp.StatusCode >= http.StatusInternalServerError {
			return &retryableError{err: err}
		}

		return err
	}

	tmp := destPath + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("resolution: creating %s: %w", tmp, err)
	}

	if _, copyErr := io.Copy(out, resp.Body); copyErr != nil {
		_ = out.Close()
		_ = os.Remove(tmp)

		return &retryableError{err: fmt.Errorf("resolution: writing %s: %w", destPath, copyErr)}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("resolution: closing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, destPath); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("resolution: renaming %s: %w", tmp, err)
	}

	return nil
}
