package resolution

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/chubforge/chub/internal/domain"
)

// FilesystemWheelStrategy resolves "file://" URIs by copying the referenced
// wheel into destDir. It never contributes for any other scheme.
type FilesystemWheelStrategy struct {
	cfg domain.StrategyConfig
}

var _ Strategy = (*FilesystemWheelStrategy)(nil)

// NewFilesystemWheelStrategy builds a FilesystemWheelStrategy with cfg, or
// DefaultFilesystemWheelStrategyConfig() if cfg is the zero value.
func NewFilesystemWheelStrategy(cfg domain.StrategyConfig) *FilesystemWheelStrategy {
	if cfg.Name == "" {
		cfg = DefaultFilesystemWheelStrategyConfig()
	}

	return &FilesystemWheelStrategy{cfg: cfg}
}

func (s *FilesystemWheelStrategy) Config() domain.StrategyConfig { return s.cfg }

func (s *FilesystemWheelStrategy) Resolve(_ context.Context, req Request) (Resolved, error) {
	if req.URI == "" {
		return Resolved{}, nil
	}

	u, err := url.Parse(req.URI)
	if err != nil || (u.Scheme != "" && u.Scheme != "file") {
		return Resolved{}, nil
	}

	srcPath := u.Path
	if srcPath == "" {
		srcPath = req.URI
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return Resolved{}, fmt.Errorf("resolution: stat %s: %w", srcPath, err)
	}

	if info.IsDir() {
		return Resolved{}, fmt.Errorf("resolution: %s is a directory, not a wheel", srcPath)
	}

	destPath := filepath.Join(req.DestDir, filepath.Base(srcPath))

	if err := copyFileAtomic(srcPath, destPath); err != nil {
		return Resolved{}, err
	}

	return Resolved{Path: destPath, OriginURI: req.URI}, nil
}

// copyFileAtomic copies src into dst via a ".tmp" sibling and rename, the
// same atomic-write pattern used throughout the cache layer.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("resolution: opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("resolution: creating %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)

		return fmt.Errorf("resolution: copying to %s: %w", tmp, err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("resolution: closing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("resolution: renaming %s: %w", tmp, err)
	}

	return nil
}
