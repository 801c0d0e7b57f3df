package resolution

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"context"

	"github.com/chubforge/chub/internal/domain"
)

// WheelMaterializer is the subset of *Resolver[domain.WheelCacheEntry] that
// WheelInspectionStrategy needs: given a WheelKey carrying a chosen file's
// origin URL, produce a local path to the wheel's bytes (from cache, or by
// running the wheel strategies fresh).
type WheelMaterializer interface {
	Resolve(ctx context.Context, req ResolveRequest) (domain.WheelCacheEntry, error)
}

// WheelInspectionStrategy resolves dependency metadata by extracting the
// METADATA file straight out of a wheel's .dist-info directory. It is the
// fallback when the server offers no PEP 658 sidecar for the chosen file;
// without a local wheel it still relies on the chosen file's origin URL
// from PEP 691 candidate data. If req.WheelPath already points at a local
// wheel file, it inspects that directly; otherwise it materializes the
// wheel itself via wheels, using req.WheelKey's chosen tag/origin URL.
type WheelInspectionStrategy struct {
	cfg    domain.StrategyConfig
	wheels WheelMaterializer
}

var _ Strategy = (*WheelInspectionStrategy)(nil)

// NewWheelInspectionStrategy builds a WheelInspectionStrategy with cfg, or
// DefaultWheelInspectionStrategyConfig() if cfg is the zero value. wheels
// materializes the actual wheel bytes when req.WheelPath isn't already set.
func NewWheelInspectionStrategy(cfg domain.StrategyConfig, wheels WheelMaterializer) *WheelInspectionStrategy {
	if cfg.Name == "" {
		cfg = DefaultWheelInspectionStrategyConfig()
	}

	return &WheelInspectionStrategy{cfg: cfg, wheels: wheels}
}

func (s *WheelInspectionStrategy) Config() domain.StrategyConfig { return s.cfg }

func (s *WheelInspectionStrategy) Resolve(ctx context.Context, req Request) (Resolved, error) {
	wheelPath := req.WheelPath

	if wheelPath == "" {
		path, err := s.materializeWheel(ctx, req)
		if err != nil {
			return Resolved{}, err
		}

		wheelPath = path
	}

	if wheelPath == "" {
		return Resolved{}, nil
	}

	r, err := zip.OpenReader(wheelPath)
	if err != nil {
		return Resolved{}, fmt.Errorf("resolution: opening wheel %s: %w", wheelPath, err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		if !strings.Contains(f.Name, ".dist-info/") || filepath.Base(f.Name) != "METADATA" {
			continue
		}

		destPath := filepath.Join(req.DestDir, filepath.Base(wheelPath)+".METADATA")

		if err := extractZipEntry(f, destPath); err != nil {
			return Resolved{}, err
		}

		return Resolved{Path: destPath, OriginURI: "wheel-inspection:" + wheelPath}, nil
	}

	return Resolved{}, fmt.Errorf("resolution: no .dist-info/METADATA found in %s", wheelPath)
}

// materializeWheel fetches the actual wheel bytes for req.WheelKey's chosen
// file, via the wheel resolver, so they can be inspected below. It returns
// ("", nil) when req carries no wheel identity to resolve against, letting
// the caller fall through as "nothing to offer" rather than failing.
func (s *WheelInspectionStrategy) materializeWheel(ctx context.Context, req Request) (string, error) {
	if s.wheels == nil || req.WheelKey == nil || req.WheelKey.Metadata == nil || req.WheelKey.Metadata.OriginURI == "" {
		return "", nil
	}

	entry, err := s.wheels.Resolve(ctx, ResolveRequest{
		WheelKey: req.WheelKey,
		URI:      req.WheelKey.Metadata.OriginURI,
	})
	if err != nil {
		return "", fmt.Errorf("resolution: materializing wheel for %s: %w", req.WheelKey, err)
	}

	return entry.Path, nil
}

func extractZipEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("resolution: opening zip entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	tmp := destPath + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("resolution: creating %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)

		return fmt.Errorf("resolution: extracting %s: %w", f.Name, err)
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
