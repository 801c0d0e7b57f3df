package resolution

import (
	"time"

	"github.com/chubforge/chub/internal/domain"
)

// ResolverConfig holds the settings shared by every ArtifactResolver:
// where cache state lives, how often entries are refreshed, and whether
// the cache is isolated to the current project.
type ResolverConfig struct {
	LocalCacheRoot   string
	GlobalCacheRoot  string
	UpdateInterval   time.Duration
	ProjectIsolation bool
	ClearOnStartup   bool
}

// CacheRoot picks the local or global cache root per ProjectIsolation.
func (c ResolverConfig) CacheRoot() string {
	if c.ProjectIsolation {
		return c.LocalCacheRoot
	}

	return c.GlobalCacheRoot
}

// WheelResolverConfig is a ResolverConfig specialized for wheel artifacts.
// Wheel bytes are immutable once published, so the default update interval
// is zero: cached wheel entries never expire.
type WheelResolverConfig struct {
	ResolverConfig
}

// NewWheelResolverConfig builds a WheelResolverConfig with the immutable
// wheel-cache refresh policy (UpdateInterval left at zero unless overridden).
func NewWheelResolverConfig(base ResolverConfig) WheelResolverConfig {
	return WheelResolverConfig{ResolverConfig: base}
}

// MetadataResolverConfig is a ResolverConfig specialized for metadata
// artifacts, which do expire (a project's published releases can change).
type MetadataResolverConfig struct {
	ResolverConfig
}

// NewMetadataResolverConfig builds a MetadataResolverConfig, defaulting
// UpdateInterval to 24h when the caller leaves it unset.
func NewMetadataResolverConfig(base ResolverConfig) MetadataResolverConfig {
	if base.UpdateInterval == 0 {
		base.UpdateInterval = 24 * time.Hour
	}

	return MetadataResolverConfig{ResolverConfig: base}
}

// Default strategy configurations, mirroring the precedence and defaults of
// the known concrete strategies. Callers may copy and tweak these.

func DefaultFilesystemWheelStrategyConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		Name:            "filesystem-wheel-local",
		Precedence:      50,
		FetchTimeoutS:   20,
		Criticality:     domain.Optional,
		StrategyType:    domain.StrategyTypeWheelFile,
		StrategySubtype: "filesystem_wheel",
	}
}

func DefaultHTTPWheelStrategyConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		Name:            "http-wheel-index",
		Precedence:      40,
		FetchTimeoutS:   20,
		Criticality:     domain.Optional,
		StrategyType:    domain.StrategyTypeWheelFile,
		StrategySubtype: "https_wheel",
	}
}

func DefaultPep691SimpleAPIStrategyConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		Name:            "pep691-simple-api-pypi",
		Precedence:      50,
		FetchTimeoutS:   20,
		Criticality:     domain.Optional,
		StrategyType:    domain.StrategyTypeCandidateMetadata,
		StrategySubtype: "pep691_simple_api",
	}
}

func DefaultPep658SidecarStrategyConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		Name:            "pep658-sidecar-metadata",
		Precedence:      90,
		FetchTimeoutS:   20,
		Criticality:     domain.Optional,
		StrategyType:    domain.StrategyTypeDependencyMetadata,
		StrategySubtype: "pep658_sidecar",
	}
}

func DefaultWheelInspectionStrategyConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		Name:            "wheel-inspection-metadata",
		Precedence:      90,
		FetchTimeoutS:   20,
		Criticality:     domain.Optional,
		StrategyType:    domain.StrategyTypeDependencyMetadata,
		StrategySubtype: "wheel_inspection",
	}
}
