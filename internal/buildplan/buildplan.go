// Package buildplan defines the mutable accumulator the build orchestrator
// fills in across its lifecycle stages, and the ambient PackagingContext
// that carries it (and the three resolvers) through a single invocation.
package buildplan

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chubforge/chub/internal/audit"
	"github.com/chubforge/chub/internal/domain"
	"github.com/chubforge/chub/internal/project"
)

// StagingLayout names the fixed subdirectories under a project's cache
// root, per the persisted-state layout.
type StagingLayout struct {
	Root     string
	Wheels   string
	Metadata string
	Scripts  string
	Includes string
	Runtime  string
	Build    string
}

// NewStagingLayout derives the fixed subdirectory set under root.
func NewStagingLayout(root string) StagingLayout {
	return StagingLayout{
		Root:     root,
		Wheels:   filepath.Join(root, "wheels"),
		Metadata: filepath.Join(root, "metadata"),
		Scripts:  filepath.Join(root, "scripts"),
		Includes: filepath.Join(root, "includes"),
		Runtime:  filepath.Join(root, "runtime"),
		Build:    filepath.Join(root, "build"),
	}
}

// EnsureDirs creates every layout subdirectory.
func (l StagingLayout) EnsureDirs() error {
	for _, dir := range []string{l.Wheels, l.Metadata, l.Scripts, l.Includes, l.Runtime, l.Build} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("buildplan: creating %s: %w", dir, err)
		}
	}

	return nil
}

// IncludeFile is one normalized "src[::dest]" include entry.
type IncludeFile struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
}

// BuildPlan is the mutable accumulator threaded through INIT and PLAN.
type BuildPlan struct {
	CacheRoot              string                         `json:"cache_root"`
	CompatibilitySpec      *domain.CompatibilitySpec      `json:"compatibility_spec,omitempty"`
	CreatedAt              time.Time                      `json:"created_at"`
	IncludeFiles           []IncludeFile                  `json:"include_files"`
	InstallScripts         InstallScripts                 `json:"install_scripts"`
	Metadata               map[string]string              `json:"metadata"`
	PathDepWheelLocations  []string                       `json:"path_dep_wheel_locations"`
	Project                *project.ChubProject           `json:"project"`
	ProjectDir             string                         `json:"project_dir"`
	ProjectHash            string                          `json:"project_hash"`
	ResolvedPythonVersions []string                       `json:"resolved_python_versions"`
	Wheels                 []domain.WheelCacheEntry       `json:"wheels"`

	auditLog *audit.Log
	layout   StagingLayout
}

// InstallScripts separates pre- and post-install script paths.
type InstallScripts struct {
	Pre  []string `json:"pre"`
	Post []string `json:"post"`
}

// New constructs a fresh BuildPlan for proj, rooted at cacheRoot/<projectHash>.
func New(proj *project.ChubProject, globalCacheRoot string, auditLog *audit.Log) *BuildPlan {
	hash := ProjectHash(proj)
	root := filepath.Join(globalCacheRoot, hash)

	return &BuildPlan{
		CacheRoot:   root,
		CreatedAt:   time.Now().UTC(),
		Metadata:    map[string]string{},
		Project:     proj,
		ProjectDir:  filepath.Dir(proj.SourcePath),
		ProjectHash: hash,
		auditLog:    auditLog,
		layout:      NewStagingLayout(root),
	}
}

// Layout returns the plan's staging directory layout.
func (p *BuildPlan) Layout() StagingLayout { return p.layout }

// AuditLog returns the plan's owning audit log.
func (p *BuildPlan) AuditLog() *audit.Log { return p.auditLog }

// ProjectHash computes a stable content hash of the normalized project,
// used both as the cache-root subdirectory name and in meta.json.
func ProjectHash(proj *project.ChubProject) string {
	if proj == nil {
		return hex.EncodeToString(sha256.New().Sum(nil))[:16]
	}

	h := sha256.New()
	fmt.Fprintf(h, "name=%s\nversion=%s\nproject_path=%s\n", proj.Name, proj.Version, proj.ProjectPath)

	wheels := append([]string(nil), proj.Wheels...)
	sort.Strings(wheels)

	for _, w := range wheels {
		fmt.Fprintf(h, "wheel=%s\n", w)
	}

	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Meta is the small meta.json sidecar persisted alongside the plan.
type Meta struct {
	ChubVersion string    `json:"pychub_version"`
	CreatedAt   time.Time `json:"created_at"`
	ProjectHash string    `json:"project_hash"`
}

// Persist writes chubproject.toml, meta.json, buildplan.json and the audit
// log (build.audit.json) into the plan's staging directory, the final
// artifact of the PLAN stage.
func (p *BuildPlan) Persist(chubVersion string) error {
	if err := p.layout.EnsureDirs(); err != nil {
		return err
	}

	planBytes, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("buildplan: marshaling: %w", err)
	}

	if err := atomicWriteFile(filepath.Join(p.layout.Root, "buildplan.json"), planBytes); err != nil {
		return err
	}

	meta := Meta{ChubVersion: chubVersion, CreatedAt: p.CreatedAt, ProjectHash: p.ProjectHash}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("buildplan: marshaling meta: %w", err)
	}

	if err := atomicWriteFile(filepath.Join(p.layout.Root, "meta.json"), metaBytes); err != nil {
		return err
	}

	if p.Project != nil {
		var projBuf bytes.Buffer
		if err := toml.NewEncoder(&projBuf).Encode(p.Project); err != nil {
			return fmt.Errorf("buildplan: encoding chubproject.toml: %w", err)
		}

		if err := atomicWriteFile(filepath.Join(p.layout.Root, "chubproject.toml"), projBuf.Bytes()); err != nil {
			return err
		}
	}

	if p.auditLog != nil {
		auditBytes, err := json.MarshalIndent(p.auditLog, "", "  ")
		if err != nil {
			return fmt.Errorf("buildplan: marshaling audit log: %w", err)
		}

		if err := atomicWriteFile(audit.DefaultAuditFilePath(p.layout.Root), auditBytes); err != nil {
			return err
		}
	}

	return nil
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("buildplan: writing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("buildplan: renaming %s: %w", tmp, err)
	}

	return nil
}
