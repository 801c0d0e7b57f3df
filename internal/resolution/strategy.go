package resolution

import (
	"context"

	"github.com/chubforge/chub/internal/domain"
)

// Strategy resolves one kind of artifact (a wheel file, or a metadata
// document) into destDir. Implementations return a zero Resolved (empty
// Path) and a nil error when they have nothing to offer for this request — that is not an error, it just
// means the coordinator should fall through to the next strategy in
// precedence order. A non-nil error is reserved for the strategy actually
// attempting and failing at its job.
type Strategy interface {
	Config() domain.StrategyConfig
	Resolve(ctx context.Context, req Request) (Resolved, error)
}

// Request is the union of inputs a strategy might need. Not every field is
// meaningful for every strategy: a wheel-file strategy reads URI, a
// metadata strategy reads WheelKey (and sometimes WheelPath, for strategies
// that inspect an already-downloaded wheel).
type Request struct {
	DestDir   string
	WheelKey  *domain.WheelKey
	URI       string
	WheelPath string
}

// Resolved is what a strategy hands back on success.
type Resolved struct {
	Path      string
	OriginURI string
}

// ok reports whether a Resolved value represents an actual resolution
// (Path set) rather than "strategy had nothing to contribute".
func (r Resolved) ok() bool { return r.Path != "" }
