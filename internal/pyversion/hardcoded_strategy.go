package pyversion

import "context"

// HardcodedDefaultStrategy returns a fixed, compiled-in list of CPython
// release lines. It is the strategy of last resort when neither the
// external API nor the downloads page nor a local interpreter can be
// consulted (e.g. fully offline).
type HardcodedDefaultStrategy struct {
	Versions []string
}

var _ DiscoveryStrategy = (*HardcodedDefaultStrategy)(nil)

// NewHardcodedDefaultStrategy builds a HardcodedDefaultStrategy seeded with
// the currently maintained CPython release lines.
func NewHardcodedDefaultStrategy() *HardcodedDefaultStrategy {
	return &HardcodedDefaultStrategy{
		Versions: []string{"3.9", "3.10", "3.11", "3.12", "3.13"},
	}
}

func (s *HardcodedDefaultStrategy) Name() string { return "hardcoded-default" }

func (s *HardcodedDefaultStrategy) Discover(_ context.Context) ([]string, error) {
	return s.Versions, nil
}
