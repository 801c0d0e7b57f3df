package compat

import (
	"fmt"
	"strings"

	"github.com/chubforge/chub/internal/domain"
)

// tagScoreKey is the lexicographic sort key used to pick the single best
// tag among several compatible candidates. Smaller sorts first ("wins").
type tagScoreKey struct {
	interpRank int
	abiRank    int
	platRank   int
	tagStr     string
}

func less(a, b tagScoreKey) bool {
	if a.interpRank != b.interpRank {
		return a.interpRank < b.interpRank
	}

	if a.abiRank != b.abiRank {
		return a.abiRank < b.abiRank
	}

	if a.platRank != b.platRank {
		return a.platRank < b.platRank
	}

	return a.tagStr < b.tagStr
}

func interpreterRank(interp string) int {
	switch {
	case strings.HasPrefix(interp, "py"):
		return 0
	case strings.HasPrefix(interp, "cp"):
		return 1
	default:
		return 2
	}
}

func abiRank(abi string) int {
	switch {
	case abi == "none":
		return 0
	case abi == "abi3":
		return 1
	default:
		return 2
	}
}

func platformRank(platform string) int {
	switch {
	case platform == "any":
		return 0
	case strings.HasPrefix(platform, "manylinux"):
		return 1
	case strings.HasPrefix(platform, "musllinux"):
		return 2
	default:
		return 3
	}
}

func scoreTag(t domain.Tag) tagScoreKey {
	return tagScoreKey{
		interpRank: interpreterRank(t.Interpreter),
		abiRank:    abiRank(t.ABI),
		platRank:   platformRank(t.Platform),
		tagStr:     t.String(),
	}
}

// ChooseWheelTag parses filename, rejects a (name, version) mismatch
// against the expected identity, filters its tag set down to what the
// evaluator accepts, and returns the single best (lowest-scoring) Tag.
func (e *Evaluator) ChooseWheelTag(filename, name, version string) (domain.Tag, error) {
	parsed, err := domain.ParseWheelFilename(filename)
	if err != nil {
		return domain.Tag{}, err
	}

	if domain.CanonicalName(parsed.Name) != domain.CanonicalName(name) ||
		domain.NormalizeVersion(parsed.Version) != domain.NormalizeVersion(version) {
		return domain.Tag{}, fmt.Errorf("compat: wheel filename %q does not match (%s, %s)", filename, name, version)
	}

	var (
		best      domain.Tag
		bestScore tagScoreKey
		found     bool
	)

	for _, t := range parsed.Tags {
		ok, err := e.Accepts(t)
		if err != nil {
			return domain.Tag{}, err
		}

		if !ok {
			continue
		}

		score := scoreTag(t)

		if !found || less(score, bestScore) {
			best = t
			bestScore = score
			found = true
		}
	}

	if !found {
		return domain.Tag{}, fmt.Errorf("compat: no compatible tag found in %q", filename)
	}

	return best, nil
}

// ChooseBestWheelFile picks the single best (filename, tag) pair among
// several candidate wheel filenames for the same (name, version), the
// step a PEP 691 Simple API file listing needs before it can ask for a
// sidecar metadata fetch. yanked[i] reports whether filenames[i] is
// yanked; yanked files are rejected outright, never chosen even absent a
// compatible alternative. Filenames with no compatible tag, or that don't
// match (name, version), are skipped rather than failing the whole call.
func (e *Evaluator) ChooseBestWheelFile(filenames []string, yanked []bool, name, version string) (string, domain.Tag, error) {
	var (
		bestFile  string
		best      domain.Tag
		bestScore tagScoreKey
		found     bool
	)

	for i, filename := range filenames {
		if i < len(yanked) && yanked[i] {
			continue
		}

		tag, err := e.ChooseWheelTag(filename, name, version)
		if err != nil {
			continue
		}

		score := scoreTag(tag)

		if !found || less(score, bestScore) {
			bestFile = filename
			best = tag
			bestScore = score
			found = true
		}
	}

	if !found {
		return "", domain.Tag{}, fmt.Errorf("compat: no candidate wheel file is compatible for %s-%s", name, version)
	}

	return bestFile, best, nil
}
