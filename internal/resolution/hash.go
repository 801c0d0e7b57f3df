package resolution

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const HashAlgorithm = "sha256"

// computeHashAndSize streams path through sha256, returning its hex digest
// and byte size.
func computeHashAndSize(path string) (hash string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("resolution: opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("resolution: hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}
