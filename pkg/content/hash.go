package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// HashSHA256 computes the SHA-256 digest of the full stream, rendered as
// lower-case hex. The stream is always rewound to position 0 first, so
// Classify and HashSHA256 can be applied to the same reader in either order.
// The digest is the system-wide deduplication key for file content.
func HashSHA256(r io.ReadSeeker) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding stream: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing stream: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
