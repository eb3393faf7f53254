package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewID hashes key, the timestamp and a random salt, and keeps the first
// width hex characters. width is capped at the digest length.
func NewID(prefix, key string, at time.Time, width int) string {
	sum := sha256.Sum256([]byte(key + at.Format(time.RFC3339Nano) + uuid.NewString()))
	digest := hex.EncodeToString(sum[:])
	if width <= 0 || width > len(digest) {
		width = len(digest)
	}
	return prefix + digest[:width]
}
