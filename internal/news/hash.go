package news

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex-encoded SHA-256 digest of title + url. It is the
// item's natural key: deterministic, 64 hex characters, and independent of
// source and vertical so the same story syndicated by two feeds collides.
func Hash(title, url string) string {
	sum := sha256.Sum256([]byte(title + url))
	return hex.EncodeToString(sum[:])
}
