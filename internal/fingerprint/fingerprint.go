package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns the hex-encoded SHA-256 digest of menu content.
func Of(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HasChanges reports whether a freshly computed hash should be treated as a menu change.
func HasChanges(lastHash, hash string, forced bool) bool {
	return forced || lastHash == "" || lastHash != hash
}
