package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex encoded SHA-256 digest of text
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
