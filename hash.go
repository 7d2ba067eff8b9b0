package gotlive

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashText computes the SHA-256 hash of the trimmed text.
func HashText(text string) string {
	trimmed := strings.TrimSpace(text)
	hash := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(hash[:])
}

// CacheKey returns the cache key for a translation: the source text hash
// followed by the target language. Keys are stable across processes, so
// they can be shared through Redis and cache snapshots.
func CacheKey(k TranslationKey) string {
	return HashText(k.Text) + ":" + k.Lang
}
