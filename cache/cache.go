// Package cache provides translation cache backends.
//
// Keys are opaque strings built by the engine from a text hash and a target
// language. A cache never merges values: Set overwrites, Clear drops every
// entry and is called by the engine on a language change or forced refresh.
package cache

// TranslationCache is the interface for translation caching.
type TranslationCache interface {
	// Get retrieves a cached translation. Returns empty string and false if not found or expired.
	Get(key string) (string, bool)

	// Set stores a translation in the cache, replacing any previous value.
	Set(key string, value string) error

	// Clear removes every entry owned by this cache.
	Clear() error
}

// Enumerable is implemented by caches whose contents can be listed for a
// snapshot export.
type Enumerable interface {
	Entries() (map[string]string, error)
}
