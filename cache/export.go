package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// SnapshotVersion is the format version written by Exporter.
const SnapshotVersion = "1.0"

// Snapshot is the JSON structure for cache export/import. Entries are only
// meaningful for the language they were translated into, so the snapshot
// records it and importers may refuse a mismatch.
type Snapshot struct {
	Version    string            `json:"version"`
	Language   string            `json:"language,omitempty"`
	ExportedAt string            `json:"exported_at"`
	Entries    []SnapshotEntry   `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SnapshotEntry represents a single cache entry.
type SnapshotEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Exporter writes cache snapshots.
type Exporter struct {
	cache TranslationCache
	now   func() time.Time
}

// NewExporter creates a new cache exporter.
func NewExporter(cache TranslationCache) *Exporter {
	return &Exporter{cache: cache, now: time.Now}
}

// Export writes the cache contents for lang as indented JSON. Entries are
// sorted by key so snapshots of equal caches are byte-identical apart from
// the timestamp.
func (e *Exporter) Export(w io.Writer, lang string, metadata map[string]string) error {
	src, ok := e.cache.(Enumerable)
	if !ok {
		return fmt.Errorf("cache type %T does not support export", e.cache)
	}

	data, err := src.Entries()
	if err != nil {
		return fmt.Errorf("getting cache entries: %w", err)
	}

	entries := make([]SnapshotEntry, 0, len(data))
	for key, value := range data {
		entries = append(entries, SnapshotEntry{Key: key, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	snap := Snapshot{
		Version:    SnapshotVersion,
		Language:   lang,
		ExportedAt: e.now().UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}

// ExportToFile exports the cache to a file.
func (e *Exporter) ExportToFile(path, lang string, metadata map[string]string) error {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if err := e.Export(f, lang, metadata); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Importer loads cache snapshots.
type Importer struct {
	cache TranslationCache
}

// NewImporter creates a new cache importer.
func NewImporter(cache TranslationCache) *Importer {
	return &Importer{cache: cache}
}

// ReadSnapshot decodes and validates a snapshot without applying it.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q", snap.Version)
	}
	return &snap, nil
}

// Apply writes every entry of snap into the cache.
func (i *Importer) Apply(snap *Snapshot) *ImportResult {
	result := &ImportResult{
		Version:  snap.Version,
		Language: snap.Language,
		Metadata: snap.Metadata,
	}

	for _, entry := range snap.Entries {
		if err := i.cache.Set(entry.Key, entry.Value); err != nil {
			result.Failed++
			continue
		}
		result.Imported++
	}

	return result
}

// Import reads a snapshot from r and loads it into the cache.
func (i *Importer) Import(r io.Reader) (*ImportResult, error) {
	snap, err := ReadSnapshot(r)
	if err != nil {
		return nil, err
	}
	return i.Apply(snap), nil
}

// ImportFromFile imports cache entries from a file.
func (i *Importer) ImportFromFile(path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return i.Import(f)
}

// ImportResult contains statistics about the import operation.
type ImportResult struct {
	Version  string
	Language string
	Metadata map[string]string
	Imported int
	Failed   int
}
