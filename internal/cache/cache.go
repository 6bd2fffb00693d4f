// Package cache persists per-file content fingerprints with their cached
// analysis results, plus a whole-graph structural fingerprint, so repeated
// analysis skips unchanged work. The cache is fully self-healing: a missing,
// corrupted or version-mismatched cache file is treated as absent and
// triggers a rebuild, never an error.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// Version is the cache schema version. A mismatch triggers an unconditional
// rebuild, not a partial migration.
const Version = 2

// hashChunkSize is the fixed chunk size content hashing reads through.
const hashChunkSize = 64 * 1024

// Finding is one cached analysis result. Heavy derived fields (collaboration
// metadata, resolved entity snapshots) are deliberately not serialized to
// keep the cache small.
type Finding struct {
	Detector string  `json:"detector"`
	Symbol   string  `json:"symbol,omitempty"`
	Message  string  `json:"message,omitempty"`
	Severity string  `json:"severity,omitempty"`
	Line     int     `json:"line,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// FileEntry ties a file's content hash to its cached findings.
type FileEntry struct {
	Hash      string    `json:"hash"`
	Findings  []Finding `json:"findings"`
	Timestamp time.Time `json:"timestamp"`
}

// GraphEntry caches whole-graph detector results keyed by the structural
// fingerprint they were computed against.
type GraphEntry struct {
	Hash      string               `json:"hash"`
	Detectors map[string][]Finding `json:"detectors"`
}

// document is the on-disk shape: one JSON document per repository.
type document struct {
	Version int                  `json:"version"`
	Files   map[string]FileEntry `json:"files"`
	Graph   GraphEntry           `json:"graph"`
}

// Cache is the in-memory handle. Not safe for concurrent multi-process
// writers; callers needing that must serialize externally.
type Cache struct {
	path string
	doc  document
}

// Open loads the cache at path. Unreadable or mismatched caches come back
// empty (full rebuild) with only a log line.
func Open(path string) *Cache {
	c := &Cache{path: path}
	c.doc = document{Version: Version, Files: map[string]FileEntry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("cache.unreadable", "path", path, "err", err)
		}
		return c
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("cache.corrupt", "path", path, "err", err)
		return c
	}
	if doc.Version != Version {
		slog.Info("cache.version_mismatch", "path", path, "found", doc.Version, "want", Version)
		return c
	}
	if doc.Files == nil {
		doc.Files = map[string]FileEntry{}
	}
	applyDefaults(&doc)
	c.doc = doc
	return c
}

// applyDefaults fills optional fields dropped by older writers of the same
// schema version.
func applyDefaults(doc *document) {
	for path, entry := range doc.Files {
		for i := range entry.Findings {
			if entry.Findings[i].Severity == "" {
				entry.Findings[i].Severity = "info"
			}
		}
		doc.Files[path] = entry
	}
	for _, findings := range doc.Graph.Detectors {
		for i := range findings {
			if findings[i].Severity == "" {
				findings[i].Severity = "info"
			}
		}
	}
}

// Save writes the cache atomically: marshal to a temp file in the same
// directory, then rename over the live file, so a crash mid-write cannot
// corrupt the cache.
func (c *Cache) Save() error {
	data, err := json.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}

// HashFile computes the content hash over fixed-size chunks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxh3.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// HashBytes hashes in-memory content with the same function as HashFile.
func HashBytes(data []byte) string {
	return strconv.FormatUint(xxh3.Hash(data), 16)
}

// ChangedFiles returns exactly the files (by repo-relative path) whose
// current content hash differs from the cached hash, or that are new. Files
// that cannot be read count as changed. The result is never nil, so an
// all-clean repository yields an empty set rather than "no filter".
func (c *Cache) ChangedFiles(root string, relPaths []string) []string {
	changed := make([]string, 0, len(relPaths))
	for _, rel := range relPaths {
		hash, err := HashFile(filepath.Join(root, rel))
		if err != nil {
			changed = append(changed, rel)
			continue
		}
		if entry, ok := c.doc.Files[rel]; !ok || entry.Hash != hash {
			changed = append(changed, rel)
		}
	}
	return changed
}

// SetFile records a file's hash and findings, timestamped now.
func (c *Cache) SetFile(rel, hash string, findings []Finding) {
	c.doc.Files[rel] = FileEntry{Hash: hash, Findings: findings, Timestamp: time.Now().UTC()}
}

// File returns the cached entry for a path.
func (c *Cache) File(rel string) (FileEntry, bool) {
	entry, ok := c.doc.Files[rel]
	return entry, ok
}

// Prune drops cache entries for files no longer present, returning the
// removed paths.
func (c *Cache) Prune(current []string) []string {
	keep := make(map[string]bool, len(current))
	for _, rel := range current {
		keep[rel] = true
	}
	var removed []string
	for rel := range c.doc.Files {
		if !keep[rel] {
			removed = append(removed, rel)
			delete(c.doc.Files, rel)
		}
	}
	return removed
}

// Len returns the number of cached file entries.
func (c *Cache) Len() int { return len(c.doc.Files) }

// GraphHash returns the stored structural fingerprint.
func (c *Cache) GraphHash() string { return c.doc.Graph.Hash }

// SetGraph stores the structural fingerprint with its detector results.
func (c *Cache) SetGraph(hash string, detectors map[string][]Finding) {
	c.doc.Graph = GraphEntry{Hash: hash, Detectors: detectors}
}

// GraphDetector returns cached whole-graph findings for one detector.
func (c *Cache) GraphDetector(name string) ([]Finding, bool) {
	findings, ok := c.doc.Graph.Detectors[name]
	return findings, ok
}
