// Package snapshot reads and writes the pipeline's JSON snapshot files.
// Every document is written once under a timestamped name and never
// mutated; later runs produce new files.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/polysift/internal/domain"
)

// Kind names a snapshot family. The values double as filename prefixes.
type Kind string

const (
	KindRaw         Kind = "raw_markets"
	KindFiltered    Kind = "filtered_markets"
	KindSports      Kind = "sports_markets"
	KindInvalid     Kind = "invalid_markets"
	KindAnalysis    Kind = "analysis_results"
	KindPreAnalyzed Kind = "formatted_markets"
	KindCategorized Kind = "categorized_markets"
)

// Kinds returns every snapshot kind, in pipeline order.
func Kinds() []Kind {
	return []Kind{
		KindRaw,
		KindFiltered,
		KindSports,
		KindInvalid,
		KindAnalysis,
		KindPreAnalyzed,
		KindCategorized,
	}
}

// stampLayout is the timestamp embedded in snapshot filenames.
const stampLayout = "20060102_150405"

// Entry is one snapshot file found in the data directory.
type Entry struct {
	Path  string
	Kind  Kind
	Stamp time.Time
}

// Store manages the snapshot files of one data directory.
type Store struct {
	dir string

	mu sync.Mutex
}

// New creates the data directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: creating data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory the store manages.
func (s *Store) Dir() string { return s.dir }

// Path returns the filename a snapshot of kind at stamp lives under,
// whether or not it exists yet.
func (s *Store) Path(kind Kind, stamp time.Time) string {
	name := fmt.Sprintf("%s_%s.json", kind, stamp.UTC().Format(stampLayout))
	return filepath.Join(s.dir, name)
}

// Save writes v as an indented JSON snapshot. The write is atomic: data
// goes to a temp file first and is renamed into place, so readers never
// observe a partial document.
func (s *Store) Save(kind Kind, stamp time.Time, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("snapshot: marshaling %s: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(kind, stamp)
	tmp, err := os.CreateTemp(s.dir, string(kind)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("snapshot: creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("snapshot: writing %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("snapshot: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("snapshot: renaming into place: %w", err)
	}
	return path, nil
}

// Load reads the snapshot at path into v.
func (s *Store) Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("snapshot: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("snapshot: decoding %s: %w", path, err)
	}
	return nil
}

// Read returns the raw bytes of the snapshot at path.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading %s: %w", path, err)
	}
	return data, nil
}

// List returns all snapshots of kind, oldest first. Files whose names do
// not carry a parseable stamp are ignored.
func (s *Store) List(kind Kind) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: listing data directory: %w", err)
	}

	var entries []Entry
	prefix := string(kind) + "_"
	for _, de := range names {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		stampText := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		stamp, err := time.Parse(stampLayout, stampText)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Path:  filepath.Join(s.dir, name),
			Kind:  kind,
			Stamp: stamp,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Stamp.Before(entries[j].Stamp) })
	return entries, nil
}

// Latest returns the newest snapshot of kind, or domain.ErrNoSnapshot if
// none exists.
func (s *Store) Latest(kind Kind) (Entry, error) {
	entries, err := s.List(kind)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("snapshot: %s: %w", kind, domain.ErrNoSnapshot)
	}
	return entries[len(entries)-1], nil
}

// Exists reports whether a snapshot of kind at stamp has been written.
func (s *Store) Exists(kind Kind, stamp time.Time) bool {
	_, err := os.Stat(s.Path(kind, stamp))
	return err == nil
}

// Remove deletes the snapshot at path.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("snapshot: removing %s: %w", path, err)
	}
	return nil
}
