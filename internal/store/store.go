package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/grimoire/internal/fsutil"
	"github.com/grimoire/pkg/models"
)

// IndexFile is the reserved name of the index artifact; it is never read as a record.
const IndexFile = "index.json"

// ErrNotFound is returned by LoadByName when no record matches.
var ErrNotFound = errors.New("record not found")

// RecordParseError describes a record file, or one element of a batch file,
// that could not be decoded. It is recoverable: the record is skipped.
type RecordParseError struct {
	File  string
	Index int // position inside a batch file, -1 for the whole file
	Err   error
}

func (e *RecordParseError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("record %d of %s: %v", e.Index, e.File, e.Err)
	}
	return fmt.Sprintf("record file %s: %v", e.File, e.Err)
}

func (e *RecordParseError) Unwrap() error { return e.Err }

// ListResult holds the records read from the store and the ones skipped.
type ListResult struct {
	Records []models.Spell
	Skipped []*RecordParseError
}

// Store reads spell records from a directory of JSON files keyed by sanitized name.
type Store struct {
	dir string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the record directory.
func (s *Store) Dir() string {
	return s.dir
}

// ListRecords reads every record file in lexicographic filename order. A file
// may hold one record or an array of records. Malformed files and elements are
// logged and reported in Skipped; only an unreadable directory is an error.
func (s *Store) ListRecords() (ListResult, error) {
	var result ListResult

	files, err := s.recordFiles()
	if err != nil {
		return result, err
	}

	for _, name := range files {
		spells, skipped := s.readFile(name)
		result.Records = append(result.Records, spells...)
		for _, perr := range skipped {
			log.Warn().Err(perr.Err).Str("file", perr.File).Int("index", perr.Index).Msg("Skipping malformed spell record")
		}
		result.Skipped = append(result.Skipped, skipped...)
	}

	log.Debug().Int("records", len(result.Records)).Int("skipped", len(result.Skipped)).Str("dir", s.dir).Msg("Loaded spell records")
	return result, nil
}

// LoadByName returns the record whose sanitized name equals sanitizedName.
// The file named after the key is tried first, then every file is scanned.
func (s *Store) LoadByName(sanitizedName string) (models.Spell, error) {
	direct := sanitizedName + ".json"
	if direct != IndexFile {
		if _, err := os.Stat(filepath.Join(s.dir, direct)); err == nil {
			spells, _ := s.readFile(direct)
			if spell, ok := findByKey(spells, sanitizedName); ok {
				return spell, nil
			}
		}
	}

	all, err := s.ListRecords()
	if err != nil {
		return models.Spell{}, err
	}
	if spell, ok := findByKey(all.Records, sanitizedName); ok {
		return spell, nil
	}
	return models.Spell{}, fmt.Errorf("%w: %s", ErrNotFound, sanitizedName)
}

// Has reports whether a record file for the spell name already exists.
func (s *Store) Has(name string) bool {
	_, err := os.Stat(s.PathFor(name))
	return err == nil
}

// Save writes a record file for the spell name and returns its file name.
func (s *Store) Save(name string, data []byte) (string, error) {
	path := s.PathFor(name)
	if err := fsutil.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return filepath.Base(path), nil
}

// PathFor returns the record file path for a spell name.
func (s *Store) PathFor(name string) string {
	return filepath.Join(s.dir, models.SanitizeName(name)+".json")
}

func (s *Store) recordFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read record directory %s: %w", s.dir, err)
	}

	// os.ReadDir already returns entries sorted by filename.
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == IndexFile {
			continue
		}
		files = append(files, name)
	}
	return files, nil
}

func (s *Store) readFile(name string) ([]models.Spell, []*RecordParseError) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, []*RecordParseError{{File: name, Index: -1, Err: err}}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, []*RecordParseError{{File: name, Index: -1, Err: err}}
		}

		var spells []models.Spell
		var skipped []*RecordParseError
		for i, item := range items {
			var spell models.Spell
			if err := json.Unmarshal(item, &spell); err != nil {
				skipped = append(skipped, &RecordParseError{File: name, Index: i, Err: err})
				continue
			}
			spells = append(spells, spell)
		}
		return spells, skipped
	}

	var spell models.Spell
	if err := json.Unmarshal(trimmed, &spell); err != nil {
		return nil, []*RecordParseError{{File: name, Index: -1, Err: err}}
	}
	return []models.Spell{spell}, nil
}

func findByKey(spells []models.Spell, key string) (models.Spell, bool) {
	for _, spell := range spells {
		if models.SanitizeName(spell.Name) == key {
			return spell, true
		}
	}
	return models.Spell{}, false
}
