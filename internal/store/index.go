package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grimoire/internal/fsutil"
	"github.com/grimoire/pkg/models"
)

// IndexEntry maps a spell to its tier and the file that holds it.
type IndexEntry struct {
	Name         string `json:"Nom"`
	OriginalName string `json:"Nom original"`
	Tier         int    `json:"Niveau"`
	File         string `json:"Fichier"`
}

// Index is the ordered content of index.json.
type Index []IndexEntry

// Upsert replaces the entry with the same sanitized name, or appends it.
func (idx *Index) Upsert(entry IndexEntry) {
	key := models.SanitizeName(entry.Name)
	for i, existing := range *idx {
		if models.SanitizeName(existing.Name) == key {
			(*idx)[i] = entry
			return
		}
	}
	*idx = append(*idx, entry)
}

// LoadIndex reads index.json; a missing index is empty.
func (s *Store) LoadIndex() (Index, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, IndexFile))
	if errors.Is(err, os.ErrNotExist) {
		return Index{}, nil
	}
	if err != nil {
		return nil, err
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", IndexFile, err)
	}
	return idx, nil
}

// SaveIndex writes index.json atomically, keeping accents unescaped.
func (s *Store) SaveIndex(idx Index) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(idx); err != nil {
		return err
	}
	return fsutil.WriteFile(filepath.Join(s.dir, IndexFile), buf.Bytes(), 0644)
}

// RebuildIndex scans the record files and rewrites index.json from them.
// Records without a known tier are left out.
func (s *Store) RebuildIndex() (Index, error) {
	files, err := s.recordFiles()
	if err != nil {
		return nil, err
	}

	idx := Index{}
	for _, name := range files {
		spells, _ := s.readFile(name)
		for _, spell := range spells {
			if spell.Name == "" || !spell.Tier.Known() {
				continue
			}
			idx = append(idx, IndexEntry{
				Name:         spell.Name,
				OriginalName: spell.OriginalName,
				Tier:         int(spell.Tier),
				File:         name,
			})
		}
	}

	if err := s.SaveIndex(idx); err != nil {
		return nil, err
	}
	return idx, nil
}
