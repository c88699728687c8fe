package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoire/pkg/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func names(spells []models.Spell) []string {
	out := make([]string, 0, len(spells))
	for _, s := range spells {
		out = append(out, s.Name)
	}
	return out
}

func TestListRecordsOrderAndBatches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_sorts.json", `[{"Nom": "Bouclier", "Niveau": 1}, {"Nom": "Armure de mage", "Niveau": 1}]`)
	writeFile(t, dir, "a_lumiere.json", `{"Nom": "Lumière", "Niveau": 0}`)
	writeFile(t, dir, IndexFile, `[{"Nom": "Fantôme", "Niveau": 3, "Fichier": "x.json"}]`)
	writeFile(t, dir, "notes.txt", `not a record`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "large"), 0755))

	result, err := New(dir).ListRecords()
	require.NoError(t, err)

	assert.Equal(t, []string{"Lumière", "Bouclier", "Armure de mage"}, names(result.Records))
	assert.Empty(t, result.Skipped)
}

func TestListRecordsSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"Nom": "Message", "Niveau": 0}`)
	writeFile(t, dir, "b.json", `{"Nom": "Cassé", `)
	writeFile(t, dir, "c.json", `[{"Nom": "Contresort", "Niveau": 3}, {"Nom": "Trop haut", "Niveau": 14}]`)

	result, err := New(dir).ListRecords()
	require.NoError(t, err)

	assert.Equal(t, []string{"Message", "Contresort"}, names(result.Records))
	require.Len(t, result.Skipped, 2)

	assert.Equal(t, "b.json", result.Skipped[0].File)
	assert.Equal(t, -1, result.Skipped[0].Index)
	assert.Equal(t, "c.json", result.Skipped[1].File)
	assert.Equal(t, 1, result.Skipped[1].Index)
	assert.True(t, errors.Is(result.Skipped[1], models.ErrTierRange))
}

func TestListRecordsMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent")).ListRecords()
	require.Error(t, err)
}

func TestLoadByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sphere_de_feu.json", `{"Nom": "Sphère de feu", "Niveau": 2}`)
	writeFile(t, dir, "lot.json", `[{"Nom": "Mort simulée", "Niveau": 3}]`)
	s := New(dir)

	spell, err := s.LoadByName("sphere_de_feu")
	require.NoError(t, err)
	assert.Equal(t, "Sphère de feu", spell.Name)

	spell, err = s.LoadByName("mort_simulee")
	require.NoError(t, err)
	assert.Equal(t, models.Tier(3), spell.Tier)

	_, err = s.LoadByName("boule_de_feu")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRebuildIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lumiere.json", `{"Nom": "Lumière", "Nom original": "Light", "Niveau": 0}`)
	writeFile(t, dir, "inconnu.json", `{"Nom": "Sans niveau"}`)
	s := New(dir)

	idx, err := s.RebuildIndex()
	require.NoError(t, err)
	require.Len(t, idx, 1)
	assert.Equal(t, IndexEntry{Name: "Lumière", OriginalName: "Light", Tier: 0, File: "lumiere.json"}, idx[0])

	raw, err := os.ReadFile(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Lumière", "accents are written unescaped")

	loaded, err := s.LoadIndex()
	require.NoError(t, err)
	assert.Equal(t, idx, loaded)

	// the index itself never shows up as a record
	result, err := s.ListRecords()
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
}

func TestIndexUpsert(t *testing.T) {
	idx := Index{{Name: "Lumière", Tier: 0, File: "a.json"}}
	idx.Upsert(IndexEntry{Name: "lumière", Tier: 0, File: "b.json"})
	idx.Upsert(IndexEntry{Name: "Bouclier", Tier: 1, File: "bouclier.json"})

	require.Len(t, idx, 2)
	assert.Equal(t, "b.json", idx[0].File)
	assert.Equal(t, "Bouclier", idx[1].Name)
}

func TestListRecordsSkipsGenerationPlaceholder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lumiere.json", `{"Nom": "Lumière", "Niveau": 0}`)
	writeFile(t, dir, "rate.json", `{"erreur": "JSON non valide", "contenu_brut": "oups"}`)

	result, err := New(dir).ListRecords()
	require.NoError(t, err)

	assert.Equal(t, []string{"Lumière"}, names(result.Records))
	require.Len(t, result.Skipped, 1)
	assert.True(t, errors.Is(result.Skipped[0], models.ErrGenerationRecord))
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fiches")
	s := New(dir)

	file, err := s.Save("Sphère de feu", []byte(`{"Nom": "Sphère de feu"}`))
	require.NoError(t, err)
	assert.Equal(t, "sphere_de_feu.json", file)
	assert.True(t, s.Has("Sphère de feu"))
	assert.False(t, s.Has("Lumière"))
}
