package grimoire

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoire/internal/illustration"
	"github.com/grimoire/internal/store"
	"github.com/grimoire/internal/theme"
	"github.com/grimoire/pkg/models"
)

type fakeRecords struct {
	result store.ListResult
	err    error
}

func (f fakeRecords) ListRecords() (store.ListResult, error) {
	return f.result, f.err
}

type fakePaginator struct {
	calls int
	err   error
	doc   Document
}

func (f *fakePaginator) Render(w io.Writer, doc Document) error {
	f.calls++
	f.doc = doc
	if _, err := io.WriteString(w, "%PDF-fake"); err != nil {
		return err
	}
	return f.err
}

type fakeIllustrator struct {
	paths map[illustration.Variant]map[string]string
	calls int
}

func (f *fakeIllustrator) GetOrCreate(_ context.Context, spell models.Spell, variant illustration.Variant) illustration.Asset {
	f.calls++
	if path, ok := f.paths[variant][spell.Name]; ok {
		return illustration.Asset{Path: path, Outcome: illustration.Hit}
	}
	return illustration.Asset{Err: illustration.ErrUnavailable}
}

func allTheme() *theme.Theme {
	return &theme.Theme{Name: "sobre", Title: "Grimoire", MaxPreparedSpells: 10, SpellFilter: theme.Filter{All: true}}
}

func themeConfig(t *testing.T, th *theme.Theme) *RenderConfig {
	t.Helper()
	cfg, err := NewRenderConfig(nil, th, Overrides{})
	require.NoError(t, err)
	return cfg
}

func TestAssembleTwoRecordFilesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boule_de_feu.json"), []byte(`{
		"Nom": "Boule de feu", "Niveau": 3, "École": "Évocation", "Temps d'incantation": "1 action",
		"Portée": 45, "Composantes": "V, S, M", "Durée": "Instantanée", "Concentration": false, "Rituel": "non",
		"Type d'attaque / sauvegarde": "Dextérité", "Description complète": "Une explosion.",
		"Effet en surcaste": "+1d6 par niveau"
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lumiere.json"), []byte(`{
		"Nom": "Lumière", "Niveau": 0, "École": "Évocation", "Temps d'incantation": "1 action",
		"Portée": "contact", "Cible": "un objet", "Rituel": "oui", "Description complète": "L'objet brille."
	}`), 0o644))

	asm, err := NewEngine(store.New(dir), nil).Assemble(context.Background(), themeConfig(t, allTheme()))
	require.NoError(t, err)

	want := Stream{
		{Kind: BlockTitle, Text: "Grimoire"},
		{Kind: BlockParagraph, Text: "Sorts préparés maximum : 10"},
		{Kind: BlockPageBreak},

		{Kind: BlockTitle, Text: "Table des matières"},
		{Kind: BlockHeading, Text: "Tours de magie"},
		{Kind: BlockTOCEntry, Marker: RitualMark, Text: "Lumière"},
		{Kind: BlockHeading, Text: "Niveau 3"},
		{Kind: BlockTOCEntry, Marker: UncheckedBox, Text: "Boule de feu"},
		{Kind: BlockPageBreak},

		{Kind: BlockSpellTitle, Text: "Lumière"},
		{Kind: BlockSummary, Rows: [][]string{
			{"Niveau", "École", "Rituel"},
			{"0", "Évocation", "Oui"},
			{"Temps", "Portée", "Concentration"},
			{"1 action", "contact", "Non"},
		}},
		{Kind: BlockInfo, Label: "Cible", Text: "un objet"},
		{Kind: BlockLabel, Text: "Description :"},
		{Kind: BlockParagraph, Text: "L'objet brille."},
		{Kind: BlockPageBreak},

		{Kind: BlockSpellTitle, Text: "Boule de feu"},
		{Kind: BlockSummary, Rows: [][]string{
			{"Niveau", "École", "Rituel"},
			{"3", "Évocation", "Non"},
			{"Temps", "Portée", "Concentration"},
			{"1 action", "45 mètres", "Non"},
		}},
		{Kind: BlockInfo, Label: "Type", Text: "Dextérité"},
		{Kind: BlockInfo, Label: "Composantes", Text: "V, S, M"},
		{Kind: BlockLabel, Text: "Description :"},
		{Kind: BlockParagraph, Text: "Une explosion."},
		{Kind: BlockLabel, Text: "Effet en surcaste :"},
		{Kind: BlockParagraph, Text: "+1d6 par niveau"},
		{Kind: BlockPageBreak},
	}
	if diff := cmp.Diff(want, asm.Stream); diff != "" {
		t.Errorf("stream mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, asm.Stream.Count(BlockSpellTitle))
	assert.Equal(t, 2, asm.Records())
}

func TestAssembleFiltersAndTolerates(t *testing.T) {
	records := fakeRecords{result: store.ListResult{
		Records: []models.Spell{
			{Name: "Doigt de mort", Tier: 7},
			{Name: "Lumière", Tier: 0},
			{Name: "Mot de mort", Tier: 9},
		},
		Skipped: []*store.RecordParseError{{File: "casse.json", Index: -1, Err: errors.New("bad")}},
	}}
	th := allTheme()
	th.SpellFilter = theme.Filter{Terms: []string{"MORT"}}

	asm, err := NewEngine(records, nil).Assemble(context.Background(), themeConfig(t, th))
	require.NoError(t, err)

	assert.Equal(t, 2, asm.Records())
	assert.Equal(t, 1, asm.Excluded)
	assert.Len(t, asm.Skipped, 1)
	require.Len(t, asm.Sections, 2)
	assert.Equal(t, "Niveau 7", asm.Sections[0].Label)
	assert.Equal(t, "Niveau 9", asm.Sections[1].Label)
}

func TestAssembleListError(t *testing.T) {
	_, err := NewEngine(fakeRecords{err: os.ErrPermission}, nil).Assemble(context.Background(), themeConfig(t, allTheme()))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestGroupByTierIsDeterministic(t *testing.T) {
	spells := []models.Spell{
		{Name: "zèle", Tier: 2},
		{Name: "Arme spirituelle", Tier: 2},
		{Name: "Bouclier", Tier: 1},
		{Name: "Contact glacial", Tier: 0},
		{Name: "", Tier: models.TierUnknown},
		{Name: "Zone de vérité", Tier: 2},
		{Name: "Alarme", Tier: 1},
	}
	reversed := make([]models.Spell, len(spells))
	for i, s := range spells {
		reversed[len(spells)-1-i] = s
	}

	names := func(sections []Section) [][]string {
		var out [][]string
		for _, s := range sections {
			row := []string{s.Label}
			for _, sp := range s.Spells {
				row = append(row, DisplayName(sp))
			}
			out = append(out, row)
		}
		return out
	}

	want := [][]string{
		{"Tours de magie", "Contact glacial"},
		{"Niveau 1", "Alarme", "Bouclier"},
		// Byte-wise order: uppercase before lowercase.
		{"Niveau 2", "Arme spirituelle", "Zone de vérité", "zèle"},
		{"Niveau inconnu", UnnamedSpell},
	}
	assert.Equal(t, want, names(GroupByTier(spells)))
	assert.Equal(t, want, names(GroupByTier(reversed)))
}

func TestFormatRange(t *testing.T) {
	tests := map[string]string{
		"30":      "30 mètres",
		"9":       "9 mètres",
		" 18 ":    "18 mètres",
		"touch":   "touch",
		"9 m":     "9 m",
		"1.5":     "1.5",
		"":        Placeholder,
		"Contact": "Contact",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatRange(in), in)
	}

	// Numbers in the record file arrive as integer strings.
	var s models.Spell
	require.NoError(t, s.UnmarshalJSON([]byte(`{"Portée": 9}`)))
	assert.Equal(t, "9 mètres", FormatRange(s.Range))
}

func TestSpellBlocksPlaceholders(t *testing.T) {
	records := fakeRecords{result: store.ListResult{Records: []models.Spell{{Tier: models.TierUnknown}}}}
	asm, err := NewEngine(records, nil).Assemble(context.Background(), themeConfig(t, allTheme()))
	require.NoError(t, err)

	var summary, paragraph *Block
	for i := range asm.Stream {
		b := &asm.Stream[i]
		if b.Kind == BlockSummary {
			summary = b
		}
		if b.Kind == BlockParagraph {
			paragraph = b
		}
	}
	require.NotNil(t, summary)
	assert.Equal(t, []string{Placeholder, Placeholder, "Non"}, summary.Rows[1])
	assert.Equal(t, []string{Placeholder, Placeholder, "Non"}, summary.Rows[3])
	assert.Equal(t, Placeholder, paragraph.Text)
	assert.Zero(t, asm.Stream.Count(BlockInfo), "empty values are omitted, never rendered")
}

func TestAssembleIllustrations(t *testing.T) {
	dir := t.TempDir()
	std := filepath.Join(dir, "lumiere.png")
	large := filepath.Join(dir, "large", "lumiere.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(large), 0o755))
	require.NoError(t, os.WriteFile(std, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(large, []byte("x"), 0o644))

	ill := &fakeIllustrator{paths: map[illustration.Variant]map[string]string{
		illustration.Standard: {"Lumière": std},
		illustration.Large:    {"Lumière": large},
	}}
	records := fakeRecords{result: store.ListResult{Records: []models.Spell{
		{Name: "Lumière", Tier: 0, FullDescription: "brille"},
		{Name: "Sommeil", Tier: 1, FullDescription: "dort"},
	}}}
	th := allTheme()
	th.LargeIllustrations = true

	asm, err := NewEngine(records, ill).Assemble(context.Background(), themeConfig(t, th))
	require.NoError(t, err)

	assert.Equal(t, 4, ill.calls)
	assert.Equal(t, 2, asm.Illustrated)
	assert.Equal(t, 2, asm.Degraded)

	var titles []Block
	var images []Block
	for _, b := range asm.Stream {
		switch b.Kind {
		case BlockSpellTitle:
			titles = append(titles, b)
		case BlockImage:
			images = append(images, b)
		}
	}
	require.Len(t, titles, 2)
	assert.Equal(t, std, titles[0].Image)
	assert.Empty(t, titles[1].Image)
	require.Len(t, images, 1)
	assert.Equal(t, large, images[0].Image)
}

func TestBuildWritesDocument(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out", "grimoire.pdf")
	records := fakeRecords{result: store.ListResult{Records: []models.Spell{{Name: "Lumière", Tier: 0}}}}
	pager := &fakePaginator{}
	cfg := themeConfig(t, allTheme())

	asm, err := NewEngine(records, nil).Build(context.Background(), cfg, pager, out)
	require.NoError(t, err)

	assert.Equal(t, 1, pager.calls)
	assert.Equal(t, asm.Stream, pager.doc.Stream)
	assert.Equal(t, cfg.Colors, pager.doc.Colors)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake", string(data))
}

func TestBuildRenderFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "grimoire.pdf")
	records := fakeRecords{result: store.ListResult{Records: []models.Spell{{Name: "Lumière", Tier: 0}}}}
	pager := &fakePaginator{err: errors.New("font missing glyph")}

	_, err := NewEngine(records, nil).Build(context.Background(), themeConfig(t, allTheme()), pager, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRenderFatal))
	assert.Contains(t, err.Error(), "font missing glyph")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
