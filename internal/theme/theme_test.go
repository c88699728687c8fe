package theme

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTheme(t *testing.T, root, name, body string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(body), 0o644))
	return dir
}

func TestResolveMissingConfig(t *testing.T) {
	root := t.TempDir()
	// The folder exists but holds no config file.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "necromancien"), 0o755))

	_, err := NewResolver(root).Resolve("necromancien")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))

	_, err = NewResolver(root).Resolve("absent")
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestResolveAppliesDefaults(t *testing.T) {
	root := t.TempDir()
	dir := writeTheme(t, root, "sobre", `{"fonts": {"body": "body.ttf", "title": "title.ttf"}}`)

	th, err := NewResolver(root).Resolve("sobre")
	require.NoError(t, err)

	assert.Equal(t, "sobre", th.Name)
	assert.Equal(t, "fantasy art", th.IllustrationStyle)
	assert.Equal(t, "Grimoire", th.Title)
	assert.Equal(t, 10, th.MaxPreparedSpells)
	assert.Equal(t, DefaultBasePrompt, th.BasePrompt)
	assert.True(t, th.SpellFilter.All)
	assert.Equal(t, Fonts{Body: "body.ttf", Title: "title.ttf"}, th.Fonts)
	assert.Equal(t, filepath.Join(dir, "illustrations"), th.IllustrationsFolder)
	assert.Empty(t, th.Colors)
}

func TestResolveFullTheme(t *testing.T) {
	root := t.TempDir()
	dir := writeTheme(t, root, "necromancien", `{
		"fonts": {"body": "Manuscrite.ttf", "title": "CaesarDressing-Regular.ttf"},
		"illustration_style": "black-and-white ink",
		"stylistic_constraints": "transparent background",
		"large_context": "a crypt at night",
		"colors": {"title": "#8B0000", "body": "black"},
		"spell_filter": ["mort", "Nécro"],
		"max_prepared_spells": 6,
		"title": "Grimoire du Nécromancien",
		"illustrations_folder": "art",
		"large_illustrations": true
	}`)

	th, err := NewResolver(root).Resolve("necromancien")
	require.NoError(t, err)

	assert.Equal(t, "black-and-white ink", th.IllustrationStyle)
	assert.Equal(t, "transparent background", th.StylisticConstraints)
	assert.Equal(t, "a crypt at night", th.LargeContext)
	assert.Equal(t, map[string]string{"title": "#8B0000", "body": "black"}, th.Colors)
	assert.Equal(t, []string{"mort", "Nécro"}, th.SpellFilter.Terms)
	assert.False(t, th.SpellFilter.All)
	assert.Equal(t, 6, th.MaxPreparedSpells)
	assert.Equal(t, "Grimoire du Nécromancien", th.Title)
	assert.Equal(t, filepath.Join(dir, "art"), th.IllustrationsFolder)
	assert.True(t, th.LargeIllustrations)
}

func TestResolveInvalidJSON(t *testing.T) {
	root := t.TempDir()
	writeTheme(t, root, "casse", `{"title": `)

	_, err := NewResolver(root).Resolve("casse")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.False(t, errors.Is(err, ErrConfigNotFound))
}

func TestShouldInclude(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		spell  string
		want   bool
	}{
		{"all", Filter{All: true}, "Boule de feu", true},
		{"substring", Filter{Terms: []string{"feu"}}, "Sphère de feu", true},
		{"case insensitive", Filter{Terms: []string{"FEU"}}, "Boule de feu", true},
		{"loose match", Filter{Terms: []string{"fire"}}, "Firebolt", true},
		{"no match", Filter{Terms: []string{"mort"}}, "Lumière", false},
		{"empty list", Filter{Terms: []string{}}, "Lumière", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := &Theme{SpellFilter: tt.filter}
			assert.Equal(t, tt.want, th.ShouldInclude(tt.spell))
		})
	}
}

func TestParseFilterScalarMeansAll(t *testing.T) {
	for _, v := range []interface{}{"all", "ALL", "tout", nil, 3.0} {
		f, err := parseFilter(v)
		require.NoError(t, err)
		assert.True(t, f.All, "%v", v)
	}

	_, err := parseFilter([]interface{}{"feu", 3.0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScopedFolder(t *testing.T) {
	assert.Equal(t, filepath.Join("themes", "x", "illustrations"), ScopedFolder(filepath.Join("themes", "x"), ""))
	assert.Equal(t, filepath.Join("themes", "x", "img"), ScopedFolder(filepath.Join("themes", "x"), "img"))
	abs := filepath.Join(t.TempDir(), "cache")
	assert.Equal(t, abs, ScopedFolder("themes/x", abs))
}
