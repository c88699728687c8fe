package theme

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFile is the name of the per-theme and per-player configuration file.
const ConfigFile = "config.json"

var (
	// ErrConfigNotFound is returned when a theme or player has no backing config file.
	ErrConfigNotFound = errors.New("configuration not found")
	// ErrInvalidConfig is returned when a config file exists but cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)

const DefaultBasePrompt = "A highly detailed illustration showing only the magical effect of the spell: {name}. " +
	"No text, title, frames, runes, books or decorative symbols."

// Fonts names the font files used for body text and titles.
type Fonts struct {
	Body  string `koanf:"body"`
	Title string `koanf:"title"`
}

// Filter is the theme's spell-inclusion policy.
type Filter struct {
	All   bool
	Terms []string
}

// Match reports whether a display name passes the filter. Terms are compared
// as case-insensitive substrings.
func (f Filter) Match(name string) bool {
	if f.All {
		return true
	}
	lower := strings.ToLower(name)
	for _, term := range f.Terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// Theme is a resolved theme configuration. It is read-only after Resolve.
type Theme struct {
	Name string
	Dir  string

	Fonts                Fonts
	IllustrationStyle    string
	StylisticConstraints string
	BasePrompt           string
	LargeContext         string
	Colors               map[string]string
	SpellFilter          Filter
	MaxPreparedSpells    int
	Title                string
	IllustrationsFolder  string
	LargeIllustrations   bool
}

// ShouldInclude reports whether the named spell belongs to this theme.
func (t *Theme) ShouldInclude(name string) bool {
	return t.SpellFilter.Match(name)
}

type themeFile struct {
	Fonts                Fonts             `koanf:"fonts"`
	IllustrationStyle    string            `koanf:"illustration_style"`
	StylisticConstraints string            `koanf:"stylistic_constraints"`
	BasePrompt           string            `koanf:"base_prompt"`
	LargeContext         string            `koanf:"large_context"`
	Colors               map[string]string `koanf:"colors"`
	SpellFilter          interface{}       `koanf:"spell_filter"`
	MaxPreparedSpells    int               `koanf:"max_prepared_spells"`
	Title                string            `koanf:"title"`
	IllustrationsFolder  string            `koanf:"illustrations_folder"`
	LargeIllustrations   bool              `koanf:"large_illustrations"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"illustration_style":  "fantasy art",
		"base_prompt":         DefaultBasePrompt,
		"spell_filter":        "all",
		"max_prepared_spells": 10,
		"title":               "Grimoire",
	}
}

// Resolver loads themes from a directory holding one folder per theme.
type Resolver struct {
	root string
}

func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Resolve loads the named theme. A missing config file yields ErrConfigNotFound
// before anything is read.
func (r *Resolver) Resolve(name string) (*Theme, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty theme name", ErrInvalidConfig)
	}
	dir := filepath.Join(r.root, name)
	path := filepath.Join(dir, ConfigFile)

	k, err := Load(path, defaults())
	if err != nil {
		return nil, fmt.Errorf("theme %q: %w", name, err)
	}

	var raw themeFile
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("theme %q: %w: %v", name, ErrInvalidConfig, err)
	}

	filter, err := parseFilter(raw.SpellFilter)
	if err != nil {
		return nil, fmt.Errorf("theme %q: %w", name, err)
	}
	if raw.MaxPreparedSpells < 0 {
		return nil, fmt.Errorf("theme %q: %w: negative max_prepared_spells", name, ErrInvalidConfig)
	}

	colors := make(map[string]string, len(raw.Colors))
	for role, value := range raw.Colors {
		colors[role] = value
	}

	return &Theme{
		Name:                 name,
		Dir:                  dir,
		Fonts:                raw.Fonts,
		IllustrationStyle:    raw.IllustrationStyle,
		StylisticConstraints: raw.StylisticConstraints,
		BasePrompt:           raw.BasePrompt,
		LargeContext:         raw.LargeContext,
		Colors:               colors,
		SpellFilter:          filter,
		MaxPreparedSpells:    raw.MaxPreparedSpells,
		Title:                raw.Title,
		IllustrationsFolder:  ScopedFolder(dir, raw.IllustrationsFolder),
		LargeIllustrations:   raw.LargeIllustrations,
	}, nil
}

// Load reads a JSON config file over a set of defaults. It stats the file
// first so that a missing file is reported without touching the parser.
func Load(path string, defaultValues map[string]interface{}) (*koanf.Koanf, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	k := koanf.New(".")
	if defaultValues != nil {
		if err := k.Load(confmap.Provider(defaultValues, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading defaults: %w", err)
		}
	}
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return k, nil
}

// ScopedFolder returns the illustrations folder for a profile directory.
// An empty override means "<dir>/illustrations"; a relative one is anchored at dir.
func ScopedFolder(dir, override string) string {
	switch {
	case override == "":
		return filepath.Join(dir, "illustrations")
	case filepath.IsAbs(override):
		return override
	default:
		return filepath.Join(dir, override)
	}
}

func parseFilter(v interface{}) (Filter, error) {
	switch t := v.(type) {
	case []interface{}:
		terms := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return Filter{}, fmt.Errorf("%w: spell_filter entries must be strings", ErrInvalidConfig)
			}
			if s = strings.TrimSpace(s); s != "" {
				terms = append(terms, s)
			}
		}
		return Filter{Terms: terms}, nil
	case []string:
		return Filter{Terms: append([]string(nil), t...)}, nil
	default:
		// "all", and any other scalar, includes everything.
		return Filter{All: true}, nil
	}
}
