package player

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grimoire/internal/theme"
	"github.com/grimoire/pkg/models"
)

// Overrides holds the partial settings a player layers over the theme.
type Overrides struct {
	Colors map[string]string `koanf:"colors"`
}

// Player is a resolved player profile composed with its theme.
type Player struct {
	Name  string
	Dir   string
	Theme *theme.Theme

	KnownSpells         []string
	MaxPreparedSpells   int
	GrimoireTitle       string
	CharacterName       string
	CustomOverrides     Overrides
	IllustrationsFolder string

	known map[string]struct{}
}

type playerFile struct {
	KnownSpells         []string  `koanf:"known_spells"`
	MaxPreparedSpells   int       `koanf:"max_prepared_spells"`
	GrimoireTitle       string    `koanf:"grimoire_title"`
	CharacterName       string    `koanf:"character_name"`
	CustomOverrides     Overrides `koanf:"custom_overrides"`
	IllustrationsFolder string    `koanf:"illustrations_folder"`
}

// Resolver loads player profiles and the themes they reference.
type Resolver struct {
	root   string
	themes *theme.Resolver
}

func NewResolver(root string, themes *theme.Resolver) *Resolver {
	return &Resolver{root: root, themes: themes}
}

// Resolve loads the named player. The referenced theme is resolved before any
// player-specific field is decoded, so a missing theme fails first.
func (r *Resolver) Resolve(name string) (*Player, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty player name", theme.ErrInvalidConfig)
	}
	dir := filepath.Join(r.root, name)

	k, err := theme.Load(filepath.Join(dir, theme.ConfigFile), nil)
	if err != nil {
		return nil, fmt.Errorf("player %q: %w", name, err)
	}

	themeName := strings.TrimSpace(k.String("theme"))
	if themeName == "" {
		return nil, fmt.Errorf("player %q: %w: missing theme", name, theme.ErrInvalidConfig)
	}
	th, err := r.themes.Resolve(themeName)
	if err != nil {
		return nil, fmt.Errorf("player %q: %w", name, err)
	}

	var raw playerFile
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("player %q: %w: %v", name, theme.ErrInvalidConfig, err)
	}

	p := &Player{
		Name:                name,
		Dir:                 dir,
		Theme:               th,
		KnownSpells:         raw.KnownSpells,
		MaxPreparedSpells:   th.MaxPreparedSpells,
		GrimoireTitle:       th.Title,
		CharacterName:       name,
		CustomOverrides:     raw.CustomOverrides,
		IllustrationsFolder: th.IllustrationsFolder,
	}
	if k.Exists("max_prepared_spells") {
		if raw.MaxPreparedSpells < 0 {
			return nil, fmt.Errorf("player %q: %w: negative max_prepared_spells", name, theme.ErrInvalidConfig)
		}
		p.MaxPreparedSpells = raw.MaxPreparedSpells
	}
	if raw.GrimoireTitle != "" {
		p.GrimoireTitle = raw.GrimoireTitle
	}
	if raw.CharacterName != "" {
		p.CharacterName = raw.CharacterName
	}
	if raw.IllustrationsFolder != "" {
		p.IllustrationsFolder = theme.ScopedFolder(dir, raw.IllustrationsFolder)
	}

	p.known = make(map[string]struct{}, len(raw.KnownSpells))
	for _, spell := range raw.KnownSpells {
		p.known[models.SanitizeName(spell)] = struct{}{}
	}
	return p, nil
}

// ShouldInclude applies the known-spells allowlist, or the theme filter when
// the player lists no spells.
func (p *Player) ShouldInclude(name string) bool {
	if len(p.known) == 0 {
		return p.Theme.ShouldInclude(name)
	}
	_, ok := p.known[models.SanitizeName(name)]
	return ok
}

// Colors returns the theme palette with the player's overrides applied.
// The merge is shallow: player keys win, other theme keys are kept.
func (p *Player) Colors() map[string]string {
	merged := make(map[string]string, len(p.Theme.Colors)+len(p.CustomOverrides.Colors))
	for role, value := range p.Theme.Colors {
		merged[role] = value
	}
	for role, value := range p.CustomOverrides.Colors {
		merged[role] = value
	}
	return merged
}
