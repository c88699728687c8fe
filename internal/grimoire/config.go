package grimoire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grimoire/internal/illustration"
	"github.com/grimoire/internal/player"
	"github.com/grimoire/internal/theme"
	"github.com/grimoire/pkg/models"
)

var (
	// ErrNoProfile is returned when neither a player nor a theme is given.
	ErrNoProfile = errors.New("a player or a theme is required")
	// ErrAmbiguousProfile is returned when both a player and a theme are given.
	ErrAmbiguousProfile = errors.New("use either a player or a theme, not both")
)

// Color roles known to the paginator.
const (
	ColorTitle    = "title"
	ColorSubtitle = "subtitle"
	ColorBody     = "body"
)

// DefaultColors is the palette used before any theme or player layer.
func DefaultColors() map[string]string {
	return map[string]string{
		ColorTitle:    "#8B0000",
		ColorSubtitle: "#708090",
		ColorBody:     "#000000",
	}
}

// Source tells which profile a RenderConfig was resolved from.
type Source string

const (
	SourcePlayer Source = "player"
	SourceTheme  Source = "theme"
)

// Overrides are per-call settings applied after the theme and player layers.
type Overrides struct {
	Title       string
	MaxPrepared *int
	Colors      map[string]string
}

// RenderConfig is the flattened, read-only view driving one assembly run.
type RenderConfig struct {
	Source      Source
	ProfileName string
	ThemeName   string

	Title              string
	CharacterName      string
	MaxPrepared        int
	Colors             map[string]string
	Fonts              theme.Fonts
	Illustration       illustration.Style
	IllustrationsDir   string
	LargeIllustrations bool

	include func(name string) bool
}

// Include reports whether a record belongs in this grimoire.
func (c *RenderConfig) Include(spell models.Spell) bool {
	if c.include == nil {
		return true
	}
	return c.include(spell.Name)
}

// NewRenderConfig resolves exactly one of p or th, then applies o.
func NewRenderConfig(p *player.Player, th *theme.Theme, o Overrides) (*RenderConfig, error) {
	var cfg *RenderConfig
	switch {
	case p == nil && th == nil:
		return nil, ErrNoProfile
	case p != nil && th != nil:
		return nil, ErrAmbiguousProfile
	case p != nil:
		cfg = fromTheme(p.Theme)
		cfg.Source = SourcePlayer
		cfg.ProfileName = p.Name
		cfg.Title = p.GrimoireTitle
		cfg.CharacterName = p.CharacterName
		cfg.MaxPrepared = p.MaxPreparedSpells
		cfg.IllustrationsDir = p.IllustrationsFolder
		cfg.Colors = overlay(DefaultColors(), p.Colors())
		cfg.include = p.ShouldInclude
	default:
		cfg = fromTheme(th)
	}

	if o.Title != "" {
		cfg.Title = o.Title
	}
	if o.MaxPrepared != nil {
		if *o.MaxPrepared < 0 {
			return nil, fmt.Errorf("max prepared spells must not be negative: %d", *o.MaxPrepared)
		}
		cfg.MaxPrepared = *o.MaxPrepared
	}
	cfg.Colors = overlay(cfg.Colors, o.Colors)
	return cfg, nil
}

func fromTheme(th *theme.Theme) *RenderConfig {
	return &RenderConfig{
		Source:      SourceTheme,
		ProfileName: th.Name,
		ThemeName:   th.Name,
		Title:       th.Title,
		MaxPrepared: th.MaxPreparedSpells,
		Colors:      overlay(DefaultColors(), th.Colors),
		Fonts:       th.Fonts,
		Illustration: illustration.Style{
			Style:        th.IllustrationStyle,
			Constraints:  th.StylisticConstraints,
			BasePrompt:   th.BasePrompt,
			LargeContext: th.LargeContext,
		},
		IllustrationsDir:   th.IllustrationsFolder,
		LargeIllustrations: th.LargeIllustrations,
		include:            th.ShouldInclude,
	}
}

// overlay returns a new map with top's keys written over base.
func overlay(base, top map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		if strings.TrimSpace(v) != "" {
			out[k] = v
		}
	}
	return out
}

// DefaultOutputName is the document name used when no output path is given.
func DefaultOutputName(cfg *RenderConfig) string {
	if cfg.Source == SourcePlayer {
		name := models.SanitizeName(cfg.Title)
		if name == "" {
			name = models.SanitizeName(cfg.ProfileName)
		}
		return name + ".pdf"
	}
	return "Grimoire_Theme_" + cfg.ProfileName + ".pdf"
}
