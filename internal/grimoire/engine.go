// Package grimoire resolves a render configuration from a player or theme
// profile and assembles the ordered content stream of a grimoire.
package grimoire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/grimoire/internal/fsutil"
	"github.com/grimoire/internal/illustration"
	"github.com/grimoire/internal/store"
	"github.com/grimoire/pkg/models"
)

// ErrRenderFatal wraps any failure of the paginator. No output file is left behind.
var ErrRenderFatal = errors.New("render failed")

const (
	// UncheckedBox marks a non-ritual spell in the table of contents.
	UncheckedBox = "☐"
	RitualMark   = "R"

	UnnamedSpell = "Unnamed spell"
	Placeholder  = "-"
)

// RecordSource lists spell records. *store.Store satisfies it.
type RecordSource interface {
	ListRecords() (store.ListResult, error)
}

// Illustrator resolves illustrations. *illustration.Gateway satisfies it.
type Illustrator interface {
	GetOrCreate(ctx context.Context, spell models.Spell, variant illustration.Variant) illustration.Asset
}

// Section is one tier group of the grimoire.
type Section struct {
	Tier   models.Tier
	Label  string
	Spells []models.Spell
}

// Assembly is the result of the collect, group and emit phases.
type Assembly struct {
	Stream      Stream
	Sections    []Section
	Skipped     []*store.RecordParseError
	Excluded    int
	Illustrated int
	Degraded    int
}

// Records returns the number of spells in the assembly.
func (a *Assembly) Records() int {
	n := 0
	for _, s := range a.Sections {
		n += len(s.Spells)
	}
	return n
}

// Engine assembles grimoires.
type Engine struct {
	records       RecordSource
	illustrations Illustrator
}

// NewEngine creates an engine. illustrations may be nil, in which case no
// record carries an image.
func NewEngine(records RecordSource, illustrations Illustrator) *Engine {
	return &Engine{records: records, illustrations: illustrations}
}

// Assemble runs the three phases and returns the content stream.
func (e *Engine) Assemble(ctx context.Context, cfg *RenderConfig) (*Assembly, error) {
	if cfg == nil {
		return nil, ErrNoProfile
	}

	// Collect & filter
	listed, err := e.records.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	asm := &Assembly{Skipped: listed.Skipped}
	eligible := make([]models.Spell, 0, len(listed.Records))
	for _, spell := range listed.Records {
		if !cfg.Include(spell) {
			asm.Excluded++
			continue
		}
		eligible = append(eligible, spell)
	}

	// Group & order
	asm.Sections = GroupByTier(eligible)

	// Emit
	asm.Stream = append(asm.Stream, coverBlocks(cfg)...)
	asm.Stream = append(asm.Stream, tocBlocks(asm.Sections)...)
	for _, section := range asm.Sections {
		for _, spell := range section.Spells {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			asm.Stream = append(asm.Stream, e.spellBlocks(ctx, cfg, spell, asm)...)
		}
	}

	log.Debug().
		Int("records", asm.Records()).
		Int("excluded", asm.Excluded).
		Int("skipped", len(asm.Skipped)).
		Int("blocks", len(asm.Stream)).
		Msg("Grimoire assembled")
	return asm, nil
}

// Build assembles the grimoire and renders it to outputPath. The document is
// written to a temporary file and renamed only when rendering succeeds.
func (e *Engine) Build(ctx context.Context, cfg *RenderConfig, pager Paginator, outputPath string) (*Assembly, error) {
	start := time.Now()
	asm, err := e.Assemble(ctx, cfg)
	if err != nil {
		return nil, err
	}

	doc := Document{
		Title:  cfg.Title,
		Colors: cfg.Colors,
		Fonts:  cfg.Fonts,
		Stream: asm.Stream,
	}
	err = fsutil.WriteWith(outputPath, 0644, func(w io.Writer) error {
		if err := pager.Render(w, doc); err != nil {
			return fmt.Errorf("%w: %w", ErrRenderFatal, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrRenderFatal) {
			err = fmt.Errorf("%w: %w", ErrRenderFatal, err)
		}
		return nil, err
	}

	log.Info().
		Str("path", outputPath).
		Int("records", asm.Records()).
		Int("illustrated", asm.Illustrated).
		Dur("duration", time.Since(start)).
		Msg("Grimoire written")
	return asm, nil
}

// GroupByTier groups spells by tier in ascending order, unknown tiers last.
// Within a tier spells are ordered by display name, byte-wise.
func GroupByTier(spells []models.Spell) []Section {
	byTier := make(map[models.Tier][]models.Spell)
	for _, spell := range spells {
		tier := spell.Tier
		if !tier.Known() {
			tier = models.TierUnknown
		}
		byTier[tier] = append(byTier[tier], spell)
	}

	tiers := make([]models.Tier, 0, len(byTier))
	for tier := range byTier {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool {
		a, b := tiers[i], tiers[j]
		if a.Known() != b.Known() {
			return a.Known()
		}
		return a < b
	})

	sections := make([]Section, 0, len(tiers))
	for _, tier := range tiers {
		group := byTier[tier]
		sort.SliceStable(group, func(i, j int) bool {
			return DisplayName(group[i]) < DisplayName(group[j])
		})
		sections = append(sections, Section{Tier: tier, Label: TierLabel(tier), Spells: group})
	}
	return sections
}

// TierLabel is the heading of a tier section.
func TierLabel(t models.Tier) string {
	switch {
	case t == models.TierCantrip:
		return "Tours de magie"
	case t.Known():
		return "Niveau " + strconv.Itoa(int(t))
	default:
		return "Niveau inconnu"
	}
}

// DisplayName returns the spell name or the unnamed placeholder.
func DisplayName(s models.Spell) string {
	if s.Name == "" {
		return UnnamedSpell
	}
	return s.Name
}

// FormatRange adds the meters suffix to plain integer ranges.
func FormatRange(r string) string {
	r = strings.TrimSpace(r)
	if r == "" {
		return Placeholder
	}
	for _, c := range r {
		if c < '0' || c > '9' {
			return r
		}
	}
	return r + " mètres"
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}

func coverBlocks(cfg *RenderConfig) Stream {
	blocks := Stream{{Kind: BlockTitle, Text: cfg.Title}}
	if cfg.CharacterName != "" {
		blocks = append(blocks, Block{Kind: BlockSubtitle, Text: cfg.CharacterName})
	}
	blocks = append(blocks,
		Block{Kind: BlockParagraph, Text: "Sorts préparés maximum : " + strconv.Itoa(cfg.MaxPrepared)},
		Block{Kind: BlockPageBreak},
	)
	return blocks
}

func tocBlocks(sections []Section) Stream {
	blocks := Stream{{Kind: BlockTitle, Text: "Table des matières"}}
	for _, section := range sections {
		blocks = append(blocks, Block{Kind: BlockHeading, Text: section.Label})
		for _, spell := range section.Spells {
			marker := UncheckedBox
			if spell.Ritual {
				marker = RitualMark
			}
			blocks = append(blocks, Block{Kind: BlockTOCEntry, Marker: marker, Text: DisplayName(spell)})
		}
	}
	return append(blocks, Block{Kind: BlockPageBreak})
}

func (e *Engine) spellBlocks(ctx context.Context, cfg *RenderConfig, spell models.Spell, asm *Assembly) Stream {
	title := Block{Kind: BlockSpellTitle, Text: DisplayName(spell)}
	if path, ok := e.illustrate(ctx, spell, illustration.Standard, asm); ok {
		title.Image = path
	}
	blocks := Stream{title, summaryBlock(spell)}

	for _, info := range []struct{ label, value string }{
		{"Type", spell.SaveOrAttack},
		{"Cible", spell.Target},
		{"Composantes", spell.Components},
	} {
		if strings.TrimSpace(info.value) != "" {
			blocks = append(blocks, Block{Kind: BlockInfo, Label: info.label, Text: info.value})
		}
	}

	if cfg.LargeIllustrations {
		if path, ok := e.illustrate(ctx, spell, illustration.Large, asm); ok {
			blocks = append(blocks, Block{Kind: BlockImage, Image: path})
		}
	}

	description := spell.FullDescription
	if description == "" {
		description = spell.ShortEffect
	}
	blocks = append(blocks,
		Block{Kind: BlockLabel, Text: "Description :"},
		Block{Kind: BlockParagraph, Text: orPlaceholder(description)},
	)

	if spell.HigherTierEffect != "" {
		blocks = append(blocks,
			Block{Kind: BlockLabel, Text: "Effet en surcaste :"},
			Block{Kind: BlockParagraph, Text: spell.HigherTierEffect},
		)
	}
	return append(blocks, Block{Kind: BlockPageBreak})
}

func summaryBlock(spell models.Spell) Block {
	ritual := yesNo(spell.Ritual)
	if spell.Ritual && spell.RitualCastTime != "" {
		ritual += " (" + spell.RitualCastTime + ")"
	}
	return Block{Kind: BlockSummary, Rows: [][]string{
		{"Niveau", "École", "Rituel"},
		{spell.Tier.String(), orPlaceholder(spell.School), ritual},
		{"Temps", "Portée", "Concentration"},
		{orPlaceholder(spell.CastingTime), FormatRange(spell.Range), yesNo(spell.Concentration)},
	}}
}

func (e *Engine) illustrate(ctx context.Context, spell models.Spell, variant illustration.Variant, asm *Assembly) (string, bool) {
	if e.illustrations == nil {
		return "", false
	}
	asset := e.illustrations.GetOrCreate(ctx, spell, variant)
	if !asset.Available() {
		asm.Degraded++
		return "", false
	}
	if _, err := os.Stat(asset.Path); err != nil {
		asm.Degraded++
		return "", false
	}
	asm.Illustrated++
	return asset.Path, true
}
