// Package illustration is the cache gateway in front of the image generator.
// Failures never leave the gateway: they degrade to an asset without a path.
package illustration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/grimoire/internal/fsutil"
	"github.com/grimoire/pkg/models"
)

// ErrUnavailable marks an illustration that could not be produced.
var ErrUnavailable = errors.New("illustration unavailable")

// LargeFolder is the subfolder holding the large variant.
const LargeFolder = "large"

// Variant selects the standard thumbnail or the large scene.
type Variant int

const (
	Standard Variant = iota
	Large
)

func (v Variant) String() string {
	if v == Large {
		return "large"
	}
	return "standard"
}

// Outcome says how an asset was obtained.
type Outcome int

const (
	Degraded Outcome = iota
	Hit
	Generated
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Generated:
		return "generated"
	default:
		return "degraded"
	}
}

// Asset is the result of a lookup. Path is empty when Outcome is Degraded.
type Asset struct {
	Path    string
	Outcome Outcome
	Err     error
}

// Available reports whether the asset has a usable file.
func (a Asset) Available() bool {
	return a.Outcome != Degraded && a.Path != ""
}

// Request is what the generator receives for one image.
type Request struct {
	Name        string
	Description string
	Variant     Variant
	Prompt      string
}

// Generator turns a prompt into image bytes.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Options configures a Gateway. A nil Generator means no credential is
// available: cache hits are served and misses degrade without a call.
type Options struct {
	Dir       string
	Style     Style
	Generator Generator
	Concepts  ConceptWriter
	Timeout   time.Duration
	Limiter   *rate.Limiter
}

// Gateway serves illustrations from the on-disk cache and fills misses.
type Gateway struct {
	dir      string
	style    Style
	gen      Generator
	concepts ConceptWriter
	timeout  time.Duration
	limiter  *rate.Limiter

	group     singleflight.Group
	mu        sync.Mutex
	attempted map[string]bool
}

func NewGateway(opts Options) *Gateway {
	return &Gateway{
		dir:       opts.Dir,
		style:     opts.Style,
		gen:       opts.Generator,
		concepts:  opts.Concepts,
		timeout:   opts.Timeout,
		limiter:   opts.Limiter,
		attempted: make(map[string]bool),
	}
}

// Dir returns the cache folder.
func (g *Gateway) Dir() string {
	return g.dir
}

// PathFor returns the cache path of a spell's illustration.
func (g *Gateway) PathFor(name string, variant Variant) string {
	file := models.SanitizeName(name) + ".png"
	if variant == Large {
		return filepath.Join(g.dir, LargeFolder, file)
	}
	return filepath.Join(g.dir, file)
}

// GetOrCreate returns the cached illustration, generating it on a miss when a
// generator is configured. Each spell and variant is attempted at most once
// per Gateway.
func (g *Gateway) GetOrCreate(ctx context.Context, spell models.Spell, variant Variant) Asset {
	if strings.TrimSpace(spell.Name) == "" {
		return Asset{Err: fmt.Errorf("%w: unnamed spell", ErrUnavailable)}
	}
	path := g.PathFor(spell.Name, variant)
	if exists(path) {
		return Asset{Path: path, Outcome: Hit}
	}
	if g.gen == nil {
		return Asset{Err: fmt.Errorf("%w: no credential", ErrUnavailable)}
	}

	v, _, _ := g.group.Do(path, func() (interface{}, error) {
		return g.generate(ctx, spell, variant, path), nil
	})
	return v.(Asset)
}

func (g *Gateway) generate(ctx context.Context, spell models.Spell, variant Variant, path string) Asset {
	g.mu.Lock()
	if g.attempted[path] {
		g.mu.Unlock()
		if exists(path) {
			return Asset{Path: path, Outcome: Hit}
		}
		return Asset{Err: fmt.Errorf("%w: already failed in this run", ErrUnavailable)}
	}
	g.attempted[path] = true
	g.mu.Unlock()

	logger := log.With().Str("spell", spell.Name).Str("variant", variant.String()).Logger()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return g.degrade(err)
		}
	}

	description := spell.FullDescription
	if description == "" {
		description = spell.ShortEffect
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	concept := g.concept(callCtx, spell.Name, description)
	req := Request{
		Name:        spell.Name,
		Description: description,
		Variant:     variant,
		Prompt:      BuildPrompt(g.style, concept, variant),
	}

	start := time.Now()
	data, err := g.gen.Generate(callCtx, req)
	if err == nil && len(data) == 0 {
		err = errors.New("empty image")
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Illustration generation failed, continuing without image")
		return g.degrade(err)
	}

	if err := fsutil.WriteFile(path, data, 0644); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to store illustration")
		return g.degrade(err)
	}

	logger.Info().
		Str("path", path).
		Dur("duration", time.Since(start)).
		Msg("Illustration generated")
	return Asset{Path: path, Outcome: Generated}
}

func (g *Gateway) concept(ctx context.Context, name, description string) string {
	fallback := g.style.Fallback(name)
	if g.concepts == nil {
		return fallback
	}
	concept, err := g.concepts.Concept(ctx, name, description)
	if err != nil || strings.TrimSpace(concept) == "" {
		log.Warn().Err(err).Str("spell", name).Msg("Concept prompt failed, using base prompt")
		return fallback
	}
	log.Debug().Str("spell", name).Str("concept", concept).Msg("Concept prompt generated")
	return strings.TrimSpace(concept)
}

func (g *Gateway) degrade(err error) Asset {
	return Asset{Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
