// Package sheets fetches spell records from a text model and stores them as
// record files, keeping index.json up to date.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"github.com/grimoire/internal/llm"
	"github.com/grimoire/internal/retry"
	"github.com/grimoire/internal/store"
	"github.com/grimoire/pkg/models"
)

// InvalidJSONMessage is stored in place of a record the model answered badly.
const InvalidJSONMessage = "JSON non valide"

// TextModel is the single-prompt call used to fetch a sheet.
// aiconnectors.Connector satisfies it.
type TextModel interface {
	Call(ctx context.Context, input string, options ...llms.CallOption) (string, error)
}

// Status is the outcome for one spell.
type Status int

const (
	StatusExisting Status = iota
	StatusSaved
	StatusInvalid
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusExisting:
		return "existing"
	case StatusSaved:
		return "saved"
	case StatusInvalid:
		return "invalid"
	default:
		return "failed"
	}
}

// Result reports what happened to one requested spell.
type Result struct {
	Name    string
	File    string
	Status  Status
	Indexed bool
	Err     error
}

// Options configures a Generator.
type Options struct {
	// Interval is the minimum delay between two model calls.
	Interval time.Duration
	Retry    retry.RetryConfig
}

// Generator writes spell sheets into a record store.
type Generator struct {
	model   TextModel
	store   *store.Store
	limiter *rate.Limiter
	retry   retry.RetryConfig
}

func NewGenerator(model TextModel, st *store.Store, opts Options) *Generator {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Generator{
		model:   model,
		store:   st,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		retry:   opts.Retry,
	}
}

// GenerateAll fetches every spell whose record file is absent. A failing spell
// never stops the batch; only a cancelled context does.
func (g *Generator) GenerateAll(ctx context.Context, names []string) ([]Result, error) {
	idx, err := g.store.LoadIndex()
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := g.generate(ctx, name)
		if res.Indexed {
			idx.Upsert(res.entry)
			if err := g.store.SaveIndex(idx); err != nil {
				return results, fmt.Errorf("failed to update index: %w", err)
			}
		}
		results = append(results, res.Result)
	}
	return results, nil
}

type generated struct {
	Result
	entry store.IndexEntry
}

func (g *Generator) generate(ctx context.Context, name string) generated {
	logger := log.With().Str("spell", name).Logger()
	res := generated{Result: Result{Name: name}}

	if g.store.Has(name) {
		logger.Info().Msg("Spell sheet already exists, skipping")
		res.Status = StatusExisting
		return res
	}

	if err := g.limiter.Wait(ctx); err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}

	logger.Info().Msg("Generating spell sheet")
	var content string
	outcome := retry.RetryWithBackoff(ctx, g.retry, func() error {
		var err error
		content, err = g.model.Call(ctx, Prompt(name))
		return err
	}, &logger)
	if !outcome.Success {
		logger.Error().Err(outcome.LastError).Int("attempts", outcome.Attempts).Msg("Spell sheet generation failed")
		res.Status, res.Err = StatusFailed, outcome.LastError
		return res
	}

	var fields map[string]interface{}
	var data []byte
	processed, err := llm.ProcessLLMResponse(content, &fields)
	if err == nil && fields != nil {
		// Keep the model's key order.
		var buf bytes.Buffer
		if err = json.Indent(&buf, []byte(processed.RepairedJSON), "", "    "); err == nil {
			data = append(buf.Bytes(), '\n')
			res.Status = StatusSaved
		}
	}
	if data == nil {
		logger.Warn().Err(err).Msg("Model answered with invalid JSON, saving raw content")
		fields = map[string]interface{}{
			models.KeyGenerationError: InvalidJSONMessage,
			models.KeyRawContent:      content,
		}
		res.Status, res.Err = StatusInvalid, err
		if data, err = encode(fields); err != nil {
			res.Status, res.Err = StatusFailed, err
			return res
		}
	}

	if res.File, err = g.store.Save(name, data); err != nil {
		logger.Error().Err(err).Msg("Failed to save spell sheet")
		res.Status, res.Err = StatusFailed, err
		return res
	}

	if res.Status == StatusSaved {
		if entry, ok := indexEntry(fields, data, res.File); ok {
			res.entry, res.Indexed = entry, true
		}
	}
	logger.Info().Str("file", res.File).Str("status", res.Status.String()).Msg("Spell sheet written")
	return res
}

// indexEntry builds the index row when the sheet carries a name, an original
// name and a valid tier.
func indexEntry(fields map[string]interface{}, data []byte, file string) (store.IndexEntry, bool) {
	for _, key := range []string{models.KeyName, models.KeyOriginalName, models.KeyTier} {
		if _, ok := fields[key]; !ok {
			return store.IndexEntry{}, false
		}
	}
	var spell models.Spell
	if err := json.Unmarshal(data, &spell); err != nil || !spell.Tier.Known() {
		return store.IndexEntry{}, false
	}
	return store.IndexEntry{
		Name:         spell.Name,
		OriginalName: spell.OriginalName,
		Tier:         int(spell.Tier),
		File:         file,
	}, true
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
