package illustration

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/grimoire/pkg/models"
)

// PrefetchReport counts outcomes of a prefetch run.
type PrefetchReport struct {
	Hits      int
	Generated int
	Degraded  int
}

// Prefetch warms the cache for every spell and variant using up to workers
// concurrent lookups. It only returns an error when ctx is cancelled.
func (g *Gateway) Prefetch(ctx context.Context, spells []models.Spell, variants []Variant, workers int) (PrefetchReport, error) {
	if workers < 1 {
		workers = 1
	}

	var (
		mu     sync.Mutex
		report PrefetchReport
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, spell := range spells {
		for _, variant := range variants {
			if egCtx.Err() != nil {
				break
			}
			spell, variant := spell, variant
			eg.Go(func() error {
				asset := g.GetOrCreate(egCtx, spell, variant)
				mu.Lock()
				switch asset.Outcome {
				case Hit:
					report.Hits++
				case Generated:
					report.Generated++
				default:
					report.Degraded++
				}
				mu.Unlock()
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return report, err
	}

	log.Info().
		Int("hits", report.Hits).
		Int("generated", report.Generated).
		Int("degraded", report.Degraded).
		Msg("Illustration prefetch finished")
	return report, ctx.Err()
}
