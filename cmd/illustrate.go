package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/grimoire/internal/grimoire"
	"github.com/grimoire/internal/illustration"
	"github.com/grimoire/pkg/models"
)

// IllustrateCommand returns the illustrate command
func IllustrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "illustrate",
		Usage: "Fill the illustration cache for the spells of a player or a theme",
		Flags: append(profileFlags(),
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Number of concurrent illustration lookups (defaults to illustration.concurrency)",
			},
		),
		Action: runIllustrate,
	}
}

func runIllustrate(c *cli.Context) error {
	rt, err := startRuntime(c, "illustrate")
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, err := rt.resolveProfile(c, grimoire.Overrides{})
	if err != nil {
		return err
	}

	listed, err := rt.store().ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	var spells []models.Spell
	for _, spell := range listed.Records {
		if cfg.Include(spell) {
			spells = append(spells, spell)
		}
	}

	variants := []illustration.Variant{illustration.Standard}
	if cfg.LargeIllustrations {
		variants = append(variants, illustration.Large)
	}

	workers := rt.cfg.Illustration.Concurrency
	if c.IsSet("concurrency") {
		workers = c.Int("concurrency")
	}

	ctx := context.Background()
	gw := rt.gateway(ctx, cfg)
	log.Info().Str("path", gw.Dir()).Int("spells", len(spells)).Int("workers", workers).Msg("Prefetching illustrations")

	report, err := gw.Prefetch(ctx, spells, variants, workers)
	if err != nil {
		return err
	}
	fmt.Printf("Illustrations: %d cached, %d generated, %d unavailable\n", report.Hits, report.Generated, report.Degraded)
	return nil
}
