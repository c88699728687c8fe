package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/grimoire/internal/grimoire"
	"github.com/grimoire/internal/pdf"
)

func profileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "player",
			Aliases: []string{"p"},
			Usage:   "Build the grimoire of player `NAME`",
		},
		&cli.StringFlag{
			Name:    "theme",
			Aliases: []string{"t"},
			Usage:   "Build the generic grimoire of theme `NAME`",
		},
	}
}

// BuildCommand returns the build command
func BuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Assemble a grimoire PDF for a player or a theme",
		Flags: append(profileFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the PDF to `FILE`",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Override the grimoire title",
			},
			&cli.IntFlag{
				Name:  "max-prepared",
				Usage: "Override the prepared spell cap",
			},
			&cli.StringSliceFlag{
				Name:  "color",
				Usage: "Override a color as `ROLE=VALUE` (title, subtitle, body)",
			},
		),
		Action: runBuild,
	}
}

func runBuild(c *cli.Context) error {
	overrides, err := buildOverrides(c)
	if err != nil {
		return err
	}

	rt, err := startRuntime(c, "build")
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, err := rt.resolveProfile(c, overrides)
	if err != nil {
		return err
	}
	logger := log.With().Str(string(cfg.Source), cfg.ProfileName).Str("theme", cfg.ThemeName).Logger()

	output := c.String("output")
	if output == "" {
		output = filepath.Join(rt.paths.Output, grimoire.DefaultOutputName(cfg))
	}

	ctx := context.Background()
	engine := grimoire.NewEngine(rt.store(), rt.gateway(ctx, cfg))
	logger.Info().Str("file", output).Msg("Building grimoire")

	asm, err := engine.Build(ctx, cfg, pdf.NewRenderer(rt.paths.Fonts), output)
	if err != nil {
		return err
	}
	logger.Info().
		Int("records", asm.Records()).
		Int("excluded", asm.Excluded).
		Int("skipped", len(asm.Skipped)).
		Int("illustrated", asm.Illustrated).
		Int("degraded", asm.Degraded).
		Msg("Grimoire built")

	fmt.Printf("Grimoire written to %s (%d spells)\n", output, asm.Records())
	return nil
}

func buildOverrides(c *cli.Context) (grimoire.Overrides, error) {
	o := grimoire.Overrides{Title: c.String("title")}
	if c.IsSet("max-prepared") {
		limit := c.Int("max-prepared")
		o.MaxPrepared = &limit
	}
	for _, pair := range c.StringSlice("color") {
		role, value, ok := strings.Cut(pair, "=")
		role, value = strings.TrimSpace(role), strings.TrimSpace(value)
		if !ok || role == "" || value == "" {
			return o, fmt.Errorf("invalid color override %q, expected ROLE=VALUE", pair)
		}
		if o.Colors == nil {
			o.Colors = make(map[string]string)
		}
		o.Colors[role] = value
	}
	return o, nil
}
