package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/grimoire/internal/aiconnectors"
	"github.com/grimoire/internal/retry"
	"github.com/grimoire/internal/sheets"
)

// FetchCommand returns the fetch command
func FetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Generate missing spell sheets with a text model",
		ArgsUsage: "NAME...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "from",
				Aliases: []string{"f"},
				Usage:   "Read spell names from `FILE`, one per line",
			},
		},
		Action: runFetch,
	}
}

func runFetch(c *cli.Context) error {
	names := c.Args().Slice()
	if from := c.String("from"); from != "" {
		listed, err := readNames(from)
		if err != nil {
			return fmt.Errorf("failed to read spell list: %w", err)
		}
		names = append(names, listed...)
	}
	if len(names) == 0 {
		return fmt.Errorf("missing required argument: spell NAME or --from FILE")
	}

	rt, err := startRuntime(c, "fetch")
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := context.Background()
	sc := rt.cfg.Sheets
	conn, err := aiconnectors.NewConnector(ctx, aiconnectors.ConnectorOptions{
		Provider:    aiconnectors.Provider(sc.Provider),
		APIKey:      providerKey(sc.Provider),
		BaseURL:     sc.BaseURL,
		ModelConfig: aiconnectors.ModelConfig{Model: sc.Model, Temperature: sc.Temperature},
	})
	if err != nil {
		return fmt.Errorf("failed to create text model: %w", err)
	}

	gen := sheets.NewGenerator(conn, rt.store(), sheets.Options{Retry: retry.APIRetryConfig()})
	results, err := gen.GenerateAll(ctx, names)
	if err != nil {
		return err
	}

	counts := make(map[sheets.Status]int)
	for _, r := range results {
		counts[r.Status]++
		if r.Err != nil {
			log.Warn().Str("spell", r.Name).Str("status", r.Status.String()).Err(r.Err).Msg("Spell sheet not generated")
		}
	}
	fmt.Printf("Spell sheets: %d saved, %d existing, %d invalid, %d failed\n",
		counts[sheets.StatusSaved], counts[sheets.StatusExisting], counts[sheets.StatusInvalid], counts[sheets.StatusFailed])
	return nil
}

func readNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}
