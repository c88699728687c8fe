package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/grimoire/internal/store"
)

// IndexCommand returns the index command
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:   "index",
		Usage:  "Rebuild index.json from the record files",
		Action: runIndex,
	}
}

func runIndex(c *cli.Context) error {
	rt, err := startRuntime(c, "index")
	if err != nil {
		return err
	}
	defer rt.close()

	st := rt.store()
	idx, err := st.RebuildIndex()
	if err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	log.Info().Str("path", st.Dir()).Int("entries", len(idx)).Msg("Index rebuilt")
	fmt.Printf("Wrote %d entries to %s\n", len(idx), store.IndexFile)
	return nil
}
