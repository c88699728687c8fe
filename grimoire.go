package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/grimoire/cmd"
	"github.com/grimoire/internal/logging"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "grimoire",
		Usage:   "Assemble illustrated spell grimoires for players and themes",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log level (trace, debug, info, warn, error, fatal, panic)",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Resolve relative data paths against `DIR`",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE`",
				Value: ".env",
			},
		},
		Before: func(c *cli.Context) error {
			if err := logging.Setup(c.String("log")); err != nil {
				return err
			}
			if err := cmd.LoadEnvFile(c.String("env-file")); err != nil {
				if !errors.Is(err, fs.ErrNotExist) || c.IsSet("env-file") {
					log.Warn().Err(err).Str("file", c.String("env-file")).Msg("Env file not loaded")
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			cmd.BuildCommand(),
			cmd.IllustrateCommand(),
			cmd.FetchCommand(),
			cmd.IndexCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
