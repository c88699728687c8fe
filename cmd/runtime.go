package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/grimoire/internal/aiconnectors"
	"github.com/grimoire/internal/config"
	"github.com/grimoire/internal/grimoire"
	"github.com/grimoire/internal/illustration"
	"github.com/grimoire/internal/logging"
	"github.com/grimoire/internal/player"
	"github.com/grimoire/internal/retry"
	"github.com/grimoire/internal/store"
	"github.com/grimoire/internal/theme"
)

// runtime is the state shared by the commands of one invocation.
type runtime struct {
	cfg   *config.Config
	paths config.PathsConfig
	run   *logging.RunLogger
}

// startRuntime loads the configuration, resolves paths against --data-dir and
// starts the run logger for command.
func startRuntime(c *cli.Context, command string) (*runtime, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	paths := cfg.Paths.Resolve(c.String("data-dir"))

	logDir := ""
	if cfg.Logging.File {
		logDir = config.Anchor(c.String("data-dir"), cfg.Logging.Dir)
	}
	run, err := logging.StartRun(logDir, command)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, paths: paths, run: run}, nil
}

func (r *runtime) close() {
	r.run.Close()
}

func (r *runtime) store() *store.Store {
	return store.New(r.paths.Records)
}

// resolveProfile builds the render configuration from exactly one of
// --player and --theme.
func (r *runtime) resolveProfile(c *cli.Context, o grimoire.Overrides) (*grimoire.RenderConfig, error) {
	playerName, themeName := c.String("player"), c.String("theme")
	if (playerName == "") == (themeName == "") {
		return nil, grimoire.ErrNoProfile
	}

	themes := theme.NewResolver(r.paths.Themes)
	if playerName != "" {
		p, err := player.NewResolver(r.paths.Players, themes).Resolve(playerName)
		if err != nil {
			return nil, err
		}
		return grimoire.NewRenderConfig(p, nil, o)
	}
	th, err := themes.Resolve(themeName)
	if err != nil {
		return nil, err
	}
	return grimoire.NewRenderConfig(nil, th, o)
}

// gateway wires the illustration cache for cfg. Without a credential or with
// illustrations disabled, hits are served and misses degrade.
func (r *runtime) gateway(ctx context.Context, cfg *grimoire.RenderConfig) *illustration.Gateway {
	ic := r.cfg.Illustration
	opts := illustration.Options{
		Dir:     cfg.IllustrationsDir,
		Style:   cfg.Illustration,
		Timeout: ic.Timeout,
		Limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ic.RequestsPerMinute)), 1),
	}

	apiKey := config.APIKey()
	switch {
	case !ic.Enabled:
		log.Info().Msg("Illustration generation disabled, using cached images only")
		return illustration.NewGateway(opts)
	case apiKey == "":
		log.Warn().Str("env", config.CredentialEnv).Msg("No image credential, using cached images only")
		return illustration.NewGateway(opts)
	}

	opts.Generator = illustration.NewOpenAIGenerator(illustration.OpenAIOptions{
		APIKey:  apiKey,
		BaseURL: ic.BaseURL,
		Model:   ic.Model,
		Size:    ic.Size,
		Quality: ic.Quality,
		Retry:   retry.APIRetryConfig(),
	})

	conn, err := aiconnectors.NewConnector(ctx, aiconnectors.ConnectorOptions{
		Provider:    aiconnectors.Provider(ic.ConceptProvider),
		APIKey:      providerKey(ic.ConceptProvider),
		ModelConfig: aiconnectors.ModelConfig{Model: ic.ConceptModel, Temperature: 0.7},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Concept model unavailable, using base prompt")
	} else {
		opts.Concepts = illustration.NewTextConceptWriter(conn, cfg.Illustration.Constraints)
	}
	return illustration.NewGateway(opts)
}

// providerKey returns the credential for a text model provider.
func providerKey(provider string) string {
	if env := providerEnv(provider); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}
