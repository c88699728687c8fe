package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// CredentialEnv is the environment variable gating illustration generation.
const CredentialEnv = "OPENAI_API_KEY"

// Config represents the application configuration
type Config struct {
	Paths        PathsConfig        `koanf:"paths"`
	Illustration IllustrationConfig `koanf:"illustration"`
	Sheets       SheetsConfig       `koanf:"sheets"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// PathsConfig locates the data directories. Relative paths are resolved
// against the data root.
type PathsConfig struct {
	Records string `koanf:"records"`
	Themes  string `koanf:"themes"`
	Players string `koanf:"players"`
	Fonts   string `koanf:"fonts"`
	Output  string `koanf:"output"`
}

type IllustrationConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Model             string        `koanf:"model"`
	Size              string        `koanf:"size"`
	Quality           string        `koanf:"quality"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	Concurrency       int           `koanf:"concurrency"`
	ConceptProvider   string        `koanf:"concept_provider"`
	ConceptModel      string        `koanf:"concept_model"`
	BaseURL           string        `koanf:"base_url"`
}

type SheetsConfig struct {
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
	BaseURL     string  `koanf:"base_url"`
}

type LoggingConfig struct {
	Dir  string `koanf:"dir"`
	File bool   `koanf:"file"`
}

var knownProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"ollama":    true,
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"paths.records":                    "fiches_sorts",
		"paths.themes":                     "themes",
		"paths.players":                    "players",
		"paths.fonts":                      "fonts",
		"paths.output":                     ".",
		"illustration.enabled":             true,
		"illustration.model":               "gpt-image-1",
		"illustration.size":                "1024x1024",
		"illustration.quality":             "low",
		"illustration.timeout":             "90s",
		"illustration.requests_per_minute": 20,
		"illustration.concurrency":         1,
		"illustration.concept_provider":    "openai",
		"illustration.concept_model":       "gpt-4",
		"sheets.provider":                  "openai",
		"sheets.model":                     "gpt-4",
		"sheets.temperature":               0.5,
		"logging.dir":                      "grimoire_logs",
		"logging.file":                     true,
	}
}

// LoadConfig loads the configuration: built-in defaults, then the TOML file,
// then GRIMOIRE_ environment variables.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./grimoire.toml", "$HOME/.grimoire.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// GRIMOIRE_PATHS_RECORDS -> paths.records. Only the first underscore after
	// the section is a separator so that keys like requests_per_minute survive.
	k.Load(env.Provider("GRIMOIRE_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "GRIMOIRE_"))
		return strings.Replace(key, "_", ".", 1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// Anchor joins a relative path to root. Empty and absolute paths are kept.
func Anchor(root, path string) string {
	if path == "" || filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}

// Resolve returns a copy of the paths anchored at root.
func (p PathsConfig) Resolve(root string) PathsConfig {
	anchor := func(path string) string { return Anchor(root, path) }
	return PathsConfig{
		Records: anchor(p.Records),
		Themes:  anchor(p.Themes),
		Players: anchor(p.Players),
		Fonts:   anchor(p.Fonts),
		Output:  anchor(p.Output),
	}
}

// APIKey returns the illustration credential, or "" when generation is unavailable.
func APIKey() string {
	return strings.TrimSpace(os.Getenv(CredentialEnv))
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Grimoire Configuration

[paths]
records = "fiches_sorts"
themes = "themes"
players = "players"
fonts = "fonts"
output = "."

[illustration]
enabled = true
model = "gpt-image-1"
size = "1024x1024"
quality = "low"
timeout = "90s"
requests_per_minute = 20
concurrency = 1
concept_provider = "openai"
concept_model = "gpt-4"

[sheets]
provider = "openai"
model = "gpt-4"
temperature = 0.5

[logging]
dir = "grimoire_logs"
file = true
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	paths := []struct{ key, value string }{
		{"paths.records", config.Paths.Records},
		{"paths.themes", config.Paths.Themes},
		{"paths.players", config.Paths.Players},
		{"paths.output", config.Paths.Output},
	}
	for _, p := range paths {
		if p.value == "" {
			return fmt.Errorf("%s is required", p.key)
		}
	}

	if config.Illustration.Concurrency < 1 {
		return fmt.Errorf("illustration.concurrency must be at least 1")
	}
	if config.Illustration.RequestsPerMinute < 1 {
		return fmt.Errorf("illustration.requests_per_minute must be at least 1")
	}
	if config.Illustration.Timeout <= 0 {
		return fmt.Errorf("illustration.timeout must be positive")
	}
	if !knownProviders[config.Illustration.ConceptProvider] {
		return fmt.Errorf("unsupported concept provider: %s", config.Illustration.ConceptProvider)
	}
	if !knownProviders[config.Sheets.Provider] {
		return fmt.Errorf("unsupported sheets provider: %s", config.Sheets.Provider)
	}

	return nil
}
