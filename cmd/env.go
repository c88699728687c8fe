package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/grimoire/internal/config"
)

// CredentialCheckResult holds the result of the credential check
type CredentialCheckResult struct {
	Missing  []string          // Credentials the configuration needs but are unset
	Present  map[string]string // Credentials that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

// CheckCredentials reports which model credentials cfg needs and which are set.
// A missing credential is never fatal: illustrations degrade to the cache.
func CheckCredentials(cfg *config.Config) *CredentialCheckResult {
	result := &CredentialCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	needed := map[string]bool{}
	if cfg.Illustration.Enabled {
		needed[config.CredentialEnv] = true
		if v := providerEnv(cfg.Illustration.ConceptProvider); v != "" {
			needed[v] = true
		}
	}
	if v := providerEnv(cfg.Sheets.Provider); v != "" {
		needed[v] = true
	}

	for _, v := range []string{config.CredentialEnv, "ANTHROPIC_API_KEY"} {
		if !needed[v] {
			continue
		}
		val := os.Getenv(v)
		if val == "" {
			result.Missing = append(result.Missing, v)
		} else {
			result.Present[v] = maskSecret(val)
		}
	}

	if cfg.Illustration.Enabled && os.Getenv(config.CredentialEnv) == "" {
		result.Warnings = append(result.Warnings, "illustrations will be served from the cache only")
	}
	return result
}

func providerEnv(provider string) string {
	switch provider {
	case "openai":
		return config.CredentialEnv
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// PrintCredentialCheck prints the credential check results
func PrintCredentialCheck(result *CredentialCheckResult) {
	fmt.Println("=== Credential Check ===")

	if len(result.Missing) > 0 {
		fmt.Println("❌ Missing credentials:")
		for _, v := range result.Missing {
			fmt.Printf("   - %s\n", v)
		}
		fmt.Println("")
	}

	if len(result.Present) > 0 {
		fmt.Println("✓ Configured credentials:")
		for k, v := range result.Present {
			fmt.Printf("   - %s = %s\n", k, v)
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("⚠ Warning: %s\n", w)
	}

	fmt.Println("========================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
