package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ProcessorResult contains the result of model response processing
type ProcessorResult struct {
	RepairStats  JsonRepairStats
	OriginalJSON string
	RepairedJSON string
	Success      bool
}

// ProcessLLMResponse extracts the JSON payload of a model response, repairs it
// if needed and decodes it into target.
func ProcessLLMResponse(raw string, target interface{}) (ProcessorResult, error) {
	result := ProcessorResult{OriginalJSON: raw}

	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return result, fmt.Errorf("no JSON found in response")
	}

	repairedJSON, repairStats, err := RepairJSON(jsonStr)
	result.RepairStats = repairStats
	result.RepairedJSON = repairedJSON

	if repairStats.WasRepaired {
		log.Debug().
			Strs("strategies", repairStats.RepairStrategies).
			Int("original_bytes", repairStats.OriginalBytes).
			Int("repaired_bytes", repairStats.RepairedBytes).
			Msg("JSON repair applied")
	}
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(repairedJSON), target); err != nil {
		return result, fmt.Errorf("JSON parsing failed after repair: %w", err)
	}

	result.Success = true
	return result, nil
}

// extractJSON extracts JSON content from mixed text/JSON responses
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	if strings.Contains(raw, "```") {
		var jsonLines []string
		inCodeBlock := false
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inCodeBlock = !inCodeBlock
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		if len(jsonLines) > 0 {
			return strings.TrimSpace(strings.Join(jsonLines, "\n"))
		}
	}

	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return ""
	}
	end := strings.LastIndexAny(raw, "}]")
	if end < start {
		return raw[start:]
	}
	return raw[start : end+1]
}
