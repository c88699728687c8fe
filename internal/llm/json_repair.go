package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
)

// JsonRepairStats tracks statistics about JSON repair operations
type JsonRepairStats struct {
	OriginalBytes    int
	RepairedBytes    int
	ErrorsFixed      int
	RepairTime       time.Duration
	RepairStrategies []string
	WasRepaired      bool
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// RepairJSON attempts to repair malformed JSON in order:
// 1. Remove trailing commas
// 2. Close unterminated objects/arrays
// 3. Fall back to the jsonrepair library
//
// Quotes are never rewritten, so apostrophes in record text survive.
func RepairJSON(raw string) (repaired string, stats JsonRepairStats, err error) {
	startTime := time.Now()
	stats.OriginalBytes = len(raw)
	defer func() {
		stats.RepairedBytes = len(repaired)
		stats.RepairTime = time.Since(startTime)
	}()

	if json.Valid([]byte(raw)) {
		return raw, stats, nil
	}

	stats.WasRepaired = true
	repaired = raw

	if trailingComma.MatchString(repaired) {
		repaired = trailingComma.ReplaceAllString(repaired, "$1")
		stats.RepairStrategies = append(stats.RepairStrategies, "trailing_commas")
		stats.ErrorsFixed++
	}

	if completed := completeJSON(repaired); completed != repaired {
		repaired = completed
		stats.RepairStrategies = append(stats.RepairStrategies, "completion")
		stats.ErrorsFixed++
	}

	if json.Valid([]byte(repaired)) {
		return repaired, stats, nil
	}

	libraryRepaired, libraryErr := jsonrepair.JSONRepair(repaired)
	if libraryErr == nil && json.Valid([]byte(libraryRepaired)) {
		repaired = libraryRepaired
		stats.RepairStrategies = append(stats.RepairStrategies, "jsonrepair_library")
		stats.ErrorsFixed++
		return repaired, stats, nil
	}

	return repaired, stats, fmt.Errorf("JSON repair failed after %d strategies", len(stats.RepairStrategies))
}

// completeJSON appends the closing braces/brackets of structures left open,
// ignoring delimiters inside string literals.
func completeJSON(s string) string {
	s = strings.TrimSpace(s)

	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}
