package models

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	forbiddenFileChars = regexp.MustCompile(`[\\/:"*?<>|]`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
)

// SanitizeName turns a spell name into the key used for record files,
// illustration files and allowlist comparisons: accents stripped, characters
// forbidden in file names dropped, whitespace runs replaced by "_", lowercased.
func SanitizeName(name string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, name)
	if err != nil {
		folded = name
	}
	folded = forbiddenFileChars.ReplaceAllString(folded, "")
	folded = whitespaceRun.ReplaceAllString(folded, "_")
	return strings.ToLower(folded)
}
