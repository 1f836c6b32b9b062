// Package text prepares request text for synthesis backends that take it on
// a command line or embedded in a script.
package text

import (
	"regexp"
	"strings"
)

// Punctuation normalised before text reaches a CLI engine.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
	optionPrefix = "-"
)

const whitespaceRegexPattern = `\s+`

// Sanitizer normalises text for argv and Scheme string literals.
type Sanitizer struct {
	whitespacePattern *regexp.Regexp
	punctuation       *strings.Replacer
	schemeEscaper     *strings.Replacer
}

// NewSanitizer compiles the patterns once; a Sanitizer is safe for concurrent use.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		punctuation: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
		schemeEscaper: strings.NewReplacer(`\`, `\\`, `"`, `\"`),
	}
}

// ForCommandLine collapses whitespace (including CR, LF and tabs) and keeps a
// leading dash from being parsed as an option by the engine.
func (s *Sanitizer) ForCommandLine(text string) string {
	cleaned := s.normalizeWhitespace(s.punctuation.Replace(text))

	if strings.HasPrefix(cleaned, optionPrefix) {
		return " " + cleaned
	}

	return cleaned
}

// ForScheme returns text safe to place between double quotes in a Scheme
// (Festival) script.
func (s *Sanitizer) ForScheme(text string) string {
	return s.schemeEscaper.Replace(s.normalizeWhitespace(s.punctuation.Replace(text)))
}

func (s *Sanitizer) normalizeWhitespace(text string) string {
	return strings.TrimSpace(s.whitespacePattern.ReplaceAllString(text, " "))
}
