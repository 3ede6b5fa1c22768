package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Characters replaced by a space before whitespace is collapsed.
const punctChars = ".,;:!?\"'`´()[]{}<>/\\|-_+*=&#%@$^~…–—‚„“”‘’«»·×"

var punct = func() map[rune]struct{} {
	m := make(map[rune]struct{}, len(punctChars))
	for _, r := range punctChars {
		m[r] = struct{}{}
	}
	return m
}()

// Normalize turns an item name into its comparison key:
// "  Mléko, 1.5% " -> "mleko 1 5".
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = stripMarks(s)
	s = strings.Map(func(r rune) rune {
		if _, ok := punct[r]; ok {
			return ' '
		}
		return r
	}, s)
	return collapseSpaces(s)
}

// NFD + drop combining marks. Lower-casing happens first because some
// runes (İ) lower-case into a letter plus a combining mark.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tokens(key string) []string {
	return strings.Fields(key)
}
