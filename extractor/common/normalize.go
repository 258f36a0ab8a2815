package common

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentedLetters are kept by NormalizeDescription so that Portuguese
// descriptions still compare equal across sources.
const accentedLetters = "áàâãäéèêëíìîïóòôõöúùûüçñ"

// NormalizeDescription lowercases, keeps [a-z0-9], spaces and accentedLetters,
// and collapses whitespace. Every duplicate comparison goes through it.
func NormalizeDescription(description string) string {
	lower := strings.ToLower(norm.NFC.String(description))

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case strings.ContainsRune(accentedLetters, r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FoldText lowercases and strips diacritics ("Descrição" becomes "descricao").
// It is meant for matching labels and bank names, not for duplicate keys.
func FoldText(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.TrimSpace(strings.ToLower(folded))
}

// CollapseSpaces trims and collapses runs of whitespace.
func CollapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
