package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics ("Miércoles" -> "miercoles", "Sábado" -> "sabado").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// NormalizePhrase folds s, drops punctuation and symbols, and collapses whitespace.
// "¡Hola, buenos días!" becomes "hola buenos dias".
func NormalizePhrase(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CompactKeyword folds s and keeps only letters and digits, so "Pausar membresía" becomes
// "pausarmembresia".
func CompactKeyword(s string) string {
	return strings.ReplaceAll(NormalizePhrase(s), " ", "")
}

// IsBlank reports whether s has no visible characters, treating zero-width spaces and the
// byte order mark as blank.
func IsBlank(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '\u200B', '\u200C', '\u200D', '\uFEFF':
			continue
		}
		return false
	}
	return true
}

// ChunkRunes splits s into consecutive pieces of at most size runes, preserving order.
func ChunkRunes(s string, size int) []string {
	if size <= 0 {
		return []string{s}
	}
	rs := []rune(s)
	if len(rs) <= size {
		return []string{s}
	}
	chunks := make([]string, 0, len(rs)/size+1)
	for start := 0; start < len(rs); start += size {
		end := start + size
		if end > len(rs) {
			end = len(rs)
		}
		chunks = append(chunks, string(rs[start:end]))
	}
	return chunks
}
