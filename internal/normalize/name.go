package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Corporate suffixes stripped during name normalization so that
// "GrayStone Enterprises LLC" and "GRAYSTONE ENTERPRISES" share a signature.
var nameSuffixes = []string{
	"llc", "llp", "inc", "corp", "corporation", "ltd", "co", "pc", "pllc",
	"pa", "esq", "jr", "sr", "ii", "iii", "iv",
}

// Name produces the canonical name signature used for fuzzy matching:
// lower-case, diacritics stripped, punctuation removed, corporate and
// personal suffixes dropped, whitespace collapsed, "Last, First" folded
// to "first last". For matching only, never for display.
func Name(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return s
	}

	s = stripDiacritics(s)

	// "Last, First" folding. A part after the comma that is only suffixes
	// ("Meridian Holdings, Ltd.") is dropped, not folded.
	var tokens []string
	if left, right, found := strings.Cut(s, ","); found {
		leftTokens := cleanTokens(left)
		rightTokens := cleanTokens(right)
		if len(rightTokens) > 0 && !allSuffixes(rightTokens) {
			tokens = append(rightTokens, leftTokens...)
		} else {
			tokens = leftTokens
		}
	} else {
		tokens = cleanTokens(s)
	}

	for len(tokens) > 1 && isSuffix(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}

// cleanTokens removes punctuation and splits on whitespace.
func cleanTokens(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func allSuffixes(tokens []string) bool {
	for _, t := range tokens {
		if !isSuffix(t) {
			return false
		}
	}
	return true
}

// NameTokens returns the token set of a name signature, for overlap scoring.
func NameTokens(raw string) []string {
	return strings.Fields(Name(raw))
}

func isSuffix(token string) bool {
	for _, s := range nameSuffixes {
		if token == s {
			return true
		}
	}
	return false
}

// stripDiacritics decomposes to NFD and drops combining marks, so that
// "Muñoz" and "Munoz" normalize identically.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
