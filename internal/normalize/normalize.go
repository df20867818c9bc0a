// Package normalize provides pure functions that convert raw field values
// from source files into canonical forms: dates, identifiers, enums, phone
// numbers, and decimal amounts.
//
// Functions here never log and never touch I/O; callers decide how to treat
// a value that fails to normalize.
package normalize

import (
	"strings"
	"time"
	"unicode"
)

// Date layouts tried in order. ISO first, then US month-first numeric forms,
// then day-first dash form, then long and abbreviated month names.
//
// Layout order is the documented tie-break for ambiguous input: "01/02/2024"
// parses month-first (US policy), while dash-separated "05-03-2024" parses
// day-first because 02-01-2006 is the only dash-separated numeric layout.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"2006/01/02",
	"January 2 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
}

// Date parses raw against the fixed layout list and returns the first
// successful parse. Returns ok=false when no layout matches; the caller
// should treat the field as absent rather than fail the record.
//
// Idempotent: the ISO rendering of any accepted date parses back to the
// same calendar date.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Identifier strips whitespace and punctuation and upper-cases the rest,
// producing a comparison signature. "NY-78901", "NY 78901" and "ny78901"
// all map to "NY78901". For matching only, never for display.
func Identifier(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}

	return b.String()
}

// Enum matches raw case-insensitively against a fixed vocabulary and
// returns the canonical (allowed-list) spelling. Unmatched values return
// ok=false so the caller can report them; never silently defaulted.
func Enum(raw string, allowed []string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	// Values like "Flat Fee" arrive with spaces where the vocabulary
	// uses underscores.
	folded := strings.ToLower(strings.ReplaceAll(s, " ", "_"))

	for _, v := range allowed {
		if strings.ToLower(v) == folded {
			return v, true
		}
	}

	return "", false
}

// Phone reduces a phone number to digits, preserving a leading +.
// "(555) 123-4567" becomes "5551234567".
func Phone(raw string) string {
	s := strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(s))

	for i, r := range s {
		if i == 0 && r == '+' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// Decimal validates a numeric string, stripping currency symbols and
// thousands separators, and returns a canonical decimal string suitable
// for a NUMERIC column. Returns ok=false for non-numeric input.
func Decimal(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return "", false
	}

	start := 0
	if s[0] == '+' || s[0] == '-' {
		start = 1
	}

	digits, dots := 0, 0
	for _, r := range s[start:] {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return "", false
		}
	}

	if digits == 0 || dots > 1 {
		return "", false
	}

	return s, true
}
