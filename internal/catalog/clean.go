package catalog

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	markupTagRe  = regexp.MustCompile(`<[^<>]*>`)
	htmlEntityRe = regexp.MustCompile(`&#?[a-zA-Z0-9]{2,8};`)
)

// diacriticFolder strips combining marks so "Piña" and "Pina" compare
// equal after normalization.
var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanName strips markup, HTML entities, and control characters from
// a scraped listing name and collapses whitespace.
func CleanName(raw string) string {
	cleaned := markupTagRe.ReplaceAllString(raw, " ")
	cleaned = html.UnescapeString(cleaned)
	cleaned = htmlEntityRe.ReplaceAllString(cleaned, " ")

	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	return collapseSpaces(b.String())
}

// ContainsMarkup reports whether a raw name still carries markup,
// HTML entities, or control characters.
func ContainsMarkup(raw string) bool {
	if markupTagRe.MatchString(raw) || htmlEntityRe.MatchString(raw) {
		return true
	}
	for _, r := range raw {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// normalizeKey reduces a name or brand to a comparison key: lowercase,
// diacritics folded, punctuation collapsed to spaces.
func normalizeKey(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	if lowered == "" {
		return ""
	}

	if folded, _, err := transform.String(diacriticFolder, lowered); err == nil {
		lowered = folded
	}

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(' ')
	}
	return collapseSpaces(b.String())
}

func collapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
