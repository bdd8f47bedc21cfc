package normalize

import (
	"regexp"
	"strings"
)

// wsRe matches any run of whitespace, including the non-breaking and
// narrow non-breaking spaces common in French-locale price text.
var wsRe = regexp.MustCompile(`[\s\x{00A0}\x{202F}]+`)

// skuPrefixRe matches labelled product codes: "Code: 123456", "SKU : AB-99".
var skuPrefixRe = regexp.MustCompile(`(?i)\b(?:code|sku)\s*:\s*#?([0-9A-Za-z][0-9A-Za-z_-]*)`)

// bareSKURe matches a standalone token of 3 or more digits.
var bareSKURe = regexp.MustCompile(`\b(\d{3,})\b`)

// nonSlugRe matches any run of characters that cannot appear in a URL slug.
var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// CleanText collapses all whitespace runs to a single space and trims
// the result. Listing markup mixes tabs, newlines, and non-breaking
// spaces freely; every text field passes through here before parsing.
func CleanText(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// DeriveSKU extracts a product code from free text when the listing
// exposes no structured value. Candidates are scanned in order; the
// first match wins.
//
// Recognized forms:
//  1. A labelled code: "Code: 123456" or "SKU: AB-99" (case-insensitive,
//     optional space before the colon).
//  2. A bare token of 3+ digits.
//
// Returns "" when no candidate contains either form.
func DeriveSKU(texts ...string) string {
	for _, t := range texts {
		cleaned := CleanText(t)
		if cleaned == "" {
			continue
		}
		if m := skuPrefixRe.FindStringSubmatch(cleaned); m != nil {
			return m[1]
		}
	}
	for _, t := range texts {
		cleaned := CleanText(t)
		if cleaned == "" {
			continue
		}
		if m := bareSKURe.FindStringSubmatch(cleaned); m != nil {
			return m[1]
		}
	}
	return ""
}

// Slug lowercases s and reduces it to hyphen-separated alphanumeric
// runs, suitable for a deterministic URL fragment. Returns "item" for
// input with no usable characters so callers never build an empty path.
func Slug(s string) string {
	s = strings.ToLower(CleanText(s))
	s = nonSlugRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "item"
	}
	return s
}
