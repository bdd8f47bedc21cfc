package normalize

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// numberRe matches a digit run with optional . or , separators,
// e.g. "3", "3,49", "1.299,95".
var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// unitPriceRe matches "<number><currency>? (/|per) <label>", e.g.
// "1,33$/100g", "0,66 $ / 100 ml", "2.50 per lb". The currency mark is
// optional and the separator keyword is matched case-insensitively.
var unitPriceRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)*)\s*(?:[$€£]|CAD|USD)?\s*(?:/|\bper\b)\s*(.+)`)

// ParseNumber extracts a numeric value from raw price text.
//
// The source locale writes prices as "3,49 $" with a comma decimal
// separator and sometimes a non-breaking space as a thousands group,
// but mixed forms like "1,299.99" show up too. Rules:
//  1. Whitespace (including non-breaking spaces) is removed so grouped
//     digits rejoin before matching.
//  2. The first digit run wins; currency symbols and surrounding text
//     never participate.
//  3. The rightmost . or , inside the run is the decimal point; any
//     earlier separator is a grouping mark and is dropped.
//
// Returns nil when the text holds no digits or the value is not finite.
func ParseNumber(text string) *float64 {
	s := wsRe.ReplaceAllString(text, "")
	if s == "" {
		return nil
	}
	m := numberRe.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(decimalize(m), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// decimalize rewrites a matched digit run into strconv form: the
// rightmost separator becomes ".", all others are removed.
func decimalize(m string) string {
	last := strings.LastIndexAny(m, ".,")
	if last < 0 {
		return m
	}
	var b strings.Builder
	b.Grow(len(m))
	for i := 0; i < len(m); i++ {
		switch {
		case m[i] >= '0' && m[i] <= '9':
			b.WriteByte(m[i])
		case i == last:
			b.WriteByte('.')
		}
	}
	return b.String()
}

// ParsePriceCandidates parses every candidate text and splits the
// results into a sale/regular pair: the minimum is the sale price, the
// maximum is the regular price when more than one distinct value
// exists. Zero parseable candidates yield (nil, nil).
func ParsePriceCandidates(texts []string) (sale, regular *float64) {
	var values []float64
	for _, t := range texts {
		if v := ParseNumber(t); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	sort.Float64s(values)
	lo, hi := values[0], values[len(values)-1]
	sale = &lo
	if hi != lo {
		regular = &hi
	}
	return sale, regular
}

// NormalizePricePair enforces the published price invariant:
//   - a lone sale price is promoted to the regular slot, and
//   - an equal pair collapses to the regular price only.
//
// A published record therefore never carries sale == regular.
func NormalizePricePair(sale, regular *float64) (*float64, *float64) {
	if regular == nil && sale != nil {
		return nil, sale
	}
	if sale != nil && regular != nil && *sale == *regular {
		return nil, regular
	}
	return sale, regular
}

// ParseUnitPrice parses a per-unit price fragment such as "1,33$/100g"
// into its numeric value and unit label ("100g"). The label is the
// cleaned text after the separator. No match yields (nil, "").
func ParseUnitPrice(text string) (*float64, string) {
	m := unitPriceRe.FindStringSubmatch(CleanText(text))
	if m == nil {
		return nil, ""
	}
	v, err := strconv.ParseFloat(decimalize(m[1]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, ""
	}
	label := CleanText(m[2])
	if label == "" {
		return nil, ""
	}
	return &v, label
}
