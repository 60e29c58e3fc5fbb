// Package matcher scores free text against catalog entries to pick the best
// canonical metric or company name.
package matcher

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"metric-agent/catalog"
)

// Growth vocabulary. Only strong growth words count; a bare 率 suffix does
// not mark a metric as growth-flavored.
var growthKeywords = []string{"增长率", "同比", "环比", "增速", "growth rate", "yoy", "qoq"}

const (
	noMatch          = -1 << 30
	growthMismatch   = -1000 // candidate is growth-flavored, query is not
	growthUnderreach = -20   // query asks for growth, candidate is not growth-flavored
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Normalize lowercases and strips all whitespace so containment checks ignore
// spacing and case differences.
func Normalize(s string) string {
	return strings.ToLower(whitespaceRE.ReplaceAllString(s, ""))
}

func hasGrowthWord(s string) bool {
	ls := strings.ToLower(s)
	for _, kw := range growthKeywords {
		if strings.Contains(ls, kw) {
			return true
		}
	}
	return false
}

// isWordRune reports whether r extends a word for boundary purposes: ASCII
// alphanumerics, underscore, and CJK ideographs all glue onto a match.
func isWordRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '_':
		return true
	case r >= 0x4e00 && r <= 0x9fff:
		return true
	}
	return false
}

// appearsAsWord reports whether needle occurs in haystack with non-word runes
// (or string edges) on both sides. RE2 has no lookbehind, so the boundary
// check walks the neighboring runes directly.
func appearsAsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for from := 0; ; {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)

		leftOK := start == 0
		if !leftOK {
			r, _ := utf8.DecodeLastRuneInString(haystack[:start])
			leftOK = !isWordRune(r)
		}
		rightOK := end == len(haystack)
		if !rightOK {
			r, _ := utf8.DecodeRuneInString(haystack[end:])
			rightOK = !isWordRune(r)
		}
		if leftOK && rightOK {
			return true
		}

		from = start + len(needle)
		if from >= len(haystack) {
			return false
		}
	}
}

// MatchMetric returns the canonical metric name best matching the query text.
//
// Scoring: for each candidate, the best containment hit across its canonical
// name and aliases counts rune-length * 10, bumped to * 12 when the alias
// appears as a whole word in the original query. A growth-flavored candidate
// is effectively disqualified unless the query itself uses growth vocabulary;
// the reverse mismatch costs only a small penalty. Ties keep the first
// candidate seen in catalog order.
func MatchMetric(snap *catalog.Snapshot, query string) (string, bool) {
	qn := Normalize(query)
	if qn == "" {
		return "", false
	}
	queryGrowth := hasGrowthWord(query)

	bestName, bestScore := "", noMatch
	for _, canonical := range snap.MetricNames() {
		meta, _ := snap.MetricMeta(canonical)
		names := append([]string{canonical}, meta.Aliases...)

		candidateGrowth := false
		for _, n := range names {
			if hasGrowthWord(n) {
				candidateGrowth = true
				break
			}
		}

		base := noMatch
		for _, n := range names {
			ns := Normalize(n)
			if ns == "" {
				continue
			}
			if !strings.Contains(qn, ns) && !strings.Contains(ns, qn) {
				continue
			}
			score := utf8.RuneCountInString(ns) * 10
			if appearsAsWord(query, n) {
				score = utf8.RuneCountInString(ns) * 12
			}
			if score > base {
				base = score
			}
		}
		if base < 0 {
			continue
		}

		penalty := 0
		if candidateGrowth && !queryGrowth {
			penalty = growthMismatch
		} else if queryGrowth && !candidateGrowth {
			penalty = growthUnderreach
		}

		if score := base + penalty; score > bestScore {
			bestName, bestScore = canonical, score
		}
	}

	if bestScore <= noMatch {
		return "", false
	}
	return bestName, true
}

// MatchCompany returns the canonical company name best matching the query
// text. Companies match on bidirectional containment over the display name,
// catalog aliases, and loose suffix variants, preferring the longest hit.
func MatchCompany(snap *catalog.Snapshot, query string) (string, bool) {
	t := Normalize(query)
	if t == "" {
		return "", false
	}

	bestName, bestLen := "", 0
	for _, canonical := range snap.CompanyNames() {
		meta, _ := snap.CompanyMeta(canonical)

		expanded := make(map[string]bool)
		for _, n := range append([]string{canonical}, meta.Aliases...) {
			for _, v := range catalog.CompanyVariants(n) {
				expanded[v] = true
			}
		}

		for n := range expanded {
			ns := Normalize(n)
			if ns == "" {
				continue
			}
			if strings.Contains(t, ns) || strings.Contains(ns, t) {
				if l := utf8.RuneCountInString(ns); l > bestLen {
					bestName, bestLen = canonical, l
				}
			}
		}
	}

	return bestName, bestName != ""
}
