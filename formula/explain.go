package formula

import (
	"sort"
	"strings"
	"unicode/utf8"

	"metric-agent/models"
)

// Explain renders a human-readable account of an evaluation: the formula with
// variable keys replaced by metric display names, the same expression with
// values substituted in, and a per-variable value table.
func Explain(metricName string, f *models.Formula, eval *Evaluation) (expression, substituted string, table []models.TableRow) {
	rhs := f.Compute[len(f.Compute)-1].Expr

	// Longest key first so short keys never clobber longer ones they prefix.
	keys := make([]string, 0, len(f.Variables))
	for k := range f.Variables {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	rhsNamed := rhs
	for _, k := range keys {
		rhsNamed = replaceWord(rhsNamed, k, f.Variables[k])
	}
	rhsNamed = replaceWord(rhsNamed, eval.ResultVar, metricName)

	expression = metricName + " = " + rhsNamed

	nameToVal := make(map[string]float64, len(f.Variables))
	for _, k := range keys {
		if k == eval.ResultVar {
			continue
		}
		if v, ok := eval.Values[k]; ok {
			nameToVal[f.Variables[k]] = v
		}
	}

	names := make([]string, 0, len(nameToVal))
	for n := range nameToVal {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	substituted = rhsNamed
	for _, n := range names {
		substituted = strings.ReplaceAll(substituted, n, models.FormatNumber(nameToVal[n]))
	}

	for _, n := range names {
		table = append(table, models.TableRow{Name: n, Value: models.FormatNumber(nameToVal[n])})
	}

	return expression, substituted, table
}

// replaceWord substitutes whole-word occurrences of key. Boundaries are
// checked by hand: RE2's \b is ASCII-only, and variable keys are usually CJK.
func replaceWord(s, key, repl string) string {
	if key == "" {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], key)
		if j < 0 {
			b.WriteString(s[i:])
			break
		}
		start := i + j
		end := start + len(key)

		leftOK := start == 0
		if !leftOK {
			r, _ := utf8.DecodeLastRuneInString(s[:start])
			leftOK = !isWordRune(r)
		}
		rightOK := end == len(s)
		if !rightOK {
			r, _ := utf8.DecodeRuneInString(s[end:])
			rightOK = !isWordRune(r)
		}

		b.WriteString(s[i:start])
		if leftOK && rightOK {
			b.WriteString(repl)
		} else {
			b.WriteString(key)
		}
		i = end
	}
	return b.String()
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
