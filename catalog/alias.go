package catalog

import (
	"encoding/json"
	"regexp"
	"strings"
)

var aliasSplitRE = regexp.MustCompile(`[,\|/;；，、\s]+`)

// ParseAliasField parses the aliases column, which upstream loaders have
// written in three shapes over time: a JSON array, a Postgres array literal
// ({a,b,c}), or a plain delimited string. Unparseable input yields an empty
// list rather than an error so one bad row cannot poison a catalog reload.
func ParseAliasField(raw *string) []string {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil
	}

	if (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) {
		normalized := strings.NewReplacer("{", "[", "}", "]").Replace(s)
		var arr []any
		if err := json.Unmarshal([]byte(normalized), &arr); err == nil {
			out := make([]string, 0, len(arr))
			for _, v := range arr {
				if str, ok := v.(string); ok {
					if t := strings.TrimSpace(str); t != "" {
						out = append(out, t)
					}
				}
			}
			return out
		}
	}

	// Fallback for common delimiters
	s = strings.Trim(s, "{}")
	parts := aliasSplitRE.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CompanyVariants generates loose variants of a Chinese company name so
// queries that drop organizational suffixes still match: 集团公司 collapses
// to 集团, and a trailing 公司 may be omitted entirely.
func CompanyVariants(name string) []string {
	if name == "" {
		return nil
	}
	variants := []string{name}
	seen := map[string]bool{name: true}

	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	add(strings.ReplaceAll(name, "集团公司", "集团"))
	if strings.HasSuffix(name, "公司") {
		add(strings.TrimSuffix(name, "公司"))
	}
	return variants
}

// dedupe keeps first occurrence, preserving order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if it != "" && !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
