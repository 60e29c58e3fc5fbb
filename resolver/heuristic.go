package resolver

import (
	"regexp"
	"strconv"

	"metric-agent/catalog"
	"metric-agent/matcher"
	"metric-agent/models"
)

var (
	yearRE    = regexp.MustCompile(`(20\d{2})`)
	quarterRE = regexp.MustCompile(`(?i)(?:^|[^A-Za-z])Q([1-4])|第([一二三四1234])季`)
	companyRE = regexp.MustCompile(`([\x{4e00}-\x{9fa5}A-Za-z0-9]+?(?:集团公司|港口公司|金融公司|地产公司|公司|集团))`)
)

var cnDigits = map[string]int{"一": 1, "二": 2, "三": 3, "四": 4}

// ParseQuestion extracts slots from free text with plain pattern matching.
// It is the last-resort parser when the NL collaborator is unavailable or
// fails, and its guesses rank below both explicit fields and the model's.
func ParseQuestion(snap *catalog.Snapshot, question string) models.ParsedGuess {
	var out models.ParsedGuess
	if question == "" {
		return out
	}

	if m := yearRE.FindStringSubmatch(question); m != nil {
		out.Year, _ = strconv.Atoi(m[1])
	}

	if m := quarterRE.FindStringSubmatch(question); m != nil {
		digit := m[1]
		if digit == "" {
			digit = m[2]
		}
		if n, ok := cnDigits[digit]; ok {
			out.Quarter = n
		} else if n, err := strconv.Atoi(digit); err == nil && n >= 1 && n <= 4 {
			out.Quarter = n
		}
	}

	if m := companyRE.FindStringSubmatch(question); m != nil {
		out.Company = m[1]
	}

	if snap != nil {
		if metric, ok := matcher.MatchMetric(snap, question); ok {
			out.Metric = metric
		}
	}

	return out
}
