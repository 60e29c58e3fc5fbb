// Package resolver turns partially-specified metric questions into concrete
// answers: it fills missing slots, canonicalizes names, and fetches or
// computes the value.
package resolver

import (
	"context"
	"regexp"
	"strings"
	"time"

	"metric-agent/models"
	"metric-agent/repository"
)

var relativeWords = []string{
	"最近", "近期", "上季度", "上一季", "上季", "本季度", "本季",
	"今年", "去年同期", "去年同季", "年初",
}

var recentQuartersRE = regexp.MustCompile(`近\s*\d+\s*季`)

// HasRelativeTime reports whether the text contains a relative time phrase
// the TimeResolver can ground.
func HasRelativeTime(text string) bool {
	if text == "" {
		return false
	}
	for _, w := range relativeWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return recentQuartersRE.MatchString(text)
}

// TimeResolver grounds relative time phrases against the fact store, scoped
// as tightly as the query allows.
type TimeResolver struct {
	store repository.FactStore
	loc   *time.Location
	now   func() time.Time // injectable for tests
}

// NewTimeResolver creates a TimeResolver using the given IANA timezone for
// calendar-relative phrases. An unloadable zone falls back to UTC.
func NewTimeResolver(store repository.FactStore, timezone string) *TimeResolver {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &TimeResolver{
		store: store,
		loc:   loc,
		now:   time.Now,
	}
}

// Today returns the current date in the resolver's timezone, formatted for
// the NL parse payload.
func (r *TimeResolver) Today() string {
	return r.now().In(r.loc).Format("2006-01-02")
}

// LatestPeriod returns the most recent period with data, trying
// company+metric first, then company alone, then the whole store.
func (r *TimeResolver) LatestPeriod(ctx context.Context, company, metric string) (*models.Period, error) {
	scopes := [][2]string{
		{company, metric},
		{company, ""},
		{"", ""},
	}
	for _, scope := range scopes {
		p, err := r.store.LatestPeriod(ctx, scope[0], scope[1])
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}

// Resolve grounds a relative time phrase in the question to a concrete
// (year, quarter). ok=false means no phrase matched or no fallback period
// exists; callers surface a clarification rather than guessing.
func (r *TimeResolver) Resolve(ctx context.Context, question, company, metric string) (year, quarter int, ok bool, err error) {
	latest, err := r.LatestPeriod(ctx, company, metric)
	if err != nil {
		return 0, 0, false, err
	}
	if latest == nil {
		return 0, 0, false, nil
	}
	y0, q0 := latest.Year, latest.Quarter

	t := question
	switch {
	case containsAny(t, "最近", "近期"):
		return y0, q0, true, nil

	case containsAny(t, "上季度", "上一季", "上季"):
		y, q := models.PrevQuarter(y0, q0)
		return y, q, true, nil

	case strings.Contains(t, "今年"):
		y := r.now().In(r.loc).Year()
		q, found, err := r.store.LatestQuarterInYear(ctx, y, company, metric)
		if err != nil {
			return 0, 0, false, err
		}
		if found {
			return y, q, true, nil
		}
		return y0, q0, true, nil

	case containsAny(t, "本季度", "本季"):
		now := r.now().In(r.loc)
		y, q := now.Year(), (int(now.Month())-1)/3+1
		exists, err := r.store.PeriodExists(ctx, y, q, company, metric)
		if err != nil {
			return 0, 0, false, err
		}
		if exists {
			return y, q, true, nil
		}
		return y0, q0, true, nil

	case containsAny(t, "去年同期", "去年同季"):
		exists, err := r.store.PeriodExists(ctx, y0-1, q0, company, metric)
		if err != nil {
			return 0, 0, false, err
		}
		if exists {
			return y0 - 1, q0, true, nil
		}
		return y0, q0, true, nil

	case strings.Contains(t, "年初"):
		exists, err := r.store.PeriodExists(ctx, y0, 1, company, metric)
		if err != nil {
			return 0, 0, false, err
		}
		if exists {
			return y0, 1, true, nil
		}
		q, found, err := r.store.LatestQuarterInYear(ctx, y0, company, metric)
		if err != nil {
			return 0, 0, false, err
		}
		if found {
			return y0, q, true, nil
		}
		return y0, q0, true, nil

	case recentQuartersRE.MatchString(t):
		// Single-period lookups ground "last N quarters" to the most recent one.
		return y0, q0, true, nil
	}

	return 0, 0, false, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
