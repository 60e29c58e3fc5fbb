package models

// MetricFact is one stored fact row keyed by (company, metric, year, quarter).
// Comparison baselines are optional; nil means the upstream ingestion did not
// supply one, and deltas derived from them stay nil rather than being guessed.
type MetricFact struct {
	CompanyName     string   `json:"company_name"`
	MetricName      string   `json:"metric_name"`
	Year            int      `json:"year"`
	Quarter         int      `json:"quarter"`
	Value           float64  `json:"metric_value"`
	BaselineTarget  *float64 `json:"baseline_target,omitempty"`
	LastYearValue   *float64 `json:"last_year_value,omitempty"`
	LastPeriodValue *float64 `json:"last_period_value,omitempty"`
	Source          string   `json:"source,omitempty"`
}
