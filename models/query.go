package models

// ScenarioActual is the default data-versioning tag for fact lookups.
const ScenarioActual = "actual"

// QueryRequest is a resolve-metric-query request. Any field may be absent;
// free text in Question fills missing slots via NL parsing and heuristics.
// Explicit fields always win over parsed guesses.
type QueryRequest struct {
	Question string  `json:"question,omitempty"`
	Company  string  `json:"company,omitempty"`
	Metric   string  `json:"metric,omitempty"`
	Year     int     `json:"year,omitempty"`
	Quarter  Quarter `json:"quarter,omitempty"`
	Scenario string  `json:"scenario,omitempty"`
}

// ResolvedQuery is the fully canonicalized scope of one resolution.
type ResolvedQuery struct {
	MetricCanonical string `json:"metric_canonical"`
	CompanyName     string `json:"company_name"`
	Year            int    `json:"year"`
	Quarter         string `json:"quarter"` // "Q1".."Q4"
	Scenario        string `json:"scenario"`
}

// ValueResult is a direct-fetch result.
type ValueResult struct {
	MetricName  string  `json:"metric_name"`
	MetricValue float64 `json:"metric_value"`
	Unit        string  `json:"unit,omitempty"`
}

// TableRow is one row of a formula's variable table.
type TableRow struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormulaResult is a formula-derived result: the number plus the explained
// and substituted expression strings and the per-variable value table.
type FormulaResult struct {
	Expression  string     `json:"expression"`
	Substituted string     `json:"substituted"`
	Result      float64    `json:"result"`
	ResultStr   string     `json:"result_str"`
	Table       []TableRow `json:"table"`
}

// QueryResponse is the resolve operation's wire response. Exactly one of the
// three shapes is populated: a clarification (NeedClarification with Ask and
// Missing), a direct value (Value + IndicatorCard), or a formula result.
type QueryResponse struct {
	ResolutionID      string         `json:"resolution_id,omitempty"`
	NeedClarification bool           `json:"need_clarification"`
	Ask               string         `json:"ask,omitempty"`
	Missing           []string       `json:"missing,omitempty"`
	Resolved          *ResolvedQuery `json:"resolved,omitempty"`
	Value             *ValueResult   `json:"value,omitempty"`
	Formula           *FormulaResult `json:"formula,omitempty"`
	IndicatorCard     *IndicatorCard `json:"indicator_card,omitempty"`
	Message           string         `json:"message,omitempty"`
}

// ParsedGuess is the NL-parse collaborator's best-effort extraction. Its
// output is never trusted over explicit request fields.
type ParsedGuess struct {
	Company           string `json:"company,omitempty"`
	Metric            string `json:"metric,omitempty"`
	Year              int    `json:"year,omitempty"`
	Quarter           int    `json:"quarter,omitempty"`
	NeedClarification bool   `json:"need_clarification,omitempty"`
	Ask               string `json:"ask,omitempty"`
}

// ContributionRequest asks for a per-variable decomposition of a formula
// metric's change between two periods.
type ContributionRequest struct {
	Company     string  `json:"company"`
	Metric      string  `json:"metric"`
	BaseYear    int     `json:"base_year"`
	BaseQuarter Quarter `json:"base_quarter"`
	NewYear     int     `json:"new_year"`
	NewQuarter  Quarter `json:"new_quarter"`
}

// VariableImpact is one variable's estimated contribution: the expression
// re-evaluated with that single variable moved from its base-period value to
// its new-period value, all others held at base.
type VariableImpact struct {
	Variable       string   `json:"variable"`
	DisplayName    string   `json:"display_name,omitempty"`
	Base           *float64 `json:"base,omitempty"`
	New            *float64 `json:"new,omitempty"`
	ImpactEstimate *float64 `json:"impact_estimate"`
}

// ContributionResponse carries the decomposition. The per-variable estimates
// are a qualitative attribution and do not sum to TotalDelta for nonlinear
// expressions; Note documents that.
type ContributionResponse struct {
	Metric     string           `json:"metric"`
	Company    string           `json:"company"`
	BasePeriod string           `json:"base_period"`
	NewPeriod  string           `json:"new_period"`
	TotalDelta float64          `json:"total_delta"`
	Rows       []VariableImpact `json:"rows"`
	Note       string           `json:"note"`
}
