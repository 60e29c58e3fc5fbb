package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"metric-agent/catalog"
	"metric-agent/formula"
	"metric-agent/matcher"
	"metric-agent/models"
	"metric-agent/observability"
	"metric-agent/repository"
	"metric-agent/services"
)

// ErrNoFormula marks a metric that has neither a stored value nor a formula
// definition.
var ErrNoFormula = errors.New("metric has no formula")

// DefaultMaxDepth bounds recursive formula resolution: a base metric may
// itself be formula-derived, but only this many levels deep.
const DefaultMaxDepth = 3

// Resolver fills a query's slots, canonicalizes them against the catalog, and
// answers it by direct fetch or formula evaluation.
type Resolver struct {
	facts    repository.FactStore
	formulas repository.FormulaSource
	catalog  *catalog.Catalog
	parser   services.NLParser // nil when no model is configured
	times    *TimeResolver
	maxDepth int
}

// New creates a Resolver. parser may be nil; resolution then relies on
// explicit fields and the pattern heuristics alone.
func New(facts repository.FactStore, formulas repository.FormulaSource, cat *catalog.Catalog, parser services.NLParser, times *TimeResolver, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{
		facts:    facts,
		formulas: formulas,
		catalog:  cat,
		parser:   parser,
		times:    times,
		maxDepth: maxDepth,
	}
}

// Resolve answers one metric query. Slot precedence is fixed: explicit
// request fields beat the NL parse, which beats the pattern heuristics.
// Unresolvable slots produce a clarification response, never a guess.
func (r *Resolver) Resolve(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	metrics := observability.GetMetrics()
	resolutionID := uuid.New().String()

	snap, err := r.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog unavailable: %w", err)
	}

	metricRaw := strings.TrimSpace(req.Metric)
	companyRaw := strings.TrimSpace(req.Company)
	year := req.Year
	quarter := 0
	if req.Quarter.Valid() {
		quarter = int(req.Quarter)
	}

	// Only reach for the model when a slot is missing.
	needParse := metricRaw == "" || companyRaw == "" || year == 0 || quarter == 0
	var guess *models.ParsedGuess
	if needParse && req.Question != "" {
		guess = r.parse(ctx, snap, req.Question)
	}
	heur := ParseQuestion(snap, req.Question)

	metricRaw = firstNonEmpty(metricRaw, guessMetric(guess), heur.Metric)
	companyRaw = firstNonEmpty(companyRaw, guessCompany(guess), heur.Company)
	year = firstNonZero(year, guessYear(guess), heur.Year)
	quarter = firstNonZero(quarter, guessQuarter(guess), heur.Quarter)

	canonCompany := canonicalCompany(snap, companyRaw)
	canonMetric := canonicalMetric(snap, strings.TrimSpace(metricRaw+" "+req.Question))

	// Second model pass when canonicalization still failed on either name.
	if req.Question != "" && (canonMetric == "" || canonCompany == "") {
		if second := r.parse(ctx, snap, req.Question); second != nil {
			metricRaw = firstNonEmpty(metricRaw, second.Metric)
			companyRaw = firstNonEmpty(companyRaw, second.Company)
			year = firstNonZero(year, second.Year)
			quarter = firstNonZero(quarter, second.Quarter)
			canonCompany = canonicalCompany(snap, companyRaw)
			canonMetric = canonicalMetric(snap, firstNonEmpty(metricRaw, req.Question))
		}
	}

	if (year == 0 || quarter == 0) && HasRelativeTime(req.Question) {
		y, q, ok, err := r.times.Resolve(ctx, req.Question, canonCompany, canonMetric)
		if err != nil {
			return nil, err
		}
		if ok {
			year = firstNonZero(year, y)
			quarter = firstNonZero(quarter, q)
		}
	}

	// Canonicalize once more, keeping raw text when the catalog has no hit so
	// the fact store can still match rows the catalog does not know about.
	if companyRaw != "" {
		canonCompany = firstNonEmpty(canonicalCompany(snap, companyRaw), companyRaw)
	}
	if metricRaw != "" {
		canonMetric = firstNonEmpty(canonicalMetric(snap, metricRaw), metricRaw)
	}

	var missing []string
	if canonMetric == "" {
		missing = append(missing, "metric")
	}
	if canonCompany == "" {
		missing = append(missing, "company")
	}
	if year == 0 {
		missing = append(missing, "year")
	}
	if quarter == 0 {
		missing = append(missing, "quarter")
	}
	if len(missing) > 0 {
		slotErr := &MissingSlotError{Slots: missing}
		metrics.RecordQuery("clarification", time.Since(start))
		return &models.QueryResponse{
			ResolutionID:      resolutionID,
			NeedClarification: true,
			Ask:               slotErr.Ask(),
			Missing:           missing,
		}, nil
	}

	scenario := req.Scenario
	if scenario == "" {
		scenario = models.ScenarioActual
	}
	resolved := &models.ResolvedQuery{
		MetricCanonical: canonMetric,
		CompanyName:     canonCompany,
		Year:            year,
		Quarter:         fmt.Sprintf("Q%d", quarter),
		Scenario:        scenario,
	}
	meta, _ := snap.MetricMeta(canonMetric)

	observability.Info("query resolved",
		"resolution_id", resolutionID,
		"company", canonCompany,
		"metric", canonMetric,
		"period", fmt.Sprintf("%dQ%d", year, quarter))

	// Direct fetch first, carrying the indicator card.
	row, err := r.facts.FetchMetricRow(ctx, canonCompany, canonMetric, year, quarter)
	if err != nil {
		metrics.RecordQueryError("store_error")
		return nil, err
	}
	if row != nil {
		metrics.RecordQuery("direct", time.Since(start))
		return &models.QueryResponse{
			ResolutionID: resolutionID,
			Resolved:     resolved,
			Value: &models.ValueResult{
				MetricName:  canonMetric,
				MetricValue: row.Value,
				Unit:        meta.Unit,
			},
			IndicatorCard: models.BuildIndicatorCard(row, meta.Unit),
			Message:       "直取完成",
		}, nil
	}

	// No stored value: try the formula path.
	f, err := r.formulas.GetFormula(ctx, canonMetric)
	if err != nil {
		metrics.RecordQueryError("store_error")
		return nil, err
	}
	if f == nil {
		metrics.RecordQueryError("formula_missing")
		return &models.QueryResponse{
			ResolutionID:      resolutionID,
			NeedClarification: true,
			Ask: fmt.Sprintf("未查到『%s』的数值，且无该指标的计算公式。请先上传 %s 的公式（variables/compute）后再试。",
				canonMetric, canonMetric),
			Resolved: resolved,
			Message:  "未找到直取值且缺少公式",
		}, nil
	}

	scope := formula.Scope{Company: canonCompany, Year: year, Quarter: quarter}
	memo := make(map[memoKey]memoEntry)
	eval, err := formula.EvaluateGraph(f, func(name string) (float64, bool, error) {
		return r.fetchOrCompute(ctx, canonCompany, year, quarter, name, 1, memo)
	}, scope)

	switch {
	case err == nil:
		expression, substituted, table := formula.Explain(canonMetric, f, eval)
		metrics.RecordQuery("formula", time.Since(start))
		return &models.QueryResponse{
			ResolutionID: resolutionID,
			Resolved:     resolved,
			Formula: &models.FormulaResult{
				Expression:  expression,
				Substituted: substituted,
				Result:      eval.Result,
				ResultStr:   models.FormatNumber(eval.Result),
				Table:       table,
			},
			Message: "公式计算完成",
		}, nil

	case isMissingBase(err):
		var mbe *formula.MissingBaseMetricError
		errors.As(err, &mbe)
		metrics.RecordQueryError("missing_base_metric")
		return &models.QueryResponse{
			ResolutionID:      resolutionID,
			NeedClarification: true,
			Ask: fmt.Sprintf("计算『%s』需要的基础指标缺失：%s。请补充相关基础指标或完善公式后再试。",
				canonMetric, strings.Join(mbe.Missing, "、")),
			Resolved: resolved,
			Message:  "公式所需基础指标缺失",
		}, nil

	case isFormulaFailure(err):
		metrics.RecordQueryError("formula_error")
		return &models.QueryResponse{
			ResolutionID:      resolutionID,
			NeedClarification: true,
			Ask:               fmt.Sprintf("『%s』公式解析失败：%v。请检查公式定义。", canonMetric, err),
			Resolved:          resolved,
			Message:           "公式解析失败",
		}, nil

	default:
		metrics.RecordQueryError("store_error")
		return nil, err
	}
}

type memoKey struct {
	company string
	metric  string
	year    int
	quarter int
}

type memoEntry struct {
	value float64
	found bool
}

// fetchOrCompute resolves one metric's value: stored value first, then its
// formula recursively. Misses memoize too, so shared missing bases are not
// re-queried within one resolution.
func (r *Resolver) fetchOrCompute(ctx context.Context, company string, year, quarter int, metric string, depth int, memo map[memoKey]memoEntry) (float64, bool, error) {
	if depth > r.maxDepth {
		return 0, false, nil
	}
	observability.GetMetrics().RecordFormulaDepth(depth)

	key := memoKey{company: company, metric: metric, year: year, quarter: quarter}
	if e, ok := memo[key]; ok {
		return e.value, e.found, nil
	}

	v, ok, err := r.facts.FetchMetricValue(ctx, company, metric, year, quarter)
	if err != nil {
		return 0, false, err
	}
	if ok {
		memo[key] = memoEntry{value: v, found: true}
		return v, true, nil
	}

	f, err := r.formulas.GetFormula(ctx, metric)
	if err != nil {
		return 0, false, err
	}
	if f == nil {
		memo[key] = memoEntry{}
		return 0, false, nil
	}

	scope := formula.Scope{Company: company, Year: year, Quarter: quarter}
	eval, err := formula.EvaluateGraph(f, func(name string) (float64, bool, error) {
		return r.fetchOrCompute(ctx, company, year, quarter, name, depth+1, memo)
	}, scope)
	if err != nil {
		if isMissingBase(err) || isFormulaFailure(err) {
			memo[key] = memoEntry{}
			return 0, false, nil
		}
		return 0, false, err
	}

	memo[key] = memoEntry{value: eval.Result, found: true}
	return eval.Result, true, nil
}

// parse runs the NL collaborator, degrading to nil on any failure so the
// pattern heuristics still get their turn.
func (r *Resolver) parse(ctx context.Context, snap *catalog.Snapshot, question string) *models.ParsedGuess {
	if r.parser == nil {
		return nil
	}

	payload := services.CatalogPayload{
		Now:      r.times.Today(),
		Question: question,
	}
	if latest, err := r.times.LatestPeriod(ctx, "", ""); err == nil {
		payload.HintLatest = latest
	}
	for _, name := range snap.CompanyNames() {
		meta, _ := snap.CompanyMeta(name)
		payload.Companies = append(payload.Companies, meta)
	}
	for _, name := range snap.MetricNames() {
		meta, _ := snap.MetricMeta(name)
		payload.Metrics = append(payload.Metrics, meta)
	}

	guess, err := r.parser.ParseQuery(ctx, payload)
	if err != nil {
		observability.Warn("NL parse failed, falling back to heuristics", "error", err)
		return nil
	}
	return guess
}

func canonicalCompany(snap *catalog.Snapshot, raw string) string {
	if raw == "" {
		return ""
	}
	name, _ := matcher.MatchCompany(snap, raw)
	return name
}

func canonicalMetric(snap *catalog.Snapshot, text string) string {
	if text == "" {
		return ""
	}
	name, _ := matcher.MatchMetric(snap, text)
	return name
}

func isMissingBase(err error) bool {
	var m *formula.MissingBaseMetricError
	return errors.As(err, &m)
}

func isFormulaFailure(err error) bool {
	var (
		stuck   *formula.UnresolvableFormulaError
		unknown *formula.UnknownVariableError
	)
	return errors.As(err, &stuck) ||
		errors.As(err, &unknown) ||
		errors.Is(err, formula.ErrDivisionByZero) ||
		errors.Is(err, formula.ErrEmptyGraph)
}

func guessMetric(g *models.ParsedGuess) string {
	if g == nil {
		return ""
	}
	return g.Metric
}

func guessCompany(g *models.ParsedGuess) string {
	if g == nil {
		return ""
	}
	return g.Company
}

func guessYear(g *models.ParsedGuess) int {
	if g == nil {
		return 0
	}
	return g.Year
}

func guessQuarter(g *models.ParsedGuess) int {
	if g == nil {
		return 0
	}
	return g.Quarter
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
