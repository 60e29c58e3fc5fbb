package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"metric-agent/catalog"
	"metric-agent/models"
	"metric-agent/services"
)

func sptr(s string) *string { return &s }
func bptr(b bool) *bool     { return &b }

type fakeCatalogSource struct{}

func (fakeCatalogSource) ListMetricCatalog(ctx context.Context) ([]models.MetricCatalogRow, error) {
	return []models.MetricCatalogRow{
		{CanonicalName: "净利润"},
		{CanonicalName: "净利率", IsDerived: bptr(true)},
		{CanonicalName: "净资产收益率", Aliases: sptr(`["ROE"]`), IsDerived: bptr(true)},
		{CanonicalName: "营业收入", Aliases: sptr(`["营收","收入"]`), Unit: sptr("亿元")},
	}, nil
}

func (fakeCatalogSource) ListCompanyCatalog(ctx context.Context) ([]models.CompanyCatalogRow, error) {
	return []models.CompanyCatalogRow{
		{DisplayName: "示例集团公司"},
	}, nil
}

type fakeStore struct {
	rows       map[string]*models.MetricFact
	latest     *models.Period
	valueCalls map[string]int
}

func factKey(company, metric string, year, quarter int) string {
	return fmt.Sprintf("%s|%s|%dQ%d", company, metric, year, quarter)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:       make(map[string]*models.MetricFact),
		valueCalls: make(map[string]int),
	}
}

func (s *fakeStore) put(company, metric string, year, quarter int, value float64) {
	s.rows[factKey(company, metric, year, quarter)] = &models.MetricFact{
		CompanyName: company,
		MetricName:  metric,
		Year:        year,
		Quarter:     quarter,
		Value:       value,
	}
}

func (s *fakeStore) FetchMetricValue(ctx context.Context, company, metric string, year, quarter int) (float64, bool, error) {
	key := factKey(company, metric, year, quarter)
	s.valueCalls[key]++
	if row, ok := s.rows[key]; ok {
		return row.Value, true, nil
	}
	return 0, false, nil
}

func (s *fakeStore) FetchMetricRow(ctx context.Context, company, metric string, year, quarter int) (*models.MetricFact, error) {
	return s.rows[factKey(company, metric, year, quarter)], nil
}

func (s *fakeStore) LatestPeriod(ctx context.Context, company, metric string) (*models.Period, error) {
	return s.latest, nil
}

func (s *fakeStore) LatestQuarterInYear(ctx context.Context, year int, company, metric string) (int, bool, error) {
	best := 0
	for _, row := range s.rows {
		if row.Year == year && row.Quarter > best {
			best = row.Quarter
		}
	}
	return best, best != 0, nil
}

func (s *fakeStore) PeriodExists(ctx context.Context, year, quarter int, company, metric string) (bool, error) {
	for _, row := range s.rows {
		if row.Year == year && row.Quarter == quarter {
			return true, nil
		}
	}
	return false, nil
}

type fakeFormulas struct {
	byMetric map[string]*models.Formula
}

func (f *fakeFormulas) GetFormula(ctx context.Context, metricName string) (*models.Formula, error) {
	return f.byMetric[metricName], nil
}

type fakeParser struct {
	guess *models.ParsedGuess
	err   error
	calls int
}

func (p *fakeParser) ParseQuery(ctx context.Context, payload services.CatalogPayload) (*models.ParsedGuess, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.guess, nil
}

func (p *fakeParser) Ping(ctx context.Context) error { return p.err }

func netMarginFormula() *models.Formula {
	return &models.Formula{
		ID:         1,
		MetricName: "净利率",
		Variables:  map[string]string{"净利润": "净利润", "营业收入": "营业收入"},
		Compute:    models.ComputeGraph{{Name: "净利率", Expr: "净利润 / 营业收入"}},
		Enabled:    true,
	}
}

func newTestResolver(t *testing.T, store *fakeStore, formulas *fakeFormulas, parser services.NLParser, maxDepth int) *Resolver {
	t.Helper()
	cat := catalog.New(fakeCatalogSource{}, time.Minute)
	times := NewTimeResolver(store, "Asia/Singapore")
	return New(store, formulas, cat, parser, times, maxDepth)
}

func TestResolveDirectFetch(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "营业收入", 2024, 3, 1234.5)
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, nil, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Company: "示例集团",
		Metric:  "营收",
		Year:    2024,
		Quarter: 3,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp.NeedClarification {
		t.Fatalf("unexpected clarification: %s", resp.Ask)
	}
	if resp.Value == nil || resp.Value.MetricValue != 1234.5 {
		t.Fatalf("value = %+v, want 1234.5", resp.Value)
	}
	if resp.Value.Unit != "亿元" {
		t.Errorf("unit = %q, want 亿元", resp.Value.Unit)
	}
	if resp.IndicatorCard == nil {
		t.Error("expected an indicator card on direct fetch")
	}
	if resp.Resolved.MetricCanonical != "营业收入" || resp.Resolved.CompanyName != "示例集团公司" {
		t.Errorf("resolved = %+v, want canonical names", resp.Resolved)
	}
	if resp.Resolved.Quarter != "Q3" || resp.Resolved.Scenario != models.ScenarioActual {
		t.Errorf("resolved = %+v, want Q3/actual", resp.Resolved)
	}
	if resp.Message != "直取完成" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.ResolutionID == "" {
		t.Error("expected a resolution id")
	}
}

func TestResolveClarification(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, nil, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{Question: "净利润是多少"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resp.NeedClarification {
		t.Fatal("expected a clarification")
	}
	wantMissing := []string{"company", "year", "quarter"}
	if len(resp.Missing) != len(wantMissing) {
		t.Fatalf("missing = %v, want %v", resp.Missing, wantMissing)
	}
	for i, slot := range wantMissing {
		if resp.Missing[i] != slot {
			t.Fatalf("missing = %v, want %v", resp.Missing, wantMissing)
		}
	}
	if resp.Ask != "请补充：公司、年份、季度（Q1-Q4）。" {
		t.Errorf("ask = %q", resp.Ask)
	}
}

func TestResolveFormulaPath(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "净利润", 2024, 3, 100)
	store.put("示例集团公司", "营业收入", 2024, 3, 1000)
	formulas := &fakeFormulas{byMetric: map[string]*models.Formula{"净利率": netMarginFormula()}}
	r := newTestResolver(t, store, formulas, nil, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Question: "示例集团2024年Q3的净利率是多少",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp.NeedClarification {
		t.Fatalf("unexpected clarification: %s (missing %v)", resp.Ask, resp.Missing)
	}
	if resp.Formula == nil {
		t.Fatal("expected a formula result")
	}
	if math.Abs(resp.Formula.Result-0.1) > 1e-9 {
		t.Errorf("result = %v, want 0.1", resp.Formula.Result)
	}
	if resp.Formula.Expression != "净利率 = 净利润 / 营业收入" {
		t.Errorf("expression = %q", resp.Formula.Expression)
	}
	if resp.Message != "公式计算完成" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestResolveMissingBase(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "净利润", 2024, 3, 100)
	formulas := &fakeFormulas{byMetric: map[string]*models.Formula{"净利率": netMarginFormula()}}
	r := newTestResolver(t, store, formulas, nil, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Company: "示例集团公司",
		Metric:  "净利率",
		Year:    2024,
		Quarter: 3,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resp.NeedClarification {
		t.Fatal("expected a clarification")
	}
	if resp.Message != "公式所需基础指标缺失" {
		t.Errorf("message = %q", resp.Message)
	}
	if !strings.Contains(resp.Ask, "营业收入") {
		t.Errorf("ask = %q, want it to name 营业收入", resp.Ask)
	}
}

func TestResolveNoValueNoFormula(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, nil, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Company: "示例集团公司",
		Metric:  "净利润",
		Year:    2024,
		Quarter: 3,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resp.NeedClarification {
		t.Fatal("expected a clarification")
	}
	if resp.Message != "未找到直取值且缺少公式" {
		t.Errorf("message = %q", resp.Message)
	}
	if !strings.Contains(resp.Ask, "净利润") {
		t.Errorf("ask = %q, want it to name the metric", resp.Ask)
	}
}

func TestResolveDivisionByZero(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "净利润", 2024, 3, 100)
	store.put("示例集团公司", "营业收入", 2024, 3, 0)
	formulas := &fakeFormulas{byMetric: map[string]*models.Formula{"净利率": netMarginFormula()}}
	r := newTestResolver(t, store, formulas, nil, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Company: "示例集团公司",
		Metric:  "净利率",
		Year:    2024,
		Quarter: 3,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resp.NeedClarification {
		t.Fatal("expected a clarification")
	}
	if resp.Message != "公式解析失败" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestResolveExplicitBeatsParsed(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "营业收入", 2024, 2, 500)
	parser := &fakeParser{guess: &models.ParsedGuess{Year: 2023, Quarter: 2}}
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, parser, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Question: "营业收入",
		Company:  "示例集团公司",
		Metric:   "营业收入",
		Year:     2024,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if parser.calls == 0 {
		t.Fatal("expected the parser to fill the missing quarter")
	}
	if resp.Resolved == nil || resp.Resolved.Year != 2024 {
		t.Fatalf("resolved = %+v, want explicit year 2024", resp.Resolved)
	}
	if resp.Resolved.Quarter != "Q2" {
		t.Errorf("quarter = %q, want parsed Q2", resp.Resolved.Quarter)
	}
}

func TestResolveSkipsParserWhenComplete(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "营业收入", 2024, 1, 500)
	parser := &fakeParser{guess: &models.ParsedGuess{Year: 2020, Quarter: 4}}
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, parser, 3)

	_, err := r.Resolve(context.Background(), models.QueryRequest{
		Question: "营业收入",
		Company:  "示例集团公司",
		Metric:   "营业收入",
		Year:     2024,
		Quarter:  1,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if parser.calls != 0 {
		t.Errorf("parser called %d times with all slots explicit", parser.calls)
	}
}

func TestResolveParserFailureFallsBack(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "营业收入", 2024, 3, 500)
	parser := &fakeParser{err: errors.New("model unavailable")}
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, parser, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Question: "示例集团2024年Q3营业收入是多少",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp.NeedClarification {
		t.Fatalf("unexpected clarification: %s (missing %v)", resp.Ask, resp.Missing)
	}
	if resp.Value == nil || resp.Value.MetricValue != 500 {
		t.Fatalf("value = %+v, want the heuristic parse to fill all slots", resp.Value)
	}
}

func TestResolveRelativeTime(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "净利润", 2025, 2, 88)
	store.latest = &models.Period{Year: 2025, Quarter: 2}
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, nil, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Question: "示例集团最近一期的净利润",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp.NeedClarification {
		t.Fatalf("unexpected clarification: %s (missing %v)", resp.Ask, resp.Missing)
	}
	if resp.Resolved.Year != 2025 || resp.Resolved.Quarter != "Q2" {
		t.Errorf("resolved period = %d %s, want 2025 Q2", resp.Resolved.Year, resp.Resolved.Quarter)
	}
}

func TestResolveDepthLimit(t *testing.T) {
	chain := func(name, base string) *models.Formula {
		return &models.Formula{
			MetricName: name,
			Variables:  map[string]string{"x": base},
			Compute:    models.ComputeGraph{{Name: name, Expr: "x * 2"}},
			Enabled:    true,
		}
	}
	store := newFakeStore()
	store.put("示例集团公司", "层四", 2024, 1, 1)
	formulas := &fakeFormulas{byMetric: map[string]*models.Formula{
		"层一": chain("层一", "层二"),
		"层二": chain("层二", "层三"),
		"层三": chain("层三", "层四"),
	}}

	req := models.QueryRequest{Company: "示例集团公司", Metric: "层一", Year: 2024, Quarter: 1}

	// Depth three reaches the stored value at the bottom of the chain.
	r := newTestResolver(t, store, formulas, nil, 3)
	resp, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp.Formula == nil || resp.Formula.Result != 8 {
		t.Fatalf("formula = %+v, want result 8", resp.Formula)
	}

	// Depth two cannot, so the chain surfaces as a missing base.
	r = newTestResolver(t, store, formulas, nil, 2)
	resp, err = r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resp.NeedClarification || resp.Message != "公式所需基础指标缺失" {
		t.Fatalf("resp = %+v, want a missing-base clarification", resp)
	}
}

func TestResolveMemoizesBaseFetches(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "净利润", 2024, 1, 100)
	// The derived metric's name must not contain a catalog alias, or
	// canonicalization redirects the query away from this formula.
	f := &models.Formula{
		MetricName: "双倍净利",
		Variables:  map[string]string{"a": "净利润", "b": "净利润"},
		Compute:    models.ComputeGraph{{Name: "双倍净利", Expr: "a + b"}},
		Enabled:    true,
	}
	formulas := &fakeFormulas{byMetric: map[string]*models.Formula{"双倍净利": f}}
	r := newTestResolver(t, store, formulas, nil, 3)

	resp, err := r.Resolve(context.Background(), models.QueryRequest{
		Company: "示例集团公司",
		Metric:  "双倍净利",
		Year:    2024,
		Quarter: 1,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp.Formula == nil || resp.Formula.Result != 200 {
		t.Fatalf("formula = %+v, want 200", resp.Formula)
	}
	if got := store.valueCalls[factKey("示例集团公司", "净利润", 2024, 1)]; got != 1 {
		t.Errorf("base fetched %d times, want 1", got)
	}
}

func TestContribution(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "净利润", 2024, 1, 100)
	store.put("示例集团公司", "营业收入", 2024, 1, 1000)
	store.put("示例集团公司", "净利润", 2024, 2, 150)
	store.put("示例集团公司", "营业收入", 2024, 2, 1000)
	formulas := &fakeFormulas{byMetric: map[string]*models.Formula{"净利率": netMarginFormula()}}
	r := newTestResolver(t, store, formulas, nil, 3)

	resp, err := r.Contribution(context.Background(), models.ContributionRequest{
		Company:     "示例集团",
		Metric:      "净利率",
		BaseYear:    2024,
		BaseQuarter: 1,
		NewYear:     2024,
		NewQuarter:  2,
	})
	if err != nil {
		t.Fatalf("Contribution: %v", err)
	}
	if resp.BasePeriod != "2024Q1" || resp.NewPeriod != "2024Q2" {
		t.Errorf("periods = %s -> %s", resp.BasePeriod, resp.NewPeriod)
	}
	if math.Abs(resp.TotalDelta-0.05) > 1e-9 {
		t.Errorf("total delta = %v, want 0.05", resp.TotalDelta)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(resp.Rows))
	}
	// Variable keys sort 净利润 before 营业收入.
	profit := resp.Rows[0]
	if profit.Variable != "净利润" || profit.DisplayName != "净利润" {
		t.Fatalf("rows[0] = %+v, want 净利润", profit)
	}
	if profit.ImpactEstimate == nil || math.Abs(*profit.ImpactEstimate-0.05) > 1e-9 {
		t.Errorf("净利润 impact = %v, want 0.05", profit.ImpactEstimate)
	}
	revenue := resp.Rows[1]
	if revenue.ImpactEstimate == nil || math.Abs(*revenue.ImpactEstimate) > 1e-9 {
		t.Errorf("营业收入 impact = %v, want 0", revenue.ImpactEstimate)
	}
	if resp.Note == "" {
		t.Error("expected the non-additivity note")
	}
}

func TestContributionNoFormula(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, nil, 3)

	_, err := r.Contribution(context.Background(), models.ContributionRequest{
		Company:     "示例集团公司",
		Metric:      "净利润",
		BaseYear:    2024,
		BaseQuarter: 1,
		NewYear:     2024,
		NewQuarter:  2,
	})
	if !errors.Is(err, ErrNoFormula) {
		t.Fatalf("err = %v, want ErrNoFormula", err)
	}
}

func TestContributionMissingBase(t *testing.T) {
	store := newFakeStore()
	store.put("示例集团公司", "净利润", 2024, 1, 100)
	store.put("示例集团公司", "营业收入", 2024, 1, 1000)
	formulas := &fakeFormulas{byMetric: map[string]*models.Formula{"净利率": netMarginFormula()}}
	r := newTestResolver(t, store, formulas, nil, 3)

	_, err := r.Contribution(context.Background(), models.ContributionRequest{
		Company:     "示例集团公司",
		Metric:      "净利率",
		BaseYear:    2024,
		BaseQuarter: 1,
		NewYear:     2024,
		NewQuarter:  2,
	})
	if err == nil || !strings.Contains(err.Error(), "基础指标缺失") {
		t.Fatalf("err = %v, want a missing-base error for the new period", err)
	}
}

func TestContributionInvalidPeriod(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(t, store, &fakeFormulas{byMetric: map[string]*models.Formula{}}, nil, 3)

	_, err := r.Contribution(context.Background(), models.ContributionRequest{
		Company:  "示例集团公司",
		Metric:   "净利率",
		BaseYear: 2024,
		NewYear:  2024,
	})
	if err == nil {
		t.Fatal("expected an error for missing quarters")
	}
}
