package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"metric-agent/formula"
	"metric-agent/models"
	"metric-agent/observability"
)

const contributionNote = "逐变量替换为定性归因：非线性公式下各项贡献之和不等于总变化。"

// Contribution decomposes a formula metric's change between two periods by
// re-evaluating the result expression with one variable at a time moved to
// its new-period value.
func (r *Resolver) Contribution(ctx context.Context, req models.ContributionRequest) (*models.ContributionResponse, error) {
	if req.BaseYear == 0 || req.NewYear == 0 || !req.BaseQuarter.Valid() || !req.NewQuarter.Valid() {
		return nil, fmt.Errorf("both periods must carry a year and a quarter (Q1-Q4)")
	}

	snap, err := r.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog unavailable: %w", err)
	}
	company := firstNonEmpty(canonicalCompany(snap, req.Company), strings.TrimSpace(req.Company))
	metric := firstNonEmpty(canonicalMetric(snap, req.Metric), strings.TrimSpace(req.Metric))
	if company == "" || metric == "" {
		return nil, fmt.Errorf("company and metric are required")
	}

	f, err := r.formulas.GetFormula(ctx, metric)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoFormula, metric)
	}
	if len(f.Compute) == 0 {
		return nil, formula.ErrEmptyGraph
	}

	basePeriod := models.Period{Year: req.BaseYear, Quarter: int(req.BaseQuarter)}
	newPeriod := models.Period{Year: req.NewYear, Quarter: int(req.NewQuarter)}

	baseVals, err := r.baseValues(ctx, company, basePeriod, f)
	if err != nil {
		return nil, err
	}
	newVals, err := r.baseValues(ctx, company, newPeriod, f)
	if err != nil {
		return nil, err
	}

	// The last compute step is the result expression; the decomposition swaps
	// its direct variables only.
	expr := f.Compute[len(f.Compute)-1].Expr
	rows, totalDelta, err := formula.ContributionByVariables(expr, baseVals, newVals)
	if err != nil {
		return nil, fmt.Errorf("contribution for %s: %w", metric, err)
	}
	for i := range rows {
		if name, ok := f.Variables[rows[i].Variable]; ok {
			rows[i].DisplayName = name
		}
	}

	observability.Info("contribution computed",
		"company", company,
		"metric", metric,
		"base_period", basePeriod.Label(),
		"new_period", newPeriod.Label(),
		"total_delta", totalDelta)

	return &models.ContributionResponse{
		Metric:     metric,
		Company:    company,
		BasePeriod: basePeriod.Label(),
		NewPeriod:  newPeriod.Label(),
		TotalDelta: totalDelta,
		Rows:       rows,
		Note:       contributionNote,
	}, nil
}

// baseValues resolves every variable a formula declares for one period,
// recursing through derived bases the same way query resolution does.
func (r *Resolver) baseValues(ctx context.Context, company string, p models.Period, f *models.Formula) (map[string]float64, error) {
	memo := make(map[memoKey]memoEntry)
	vals := make(map[string]float64, len(f.Variables))
	var missing []string

	keys := make([]string, 0, len(f.Variables))
	for k := range f.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		baseName := f.Variables[k]
		v, ok, err := r.fetchOrCompute(ctx, company, p.Year, p.Quarter, baseName, 1, memo)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, baseName)
			continue
		}
		vals[k] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &formula.MissingBaseMetricError{
			Missing: missing,
			Scope:   formula.Scope{Company: company, Year: p.Year, Quarter: p.Quarter},
		}
	}
	return vals, nil
}
