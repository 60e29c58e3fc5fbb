package repository

import (
	"context"
	"fmt"
	"time"

	"metric-agent/models"
	"metric-agent/observability"

	"github.com/jackc/pgx/v5"
)

// FetchMetricValue returns the stored value for one (company, metric, year, quarter)
// cell, or (0, false, nil) if no row exists.
func (r *Repository) FetchMetricValue(ctx context.Context, company, metric string, year, quarter int) (float64, bool, error) {
	start := time.Now()

	var v float64
	err := r.db.QueryRow(ctx, `
		SELECT metric_value
		FROM financial_metrics
		WHERE company_name = $1 AND metric_name = $2 AND year = $3 AND quarter = $4
		LIMIT 1
	`, company, metric, year, quarter).Scan(&v)

	observability.GetMetrics().RecordDBQuery("select", "financial_metrics", time.Since(start))

	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "financial_metrics")
		return 0, false, fmt.Errorf("failed to query metric value: %w", err)
	}
	return v, true, nil
}

// FetchMetricRow returns the full metric row including baseline and prior-period
// comparison columns, or nil if no row exists.
func (r *Repository) FetchMetricRow(ctx context.Context, company, metric string, year, quarter int) (*models.MetricFact, error) {
	start := time.Now()

	f := models.MetricFact{
		CompanyName: company,
		MetricName:  metric,
		Year:        year,
		Quarter:     quarter,
	}
	var source *string
	err := r.db.QueryRow(ctx, `
		SELECT metric_value, baseline_target, last_year_value, last_period_value, source
		FROM financial_metrics
		WHERE company_name = $1 AND metric_name = $2 AND year = $3 AND quarter = $4
		LIMIT 1
	`, company, metric, year, quarter).Scan(&f.Value, &f.BaselineTarget, &f.LastYearValue, &f.LastPeriodValue, &source)

	observability.GetMetrics().RecordDBQuery("select", "financial_metrics", time.Since(start))

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "financial_metrics")
		return nil, fmt.Errorf("failed to query metric row: %w", err)
	}
	if source != nil {
		f.Source = *source
	}
	return &f, nil
}

// LatestPeriod returns the most recent (year, quarter) with data, optionally
// scoped to a company and/or metric. Empty strings widen the scope.
func (r *Repository) LatestPeriod(ctx context.Context, company, metric string) (*models.Period, error) {
	query := `
		SELECT year, quarter
		FROM financial_metrics
		WHERE ($1 = '' OR company_name = $1)
		  AND ($2 = '' OR metric_name = $2)
		ORDER BY year DESC, quarter DESC
		LIMIT 1
	`

	var p models.Period
	err := r.db.QueryRow(ctx, query, company, metric).Scan(&p.Year, &p.Quarter)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "financial_metrics")
		return nil, fmt.Errorf("failed to query latest period: %w", err)
	}
	return &p, nil
}

// LatestQuarterInYear returns the most recent quarter with data in the given
// year, or (0, false, nil) if the year has no rows.
func (r *Repository) LatestQuarterInYear(ctx context.Context, year int, company, metric string) (int, bool, error) {
	var q int
	err := r.db.QueryRow(ctx, `
		SELECT quarter
		FROM financial_metrics
		WHERE year = $1
		  AND ($2 = '' OR company_name = $2)
		  AND ($3 = '' OR metric_name = $3)
		ORDER BY quarter DESC
		LIMIT 1
	`, year, company, metric).Scan(&q)

	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "financial_metrics")
		return 0, false, fmt.Errorf("failed to query latest quarter: %w", err)
	}
	return q, true, nil
}

// PeriodExists reports whether any row exists for the given period, optionally
// scoped to company and/or metric.
func (r *Repository) PeriodExists(ctx context.Context, year, quarter int, company, metric string) (bool, error) {
	var one int
	err := r.db.QueryRow(ctx, `
		SELECT 1
		FROM financial_metrics
		WHERE year = $1 AND quarter = $2
		  AND ($3 = '' OR company_name = $3)
		  AND ($4 = '' OR metric_name = $4)
		LIMIT 1
	`, year, quarter, company, metric).Scan(&one)

	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "financial_metrics")
		return false, fmt.Errorf("failed to query period existence: %w", err)
	}
	return true, nil
}
