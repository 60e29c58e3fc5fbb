package repository

import (
	"context"
	"fmt"
	"time"

	"metric-agent/models"
	"metric-agent/observability"

	"github.com/jackc/pgx/v5"
)

// ListMetricCatalog returns every metric alias row, ordered by canonical name
// so catalog snapshots iterate deterministically.
func (r *Repository) ListMetricCatalog(ctx context.Context) ([]models.MetricCatalogRow, error) {
	start := time.Now()

	rows, err := r.db.Query(ctx, `
		SELECT canonical_name, aliases, unit, is_derived, compute_key
		FROM metric_alias_catalog
		ORDER BY canonical_name
	`)
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "metric_alias_catalog")
		return nil, fmt.Errorf("failed to query metric catalog: %w", err)
	}
	defer rows.Close()

	var out []models.MetricCatalogRow
	for rows.Next() {
		var row models.MetricCatalogRow
		if err := rows.Scan(&row.CanonicalName, &row.Aliases, &row.Unit, &row.IsDerived, &row.ComputeKey); err != nil {
			return nil, fmt.Errorf("failed to scan metric catalog row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metric catalog rows: %w", err)
	}

	observability.GetMetrics().RecordDBQuery("select", "metric_alias_catalog", time.Since(start))
	return out, nil
}

// ListCompanyCatalog returns every company row, ordered by display name.
func (r *Repository) ListCompanyCatalog(ctx context.Context) ([]models.CompanyCatalogRow, error) {
	start := time.Now()

	rows, err := r.db.Query(ctx, `
		SELECT display_name, aliases
		FROM company_catalog
		ORDER BY display_name
	`)
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "company_catalog")
		return nil, fmt.Errorf("failed to query company catalog: %w", err)
	}
	defer rows.Close()

	var out []models.CompanyCatalogRow
	for rows.Next() {
		var row models.CompanyCatalogRow
		if err := rows.Scan(&row.DisplayName, &row.Aliases); err != nil {
			return nil, fmt.Errorf("failed to scan company catalog row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read company catalog rows: %w", err)
	}

	observability.GetMetrics().RecordDBQuery("select", "company_catalog", time.Since(start))
	return out, nil
}

// GetFormula returns the active formula for a metric, preferring the standard
// definition and, among equals, the most recently created one. Returns nil
// when the metric has no enabled formula.
func (r *Repository) GetFormula(ctx context.Context, metricName string) (*models.Formula, error) {
	start := time.Now()

	var (
		f           models.Formula
		description *string
		variables   []byte
		compute     []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, metric_name, description, variables, compute, enabled, is_standard
		FROM metric_formulas
		WHERE metric_name = $1 AND enabled = true
		ORDER BY is_standard DESC, id DESC
		LIMIT 1
	`, metricName).Scan(&f.ID, &f.MetricName, &description, &variables, &compute, &f.Enabled, &f.IsStandard)

	observability.GetMetrics().RecordDBQuery("select", "metric_formulas", time.Since(start))

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "metric_formulas")
		return nil, fmt.Errorf("failed to query formula: %w", err)
	}

	if description != nil {
		f.Description = *description
	}
	f.Variables = models.DecodeVariables(variables)
	f.Compute = models.DecodeComputeGraph(compute)

	return &f, nil
}
