package repository

import (
	"context"

	"metric-agent/models"
)

// FactStore defines read access to stored metric facts
type FactStore interface {
	FetchMetricValue(ctx context.Context, company, metric string, year, quarter int) (float64, bool, error)
	FetchMetricRow(ctx context.Context, company, metric string, year, quarter int) (*models.MetricFact, error)
	LatestPeriod(ctx context.Context, company, metric string) (*models.Period, error)
	LatestQuarterInYear(ctx context.Context, year int, company, metric string) (int, bool, error)
	PeriodExists(ctx context.Context, year, quarter int, company, metric string) (bool, error)
}

// CatalogSource defines access to the metric and company alias catalogs
type CatalogSource interface {
	ListMetricCatalog(ctx context.Context) ([]models.MetricCatalogRow, error)
	ListCompanyCatalog(ctx context.Context) ([]models.CompanyCatalogRow, error)
}

// FormulaSource defines access to derived-metric formula definitions
type FormulaSource interface {
	GetFormula(ctx context.Context, metricName string) (*models.Formula, error)
}

// RepositoryInterface defines all repository operations
type RepositoryInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	FactStore
	CatalogSource
	FormulaSource
}

// Compile-time interface verification
var _ RepositoryInterface = (*Repository)(nil)
