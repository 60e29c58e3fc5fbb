package catalog

import (
	"time"

	"metric-agent/models"
)

// Snapshot is an immutable view of the metric and company catalogs. Readers
// hold a snapshot for the duration of one resolution so a concurrent reload
// cannot change the catalog under them mid-query.
type Snapshot struct {
	metrics      map[string]models.MetricMeta
	metricNames  []string // canonical names in load order
	companies    map[string]models.CompanyMeta
	companyNames []string
	builtAt      time.Time
}

// MetricNames returns canonical metric names in deterministic load order.
func (s *Snapshot) MetricNames() []string {
	return s.metricNames
}

// MetricMeta returns the catalog entry for a canonical metric name.
func (s *Snapshot) MetricMeta(canonical string) (models.MetricMeta, bool) {
	m, ok := s.metrics[canonical]
	return m, ok
}

// CompanyNames returns canonical company names in deterministic load order.
func (s *Snapshot) CompanyNames() []string {
	return s.companyNames
}

// CompanyMeta returns the catalog entry for a canonical company name.
func (s *Snapshot) CompanyMeta(canonical string) (models.CompanyMeta, bool) {
	c, ok := s.companies[canonical]
	return c, ok
}

// MetricCount returns the number of metrics in the snapshot.
func (s *Snapshot) MetricCount() int { return len(s.metricNames) }

// CompanyCount returns the number of companies in the snapshot.
func (s *Snapshot) CompanyCount() int { return len(s.companyNames) }

// BuiltAt returns when the snapshot was constructed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// buildSnapshot assembles an immutable snapshot from raw catalog rows.
func buildSnapshot(metricRows []models.MetricCatalogRow, companyRows []models.CompanyCatalogRow, now time.Time) *Snapshot {
	snap := &Snapshot{
		metrics:   make(map[string]models.MetricMeta, len(metricRows)),
		companies: make(map[string]models.CompanyMeta, len(companyRows)),
		builtAt:   now,
	}

	for _, row := range metricRows {
		if row.CanonicalName == "" {
			continue
		}
		meta := models.MetricMeta{
			CanonicalName: row.CanonicalName,
			Aliases:       ParseAliasField(row.Aliases),
			ComputeKey:    row.CanonicalName,
		}
		if row.Unit != nil {
			meta.Unit = *row.Unit
		}
		if row.IsDerived != nil {
			meta.IsDerived = *row.IsDerived
		}
		if row.ComputeKey != nil && *row.ComputeKey != "" {
			meta.ComputeKey = *row.ComputeKey
		}
		if _, dup := snap.metrics[meta.CanonicalName]; !dup {
			snap.metricNames = append(snap.metricNames, meta.CanonicalName)
		}
		snap.metrics[meta.CanonicalName] = meta
	}

	for _, row := range companyRows {
		if row.DisplayName == "" {
			continue
		}
		aliases := ParseAliasField(row.Aliases)
		for _, v := range CompanyVariants(row.DisplayName) {
			if v != row.DisplayName {
				aliases = append(aliases, v)
			}
		}
		meta := models.CompanyMeta{
			DisplayName: row.DisplayName,
			Aliases:     dedupe(aliases),
		}
		if _, dup := snap.companies[meta.DisplayName]; !dup {
			snap.companyNames = append(snap.companyNames, meta.DisplayName)
		}
		snap.companies[meta.DisplayName] = meta
	}

	return snap
}
