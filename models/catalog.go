package models

// MetricMeta is one metric entry from the alias catalog. CanonicalName is the
// join key against the fact store; ComputeKey binds the metric to formula
// variable names when it differs from the canonical name.
type MetricMeta struct {
	CanonicalName string   `json:"canonical_name"`
	Aliases       []string `json:"aliases"`
	Unit          string   `json:"unit,omitempty"`
	IsDerived     bool     `json:"is_derived"`
	ComputeKey    string   `json:"compute_key,omitempty"`
}

// CompanyMeta is one company entry from the company catalog.
type CompanyMeta struct {
	DisplayName string   `json:"display_name"`
	Aliases     []string `json:"aliases"`
}

// MetricCatalogRow is the raw metric_alias_catalog row. Aliases comes back as
// unparsed text because the column holds JSON arrays, Postgres array literals,
// or plain delimited strings depending on how the row was loaded.
type MetricCatalogRow struct {
	CanonicalName string
	Aliases       *string
	Unit          *string
	IsDerived     *bool
	ComputeKey    *string
}

// CompanyCatalogRow is the raw company_catalog row.
type CompanyCatalogRow struct {
	DisplayName string
	Aliases     *string
}
