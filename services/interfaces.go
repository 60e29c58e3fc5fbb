package services

import (
	"context"

	"metric-agent/models"
)

// CatalogPayload is the context handed to the NL parser so it can only pick
// companies and metrics the catalog actually knows.
type CatalogPayload struct {
	Now        string               `json:"now"` // YYYY-MM-DD in the resolver timezone
	HintLatest *models.Period       `json:"hint_latest_any,omitempty"`
	Companies  []models.CompanyMeta `json:"companies"`
	Metrics    []models.MetricMeta  `json:"metrics"`
	Question   string               `json:"question"`
}

// NLParser extracts (company, metric, year, quarter) from a free-text
// question, constrained to the supplied catalog.
type NLParser interface {
	ParseQuery(ctx context.Context, payload CatalogPayload) (*models.ParsedGuess, error)
	Ping(ctx context.Context) error
}

// Compile-time interface verification
var (
	_ NLParser = (*OpenAIParser)(nil)
	_ NLParser = (*BedrockParser)(nil)
)
