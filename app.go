package main

import (
	"context"
	"fmt"

	"metric-agent/catalog"
	"metric-agent/config"
	"metric-agent/models"
	"metric-agent/repository"
	"metric-agent/resolver"
	"metric-agent/services"
)

// App wires the repository, catalog, language-model parser, and resolver
// together behind the HTTP handlers.
type App struct {
	cfg      *config.Config
	repo     *repository.Repository
	catalog  *catalog.Catalog
	parser   services.NLParser
	resolver *resolver.Resolver
}

// NewApp creates a new App. repo, parser, and resolver may be nil when their
// configuration is absent; the affected endpoints degrade with an error
// instead of taking the whole server down.
func NewApp(cfg *config.Config, repo *repository.Repository, cat *catalog.Catalog, parser services.NLParser, res *resolver.Resolver) *App {
	return &App{
		cfg:      cfg,
		repo:     repo,
		catalog:  cat,
		parser:   parser,
		resolver: res,
	}
}

// shutdown releases held resources.
func (a *App) shutdown() {
	if a.repo != nil {
		a.repo.Close()
	}
}

// ResolveQuery answers one metric query.
func (a *App) ResolveQuery(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	if a.resolver == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.resolver.Resolve(ctx, req)
}

// Contribution decomposes a formula metric's change between two periods.
func (a *App) Contribution(ctx context.Context, req models.ContributionRequest) (*models.ContributionResponse, error) {
	if a.resolver == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.resolver.Contribution(ctx, req)
}

// ListMetrics returns the metric catalog in deterministic order.
func (a *App) ListMetrics(ctx context.Context) ([]models.MetricMeta, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.MetricMeta, 0, snap.MetricCount())
	for _, name := range snap.MetricNames() {
		meta, _ := snap.MetricMeta(name)
		out = append(out, meta)
	}
	return out, nil
}

// ListCompanies returns the company catalog in deterministic order.
func (a *App) ListCompanies(ctx context.Context) ([]models.CompanyMeta, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.CompanyMeta, 0, snap.CompanyCount())
	for _, name := range snap.CompanyNames() {
		meta, _ := snap.CompanyMeta(name)
		out = append(out, meta)
	}
	return out, nil
}

// RefreshCatalog forces a catalog reload and returns the new entry counts.
func (a *App) RefreshCatalog(ctx context.Context) (metricCount, companyCount int, err error) {
	if a.catalog == nil {
		return 0, 0, fmt.Errorf("database not initialized")
	}
	snap, err := a.catalog.Refresh(ctx)
	if err != nil {
		return 0, 0, err
	}
	return snap.MetricCount(), snap.CompanyCount(), nil
}

// PingLLM checks the language-model provider's reachability.
func (a *App) PingLLM(ctx context.Context) error {
	if a.parser == nil {
		return fmt.Errorf("no language model configured")
	}
	return a.parser.Ping(ctx)
}

func (a *App) snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	if a.catalog == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.catalog.Snapshot(ctx)
}
