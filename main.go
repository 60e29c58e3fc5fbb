package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metric-agent/catalog"
	"metric-agent/config"
	"metric-agent/observability"
	"metric-agent/repository"
	"metric-agent/resolver"
	"metric-agent/services"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		observability.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		observability.Fatal("invalid configuration", "error", err)
	}

	observability.InitLogger(os.Getenv("ENV") == "production")
	observability.InitMetrics()

	ctx := context.Background()

	// Initialize database (with retry; the server still starts without it)
	var repo *repository.Repository
	if cfg.HasDatabase() {
		err := services.WithRetry(ctx, services.DefaultRetryConfig, func() error {
			var connectErr error
			repo, connectErr = repository.NewRepository(ctx, cfg.Database.URL)
			return connectErr
		})
		if err != nil {
			observability.Warn("failed to initialize database, query endpoints disabled", "error", err)
			repo = nil
		}
	} else {
		observability.Warn("DATABASE_URL not set, query endpoints disabled")
	}

	// Language-model parser (optional)
	var parser services.NLParser
	if cfg.HasLLM() {
		switch cfg.LLM.Provider {
		case "bedrock":
			p, err := services.NewBedrockParser(ctx, cfg.LLM.AWSRegion, cfg.LLM.BedrockModelID, cfg.LLM.MaxTokens)
			if err != nil {
				observability.Warn("failed to initialize Bedrock parser", "error", err)
			} else {
				parser = p
			}
		default:
			p, err := services.NewOpenAIParser(cfg)
			if err != nil {
				observability.Warn("failed to initialize OpenAI parser", "error", err)
			} else {
				parser = p
			}
		}
	} else {
		observability.Warn("no language-model credentials set, NL parsing disabled")
	}

	// Catalog and resolver need the database
	var cat *catalog.Catalog
	var res *resolver.Resolver
	if repo != nil {
		cat = catalog.New(repo, time.Duration(cfg.Catalog.TTLSeconds)*time.Second)
		times := resolver.NewTimeResolver(repo, cfg.Resolver.Timezone)
		res = resolver.New(repo, repo, cat, parser, times, cfg.Resolver.MaxDepth)
	}

	app := NewApp(cfg, repo, cat, parser, res)
	handler := NewAPIHandler(app, cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		observability.Info("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Fatal("server failed", "error", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	observability.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("shutdown error", "error", err)
	}
	app.shutdown()
}
