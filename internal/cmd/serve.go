package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/citybrief/citybrief/internal/agent"
	"github.com/citybrief/citybrief/internal/agent/tools"
	"github.com/citybrief/citybrief/internal/cache"
	"github.com/citybrief/citybrief/internal/config"
	"github.com/citybrief/citybrief/internal/httpx"
	"github.com/citybrief/citybrief/internal/intent"
	"github.com/citybrief/citybrief/internal/llm"
	"github.com/citybrief/citybrief/internal/news"
	"github.com/citybrief/citybrief/internal/ratelimit"
	"github.com/citybrief/citybrief/internal/risk"
	"github.com/citybrief/citybrief/internal/server"
	"github.com/citybrief/citybrief/internal/session"
	"github.com/citybrief/citybrief/internal/store"
	"github.com/citybrief/citybrief/internal/trigger"
	"github.com/citybrief/citybrief/internal/weather"
)

// Upstream call budgets: whole-interval token buckets per signal class.
const (
	weatherTokensPerSec = 5
	newsTokensPerSec    = 2
)

var (
	servePort     int
	serveKeywords string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CityBrief HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP server port")
	serveCmd.Flags().StringVar(&serveKeywords, "keywords", "", "path to intent keyword override YAML (optional)")
	rootCmd.AddCommand(serveCmd)
}

// deps bundles everything the serve and risk commands construct from config.
type deps struct {
	store         *store.Store
	weatherClient *weather.Client
	newsClient    *news.Client
	toolCache     *cache.ToolCache
	scorer        *risk.Scorer
	weatherBucket *ratelimit.Bucket
	newsBucket    *ratelimit.Bucket
}

func buildDeps(cfg *config.Config) (*deps, error) {
	st, err := store.NewStore(cfg.StoreDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	hc := httpx.NewClient()
	return &deps{
		store:         st,
		weatherClient: weather.NewClient(hc, cfg.GeocodeURL, cfg.ForecastURL),
		newsClient:    news.NewClient(hc, cfg.SerpURL, cfg.SerpAPIKey),
		toolCache:     cache.New(st, cfg.ToolCacheTTL),
		scorer:        risk.NewScorer(risk.DefaultConfig()),
		weatherBucket: ratelimit.NewBucket(weatherTokensPerSec, time.Second),
		newsBucket:    ratelimit.NewBucket(newsTokensPerSec, time.Second),
	}, nil
}

func buildOrchestrator(cfg *config.Config, d *deps, classifier intent.Classifier) (*agent.Orchestrator, error) {
	provider, err := llm.ForModel(cfg.Model, cfg.OpenAIAPIKey, cfg.LLMBaseURL, cfg.OllamaBaseURL)
	if err != nil {
		return nil, err
	}

	return agent.NewOrchestrator(agent.OrchestratorConfig{
		Classifier:  classifier,
		Policy:      session.NewPolicy(d.store, cfg.SuppressWindow, cfg.SessionTTL),
		Provider:    provider,
		Model:       cfg.Model,
		WeatherTool: tools.NewWeatherTool(d.weatherClient, d.toolCache, d.weatherBucket),
		NewsTool:    tools.NewNewsTool(d.newsClient, d.weatherClient, d.toolCache, d.newsBucket),
		RiskTool:    tools.NewCityRiskTool(d.weatherClient, d.newsClient, d.scorer, d.toolCache, d.weatherBucket, d.newsBucket),
	}), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	cfg.WarnIfDefaultSecret()

	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer d.store.Close()

	classifier, err := intent.LoadKeywordOverrides(serveKeywords)
	if err != nil {
		return fmt.Errorf("loading keyword overrides: %w", err)
	}

	orch, err := buildOrchestrator(cfg, d, classifier)
	if err != nil {
		return err
	}

	scheduler := trigger.NewScheduler(d.store)
	if err := scheduler.RegisterSweep(""); err != nil {
		return fmt.Errorf("registering sweep: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	adminKey := os.Getenv("CITYBRIEF_ADMIN_KEY")
	if adminKey == "" {
		log.Warn().Msg("CITYBRIEF_ADMIN_KEY not set — admin endpoints disabled")
	}

	viewCache := cache.New(d.store, cfg.ViewCacheTTL)
	srv := server.NewServer(
		orch,
		d.store,
		d.weatherClient,
		d.newsClient,
		viewCache,
		[]byte(cfg.SessionSecret),
		server.WithAdminKey(adminKey),
	)

	addr := fmt.Sprintf(":%d", servePort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Str("model", cfg.Model).
		Int("cron_entries", scheduler.Entries()).
		Msg("citybrief_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
