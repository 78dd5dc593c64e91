package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"warm-transfer-service/internal/api"
	"warm-transfer-service/internal/app"
	"warm-transfer-service/internal/config"
	"warm-transfer-service/internal/events"
	httpapi "warm-transfer-service/internal/http"
	"warm-transfer-service/internal/observability"
	"warm-transfer-service/internal/observability/logging"
	"warm-transfer-service/internal/observability/metrics"
	"warm-transfer-service/internal/registry"
	"warm-transfer-service/internal/service/summary"
	summarymock "warm-transfer-service/internal/service/summary/mock"
	"warm-transfer-service/internal/service/summary/openrouter"
	"warm-transfer-service/internal/service/token"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("application start failed")
	}

	// Kafka publisher with separate topics for call and transfer events
	publisher := events.New(&events.Config{
		Enabled:        cfg.Kafka.Enabled,
		Brokers:        cfg.Kafka.Brokers,
		TopicCalls:     cfg.Kafka.TopicCalls,
		TopicTransfers: cfg.Kafka.TopicTransfers,
		Principal:      cfg.Kafka.Principal,
	})
	defer publisher.Close()

	issuer := token.NewIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.URL, cfg.LiveKit.TokenTTL)
	if !issuer.Configured() {
		log.Warn().Msg("LiveKit credentials not configured; credential minting will fail")
	}

	generator, llmConfigured := buildGenerator(cfg)

	store := registry.NewStore()

	handler := &api.Handler{
		Store:         store,
		Issuer:        issuer,
		Generator:     generator,
		Provider:      cfg.Summary.Provider,
		Publisher:     publisher,
		Metrics:       metrics.DefaultMetrics,
		Logger:        logging.WithComponent("api"),
		LLMConfigured: llmConfigured,
	}

	server := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      httpapi.NewRouter(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	obsServer := observability.NewServer(":" + cfg.Observability.MetricsPort)
	obsServer.Start()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runBriefingSweep(sweepCtx, store, publisher, cfg.Transfer)

	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Warm transfer service started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("observability shutdown failed")
	}
	application.Shutdown()
}

// buildGenerator selects the summarization provider from config.
func buildGenerator(cfg *config.Config) (summary.Generator, bool) {
	switch cfg.Summary.Provider {
	case "openrouter":
		if cfg.Summary.APIKey == "" {
			log.Warn().Msg("OpenRouter selected but no API key configured; using mock summarizer")
			return summarymock.New(), false
		}
		return openrouter.New(openrouter.Config{
			APIKey:  cfg.Summary.APIKey,
			Model:   cfg.Summary.Model,
			BaseURL: cfg.Summary.BaseURL,
			Timeout: cfg.Summary.Timeout,
		}), true
	default:
		return summarymock.New(), false
	}
}

// runBriefingSweep periodically expires transfers stuck in briefing past the
// configured TTL, returning their calls to active.
func runBriefingSweep(ctx context.Context, store *registry.Store, publisher *events.Publisher, cfg config.TransferConfig) {
	if cfg.BriefingTTL <= 0 {
		log.Info().Msg("Briefing TTL disabled; stale transfers are never expired")
		return
	}

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := store.ExpireStaleBriefings(cfg.BriefingTTL)
			if len(expired) == 0 {
				continue
			}
			metrics.DefaultMetrics.RecordTransferExpired(len(expired))
			log.Info().Strs("transferIds", expired).Msg("Expired stale briefings")
			for _, id := range expired {
				if transfer, err := store.GetTransfer(id); err == nil {
					_ = publisher.PublishTransfer(ctx, events.TransferExpired, id, transfer.Brief())
				}
			}
		}
	}
}
