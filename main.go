package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trading-bot/internal/api"
	"trading-bot/internal/events"
	"trading-bot/internal/lifecycle"
	"trading-bot/internal/market"
	"trading-bot/internal/monitor"
	"trading-bot/internal/persistence"
	"trading-bot/internal/ratelimit"
	"trading-bot/internal/scheduler"
	"trading-bot/pkg/config"
	"trading-bot/pkg/db"
)

var buildVersion = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting bot runtime on port %s", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core substrate
	lc := lifecycle.NewManager()
	bus := events.NewBus()

	overrides, err := ratelimit.LoadOverrides(cfg.RateLimitConfigPath)
	if err != nil {
		log.Fatalf("rate limit config failed: %v", err)
	}
	limiter, err := ratelimit.New(overrides)
	if err != nil {
		log.Fatalf("rate limiter init failed: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	// Bus consumers must be registered before the loop starts so the
	// first events are not missed.
	metrics := monitor.NewMetrics()
	metrics.Register(bus)

	recorder := persistence.NewRecorder(database, cfg.JournalFlushInterval, 50)
	recorder.Register(bus)

	alerts := &monitor.AlertWatcher{Sink: monitor.LogSink{}}
	alerts.Register(bus)

	bus.Start()

	transition := func(target lifecycle.State, reason string) {
		from := lc.State()
		if err := lc.TransitionTo(target); err != nil {
			log.Printf("transition to %s rejected: %v", target, err)
			return
		}
		_ = database.InsertTransition(context.Background(), string(from), string(target), reason)
	}

	transition(lifecycle.StateRunning, "startup complete")
	bus.Publish(events.New(events.TypeSystemStart, "engine", map[string]any{
		"version": buildVersion,
		"symbols": cfg.Symbols,
	}))

	// Periodic bookkeeping
	sched := scheduler.New()
	health := monitor.NewHealthChecker(bus, lc)
	sched.AddJob("health_check", cfg.HealthCheckInterval, true, health.Check)
	sched.Start(ctx)

	if cfg.UseMockFeed {
		feed := &market.MockFeed{
			Bus:      bus,
			Symbols:  cfg.Symbols,
			Interval: cfg.MockFeedInterval,
		}
		feed.Start(ctx)
		log.Printf("mock feed running for %v", cfg.Symbols)
	}

	// Keep the limiter visible to diagnostics even before the first
	// real exchange call warms a bucket.
	lc.SetMetadata("rate_limit_categories", len(ratelimit.DefaultLimits()))

	server := api.NewServer(
		bus,
		lc,
		limiter,
		sched,
		metrics,
		database,
		api.SystemMeta{
			Symbols:     cfg.Symbols,
			UseMockFeed: cfg.UseMockFeed,
			Version:     buildVersion,
		},
		cfg.JWTSecret,
		cfg.AdminUser,
		cfg.AdminPassword,
	)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")

	transition(lifecycle.StateStopping, "signal received")
	bus.Publish(events.New(events.TypeSystemStop, "engine", nil))

	sched.Stop()
	cancel()
	bus.Stop()
	recorder.Close()
	transition(lifecycle.StateStopped, "shutdown complete")
	log.Println("stopped")
}
