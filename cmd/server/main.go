// Package main is the entry point for the FolioSync daemon. It runs the
// portfolio sync engine on localhost: a guest-mode store backed by a local
// SQLite database, a client for the remote tracker backend, and an HTTP
// facade plus websocket event stream for the browser UI. Background jobs
// keep quotes warm and persist the cache across restarts.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/clients/trackerapi"
	"github.com/foliosync/foliosync/internal/config"
	"github.com/foliosync/foliosync/internal/database"
	"github.com/foliosync/foliosync/internal/engine"
	"github.com/foliosync/foliosync/internal/events"
	"github.com/foliosync/foliosync/internal/guest"
	"github.com/foliosync/foliosync/internal/scheduler"
	"github.com/foliosync/foliosync/internal/server"
	"github.com/foliosync/foliosync/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger with config level
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().Msg("Starting FolioSync")

	// Initialize guest database
	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, guest.DBFileName),
		Name: "guest",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize guest database")
	}
	defer db.Close()

	// Guest-mode stores and persisted identity
	guestPortfolio, err := guest.NewPortfolioStore(db.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize guest portfolio store")
	}
	guestWatchlist, err := guest.NewWatchlistStore(db.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize guest watchlist store")
	}
	identities := guest.NewIdentities(db.Conn())

	// Remote backend client
	client := trackerapi.NewClient(cfg.APIBaseURL, log,
		trackerapi.WithTimeout(time.Duration(cfg.RequestTimeoutSec)*time.Second),
		trackerapi.WithRateLimit(cfg.RateLimitRPS),
	)
	if cfg.APIToken != "" {
		client.Tokens().Set(cfg.APIToken)
	}

	// Identity-scoped cache; BeginGuest scopes it to the persisted identity
	store := cache.New("", log)

	// Event bus and typed emitter
	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)

	// Session wiring: guest adapters against the local database, remote
	// adapters against the tracker backend
	session := engine.NewSession(engine.SessionConfig{
		Guest: engine.Adapters{
			Portfolio: guestPortfolio,
			Watchlist: guestWatchlist,
		},
		Remote: engine.Adapters{
			Portfolio: client.Portfolio(),
			Watchlist: client.Watchlist(),
		},
		Tokens:     client.Tokens(),
		Identities: identities,
		Cache:      store,
		Events:     manager,
		Log:        log,
	})
	if err := session.BeginGuest(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start guest session")
	}

	// Warm the cache from the last snapshot. Runs after BeginGuest so
	// entries restore under the active identity.
	var snapshots *cache.SnapshotManager
	if cfg.SnapshotEnabled {
		snapshots = cache.NewSnapshotManager(store, cfg.DataDir, log)
		if _, err := snapshots.Load(); err != nil {
			log.Warn().Err(err).Msg("Failed to load cache snapshot")
		}
	}

	executor := engine.NewExecutor(session, store, client, manager, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	if err := registerJobs(sched, cfg, session, client, store, manager, snapshots, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Log:      log,
		Config:   cfg,
		Executor: executor,
		Cache:    store,
		GuestDB:  db,
		Bus:      bus,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Str("addr", cfg.Addr()).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Persist warm market data for the next start
	if snapshots != nil {
		if err := snapshots.Save(); err != nil {
			log.Error().Err(err).Msg("Failed to save cache snapshot")
		}
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	session *engine.Session,
	client *trackerapi.Client,
	store *cache.Store,
	manager *events.Manager,
	snapshots *cache.SnapshotManager,
	log zerolog.Logger,
) error {
	if err := sched.AddJob("@every 5m", cache.NewCleanupJob(store, log)); err != nil {
		return err
	}

	refresh := fmt.Sprintf("@every %dm", cfg.QuoteRefreshMinutes)
	if err := sched.AddJob(refresh, scheduler.NewQuoteRefreshJob(session, client, store, manager, log)); err != nil {
		return err
	}

	if snapshots != nil {
		snapshot := fmt.Sprintf("@every %dm", cfg.SnapshotMinutes)
		if err := sched.AddJob(snapshot, scheduler.NewSnapshotJob(snapshots, log)); err != nil {
			return err
		}
	}

	return nil
}
