package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/repcoach/internal/catalog"
	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/ingest"
	"github.com/claude/repcoach/internal/journal"
	"github.com/claude/repcoach/internal/media"
	"github.com/claude/repcoach/internal/notify"
	"github.com/claude/repcoach/internal/server"
	"github.com/claude/repcoach/internal/session"
	"github.com/claude/repcoach/internal/storage"
	"github.com/joho/godotenv"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	_ = godotenv.Load()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepCoach starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Local write journal in front of the database
	jnl, err := journal.Open(cfg.Journal.Dir)
	if err != nil {
		log.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	defer jnl.Close()
	gw := journal.Wrap(db, jnl, log)

	// Template catalog
	templates := catalog.New(cfg.Templates.Dir)

	// Workout event stream
	events := notify.NewBroadcaster(log)

	// Exercise GIF lookups (optional)
	var mediaClient *media.Client
	if cfg.Media.APIKey != "" {
		var cache media.Cache
		if cfg.Redis.Addr != "" {
			redisCache := media.NewRedisCache(cfg.Redis.Addr)
			defer redisCache.Close()
			cache = redisCache
			log.Info("gif cache backed by redis", "addr", cfg.Redis.Addr)
		}
		mediaClient = media.New(cfg.Media.APIKey, cfg.Media.Host, cache, log)
	} else {
		log.Info("no ExerciseDB key configured, gif lookups disabled")
	}

	// Per-user workout state
	manager := server.NewManager(func(userID int) *server.Workout {
		store := session.NewStore(gw, templates, userID, log)
		if err := store.LoadTemplates(); err != nil {
			log.Warn("template load failed", "user", userID, "error", err)
		}

		var coachClient *coach.Client
		var sessionCoach session.Coach
		if cfg.Coach.APIKey != "" {
			coachClient = coach.New(cfg.Coach.APIKey, cfg.Coach.BaseURL, cfg.Coach.Model, db, userID, log)
			sessionCoach = coachClient
		}

		ctrl := session.NewController(store, gw, sessionCoach, events, log,
			session.WithCoachListener(events.CoachMessage),
			session.WithFinishListener(events.StateChanged),
		)
		return &server.Workout{Store: store, Ctrl: ctrl, Coach: coachClient}
	})
	defer manager.Close()

	// Archive importer
	importer := ingest.NewProvider(db, log)

	// Create server
	srv := server.New(db, manager, mediaClient, events, importer, cfg.Auth.APIKey, log)

	// Start server — tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
