// repcoach-mcp exposes the training database to MCP clients over stdio.
// It runs in one of two modes: local (direct database access via the config
// file) or remote (proxying a running RepCoach server's REST API, typically
// over Tailscale).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/mcp"
	"github.com/claude/repcoach/internal/storage"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	remote := flag.String("remote", "", "RepCoach server base URL (remote mode, e.g. http://repcoach)")
	flag.Parse()

	_ = godotenv.Load()

	// Stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *remote != "" {
		ds = mcp.NewHTTPClient(*remote)
		log.Info("remote mode", "base_url", *remote)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = db
		log.Info("local mode", "database", cfg.Database.Name)
	}

	s := mcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
