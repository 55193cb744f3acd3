// repcoach-import loads an archived training log export into the database
// from the command line. The same format is accepted over HTTP at
// POST /api/v1/import; this binary exists for bulk backfills before the
// server's first start.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/ingest"
	"github.com/claude/repcoach/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("path", "", "path to the export file (required)")
	userID := flag.Int("user", 1, "user id to import for")
	flag.Parse()

	_ = godotenv.Load()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: repcoach-import -config config.yaml -path /path/to/export.csv [-user 1]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*exportPath)
	if err != nil {
		log.Error("cannot open export file", "path", *exportPath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Run import
	imp := ingest.NewProvider(db, log)
	result, err := imp.Import(ctx, *userID, f)
	if err != nil {
		log.Error("import failed", "error", err)
		if result != nil {
			printResult(log, result)
		}
		os.Exit(1)
	}

	printResult(log, result)
	log.Info("import complete")
}

func printResult(log *slog.Logger, r *ingest.Result) {
	log.Info("import result",
		"sessions_received", r.SessionsReceived,
		"sessions_inserted", r.SessionsInserted,
		"sets_received", r.SetsReceived,
		"sets_inserted", r.SetsInserted,
		"warmups_skipped", r.WarmupsSkipped,
	)
}
