// Package main loads board YAML files and stores them in PostgreSQL so the
// match server can serve them with content.boards_source set to postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/config"
	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/observability"
	"github.com/cory-johannsen/gridbrawl/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	sourceDir := flag.String("source", "content/boards", "directory of board YAML files")
	migrate := flag.Bool("migrate", true, "apply schema migrations before importing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := config.ValidateDatabase(cfg.Database); err != nil {
		log.Fatalf("database config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, "import-boards")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	start := time.Now()
	boards, err := board.LoadDir(*sourceDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *migrate {
		res, err := postgres.Migrate(cfg.Database.DSN(), 0, false)
		if err != nil {
			logger.Fatal("applying migrations", zap.Error(err))
		}
		logger.Info("schema ready", zap.Uint("version", res.Version), zap.Bool("changed", res.Changed))
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()

	repo := postgres.NewBoardRepository(pool.DB())
	for _, b := range boards {
		if err := repo.Upsert(ctx, b); err != nil {
			logger.Fatal("storing board", zap.String("board", b.Name), zap.Error(err))
		}
		logger.Info("board stored", zap.String("board", b.Name), zap.Int("size", b.Size()), zap.Bool("ctf", b.IsCTF))
	}
	fmt.Printf("imported %d boards in %s\n", len(boards), time.Since(start).Round(time.Millisecond))
}
