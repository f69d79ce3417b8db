// Package main provides the match server binary: rooms and matches behind a
// WebSocket endpoint and a gRPC session stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/gridbrawl/internal/config"
	"github.com/cory-johannsen/gridbrawl/internal/game/ai"
	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/room"
	"github.com/cory-johannsen/gridbrawl/internal/game/session"
	"github.com/cory-johannsen/gridbrawl/internal/gameserver"
	"github.com/cory-johannsen/gridbrawl/internal/observability"
	"github.com/cory-johannsen/gridbrawl/internal/scripting"
	"github.com/cory-johannsen/gridbrawl/internal/server"
	"github.com/cory-johannsen/gridbrawl/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	roller := dice.NewRoller(dice.NewCryptoSource(), logger)

	agents, scripts, err := buildAgents(cfg.Content, roller, logger)
	if err != nil {
		logger.Fatal("building virtual player agents", zap.Error(err))
	}
	if scripts != nil {
		defer scripts.Close()
	}

	boards, closeBoards, err := buildBoards(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening board catalogue", zap.Error(err))
	}
	defer closeBoards()

	sessions := session.NewManager(cfg.GameServer.SendBuffer)
	rooms := room.NewManager(ctx, boards, cfg.Match.Settings(), room.Deps{
		Members: sessions,
		Agents:  agents,
		Roller:  roller,
		Logger:  logger,
		NewID:   uuid.NewString,
		Now:     time.Now,
	})
	dispatcher := gameserver.NewDispatcher(rooms, sessions, logger)

	grpcServer := grpc.NewServer()
	gameserver.NewGRPCServer(dispatcher, logger).Register(grpcServer)

	httpServer := &http.Server{
		Addr:              cfg.GameServer.HTTPAddr(),
		Handler:           gameserver.NewHTTPServer(dispatcher, boards, rooms, sessions, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	lifecycle.Add("rooms", &server.FuncService{
		StartFn: func() error {
			<-ctx.Done()
			return nil
		},
		StopFn: func(context.Context) {
			rooms.Shutdown()
		},
	})

	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.GameServer.GRPCAddr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GameServer.GRPCAddr(), err)
			}
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: func(stopCtx context.Context) {
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-stopCtx.Done():
				grpcServer.Stop()
			}
		},
	})

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving HTTP: %w", err)
			}
			return nil
		},
		StopFn: func(stopCtx context.Context) {
			if err := httpServer.Shutdown(stopCtx); err != nil {
				logger.Warn("HTTP shutdown", zap.Error(err))
			}
		},
	})

	logger.Info("match server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("grpc_addr", cfg.GameServer.GRPCAddr()),
		zap.String("http_addr", cfg.GameServer.HTTPAddr()),
		zap.String("boards_source", cfg.Content.BoardsSource),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("server exited", zap.Error(err))
		cancel()
		_ = logger.Sync()
		os.Exit(1)
	}
	cancel()
}

// buildAgents loads the Lua predicates and HTN domains and returns the
// registry of virtual player policies. The script manager is nil when no
// script directory is configured.
func buildAgents(content config.ContentConfig, roller *dice.Roller, logger *zap.Logger) (*ai.Registry, *scripting.Manager, error) {
	conds, err := ai.NewConditions(roller)
	if err != nil {
		return nil, nil, err
	}

	var scripts *scripting.Manager
	var caller ai.ScriptCaller
	if dirExists(content.AIScriptsDir) {
		scripts = scripting.NewManager(roller, logger)
		if err := scripts.LoadGlobal(content.AIScriptsDir, content.ScriptInstructionLimit); err != nil {
			return nil, nil, fmt.Errorf("loading AI scripts: %w", err)
		}
		caller = scripts
		logger.Info("loaded AI scripts", zap.String("dir", content.AIScriptsDir))
	}

	var domains []*ai.Domain
	if dirExists(content.AIDir) {
		domains, err = ai.LoadDomains(content.AIDir)
		if err != nil {
			return nil, nil, fmt.Errorf("loading AI domains: %w", err)
		}
		logger.Info("loaded AI domains", zap.Int("count", len(domains)))
	}

	reg, err := ai.NewDefaultRegistry(conds, caller, logger, domains...)
	if err != nil {
		return nil, nil, fmt.Errorf("registering AI domains: %w", err)
	}
	return reg, scripts, nil
}

// buildBoards opens the configured board catalogue.
func buildBoards(ctx context.Context, cfg config.Config, logger *zap.Logger) (board.Provider, func(), error) {
	if cfg.Content.BoardsSource != "postgres" {
		p, err := board.NewDirProvider(cfg.Content.BoardsDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("boards loaded", zap.String("dir", cfg.Content.BoardsDir))
		return p, func() {}, nil
	}

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Health(ctx, 5*time.Second); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	return postgres.NewBoardRepository(pool.DB()), pool.Close, nil
}

func dirExists(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
