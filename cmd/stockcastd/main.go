package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/stockcast/stockcast/internal/config"
	"github.com/stockcast/stockcast/internal/database"
	"github.com/stockcast/stockcast/internal/feed"
	"github.com/stockcast/stockcast/internal/server"
	"github.com/stockcast/stockcast/internal/session"
	"github.com/stockcast/stockcast/internal/version"
	"github.com/stockcast/stockcast/internal/writer"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty uses built-in defaults)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := newLogger(*logLevel, *logFormat)
	slog.SetDefault(logger)

	// Pick up a local .env before expanding ${VAR} in the config file
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using system environment")
	}

	logger.Info("starting stockcastd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	var cfg *config.ServiceConfig
	if *configPath == "" {
		cfg = config.Default()
		logger.Info("no config file given, using built-in defaults")
	} else {
		var err error
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}
	if cfg.Instance.ID == "" {
		cfg.Instance.ID = "stockcast-" + uuid.NewString()[:8]
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"symbols", cfg.Feeds.Symbols,
		"addr", cfg.Server.Addr,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Create the feed registry
	registry := feed.NewRegistry(feed.RegistryConfig{
		Symbols: cfg.Feeds.Symbols,
		Feed: feed.Config{
			TickInterval: cfg.Feeds.TickInterval,
			HistorySize:  cfg.Feeds.HistorySize,
		},
		PriceMin: cfg.Feeds.PriceMin,
		PriceMax: cfg.Feeds.PriceMax,
		WalkStep: cfg.Feeds.WalkStep,
		Seed:     cfg.Feeds.Seed,
	}, logger)

	// Create writers. They start before the feeds so their attachments see
	// an empty replay history.
	var archive *writer.ArchiveWriter
	if cfg.Archive.Enabled {
		logger.Info("connecting to archive database",
			"target", database.Describe(cfg.Archive.Database))
		pool, err := database.Connect(ctx, cfg.Archive.Database)
		if err != nil {
			logger.Error("failed to connect to archive database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		archive = writer.NewArchiveWriter(writer.WriterConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
			BufferSize:    cfg.Archive.BufferSize,
		}, registry, pool, logger)
	}

	var mirror *writer.MirrorWriter
	if cfg.Mirror.Enabled {
		kw := &kafka.Writer{
			Addr:     kafka.TCP(cfg.Mirror.Brokers...),
			Topic:    cfg.Mirror.Topic,
			Balancer: &kafka.Hash{},
		}
		defer kw.Close()

		mirror = writer.NewMirrorWriter(writer.WriterConfig{
			BatchSize:     cfg.Mirror.BatchSize,
			FlushInterval: cfg.Mirror.FlushInterval,
			BufferSize:    cfg.Mirror.BufferSize,
		}, registry, kw, logger)
	}

	var snapshot *writer.SnapshotWriter
	if cfg.Snapshot.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Snapshot.Addr,
			Password: cfg.Snapshot.Password,
			DB:       cfg.Snapshot.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		snapshot = writer.NewSnapshotWriter(writer.WriterConfig{}, writer.SnapshotConfig{
			KeyPrefix:     cfg.Snapshot.KeyPrefix,
			ChannelPrefix: cfg.Snapshot.ChannelPrefix,
			TTL:           cfg.Snapshot.TTL,
		}, registry, client, logger)
	}

	// Create the WebSocket server
	srv := server.New(registry, server.Config{
		Addr:           cfg.Server.Addr,
		WSPath:         cfg.Server.WSPath,
		PingInterval:   cfg.Server.PingInterval,
		PongWait:       cfg.Server.PongWait,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Session: session.Config{
			OutboundCapacity: cfg.Server.OutboundCapacity,
		},
	}, logger)

	// Start components: writers, server, then feeds
	if archive != nil {
		if err := archive.Start(ctx); err != nil {
			logger.Error("failed to start archive writer", "error", err)
			os.Exit(1)
		}
	}
	if mirror != nil {
		if err := mirror.Start(ctx); err != nil {
			logger.Error("failed to start mirror writer", "error", err)
			os.Exit(1)
		}
	}
	if snapshot != nil {
		if err := snapshot.Start(ctx); err != nil {
			logger.Error("failed to start snapshot writer", "error", err)
			os.Exit(1)
		}
	}
	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start websocket server", "error", err)
		os.Exit(1)
	}
	if err := registry.Start(ctx); err != nil {
		logger.Error("failed to start feeds", "error", err)
		os.Exit(1)
	}

	// Health server
	healthServer := &http.Server{
		Addr:    cfg.Health.Addr,
		Handler: createHealthHandler(cfg, registry, srv, archive, mirror, snapshot),
	}
	go func() {
		logger.Info("starting health server", "addr", cfg.Health.Addr, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("stockcastd running",
		"instance_id", cfg.Instance.ID,
		"ws_url", fmt.Sprintf("ws://%s%s", displayAddr(srv.Addr()), cfg.Server.WSPath),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Feeds first so no new ticks are generated, then the client-facing
	// server, then the writers so they drain and flush everything left.
	registry.Stop(shutdownCtx)
	srv.Stop(shutdownCtx)
	if snapshot != nil {
		snapshot.Stop(shutdownCtx)
	}
	if mirror != nil {
		mirror.Stop(shutdownCtx)
	}
	if archive != nil {
		archive.Stop(shutdownCtx)
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("stockcastd stopped")
}

// newLogger builds the process logger from the CLI flags.
func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// displayAddr rewrites a wildcard listen address for log output.
func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return strings.Replace(addr, "0.0.0.0", "localhost", 1)
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(
	cfg *config.ServiceConfig,
	registry *feed.Registry,
	srv *server.Server,
	archive *writer.ArchiveWriter,
	mirror *writer.MirrorWriter,
	snapshot *writer.SnapshotWriter,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(cfg.Health.Path, func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Instance   string         `json:"instance"`
			Build      version.Info   `json:"build"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Instance:   cfg.Instance.ID,
			Build:      version.Get(),
			Components: make(map[string]any),
		}

		health.Components["feeds"] = registry.FeedStats()
		health.Components["sessions"] = srv.SessionCount()

		if archive != nil {
			stats := archive.Stats()
			health.Components["archive"] = stats
			if stats.Errors > 0 {
				health.Status = "degraded"
			}
		}
		if mirror != nil {
			stats := mirror.Stats()
			health.Components["mirror"] = stats
			if stats.Errors > 0 {
				health.Status = "degraded"
			}
		}
		if snapshot != nil {
			stats := snapshot.Stats()
			health.Components["snapshot"] = stats
			if stats.Errors > 0 {
				health.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
