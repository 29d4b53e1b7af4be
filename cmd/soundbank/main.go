// Command soundbank runs the per-guild Discord soundboard bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/kzell/soundbank/internal/config"
	discordbot "github.com/kzell/soundbank/internal/discord"
	"github.com/kzell/soundbank/internal/health"
	"github.com/kzell/soundbank/internal/library"
	"github.com/kzell/soundbank/internal/observe"
	"github.com/kzell/soundbank/internal/upload"
	"github.com/kzell/soundbank/internal/voice"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "soundbank: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Slog(),
	}))
	slog.SetDefault(logger)

	slog.Info("soundbank starting",
		"config", *configPath,
		"sounds_dir", cfg.Storage.SoundsDir,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	if err := os.MkdirAll(cfg.Storage.TempDir, 0o755); err != nil {
		slog.Error("failed to create upload temp dir", "err", err)
		return 1
	}

	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:  cfg.Discord.Token,
		Prefix: cfg.Discord.Prefix,
	})
	if err != nil {
		slog.Error("failed to connect to Discord", "err", err)
		return 1
	}
	defer func() {
		if err := bot.Close(); err != nil {
			slog.Warn("discord close error", "err", err)
		}
	}()

	index := library.NewIndex(library.NewManifestStore(cfg.Storage.SoundsDir))
	uploads := upload.NewManager(index, &upload.HTTPDownloader{}, cfg.Storage.TempDir, cfg.Upload.SessionTTL)
	registry := voice.NewRegistry(bot.Platform(), metrics)
	controller := voice.NewController(index, registry, metrics, cfg.Playback.DefaultVolume)

	bot.Bind(ctx, &discordbot.Handlers{
		Index:      index,
		Uploads:    uploads,
		Controller: controller,
		Registry:   registry,
		Metrics:    metrics,
	})

	// Guilds already in gateway state load now; later joins load via the
	// guild-create event.
	if err := index.InitializeAll(bot.GuildIDs()); err != nil {
		slog.Error("failed to load sound libraries", "err", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(
			health.Probe{Name: "gateway", Check: func(context.Context) error {
				if bot.Session().HeartbeatLatency() > 30*time.Second {
					return errors.New("gateway heartbeat stalled")
				}
				return nil
			}},
			health.Probe{Name: "storage", Check: func(context.Context) error {
				_, err := os.Stat(cfg.Storage.SoundsDir)
				return err
			}},
		).Register(mux)
		metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}

		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(closeCtx)
		})
	}

	slog.Info("soundbank ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
