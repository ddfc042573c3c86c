package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quadlink/internal/daemon"
	"quadlink/internal/health"
	"quadlink/internal/platform/config"
	"quadlink/internal/platform/logger"
	"quadlink/internal/platform/metrics"
	"quadlink/internal/quadstream"
	"quadlink/internal/twitch"
	"quadlink/internal/webhook"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.LoadEnv()

	var (
		configPath string
		interval   int
		oneShot    bool
		logLevel   string
		logFormat  string
		healthAddr string
	)

	cmd := &cobra.Command{
		Use:           "quadlinkd",
		Short:         "QuadLink stream curation daemon",
		Long:          "quadlinkd continuously selects four live streams for a QuadStream quad based on configurable rules and priorities.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, interval, oneShot, logLevel, logFormat, healthAddr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml (default: auto-discover from standard paths)")
	flags.IntVar(&interval, "interval", config.GetEnvInt("QL_INTERVAL", 30), "seconds between quad updates")
	flags.BoolVar(&oneShot, "one-shot", false, "run once and exit")
	flags.StringVar(&logLevel, "log-level", config.GetEnv("QL_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", config.GetEnv("QL_LOG_FORMAT", "json"), "log format (json, text)")
	flags.StringVar(&healthAddr, "health-addr", config.GetEnv("QL_HEALTH_ADDR", ""), "health server listen address (e.g. :8080); empty disables it")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, interval int, oneShot bool, logLevel, logFormat, healthAddr string) error {
	log := logger.New(logLevel, logFormat)

	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %d", interval)
	}

	cfg, cfgPath, notes, err := config.Load(configPath)
	if err != nil {
		return err
	}
	for _, note := range notes {
		log.Warn("config normalized", slog.String("note", note))
	}
	log.Info("config loaded", slog.String("path", cfgPath))

	met := metrics.New()
	source := twitch.NewClient(cfg.Twitch.ClientID, cfg.Twitch.ClientSecret, log)
	sink := quadstream.NewClient(cfg.QuadStream.BaseURL, cfg.Credentials.Username, cfg.Credentials.Secret, log)

	var notifier daemon.Notifier
	if cfg.Webhook.Enabled {
		notifier = webhook.NewNotifier(cfg.Webhook.URL, time.Duration(cfg.Webhook.Timeout)*time.Second, log)
	}

	d := daemon.New(log, met, source, sink, notifier, time.Duration(interval)*time.Second, oneShot)
	if err := d.Reload(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mode := "daemon"
	if oneShot {
		mode = "one-shot"
	}
	log.Info("starting quadlink",
		slog.String("mode", mode),
		slog.Int("interval", interval),
		slog.Int("channels", len(cfg.Channels)))

	// cancelRun stops the auxiliary tasks once the cycle loop finishes,
	// which in one-shot mode happens after a single cycle.
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancelRun()
		return d.Run(ctx)
	})

	if !oneShot {
		g.Go(func() error {
			return config.Watch(ctx, cfgPath, log, func(updated *config.Config) {
				if err := d.Reload(updated); err != nil {
					log.Error("config reload rejected, keeping previous config",
						slog.String("error", err.Error()))
				}
			})
		})
	}

	if healthAddr != "" {
		srv := &http.Server{
			Addr:    healthAddr,
			Handler: health.New(log, met, d.Ready, d.Snapshot).Router(),
		}

		g.Go(func() error {
			log.Info("health server starting", slog.String("addr", healthAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("quadlink stopped")
	return nil
}
