package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/grapio/internal/config"
	"github.com/alfredjeanlab/grapio/internal/detect"
	"github.com/alfredjeanlab/grapio/internal/events"
	"github.com/alfredjeanlab/grapio/internal/flags"
	"github.com/alfredjeanlab/grapio/internal/metrics"
	"github.com/alfredjeanlab/grapio/internal/presence"
	"github.com/alfredjeanlab/grapio/internal/seed"
	"github.com/alfredjeanlab/grapio/internal/server"
	"github.com/alfredjeanlab/grapio/internal/store"
	"github.com/alfredjeanlab/grapio/internal/store/postgres"
	"github.com/alfredjeanlab/grapio/internal/store/sqlite"
	flagsync "github.com/alfredjeanlab/grapio/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the grapio gRPC and HTTP servers",
	GroupID:           "system",
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)
		slog.SetDefault(logger)

		st, err := openStore(cfg)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = events.Discard{}
			logger.Info("events disabled (GRAPIO_NATS_URL not set)")
		}

		locale, _ := cfg.DetectorLocale()
		m := metrics.New()
		opts := []flags.Option{flags.WithPublisher(publisher), flags.WithMetrics(m), flags.WithLogger(logger)}
		admin := flags.NewAdmin(st, opts...)
		provider := flags.NewProvider(st, detect.New(detect.WithLocale(locale)), opts...)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.SeedFile != "" {
			if err := applySeed(ctx, cfg.SeedFile, admin, logger); err != nil {
				publisher.Close()
				st.Close()
				return err
			}
			if cfg.SeedWatch {
				w := &seed.Watcher{Path: cfg.SeedFile, Set: seed.AdminSetter(admin), Logger: logger}
				go func() {
					if err := w.Run(ctx); err != nil {
						logger.Error("seed watcher stopped", "err", err)
					}
				}()
				logger.Info("watching seed file", "path", cfg.SeedFile)
			}
		}

		srv := server.New(admin, provider, st, m)
		srv.Presence.StartReaper(&presence.ReaperConfig{IdleThreshold: cfg.ConsumerIdle})
		grpcServer := srv.NewGRPCServer(cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(cfg, admin, logger)

		if cfg.AuthToken == "" {
			logger.Warn("authentication disabled (GRAPIO_AUTH_TOKEN not set)")
		}
		logger.Info("grapio server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"locale", locale.String(),
		)

		<-ctx.Done()
		logger.Info("shutting down")

		// Report NOT_SERVING first so load balancers drain before the
		// listeners close.
		srv.Health.Shutdown()

		srv.Presence.Stop()
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

// openStore connects to the database named by cfg.
func openStore(cfg *config.Config) (store.Store, error) {
	driver, err := cfg.Driver()
	if err != nil {
		return nil, err
	}
	if driver == config.DriverSQLite {
		return sqlite.New(sqlite.DSN(cfg.DatabaseURL))
	}
	return postgres.New(cfg.DatabaseURL)
}

func applySeed(ctx context.Context, path string, admin *flags.Admin, logger *slog.Logger) error {
	rep, err := seed.ApplyFile(ctx, path, seed.AdminSetter(admin))
	if err != nil {
		return err
	}
	for _, c := range rep.Conflicts {
		logger.Warn("seed entry rejected", "entry", c.Entry.String(), "reason", c.Message)
	}
	logger.Info("seed applied", "path", path, "applied", len(rep.Applied), "conflicts", len(rep.Conflicts))
	return nil
}

// startSync starts the snapshot scheduler when a destination is configured.
func startSync(cfg *config.Config, admin *flags.Admin, logger *slog.Logger) *flagsync.Scheduler {
	if !cfg.Sync.Enabled() {
		return nil
	}
	var dests []flagsync.Destination

	if cfg.Sync.S3Bucket != "" {
		s3Dest, err := flagsync.NewS3Destination(context.Background(),
			cfg.Sync.S3Bucket, cfg.Sync.S3Key, cfg.Sync.S3Region, cfg.Sync.S3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.Sync.S3Bucket, "key", cfg.Sync.S3Key)
		}
	}
	if cfg.Sync.GitRepo != "" {
		dests = append(dests, flagsync.NewGitDestination(cfg.Sync.GitRepo, cfg.Sync.GitFile, cfg.Sync.GitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.Sync.GitRepo, "file", cfg.Sync.GitFile)
	}
	if len(dests) == 0 {
		return nil
	}

	s := flagsync.NewScheduler(admin, dests, cfg.Sync.Interval, logger)
	s.Start()
	logger.Info("sync scheduler started", "interval", cfg.Sync.Interval)
	return s
}
