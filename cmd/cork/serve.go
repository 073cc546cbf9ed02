package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/backup"
	"github.com/alfredjeanlab/corkboard/internal/broker"
	"github.com/alfredjeanlab/corkboard/internal/config"
	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/relay"
	"github.com/alfredjeanlab/corkboard/internal/server"
	"github.com/alfredjeanlab/corkboard/internal/store"
	"github.com/alfredjeanlab/corkboard/internal/store/memory"
	"github.com/alfredjeanlab/corkboard/internal/store/postgres"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the board server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// No client connection needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		var closers []io.Closer
		closers = append(closers, st)
		defer func() {
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i].Close(); err != nil {
					logger.Error("close error", "err", err)
				}
			}
		}()

		// Broker and optional cross-instance relay.
		b := broker.New(broker.Options{HistorySize: cfg.HistorySize, Logger: logger})
		relayClosers, err := attachRelay(cfg, b, logger)
		if err != nil {
			return err
		}
		closers = append(closers, relayClosers...)
		b.StartKeepalive(cfg.KeepaliveInterval)

		boardServer := server.NewBoardServer(st, b, server.Options{
			SubmitRate:   rate.Limit(cfg.SubmitRate),
			SubmitBurst:  cfg.SubmitBurst,
			PingInterval: cfg.KeepaliveInterval,
		})
		boardServer.StartPresence(cfg.CursorTTL, cfg.CursorSweep)

		// gRPC health listener.
		grpcServer, healthServer := server.NewGRPCServer()
		if cfg.GRPCEnabled() {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				boardServer.Close()
				b.Stop()
				return err
			}
			go func() {
				logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           boardServer.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startBackups(cfg, st, logger)

		logger.Info("corkboard server started",
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
			"history", cfg.HistorySize,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("backup scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		healthServer.Shutdown()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		boardServer.Close()
		b.Stop()

		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("debug", false, "enable debug logging")
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("CORK_DATABASE_URL not set, notes are kept in memory only")
		return memory.New(), nil
	}
	st, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("postgres store connected")
	return st, nil
}

func attachRelay(cfg *config.Config, b *broker.Broker, logger *slog.Logger) ([]io.Closer, error) {
	instance := cfg.RelayInstance
	if instance == "" {
		instance = idgen.Session()
	}

	switch {
	case cfg.NATSURL != "":
		pub, err := relay.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		sub, err := relay.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			pub.Close()
			return nil, err
		}
		if err := b.AttachRelay(pub, sub, cfg.RelaySubject, instance); err != nil {
			sub.Close()
			pub.Close()
			return nil, err
		}
		logger.Info("relay enabled", "nats_url", cfg.NATSURL, "subject", cfg.RelaySubject, "instance", instance)
		return []io.Closer{pub, sub}, nil

	case cfg.RedisAddr != "":
		r, err := relay.NewRedis(context.Background(), cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		if err := b.AttachRelay(r, r, cfg.RelaySubject, instance); err != nil {
			r.Close()
			return nil, err
		}
		logger.Info("relay enabled", "redis_addr", cfg.RedisAddr, "subject", cfg.RelaySubject, "instance", instance)
		return []io.Closer{r}, nil
	}

	logger.Info("relay disabled (CORK_NATS_URL and CORK_REDIS_ADDR not set)")
	return nil, nil
}

// startBackups returns a running scheduler, or nil when no destination is
// configured or the interval is zero.
func startBackups(cfg *config.Config, st store.Store, logger *slog.Logger) *backup.Scheduler {
	if cfg.BackupInterval <= 0 {
		return nil
	}
	var dests []backup.Destination

	if cfg.BackupS3Bucket != "" {
		s3Dest, err := backup.NewS3Destination(
			context.Background(),
			cfg.BackupS3Bucket,
			cfg.BackupS3Key,
			cfg.BackupS3Region,
			cfg.BackupS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 backup destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("backup S3 destination enabled", "bucket", cfg.BackupS3Bucket, "key", cfg.BackupS3Key)
		}
	}

	if cfg.BackupGitRepo != "" {
		dests = append(dests, backup.NewGitDestination(cfg.BackupGitRepo, cfg.BackupGitFile, cfg.BackupGitBranch))
		logger.Info("backup git destination enabled", "repo", cfg.BackupGitRepo, "file", cfg.BackupGitFile)
	}

	if len(dests) == 0 {
		return nil
	}
	scheduler := backup.NewScheduler(st, dests, cfg.BackupInterval, logger)
	scheduler.Start()
	logger.Info("backup scheduler started", "interval", cfg.BackupInterval)
	return scheduler
}
