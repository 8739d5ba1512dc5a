package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/eventgate/server/internal/db"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/metrics"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/notify/redissink"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/service"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/store/sqlite"
	"github.com/BrandonDHaskell/eventgate/server/internal/grpcapi"
	"github.com/BrandonDHaskell/eventgate/server/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("http-addr", "", "HTTP listen address")
	flags.String("grpc-addr", "", "gRPC health listen address")
	flags.String("session-mode", "", `session discipline: "single" or "reentry"`)
	_ = a.v.BindPFlag("http_addr", flags.Lookup("http-addr"))
	_ = a.v.BindPFlag("grpc_addr", flags.Lookup("grpc-addr"))
	_ = a.v.BindPFlag("session_mode", flags.Lookup("session-mode"))

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.SeedDev {
		if cfg.Env != "dev" {
			logger.Warn("seed_dev ignored outside dev", "env", cfg.Env)
		} else {
			n, err := db.SeedDev(ctx, conn, db.DevParticipants)
			if err != nil {
				return err
			}
			logger.Info("dev participants seeded", "count", n)
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	participants := sqlite.NewParticipantStore(conn, writer)
	sessions := sqlite.NewSessionStore(conn, writer)
	scanLog := sqlite.NewScanLog(conn, writer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var sinks []service.Sink
	rc, err := redissink.NewClient(ctx, redissink.Config{URL: cfg.RedisURL, DialTimeout: 3 * time.Second})
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
		sinks = append(sinks, redissink.New(rc, cfg.RedisChannel))
		logger.Info("redis presence sink enabled", "channel", cfg.RedisChannel)
	}

	notifier := service.NewNotifier(service.NotifierConfig{}, logger, m, sinks...)
	notifier.Start(ctx)
	defer notifier.Stop()

	registry := service.NewPresenceRegistry(sessions, notifier, logger, m)

	mode, err := service.ParseSessionMode(cfg.SessionMode)
	if err != nil {
		return err
	}
	validation := service.NewValidationService(service.ValidationDeps{
		Participants: participants,
		Sessions:     sessions,
		ScanLog:      scanLog,
		Registry:     registry,
		Mode:         mode,
		Logger:       logger,
		Metrics:      m,
	})

	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:            logger,
		Addr:              cfg.HTTPAddr,
		ValidationService: validation,
		Notifier:          notifier,
		Gatherer:          reg,
	})
	grpcSrv := grpcapi.NewServer(logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "session_mode", validation.Mode())
		return httpSrv.Start()
	})
	g.Go(func() error {
		logger.Info("grpc listening", "addr", lis.Addr().String())
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		n, err := registry.InitializeState(gctx)
		if err != nil {
			return fmt.Errorf("initialize presence: %w", err)
		}
		grpcSrv.SetReady()
		logger.Info("presence restored", "present", n)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcSrv.Shutdown(shutdownCtx)
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "err", err)
		return err
	}
	return nil
}
