package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jacksonlee411/worklog/internal/config"
	"github.com/jacksonlee411/worklog/internal/server"
	"github.com/jacksonlee411/worklog/internal/storage"
	"github.com/jacksonlee411/worklog/modules/visibility"
	"github.com/jacksonlee411/worklog/pkg/authz"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeStorage, err := storage.Open(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStorage(context.Background()); err != nil {
			log.Warn("storage close failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ds := storage.NewDocStore(backend, cfg.Store, log.Named("docstore"), reg)

	policies, err := authz.LoadPolicies(cfg.Authz.PolicyFile)
	if err != nil {
		return fmt.Errorf("authz: load policies: %w", err)
	}
	mode, err := authz.ParseMode(cfg.Authz.Mode, cfg.Authz.AllowDisabled)
	if err != nil {
		return err
	}
	authorizer, err := authz.NewAuthorizer(policies, mode)
	if err != nil {
		return err
	}
	strategy, err := visibility.StrategyByName(cfg.Visibility.Strategy)
	if err != nil {
		return err
	}

	handler := server.NewHandler(server.BuildOptions(ds, backend, server.StackOptions{
		Authorizer:       authorizer,
		Strategy:         strategy,
		ExportsPerMinute: cfg.Export.MaxPerMinute,
		ExportKeyPrefix:  cfg.Export.KeyPrefix,
		Registry:         reg,
		Logger:           log,
	}))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("authz_mode", string(mode)),
			zap.String("strategy", strategy.Name()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
