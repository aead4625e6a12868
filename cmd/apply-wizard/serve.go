package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/apply-wizard/internal/api"
	"github.com/terra-clan/apply-wizard/internal/cleanup"
	"github.com/terra-clan/apply-wizard/internal/config"
	"github.com/terra-clan/apply-wizard/internal/schema"
	"github.com/terra-clan/apply-wizard/internal/session"
	"github.com/terra-clan/apply-wizard/internal/wizard"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that exposes the wizard REST and websocket endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	slog.Info("starting apply-wizard",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"draft_backend", cfg.Drafts.Backend,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	store, err := openStore(initCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("draft store close error", "error", err)
		}
	}()

	catalog, err := schema.Load(cfg.Schema.Dir)
	if err != nil {
		return err
	}

	manager := session.NewManager(store, catalog, session.Options{
		KeyPrefix:    cfg.Drafts.KeyPrefix,
		Email:        wizard.NewSharedEmailChecker(wizard.SimulatedEmailChecker{Delay: cfg.Wizard.EmailCheckDelay}),
		Submitter:    wizard.SimulatedSubmitter{Delay: cfg.Wizard.SubmitDelay},
		WriteTimeout: cfg.Drafts.WriteTimeout,
	})

	cleaner := cleanup.NewCleaner(manager, cfg.Cleanup.Interval, cfg.Cleanup.SessionIdle)
	if expirer, ok := store.(cleanup.DraftExpirer); ok && cfg.Drafts.Backend == config.BackendPostgres {
		cleaner = cleaner.WithDraftExpiry(expirer, cfg.Drafts.TTL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleaner.Start(ctx)

	server := api.NewServer(cfg.Server, cfg.RateLimit, manager, catalog)
	httpServer := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
			return err
		}
	}

	slog.Info("shutting down gracefully...")

	// Stop background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Flush pending drafts before the store closes
	manager.Shutdown(shutdownCtx)

	slog.Info("apply-wizard stopped")
	return nil
}
