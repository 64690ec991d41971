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

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/formrelay/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/formrelay/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/formrelay/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/formrelay/internal/adapter/driving/web"
	"github.com/ericfisherdev/formrelay/internal/application"
	"github.com/ericfisherdev/formrelay/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	target := cfg.Target()
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"repo", target.FullName(),
		"workflow", target.Workflow,
		"ref", target.Ref,
		"dispatch_timeout", cfg.DispatchTimeout,
	)
	if !cfg.HasWebhookSecret() {
		slog.Warn("FORMRELAY_WEBHOOK_SECRET not set, submissions are accepted unsigned")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the dispatch ledger.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("database ready", "path", db.Path())

	// 4. Wire adapters and the relay service.
	dispatchStore := sqliteadapter.NewDispatchRepo(db)
	ghClient, err := githubadapter.NewClient(cfg.GitHubToken, cfg.GitHubAPIURL)
	if err != nil {
		return err
	}

	relaySvc := application.NewRelayService(
		ghClient,
		dispatchStore,
		target,
		application.MarkerRules{
			StartTitle: cfg.StartTitle,
			EndTitle:   cfg.EndTitle,
			StartInput: cfg.StartInput,
			EndInput:   cfg.EndInput,
		},
		cfg.DispatchTimeout,
		slog.Default(),
	)

	// A missing or disabled workflow is reported but does not stop the
	// server; every dispatch failure is recorded anyway.
	verifyCtx, cancelVerify := context.WithTimeout(ctx, cfg.DispatchTimeout)
	if wf, err := relaySvc.VerifyTarget(verifyCtx); err != nil {
		slog.Warn("workflow check failed", "workflow", target.Workflow, "error", err)
	} else {
		slog.Info("workflow found", "name", wf.Name, "path", wf.Path, "state", wf.State)
	}
	cancelVerify()

	// 5. Register API and web routes.
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(relaySvc, cfg.WebhookSecret, slog.Default()))
	webhandler.RegisterRoutes(mux, webhandler.NewHandler(relaySvc, cfg.Description, slog.Default()))

	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.DispatchTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("formrelay started", "listen_addr", cfg.ListenAddr)

	// 6. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// In-flight submissions get the dispatch timeout to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DispatchTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
