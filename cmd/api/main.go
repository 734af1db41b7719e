package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colepay/colepay/internal/api"
	"github.com/colepay/colepay/internal/audit"
	"github.com/colepay/colepay/internal/bank"
	"github.com/colepay/colepay/internal/config"
	"github.com/colepay/colepay/internal/ledger"
	"github.com/colepay/colepay/internal/store"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("configuration error")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.Env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx := context.Background()
	db, err := store.NewStore(ctx, cfg.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer db.Close()

	// Initialize layers.
	transport := bank.NewHTTPTransport(cfg.BankBaseURL, cfg.BankTimeout)
	client := bank.NewClient(transport, cfg.BankClientGUID, log)
	cascade := bank.NewCascade(client, log)

	detector := ledger.NewDetector(log, nil)
	ledgerSvc := ledger.NewService(db, detector, log, nil)

	reconciler, err := audit.NewReconciler(db, cfg.ReconcileSchedule, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid reconciliation schedule")
	}
	reconciler.Start()
	defer reconciler.Stop()

	handler := api.NewHandler(ledgerSvc, client, cascade, db, log)

	// Router.
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods(http.MethodGet)
	handler.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Establish the bank session up front; failures are retried lazily on
	// first use, so a bank outage does not block startup.
	if _, err := client.Authenticate(ctx); err != nil {
		log.Warn().Err(err).Msg("initial bank logon failed, will retry on demand")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
