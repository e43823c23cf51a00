package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facturador/internal/config"
	"facturador/internal/infra"
	"facturador/internal/repository"
	"facturador/internal/router"
	"facturador/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Fiscal authority client: a single instance per process so the cached
	// authentication ticket and the circuit breaker are shared.
	breaker := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	signer := infra.NewFileSigner(cfg.AFIPCertPath, cfg.AFIPKeyPath)
	fiscal := infra.NewAFIPClient(cfg.AFIPWSAAURL, cfg.AFIPWSFEURL, cfg.AFIPCUIT, signer, breaker)
	mailer := infra.NewMailer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker pool for async tasks (PDF rendering, email, stock mirror sync).
	// Handlers are wired here at the composition root.
	dispatcher := worker.NewDispatcher(rdb)
	invoiceRepo := repository.NewInvoiceRepository(db)

	pool := worker.NewPool(rdb)
	pdfWorker := worker.NewInvoicePDFWorker(invoiceRepo, dispatcher, cfg.PDFStoragePath, cfg.BusinessName)
	pool.Register(worker.QueueInvoicePDF, pdfWorker.Process)
	pool.Register(worker.QueueEmail, worker.NewEmailWorker(mailer).Process)
	pool.Register(worker.QueueStockSync, worker.NewStockSyncWorker(cfg.MirrorURLs()).Process)
	pool.Start(ctx, cfg.WorkerPoolSize)

	r := router.New(cfg, db, rdb, fiscal, breaker, dispatcher)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("facturador backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
