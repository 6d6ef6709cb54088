package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/config"
	"github.com/k-comunity/prisma_srs/internal/activity"
	"github.com/k-comunity/prisma_srs/internal/lifecycle"
	"github.com/k-comunity/prisma_srs/internal/reviewvault"
	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

const (
	GracefulShutdownTimeout = 10 * time.Second
)

func main() {
	cfg := &config.Config{}
	err := cfg.Load(os.Args[1:])
	if err != nil {
		panic(err)
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if strings.ToLower(cfg.LogLevel) == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Info().Interface("config", cfg).Msg("started with config")

	m, err := migrate.New(cfg.DBMigrationsPath, cfg.DBConnUri)
	if err != nil {
		log.Fatal().Err(err).Msg("new-migrate")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal().Err(err).Msg("up-migrate")
	}
	e1, e2 := m.Close()
	if e1 != nil || e2 != nil {
		log.Fatal().AnErr("close-source", e1).AnErr("close-database", e2).Msg("close-migrate")
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.DBConnUri)
	if err != nil {
		log.Fatal().Err(err).Msg("new-pool")
	}
	defer dbPool.Close()
	queries := models.New(dbPool)

	vault := reviewvault.NewServer(cfg, dbPool, queries)
	engine := lifecycle.NewEngine(cfg, dbPool, queries)
	ledger := activity.NewLedger(queries)

	api := &apiHandler{cfg: cfg, vault: vault, engine: engine, ledger: ledger}

	authed := alice.New(loggingMiddleware, authMiddleware([]byte(cfg.SecretKey)))
	admin := authed.Append(adminOnlyMiddleware)
	open := alice.New(loggingMiddleware)

	mux := http.NewServeMux()
	mux.Handle("POST /api/register", open.ThenFunc(api.register))
	mux.Handle("POST /api/login/evaluate", open.ThenFunc(api.evaluateLogin))
	mux.Handle("POST /api/items", authed.ThenFunc(api.createItem))
	mux.Handle("GET /api/items/next", authed.ThenFunc(api.nextItem))
	mux.Handle("POST /api/items/check", authed.ThenFunc(api.checkAnswer))
	mux.Handle("GET /api/items/{id}/card", authed.ThenFunc(api.cardInfo))
	mux.Handle("POST /api/items/{id}/grade", authed.ThenFunc(api.gradeItem))
	mux.Handle("GET /api/items/mine", authed.ThenFunc(api.listOwnItems))
	mux.Handle("POST /api/items/{id}/vote", authed.ThenFunc(api.voteItem))
	mux.Handle("POST /api/items/{id}/status", admin.ThenFunc(api.moderateItem))
	mux.Handle("POST /api/events", authed.ThenFunc(api.recordEvent))
	mux.Handle("GET /api/stats", authed.ThenFunc(api.userStats))
	mux.Handle("GET /api/lifecycle/score", authed.ThenFunc(api.lifecycleScore))
	mux.Handle("POST /api/lifecycle/intensive", admin.ThenFunc(api.setIntensive))
	mux.Handle("GET /api/lifecycle/pending", admin.ThenFunc(api.listPendingDelete))
	mux.Handle("POST /api/lifecycle/pardon", admin.ThenFunc(api.pardon))
	mux.Handle("POST /api/accounts/{username}/approve", admin.ThenFunc(api.approveAccount))
	mux.Handle("DELETE /api/accounts/{username}", admin.ThenFunc(api.removeAccount))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	idleConnsClosed := make(chan struct{})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		// We received an interrupt signal, shut down.
		log.Info().Msg("got quit signal...")
		ctx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)

		if err := srv.Shutdown(ctx); err != nil {
			// Error from closing listeners, or context timeout:
			log.Error().Msgf("HTTP server Shutdown: %v", err)
		}
		cancel()
		close(idleConnsClosed)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("")
	}
	<-idleConnsClosed
	log.Info().Msg("server gracefully shutting down")
}
