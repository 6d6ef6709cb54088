// Command legacyimport migrates the retired SQLite study database into the
// PostgreSQL schema. Run it once, against an empty target database.
package main

import (
	"context"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namsral/flag"
	"github.com/rs/zerolog/log"

	"github.com/k-comunity/prisma_srs/internal/legacyimport"
	"github.com/k-comunity/prisma_srs/internal/stores/models"
)

type Config struct {
	DBConnUri        string
	DBMigrationsPath string
	SqliteFile       string
}

func (c *Config) Load(args []string) error {
	fs := flag.NewFlagSet("legacyimport", flag.ContinueOnError)

	fs.StringVar(&c.DBConnUri, "db-conn-uri", "", "the postgres database connection URI")
	fs.StringVar(&c.DBMigrationsPath, "db-migrations-path", "file://db/migrations", "the path where the migrations live")
	fs.StringVar(&c.SqliteFile, "sqlite-file", "prisma_srs.db", "the legacy SQLite database file")
	return fs.Parse(args)
}

func main() {
	cfg := &Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		panic(err)
	}
	ctx := log.Logger.WithContext(context.Background())

	m, err := migrate.New(cfg.DBMigrationsPath, cfg.DBConnUri)
	if err != nil {
		log.Fatal().Err(err).Msg("new-migrate")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal().Err(err).Msg("up-migrate")
	}
	m.Close()

	dbPool, err := pgxpool.New(ctx, cfg.DBConnUri)
	if err != nil {
		log.Fatal().Err(err).Msg("new-pool")
	}
	defer dbPool.Close()

	stats, err := legacyimport.Run(ctx, models.New(dbPool), dbPool, cfg.SqliteFile, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("import-failed")
	}
	log.Info().
		Int("accounts", stats.Accounts).
		Int("items", stats.Items).
		Int("memory-states", stats.MemoryStates).
		Int("skipped", stats.Skipped).
		Msg("import-complete")
}
