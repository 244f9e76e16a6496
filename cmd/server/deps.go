package main

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservations/internal/availability"
	"github.com/iliyamo/table-reservations/internal/config"
	"github.com/iliyamo/table-reservations/internal/database"
	"github.com/iliyamo/table-reservations/internal/logger"
	"github.com/iliyamo/table-reservations/internal/repository"
)

func newLogger(cfg config.Config) zerolog.Logger {
	return logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	return database.Open(ctx, database.Settings{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
}

// newEvaluator builds the availability core over the MySQL store.
func newEvaluator(cfg config.Config, repo *repository.ReservationRepo) (*availability.Evaluator, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	return availability.NewEvaluator(catalog, availability.NewLedger(repo), cfg.Policy(),
		availability.WithLocation(cfg.Location))
}
