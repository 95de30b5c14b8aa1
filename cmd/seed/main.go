package main

import (
	"context"
	"log"

	"budgetbook/internal/config"
	"budgetbook/internal/logger"
	"budgetbook/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// seed creates the tables when they are missing, inserts the singleton
// ledger row if none exists and loads a few sample items. Safe to re-run.

var schema = []string{
	`CREATE TABLE IF NOT EXISTS userinfo (
		id SERIAL PRIMARY KEY,
		total_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
		payments DOUBLE PRECISION NOT NULL DEFAULT 0,
		remaining_budget DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		quantity INTEGER NOT NULL,
		category TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

var sampleItems = []model.Item{
	{Name: "moze", Price: 10.5, Quantity: 2, Category: "food"},
	{Name: "plos", Price: 100, Quantity: 1, Category: "close"},
	{Name: "gazma", Price: 80, Quantity: 3, Category: "food"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Development, logger.LogLevel(cfg.LogLevel)); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Get().Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Get().Fatal("failed to ping database", zap.Error(err))
	}

	for _, stmt := range schema {
		if _, err := dbPool.Exec(ctx, stmt); err != nil {
			logger.Get().Fatal("failed to create table", zap.Error(err))
		}
	}

	var ledgerRows int
	if err := dbPool.QueryRow(ctx, "SELECT COUNT(*) FROM userinfo").Scan(&ledgerRows); err != nil {
		logger.Get().Fatal("failed to count userinfo rows", zap.Error(err))
	}
	if ledgerRows == 0 {
		totalBudget, payments := 12000.0, 5000.0
		_, err := dbPool.Exec(ctx,
			"INSERT INTO userinfo (total_budget, payments, remaining_budget) VALUES ($1, $2, $3)",
			totalBudget, payments, totalBudget-payments,
		)
		if err != nil {
			logger.Get().Fatal("failed to seed user info", zap.Error(err))
		}
		logger.Get().Info("seeded user info",
			zap.Float64("total_budget", totalBudget),
			zap.Float64("payments", payments))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, it := range sampleItems {
		it := it
		g.Go(func() error {
			_, err := dbPool.Exec(gctx,
				"INSERT INTO items (name, price, quantity, category) VALUES ($1, $2, $3, $4)",
				it.Name, it.Price, it.Quantity, it.Category,
			)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.Get().Fatal("failed to seed items", zap.Error(err))
	}

	logger.Get().Info("seed completed", zap.Int("items", len(sampleItems)))
}
