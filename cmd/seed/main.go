// Package main seeds a development database with a small clothing catalog
// and two accounts, then prints bearer tokens for them.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/VictorEZCodes/clothing-shop/internal/config"
	"github.com/VictorEZCodes/clothing-shop/migrations"
	"github.com/VictorEZCodes/clothing-shop/pkg/database"
	"github.com/VictorEZCodes/clothing-shop/pkg/logger"
	"github.com/VictorEZCodes/clothing-shop/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		log.Error("connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Error("run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := seed(ctx, pool, defaultUsers(cfg.AdminEmail), defaultProducts(), log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, u := range defaultUsers(cfg.AdminEmail) {
		tok, err := middleware.SignToken([]byte(cfg.JWTSecret), u.ID, u.IsAdmin, 24*time.Hour)
		if err != nil {
			log.Error("sign token", slog.String("user_id", u.ID), slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("dev token",
			slog.String("user_id", u.ID),
			slog.Bool("is_admin", u.IsAdmin),
			slog.String("token", tok),
		)
	}

	log.Info("seed complete")
}
