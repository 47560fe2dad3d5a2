package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/pkg/database"
)

const upsertUserSQL = `
	INSERT INTO users (id, email, is_admin)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, is_admin = EXCLUDED.is_admin`

const upsertProductSQL = `
	INSERT INTO products (id, name, description, price, images)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		images = EXCLUDED.images`

func defaultUsers(adminEmail string) []domain.Buyer {
	return []domain.Buyer{
		{ID: "admin-1", Email: adminEmail, IsAdmin: true},
		{ID: "buyer-1", Email: "buyer@clothing-shop.local"},
	}
}

func defaultProducts() []domain.Product {
	return []domain.Product{
		product("tee-classic", "Classic Cotton Tee", "Heavyweight cotton crew neck.", "19.99"),
		product("denim-jacket", "Denim Jacket", "Stonewashed trucker jacket.", "64.00"),
		product("linen-shirt", "Linen Shirt", "Relaxed fit, button down.", "42.50"),
		product("chino-slim", "Slim Chinos", "Stretch twill, tapered leg.", "38.00"),
		product("wool-beanie", "Wool Beanie", "Ribbed merino knit.", "15.00"),
	}
}

func product(id, name, description, price string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        name,
		Description: description,
		Price:       decimal.RequireFromString(price),
		Images:      []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/800", id)},
	}
}

// seed upserts users and products in one transaction, so it can be rerun.
func seed(ctx context.Context, db database.DBTX, users []domain.Buyer, products []domain.Product, logger *slog.Logger) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, u := range users {
		if _, err := tx.Exec(ctx, upsertUserSQL, u.ID, u.Email, u.IsAdmin); err != nil {
			return fmt.Errorf("upsert user %s: %w", u.ID, err)
		}
	}
	for _, p := range products {
		if _, err := tx.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Description, p.Price, p.Images); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	logger.Info("seeded catalog",
		slog.Int("users", len(users)),
		slog.Int("products", len(products)),
	)
	return nil
}
