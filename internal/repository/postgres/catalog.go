package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/pkg/database"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

const (
	getProductSQL  = `SELECT id, name, description, price, images FROM products WHERE id = $1`
	getProductsSQL = `SELECT id, name, description, price, images FROM products WHERE id = ANY($1)`
	getBuyerSQL    = `SELECT id, email, is_admin FROM users WHERE id = $1`
	getBuyersSQL   = `SELECT id, email, is_admin FROM users WHERE id = ANY($1)`
)

// CatalogRepository reads products and users owned by the storefront.
type CatalogRepository struct {
	pool database.DBTX
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog reader.
func NewCatalogRepository(pool database.DBTX) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, "GetProduct", getProductSQL)
	defer func() { end(err) }()

	var p domain.Product
	err = r.pool.QueryRow(ctx, getProductSQL, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Images)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

// GetProducts batch-loads products. Ids with no matching row are absent from
// the result.
func (r *CatalogRepository) GetProducts(ctx context.Context, ids []string) (_ map[string]domain.Product, err error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, end := database.TraceQuery(ctx, "GetProducts", getProductsSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Images); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if p.Images == nil {
			p.Images = []string{}
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) GetBuyer(ctx context.Context, id string) (_ *domain.Buyer, err error) {
	ctx, end := database.TraceQuery(ctx, "GetBuyer", getBuyerSQL)
	defer func() { end(err) }()

	var b domain.Buyer
	err = r.pool.QueryRow(ctx, getBuyerSQL, id).Scan(&b.ID, &b.Email, &b.IsAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &b, nil
}

// GetBuyers batch-loads users. Ids with no matching row are absent from the
// result.
func (r *CatalogRepository) GetBuyers(ctx context.Context, ids []string) (_ map[string]domain.Buyer, err error) {
	out := make(map[string]domain.Buyer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, end := database.TraceQuery(ctx, "GetBuyers", getBuyersSQL)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, getBuyersSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.Buyer
		if err := rows.Scan(&b.ID, &b.Email, &b.IsAdmin); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[b.ID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}
