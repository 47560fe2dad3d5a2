package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/pkg/database"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

const (
	insertOrderSQL = `
		INSERT INTO orders (id, buyer_id, total_amount, currency, shipping_details, payment_reference, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertOrderItemSQL = `
		INSERT INTO order_items (order_id, position, product_ref, quantity)
		VALUES ($1, $2, $3, $4)`

	// selectOrdersSQL loads orders with their items in a single query.
	selectOrdersSQL = `
		SELECT
			o.id::text, o.buyer_id, o.total_amount, o.currency, o.shipping_details,
			o.payment_reference, o.status, o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT('productRef', oi.product_ref, 'quantity', oi.quantity)
					ORDER BY oi.position
				) FILTER (WHERE oi.order_id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id`

	groupOrdersSQL = `
		GROUP BY o.id
		ORDER BY o.created_at DESC, o.id DESC`

	getOrderSQL     = selectOrdersSQL + ` WHERE o.id = $1` + groupOrdersSQL
	listByBuyerSQL  = selectOrdersSQL + ` WHERE o.buyer_id = $1` + groupOrdersSQL
	listAllSQL      = selectOrdersSQL + groupOrdersSQL
	updateStatusSQL = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
	now  func() time.Time
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool, now: time.Now}
}

// Create inserts a new order and its items atomically within a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", insertOrderSQL)
	defer func() { end(err) }()

	shippingJSON, err := json.Marshal(o.ShippingDetails)
	if err != nil {
		return fmt.Errorf("marshal shipping details: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID,
		o.BuyerID,
		o.TotalAmount,
		o.Currency,
		shippingJSON,
		o.PaymentReference,
		string(o.Status),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items {
		if _, err = tx.Exec(ctx, insertOrderItemSQL, o.ID, i, item.ProductRef, item.Quantity); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID, eagerly loading its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "GetOrder", getOrderSQL)
	defer func() { end(err) }()

	o, err := scanOrder(r.pool.QueryRow(ctx, getOrderSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, err
	}
	return o, nil
}

// ListByBuyer returns the buyer's orders, most recent first.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) (_ []domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "ListOrdersByBuyer", listByBuyerSQL)
	defer func() { end(err) }()

	return r.list(ctx, listByBuyerSQL, buyerID)
}

// ListAll returns every order, most recent first.
func (r *OrderRepository) ListAll(ctx context.Context) (_ []domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "ListAllOrders", listAllSQL)
	defer func() { end(err) }()

	return r.list(ctx, listAllSQL)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// UpdateStatus overwrites the status of an order. Concurrent updates are
// last-write-wins.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", updateStatusSQL)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, updateStatusSQL, string(status), r.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o            domain.Order
		status       string
		shippingJSON []byte
		itemsJSON    []byte
	)
	err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&o.TotalAmount,
		&o.Currency,
		&shippingJSON,
		&o.PaymentReference,
		&status,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	if len(shippingJSON) > 0 {
		if err := json.Unmarshal(shippingJSON, &o.ShippingDetails); err != nil {
			return nil, fmt.Errorf("unmarshal shipping details: %w", err)
		}
	}

	o.Items = []domain.OrderItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return &o, nil
}
