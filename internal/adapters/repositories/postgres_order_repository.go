package repositories

import (
	"context"
	"database/sql"
	"delivery-batch-service/internal/domain"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Postgres-backed implementation of the OrderRepository port.
type PostgresOrderRepository struct{ DB *sql.DB }

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{DB: db}
}

const selectOrderColumns = `
	SELECT
		id, order_number, status, shipping_method, destination, items,
		total_value, customer, created_at, special_instructions, priority
	FROM orders
`

func (r *PostgresOrderRepository) ListOrders(ctx context.Context) ([]domain.Order, error) {
	if r.DB == nil {
		return nil, errors.New("postgres order repository: DB is nil")
	}

	rows, err := r.DB.QueryContext(ctx, selectOrderColumns+` ORDER BY created_at, id;`)
	if err != nil {
		return nil, fmt.Errorf("list orders: query orders table: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: row iteration: %w", err)
	}

	return orders, nil
}

func (r *PostgresOrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if r.DB == nil {
		return domain.Order{}, errors.New("postgres order repository: DB is nil")
	}

	row := r.DB.QueryRowContext(ctx, selectOrderColumns+` WHERE id = $1;`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.NotFound("order", id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o                           domain.Order
		status, method, total       string
		destination, items, contact []byte
	)
	if err := row.Scan(
		&o.ID, &o.OrderNumber, &status, &method, &destination, &items,
		&total, &contact, &o.CreatedAt, &o.SpecialInstructions, &o.Priority,
	); err != nil {
		return domain.Order{}, err
	}

	o.Status = domain.OrderStatus(status)
	o.ShippingMethod = domain.ShippingMethod(method)

	value, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: parse total value: %w", o.ID, err)
	}
	o.TotalValue = value

	if err := json.Unmarshal(destination, &o.Destination); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: decode destination: %w", o.ID, err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: decode items: %w", o.ID, err)
	}
	if err := json.Unmarshal(contact, &o.Customer); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: decode customer: %w", o.ID, err)
	}

	return o, nil
}

// SeedOrders upserts orders, e.g. from LoadOrdersJSON.
func SeedOrders(ctx context.Context, db *sql.DB, orders []domain.Order) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed orders: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO orders (
		id, order_number, status, shipping_method, destination, items,
		total_value, customer, created_at, special_instructions, priority
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE
	SET order_number = EXCLUDED.order_number,
		status = EXCLUDED.status,
		shipping_method = EXCLUDED.shipping_method,
		destination = EXCLUDED.destination,
		items = EXCLUDED.items,
		total_value = EXCLUDED.total_value,
		customer = EXCLUDED.customer,
		created_at = EXCLUDED.created_at,
		special_instructions = EXCLUDED.special_instructions,
		priority = EXCLUDED.priority;
	`)
	if err != nil {
		return fmt.Errorf("seed orders: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		destination, err := json.Marshal(o.Destination)
		if err != nil {
			return fmt.Errorf("seed orders: encode destination %s: %w", o.ID, err)
		}
		items, err := json.Marshal(o.Items)
		if err != nil {
			return fmt.Errorf("seed orders: encode items %s: %w", o.ID, err)
		}
		contact, err := json.Marshal(o.Customer)
		if err != nil {
			return fmt.Errorf("seed orders: encode customer %s: %w", o.ID, err)
		}

		method := string(o.ShippingMethod)
		if method == "" {
			method = string(domain.ShippingStandard)
		}

		if _, err := stmt.ExecContext(ctx,
			o.ID, o.OrderNumber, string(o.Status), method, destination, items,
			o.TotalValue.StringFixed(2), contact, o.CreatedAt, o.SpecialInstructions, o.Priority,
		); err != nil {
			return fmt.Errorf("seed orders: insert id=%s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed orders: commit tx: %w", err)
	}

	return nil
}
