package repositories

import (
	"context"
	"database/sql"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Postgres-backed implementation of the BatchRepository port. Stops live in
// batch_stops keyed by order id, which enforces one batch per stop.
type PostgresBatchRepository struct{ DB *sql.DB }

func NewPostgresBatchRepository(db *sql.DB) *PostgresBatchRepository {
	return &PostgresBatchRepository{DB: db}
}

const selectBatchColumns = `
	SELECT
		id, delivery_day, delivery_date, status, driver, route, history,
		created_at, updated_at, archived_at
	FROM delivery_batches
`

func (r *PostgresBatchRepository) Get(ctx context.Context, id string) (_ *domain.DeliveryBatch, err error) {
	defer obs.Time(ctx, "batch.repo.Get")(&err)

	if r.DB == nil {
		return nil, errors.New("postgres batch repository: DB is nil")
	}

	b, err := scanBatch(r.DB.QueryRowContext(ctx, selectBatchColumns+` WHERE id = $1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("batch", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", id, err)
	}

	if err := r.loadStops(ctx, b); err != nil {
		return nil, fmt.Errorf("get batch %s: %w", id, err)
	}
	return b, nil
}

func (r *PostgresBatchRepository) Put(ctx context.Context, b *domain.DeliveryBatch) (err error) {
	defer obs.Time(ctx, "batch.repo.Put")(&err)

	if r.DB == nil {
		return errors.New("postgres batch repository: DB is nil")
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("put batch: %w", err)
	}

	driver, err := json.Marshal(b.Driver)
	if err != nil {
		return fmt.Errorf("put batch %s: encode driver: %w", b.ID, err)
	}
	route, err := json.Marshal(b.Route)
	if err != nil {
		return fmt.Errorf("put batch %s: encode route: %w", b.ID, err)
	}
	history := b.History
	if history == nil {
		history = []domain.StatusChange{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("put batch %s: encode history: %w", b.ID, err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put batch %s: begin tx: %w", b.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO delivery_batches (
		id, delivery_day, delivery_date, status, driver, route, history,
		created_at, updated_at, archived_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
		driver = EXCLUDED.driver,
		route = EXCLUDED.route,
		history = EXCLUDED.history,
		updated_at = EXCLUDED.updated_at,
		archived_at = EXCLUDED.archived_at;
	`,
		b.ID, string(b.DeliveryDay), b.DeliveryDate, string(b.Status), nullJSON(driver), nullJSON(route), historyJSON,
		b.CreatedAt, b.UpdatedAt, b.ArchivedAt,
	); err != nil {
		return fmt.Errorf("put batch %s: upsert batch row: %w", b.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_stops WHERE batch_id = $1;`, b.ID); err != nil {
		return fmt.Errorf("put batch %s: clear stops: %w", b.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO batch_stops (order_id, batch_id, stop_number, payload)
	VALUES ($1, $2, $3, $4);
	`)
	if err != nil {
		return fmt.Errorf("put batch %s: prepare stop insert: %w", b.ID, err)
	}
	defer stmt.Close()

	for _, s := range b.Stops {
		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("put batch %s: encode stop %s: %w", b.ID, s.OrderID, err)
		}
		// A primary key violation here means the order already sits in another batch.
		if _, err := stmt.ExecContext(ctx, s.OrderID, b.ID, s.StopNumber, payload); err != nil {
			return fmt.Errorf("put batch %s: insert stop %s: %w", b.ID, s.OrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put batch %s: commit tx: %w", b.ID, err)
	}
	return nil
}

func (r *PostgresBatchRepository) ListByDay(ctx context.Context, day domain.Weekday) ([]*domain.DeliveryBatch, error) {
	return r.list(ctx, ` WHERE delivery_day = $1 ORDER BY delivery_date, id;`, string(day))
}

func (r *PostgresBatchRepository) List(ctx context.Context) ([]*domain.DeliveryBatch, error) {
	return r.list(ctx, ` ORDER BY delivery_date, id;`)
}

func (r *PostgresBatchRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.DeliveryBatch, error) {
	if r.DB == nil {
		return nil, errors.New("postgres batch repository: DB is nil")
	}

	var batchID string
	err := r.DB.QueryRowContext(ctx, `SELECT batch_id FROM batch_stops WHERE order_id = $1;`, orderID).Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("batch for order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("find batch for order %s: %w", orderID, err)
	}
	return r.Get(ctx, batchID)
}

// Delete relies on ON DELETE CASCADE to drop the batch's stop rows.
func (r *PostgresBatchRepository) Delete(ctx context.Context, id string) (err error) {
	defer obs.Time(ctx, "batch.repo.Delete")(&err)

	if r.DB == nil {
		return errors.New("postgres batch repository: DB is nil")
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM delivery_batches WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("delete batch %s: %w", id, err)
	}
	return nil
}

func (r *PostgresBatchRepository) list(ctx context.Context, where string, args ...any) ([]*domain.DeliveryBatch, error) {
	if r.DB == nil {
		return nil, errors.New("postgres batch repository: DB is nil")
	}

	rows, err := r.DB.QueryContext(ctx, selectBatchColumns+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: query delivery_batches table: %w", err)
	}
	defer rows.Close()

	batches := make([]*domain.DeliveryBatch, 0, 8)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("list batches: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list batches: row iteration: %w", err)
	}
	rows.Close()

	for _, b := range batches {
		if err := r.loadStops(ctx, b); err != nil {
			return nil, fmt.Errorf("list batches: %s: %w", b.ID, err)
		}
	}
	return batches, nil
}

func (r *PostgresBatchRepository) loadStops(ctx context.Context, b *domain.DeliveryBatch) error {
	rows, err := r.DB.QueryContext(ctx, `
	SELECT payload
	FROM batch_stops
	WHERE batch_id = $1
	ORDER BY stop_number;
	`, b.ID)
	if err != nil {
		return fmt.Errorf("query batch_stops table: %w", err)
	}
	defer rows.Close()

	b.Stops = make([]domain.Stop, 0, 16)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan stop: %w", err)
		}
		var s domain.Stop
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("decode stop: %w", err)
		}
		b.Stops = append(b.Stops, s)
	}
	return rows.Err()
}

func scanBatch(row rowScanner) (*domain.DeliveryBatch, error) {
	var (
		b                      domain.DeliveryBatch
		day, status            string
		driver, route, history []byte
		archivedAt             sql.NullTime
		deliveryDate           time.Time
	)
	if err := row.Scan(
		&b.ID, &day, &deliveryDate, &status, &driver, &route, &history,
		&b.CreatedAt, &b.UpdatedAt, &archivedAt,
	); err != nil {
		return nil, err
	}

	b.DeliveryDay = domain.Weekday(day)
	b.DeliveryDate = deliveryDate.UTC()
	b.Status = domain.BatchStatus(status)
	if archivedAt.Valid {
		at := archivedAt.Time.UTC()
		b.ArchivedAt = &at
	}

	if len(driver) > 0 {
		if err := json.Unmarshal(driver, &b.Driver); err != nil {
			return nil, fmt.Errorf("batch %s: decode driver: %w", b.ID, err)
		}
	}
	if len(route) > 0 {
		if err := json.Unmarshal(route, &b.Route); err != nil {
			return nil, fmt.Errorf("batch %s: decode route: %w", b.ID, err)
		}
	}
	if err := json.Unmarshal(history, &b.History); err != nil {
		return nil, fmt.Errorf("batch %s: decode history: %w", b.ID, err)
	}

	return &b, nil
}

// nullJSON stores a JSON null as SQL NULL.
func nullJSON(b []byte) any {
	if string(b) == "null" {
		return nil
	}
	return b
}
