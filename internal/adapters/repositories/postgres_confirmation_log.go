package repositories

import (
	"context"
	"database/sql"
	"delivery-batch-service/internal/domain"
	"errors"
	"fmt"
)

// PostgresConfirmationLog appends confirmations keyed by stop id. The primary
// key makes a second append for the same stop a no-op, reported as ErrAlreadyDelivered.
type PostgresConfirmationLog struct{ DB *sql.DB }

func NewPostgresConfirmationLog(db *sql.DB) *PostgresConfirmationLog {
	return &PostgresConfirmationLog{DB: db}
}

func (l *PostgresConfirmationLog) Append(ctx context.Context, c domain.DeliveryConfirmation) error {
	if l.DB == nil {
		return errors.New("postgres confirmation log: DB is nil")
	}

	res, err := l.DB.ExecContext(ctx, `
	INSERT INTO delivery_confirmations (stop_id, id, batch_id, delivered_at, photo_ref, notes)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (stop_id) DO NOTHING;
	`, c.StopID, c.ID, c.BatchID, c.DeliveredAt, c.PhotoRef, c.Notes)
	if err != nil {
		return fmt.Errorf("append confirmation for stop %s: %w", c.StopID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append confirmation for stop %s: rows affected: %w", c.StopID, err)
	}
	if n == 0 {
		return fmt.Errorf("append confirmation for stop %s: %w", c.StopID, domain.ErrAlreadyDelivered)
	}
	return nil
}

func (l *PostgresConfirmationLog) Get(ctx context.Context, stopID string) (domain.DeliveryConfirmation, error) {
	if l.DB == nil {
		return domain.DeliveryConfirmation{}, errors.New("postgres confirmation log: DB is nil")
	}

	var c domain.DeliveryConfirmation
	err := l.DB.QueryRowContext(ctx, `
	SELECT stop_id, id, batch_id, delivered_at, photo_ref, notes
	FROM delivery_confirmations
	WHERE stop_id = $1;
	`, stopID).Scan(&c.StopID, &c.ID, &c.BatchID, &c.DeliveredAt, &c.PhotoRef, &c.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeliveryConfirmation{}, domain.NotFound("confirmation", stopID)
	}
	if err != nil {
		return domain.DeliveryConfirmation{}, fmt.Errorf("get confirmation for stop %s: %w", stopID, err)
	}
	c.DeliveredAt = c.DeliveredAt.UTC()
	return c, nil
}
