package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/altayar/travel-payments/internal/payment/domain"
)

// EventLogStore persists the webhook audit trail. Rows are append-only; only
// the processing flags and error text are ever updated.
type EventLogStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewEventLogStore(log *slog.Logger, pool *pgxpool.Pool) *EventLogStore {
	return &EventLogStore{log: log, pool: pool}
}

func (s *EventLogStore) SeenProcessed(ctx context.Context, provider domain.Provider, invoiceID, invoiceKey string, event domain.EventType) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM webhook_events
			WHERE provider=$1 AND invoice_id=$2 AND invoice_key=$3 AND event_type=$4 AND processed=true
		)`, provider, invoiceID, invoiceKey, event).Scan(&seen)
	return seen, err
}

func (s *EventLogStore) Insert(ctx context.Context, e *domain.WebhookEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_events (id, provider, event_type, invoice_id, invoice_key, reference_id,
			raw_payload, hash_received, hash_computed, is_valid, payment_id, processed, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,$12)`,
		e.ID, e.Provider, e.EventType, e.InvoiceID, e.InvoiceKey, e.ReferenceID,
		e.RawPayload, e.HashReceived, e.HashComputed, e.IsValid, e.PaymentID, e.CreatedAt,
	)
	return err
}

func (s *EventLogStore) MarkProcessed(ctx context.Context, id string, durationMS int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_events SET processed=true, processed_at=now(), duration_ms=$2 WHERE id=$1`,
		id, durationMS)
	return err
}

func (s *EventLogStore) RecordError(ctx context.Context, id, msg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE webhook_events SET error_message=$2 WHERE id=$1`, id, msg)
	return err
}

func (s *EventLogStore) List(ctx context.Context, invoiceID string, limit int) ([]domain.WebhookEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider, event_type, invoice_id, invoice_key, reference_id, hash_received,
			hash_computed, is_valid, payment_id, processed, processed_at,
			COALESCE(error_message,''), COALESCE(duration_ms,0), created_at
		FROM webhook_events
		WHERE ($1 = '' OR invoice_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`, invoiceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		var e domain.WebhookEvent
		if err := rows.Scan(&e.ID, &e.Provider, &e.EventType, &e.InvoiceID, &e.InvoiceKey,
			&e.ReferenceID, &e.HashReceived, &e.HashComputed, &e.IsValid, &e.PaymentID,
			&e.Processed, &e.ProcessedAt, &e.ErrorMessage, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
