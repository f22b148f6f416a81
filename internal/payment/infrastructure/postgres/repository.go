package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	bookingdomain "github.com/altayar/travel-payments/internal/booking/domain"
	orderdomain "github.com/altayar/travel-payments/internal/order/domain"
	"github.com/altayar/travel-payments/internal/payment/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const paymentColumns = `id, number, user_id, order_id, booking_id, payment_type, amount, currency,
	COALESCE(method,''), provider, status, COALESCE(provider_transaction_id,''),
	COALESCE(provider_invoice_id,''), COALESCE(provider_reference_id,''), idempotency_key,
	provider_response, webhook_payload, webhook_received_at, refund_amount,
	COALESCE(refund_reason,''), refund_requested_at, refund_processed_at,
	COALESCE(error_message,''), paid_at, failed_at, expired_at, created_at, updated_at`

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	var method, provider, status string
	err := row.Scan(
		&p.ID, &p.Number, &p.UserID, &p.OrderID, &p.BookingID, &p.Type, &p.Amount, &p.Currency,
		&method, &provider, &status, &p.ProviderTransactionID,
		&p.ProviderInvoiceID, &p.ProviderReferenceID, &p.IdempotencyKey,
		&p.ProviderResponse, &p.WebhookPayload, &p.WebhookReceivedAt, &p.RefundAmount,
		&p.RefundReason, &p.RefundRequestedAt, &p.RefundProcessedAt,
		&p.ErrorMessage, &p.PaidAt, &p.FailedAt, &p.ExpiredAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, domain.ErrNotFound
		}
		return domain.Payment{}, err
	}
	p.Method = domain.Method(method)
	p.Provider = domain.Provider(provider)
	p.Status = domain.Status(status)
	return p, nil
}

func (r *Repository) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (id, number, user_id, order_id, booking_id, payment_type, amount,
			currency, provider, status, idempotency_key, refund_amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,0,$12,$13)`,
		p.ID, p.Number, p.UserID, p.OrderID, p.BookingID, p.Type, p.Amount,
		p.Currency, p.Provider, p.Status, p.IdempotencyKey, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

func (r *Repository) GetForUser(ctx context.Context, id, userID string) (domain.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id=$1 AND user_id=$2`, id, userID))
}

func (r *Repository) FindByInvoiceID(ctx context.Context, invoiceID string) (domain.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_invoice_id=$1`, invoiceID))
}

func (r *Repository) FindPendingByBooking(ctx context.Context, bookingID string) (domain.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE booking_id=$1 AND status='PENDING'
		 ORDER BY created_at LIMIT 1`, bookingID))
}

func (r *Repository) RefreshAttempt(ctx context.Context, p *domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET amount=$2, currency=$3, provider=$4, idempotency_key=$5, updated_at=now()
		WHERE id=$1`,
		p.ID, p.Amount, p.Currency, p.Provider, p.IdempotencyKey,
	)
	return err
}

func (r *Repository) SaveProviderDetails(ctx context.Context, p *domain.Payment) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET provider_transaction_id=$2, provider_invoice_id=$3,
			provider_reference_id=$4, provider_response=$5, updated_at=now()
		WHERE id=$1`,
		p.ID, p.ProviderTransactionID, p.ProviderInvoiceID, p.ProviderReferenceID, p.ProviderResponse,
	)
	return err
}

func (r *Repository) MarkInitiationFailed(ctx context.Context, id, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET status='FAILED', error_message=$2, failed_at=now(), updated_at=now()
		WHERE id=$1`, id, errMsg)
	return err
}

// ApplyOutcome commits a webhook (or manual) outcome in a single transaction:
// payment mutation, order cascade, booking cascade, the event's processed
// flag, and the outbox notification. A failure anywhere rolls everything
// back, so entities can never end up in different generations of the outcome.
func (r *Repository) ApplyOutcome(ctx context.Context, p domain.Payment, eventID string, durationMS int64, notifType string, notifPayload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		UPDATE payments SET status=$2, method=NULLIF($3,''), provider=$4,
			webhook_payload=$5, webhook_received_at=$6, error_message=NULLIF($7,''),
			paid_at=$8, failed_at=$9, expired_at=$10, updated_at=now()
		WHERE id=$1`,
		p.ID, p.Status, string(p.Method), p.Provider,
		p.WebhookPayload, p.WebhookReceivedAt, p.ErrorMessage,
		p.PaidAt, p.FailedAt, p.ExpiredAt,
	)
	if err != nil {
		return err
	}

	if p.Status == domain.StatusPaid {
		now := time.Now().UTC()
		if p.OrderID != nil {
			if err := r.cascadeOrder(ctx, tx, *p.OrderID, now); err != nil {
				return err
			}
		}
		if p.BookingID != nil {
			if err := r.cascadeBooking(ctx, tx, *p.BookingID, now); err != nil {
				return err
			}
		}
	}

	if eventID != "" {
		_, err = tx.Exec(ctx, `
			UPDATE webhook_events SET processed=true, processed_at=now(), duration_ms=$2
			WHERE id=$1`, eventID, durationMS)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('payment',$1,$2,$3,$4,'pending')`,
		p.ID, notifType, notifPayload, traceparent,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) cascadeOrder(ctx context.Context, tx pgx.Tx, orderID string, now time.Time) error {
	var o orderdomain.Order
	err := tx.QueryRow(ctx, `
		SELECT id, status, payment_status FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.Status, &o.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Warn("linked order missing", "order_id", orderID)
			return nil
		}
		return err
	}

	o.ApplyPaid(now)
	_, err = tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, paid_at=$4, updated_at=$4 WHERE id=$1`,
		o.ID, o.Status, o.PaymentStatus, now,
	)
	if err != nil {
		return err
	}
	r.log.Info("order marked paid", "order_id", o.ID)

	// Order lines may embed booking references; a paid order confirms them.
	rows, err := tx.Query(ctx, `
		SELECT booking_id FROM order_items
		WHERE order_id=$1 AND booking_id IS NOT NULL AND booking_id <> ''`, orderID)
	if err != nil {
		return err
	}
	var bookingIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		bookingIDs = append(bookingIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range bookingIDs {
		if err := r.cascadeBooking(ctx, tx, id, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) cascadeBooking(ctx context.Context, tx pgx.Tx, bookingID string, now time.Time) error {
	var b bookingdomain.Booking
	err := tx.QueryRow(ctx, `
		SELECT id, status, payment_status FROM bookings WHERE id=$1 FOR UPDATE`, bookingID).
		Scan(&b.ID, &b.Status, &b.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Warn("linked booking missing", "booking_id", bookingID)
			return nil
		}
		return err
	}

	b.ApplyPaid(now)
	_, err = tx.Exec(ctx, `
		UPDATE bookings SET status=$2, payment_status=$3, paid_at=$4, confirmed_at=$5, updated_at=$4
		WHERE id=$1`,
		b.ID, b.Status, b.PaymentStatus, now, b.ConfirmedAt,
	)
	if err != nil {
		return err
	}
	r.log.Info("booking synced from payment", "booking_id", b.ID, "status", b.Status)
	return nil
}
