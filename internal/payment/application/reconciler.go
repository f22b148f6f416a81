package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/altayar/travel-payments/internal/payment/domain"
	"github.com/altayar/travel-payments/pkg/idempotency"
	"github.com/altayar/travel-payments/pkg/tracing"
)

// TokenProcessor absorbs card-tokenization callbacks. Payment state is never
// touched on that path.
type TokenProcessor interface {
	ProcessTokenWebhook(ctx context.Context, p domain.WebhookPayload) error
}

// Reconciler is the webhook state machine: it classifies inbound events,
// enforces idempotency, verifies authenticity and commits the outcome cascade.
type Reconciler struct {
	log      *slog.Logger
	payments PaymentStore
	events   EventLog
	outcomes OutcomeStore
	gateway  Gateway
	vault    TokenProcessor
	claims   DeliveryClaims
	tracer   trace.Tracer
}

func NewReconciler(log *slog.Logger, payments PaymentStore, events EventLog, outcomes OutcomeStore, gateway Gateway, vault TokenProcessor, claims DeliveryClaims) *Reconciler {
	return &Reconciler{
		log:      log,
		payments: payments,
		events:   events,
		outcomes: outcomes,
		gateway:  gateway,
		vault:    vault,
		claims:   claims,
		tracer:   otel.Tracer("webhook-reconciler"),
	}
}

type ReconcileResult struct {
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	PaymentNumber string        `json:"payment_number,omitempty"`
	PaymentStatus domain.Status `json:"payment_status,omitempty"`
}

// Handle processes one webhook delivery end to end. Every inbound call is
// durably logged before any error propagates.
func (r *Reconciler) Handle(ctx context.Context, raw []byte) (ReconcileResult, error) {
	ctx, span := r.tracer.Start(ctx, "HandleWebhook")
	defer span.End()

	start := time.Now()

	payload, err := domain.NormalizeWebhook(raw)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}

	// Tokenization callbacks carry a card token instead of an invoice and
	// bypass the payment state machine entirely.
	if payload.IsTokenEvent() {
		if err := r.vault.ProcessTokenWebhook(ctx, payload); err != nil {
			return ReconcileResult{}, err
		}
		return ReconcileResult{Status: "success", Message: "token processed"}, nil
	}

	event := payload.EventType()
	r.log.Info("webhook received",
		"invoice_id", payload.InvoiceID,
		"invoice_key", payload.InvoiceKey,
		"status", payload.InvoiceStatus,
		"event", event,
	)

	claimKey := idempotency.Key(string(domain.ProviderFawaterk), payload.InvoiceID, payload.InvoiceKey, string(event))
	claimed, err := r.claims.Claim(ctx, claimKey)
	if err != nil {
		// A claim-store outage degrades to the durable check below.
		r.log.Warn("delivery claim unavailable", "err", err)
		claimed = true
	}
	if !claimed {
		return ReconcileResult{Status: "already_processed", Message: "duplicate delivery"}, domain.ErrAlreadyProcessed
	}

	seen, err := r.events.SeenProcessed(ctx, domain.ProviderFawaterk, payload.InvoiceID, payload.InvoiceKey, event)
	if err != nil {
		r.releaseClaim(ctx, claimKey)
		return ReconcileResult{}, err
	}
	if seen {
		return ReconcileResult{Status: "already_processed", Message: "webhook already processed"}, domain.ErrAlreadyProcessed
	}

	valid, computed := r.gateway.VerifySignature(payload, event)

	payment, findErr := r.payments.FindByInvoiceID(ctx, payload.InvoiceID)

	// The audit row is written before validity decides anything so that every
	// inbound call is recoverable, valid or not.
	logEntry := &domain.WebhookEvent{
		ID:           uuid.NewString(),
		Provider:     domain.ProviderFawaterk,
		EventType:    event,
		InvoiceID:    payload.InvoiceID,
		InvoiceKey:   payload.InvoiceKey,
		ReferenceID:  payload.ReferenceID,
		RawPayload:   raw,
		HashReceived: payload.ReceivedHash,
		HashComputed: computed,
		IsValid:      valid,
		CreatedAt:    time.Now().UTC(),
	}
	if findErr == nil {
		logEntry.PaymentID = &payment.ID
	}
	if err := r.events.Insert(ctx, logEntry); err != nil {
		r.releaseClaim(ctx, claimKey)
		return ReconcileResult{}, err
	}

	if !valid {
		_ = r.events.RecordError(ctx, logEntry.ID, "invalid hash signature (HMAC-SHA256 verification failed)")
		r.log.Error("invalid webhook signature", "invoice_id", payload.InvoiceID)
		// The claim must not outlive a rejected delivery: a later correctly
		// signed redelivery of the same event has to reach the state machine.
		r.releaseClaim(ctx, claimKey)
		return ReconcileResult{}, fmt.Errorf("invoice %s: %w", payload.InvoiceID, domain.ErrInvalidSignature)
	}

	if findErr != nil {
		if errors.Is(findErr, domain.ErrNotFound) {
			_ = r.events.RecordError(ctx, logEntry.ID, fmt.Sprintf("payment not found for invoice %s", payload.InvoiceID))
			r.releaseClaim(ctx, claimKey)
			return ReconcileResult{}, fmt.Errorf("payment for invoice %s: %w", payload.InvoiceID, domain.ErrNotFound)
		}
		r.releaseClaim(ctx, claimKey)
		return ReconcileResult{}, findErr
	}

	result, err := r.transition(ctx, payment, payload, event, logEntry.ID, start)
	if err != nil {
		_ = r.events.RecordError(ctx, logEntry.ID, err.Error())
		r.releaseClaim(ctx, claimKey)
		return ReconcileResult{}, err
	}
	return result, nil
}

func (r *Reconciler) transition(ctx context.Context, payment domain.Payment, payload domain.WebhookPayload, event domain.EventType, eventID string, start time.Time) (ReconcileResult, error) {
	now := time.Now().UTC()
	durationMS := func() int64 { return time.Since(start).Milliseconds() }

	switch event {
	case domain.EventPaid:
		if payment.Status == domain.StatusPaid {
			if err := r.events.MarkProcessed(ctx, eventID, durationMS()); err != nil {
				return ReconcileResult{}, err
			}
			r.log.Warn("payment already paid", "payment_number", payment.Number)
			return ReconcileResult{
				Status:        "already_paid",
				Message:       "payment already marked as paid",
				PaymentNumber: payment.Number,
				PaymentStatus: payment.Status,
			}, nil
		}

		payment.MarkPaid(domain.MapMethod(payload.PaymentMethod), payload.Raw, now)
		notif, _ := json.Marshal(domain.PaymentPaid{
			PaymentID: payment.ID,
			Number:    payment.Number,
			UserID:    payment.UserID,
			OrderID:   deref(payment.OrderID),
			BookingID: deref(payment.BookingID),
			Amount:    payment.Amount.String(),
			Currency:  payment.Currency,
			Method:    payment.Method,
		})
		if err := r.outcomes.ApplyOutcome(ctx, payment, eventID, durationMS(), "PaymentPaid", notif, tracing.Traceparent(ctx)); err != nil {
			return ReconcileResult{}, err
		}
		r.log.Info("payment marked paid", "payment_number", payment.Number, "method", payment.Method)

	case domain.EventFailed, domain.EventExpired:
		// A settled payment is never regressed by a late failure or expiry
		// of the same invoice.
		if payment.Status.Terminal() {
			if err := r.events.MarkProcessed(ctx, eventID, durationMS()); err != nil {
				return ReconcileResult{}, err
			}
			_ = r.events.RecordError(ctx, eventID, fmt.Sprintf("ignored %s event for %s payment", event, payment.Status))
			return ReconcileResult{
				Status:        "ignored",
				Message:       fmt.Sprintf("%s event ignored for settled payment", event),
				PaymentNumber: payment.Number,
				PaymentStatus: payment.Status,
			}, nil
		}

		var notifType string
		var notif []byte
		if event == domain.EventFailed {
			reason := payload.FailureReason
			if reason == "" {
				reason = "payment failed"
			}
			payment.MarkFailed(reason, payload.Raw, now)
			notifType = "PaymentFailed"
			notif, _ = json.Marshal(domain.PaymentFailed{
				PaymentID: payment.ID,
				Number:    payment.Number,
				UserID:    payment.UserID,
				Reason:    reason,
			})
		} else {
			payment.MarkExpired(payload.Raw, now)
			notifType = "PaymentExpired"
			notif, _ = json.Marshal(domain.PaymentExpired{
				PaymentID: payment.ID,
				Number:    payment.Number,
				UserID:    payment.UserID,
			})
		}
		if err := r.outcomes.ApplyOutcome(ctx, payment, eventID, durationMS(), notifType, notif, tracing.Traceparent(ctx)); err != nil {
			return ReconcileResult{}, err
		}
		r.log.Info("payment transitioned", "payment_number", payment.Number, "status", payment.Status)

	default:
		// Unclassified but authentic events are recorded and acknowledged so
		// the provider stops redelivering them.
		if err := r.events.MarkProcessed(ctx, eventID, durationMS()); err != nil {
			return ReconcileResult{}, err
		}
		return ReconcileResult{
			Status:        "ignored",
			Message:       "unclassified event",
			PaymentNumber: payment.Number,
			PaymentStatus: payment.Status,
		}, nil
	}

	return ReconcileResult{
		Status:        "success",
		Message:       "webhook processed",
		PaymentNumber: payment.Number,
		PaymentStatus: payment.Status,
	}, nil
}

func (r *Reconciler) releaseClaim(ctx context.Context, key string) {
	if err := r.claims.Release(ctx, key); err != nil {
		r.log.Warn("claim release failed", "key", key, "err", err)
	}
}
