package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusPaid              Status = "PAID"
	StatusFailed            Status = "FAILED"
	StatusCancelled         Status = "CANCELLED"
	StatusExpired           Status = "EXPIRED"
	StatusRefunded          Status = "REFUNDED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
)

type Type string

const (
	TypeOrder             Type = "ORDER"
	TypeBooking           Type = "BOOKING"
	TypeMembership        Type = "MEMBERSHIP_PURCHASE"
	TypeMembershipRenewal Type = "MEMBERSHIP_RENEWAL"
	TypeManual            Type = "MANUAL"
)

type Provider string

const (
	ProviderFawaterk Provider = "FAWATERK"
	ProviderManual   Provider = "MANUAL"
)

// Payment is the authoritative financial record. Rows are never deleted and
// PAID is never reverted by a later event.
type Payment struct {
	ID        string
	Number    string
	UserID    string
	OrderID   *string
	BookingID *string

	Type     Type
	Amount   decimal.Decimal
	Currency string
	Method   Method
	Provider Provider
	Status   Status

	ProviderTransactionID string
	ProviderInvoiceID     string
	ProviderReferenceID   string

	// One key per initiation attempt, unique across all payments.
	IdempotencyKey string

	ProviderResponse  []byte
	WebhookPayload    []byte
	WebhookReceivedAt *time.Time

	RefundAmount      decimal.Decimal
	RefundReason      string
	RefundRequestedAt *time.Time
	RefundProcessedAt *time.Time

	ErrorMessage string
	PaidAt       *time.Time
	FailedAt     *time.Time
	ExpiredAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the status may never be regressed by a later
// webhook. Only PAID is guarded; FAILED and EXPIRED invoices can in principle
// still be paid through a provider retry flow.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusRefunded || s == StatusPartiallyRefunded
}

func (p *Payment) MarkPaid(method Method, payload []byte, at time.Time) {
	p.Status = StatusPaid
	p.Method = method
	p.PaidAt = &at
	p.WebhookPayload = payload
	p.WebhookReceivedAt = &at
	p.UpdatedAt = at
}

func (p *Payment) MarkFailed(reason string, payload []byte, at time.Time) {
	p.Status = StatusFailed
	p.ErrorMessage = reason
	p.FailedAt = &at
	p.WebhookPayload = payload
	p.WebhookReceivedAt = &at
	p.UpdatedAt = at
}

func (p *Payment) MarkExpired(payload []byte, at time.Time) {
	p.Status = StatusExpired
	p.ExpiredAt = &at
	p.WebhookPayload = payload
	p.WebhookReceivedAt = &at
	p.UpdatedAt = at
}
