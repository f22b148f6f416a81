package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusCompleted BookingStatus = "COMPLETED"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentRefunded      PaymentStatus = "REFUNDED"
)

type Booking struct {
	ID            string
	Number        string
	UserID        string
	Type          string
	Title         string
	TotalAmount   decimal.Decimal
	Currency      string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	PaidAt        *time.Time
	ConfirmedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ApplyPaid is the single authoritative transition for a booking absorbing a
// confirmed payment. Both the webhook cascade and manual completion go
// through it.
func (b *Booking) ApplyPaid(at time.Time) {
	b.PaymentStatus = PaymentPaid
	b.PaidAt = &at
	if b.Status != StatusCancelled {
		b.Status = StatusConfirmed
		b.ConfirmedAt = &at
	}
	b.UpdatedAt = at
}
