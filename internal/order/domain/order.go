package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Orders are owned by the ordering subsystem. The payments core only reads
// them for initiation checks and pushes payment outcomes one way.

type OrderStatus string

const (
	StatusDraft     OrderStatus = "DRAFT"
	StatusIssued    OrderStatus = "ISSUED"
	StatusPaid      OrderStatus = "PAID"
	StatusCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
)

type Order struct {
	ID            string
	Number        string
	UserID        string
	TotalAmount   decimal.Decimal
	Currency      string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaidAt        *time.Time
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem lines may embed a booking reference in their metadata; a paid
// order confirms those bookings as part of the webhook cascade.
type OrderItem struct {
	ID        string
	OrderID   string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	BookingID string
}

// ApplyPaid is the one place an order absorbs a confirmed payment.
func (o *Order) ApplyPaid(at time.Time) {
	o.PaymentStatus = PaymentPaid
	if o.Status == StatusIssued {
		o.Status = StatusPaid
	}
	o.PaidAt = &at
	o.UpdatedAt = at
}
