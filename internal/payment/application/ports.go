package application

import (
	"context"

	"github.com/shopspring/decimal"

	bookingdomain "github.com/altayar/travel-payments/internal/booking/domain"
	orderdomain "github.com/altayar/travel-payments/internal/order/domain"
	"github.com/altayar/travel-payments/internal/payment/domain"
)

// Customer is the snapshot of user data sent to the provider.
type Customer struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type LineItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

type InvoiceRequest struct {
	MethodID   int
	Amount     decimal.Decimal
	Currency   string
	Customer   Customer
	SuccessURL string
	FailURL    string
	SaveCard   bool
	CartItems  []LineItem
}

type Invoice struct {
	InvoiceID  string
	InvoiceKey string
	URL        string
	FawryCode  string
	ExpiresAt  string
	Raw        []byte
}

// Gateway is the provider adapter surface.
type Gateway interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error)
	CreateCardTokenURL(ctx context.Context, cust Customer, redirectURL string) (string, error)
	VerifySignature(p domain.WebhookPayload, event domain.EventType) (valid bool, computed string)
}

type PaymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id string) (domain.Payment, error)
	GetForUser(ctx context.Context, id, userID string) (domain.Payment, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (domain.Payment, error)
	FindPendingByBooking(ctx context.Context, bookingID string) (domain.Payment, error)
	// RefreshAttempt persists a refreshed amount and a new idempotency key on
	// a reused pending payment.
	RefreshAttempt(ctx context.Context, p *domain.Payment) error
	// SaveProviderDetails persists provider-assigned identifiers and the raw
	// invoice response after a successful initiation.
	SaveProviderDetails(ctx context.Context, p *domain.Payment) error
	MarkInitiationFailed(ctx context.Context, id, errMsg string) error
}

// OutcomeStore commits a webhook outcome: the payment mutation, the cascade to
// the linked order and bookings, the event's processed flag, and the queued
// notification, all inside one transaction.
type OutcomeStore interface {
	ApplyOutcome(ctx context.Context, p domain.Payment, eventID string, durationMS int64, notifType string, notifPayload []byte, traceparent string) error
}

type EventLog interface {
	SeenProcessed(ctx context.Context, provider domain.Provider, invoiceID, invoiceKey string, event domain.EventType) (bool, error)
	Insert(ctx context.Context, e *domain.WebhookEvent) error
	MarkProcessed(ctx context.Context, id string, durationMS int64) error
	RecordError(ctx context.Context, id, msg string) error
	List(ctx context.Context, invoiceID string, limit int) ([]domain.WebhookEvent, error)
}

type CardStore interface {
	FindByToken(ctx context.Context, token string) (domain.UserCard, error)
	Create(ctx context.Context, c *domain.UserCard) error
	ListActive(ctx context.Context, userID string) ([]domain.UserCard, error)
	Deactivate(ctx context.Context, userID, cardID string) error
}

type OrderReader interface {
	GetForUser(ctx context.Context, id, userID string) (orderdomain.Order, error)
}

type BookingReader interface {
	GetForUser(ctx context.Context, id, userID string) (bookingdomain.Booking, error)
}

type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type UserReader interface {
	Get(ctx context.Context, id string) (User, error)
}

// DeliveryClaims is the fast duplicate-delivery guard in front of the durable
// webhook log.
type DeliveryClaims interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// NumberSource produces display numbers for payments.
type NumberSource interface {
	Next(prefix string) string
}
