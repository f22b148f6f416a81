package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/altayar/travel-payments/internal/payment/domain"
	"github.com/altayar/travel-payments/pkg/tracing"
)

type Config struct {
	SuccessURL      string
	FailURL         string
	DefaultCurrency string
}

// Service initiates payments against the gateway and owns the manual
// settlement escape hatch.
type Service struct {
	log      *slog.Logger
	cfg      Config
	payments PaymentStore
	outcomes OutcomeStore
	orders   OrderReader
	bookings BookingReader
	users    UserReader
	gateway  Gateway
	numbers  NumberSource
}

func NewService(log *slog.Logger, cfg Config, payments PaymentStore, outcomes OutcomeStore, orders OrderReader, bookings BookingReader, users UserReader, gateway Gateway, numbers NumberSource) *Service {
	return &Service{
		log:      log,
		cfg:      cfg,
		payments: payments,
		outcomes: outcomes,
		orders:   orders,
		bookings: bookings,
		users:    users,
		gateway:  gateway,
		numbers:  numbers,
	}
}

type InitiateOptions struct {
	MethodID   int
	SuccessURL string
	FailURL    string
	SaveCard   bool
}

type InitiateResult struct {
	PaymentID  string        `json:"payment_id"`
	Number     string        `json:"payment_number"`
	Amount     string        `json:"amount"`
	Currency   string        `json:"currency"`
	Status     domain.Status `json:"status"`
	InvoiceID  string        `json:"invoice_id"`
	InvoiceKey string        `json:"invoice_key"`
	PaymentURL string        `json:"payment_url"`
	FawryCode  string        `json:"fawry_code,omitempty"`
	ExpiresAt  string        `json:"expires_at,omitempty"`
}

// InitiateOrderPayment always creates a fresh payment row for the order.
func (s *Service) InitiateOrderPayment(ctx context.Context, orderID, userID string, opts InitiateOptions) (InitiateResult, error) {
	order, err := s.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("order %s: %w", orderID, err)
	}
	if order.PaymentStatus == "PAID" {
		return InitiateResult{}, fmt.Errorf("order %s: %w", orderID, domain.ErrAlreadyPaid)
	}

	currency := order.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	p := &domain.Payment{
		ID:             uuid.NewString(),
		Number:         s.numbers.Next("PAY"),
		UserID:         userID,
		OrderID:        &order.ID,
		Type:           domain.TypeOrder,
		Amount:         order.TotalAmount,
		Currency:       currency,
		Provider:       domain.ProviderFawaterk,
		Status:         domain.StatusPending,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return InitiateResult{}, err
	}

	desc := fmt.Sprintf("Order %s", order.Number)
	return s.callGateway(ctx, p, userID, desc, opts)
}

// InitiateBookingPayment reuses an existing pending payment for the booking
// when one exists, refreshing the amount and issuing a fresh idempotency key
// for the new attempt.
func (s *Service) InitiateBookingPayment(ctx context.Context, bookingID, userID string, opts InitiateOptions) (InitiateResult, error) {
	booking, err := s.bookings.GetForUser(ctx, bookingID, userID)
	if err != nil {
		return InitiateResult{}, fmt.Errorf("booking %s: %w", bookingID, err)
	}
	if booking.PaymentStatus == "PAID" {
		return InitiateResult{}, fmt.Errorf("booking %s: %w", bookingID, domain.ErrAlreadyPaid)
	}

	currency := booking.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	existing, err := s.payments.FindPendingByBooking(ctx, booking.ID)
	switch {
	case err == nil:
		existing.Amount = booking.TotalAmount
		existing.Currency = currency
		existing.Provider = domain.ProviderFawaterk
		existing.IdempotencyKey = uuid.NewString()
		if err := s.payments.RefreshAttempt(ctx, &existing); err != nil {
			return InitiateResult{}, err
		}
		desc := fmt.Sprintf("Booking %s", booking.Number)
		return s.callGateway(ctx, &existing, userID, desc, opts)
	case errors.Is(err, domain.ErrNotFound):
		p := &domain.Payment{
			ID:             uuid.NewString(),
			Number:         s.numbers.Next("PAY"),
			UserID:         userID,
			BookingID:      &booking.ID,
			Type:           domain.TypeBooking,
			Amount:         booking.TotalAmount,
			Currency:       currency,
			Provider:       domain.ProviderFawaterk,
			Status:         domain.StatusPending,
			IdempotencyKey: uuid.NewString(),
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return InitiateResult{}, err
		}
		desc := fmt.Sprintf("Booking %s", booking.Number)
		return s.callGateway(ctx, p, userID, desc, opts)
	default:
		return InitiateResult{}, err
	}
}

func (s *Service) callGateway(ctx context.Context, p *domain.Payment, userID, description string, opts InitiateOptions) (InitiateResult, error) {
	cust := Customer{ID: userID, FirstName: "Customer", LastName: "User", Email: fmt.Sprintf("customer-%.8s@placeholder.local", userID)}
	if user, err := s.users.Get(ctx, userID); err == nil {
		cust = Customer{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName, Email: user.Email, Phone: user.Phone}
	}

	successURL := opts.SuccessURL
	if successURL == "" {
		successURL = s.cfg.SuccessURL
	}
	failURL := opts.FailURL
	if failURL == "" {
		failURL = s.cfg.FailURL
	}

	invoice, err := s.gateway.CreateInvoice(ctx, InvoiceRequest{
		MethodID:   opts.MethodID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Customer:   cust,
		SuccessURL: successURL,
		FailURL:    failURL,
		SaveCard:   opts.SaveCard,
		CartItems:  []LineItem{{Name: description, Price: p.Amount, Quantity: 1}},
	})
	if err != nil {
		if markErr := s.payments.MarkInitiationFailed(ctx, p.ID, err.Error()); markErr != nil {
			s.log.Error("mark initiation failed", "payment_id", p.ID, "err", markErr)
		}
		return InitiateResult{}, fmt.Errorf("initiate payment %s: %w", p.Number, err)
	}

	p.ProviderTransactionID = invoice.InvoiceID
	p.ProviderInvoiceID = invoice.InvoiceID
	p.ProviderReferenceID = invoice.InvoiceKey
	p.ProviderResponse = invoice.Raw
	if err := s.payments.SaveProviderDetails(ctx, p); err != nil {
		return InitiateResult{}, err
	}

	s.log.Info("payment initiated", "payment_number", p.Number, "invoice_id", invoice.InvoiceID)

	return InitiateResult{
		PaymentID:  p.ID,
		Number:     p.Number,
		Amount:     p.Amount.String(),
		Currency:   p.Currency,
		Status:     domain.StatusPending,
		InvoiceID:  invoice.InvoiceID,
		InvoiceKey: invoice.InvoiceKey,
		PaymentURL: invoice.URL,
		FawryCode:  invoice.FawryCode,
		ExpiresAt:  invoice.ExpiresAt,
	}, nil
}

// CompleteManual settles a pending payment outside the gateway (cash or bank
// transfer confirmed by the user). The booking cascade runs through the same
// transition used by the webhook path.
func (s *Service) CompleteManual(ctx context.Context, paymentID, userID string) (domain.Payment, error) {
	p, err := s.payments.GetForUser(ctx, paymentID, userID)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Status != domain.StatusPending {
		return domain.Payment{}, fmt.Errorf("payment %s: %w", p.Number, domain.ErrNotPending)
	}

	now := time.Now().UTC()
	p.MarkPaid(domain.MethodCash, nil, now)
	p.Provider = domain.ProviderManual

	payload, _ := json.Marshal(domain.PaymentPaid{
		PaymentID: p.ID,
		Number:    p.Number,
		UserID:    p.UserID,
		OrderID:   deref(p.OrderID),
		BookingID: deref(p.BookingID),
		Amount:    p.Amount.String(),
		Currency:  p.Currency,
		Method:    p.Method,
	})
	if err := s.outcomes.ApplyOutcome(ctx, p, "", 0, "PaymentPaid", payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Payment{}, err
	}

	s.log.Info("payment completed manually", "payment_number", p.Number)
	return p, nil
}

// GetStatus is the poll surface used after the client returns from the hosted
// checkout.
func (s *Service) GetStatus(ctx context.Context, paymentID string) (domain.Payment, error) {
	return s.payments.GetByID(ctx, paymentID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
