package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	bookingdomain "github.com/altayar/travel-payments/internal/booking/domain"
	orderdomain "github.com/altayar/travel-payments/internal/order/domain"
	"github.com/altayar/travel-payments/internal/payment/domain"
)

func testLogger() *slog.Logger { return slog.Default() }

type fakePayments struct {
	mu       sync.Mutex
	byID     map[string]domain.Payment
	failed   map[string]string
	creates  int
	refreshs int
}

func newFakePayments(ps ...domain.Payment) *fakePayments {
	f := &fakePayments{byID: map[string]domain.Payment{}, failed: map[string]string{}}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakePayments) Create(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.byID[p.ID] = *p
	return nil
}

func (f *fakePayments) GetByID(_ context.Context, id string) (domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePayments) GetForUser(ctx context.Context, id, userID string) (domain.Payment, error) {
	p, err := f.GetByID(ctx, id)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.UserID != userID {
		return domain.Payment{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePayments) FindByInvoiceID(_ context.Context, invoiceID string) (domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.ProviderInvoiceID == invoiceID {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (f *fakePayments) FindPendingByBooking(_ context.Context, bookingID string) (domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.BookingID != nil && *p.BookingID == bookingID && p.Status == domain.StatusPending {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (f *fakePayments) RefreshAttempt(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshs++
	f.byID[p.ID] = *p
	return nil
}

func (f *fakePayments) SaveProviderDetails(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = *p
	return nil
}

func (f *fakePayments) MarkInitiationFailed(_ context.Context, id, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	return nil
}

type outcomeCall struct {
	Payment     domain.Payment
	EventID     string
	NotifType   string
	Traceparent string
}

type fakeOutcomes struct {
	mu       sync.Mutex
	calls    []outcomeCall
	err      error
	payments *fakePayments
}

func (f *fakeOutcomes) ApplyOutcome(_ context.Context, p domain.Payment, eventID string, _ int64, notifType string, _ []byte, traceparent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, outcomeCall{Payment: p, EventID: eventID, NotifType: notifType, Traceparent: traceparent})
	if f.payments != nil {
		f.payments.byID[p.ID] = p
	}
	return nil
}

type fakeEventLog struct {
	mu        sync.Mutex
	entries   map[string]*domain.WebhookEvent
	processed map[string]bool // provider/invoice/key/event
	insertErr error
}

func newFakeEventLog() *fakeEventLog {
	return &fakeEventLog{entries: map[string]*domain.WebhookEvent{}, processed: map[string]bool{}}
}

func seenKey(provider domain.Provider, invoiceID, invoiceKey string, event domain.EventType) string {
	return fmt.Sprintf("%s/%s/%s/%s", provider, invoiceID, invoiceKey, event)
}

func (f *fakeEventLog) SeenProcessed(_ context.Context, provider domain.Provider, invoiceID, invoiceKey string, event domain.EventType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[seenKey(provider, invoiceID, invoiceKey, event)], nil
}

func (f *fakeEventLog) Insert(_ context.Context, e *domain.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *e
	f.entries[e.ID] = &cp
	return nil
}

func (f *fakeEventLog) MarkProcessed(_ context.Context, id string, durationMS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return errors.New("event not found")
	}
	e.Processed = true
	e.DurationMS = durationMS
	f.processed[seenKey(e.Provider, e.InvoiceID, e.InvoiceKey, e.EventType)] = true
	return nil
}

func (f *fakeEventLog) RecordError(_ context.Context, id, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[id]; ok {
		e.ErrorMessage = msg
	}
	return nil
}

func (f *fakeEventLog) List(_ context.Context, invoiceID string, _ int) ([]domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WebhookEvent
	for _, e := range f.entries {
		if invoiceID == "" || e.InvoiceID == invoiceID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeEventLog) single() *domain.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		return e
	}
	return nil
}

type fakeGateway struct {
	invoice    Invoice
	invoiceErr error
	tokenURL   string
	validSig   bool
}

func (f *fakeGateway) CreateInvoice(context.Context, InvoiceRequest) (Invoice, error) {
	if f.invoiceErr != nil {
		return Invoice{}, f.invoiceErr
	}
	return f.invoice, nil
}

func (f *fakeGateway) CreateCardTokenURL(context.Context, Customer, string) (string, error) {
	return f.tokenURL, nil
}

func (f *fakeGateway) VerifySignature(domain.WebhookPayload, domain.EventType) (bool, string) {
	return f.validSig, "computed-hash"
}

type fakeClaims struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	releases []string
}

func newFakeClaims() *fakeClaims { return &fakeClaims{held: map[string]bool{}} }

func (f *fakeClaims) Claim(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeClaims) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.releases = append(f.releases, key)
	return nil
}

type fakeCards struct {
	mu      sync.Mutex
	byToken map[string]domain.UserCard
}

func newFakeCards() *fakeCards { return &fakeCards{byToken: map[string]domain.UserCard{}} }

func (f *fakeCards) FindByToken(_ context.Context, token string) (domain.UserCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byToken[token]
	if !ok {
		return domain.UserCard{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeCards) Create(_ context.Context, c *domain.UserCard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byToken[c.ProviderToken] = *c
	return nil
}

func (f *fakeCards) ListActive(_ context.Context, userID string) ([]domain.UserCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.UserCard
	for _, c := range f.byToken {
		if c.UserID == userID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCards) Deactivate(_ context.Context, userID, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, c := range f.byToken {
		if c.ID == cardID && c.UserID == userID {
			c.IsActive = false
			f.byToken[token] = c
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeOrders struct {
	orders map[string]orderdomain.Order
}

func (f *fakeOrders) GetForUser(_ context.Context, id, userID string) (orderdomain.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.UserID != userID {
		return orderdomain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

type fakeBookings struct {
	bookings map[string]bookingdomain.Booking
}

func (f *fakeBookings) GetForUser(_ context.Context, id, userID string) (bookingdomain.Booking, error) {
	b, ok := f.bookings[id]
	if !ok || b.UserID != userID {
		return bookingdomain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

type fakeUsers struct {
	users map[string]User
}

func (f *fakeUsers) Get(_ context.Context, id string) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, domain.ErrNotFound
	}
	return u, nil
}

type staticNumbers struct{ n int }

func (s *staticNumbers) Next(prefix string) string {
	s.n++
	return fmt.Sprintf("%s-2026-%d", prefix, s.n)
}
