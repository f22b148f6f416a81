package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/altayar/travel-payments/internal/payment/application"
	"github.com/altayar/travel-payments/internal/payment/domain"
)

// maxWebhookBody bounds inbound callback bodies; provider payloads are small.
const maxWebhookBody = 1 << 20

type Handler struct {
	log        *slog.Logger
	service    *application.Service
	reconciler *application.Reconciler
	vault      *application.Vault
	events     application.EventLog
	tracer     trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, reconciler *application.Reconciler, vault *application.Vault, events application.EventLog) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		reconciler: reconciler,
		vault:      vault,
		events:     events,
		tracer:     otel.Tracer("payments-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/payments", h.createPayment)
	r.Post("/payments/fawaterk/webhook", h.webhook)
	r.Get("/payments/webhook-logs", h.webhookLogs)
	r.Get("/payments/{id}", h.paymentStatus)
	r.Post("/payments/{id}/complete", h.completePayment)
	r.Get("/cards", h.listCards)
	r.Post("/cards/init", h.initCard)
	r.Delete("/cards/{id}", h.deleteCard)
	return r
}

type createPaymentReq struct {
	OrderID    string `json:"order_id"`
	BookingID  string `json:"booking_id"`
	MethodID   int    `json:"payment_method_id"`
	SuccessURL string `json:"success_url"`
	FailURL    string `json:"fail_url"`
	SaveCard   bool   `json:"save_card"`
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreatePayment")
	defer span.End()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	opts := application.InitiateOptions{
		MethodID:   req.MethodID,
		SuccessURL: req.SuccessURL,
		FailURL:    req.FailURL,
		SaveCard:   req.SaveCard,
	}

	var result application.InitiateResult
	var err error
	switch {
	case req.OrderID != "":
		result, err = h.service.InitiateOrderPayment(ctx, req.OrderID, userID, opts)
	case req.BookingID != "":
		result, err = h.service.InitiateBookingPayment(ctx, req.BookingID, userID, opts)
	default:
		writeError(w, http.StatusBadRequest, "either order_id or booking_id must be provided")
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// webhook is the public callback route. The provider retries on 5xx, so
// signature failures return 4xx: retrying a forged or corrupted delivery is
// pointless.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "FawaterkWebhook")
	defer span.End()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	result, err := h.reconciler.Handle(ctx, raw)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": result})
	case errors.Is(err, domain.ErrAlreadyProcessed):
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": result})
	case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("webhook processing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "webhook processing failed")
	}
}

func (h *Handler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_id":     p.ID,
		"payment_number": p.Number,
		"status":         p.Status,
		"amount":         p.Amount.String(),
		"currency":       p.Currency,
		"paid_at":        p.PaidAt,
		"error_message":  p.ErrorMessage,
	})
}

func (h *Handler) completePayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CompletePayment")
	defer span.End()

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	p, err := h.service.CompleteManual(ctx, chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"payment_id": p.ID,
		"message":    "payment completed",
	})
}

func (h *Handler) webhookLogs(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context(), r.URL.Query().Get("invoice_id"), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list webhook logs")
		return
	}

	type logEntry struct {
		ID         string           `json:"id"`
		Provider   domain.Provider  `json:"provider"`
		EventType  domain.EventType `json:"event_type"`
		InvoiceID  string           `json:"invoice_id"`
		IsValid    bool             `json:"is_valid"`
		Processed  bool             `json:"processed"`
		Error      string           `json:"error_message,omitempty"`
		DurationMS int64            `json:"duration_ms"`
	}
	entries := make([]logEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, logEntry{
			ID:         e.ID,
			Provider:   e.Provider,
			EventType:  e.EventType,
			InvoiceID:  e.InvoiceID,
			IsValid:    e.IsValid,
			Processed:  e.Processed,
			Error:      e.ErrorMessage,
			DurationMS: e.DurationMS,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(entries), "logs": entries})
}

func (h *Handler) listCards(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	cards, err := h.vault.ListCards(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list cards")
		return
	}

	type cardEntry struct {
		ID       string `json:"id"`
		CardMask string `json:"card_mask"`
		LastFour string `json:"last_four"`
		Brand    string `json:"brand"`
		ExpMonth string `json:"expiry_month"`
		ExpYear  string `json:"expiry_year"`
	}
	entries := make([]cardEntry, 0, len(cards))
	for _, c := range cards {
		entries = append(entries, cardEntry{
			ID: c.ID, CardMask: c.CardMask, LastFour: c.LastFour,
			Brand: c.Brand, ExpMonth: c.ExpiryMonth, ExpYear: c.ExpiryYear,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) initCard(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	url, err := h.vault.InitTokenization(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) deleteCard(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	if err := h.vault.DeleteCard(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "card deleted"})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var gwErr *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyPaid), errors.Is(err, domain.ErrNotPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &gwErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
