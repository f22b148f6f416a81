package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type EventType string

const (
	EventPaid    EventType = "PAID"
	EventFailed  EventType = "FAILED"
	EventExpired EventType = "EXPIRED"
	EventUnknown EventType = "UNKNOWN"
)

// ClassifyEvent folds the provider's status vocabulary into the internal
// event set.
func ClassifyEvent(invoiceStatus string) EventType {
	switch strings.ToUpper(strings.TrimSpace(invoiceStatus)) {
	case "PAID":
		return EventPaid
	case "FAILED", "CANCEL", "CANCELLED":
		return EventFailed
	case "EXPIRED", "EXPIRE":
		return EventExpired
	default:
		return EventUnknown
	}
}

// WebhookPayload is a canonical view over the provider's inbound body. The
// provider mixes snake_case and PascalCase across event classes, so every
// field is resolved once here and never re-read from the raw map downstream.
type WebhookPayload struct {
	InvoiceID     string
	InvoiceKey    string
	ReferenceID   string
	PaymentMethod string
	InvoiceStatus string
	ReceivedHash  string
	FailureReason string

	// Tokenization callbacks carry a card token instead of an invoice.
	CardToken     string
	CustomerKey   string
	CardLastFour  string
	CardBrand     string
	CardExpiryMon string
	CardExpiryYr  string
	HolderName    string

	Raw []byte
}

func (w WebhookPayload) IsTokenEvent() bool { return w.CardToken != "" }

func (w WebhookPayload) EventType() EventType { return ClassifyEvent(w.InvoiceStatus) }

// NormalizeWebhook flattens the two field-naming conventions into one record.
func NormalizeWebhook(raw []byte) (WebhookPayload, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return WebhookPayload{}, err
	}

	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := body[k]; ok {
				var s string
				if err := json.Unmarshal(v, &s); err == nil {
					return s
				}
				var n json.Number
				if err := json.Unmarshal(v, &n); err == nil {
					return n.String()
				}
			}
		}
		return ""
	}

	w := WebhookPayload{
		InvoiceID:     get("invoice_id", "InvoiceId"),
		InvoiceKey:    get("invoice_key", "InvoiceKey"),
		ReferenceID:   get("referenceId", "reference_id"),
		PaymentMethod: get("payment_method", "PaymentMethod"),
		InvoiceStatus: get("invoice_status", "InvoiceStatus"),
		ReceivedHash:  get("hashKey", "signature"),
		FailureReason: get("failure_reason", "failureReason"),
		CardToken:     get("token", "card_token"),
		CustomerKey:   get("customer_unique_id"),
		Raw:           raw,
	}

	// Card metadata nests under card_data (or card) on token callbacks.
	for _, key := range []string{"card_data", "card"} {
		if v, ok := body[key]; ok {
			var card struct {
				LastFour    string `json:"lastFourDigits"`
				Brand       string `json:"brand"`
				ExpiryMonth string `json:"expiryMonth"`
				ExpiryYear  string `json:"expiryYear"`
			}
			if err := json.Unmarshal(v, &card); err == nil {
				w.CardLastFour = card.LastFour
				w.CardBrand = card.Brand
				w.CardExpiryMon = card.ExpiryMonth
				w.CardExpiryYr = card.ExpiryYear
			}
			break
		}
	}
	if v, ok := body["customer"]; ok {
		var cust struct {
			UniqueID  string `json:"unique_id"`
			FirstName string `json:"first_name"`
		}
		if err := json.Unmarshal(v, &cust); err == nil {
			if w.CustomerKey == "" {
				w.CustomerKey = cust.UniqueID
			}
			w.HolderName = cust.FirstName
		}
	}
	return w, nil
}

// WebhookEvent is the immutable audit row written for every inbound callback,
// valid or not.
type WebhookEvent struct {
	ID           string
	Provider     Provider
	EventType    EventType
	InvoiceID    string
	InvoiceKey   string
	ReferenceID  string
	RawPayload   []byte
	HashReceived string
	HashComputed string
	IsValid      bool
	PaymentID    *string
	Processed    bool
	ProcessedAt  *time.Time
	ErrorMessage string
	DurationMS   int64
	CreatedAt    time.Time
}
