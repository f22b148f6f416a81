package fawaterk

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/altayar/travel-payments/internal/payment/domain"
)

// The provider signs different canonical strings per event class. These are
// contractual formats, kept as an explicit table so the scheme selection is
// auditable in one place.

type canonicalFunc func(p domain.WebhookPayload) string

func invoiceCanonical(p domain.WebhookPayload) string {
	return fmt.Sprintf("InvoiceId=%s&InvoiceKey=%s&PaymentMethod=%s",
		p.InvoiceID, p.InvoiceKey, p.PaymentMethod)
}

func referenceCanonical(p domain.WebhookPayload) string {
	return fmt.Sprintf("referenceId=%s&PaymentMethod=%s",
		p.ReferenceID, p.PaymentMethod)
}

var canonicalStrings = map[domain.EventType]canonicalFunc{
	domain.EventPaid:    invoiceCanonical,
	domain.EventFailed:  invoiceCanonical,
	domain.EventExpired: referenceCanonical,
}

// VerifySignature recomputes the HMAC for the event class and compares it
// against the received hash. The comparison is constant-time and
// case-insensitive; the provider is inconsistent about hex casing.
func (c *Client) VerifySignature(p domain.WebhookPayload, event domain.EventType) (bool, string) {
	build, ok := canonicalStrings[event]
	if !ok {
		// Unclassified events fall back to the invoice scheme, matching the
		// provider's documented default.
		build = invoiceCanonical
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.VendorKey))
	mac.Write([]byte(build(p)))
	computed := hex.EncodeToString(mac.Sum(nil))

	received := strings.ToLower(strings.TrimSpace(p.ReceivedHash))
	valid := received != "" && hmac.Equal([]byte(received), []byte(computed))
	return valid, computed
}
