package domain

import "testing"

func TestClassifyEvent(t *testing.T) {
	cases := []struct {
		in   string
		want EventType
	}{
		{"paid", EventPaid},
		{"PAID", EventPaid},
		{" Paid ", EventPaid},
		{"failed", EventFailed},
		{"cancel", EventFailed},
		{"CANCELLED", EventFailed},
		{"expired", EventExpired},
		{"expire", EventExpired},
		{"pending", EventUnknown},
		{"", EventUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyEvent(tc.in); got != tc.want {
			t.Errorf("ClassifyEvent(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeWebhookSnakeCase(t *testing.T) {
	raw := []byte(`{
		"invoice_id": 2456185,
		"invoice_key": "gg3Gfc9EUTE5Ghx",
		"payment_method": "VISA/MASTERCARD",
		"invoice_status": "paid",
		"hashKey": "abc123"
	}`)

	w, err := NormalizeWebhook(raw)
	if err != nil {
		t.Fatal(err)
	}
	if w.InvoiceID != "2456185" {
		t.Errorf("numeric invoice id not coerced, got %q", w.InvoiceID)
	}
	if w.InvoiceKey != "gg3Gfc9EUTE5Ghx" || w.PaymentMethod != "VISA/MASTERCARD" {
		t.Errorf("unexpected fields: %+v", w)
	}
	if w.EventType() != EventPaid {
		t.Errorf("event type = %s, want PAID", w.EventType())
	}
	if w.ReceivedHash != "abc123" {
		t.Errorf("hash = %q", w.ReceivedHash)
	}
}

func TestNormalizeWebhookPascalCase(t *testing.T) {
	raw := []byte(`{
		"InvoiceId": "2456185",
		"InvoiceKey": "gg3Gfc9EUTE5Ghx",
		"PaymentMethod": "FAWRY",
		"InvoiceStatus": "expired",
		"referenceId": 987654,
		"hashKey": "abc123"
	}`)

	w, err := NormalizeWebhook(raw)
	if err != nil {
		t.Fatal(err)
	}
	if w.InvoiceID != "2456185" || w.ReferenceID != "987654" {
		t.Errorf("unexpected ids: %+v", w)
	}
	if w.EventType() != EventExpired {
		t.Errorf("event type = %s, want EXPIRED", w.EventType())
	}
}

func TestNormalizeWebhookTokenEvent(t *testing.T) {
	raw := []byte(`{
		"token": "tok_9f8e7d",
		"customer_unique_id": "user-42",
		"card_data": {
			"lastFourDigits": "4242",
			"brand": "Visa",
			"expiryMonth": "08",
			"expiryYear": "29"
		}
	}`)

	w, err := NormalizeWebhook(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !w.IsTokenEvent() {
		t.Fatal("expected token event")
	}
	if w.CardToken != "tok_9f8e7d" || w.CustomerKey != "user-42" {
		t.Errorf("unexpected token fields: %+v", w)
	}
	if w.CardLastFour != "4242" || w.CardBrand != "Visa" {
		t.Errorf("card metadata not parsed: %+v", w)
	}
}

func TestNormalizeWebhookCustomerNesting(t *testing.T) {
	raw := []byte(`{
		"card_token": "tok_1",
		"customer": {"unique_id": "user-7", "first_name": "Ahmed"}
	}`)

	w, err := NormalizeWebhook(raw)
	if err != nil {
		t.Fatal(err)
	}
	if w.CustomerKey != "user-7" || w.HolderName != "Ahmed" {
		t.Errorf("customer block not parsed: %+v", w)
	}
}

func TestNormalizeWebhookRejectsNonObject(t *testing.T) {
	if _, err := NormalizeWebhook([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error for non-object body")
	}
	if _, err := NormalizeWebhook([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
