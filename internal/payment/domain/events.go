package domain

// Outcome events queued through the outbox for the notification consumers.

type PaymentPaid struct {
	PaymentID string `json:"payment_id"`
	Number    string `json:"number"`
	UserID    string `json:"user_id"`
	OrderID   string `json:"order_id,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Method    Method `json:"method"`
}

type PaymentFailed struct {
	PaymentID string `json:"payment_id"`
	Number    string `json:"number"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
}

type PaymentExpired struct {
	PaymentID string `json:"payment_id"`
	Number    string `json:"number"`
	UserID    string `json:"user_id"`
}
