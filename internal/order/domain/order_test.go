package domain

import (
	"testing"
	"time"
)

func TestApplyPaidOnIssuedOrder(t *testing.T) {
	o := Order{Status: StatusIssued, PaymentStatus: PaymentUnpaid}
	at := time.Now()

	o.ApplyPaid(at)

	if o.Status != StatusPaid {
		t.Errorf("status = %s, want PAID", o.Status)
	}
	if o.PaymentStatus != PaymentPaid {
		t.Errorf("payment status = %s, want PAID", o.PaymentStatus)
	}
	if o.PaidAt == nil || !o.PaidAt.Equal(at) {
		t.Error("PaidAt not set")
	}
}

func TestApplyPaidLeavesNonIssuedStatusAlone(t *testing.T) {
	for _, status := range []OrderStatus{StatusDraft, StatusCancelled, StatusPaid} {
		o := Order{Status: status, PaymentStatus: PaymentUnpaid}
		o.ApplyPaid(time.Now())
		if o.Status != status {
			t.Errorf("status %s changed to %s", status, o.Status)
		}
		if o.PaymentStatus != PaymentPaid {
			t.Errorf("payment status not recorded for %s order", status)
		}
	}
}
