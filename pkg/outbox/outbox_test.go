package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeProducer struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestDispatchHeaders(t *testing.T) {
	producer := &fakeProducer{}
	d := NewDispatcher(slog.Default(), producer, "payment.events")

	err := d.Dispatch(context.Background(), Event{
		ID:            1,
		AggregateID:   "pay-1",
		Type:          "PaymentPaid",
		Payload:       []byte(`{"payment_id":"pay-1"}`),
		Traceparent:   "00-abc-def-01",
		AggregateType: "payment",
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(producer.msgs) != 1 {
		t.Fatalf("messages = %d", len(producer.msgs))
	}
	msg := producer.msgs[0]
	if msg.Topic != "payment.events" || string(msg.Key) != "pay-1" {
		t.Errorf("message: %+v", msg)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event_type"] != "PaymentPaid" || headers["traceparent"] != "00-abc-def-01" {
		t.Errorf("headers: %v", headers)
	}
}

func TestDispatchOmitsEmptyTraceparent(t *testing.T) {
	producer := &fakeProducer{}
	d := NewDispatcher(slog.Default(), producer, "payment.events")

	if err := d.Dispatch(context.Background(), Event{ID: 1, AggregateID: "pay-1", Type: "PaymentPaid"}); err != nil {
		t.Fatal(err)
	}
	for _, h := range producer.msgs[0].Headers {
		if h.Key == "traceparent" {
			t.Error("empty traceparent must not be sent")
		}
	}
}

type fakeStore struct {
	mu     sync.Mutex
	queue  []Event
	sent   []int64
	failed map[int64]string
}

func (f *fakeStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.queue)
	if n > batchSize {
		n = batchSize
	}
	batch := f.queue[:n]
	f.queue = f.queue[n:]
	return batch, nil
}

func (f *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ids...)
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[int64]string{}
	}
	f.failed[id] = errMsg
	return nil
}

func (f *fakeStore) snapshot() ([]int64, map[int64]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent := append([]int64(nil), f.sent...)
	failed := map[int64]string{}
	for k, v := range f.failed {
		failed[k] = v
	}
	return sent, failed
}

func TestRelayShipsQueuedEvents(t *testing.T) {
	producer := &fakeProducer{}
	store := &fakeStore{queue: []Event{
		{ID: 1, AggregateID: "pay-1", Type: "PaymentPaid"},
		{ID: 2, AggregateID: "pay-2", Type: "PaymentFailed"},
	}}
	relay := NewRelay(slog.Default(), store, NewDispatcher(slog.Default(), producer, "payment.events"), "test-relay")
	relay.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = relay.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		sent, _ := store.snapshot()
		if len(sent) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("events not shipped, sent = %v", sent)
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestRelayMarksFailedDeliveries(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker unavailable")}
	store := &fakeStore{queue: []Event{{ID: 7, AggregateID: "pay-7", Type: "PaymentPaid"}}}
	relay := NewRelay(slog.Default(), store, NewDispatcher(slog.Default(), producer, "payment.events"), "test-relay")
	relay.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = relay.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		_, failed := store.snapshot()
		if failed[7] != "" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("failed delivery not recorded")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
