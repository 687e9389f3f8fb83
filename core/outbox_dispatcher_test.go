package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOutboxDispatcher_AckSuccess(t *testing.T) {
	store := &stubOutboxStore{
		claimed: []LoanEvent{{
			ID:   "evt_1",
			Name: EventLoanIssued,
		}},
	}
	registry := NewLoanProjectorRegistry()
	registry.Register("ok", LoanEventHandlerFunc(func(context.Context, LoanEvent) error {
		return nil
	}))

	dispatcher, err := NewOutboxDispatcher(store, registry, DefaultOutboxDispatcherConfig())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("dispatch pending: %v", err)
	}
	if stats.Claimed != 1 || stats.Delivered != 1 || stats.Retried != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.acked) != 1 || store.acked[0] != "evt_1" {
		t.Fatalf("expected ack for evt_1")
	}
}

func TestOutboxDispatcher_RetryWithBackoff(t *testing.T) {
	store := &stubOutboxStore{
		claimed: []LoanEvent{{
			ID:   "evt_retry",
			Name: EventPaymentRecorded,
			Metadata: map[string]any{
				MetadataKeyOutboxAttempts: 1,
			},
		}},
	}
	registry := NewLoanProjectorRegistry()
	registry.Register("fails", LoanEventHandlerFunc(func(context.Context, LoanEvent) error {
		return errors.New("temporary")
	}))

	dispatcher, err := NewOutboxDispatcher(store, registry, OutboxDispatcherConfig{
		BatchSize:      10,
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	fixed := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	dispatcher.now = func() time.Time { return fixed }

	stats, err := dispatcher.DispatchPending(context.Background(), 0)
	if err == nil {
		t.Fatalf("expected dispatch error")
	}
	if !strings.Contains(err.Error(), EventPaymentRecorded) {
		t.Fatalf("expected event name in error, got %v", err)
	}
	if stats.Retried != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.retried) != 1 {
		t.Fatalf("expected one retry call")
	}
	if want := fixed.Add(2 * time.Second); !store.retried[0].next.Equal(want) {
		t.Fatalf("expected next attempt at %s, got %s", want, store.retried[0].next)
	}
}

func TestOutboxDispatcher_MaxAttemptsMarkedFailed(t *testing.T) {
	store := &stubOutboxStore{
		claimed: []LoanEvent{{
			ID:   "evt_fail",
			Name: EventInstallmentDue,
			Metadata: map[string]any{
				MetadataKeyOutboxAttempts: 2,
			},
		}},
	}
	registry := NewLoanProjectorRegistry()
	registry.Register("fails", LoanEventHandlerFunc(func(context.Context, LoanEvent) error {
		return errors.New("permanent")
	}))

	dispatcher, err := NewOutboxDispatcher(store, registry, OutboxDispatcherConfig{
		BatchSize:      10,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	stats, err := dispatcher.DispatchPending(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected dispatch error")
	}
	if stats.Failed != 1 || stats.Retried != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.retried) != 1 {
		t.Fatalf("expected one retry/fail call")
	}
	if !store.retried[0].next.IsZero() {
		t.Fatalf("expected zero next attempt to mark failed")
	}
}

func TestLoanProjectorRegistry_RunsHandlersInNameOrder(t *testing.T) {
	var order []string
	registry := NewLoanProjectorRegistry()
	for _, name := range []string{"b", "a", "c"} {
		registry.Register(name, LoanEventHandlerFunc(func(context.Context, LoanEvent) error {
			order = append(order, name)
			return nil
		}))
	}
	registry.Register("", LoanEventHandlerFunc(func(context.Context, LoanEvent) error { return nil }))

	for _, handler := range registry.Handlers() {
		_ = handler.Handle(context.Background(), LoanEvent{})
	}
	if strings.Join(order, ",") != "a,b,c" {
		t.Fatalf("expected a,b,c, got %v", order)
	}
}

func TestNotificationProjector_RecordsFailures(t *testing.T) {
	stores := newMemoryStores()
	employee, _ := stores.EmployeeStore().Create(context.Background(), CreateEmployeeInput{
		EmployeeNumber: "E-1",
		FirstName:      "Ada",
		Email:          "ada@example.com",
	})
	sender := &recordingSender{err: errors.New("smtp down")}
	ledger := &memoryLedger{}
	projector := NewNotificationProjector(stores.EmployeeStore(), sender, ledger)
	event := LoanEvent{ID: "evt_1", Name: EventLoanSettled, EmployeeID: employee.ID}

	if err := projector.Handle(context.Background(), event); err == nil {
		t.Fatalf("expected send failure")
	}
	if len(ledger.records) != 1 {
		t.Fatalf("expected failure to be recorded")
	}
	for _, record := range ledger.records {
		if record.Status != "failed" || record.DefinitionCode != NotificationLoanSettled {
			t.Fatalf("unexpected record: %+v", record)
		}
	}

	sender.err = nil
	if err := projector.Handle(context.Background(), event); err != nil {
		t.Fatalf("retry send: %v", err)
	}
	if len(sender.requests) != 2 {
		t.Fatalf("expected failed dispatch to be retried, got %d sends", len(sender.requests))
	}

	if err := projector.Handle(context.Background(), LoanEvent{ID: "evt_2", Name: "unknown.event", EmployeeID: employee.ID}); err != nil {
		t.Fatalf("unknown event: %v", err)
	}
	if len(sender.requests) != 2 {
		t.Fatalf("expected events without a definition to be skipped")
	}
}

type stubOutboxStore struct {
	claimed []LoanEvent
	acked   []string
	retried []retryCall
}

type retryCall struct {
	eventID string
	cause   error
	next    time.Time
}

func (s *stubOutboxStore) Enqueue(context.Context, LoanEvent) error {
	return nil
}

func (s *stubOutboxStore) ClaimBatch(context.Context, int) ([]LoanEvent, error) {
	out := append([]LoanEvent(nil), s.claimed...)
	s.claimed = nil
	return out, nil
}

func (s *stubOutboxStore) Ack(_ context.Context, eventID string) error {
	s.acked = append(s.acked, eventID)
	return nil
}

func (s *stubOutboxStore) Retry(_ context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	s.retried = append(s.retried, retryCall{
		eventID: eventID,
		cause:   cause,
		next:    nextAttemptAt,
	})
	return nil
}
