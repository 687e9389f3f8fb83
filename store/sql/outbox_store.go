package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-loans/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	outboxStatusPending    = "pending"
	outboxStatusProcessing = "processing"
	outboxStatusDelivered  = "delivered"
	outboxStatusFailed     = "failed"
)

type OutboxStore struct {
	db   *bun.DB
	repo repository.Repository[*loanOutboxRecord]
}

func NewOutboxStore(db *bun.DB) (*OutboxStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*loanOutboxRecord](db, outboxHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid outbox repository wiring: %w", err)
		}
	}
	return &OutboxStore{db: db, repo: repo}, nil
}

// Enqueue inserts the event unless its ID is already present. The insert
// never raises a constraint error, so an open Postgres transaction stays
// usable when a duplicate is reported.
func (s *OutboxStore) Enqueue(ctx context.Context, event core.LoanEvent) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("sqlstore: outbox event id is required")
	}
	if strings.TrimSpace(event.Name) == "" {
		return fmt.Errorf("sqlstore: outbox event name is required")
	}

	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	now := time.Now().UTC()
	record := &loanOutboxRecord{
		ID:         uuid.NewString(),
		EventID:    strings.TrimSpace(event.ID),
		EventName:  strings.TrimSpace(event.Name),
		LoanID:     strings.TrimSpace(event.LoanID),
		EmployeeID: strings.TrimSpace(event.EmployeeID),
		Payload:    copyAnyMap(event.Payload),
		Metadata:   copyAnyMap(event.Metadata),
		Status:     outboxStatusPending,
		OccurredAt: occurredAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	result, err := conn(ctx, s.db).NewInsert().
		Model(record).
		On("CONFLICT (event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: outbox event %q: %w", record.EventID, core.ErrDuplicateEvent)
	}
	return nil
}

func (s *OutboxStore) ClaimBatch(ctx context.Context, limit int) ([]core.LoanEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	query := `
WITH claimed AS (
	SELECT id
	FROM loan_outbox
	WHERE status = ?
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY occurred_at ASC
	LIMIT ?
)
UPDATE loan_outbox
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	event_id,
	event_name,
	loan_id,
	employee_id,
	payload,
	metadata,
	status,
	attempts,
	next_attempt_at,
	last_error,
	occurred_at,
	created_at,
	updated_at
`
	var records []loanOutboxRecord
	err := conn(ctx, s.db).NewRaw(
		query,
		outboxStatusPending,
		now,
		limit,
		outboxStatusProcessing,
		now,
		outboxStatusPending,
	).Scan(ctx, &records)
	if err != nil {
		return nil, err
	}

	events := make([]core.LoanEvent, 0, len(records))
	for _, record := range records {
		events = append(events, outboxRecordToEvent(record))
	}
	return events, nil
}

func (s *OutboxStore) Ack(ctx context.Context, eventID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	_, err := conn(ctx, s.db).NewUpdate().
		Model((*loanOutboxRecord)(nil)).
		Set("status = ?", outboxStatusDelivered).
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

// Retry records a failed delivery. A zero nextAttemptAt marks the event as
// permanently failed.
func (s *OutboxStore) Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	status := outboxStatusPending
	var next *time.Time
	if !nextAttemptAt.IsZero() {
		nextValue := nextAttemptAt.UTC()
		next = &nextValue
	} else {
		status = outboxStatusFailed
	}

	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}
	_, err := conn(ctx, s.db).NewUpdate().
		Model((*loanOutboxRecord)(nil)).
		Set("status = ?", status).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", next).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

// Pending lists events still waiting for delivery, oldest first.
func (s *OutboxStore) Pending(ctx context.Context) ([]core.LoanEvent, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", outboxStatusPending),
		repository.OrderBy("occurred_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	events := make([]core.LoanEvent, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		events = append(events, outboxRecordToEvent(*record))
	}
	return events, nil
}

func outboxRecordToEvent(record loanOutboxRecord) core.LoanEvent {
	event := core.LoanEvent{
		ID:         record.EventID,
		Name:       record.EventName,
		LoanID:     record.LoanID,
		EmployeeID: record.EmployeeID,
		Payload:    copyAnyMap(record.Payload),
		Metadata:   copyAnyMap(record.Metadata),
		OccurredAt: record.OccurredAt,
	}
	event.Metadata[core.MetadataKeyOutboxAttempts] = record.Attempts
	return event
}
