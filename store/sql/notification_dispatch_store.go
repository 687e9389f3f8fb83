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

const dispatchStatusSent = "sent"

type NotificationDispatchStore struct {
	db   *bun.DB
	repo repository.Repository[*notificationDispatchRecord]
}

func NewNotificationDispatchStore(db *bun.DB) (*NotificationDispatchStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*notificationDispatchRecord](db, notificationDispatchHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid notification dispatch repository wiring: %w", err)
		}
	}
	return &NotificationDispatchStore{db: db, repo: repo}, nil
}

// Seen reports whether a notification with this key was already delivered.
// Failed attempts do not count.
func (s *NotificationDispatchStore) Seen(ctx context.Context, idempotencyKey string) (bool, error) {
	if s == nil || s.repo == nil {
		return false, fmt.Errorf("sqlstore: notification dispatch store is not configured")
	}
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return false, fmt.Errorf("sqlstore: idempotency key is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("idempotency_key", "=", key),
		repository.SelectBy("status", "=", dispatchStatusSent),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// Record stores the outcome of a dispatch attempt, replacing an earlier
// outcome for the same idempotency key.
func (s *NotificationDispatchStore) Record(ctx context.Context, input core.NotificationDispatchRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: notification dispatch store is not configured")
	}
	if strings.TrimSpace(input.EventID) == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	if strings.TrimSpace(input.Projector) == "" {
		return fmt.Errorf("sqlstore: projector is required")
	}
	if strings.TrimSpace(input.DefinitionCode) == "" {
		return fmt.Errorf("sqlstore: definition code is required")
	}
	if strings.TrimSpace(input.RecipientKey) == "" {
		return fmt.Errorf("sqlstore: recipient key is required")
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return fmt.Errorf("sqlstore: idempotency key is required")
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = dispatchStatusSent
	}
	now := time.Now().UTC()
	record := &notificationDispatchRecord{
		ID:           uuid.NewString(),
		EventID:      strings.TrimSpace(input.EventID),
		Projector:    strings.TrimSpace(input.Projector),
		Definition:   strings.TrimSpace(input.DefinitionCode),
		RecipientKey: strings.TrimSpace(input.RecipientKey),
		Idempotency:  strings.TrimSpace(input.IdempotencyKey),
		Status:       status,
		Error:        strings.TrimSpace(input.Error),
		Metadata:     copyAnyMap(input.Metadata),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := conn(ctx, s.db).NewInsert().
		Model(record).
		On("CONFLICT (idempotency_key) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("error = EXCLUDED.error").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

var _ core.NotificationDispatchLedger = (*NotificationDispatchStore)(nil)
