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

type EmployeeStore struct {
	db   *bun.DB
	repo repository.Repository[*employeeRecord]
}

func NewEmployeeStore(db *bun.DB) (*EmployeeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*employeeRecord](db, employeeHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid employee repository wiring: %w", err)
		}
	}
	return &EmployeeStore{db: db, repo: repo}, nil
}

func (s *EmployeeStore) Create(ctx context.Context, in core.CreateEmployeeInput) (core.Employee, error) {
	if s == nil || s.repo == nil {
		return core.Employee{}, fmt.Errorf("sqlstore: employee store is not configured")
	}
	if err := in.Validate(); err != nil {
		return core.Employee{}, err
	}
	now := time.Now().UTC()
	record := &employeeRecord{
		ID:             uuid.NewString(),
		EmployeeNumber: strings.TrimSpace(in.EmployeeNumber),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		Department:     strings.TrimSpace(in.Department),
		Status:         string(core.EmployeeStatusActive),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := createRecord(ctx, s.repo, record)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.Employee{}, fmt.Errorf(
				"sqlstore: employee number %q already exists: %w",
				record.EmployeeNumber,
				core.ErrInvalidInput,
			)
		}
		return core.Employee{}, err
	}
	return created.toDomain(), nil
}

func (s *EmployeeStore) Get(ctx context.Context, id string) (core.Employee, error) {
	if s == nil || s.db == nil {
		return core.Employee{}, fmt.Errorf("sqlstore: employee store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &employeeRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Employee{}, notFound("employee", id, err)
	}
	return record.toDomain(), nil
}

func (s *EmployeeStore) UpdateStatus(ctx context.Context, id string, status core.EmployeeStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: employee store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: employee id is required")
	}
	result, err := conn(ctx, s.db).NewUpdate().
		Model((*employeeRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, "employee", id)
}

type GuarantorStore struct {
	db   *bun.DB
	repo repository.Repository[*guarantorRecord]
}

func NewGuarantorStore(db *bun.DB) (*GuarantorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*guarantorRecord](db, guarantorHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid guarantor repository wiring: %w", err)
		}
	}
	return &GuarantorStore{db: db, repo: repo}, nil
}

func (s *GuarantorStore) Create(ctx context.Context, in core.CreateGuarantorInput) (core.Guarantor, error) {
	if s == nil || s.repo == nil {
		return core.Guarantor{}, fmt.Errorf("sqlstore: guarantor store is not configured")
	}
	if err := in.Validate(); err != nil {
		return core.Guarantor{}, err
	}
	now := time.Now().UTC()
	record := &guarantorRecord{
		ID:           uuid.NewString(),
		EmployeeID:   strings.TrimSpace(in.EmployeeID),
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.TrimSpace(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		Relationship: strings.TrimSpace(in.Relationship),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := createRecord(ctx, s.repo, record)
	if err != nil {
		return core.Guarantor{}, err
	}
	return created.toDomain(), nil
}

func (s *GuarantorStore) Get(ctx context.Context, id string) (core.Guarantor, error) {
	if s == nil || s.db == nil {
		return core.Guarantor{}, fmt.Errorf("sqlstore: guarantor store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &guarantorRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Guarantor{}, notFound("guarantor", id, err)
	}
	return record.toDomain(), nil
}

func (s *GuarantorStore) ListByEmployee(ctx context.Context, employeeID string) ([]core.Guarantor, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: guarantor store is not configured")
	}
	var records []guarantorRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.employee_id = ?", strings.TrimSpace(employeeID)).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Guarantor, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}
