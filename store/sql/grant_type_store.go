package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-loans/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type GrantTypeStore struct {
	db   *bun.DB
	repo repository.Repository[*grantTypeRecord]
}

func NewGrantTypeStore(db *bun.DB) (*GrantTypeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*grantTypeRecord](db, grantTypeHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid grant type repository wiring: %w", err)
		}
	}
	return &GrantTypeStore{db: db, repo: repo}, nil
}

// MaxCode returns the issued code with the greatest number. Numbers are
// compared by value, so a code written under a wider padding ("G0100") still
// ranks below "G999". Grant types are few; every code is scanned.
func (s *GrantTypeStore) MaxCode(ctx context.Context) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: grant type store is not configured")
	}
	var codes []string
	err := conn(ctx, s.db).NewSelect().
		Model((*grantTypeRecord)(nil)).
		Column("code").
		Scan(ctx, &codes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	best := ""
	for _, code := range codes {
		if best == "" || codeNumberGreater(code, best) {
			best = code
		}
	}
	return best, nil
}

// codeNumberGreater compares the trailing digit runs of two codes as
// unbounded integers.
func codeNumberGreater(a, b string) bool {
	na, nb := codeNumber(a), codeNumber(b)
	if len(na) != len(nb) {
		return len(na) > len(nb)
	}
	return na > nb
}

func codeNumber(code string) string {
	code = strings.TrimSpace(code)
	i := len(code)
	for i > 0 && code[i-1] >= '0' && code[i-1] <= '9' {
		i--
	}
	return strings.TrimLeft(code[i:], "0")
}

func (s *GrantTypeStore) Create(ctx context.Context, in core.NewGrantTypeRecord) (core.GrantType, error) {
	if s == nil || s.repo == nil {
		return core.GrantType{}, fmt.Errorf("sqlstore: grant type store is not configured")
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return core.GrantType{}, fmt.Errorf("sqlstore: grant code is required")
	}
	if err := in.Input.Validate(); err != nil {
		return core.GrantType{}, err
	}
	now := time.Now().UTC()
	record := &grantTypeRecord{
		ID:              uuid.NewString(),
		Code:            code,
		Name:            strings.TrimSpace(in.Input.Name),
		Description:     strings.TrimSpace(in.Input.Description),
		MaxAmount:       in.Input.MaxAmount,
		InterestRateBPS: in.Input.InterestRateBPS,
		TermMonths:      in.Input.TermMonths,
		Status:          string(core.GrantTypeStatusActive),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := createRecord(ctx, s.repo, record)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.GrantType{}, fmt.Errorf("sqlstore: grant code %q: %w", code, core.ErrDuplicateCode)
		}
		return core.GrantType{}, err
	}
	return created.toDomain(), nil
}

func (s *GrantTypeStore) Get(ctx context.Context, id string) (core.GrantType, error) {
	id = strings.TrimSpace(id)
	return s.getBy(ctx, "id", id)
}

func (s *GrantTypeStore) GetByCode(ctx context.Context, code string) (core.GrantType, error) {
	code = strings.TrimSpace(code)
	return s.getBy(ctx, "code", code)
}

func (s *GrantTypeStore) getBy(ctx context.Context, column string, value string) (core.GrantType, error) {
	if s == nil || s.db == nil {
		return core.GrantType{}, fmt.Errorf("sqlstore: grant type store is not configured")
	}
	record := &grantTypeRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.GrantType{}, notFound("grant type", value, err)
	}
	return record.toDomain(), nil
}

func (s *GrantTypeStore) List(ctx context.Context, status core.GrantTypeStatus) ([]core.GrantType, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: grant type store is not configured")
	}
	var records []grantTypeRecord
	query := conn(ctx, s.db).NewSelect().
		Model(&records).
		OrderExpr("LENGTH(?TableAlias.code) ASC, ?TableAlias.code ASC")
	if trimmed := strings.TrimSpace(string(status)); trimmed != "" {
		query = query.Where("?TableAlias.status = ?", trimmed)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.GrantType, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func (s *GrantTypeStore) UpdateStatus(ctx context.Context, id string, status core.GrantTypeStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: grant type store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: grant type id is required")
	}
	result, err := conn(ctx, s.db).NewUpdate().
		Model((*grantTypeRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, "grant type", id)
}

// CodeSequenceStore keeps named counters in loan_code_sequences. NextValue
// is one upsert statement, so concurrent callers in different processes
// always observe distinct values.
type CodeSequenceStore struct {
	db *bun.DB
}

func NewCodeSequenceStore(db *bun.DB) (*CodeSequenceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &CodeSequenceStore{db: db}, nil
}

func (s *CodeSequenceStore) NextValue(ctx context.Context, name string, floor int64) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: code sequence store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("sqlstore: sequence name is required")
	}
	if floor < 0 {
		floor = 0
	}
	query := `
INSERT INTO loan_code_sequences (name, value)
VALUES (?, ? + 1)
ON CONFLICT (name) DO UPDATE
SET value = CASE
	WHEN loan_code_sequences.value > ? THEN loan_code_sequences.value
	ELSE ?
END + 1
RETURNING value
`
	var value int64
	if err := conn(ctx, s.db).NewRaw(query, name, floor, floor, floor).Scan(ctx, &value); err != nil {
		return 0, fmt.Errorf("sqlstore: advance sequence %q: %w", name, err)
	}
	return value, nil
}

// Current reads the counter without advancing it. A missing row reads as 0.
func (s *CodeSequenceStore) Current(ctx context.Context, name string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: code sequence store is not configured")
	}
	record := &codeSequenceRecord{}
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return record.Value, nil
}
