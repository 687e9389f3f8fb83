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
	"github.com/uptrace/bun/dialect"
)

type LoanStore struct {
	db   *bun.DB
	repo repository.Repository[*loanRecord]
}

func NewLoanStore(db *bun.DB) (*LoanStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*loanRecord](db, loanHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid loan repository wiring: %w", err)
		}
	}
	return &LoanStore{db: db, repo: repo}, nil
}

// Create inserts the loan and its installment schedule. Callers run it inside
// a Transactor so both writes commit together.
func (s *LoanStore) Create(ctx context.Context, loan core.Loan, installments []core.Installment) (core.IssuedLoan, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.IssuedLoan{}, fmt.Errorf("sqlstore: loan store is not configured")
	}
	if strings.TrimSpace(loan.EmployeeID) == "" || strings.TrimSpace(loan.GrantTypeID) == "" {
		return core.IssuedLoan{}, fmt.Errorf("sqlstore: loan employee and grant type are required")
	}
	if len(installments) == 0 {
		return core.IssuedLoan{}, fmt.Errorf("sqlstore: loan installments are required")
	}
	now := time.Now().UTC()
	record := newLoanRecord(loan, now)
	record.ID = uuid.NewString()
	created, err := createRecord(ctx, s.repo, record)
	if err != nil {
		return core.IssuedLoan{}, err
	}

	rows := make([]installmentRecord, 0, len(installments))
	for _, installment := range installments {
		row := newInstallmentRecord(installment)
		row.ID = uuid.NewString()
		row.LoanID = created.ID
		rows = append(rows, row)
	}
	if _, err := conn(ctx, s.db).NewInsert().Model(&rows).Exec(ctx); err != nil {
		return core.IssuedLoan{}, err
	}

	out := core.IssuedLoan{
		Loan:         created.toDomain(),
		Installments: make([]core.Installment, 0, len(rows)),
	}
	for i := range rows {
		out.Installments = append(out.Installments, rows[i].toDomain())
	}
	return out, nil
}

func (s *LoanStore) Get(ctx context.Context, id string) (core.Loan, error) {
	return s.getLoan(ctx, id, false)
}

// GetForUpdate locks the loan row with SELECT ... FOR UPDATE on Postgres.
// SQLite runs on a single connection, so an open transaction already
// excludes every other writer and the plain read is enough.
func (s *LoanStore) GetForUpdate(ctx context.Context, id string) (core.Loan, error) {
	return s.getLoan(ctx, id, true)
}

func (s *LoanStore) getLoan(ctx context.Context, id string, lock bool) (core.Loan, error) {
	if s == nil || s.db == nil {
		return core.Loan{}, fmt.Errorf("sqlstore: loan store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &loanRecord{}
	query := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1)
	if lock && s.db.Dialect().Name() == dialect.PG {
		query = query.For("UPDATE")
	}
	if err := query.Scan(ctx); err != nil {
		return core.Loan{}, notFound("loan", id, err)
	}
	return record.toDomain(), nil
}

func (s *LoanStore) ListByEmployee(ctx context.Context, employeeID string) ([]core.Loan, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: loan store is not configured")
	}
	var records []loanRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.employee_id = ?", strings.TrimSpace(employeeID)).
		OrderExpr("?TableAlias.issued_at ASC, ?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Loan, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func (s *LoanStore) Update(ctx context.Context, loan core.Loan) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: loan store is not configured")
	}
	id := strings.TrimSpace(loan.ID)
	if id == "" {
		return fmt.Errorf("sqlstore: loan id is required")
	}
	var settledAt *time.Time
	if loan.SettledAt != nil {
		value := loan.SettledAt.UTC()
		settledAt = &value
	}
	result, err := conn(ctx, s.db).NewUpdate().
		Model((*loanRecord)(nil)).
		Set("amount_paid = ?", loan.AmountPaid).
		Set("balance = ?", loan.Balance).
		Set("status = ?", string(loan.Status)).
		Set("settled_at = ?", settledAt).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, "loan", id)
}

func (s *LoanStore) ListInstallments(ctx context.Context, loanID string) ([]core.Installment, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: loan store is not configured")
	}
	var records []installmentRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.loan_id = ?", strings.TrimSpace(loanID)).
		OrderExpr("?TableAlias.sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return installmentsToDomain(records), nil
}

func (s *LoanStore) UpdateInstallment(ctx context.Context, installment core.Installment) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: loan store is not configured")
	}
	id := strings.TrimSpace(installment.ID)
	if id == "" {
		return fmt.Errorf("sqlstore: installment id is required")
	}
	var paidAt *time.Time
	if installment.PaidAt != nil {
		value := installment.PaidAt.UTC()
		paidAt = &value
	}
	result, err := conn(ctx, s.db).NewUpdate().
		Model((*installmentRecord)(nil)).
		Set("amount_paid = ?", installment.AmountPaid).
		Set("status = ?", string(installment.Status)).
		Set("paid_at = ?", paidAt).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(result, "installment", id)
}

// ListUnpaidInstallmentsDue returns installments not yet paid whose due date
// falls in [from, to).
func (s *LoanStore) ListUnpaidInstallmentsDue(ctx context.Context, from time.Time, to time.Time) ([]core.Installment, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: loan store is not configured")
	}
	var records []installmentRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.status != ?", string(core.InstallmentStatusPaid)).
		Where("?TableAlias.due_date >= ?", from.UTC()).
		Where("?TableAlias.due_date < ?", to.UTC()).
		OrderExpr("?TableAlias.due_date ASC, ?TableAlias.loan_id ASC, ?TableAlias.sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return installmentsToDomain(records), nil
}

type PaymentStore struct {
	db   *bun.DB
	repo repository.Repository[*paymentRecord]
}

func NewPaymentStore(db *bun.DB) (*PaymentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*paymentRecord](db, paymentHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid payment repository wiring: %w", err)
		}
	}
	return &PaymentStore{db: db, repo: repo}, nil
}

func (s *PaymentStore) Create(ctx context.Context, payment core.Payment) (core.Payment, error) {
	if s == nil || s.repo == nil {
		return core.Payment{}, fmt.Errorf("sqlstore: payment store is not configured")
	}
	if strings.TrimSpace(payment.LoanID) == "" {
		return core.Payment{}, fmt.Errorf("sqlstore: payment loan id is required")
	}
	if payment.Amount <= 0 {
		return core.Payment{}, fmt.Errorf("sqlstore: payment amount must be positive")
	}
	now := time.Now().UTC()
	paidAt := payment.PaidAt.UTC()
	if paidAt.IsZero() {
		paidAt = now
	}
	record := &paymentRecord{
		ID:        uuid.NewString(),
		LoanID:    strings.TrimSpace(payment.LoanID),
		Amount:    payment.Amount,
		Method:    strings.TrimSpace(payment.Method),
		Reference: strings.TrimSpace(payment.Reference),
		PaidAt:    paidAt,
		CreatedAt: now,
	}
	created, err := createRecord(ctx, s.repo, record)
	if err != nil {
		return core.Payment{}, err
	}
	return created.toDomain(), nil
}

func (s *PaymentStore) ListByLoan(ctx context.Context, loanID string) ([]core.Payment, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: payment store is not configured")
	}
	var records []paymentRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.loan_id = ?", strings.TrimSpace(loanID)).
		OrderExpr("?TableAlias.paid_at ASC, ?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Payment, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}
