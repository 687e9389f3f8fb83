package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type employeeRecord struct {
	bun.BaseModel `bun:"table:loan_employees,alias:le"`

	ID             string    `bun:"id,pk"`
	EmployeeNumber string    `bun:"employee_number,notnull"`
	FirstName      string    `bun:"first_name,notnull"`
	LastName       string    `bun:"last_name,notnull"`
	Email          string    `bun:"email,notnull"`
	Phone          string    `bun:"phone,notnull"`
	Department     string    `bun:"department,notnull"`
	Status         string    `bun:"status,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type guarantorRecord struct {
	bun.BaseModel `bun:"table:loan_guarantors,alias:lg"`

	ID           string    `bun:"id,pk"`
	EmployeeID   string    `bun:"employee_id,notnull"`
	FullName     string    `bun:"full_name,notnull"`
	Email        string    `bun:"email,notnull"`
	Phone        string    `bun:"phone,notnull"`
	Relationship string    `bun:"relationship,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type grantTypeRecord struct {
	bun.BaseModel `bun:"table:loan_grant_types,alias:lgt"`

	ID              string    `bun:"id,pk"`
	Code            string    `bun:"code,notnull"`
	Name            string    `bun:"name,notnull"`
	Description     string    `bun:"description,notnull"`
	MaxAmount       int64     `bun:"max_amount,notnull"`
	InterestRateBPS int       `bun:"interest_rate_bps,notnull"`
	TermMonths      int       `bun:"term_months,notnull"`
	Status          string    `bun:"status,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type codeSequenceRecord struct {
	bun.BaseModel `bun:"table:loan_code_sequences,alias:lcs"`

	Name  string `bun:"name,pk"`
	Value int64  `bun:"value,notnull"`
}

type loanRecord struct {
	bun.BaseModel `bun:"table:loans,alias:l"`

	ID              string     `bun:"id,pk"`
	EmployeeID      string     `bun:"employee_id,notnull"`
	GuarantorID     *string    `bun:"guarantor_id"`
	GrantTypeID     string     `bun:"grant_type_id,notnull"`
	GrantCode       string     `bun:"grant_code,notnull"`
	Principal       int64      `bun:"principal,notnull"`
	InterestRateBPS int        `bun:"interest_rate_bps,notnull"`
	TermMonths      int        `bun:"term_months,notnull"`
	TotalDue        int64      `bun:"total_due,notnull"`
	AmountPaid      int64      `bun:"amount_paid,notnull"`
	Balance         int64      `bun:"balance,notnull"`
	Status          string     `bun:"status,notnull"`
	IssuedAt        time.Time  `bun:"issued_at,notnull"`
	SettledAt       *time.Time `bun:"settled_at,nullzero"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type installmentRecord struct {
	bun.BaseModel `bun:"table:loan_installments,alias:li"`

	ID         string     `bun:"id,pk"`
	LoanID     string     `bun:"loan_id,notnull"`
	Sequence   int        `bun:"sequence,notnull"`
	DueDate    time.Time  `bun:"due_date,notnull"`
	Amount     int64      `bun:"amount,notnull"`
	AmountPaid int64      `bun:"amount_paid,notnull"`
	Status     string     `bun:"status,notnull"`
	PaidAt     *time.Time `bun:"paid_at,nullzero"`
}

type paymentRecord struct {
	bun.BaseModel `bun:"table:loan_payments,alias:lp"`

	ID        string    `bun:"id,pk"`
	LoanID    string    `bun:"loan_id,notnull"`
	Amount    int64     `bun:"amount,notnull"`
	Method    string    `bun:"method,notnull"`
	Reference string    `bun:"reference,notnull"`
	PaidAt    time.Time `bun:"paid_at,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type loanOutboxRecord struct {
	bun.BaseModel `bun:"table:loan_outbox,alias:lo"`

	ID            string         `bun:"id,pk"`
	EventID       string         `bun:"event_id,notnull"`
	EventName     string         `bun:"event_name,notnull"`
	LoanID        string         `bun:"loan_id,notnull"`
	EmployeeID    string         `bun:"employee_id,notnull"`
	Payload       map[string]any `bun:"payload,type:jsonb,notnull"`
	Metadata      map[string]any `bun:"metadata,type:jsonb,notnull"`
	Status        string         `bun:"status,notnull"`
	Attempts      int            `bun:"attempts,notnull"`
	NextAttemptAt *time.Time     `bun:"next_attempt_at,nullzero"`
	LastError     string         `bun:"last_error,notnull"`
	OccurredAt    time.Time      `bun:"occurred_at,notnull"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type notificationDispatchRecord struct {
	bun.BaseModel `bun:"table:loan_notification_dispatches,alias:lnd"`

	ID           string         `bun:"id,pk"`
	EventID      string         `bun:"event_id,notnull"`
	Projector    string         `bun:"projector,notnull"`
	Definition   string         `bun:"definition_code,notnull"`
	RecipientKey string         `bun:"recipient_key,notnull"`
	Idempotency  string         `bun:"idempotency_key,notnull"`
	Status       string         `bun:"status,notnull"`
	Error        string         `bun:"error,notnull"`
	Metadata     map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
