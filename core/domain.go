package core

import (
	"fmt"
	"strings"
	"time"
)

type EmployeeStatus string

const (
	EmployeeStatusActive   EmployeeStatus = "active"
	EmployeeStatusInactive EmployeeStatus = "inactive"
)

type GrantTypeStatus string

const (
	GrantTypeStatusActive   GrantTypeStatus = "active"
	GrantTypeStatusArchived GrantTypeStatus = "archived"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusSettled   LoanStatus = "settled"
	LoanStatusCancelled LoanStatus = "cancelled"
)

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPartial InstallmentStatus = "partial"
	InstallmentStatusPaid    InstallmentStatus = "paid"
)

const (
	EventLoanIssued      = "loan.issued"
	EventLoanCancelled   = "loan.cancelled"
	EventLoanSettled     = "loan.settled"
	EventPaymentRecorded = "payment.recorded"
	EventInstallmentDue  = "installment.due"
)

type Employee struct {
	ID             string
	EmployeeNumber string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Department     string
	Status         EmployeeStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e Employee) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

type CreateEmployeeInput struct {
	EmployeeNumber string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Department     string
}

func (in CreateEmployeeInput) Validate() error {
	if strings.TrimSpace(in.EmployeeNumber) == "" {
		return fmt.Errorf("core: employee number is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.FirstName) == "" && strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("core: employee name is required: %w", ErrInvalidInput)
	}
	if email := strings.TrimSpace(in.Email); email != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("core: employee email %q is invalid: %w", email, ErrInvalidInput)
	}
	return nil
}

type Guarantor struct {
	ID           string
	EmployeeID   string
	FullName     string
	Email        string
	Phone        string
	Relationship string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateGuarantorInput struct {
	EmployeeID   string
	FullName     string
	Email        string
	Phone        string
	Relationship string
}

func (in CreateGuarantorInput) Validate() error {
	if strings.TrimSpace(in.EmployeeID) == "" {
		return fmt.Errorf("core: guarantor employee id is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return fmt.Errorf("core: guarantor name is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Email) == "" && strings.TrimSpace(in.Phone) == "" {
		return fmt.Errorf("core: guarantor email or phone is required: %w", ErrInvalidInput)
	}
	return nil
}

// GrantType is a loan product. Code is allocated by a CodeAllocator and never
// changes after creation.
type GrantType struct {
	ID              string
	Code            string
	Name            string
	Description     string
	MaxAmount       int64
	InterestRateBPS int
	TermMonths      int
	Status          GrantTypeStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateGrantTypeInput struct {
	Name            string
	Description     string
	MaxAmount       int64
	InterestRateBPS int
	TermMonths      int
}

func (in CreateGrantTypeInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("core: grant type name is required: %w", ErrInvalidInput)
	}
	if in.MaxAmount <= 0 {
		return fmt.Errorf("core: grant type max amount must be positive: %w", ErrInvalidInput)
	}
	if in.InterestRateBPS < 0 {
		return fmt.Errorf("core: grant type interest rate must be >= 0: %w", ErrInvalidInput)
	}
	if in.TermMonths <= 0 {
		return fmt.Errorf("core: grant type term must be positive: %w", ErrInvalidInput)
	}
	return nil
}

// NewGrantTypeRecord is what the grant type store persists: the validated
// input plus the allocated code.
type NewGrantTypeRecord struct {
	Code  string
	Input CreateGrantTypeInput
}

type Loan struct {
	ID              string
	EmployeeID      string
	GuarantorID     string
	GrantTypeID     string
	GrantCode       string
	Principal       int64
	InterestRateBPS int
	TermMonths      int
	TotalDue        int64
	AmountPaid      int64
	Balance         int64
	Status          LoanStatus
	IssuedAt        time.Time
	SettledAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Installment struct {
	ID         string
	LoanID     string
	Sequence   int
	DueDate    time.Time
	Amount     int64
	AmountPaid int64
	Status     InstallmentStatus
	PaidAt     *time.Time
}

func (i Installment) Outstanding() int64 {
	remaining := i.Amount - i.AmountPaid
	if remaining < 0 {
		return 0
	}
	return remaining
}

type IssueLoanRequest struct {
	EmployeeID  string
	GrantTypeID string
	GuarantorID string
	Principal   int64
	TermMonths  int
	IssuedAt    time.Time
	Metadata    map[string]any
}

type IssuedLoan struct {
	Loan         Loan
	Installments []Installment
}

type Payment struct {
	ID        string
	LoanID    string
	Amount    int64
	Method    string
	Reference string
	PaidAt    time.Time
	CreatedAt time.Time
}

type RecordPaymentRequest struct {
	LoanID    string
	Amount    int64
	Method    string
	Reference string
	PaidAt    time.Time
	Metadata  map[string]any
}

type PaymentReceipt struct {
	Payment      Payment
	Loan         Loan
	Installments []Installment
}

type Statement struct {
	Loan          Loan
	Employee      Employee
	GrantType     GrantType
	Installments  []Installment
	Payments      []Payment
	TotalPaid     int64
	Outstanding   int64
	OverdueAmount int64
	GeneratedAt   time.Time
}

// LoanEvent is a lifecycle event persisted to the outbox in the same
// transaction as the state change that produced it.
type LoanEvent struct {
	ID         string
	Name       string
	LoanID     string
	EmployeeID string
	Payload    map[string]any
	Metadata   map[string]any
	OccurredAt time.Time
}

type Recipient struct {
	Type    string
	ID      string
	Address string
}

type DispatchStats struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
