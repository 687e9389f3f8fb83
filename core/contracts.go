package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Transactor runs fn inside a single store transaction. It commits when fn
// returns nil and rolls back otherwise. Calls nested inside fn join the
// outer transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MaxCodeReader fetches the greatest persisted grant code, or "" when no
// code has been issued yet.
type MaxCodeReader interface {
	MaxCode(ctx context.Context) (string, error)
}

// CodeSequenceStore is a durable named counter with a single atomic
// increment-and-fetch. The returned value is max(current, floor) + 1.
type CodeSequenceStore interface {
	NextValue(ctx context.Context, name string, floor int64) (int64, error)
}

type EmployeeStore interface {
	Create(ctx context.Context, in CreateEmployeeInput) (Employee, error)
	Get(ctx context.Context, id string) (Employee, error)
	UpdateStatus(ctx context.Context, id string, status EmployeeStatus) error
}

type GuarantorStore interface {
	Create(ctx context.Context, in CreateGuarantorInput) (Guarantor, error)
	Get(ctx context.Context, id string) (Guarantor, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]Guarantor, error)
}

type GrantTypeStore interface {
	MaxCodeReader
	// Create persists a new grant type. A code that already exists is
	// reported as ErrDuplicateCode.
	Create(ctx context.Context, in NewGrantTypeRecord) (GrantType, error)
	Get(ctx context.Context, id string) (GrantType, error)
	GetByCode(ctx context.Context, code string) (GrantType, error)
	List(ctx context.Context, status GrantTypeStatus) ([]GrantType, error)
	UpdateStatus(ctx context.Context, id string, status GrantTypeStatus) error
}

type LoanStore interface {
	Create(ctx context.Context, loan Loan, installments []Installment) (IssuedLoan, error)
	Get(ctx context.Context, id string) (Loan, error)
	// GetForUpdate reads the loan and holds a row lock until the enclosing
	// transaction ends. Payments and cancellations read through it.
	GetForUpdate(ctx context.Context, id string) (Loan, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]Loan, error)
	Update(ctx context.Context, loan Loan) error
	ListInstallments(ctx context.Context, loanID string) ([]Installment, error)
	UpdateInstallment(ctx context.Context, installment Installment) error
	ListUnpaidInstallmentsDue(ctx context.Context, from time.Time, to time.Time) ([]Installment, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment Payment) (Payment, error)
	ListByLoan(ctx context.Context, loanID string) ([]Payment, error)
}

type OutboxStore interface {
	// Enqueue stores event for delivery. An event ID that is already
	// enqueued is reported as ErrDuplicateEvent and leaves the outbox as is.
	Enqueue(ctx context.Context, event LoanEvent) error
	ClaimBatch(ctx context.Context, limit int) ([]LoanEvent, error)
	Ack(ctx context.Context, eventID string) error
	Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error
}

type LoanEventHandler interface {
	Handle(ctx context.Context, event LoanEvent) error
}

type LoanEventHandlerFunc func(ctx context.Context, event LoanEvent) error

func (f LoanEventHandlerFunc) Handle(ctx context.Context, event LoanEvent) error {
	return f(ctx, event)
}

type NotificationSendRequest struct {
	DefinitionCode string
	Recipients     []Recipient
	Event          LoanEvent
	Metadata       map[string]any
}

type NotificationSender interface {
	Send(ctx context.Context, req NotificationSendRequest) error
}

type NotificationDispatchRecord struct {
	EventID        string
	Projector      string
	DefinitionCode string
	RecipientKey   string
	IdempotencyKey string
	Status         string
	Error          string
	Metadata       map[string]any
}

type NotificationDispatchLedger interface {
	Seen(ctx context.Context, idempotencyKey string) (bool, error)
	Record(ctx context.Context, record NotificationDispatchRecord) error
}

// StoreProvider is implemented by repository factories that expose the full
// set of loans stores.
type StoreProvider interface {
	Transactor() Transactor
	EmployeeStore() EmployeeStore
	GuarantorStore() GuarantorStore
	GrantTypeStore() GrantTypeStore
	CodeSequenceStore() CodeSequenceStore
	LoanStore() LoanStore
	PaymentStore() PaymentStore
	OutboxStore() OutboxStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type LoansService interface {
	OnboardEmployee(ctx context.Context, in CreateEmployeeInput) (Employee, error)
	GetEmployee(ctx context.Context, id string) (Employee, error)
	DeactivateEmployee(ctx context.Context, id string) (Employee, error)
	AddGuarantor(ctx context.Context, in CreateGuarantorInput) (Guarantor, error)
	ListGuarantors(ctx context.Context, employeeID string) ([]Guarantor, error)
	CreateGrantType(ctx context.Context, in CreateGrantTypeInput) (GrantType, error)
	GetGrantType(ctx context.Context, id string) (GrantType, error)
	GetGrantTypeByCode(ctx context.Context, code string) (GrantType, error)
	ListGrantTypes(ctx context.Context, status GrantTypeStatus) ([]GrantType, error)
	UpdateGrantTypeStatus(ctx context.Context, id string, status GrantTypeStatus) (GrantType, error)
	IssueLoan(ctx context.Context, req IssueLoanRequest) (IssuedLoan, error)
	CancelLoan(ctx context.Context, loanID string) (Loan, error)
	GetLoan(ctx context.Context, loanID string) (Loan, error)
	ListLoans(ctx context.Context, employeeID string) ([]Loan, error)
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (PaymentReceipt, error)
	ListPayments(ctx context.Context, loanID string) ([]Payment, error)
	LoanStatement(ctx context.Context, loanID string) (Statement, error)
	RunReminders(ctx context.Context, asOf time.Time) (ReminderResult, error)
	DispatchOutbox(ctx context.Context, batchSize int) (DispatchStats, error)
}

// JobExecutionMessage is a queued run of a background loans job.
type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
