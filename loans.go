package loans

import "github.com/goliatone/go-loans/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Transactor = core.Transactor
type CodeAllocator = core.CodeAllocator
type HighWaterMark = core.HighWaterMark
type LoanEventHandler = core.LoanEventHandler
type NotificationSender = core.NotificationSender
type NotificationDispatchLedger = core.NotificationDispatchLedger

type CreateEmployeeInput = core.CreateEmployeeInput
type CreateGuarantorInput = core.CreateGuarantorInput
type CreateGrantTypeInput = core.CreateGrantTypeInput

type IssueLoanRequest = core.IssueLoanRequest

type RecordPaymentRequest = core.RecordPaymentRequest

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithTransactor        = core.WithTransactor
	WithEmployeeStore     = core.WithEmployeeStore
	WithGuarantorStore    = core.WithGuarantorStore
	WithGrantTypeStore    = core.WithGrantTypeStore
	WithCodeSequenceStore = core.WithCodeSequenceStore
	WithLoanStore         = core.WithLoanStore
	WithPaymentStore      = core.WithPaymentStore
	WithOutboxStore       = core.WithOutboxStore
	WithCodeAllocator     = core.WithCodeAllocator
	WithHighWaterMark     = core.WithHighWaterMark
	WithEventHandler      = core.WithEventHandler
	WithProjectorRegistry = core.WithProjectorRegistry
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
