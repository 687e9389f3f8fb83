package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	transactor        Transactor
	employeeStore     EmployeeStore
	guarantorStore    GuarantorStore
	grantTypeStore    GrantTypeStore
	sequenceStore     CodeSequenceStore
	loanStore         LoanStore
	paymentStore      PaymentStore
	outboxStore       OutboxStore
	codeAllocator     CodeAllocator
	highWaterMark     *HighWaterMark
	projectors        *LoanProjectorRegistry
	reminderSchedule  ReminderSchedule
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Transactor        Transactor
	EmployeeStore     EmployeeStore
	GuarantorStore    GuarantorStore
	GrantTypeStore    GrantTypeStore
	SequenceStore     CodeSequenceStore
	LoanStore         LoanStore
	PaymentStore      PaymentStore
	OutboxStore       OutboxStore
	CodeAllocator     CodeAllocator
	HighWaterMark     *HighWaterMark
	Projectors        *LoanProjectorRegistry
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("loans", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("loans"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = utcNow
	}
	if builder.projectors == nil {
		builder.projectors = NewLoanProjectorRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			builder.applyStores(stores)
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.applyStores(stores)
		}
	}
	if builder.transactor == nil {
		builder.transactor = NopTransactor{}
	}
	if builder.highWaterMark == nil {
		builder.highWaterMark = DefaultHighWaterMark()
	}
	if builder.codeAllocator == nil && builder.grantTypeStore != nil {
		allocator, allocErr := NewCodeAllocator(
			finalConfig.Codes,
			builder.grantTypeStore,
			builder.sequenceStore,
			builder.highWaterMark,
		)
		if allocErr != nil {
			return nil, mapBuildError(builder.errorMapper, allocErr)
		}
		builder.codeAllocator = allocator
	}

	schedule, err := ParseReminderSchedule(finalConfig.Reminders.Schedule)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		transactor:        builder.transactor,
		employeeStore:     builder.employeeStore,
		guarantorStore:    builder.guarantorStore,
		grantTypeStore:    builder.grantTypeStore,
		sequenceStore:     builder.sequenceStore,
		loanStore:         builder.loanStore,
		paymentStore:      builder.paymentStore,
		outboxStore:       builder.outboxStore,
		codeAllocator:     builder.codeAllocator,
		highWaterMark:     builder.highWaterMark,
		projectors:        builder.projectors,
		reminderSchedule:  schedule,
		now:               builder.now,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// applyStores fills every store the caller did not set explicitly.
func (b *serviceBuilder) applyStores(stores StoreProvider) {
	if b == nil || stores == nil {
		return
	}
	if b.transactor == nil {
		b.transactor = stores.Transactor()
	}
	if b.employeeStore == nil {
		b.employeeStore = stores.EmployeeStore()
	}
	if b.guarantorStore == nil {
		b.guarantorStore = stores.GuarantorStore()
	}
	if b.grantTypeStore == nil {
		b.grantTypeStore = stores.GrantTypeStore()
	}
	if b.sequenceStore == nil {
		b.sequenceStore = stores.CodeSequenceStore()
	}
	if b.loanStore == nil {
		b.loanStore = stores.LoanStore()
	}
	if b.paymentStore == nil {
		b.paymentStore = stores.PaymentStore()
	}
	if b.outboxStore == nil {
		b.outboxStore = stores.OutboxStore()
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Transactor:        s.transactor,
		EmployeeStore:     s.employeeStore,
		GuarantorStore:    s.guarantorStore,
		GrantTypeStore:    s.grantTypeStore,
		SequenceStore:     s.sequenceStore,
		LoanStore:         s.loanStore,
		PaymentStore:      s.paymentStore,
		OutboxStore:       s.outboxStore,
		CodeAllocator:     s.codeAllocator,
		HighWaterMark:     s.highWaterMark,
		Projectors:        s.projectors,
	}
}

func (s *Service) OnboardEmployee(ctx context.Context, in CreateEmployeeInput) (employee Employee, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"employee_number": in.EmployeeNumber}
	defer func() {
		if employee.ID != "" {
			fields["employee_id"] = employee.ID
		}
		s.observeOperation(ctx, startedAt, "onboard_employee", err, fields)
	}()

	if s == nil || s.employeeStore == nil {
		err = s.mapError(fmt.Errorf("core: employee store is required"))
		return Employee{}, err
	}
	if err = in.Validate(); err != nil {
		err = s.mapError(err)
		return Employee{}, err
	}
	employee, err = s.employeeStore.Create(ctx, in)
	if err != nil {
		err = s.mapError(err)
		return Employee{}, err
	}
	return employee, nil
}

func (s *Service) GetEmployee(ctx context.Context, id string) (Employee, error) {
	if s == nil || s.employeeStore == nil {
		return Employee{}, s.mapError(fmt.Errorf("core: employee store is required"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Employee{}, s.mapError(fmt.Errorf("core: employee id is required: %w", ErrInvalidInput))
	}
	employee, err := s.employeeStore.Get(ctx, id)
	if err != nil {
		return Employee{}, s.mapError(err)
	}
	return employee, nil
}

func (s *Service) DeactivateEmployee(ctx context.Context, id string) (employee Employee, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"employee_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "deactivate_employee", err, fields)
	}()

	if s == nil || s.employeeStore == nil {
		err = s.mapError(fmt.Errorf("core: employee store is required"))
		return Employee{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		err = s.mapError(fmt.Errorf("core: employee id is required: %w", ErrInvalidInput))
		return Employee{}, err
	}
	employee, err = RunInTransaction(ctx, s.transactor, "deactivate employee", func(ctx context.Context) (Employee, error) {
		if err := s.employeeStore.UpdateStatus(ctx, id, EmployeeStatusInactive); err != nil {
			return Employee{}, err
		}
		return s.employeeStore.Get(ctx, id)
	})
	if err != nil {
		err = s.mapError(err)
		return Employee{}, err
	}
	return employee, nil
}

func (s *Service) AddGuarantor(ctx context.Context, in CreateGuarantorInput) (guarantor Guarantor, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"employee_id": in.EmployeeID}
	defer func() {
		s.observeOperation(ctx, startedAt, "add_guarantor", err, fields)
	}()

	if s == nil || s.employeeStore == nil || s.guarantorStore == nil {
		err = s.mapError(fmt.Errorf("core: employee and guarantor stores are required"))
		return Guarantor{}, err
	}
	if err = in.Validate(); err != nil {
		err = s.mapError(err)
		return Guarantor{}, err
	}
	guarantor, err = RunInTransaction(ctx, s.transactor, "add guarantor", func(ctx context.Context) (Guarantor, error) {
		if _, err := s.employeeStore.Get(ctx, in.EmployeeID); err != nil {
			return Guarantor{}, err
		}
		return s.guarantorStore.Create(ctx, in)
	})
	if err != nil {
		err = s.mapError(err)
		return Guarantor{}, err
	}
	return guarantor, nil
}

func (s *Service) ListGuarantors(ctx context.Context, employeeID string) ([]Guarantor, error) {
	if s == nil || s.guarantorStore == nil {
		return nil, s.mapError(fmt.Errorf("core: guarantor store is required"))
	}
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, s.mapError(fmt.Errorf("core: employee id is required: %w", ErrInvalidInput))
	}
	guarantors, err := s.guarantorStore.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return guarantors, nil
}

// CreateGrantType allocates a code and persists the grant type in one
// transaction. A code collision rolls the attempt back and allocates again,
// up to codes.max_attempts times.
func (s *Service) CreateGrantType(ctx context.Context, in CreateGrantTypeInput) (grantType GrantType, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"name": in.Name}
	defer func() {
		if grantType.ID != "" {
			fields["grant_type_id"] = grantType.ID
			fields["grant_code"] = grantType.Code
		}
		s.observeOperation(ctx, startedAt, "create_grant_type", err, fields)
	}()

	if s == nil || s.grantTypeStore == nil || s.codeAllocator == nil {
		err = s.mapError(fmt.Errorf("core: grant type store and code allocator are required"))
		return GrantType{}, err
	}
	if err = in.Validate(); err != nil {
		err = s.mapError(err)
		return GrantType{}, err
	}

	attempts := s.config.Codes.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	tried := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		tried = attempt
		grantType, err = RunInTransaction(ctx, s.transactor, "create grant type", func(ctx context.Context) (GrantType, error) {
			code, err := s.codeAllocator.Next(ctx)
			if err != nil {
				return GrantType{}, err
			}
			return s.grantTypeStore.Create(ctx, NewGrantTypeRecord{Code: code, Input: in})
		})
		if err == nil {
			fields["attempts"] = attempt
			return grantType, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			break
		}
		s.logWarn(ctx, "grant code collision, retrying", map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		})
	}
	fields["attempts"] = tried
	err = s.mapError(err)
	return GrantType{}, err
}

func (s *Service) GetGrantType(ctx context.Context, id string) (GrantType, error) {
	if s == nil || s.grantTypeStore == nil {
		return GrantType{}, s.mapError(fmt.Errorf("core: grant type store is required"))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return GrantType{}, s.mapError(fmt.Errorf("core: grant type id is required: %w", ErrInvalidInput))
	}
	grantType, err := s.grantTypeStore.Get(ctx, id)
	if err != nil {
		return GrantType{}, s.mapError(err)
	}
	return grantType, nil
}

func (s *Service) GetGrantTypeByCode(ctx context.Context, code string) (GrantType, error) {
	if s == nil || s.grantTypeStore == nil {
		return GrantType{}, s.mapError(fmt.Errorf("core: grant type store is required"))
	}
	code = strings.TrimSpace(code)
	format := CodeFormat{Prefix: s.config.Codes.Prefix, Width: s.config.Codes.Width}
	if _, err := format.Parse(code); err != nil || code == "" {
		if err == nil {
			err = fmt.Errorf("core: grant code is required: %w", ErrInvalidInput)
		}
		return GrantType{}, s.mapError(err)
	}
	grantType, err := s.grantTypeStore.GetByCode(ctx, code)
	if err != nil {
		return GrantType{}, s.mapError(err)
	}
	return grantType, nil
}

// ListGrantTypes returns grant types ordered by code. An empty status lists
// every grant type.
func (s *Service) ListGrantTypes(ctx context.Context, status GrantTypeStatus) ([]GrantType, error) {
	if s == nil || s.grantTypeStore == nil {
		return nil, s.mapError(fmt.Errorf("core: grant type store is required"))
	}
	switch status {
	case "", GrantTypeStatusActive, GrantTypeStatusArchived:
	default:
		return nil, s.mapError(fmt.Errorf("core: grant type status %q is invalid: %w", status, ErrInvalidInput))
	}
	grantTypes, err := s.grantTypeStore.List(ctx, status)
	if err != nil {
		return nil, s.mapError(err)
	}
	return grantTypes, nil
}

func (s *Service) UpdateGrantTypeStatus(ctx context.Context, id string, status GrantTypeStatus) (grantType GrantType, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"grant_type_id": id, "status": string(status)}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_grant_type_status", err, fields)
	}()

	if s == nil || s.grantTypeStore == nil {
		err = s.mapError(fmt.Errorf("core: grant type store is required"))
		return GrantType{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		err = s.mapError(fmt.Errorf("core: grant type id is required: %w", ErrInvalidInput))
		return GrantType{}, err
	}
	if status != GrantTypeStatusActive && status != GrantTypeStatusArchived {
		err = s.mapError(fmt.Errorf("core: grant type status %q is invalid: %w", status, ErrInvalidInput))
		return GrantType{}, err
	}
	grantType, err = RunInTransaction(ctx, s.transactor, "update grant type status", func(ctx context.Context) (GrantType, error) {
		if err := s.grantTypeStore.UpdateStatus(ctx, id, status); err != nil {
			return GrantType{}, err
		}
		return s.grantTypeStore.Get(ctx, id)
	})
	if err != nil {
		err = s.mapError(err)
		return GrantType{}, err
	}
	return grantType, nil
}

func (s *Service) IssueLoan(ctx context.Context, req IssueLoanRequest) (issued IssuedLoan, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"employee_id":   req.EmployeeID,
		"grant_type_id": req.GrantTypeID,
		"principal":     req.Principal,
	}
	defer func() {
		if issued.Loan.ID != "" {
			fields["loan_id"] = issued.Loan.ID
			fields["grant_code"] = issued.Loan.GrantCode
		}
		s.observeOperation(ctx, startedAt, "issue_loan", err, fields)
	}()

	if err = s.requireLoanStores(); err != nil {
		err = s.mapError(err)
		return IssuedLoan{}, err
	}
	if err = validateIssueLoanRequest(req); err != nil {
		err = s.mapError(err)
		return IssuedLoan{}, err
	}

	issuedAt := req.IssuedAt.UTC()
	if req.IssuedAt.IsZero() {
		issuedAt = s.now().UTC()
	}

	issued, err = RunInTransaction(ctx, s.transactor, "issue loan", func(ctx context.Context) (IssuedLoan, error) {
		employee, err := s.employeeStore.Get(ctx, req.EmployeeID)
		if err != nil {
			return IssuedLoan{}, err
		}
		if employee.Status != EmployeeStatusActive {
			return IssuedLoan{}, fmt.Errorf("core: employee %s: %w", employee.ID, ErrEmployeeInactive)
		}
		grantType, err := s.grantTypeStore.Get(ctx, req.GrantTypeID)
		if err != nil {
			return IssuedLoan{}, err
		}
		if grantType.Status != GrantTypeStatusActive {
			return IssuedLoan{}, fmt.Errorf("core: grant type %s: %w", grantType.Code, ErrGrantTypeInactive)
		}
		if req.Principal > grantType.MaxAmount {
			return IssuedLoan{}, fmt.Errorf(
				"core: principal %d above %s limit %d: %w",
				req.Principal, grantType.Code, grantType.MaxAmount, ErrAmountExceedsLimit,
			)
		}
		term := req.TermMonths
		if term == 0 {
			term = grantType.TermMonths
		}
		if term > s.config.Loans.MaxTermMonths {
			return IssuedLoan{}, fmt.Errorf(
				"core: term %d exceeds %d months: %w",
				term, s.config.Loans.MaxTermMonths, ErrInvalidInput,
			)
		}
		guarantorID := strings.TrimSpace(req.GuarantorID)
		if guarantorID != "" {
			if s.guarantorStore == nil {
				return IssuedLoan{}, fmt.Errorf("core: guarantor store is required")
			}
			guarantor, err := s.guarantorStore.Get(ctx, guarantorID)
			if err != nil {
				return IssuedLoan{}, err
			}
			if guarantor.EmployeeID != employee.ID {
				return IssuedLoan{}, fmt.Errorf(
					"core: guarantor %s does not belong to employee %s: %w",
					guarantor.ID, employee.ID, ErrInvalidInput,
				)
			}
		}

		total := req.Principal + FlatInterest(req.Principal, grantType.InterestRateBPS, term)
		installments, err := BuildInstallments(total, term, issuedAt)
		if err != nil {
			return IssuedLoan{}, err
		}
		created, err := s.loanStore.Create(ctx, Loan{
			EmployeeID:      employee.ID,
			GuarantorID:     guarantorID,
			GrantTypeID:     grantType.ID,
			GrantCode:       grantType.Code,
			Principal:       req.Principal,
			InterestRateBPS: grantType.InterestRateBPS,
			TermMonths:      term,
			TotalDue:        total,
			Balance:         total,
			Status:          LoanStatusActive,
			IssuedAt:        issuedAt,
		}, installments)
		if err != nil {
			return IssuedLoan{}, err
		}

		err = s.enqueueEvent(ctx, EventLoanIssued, created.Loan, map[string]any{
			"grant_code":   created.Loan.GrantCode,
			"principal":    created.Loan.Principal,
			"total_due":    created.Loan.TotalDue,
			"term_months":  created.Loan.TermMonths,
			"installments": len(created.Installments),
		}, req.Metadata)
		if err != nil {
			return IssuedLoan{}, err
		}
		return created, nil
	})
	if err != nil {
		err = s.mapError(err)
		return IssuedLoan{}, err
	}
	return issued, nil
}

func validateIssueLoanRequest(req IssueLoanRequest) error {
	if strings.TrimSpace(req.EmployeeID) == "" {
		return fmt.Errorf("core: employee id is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(req.GrantTypeID) == "" {
		return fmt.Errorf("core: grant type id is required: %w", ErrInvalidInput)
	}
	if req.Principal <= 0 {
		return fmt.Errorf("core: principal must be positive: %w", ErrInvalidInput)
	}
	if req.TermMonths < 0 {
		return fmt.Errorf("core: term must be >= 0: %w", ErrInvalidInput)
	}
	return nil
}

// CancelLoan voids an active loan that has not received any payment.
func (s *Service) CancelLoan(ctx context.Context, loanID string) (loan Loan, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"loan_id": loanID}
	defer func() {
		s.observeOperation(ctx, startedAt, "cancel_loan", err, fields)
	}()

	if err = s.requireLoanStores(); err != nil {
		err = s.mapError(err)
		return Loan{}, err
	}
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		err = s.mapError(fmt.Errorf("core: loan id is required: %w", ErrInvalidInput))
		return Loan{}, err
	}
	loan, err = RunInTransaction(ctx, s.transactor, "cancel loan", func(ctx context.Context) (Loan, error) {
		current, err := s.loanStore.GetForUpdate(ctx, loanID)
		if err != nil {
			return Loan{}, err
		}
		if current.Status != LoanStatusActive {
			return Loan{}, fmt.Errorf("core: loan %s is %s: %w", current.ID, current.Status, ErrLoanClosed)
		}
		payments, err := s.paymentStore.ListByLoan(ctx, current.ID)
		if err != nil {
			return Loan{}, err
		}
		if current.AmountPaid > 0 || len(payments) > 0 {
			return Loan{}, fmt.Errorf("core: loan %s: %w", current.ID, ErrLoanHasPayments)
		}
		current.Status = LoanStatusCancelled
		current.Balance = 0
		if err := s.loanStore.Update(ctx, current); err != nil {
			return Loan{}, err
		}
		if err := s.enqueueEvent(ctx, EventLoanCancelled, current, map[string]any{
			"grant_code": current.GrantCode,
		}, nil); err != nil {
			return Loan{}, err
		}
		return current, nil
	})
	if err != nil {
		err = s.mapError(err)
		return Loan{}, err
	}
	return loan, nil
}

func (s *Service) GetLoan(ctx context.Context, loanID string) (Loan, error) {
	if s == nil || s.loanStore == nil {
		return Loan{}, s.mapError(fmt.Errorf("core: loan store is required"))
	}
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return Loan{}, s.mapError(fmt.Errorf("core: loan id is required: %w", ErrInvalidInput))
	}
	loan, err := s.loanStore.Get(ctx, loanID)
	if err != nil {
		return Loan{}, s.mapError(err)
	}
	return loan, nil
}

func (s *Service) ListLoans(ctx context.Context, employeeID string) ([]Loan, error) {
	if s == nil || s.loanStore == nil {
		return nil, s.mapError(fmt.Errorf("core: loan store is required"))
	}
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, s.mapError(fmt.Errorf("core: employee id is required: %w", ErrInvalidInput))
	}
	loans, err := s.loanStore.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return loans, nil
}

// RecordPayment applies a repayment to the loan's installments in due order
// and settles the loan once the balance reaches zero.
func (s *Service) RecordPayment(ctx context.Context, req RecordPaymentRequest) (receipt PaymentReceipt, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"loan_id": req.LoanID, "amount": req.Amount}
	defer func() {
		if receipt.Loan.ID != "" {
			fields["employee_id"] = receipt.Loan.EmployeeID
			fields["loan_status"] = string(receipt.Loan.Status)
		}
		s.observeOperation(ctx, startedAt, "record_payment", err, fields)
	}()

	if err = s.requireLoanStores(); err != nil {
		err = s.mapError(err)
		return PaymentReceipt{}, err
	}
	loanID := strings.TrimSpace(req.LoanID)
	if loanID == "" {
		err = s.mapError(fmt.Errorf("core: loan id is required: %w", ErrInvalidInput))
		return PaymentReceipt{}, err
	}
	if req.Amount <= 0 {
		err = s.mapError(fmt.Errorf("core: payment amount must be positive: %w", ErrInvalidInput))
		return PaymentReceipt{}, err
	}
	paidAt := req.PaidAt.UTC()
	if req.PaidAt.IsZero() {
		paidAt = s.now().UTC()
	}

	receipt, err = RunInTransaction(ctx, s.transactor, "record payment", func(ctx context.Context) (PaymentReceipt, error) {
		loan, err := s.loanStore.GetForUpdate(ctx, loanID)
		if err != nil {
			return PaymentReceipt{}, err
		}
		if loan.Status != LoanStatusActive {
			return PaymentReceipt{}, fmt.Errorf("core: loan %s is %s: %w", loan.ID, loan.Status, ErrLoanClosed)
		}
		if req.Amount > loan.Balance {
			return PaymentReceipt{}, fmt.Errorf(
				"core: payment %d above balance %d: %w",
				req.Amount, loan.Balance, ErrOverpayment,
			)
		}
		installments, err := s.loanStore.ListInstallments(ctx, loan.ID)
		if err != nil {
			return PaymentReceipt{}, err
		}
		changed, remaining := ApplyPayment(installments, req.Amount, paidAt)
		if remaining > 0 {
			return PaymentReceipt{}, fmt.Errorf(
				"core: loan %s installments cannot absorb %d: %w",
				loan.ID, remaining, ErrOverpayment,
			)
		}

		payment, err := s.paymentStore.Create(ctx, Payment{
			LoanID:    loan.ID,
			Amount:    req.Amount,
			Method:    strings.TrimSpace(req.Method),
			Reference: strings.TrimSpace(req.Reference),
			PaidAt:    paidAt,
		})
		if err != nil {
			return PaymentReceipt{}, err
		}
		for _, installment := range changed {
			if err := s.loanStore.UpdateInstallment(ctx, installment); err != nil {
				return PaymentReceipt{}, err
			}
		}

		loan.AmountPaid += req.Amount
		loan.Balance -= req.Amount
		if loan.Balance == 0 {
			loan.Status = LoanStatusSettled
			settledAt := paidAt
			loan.SettledAt = &settledAt
		}
		if err := s.loanStore.Update(ctx, loan); err != nil {
			return PaymentReceipt{}, err
		}

		if err := s.enqueueEvent(ctx, EventPaymentRecorded, loan, map[string]any{
			"payment_id": payment.ID,
			"amount":     payment.Amount,
			"balance":    loan.Balance,
			"grant_code": loan.GrantCode,
		}, req.Metadata); err != nil {
			return PaymentReceipt{}, err
		}
		if loan.Status == LoanStatusSettled {
			if err := s.enqueueEvent(ctx, EventLoanSettled, loan, map[string]any{
				"total_paid": loan.AmountPaid,
				"grant_code": loan.GrantCode,
			}, req.Metadata); err != nil {
				return PaymentReceipt{}, err
			}
		}
		return PaymentReceipt{Payment: payment, Loan: loan, Installments: installments}, nil
	})
	if err != nil {
		err = s.mapError(err)
		return PaymentReceipt{}, err
	}
	return receipt, nil
}

func (s *Service) ListPayments(ctx context.Context, loanID string) ([]Payment, error) {
	if s == nil || s.paymentStore == nil {
		return nil, s.mapError(fmt.Errorf("core: payment store is required"))
	}
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, s.mapError(fmt.Errorf("core: loan id is required: %w", ErrInvalidInput))
	}
	payments, err := s.paymentStore.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return payments, nil
}

// LoanStatement gathers everything a printed statement shows for one loan.
func (s *Service) LoanStatement(ctx context.Context, loanID string) (statement Statement, err error) {
	if err = s.requireLoanStores(); err != nil {
		return Statement{}, s.mapError(err)
	}
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return Statement{}, s.mapError(fmt.Errorf("core: loan id is required: %w", ErrInvalidInput))
	}
	generatedAt := s.now().UTC()
	statement, err = RunWithContext(ctx, "loan statement", func(ctx context.Context) (Statement, error) {
		loan, err := s.loanStore.Get(ctx, loanID)
		if err != nil {
			return Statement{}, err
		}
		employee, err := s.employeeStore.Get(ctx, loan.EmployeeID)
		if err != nil {
			return Statement{}, err
		}
		grantType, err := s.grantTypeStore.Get(ctx, loan.GrantTypeID)
		if err != nil {
			return Statement{}, err
		}
		installments, err := s.loanStore.ListInstallments(ctx, loan.ID)
		if err != nil {
			return Statement{}, err
		}
		payments, err := s.paymentStore.ListByLoan(ctx, loan.ID)
		if err != nil {
			return Statement{}, err
		}

		out := Statement{
			Loan:         loan,
			Employee:     employee,
			GrantType:    grantType,
			Installments: installments,
			Payments:     payments,
			Outstanding:  loan.Balance,
			GeneratedAt:  generatedAt,
		}
		for _, payment := range payments {
			out.TotalPaid += payment.Amount
		}
		if loan.Status == LoanStatusActive {
			for _, installment := range installments {
				if installment.DueDate.Before(generatedAt) {
					out.OverdueAmount += installment.Outstanding()
				}
			}
		}
		return out, nil
	})
	if err != nil {
		return Statement{}, s.mapError(err)
	}
	return statement, nil
}

func (s *Service) RunReminders(ctx context.Context, asOf time.Time) (result ReminderResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"lead_days": s.Config().Reminders.LeadDays}
	defer func() {
		fields["scanned"] = result.Scanned
		fields["enqueued"] = result.Enqueued
		s.observeOperation(ctx, startedAt, "run_reminders", err, fields)
	}()

	if s == nil {
		return ReminderResult{}, fmt.Errorf("core: service is nil")
	}
	runner, err := NewReminderRunner(s.loanStore, s.outboxStore, s.transactor, s.config.Reminders.LeadDays)
	if err != nil {
		err = s.mapError(err)
		return ReminderResult{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	result, err = runner.Run(ctx, asOf)
	if err != nil {
		err = s.mapError(err)
		return ReminderResult{}, err
	}
	return result, nil
}

// NextReminderRun is the first scheduled reminder run strictly after after.
func (s *Service) NextReminderRun(after time.Time) time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.reminderSchedule.Next(after)
}

// DispatchOutbox delivers pending outbox events to the registered event
// handlers. A batchSize <= 0 uses outbox.batch_size.
func (s *Service) DispatchOutbox(ctx context.Context, batchSize int) (stats DispatchStats, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["claimed"] = stats.Claimed
		fields["delivered"] = stats.Delivered
		fields["retried"] = stats.Retried
		fields["failed"] = stats.Failed
		s.observeOperation(ctx, startedAt, "dispatch_outbox", err, fields)
	}()

	if s == nil {
		return DispatchStats{}, fmt.Errorf("core: service is nil")
	}
	dispatcher, err := NewOutboxDispatcher(s.outboxStore, s.projectors, OutboxDispatcherConfig{
		BatchSize:   s.config.Outbox.BatchSize,
		MaxAttempts: s.config.Outbox.MaxAttempts,
	})
	if err != nil {
		err = s.mapError(err)
		return DispatchStats{}, err
	}
	dispatcher.now = s.now
	stats, err = dispatcher.DispatchPending(ctx, batchSize)
	if err != nil {
		err = s.mapError(err)
		return stats, err
	}
	return stats, nil
}

func (s *Service) requireLoanStores() error {
	if s == nil || s.employeeStore == nil || s.grantTypeStore == nil ||
		s.loanStore == nil || s.paymentStore == nil || s.outboxStore == nil {
		return fmt.Errorf("core: employee, grant type, loan, payment and outbox stores are required")
	}
	return nil
}

func (s *Service) enqueueEvent(
	ctx context.Context,
	name string,
	loan Loan,
	payload map[string]any,
	metadata map[string]any,
) error {
	meta := copyAnyMap(metadata)
	meta["loan_status"] = string(loan.Status)
	return s.outboxStore.Enqueue(ctx, LoanEvent{
		ID:         uuid.NewString(),
		Name:       name,
		LoanID:     loan.ID,
		EmployeeID: loan.EmployeeID,
		Payload:    copyAnyMap(payload),
		Metadata:   meta,
		OccurredAt: s.now().UTC(),
	})
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
