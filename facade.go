package loans

import (
	"fmt"

	loanscommand "github.com/goliatone/go-loans/command"
	loansquery "github.com/goliatone/go-loans/query"
)

type CommandQueryService interface {
	loanscommand.MutatingService
	loansquery.EmployeeReader
	loansquery.GrantTypeReader
	loansquery.LoanReader
}

type Commands struct {
	OnboardEmployee       *loanscommand.OnboardEmployeeCommand
	DeactivateEmployee    *loanscommand.DeactivateEmployeeCommand
	AddGuarantor          *loanscommand.AddGuarantorCommand
	CreateGrantType       *loanscommand.CreateGrantTypeCommand
	UpdateGrantTypeStatus *loanscommand.UpdateGrantTypeStatusCommand
	IssueLoan             *loanscommand.IssueLoanCommand
	CancelLoan            *loanscommand.CancelLoanCommand
	RecordPayment         *loanscommand.RecordPaymentCommand
	RunReminders          *loanscommand.RunRemindersCommand
	DispatchOutbox        *loanscommand.DispatchOutboxCommand
}

type Queries struct {
	GetEmployee    *loansquery.GetEmployeeQuery
	ListGuarantors *loansquery.ListGuarantorsQuery
	GetGrantType   *loansquery.GetGrantTypeQuery
	ListGrantTypes *loansquery.ListGrantTypesQuery
	GetLoan        *loansquery.GetLoanQuery
	ListLoans      *loansquery.ListLoansQuery
	ListPayments   *loansquery.ListPaymentsQuery
	LoanStatement  *loansquery.LoanStatementQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	background loanscommand.BackgroundService
}

// WithBackgroundService overrides the service used by the reminder and
// outbox commands.
func WithBackgroundService(service loanscommand.BackgroundService) FacadeOption {
	return func(options *facadeOptions) {
		options.background = service
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("loans: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	background := cfg.background
	if background == nil {
		background, _ = service.(loanscommand.BackgroundService)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		OnboardEmployee:       loanscommand.NewOnboardEmployeeCommand(service),
		DeactivateEmployee:    loanscommand.NewDeactivateEmployeeCommand(service),
		AddGuarantor:          loanscommand.NewAddGuarantorCommand(service),
		CreateGrantType:       loanscommand.NewCreateGrantTypeCommand(service),
		UpdateGrantTypeStatus: loanscommand.NewUpdateGrantTypeStatusCommand(service),
		IssueLoan:             loanscommand.NewIssueLoanCommand(service),
		CancelLoan:            loanscommand.NewCancelLoanCommand(service),
		RecordPayment:         loanscommand.NewRecordPaymentCommand(service),
		RunReminders:          loanscommand.NewRunRemindersCommand(background),
		DispatchOutbox:        loanscommand.NewDispatchOutboxCommand(background),
	}
	facade.queries = Queries{
		GetEmployee:    loansquery.NewGetEmployeeQuery(service),
		ListGuarantors: loansquery.NewListGuarantorsQuery(service),
		GetGrantType:   loansquery.NewGetGrantTypeQuery(service),
		ListGrantTypes: loansquery.NewListGrantTypesQuery(service),
		GetLoan:        loansquery.NewGetLoanQuery(service),
		ListLoans:      loansquery.NewListLoansQuery(service),
		ListPayments:   loansquery.NewListPaymentsQuery(service),
		LoanStatement:  loansquery.NewLoanStatementQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
