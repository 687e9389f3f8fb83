package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-loans/core"
)

type MutatingService interface {
	OnboardEmployee(ctx context.Context, in core.CreateEmployeeInput) (core.Employee, error)
	DeactivateEmployee(ctx context.Context, id string) (core.Employee, error)
	AddGuarantor(ctx context.Context, in core.CreateGuarantorInput) (core.Guarantor, error)
	CreateGrantType(ctx context.Context, in core.CreateGrantTypeInput) (core.GrantType, error)
	UpdateGrantTypeStatus(ctx context.Context, id string, status core.GrantTypeStatus) (core.GrantType, error)
	IssueLoan(ctx context.Context, req core.IssueLoanRequest) (core.IssuedLoan, error)
	CancelLoan(ctx context.Context, loanID string) (core.Loan, error)
	RecordPayment(ctx context.Context, req core.RecordPaymentRequest) (core.PaymentReceipt, error)
}

// BackgroundService runs the scheduled side of the loans service.
type BackgroundService interface {
	RunReminders(ctx context.Context, asOf time.Time) (core.ReminderResult, error)
	DispatchOutbox(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

type OnboardEmployeeCommand struct {
	service MutatingService
}

func NewOnboardEmployeeCommand(service MutatingService) *OnboardEmployeeCommand {
	return &OnboardEmployeeCommand{service: service}
}

func (c *OnboardEmployeeCommand) Execute(ctx context.Context, msg OnboardEmployeeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: employee service is required")
	}
	out, err := c.service.OnboardEmployee(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeactivateEmployeeCommand struct {
	service MutatingService
}

func NewDeactivateEmployeeCommand(service MutatingService) *DeactivateEmployeeCommand {
	return &DeactivateEmployeeCommand{service: service}
}

func (c *DeactivateEmployeeCommand) Execute(ctx context.Context, msg DeactivateEmployeeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: employee service is required")
	}
	out, err := c.service.DeactivateEmployee(ctx, msg.EmployeeID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AddGuarantorCommand struct {
	service MutatingService
}

func NewAddGuarantorCommand(service MutatingService) *AddGuarantorCommand {
	return &AddGuarantorCommand{service: service}
}

func (c *AddGuarantorCommand) Execute(ctx context.Context, msg AddGuarantorMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: guarantor service is required")
	}
	out, err := c.service.AddGuarantor(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateGrantTypeCommand struct {
	service MutatingService
}

func NewCreateGrantTypeCommand(service MutatingService) *CreateGrantTypeCommand {
	return &CreateGrantTypeCommand{service: service}
}

func (c *CreateGrantTypeCommand) Execute(ctx context.Context, msg CreateGrantTypeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant type service is required")
	}
	out, err := c.service.CreateGrantType(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateGrantTypeStatusCommand struct {
	service MutatingService
}

func NewUpdateGrantTypeStatusCommand(service MutatingService) *UpdateGrantTypeStatusCommand {
	return &UpdateGrantTypeStatusCommand{service: service}
}

func (c *UpdateGrantTypeStatusCommand) Execute(ctx context.Context, msg UpdateGrantTypeStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: grant type service is required")
	}
	out, err := c.service.UpdateGrantTypeStatus(ctx, msg.GrantTypeID, msg.Status)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IssueLoanCommand struct {
	service MutatingService
}

func NewIssueLoanCommand(service MutatingService) *IssueLoanCommand {
	return &IssueLoanCommand{service: service}
}

func (c *IssueLoanCommand) Execute(ctx context.Context, msg IssueLoanMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: loan service is required")
	}
	out, err := c.service.IssueLoan(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CancelLoanCommand struct {
	service MutatingService
}

func NewCancelLoanCommand(service MutatingService) *CancelLoanCommand {
	return &CancelLoanCommand{service: service}
}

func (c *CancelLoanCommand) Execute(ctx context.Context, msg CancelLoanMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: loan service is required")
	}
	out, err := c.service.CancelLoan(ctx, msg.LoanID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RecordPaymentCommand struct {
	service MutatingService
}

func NewRecordPaymentCommand(service MutatingService) *RecordPaymentCommand {
	return &RecordPaymentCommand{service: service}
}

func (c *RecordPaymentCommand) Execute(ctx context.Context, msg RecordPaymentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment service is required")
	}
	out, err := c.service.RecordPayment(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunRemindersCommand struct {
	service BackgroundService
	now     func() time.Time
}

func NewRunRemindersCommand(service BackgroundService) *RunRemindersCommand {
	return &RunRemindersCommand{service: service, now: time.Now}
}

// Execute scans as of msg.AsOf, or the current time when it is zero.
func (c *RunRemindersCommand) Execute(ctx context.Context, msg RunRemindersMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reminder service is required")
	}
	asOf := msg.AsOf
	if asOf.IsZero() {
		now := c.now
		if now == nil {
			now = time.Now
		}
		asOf = now()
	}
	out, err := c.service.RunReminders(ctx, asOf.UTC())
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchOutboxCommand struct {
	service BackgroundService
}

func NewDispatchOutboxCommand(service BackgroundService) *DispatchOutboxCommand {
	return &DispatchOutboxCommand{service: service}
}

func (c *DispatchOutboxCommand) Execute(ctx context.Context, msg DispatchOutboxMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: outbox service is required")
	}
	out, err := c.service.DispatchOutbox(ctx, msg.BatchSize)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
