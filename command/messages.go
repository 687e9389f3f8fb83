package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-loans/core"
)

const (
	TypeOnboardEmployee       = "loans.command.employee.onboard"
	TypeDeactivateEmployee    = "loans.command.employee.deactivate"
	TypeAddGuarantor          = "loans.command.guarantor.add"
	TypeCreateGrantType       = "loans.command.grant_type.create"
	TypeUpdateGrantTypeStatus = "loans.command.grant_type.update_status"
	TypeIssueLoan             = "loans.command.loan.issue"
	TypeCancelLoan            = "loans.command.loan.cancel"
	TypeRecordPayment         = "loans.command.payment.record"
	TypeRunReminders          = "loans.command.reminders.run"
	TypeDispatchOutbox        = "loans.command.outbox.dispatch"
)

type OnboardEmployeeMessage struct {
	Input core.CreateEmployeeInput
}

func (OnboardEmployeeMessage) Type() string { return TypeOnboardEmployee }

func (m OnboardEmployeeMessage) Validate() error {
	if strings.TrimSpace(m.Input.EmployeeNumber) == "" {
		return commandValidationError("employee_number", "employee number is required")
	}
	return commandWrapValidation(m.Input.Validate(), "command: invalid employee")
}

type DeactivateEmployeeMessage struct {
	EmployeeID string
}

func (DeactivateEmployeeMessage) Type() string { return TypeDeactivateEmployee }

func (m DeactivateEmployeeMessage) Validate() error {
	if strings.TrimSpace(m.EmployeeID) == "" {
		return commandValidationError("employee_id", "employee id is required")
	}
	return nil
}

type AddGuarantorMessage struct {
	Input core.CreateGuarantorInput
}

func (AddGuarantorMessage) Type() string { return TypeAddGuarantor }

func (m AddGuarantorMessage) Validate() error {
	if strings.TrimSpace(m.Input.EmployeeID) == "" {
		return commandValidationError("employee_id", "employee id is required")
	}
	return commandWrapValidation(m.Input.Validate(), "command: invalid guarantor")
}

type CreateGrantTypeMessage struct {
	Input core.CreateGrantTypeInput
}

func (CreateGrantTypeMessage) Type() string { return TypeCreateGrantType }

func (m CreateGrantTypeMessage) Validate() error {
	if strings.TrimSpace(m.Input.Name) == "" {
		return commandValidationError("name", "grant type name is required")
	}
	return commandWrapValidation(m.Input.Validate(), "command: invalid grant type")
}

type UpdateGrantTypeStatusMessage struct {
	GrantTypeID string
	Status      core.GrantTypeStatus
}

func (UpdateGrantTypeStatusMessage) Type() string { return TypeUpdateGrantTypeStatus }

func (m UpdateGrantTypeStatusMessage) Validate() error {
	if strings.TrimSpace(m.GrantTypeID) == "" {
		return commandValidationError("grant_type_id", "grant type id is required")
	}
	switch m.Status {
	case core.GrantTypeStatusActive, core.GrantTypeStatusArchived:
		return nil
	default:
		return commandValidationError("status", "grant type status must be active or archived")
	}
}

type IssueLoanMessage struct {
	Request core.IssueLoanRequest
}

func (IssueLoanMessage) Type() string { return TypeIssueLoan }

func (m IssueLoanMessage) Validate() error {
	if strings.TrimSpace(m.Request.EmployeeID) == "" {
		return commandValidationError("employee_id", "employee id is required")
	}
	if strings.TrimSpace(m.Request.GrantTypeID) == "" {
		return commandValidationError("grant_type_id", "grant type id is required")
	}
	if m.Request.Principal <= 0 {
		return commandValidationError("principal", "principal must be positive")
	}
	if m.Request.TermMonths < 0 {
		return commandValidationError("term_months", "term must be >= 0")
	}
	return nil
}

type CancelLoanMessage struct {
	LoanID string
}

func (CancelLoanMessage) Type() string { return TypeCancelLoan }

func (m CancelLoanMessage) Validate() error {
	if strings.TrimSpace(m.LoanID) == "" {
		return commandValidationError("loan_id", "loan id is required")
	}
	return nil
}

type RecordPaymentMessage struct {
	Request core.RecordPaymentRequest
}

func (RecordPaymentMessage) Type() string { return TypeRecordPayment }

func (m RecordPaymentMessage) Validate() error {
	if strings.TrimSpace(m.Request.LoanID) == "" {
		return commandValidationError("loan_id", "loan id is required")
	}
	if m.Request.Amount <= 0 {
		return commandValidationError("amount", "payment amount must be positive")
	}
	return nil
}

type RunRemindersMessage struct {
	AsOf time.Time
}

func (RunRemindersMessage) Type() string { return TypeRunReminders }

func (RunRemindersMessage) Validate() error { return nil }

type DispatchOutboxMessage struct {
	BatchSize int
}

func (DispatchOutboxMessage) Type() string { return TypeDispatchOutbox }

func (m DispatchOutboxMessage) Validate() error {
	if m.BatchSize < 0 {
		return commandInvalidInputError("command: batch size must be >= 0")
	}
	return nil
}
