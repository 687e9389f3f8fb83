package query

import (
	"strings"

	"github.com/goliatone/go-loans/core"
)

const (
	TypeGetEmployee    = "loans.query.employee.get"
	TypeListGuarantors = "loans.query.guarantor.list"
	TypeGetGrantType   = "loans.query.grant_type.get"
	TypeListGrantTypes = "loans.query.grant_type.list"
	TypeGetLoan        = "loans.query.loan.get"
	TypeListLoans      = "loans.query.loan.list"
	TypeListPayments   = "loans.query.payment.list"
	TypeLoanStatement  = "loans.query.loan.statement"
)

type GetEmployeeMessage struct {
	EmployeeID string
}

func (GetEmployeeMessage) Type() string { return TypeGetEmployee }

func (m GetEmployeeMessage) Validate() error {
	if strings.TrimSpace(m.EmployeeID) == "" {
		return queryValidationError("employee_id", "employee id is required")
	}
	return nil
}

type ListGuarantorsMessage struct {
	EmployeeID string
}

func (ListGuarantorsMessage) Type() string { return TypeListGuarantors }

func (m ListGuarantorsMessage) Validate() error {
	if strings.TrimSpace(m.EmployeeID) == "" {
		return queryValidationError("employee_id", "employee id is required")
	}
	return nil
}

// GetGrantTypeMessage looks a grant type up by ID, or by Code when ID is
// empty.
type GetGrantTypeMessage struct {
	GrantTypeID string
	Code        string
}

func (GetGrantTypeMessage) Type() string { return TypeGetGrantType }

func (m GetGrantTypeMessage) Validate() error {
	if strings.TrimSpace(m.GrantTypeID) == "" && strings.TrimSpace(m.Code) == "" {
		return queryValidationError("grant_type_id", "grant type id or code is required")
	}
	return nil
}

type ListGrantTypesMessage struct {
	Status core.GrantTypeStatus
}

func (ListGrantTypesMessage) Type() string { return TypeListGrantTypes }

func (m ListGrantTypesMessage) Validate() error {
	switch m.Status {
	case "", core.GrantTypeStatusActive, core.GrantTypeStatusArchived:
		return nil
	default:
		return queryInvalidInputError("query: unknown grant type status " + string(m.Status))
	}
}

type GetLoanMessage struct {
	LoanID string
}

func (GetLoanMessage) Type() string { return TypeGetLoan }

func (m GetLoanMessage) Validate() error {
	if strings.TrimSpace(m.LoanID) == "" {
		return queryValidationError("loan_id", "loan id is required")
	}
	return nil
}

type ListLoansMessage struct {
	EmployeeID string
}

func (ListLoansMessage) Type() string { return TypeListLoans }

func (m ListLoansMessage) Validate() error {
	if strings.TrimSpace(m.EmployeeID) == "" {
		return queryValidationError("employee_id", "employee id is required")
	}
	return nil
}

type ListPaymentsMessage struct {
	LoanID string
}

func (ListPaymentsMessage) Type() string { return TypeListPayments }

func (m ListPaymentsMessage) Validate() error {
	if strings.TrimSpace(m.LoanID) == "" {
		return queryValidationError("loan_id", "loan id is required")
	}
	return nil
}

type LoanStatementMessage struct {
	LoanID string
}

func (LoanStatementMessage) Type() string { return TypeLoanStatement }

func (m LoanStatementMessage) Validate() error {
	if strings.TrimSpace(m.LoanID) == "" {
		return queryValidationError("loan_id", "loan id is required")
	}
	return nil
}
