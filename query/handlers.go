package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-loans/core"
)

type EmployeeReader interface {
	GetEmployee(ctx context.Context, id string) (core.Employee, error)
	ListGuarantors(ctx context.Context, employeeID string) ([]core.Guarantor, error)
}

type GrantTypeReader interface {
	GetGrantType(ctx context.Context, id string) (core.GrantType, error)
	GetGrantTypeByCode(ctx context.Context, code string) (core.GrantType, error)
	ListGrantTypes(ctx context.Context, status core.GrantTypeStatus) ([]core.GrantType, error)
}

type LoanReader interface {
	GetLoan(ctx context.Context, loanID string) (core.Loan, error)
	ListLoans(ctx context.Context, employeeID string) ([]core.Loan, error)
	ListPayments(ctx context.Context, loanID string) ([]core.Payment, error)
	LoanStatement(ctx context.Context, loanID string) (core.Statement, error)
}

type GetEmployeeQuery struct {
	reader EmployeeReader
}

func NewGetEmployeeQuery(reader EmployeeReader) *GetEmployeeQuery {
	return &GetEmployeeQuery{reader: reader}
}

func (q *GetEmployeeQuery) Query(ctx context.Context, msg GetEmployeeMessage) (core.Employee, error) {
	if q == nil || q.reader == nil {
		return core.Employee{}, queryDependencyError("query: employee reader is required")
	}
	return q.reader.GetEmployee(ctx, msg.EmployeeID)
}

type ListGuarantorsQuery struct {
	reader EmployeeReader
}

func NewListGuarantorsQuery(reader EmployeeReader) *ListGuarantorsQuery {
	return &ListGuarantorsQuery{reader: reader}
}

func (q *ListGuarantorsQuery) Query(ctx context.Context, msg ListGuarantorsMessage) ([]core.Guarantor, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: employee reader is required")
	}
	return q.reader.ListGuarantors(ctx, msg.EmployeeID)
}

type GetGrantTypeQuery struct {
	reader GrantTypeReader
}

func NewGetGrantTypeQuery(reader GrantTypeReader) *GetGrantTypeQuery {
	return &GetGrantTypeQuery{reader: reader}
}

func (q *GetGrantTypeQuery) Query(ctx context.Context, msg GetGrantTypeMessage) (core.GrantType, error) {
	if q == nil || q.reader == nil {
		return core.GrantType{}, queryDependencyError("query: grant type reader is required")
	}
	if id := strings.TrimSpace(msg.GrantTypeID); id != "" {
		return q.reader.GetGrantType(ctx, id)
	}
	return q.reader.GetGrantTypeByCode(ctx, msg.Code)
}

type ListGrantTypesQuery struct {
	reader GrantTypeReader
}

func NewListGrantTypesQuery(reader GrantTypeReader) *ListGrantTypesQuery {
	return &ListGrantTypesQuery{reader: reader}
}

func (q *ListGrantTypesQuery) Query(ctx context.Context, msg ListGrantTypesMessage) ([]core.GrantType, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: grant type reader is required")
	}
	return q.reader.ListGrantTypes(ctx, msg.Status)
}

type GetLoanQuery struct {
	reader LoanReader
}

func NewGetLoanQuery(reader LoanReader) *GetLoanQuery {
	return &GetLoanQuery{reader: reader}
}

func (q *GetLoanQuery) Query(ctx context.Context, msg GetLoanMessage) (core.Loan, error) {
	if q == nil || q.reader == nil {
		return core.Loan{}, queryDependencyError("query: loan reader is required")
	}
	return q.reader.GetLoan(ctx, msg.LoanID)
}

type ListLoansQuery struct {
	reader LoanReader
}

func NewListLoansQuery(reader LoanReader) *ListLoansQuery {
	return &ListLoansQuery{reader: reader}
}

func (q *ListLoansQuery) Query(ctx context.Context, msg ListLoansMessage) ([]core.Loan, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: loan reader is required")
	}
	return q.reader.ListLoans(ctx, msg.EmployeeID)
}

type ListPaymentsQuery struct {
	reader LoanReader
}

func NewListPaymentsQuery(reader LoanReader) *ListPaymentsQuery {
	return &ListPaymentsQuery{reader: reader}
}

func (q *ListPaymentsQuery) Query(ctx context.Context, msg ListPaymentsMessage) ([]core.Payment, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: loan reader is required")
	}
	return q.reader.ListPayments(ctx, msg.LoanID)
}

type LoanStatementQuery struct {
	reader LoanReader
}

func NewLoanStatementQuery(reader LoanReader) *LoanStatementQuery {
	return &LoanStatementQuery{reader: reader}
}

func (q *LoanStatementQuery) Query(ctx context.Context, msg LoanStatementMessage) (core.Statement, error) {
	if q == nil || q.reader == nil {
		return core.Statement{}, queryDependencyError("query: loan reader is required")
	}
	return q.reader.LoanStatement(ctx, msg.LoanID)
}
