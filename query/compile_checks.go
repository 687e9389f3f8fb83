package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-loans/core"
)

var (
	_ gocmd.Querier[GetEmployeeMessage, core.Employee]       = (*GetEmployeeQuery)(nil)
	_ gocmd.Querier[ListGuarantorsMessage, []core.Guarantor] = (*ListGuarantorsQuery)(nil)
	_ gocmd.Querier[GetGrantTypeMessage, core.GrantType]     = (*GetGrantTypeQuery)(nil)
	_ gocmd.Querier[ListGrantTypesMessage, []core.GrantType] = (*ListGrantTypesQuery)(nil)
	_ gocmd.Querier[GetLoanMessage, core.Loan]               = (*GetLoanQuery)(nil)
	_ gocmd.Querier[ListLoansMessage, []core.Loan]           = (*ListLoansQuery)(nil)
	_ gocmd.Querier[ListPaymentsMessage, []core.Payment]     = (*ListPaymentsQuery)(nil)
	_ gocmd.Querier[LoanStatementMessage, core.Statement]    = (*LoanStatementQuery)(nil)
)
