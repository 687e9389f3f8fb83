package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	loans "github.com/goliatone/go-loans"
	loanscommand "github.com/goliatone/go-loans/command"
	"github.com/goliatone/go-loans/core"
	loansquery "github.com/goliatone/go-loans/query"
)

// RegisterFacade registers and subscribes every loans command and query
// exposed by facade. On failure the subscriptions made so far are released.
func RegisterFacade(
	adapter *RegistryAdapter,
	facade *loans.Facade,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if facade == nil {
		return nil, fmt.Errorf("gocommand: loans facade is required")
	}
	commands := facade.Commands()
	queries := facade.Queries()

	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.OnboardEmployeeMessage](adapter, commands.OnboardEmployee, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.DeactivateEmployeeMessage](adapter, commands.DeactivateEmployee, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.AddGuarantorMessage](adapter, commands.AddGuarantor, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.CreateGrantTypeMessage](adapter, commands.CreateGrantType, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.UpdateGrantTypeStatusMessage](adapter, commands.UpdateGrantTypeStatus, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.IssueLoanMessage](adapter, commands.IssueLoan, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.CancelLoanMessage](adapter, commands.CancelLoan, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.RecordPaymentMessage](adapter, commands.RecordPayment, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.RunRemindersMessage](adapter, commands.RunReminders, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[loanscommand.DispatchOutboxMessage](adapter, commands.DispatchOutbox, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[loansquery.GetEmployeeMessage, core.Employee](adapter, queries.GetEmployee, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[loansquery.ListGuarantorsMessage, []core.Guarantor](adapter, queries.ListGuarantors, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[loansquery.GetGrantTypeMessage, core.GrantType](adapter, queries.GetGrantType, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[loansquery.ListGrantTypesMessage, []core.GrantType](adapter, queries.ListGrantTypes, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[loansquery.GetLoanMessage, core.Loan](adapter, queries.GetLoan, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[loansquery.ListLoansMessage, []core.Loan](adapter, queries.ListLoans, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[loansquery.ListPaymentsMessage, []core.Payment](adapter, queries.ListPayments, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[loansquery.LoanStatementMessage, core.Statement](adapter, queries.LoanStatement, runnerOpts...)
		},
	}
	subs := make([]commanddispatcher.Subscription, 0, len(steps))
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			unsubscribeAll(subs)
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func unsubscribeAll(subs []commanddispatcher.Subscription) {
	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}
