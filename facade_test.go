package loans

import (
	"context"
	"testing"
	"time"

	loanscommand "github.com/goliatone/go-loans/command"
	"github.com/goliatone/go-loans/core"
	loansquery "github.com/goliatone/go-loans/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.IssueLoan == nil || commands.RecordPayment == nil || commands.CreateGrantType == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	if commands.RunReminders == nil || commands.DispatchOutbox == nil {
		t.Fatalf("expected background command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetLoan == nil || queries.LoanStatement == nil || queries.ListGrantTypes == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().CancelLoan.Execute(context.Background(), loanscommand.CancelLoanMessage{
		LoanID: "loan_1",
	}); err != nil {
		t.Fatalf("execute cancel command: %v", err)
	}
	if svc.lastCancelledLoanID != "loan_1" {
		t.Fatalf("unexpected cancel delegation payload %q", svc.lastCancelledLoanID)
	}

	statement, err := facade.Queries().LoanStatement.Query(context.Background(), loansquery.LoanStatementMessage{
		LoanID: "loan_1",
	})
	if err != nil {
		t.Fatalf("query statement: %v", err)
	}
	if statement.Loan.ID != "loan_1" || statement.Outstanding != 400 {
		t.Fatalf("unexpected statement query result: %#v", statement)
	}

	if err := facade.Commands().DispatchOutbox.Execute(context.Background(), loanscommand.DispatchOutboxMessage{
		BatchSize: 10,
	}); err != nil {
		t.Fatalf("execute dispatch command: %v", err)
	}
	if svc.lastBatchSize != 10 {
		t.Fatalf("expected service to act as background service, got batch %d", svc.lastBatchSize)
	}
}

func TestNewFacade_BackgroundServiceOverride(t *testing.T) {
	svc := &stubFacadeService{}
	background := &stubFacadeService{}
	facade, err := NewFacade(svc, WithBackgroundService(background))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	asOf := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	if err := facade.Commands().RunReminders.Execute(context.Background(), loanscommand.RunRemindersMessage{AsOf: asOf}); err != nil {
		t.Fatalf("execute reminders: %v", err)
	}
	if !background.lastReminderAsOf.Equal(asOf) || !svc.lastReminderAsOf.IsZero() {
		t.Fatalf("expected reminders to run on override service")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastCancelledLoanID string
	lastBatchSize       int
	lastReminderAsOf    time.Time
}

func (s *stubFacadeService) OnboardEmployee(_ context.Context, in core.CreateEmployeeInput) (core.Employee, error) {
	return core.Employee{ID: "emp_1", EmployeeNumber: in.EmployeeNumber, Status: core.EmployeeStatusActive}, nil
}

func (s *stubFacadeService) DeactivateEmployee(_ context.Context, id string) (core.Employee, error) {
	return core.Employee{ID: id, Status: core.EmployeeStatusInactive}, nil
}

func (s *stubFacadeService) AddGuarantor(_ context.Context, in core.CreateGuarantorInput) (core.Guarantor, error) {
	return core.Guarantor{ID: "g_1", EmployeeID: in.EmployeeID}, nil
}

func (s *stubFacadeService) CreateGrantType(_ context.Context, in core.CreateGrantTypeInput) (core.GrantType, error) {
	return core.GrantType{ID: "gt_1", Code: "G001", Name: in.Name}, nil
}

func (s *stubFacadeService) UpdateGrantTypeStatus(_ context.Context, id string, status core.GrantTypeStatus) (core.GrantType, error) {
	return core.GrantType{ID: id, Status: status}, nil
}

func (s *stubFacadeService) IssueLoan(context.Context, core.IssueLoanRequest) (core.IssuedLoan, error) {
	return core.IssuedLoan{Loan: core.Loan{ID: "loan_1"}}, nil
}

func (s *stubFacadeService) CancelLoan(_ context.Context, loanID string) (core.Loan, error) {
	s.lastCancelledLoanID = loanID
	return core.Loan{ID: loanID, Status: core.LoanStatusCancelled}, nil
}

func (s *stubFacadeService) RecordPayment(context.Context, core.RecordPaymentRequest) (core.PaymentReceipt, error) {
	return core.PaymentReceipt{}, nil
}

func (s *stubFacadeService) GetEmployee(_ context.Context, id string) (core.Employee, error) {
	return core.Employee{ID: id}, nil
}

func (s *stubFacadeService) ListGuarantors(context.Context, string) ([]core.Guarantor, error) {
	return nil, nil
}

func (s *stubFacadeService) GetGrantType(_ context.Context, id string) (core.GrantType, error) {
	return core.GrantType{ID: id}, nil
}

func (s *stubFacadeService) GetGrantTypeByCode(_ context.Context, code string) (core.GrantType, error) {
	return core.GrantType{Code: code}, nil
}

func (s *stubFacadeService) ListGrantTypes(context.Context, core.GrantTypeStatus) ([]core.GrantType, error) {
	return nil, nil
}

func (s *stubFacadeService) GetLoan(_ context.Context, loanID string) (core.Loan, error) {
	return core.Loan{ID: loanID}, nil
}

func (s *stubFacadeService) ListLoans(context.Context, string) ([]core.Loan, error) {
	return nil, nil
}

func (s *stubFacadeService) ListPayments(context.Context, string) ([]core.Payment, error) {
	return nil, nil
}

func (s *stubFacadeService) LoanStatement(_ context.Context, loanID string) (core.Statement, error) {
	return core.Statement{Loan: core.Loan{ID: loanID}, Outstanding: 400}, nil
}

func (s *stubFacadeService) RunReminders(_ context.Context, asOf time.Time) (core.ReminderResult, error) {
	s.lastReminderAsOf = asOf
	return core.ReminderResult{}, nil
}

func (s *stubFacadeService) DispatchOutbox(_ context.Context, batchSize int) (core.DispatchStats, error) {
	s.lastBatchSize = batchSize
	return core.DispatchStats{}, nil
}

var (
	_ CommandQueryService            = (*stubFacadeService)(nil)
	_ CommandQueryService            = (*core.Service)(nil)
	_ loanscommand.BackgroundService = (*core.Service)(nil)
)
