package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type scriptedAllocator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (a *scriptedAllocator) Next(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	code := a.codes[min(a.calls, len(a.codes)-1)]
	a.calls++
	return code, nil
}

func (a *scriptedAllocator) Reset() {}

func TestService_CreateGrantTypeAllocatesSequentialCodes(t *testing.T) {
	svc, _, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	for _, want := range []string{"G001", "G002", "G003"} {
		grantType, err := mustCreateGrantType(svc, "Emergency "+want, 500000)
		if err != nil {
			t.Fatalf("create grant type: %v", err)
		}
		if grantType.Code != want {
			t.Fatalf("expected %s, got %s", want, grantType.Code)
		}
		if grantType.Status != GrantTypeStatusActive {
			t.Fatalf("expected active grant type, got %s", grantType.Status)
		}
	}

	found, err := svc.GetGrantTypeByCode(context.Background(), "G002")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if found.Name != "Emergency G002" {
		t.Fatalf("unexpected grant type: %+v", found)
	}
	listed, err := svc.ListGrantTypes(context.Background(), GrantTypeStatusActive)
	if err != nil {
		t.Fatalf("list grant types: %v", err)
	}
	if len(listed) != 3 || listed[0].Code != "G001" {
		t.Fatalf("expected three grant types ordered by code, got %+v", listed)
	}
}

func TestService_CreateGrantTypeRetriesDuplicateCode(t *testing.T) {
	allocator := &scriptedAllocator{codes: []string{"G001", "G001", "G002"}}
	svc, stores, err := newTestService(testNow, WithCodeAllocator(allocator))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := mustCreateGrantType(svc, "Housing", 100000); err != nil {
		t.Fatalf("first grant type: %v", err)
	}
	second, err := mustCreateGrantType(svc, "Education", 100000)
	if err != nil {
		t.Fatalf("second grant type: %v", err)
	}
	if second.Code != "G002" {
		t.Fatalf("expected retry to land on G002, got %s", second.Code)
	}
	_, commits, rollbacks := stores.tx.counts()
	if commits != 2 || rollbacks != 1 {
		t.Fatalf("expected 2 commits and 1 rollback, got %d and %d", commits, rollbacks)
	}
}

func TestService_CreateGrantTypeGivesUpAfterMaxAttempts(t *testing.T) {
	allocator := &scriptedAllocator{codes: []string{"G001"}}
	svc, _, err := newTestService(testNow, WithCodeAllocator(allocator))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := mustCreateGrantType(svc, "Housing", 100000); err != nil {
		t.Fatalf("first grant type: %v", err)
	}
	_, err = mustCreateGrantType(svc, "Education", 100000)
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected duplicate code error, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != LoansErrorConflict {
		t.Fatalf("expected conflict envelope, got %v", err)
	}
	if allocator.calls != 1+DefaultConfig().Codes.MaxAttempts {
		t.Fatalf("expected %d allocations, got %d", 1+DefaultConfig().Codes.MaxAttempts, allocator.calls)
	}
}

func TestService_LegacyStrategyFromConfig(t *testing.T) {
	mark := &HighWaterMark{}
	svc, _, err := newTestService(testNow, WithHighWaterMark(mark), WithOptionsResolver(GoOptionsResolver{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, ok := svc.Dependencies().CodeAllocator.(*SequenceCodeAllocator); !ok {
		t.Fatalf("expected sequence allocator by default")
	}

	stores := newMemoryStores()
	legacy, err := NewService(
		Config{Codes: CodesConfig{Strategy: CodeStrategyLegacy}},
		WithRepositoryFactory(stores),
		WithHighWaterMark(mark),
	)
	if err != nil {
		t.Fatalf("new legacy service: %v", err)
	}
	if _, ok := legacy.Dependencies().CodeAllocator.(*LegacyCodeAllocator); !ok {
		t.Fatalf("expected legacy allocator, got %T", legacy.Dependencies().CodeAllocator)
	}
	grantType, err := mustCreateGrantType(legacy, "Medical", 1000)
	if err != nil {
		t.Fatalf("create grant type: %v", err)
	}
	if grantType.Code != "G001" || mark.Load() != 1 {
		t.Fatalf("expected G001 with mark 1, got %s and %d", grantType.Code, mark.Load())
	}
}

func TestService_IssueLoanPersistsScheduleAndEvent(t *testing.T) {
	svc, stores, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	employee, err := mustOnboard(svc, "E-100", "ada@example.com")
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	guarantor, err := svc.AddGuarantor(context.Background(), CreateGuarantorInput{
		EmployeeID: employee.ID,
		FullName:   "Grace Hopper",
		Phone:      "555-0100",
	})
	if err != nil {
		t.Fatalf("add guarantor: %v", err)
	}
	grantType, err := mustCreateGrantType(svc, "Emergency", 500000)
	if err != nil {
		t.Fatalf("grant type: %v", err)
	}

	issued, err := svc.IssueLoan(context.Background(), IssueLoanRequest{
		EmployeeID:  employee.ID,
		GrantTypeID: grantType.ID,
		GuarantorID: guarantor.ID,
		Principal:   120000,
	})
	if err != nil {
		t.Fatalf("issue loan: %v", err)
	}
	loan := issued.Loan
	if loan.GrantCode != "G001" || loan.TermMonths != 12 {
		t.Fatalf("unexpected loan: %+v", loan)
	}
	if loan.TotalDue != 134400 || loan.Balance != 134400 {
		t.Fatalf("expected total 134400 with 12%% flat interest, got %d", loan.TotalDue)
	}
	if len(issued.Installments) != 12 || issued.Installments[0].Amount != 11200 {
		t.Fatalf("unexpected installments: %+v", issued.Installments)
	}
	if !loan.IssuedAt.Equal(testNow) {
		t.Fatalf("expected issue time from clock, got %s", loan.IssuedAt)
	}
	if names := stores.eventNames(); len(names) != 1 || names[0] != EventLoanIssued {
		t.Fatalf("expected loan.issued event, got %v", names)
	}
}

func TestService_IssueLoanRejections(t *testing.T) {
	svc, stores, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	employee, _ := mustOnboard(svc, "E-1", "a@example.com")
	other, _ := mustOnboard(svc, "E-2", "b@example.com")
	foreign, _ := svc.AddGuarantor(context.Background(), CreateGuarantorInput{
		EmployeeID: other.ID,
		FullName:   "Someone Else",
		Email:      "else@example.com",
	})
	grantType, _ := mustCreateGrantType(svc, "Small", 1000)

	cases := []struct {
		name string
		req  IssueLoanRequest
		want error
		code string
	}{
		{"over limit", IssueLoanRequest{EmployeeID: employee.ID, GrantTypeID: grantType.ID, Principal: 1001}, ErrAmountExceedsLimit, LoansErrorLimitExceeded},
		{"term too long", IssueLoanRequest{EmployeeID: employee.ID, GrantTypeID: grantType.ID, Principal: 10, TermMonths: 121}, ErrInvalidInput, LoansErrorBadInput},
		{"foreign guarantor", IssueLoanRequest{EmployeeID: employee.ID, GrantTypeID: grantType.ID, GuarantorID: foreign.ID, Principal: 10}, ErrInvalidInput, LoansErrorBadInput},
		{"unknown employee", IssueLoanRequest{EmployeeID: "missing", GrantTypeID: grantType.ID, Principal: 10}, ErrNotFound, LoansErrorNotFound},
		{"zero principal", IssueLoanRequest{EmployeeID: employee.ID, GrantTypeID: grantType.ID}, ErrInvalidInput, LoansErrorBadInput},
	}
	for _, tc := range cases {
		_, err := svc.IssueLoan(context.Background(), tc.req)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) || rich.TextCode != tc.code {
			t.Fatalf("%s: expected text code %s, got %v", tc.name, tc.code, err)
		}
	}

	if _, err := svc.UpdateGrantTypeStatus(context.Background(), grantType.ID, GrantTypeStatusArchived); err != nil {
		t.Fatalf("archive grant type: %v", err)
	}
	_, err = svc.IssueLoan(context.Background(), IssueLoanRequest{EmployeeID: employee.ID, GrantTypeID: grantType.ID, Principal: 10})
	if !errors.Is(err, ErrGrantTypeInactive) {
		t.Fatalf("expected inactive grant type, got %v", err)
	}

	if _, err := svc.DeactivateEmployee(context.Background(), other.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, _ := mustCreateGrantType(svc, "Other", 1000)
	_, err = svc.IssueLoan(context.Background(), IssueLoanRequest{EmployeeID: other.ID, GrantTypeID: active.ID, Principal: 10})
	if !errors.Is(err, ErrEmployeeInactive) {
		t.Fatalf("expected inactive employee, got %v", err)
	}
	if len(stores.db.loans) != 0 || len(stores.events()) != 0 {
		t.Fatalf("expected rejected loans to leave no rows or events")
	}
}

type failingOutboxStore struct {
	memoryOutboxStore
	err error
}

func (s failingOutboxStore) Enqueue(context.Context, LoanEvent) error {
	return s.err
}

func TestService_IssueLoanRollsBackWhenOutboxFails(t *testing.T) {
	stores := newMemoryStores()
	svc, err := NewService(Config{},
		WithRepositoryFactory(stores),
		WithOutboxStore(failingOutboxStore{err: errors.New("outbox down")}),
		WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	employee, _ := mustOnboard(svc, "E-1", "a@example.com")
	grantType, _ := mustCreateGrantType(svc, "Emergency", 5000)

	_, err = svc.IssueLoan(context.Background(), IssueLoanRequest{
		EmployeeID:  employee.ID,
		GrantTypeID: grantType.ID,
		Principal:   1000,
	})
	if err == nil {
		t.Fatalf("expected issue to fail")
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Context != "issue loan" {
		t.Fatalf("expected issue loan operation error, got %v", err)
	}
	if len(stores.db.loans) != 0 || len(stores.db.installments) != 0 {
		t.Fatalf("expected loan and installments to be rolled back")
	}
}

func TestService_RecordPaymentSettlesLoan(t *testing.T) {
	svc, stores, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	employee, _ := mustOnboard(svc, "E-1", "a@example.com")
	grantType, err := svc.CreateGrantType(context.Background(), CreateGrantTypeInput{
		Name:       "Interest free",
		MaxAmount:  10000,
		TermMonths: 3,
	})
	if err != nil {
		t.Fatalf("grant type: %v", err)
	}
	issued, err := svc.IssueLoan(context.Background(), IssueLoanRequest{
		EmployeeID:  employee.ID,
		GrantTypeID: grantType.ID,
		Principal:   900,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	receipt, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{
		LoanID: issued.Loan.ID,
		Amount: 400,
		Method: "payroll",
	})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if receipt.Loan.Balance != 500 || receipt.Loan.Status != LoanStatusActive {
		t.Fatalf("unexpected loan after partial payment: %+v", receipt.Loan)
	}
	if receipt.Installments[0].Status != InstallmentStatusPaid || receipt.Installments[1].Status != InstallmentStatusPartial {
		t.Fatalf("unexpected installments: %+v", receipt.Installments)
	}

	_, err = svc.RecordPayment(context.Background(), RecordPaymentRequest{LoanID: issued.Loan.ID, Amount: 501})
	if !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected overpayment, got %v", err)
	}

	receipt, err = svc.RecordPayment(context.Background(), RecordPaymentRequest{LoanID: issued.Loan.ID, Amount: 500})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if receipt.Loan.Status != LoanStatusSettled || receipt.Loan.SettledAt == nil || receipt.Loan.Balance != 0 {
		t.Fatalf("expected settled loan, got %+v", receipt.Loan)
	}

	want := []string{EventLoanIssued, EventPaymentRecorded, EventPaymentRecorded, EventLoanSettled}
	got := stores.eventNames()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}

	_, err = svc.RecordPayment(context.Background(), RecordPaymentRequest{LoanID: issued.Loan.ID, Amount: 1})
	if !errors.Is(err, ErrLoanClosed) {
		t.Fatalf("expected closed loan, got %v", err)
	}
	payments, err := svc.ListPayments(context.Background(), issued.Loan.ID)
	if err != nil || len(payments) != 2 {
		t.Fatalf("expected two payments, got %d (%v)", len(payments), err)
	}
}

func TestService_CancelLoan(t *testing.T) {
	svc, _, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	employee, _ := mustOnboard(svc, "E-1", "a@example.com")
	grantType, _ := mustCreateGrantType(svc, "Emergency", 5000)
	first, _ := svc.IssueLoan(context.Background(), IssueLoanRequest{EmployeeID: employee.ID, GrantTypeID: grantType.ID, Principal: 1000})
	second, _ := svc.IssueLoan(context.Background(), IssueLoanRequest{EmployeeID: employee.ID, GrantTypeID: grantType.ID, Principal: 1000})

	cancelled, err := svc.CancelLoan(context.Background(), first.Loan.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != LoanStatusCancelled {
		t.Fatalf("expected cancelled loan, got %s", cancelled.Status)
	}

	if _, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{LoanID: second.Loan.ID, Amount: 10}); err != nil {
		t.Fatalf("payment: %v", err)
	}
	_, err = svc.CancelLoan(context.Background(), second.Loan.ID)
	if !errors.Is(err, ErrLoanHasPayments) {
		t.Fatalf("expected has payments error, got %v", err)
	}

	loans, err := svc.ListLoans(context.Background(), employee.ID)
	if err != nil || len(loans) != 2 {
		t.Fatalf("expected two loans, got %d (%v)", len(loans), err)
	}
}

func TestService_LoanStatement(t *testing.T) {
	issuedAt := testNow.AddDate(0, -3, -1)
	svc, _, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	employee, _ := mustOnboard(svc, "E-1", "a@example.com")
	grantType, _ := svc.CreateGrantType(context.Background(), CreateGrantTypeInput{Name: "Zero", MaxAmount: 10000, TermMonths: 6})
	issued, err := svc.IssueLoan(context.Background(), IssueLoanRequest{
		EmployeeID:  employee.ID,
		GrantTypeID: grantType.ID,
		Principal:   600,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.RecordPayment(context.Background(), RecordPaymentRequest{LoanID: issued.Loan.ID, Amount: 150}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	statement, err := svc.LoanStatement(context.Background(), issued.Loan.ID)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if statement.Employee.ID != employee.ID || statement.GrantType.Code != grantType.Code {
		t.Fatalf("unexpected statement parties: %+v", statement)
	}
	if statement.TotalPaid != 150 || statement.Outstanding != 450 {
		t.Fatalf("unexpected totals: paid=%d outstanding=%d", statement.TotalPaid, statement.Outstanding)
	}
	// Three installments of 100 are past due; 150 has been paid against them.
	if statement.OverdueAmount != 150 {
		t.Fatalf("expected overdue 150, got %d", statement.OverdueAmount)
	}
	if !statement.GeneratedAt.Equal(testNow) {
		t.Fatalf("expected generated at clock time, got %s", statement.GeneratedAt)
	}
}

func TestService_RunRemindersIsIdempotent(t *testing.T) {
	svc, stores, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	employee, _ := mustOnboard(svc, "E-1", "a@example.com")
	grantType, _ := svc.CreateGrantType(context.Background(), CreateGrantTypeInput{Name: "Zero", MaxAmount: 10000, TermMonths: 2})
	// First installment falls due on March 12, inside the three day window.
	_, err = svc.IssueLoan(context.Background(), IssueLoanRequest{
		EmployeeID:  employee.ID,
		GrantTypeID: grantType.ID,
		Principal:   200,
		IssuedAt:    time.Date(2026, time.February, 12, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	result, err := svc.RunReminders(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("run reminders: %v", err)
	}
	if result.Scanned != 1 || result.Enqueued != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	result, err = svc.RunReminders(context.Background(), testNow)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Enqueued != 0 {
		t.Fatalf("expected repeated run to enqueue nothing, got %+v", result)
	}

	due := 0
	for _, name := range stores.eventNames() {
		if name == EventInstallmentDue {
			due++
		}
	}
	if due != 1 {
		t.Fatalf("expected one installment.due event, got %d", due)
	}
}

func TestService_NextReminderRun(t *testing.T) {
	svc, _, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	next := svc.NextReminderRun(testNow)
	want := time.Date(2026, time.March, 11, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}

type recordingSender struct {
	mu       sync.Mutex
	requests []NotificationSendRequest
	err      error
}

func (s *recordingSender) Send(_ context.Context, req NotificationSendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.err
}

type memoryLedger struct {
	mu      sync.Mutex
	records map[string]NotificationDispatchRecord
}

func (l *memoryLedger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[key]
	return ok && record.Status == "sent", nil
}

func (l *memoryLedger) Record(_ context.Context, record NotificationDispatchRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.records == nil {
		l.records = map[string]NotificationDispatchRecord{}
	}
	l.records[record.IdempotencyKey] = record
	return nil
}

func TestService_DispatchOutboxNotifiesEmployee(t *testing.T) {
	stores := newMemoryStores()
	sender := &recordingSender{}
	ledger := &memoryLedger{}
	projector := NewNotificationProjector(stores.EmployeeStore(), sender, ledger)

	svc, err := NewService(Config{},
		WithRepositoryFactory(stores),
		WithEventHandler(DefaultNotificationProjectorName, projector),
		WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	employee, _ := mustOnboard(svc, "E-1", "ada@example.com")
	grantType, _ := mustCreateGrantType(svc, "Emergency", 5000)
	if _, err := svc.IssueLoan(context.Background(), IssueLoanRequest{
		EmployeeID:  employee.ID,
		GrantTypeID: grantType.ID,
		Principal:   1000,
	}); err != nil {
		t.Fatalf("issue: %v", err)
	}

	stats, err := svc.DispatchOutbox(context.Background(), 0)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if stats.Claimed != 1 || stats.Delivered != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(sender.requests) != 1 {
		t.Fatalf("expected one notification, got %d", len(sender.requests))
	}
	req := sender.requests[0]
	if req.DefinitionCode != NotificationLoanIssued || req.Recipients[0].Address != "ada@example.com" {
		t.Fatalf("unexpected notification: %+v", req)
	}

	// The memory outbox never removes events; a second pass must not resend.
	if _, err := svc.DispatchOutbox(context.Background(), 0); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if len(sender.requests) != 1 {
		t.Fatalf("expected ledger to suppress duplicate send, got %d", len(sender.requests))
	}
}

func TestService_OnboardEmployeeValidation(t *testing.T) {
	svc, _, err := newTestService(testNow)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.OnboardEmployee(context.Background(), CreateEmployeeInput{FirstName: "Ada"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	_, err = svc.GetEmployee(context.Background(), "missing")
	if KindOf(err) != ErrorKindNotFound {
		t.Fatalf("expected not found kind, got %v", err)
	}
	_, err = svc.AddGuarantor(context.Background(), CreateGuarantorInput{EmployeeID: "missing", FullName: "X", Email: "x@example.com"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected guarantor for unknown employee to fail, got %v", err)
	}
}
