package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryLoansDB backs every memory store used by the service tests. The
// memoryTransactor snapshots it on begin and restores the snapshot on
// rollback.
type memoryLoansDB struct {
	mu           sync.Mutex
	next         int
	employees    map[string]Employee
	guarantors   map[string]Guarantor
	grantTypes   map[string]GrantType
	loans        map[string]Loan
	installments map[string][]Installment
	payments     map[string][]Payment
	outbox       []LoanEvent
	sequences    map[string]int64

	locksMu  sync.Mutex
	rowLocks map[string]*sync.Mutex
}

func newMemoryLoansDB() *memoryLoansDB {
	return &memoryLoansDB{
		rowLocks:     map[string]*sync.Mutex{},
		employees:    map[string]Employee{},
		guarantors:   map[string]Guarantor{},
		grantTypes:   map[string]GrantType{},
		loans:        map[string]Loan{},
		installments: map[string][]Installment{},
		payments:     map[string][]Payment{},
		sequences:    map[string]int64{},
	}
}

func (db *memoryLoansDB) nextID(prefix string) string {
	db.next++
	return fmt.Sprintf("%s_%d", prefix, db.next)
}

type memorySnapshot struct {
	next         int
	employees    map[string]Employee
	guarantors   map[string]Guarantor
	grantTypes   map[string]GrantType
	loans        map[string]Loan
	installments map[string][]Installment
	payments     map[string][]Payment
	outbox       []LoanEvent
	sequences    map[string]int64
}

func (db *memoryLoansDB) snapshot() memorySnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := memorySnapshot{
		next:         db.next,
		employees:    map[string]Employee{},
		guarantors:   map[string]Guarantor{},
		grantTypes:   map[string]GrantType{},
		loans:        map[string]Loan{},
		installments: map[string][]Installment{},
		payments:     map[string][]Payment{},
		outbox:       append([]LoanEvent(nil), db.outbox...),
		sequences:    map[string]int64{},
	}
	for k, v := range db.employees {
		snap.employees[k] = v
	}
	for k, v := range db.guarantors {
		snap.guarantors[k] = v
	}
	for k, v := range db.grantTypes {
		snap.grantTypes[k] = v
	}
	for k, v := range db.loans {
		snap.loans[k] = v
	}
	for k, v := range db.installments {
		snap.installments[k] = append([]Installment(nil), v...)
	}
	for k, v := range db.payments {
		snap.payments[k] = append([]Payment(nil), v...)
	}
	for k, v := range db.sequences {
		snap.sequences[k] = v
	}
	return snap
}

func (db *memoryLoansDB) restore(snap memorySnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.next = snap.next
	db.employees = snap.employees
	db.guarantors = snap.guarantors
	db.grantTypes = snap.grantTypes
	db.loans = snap.loans
	db.installments = snap.installments
	db.payments = snap.payments
	db.outbox = snap.outbox
	db.sequences = snap.sequences
}

func (db *memoryLoansDB) rowLock(id string) *sync.Mutex {
	db.locksMu.Lock()
	defer db.locksMu.Unlock()
	lock, ok := db.rowLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		db.rowLocks[id] = lock
	}
	return lock
}

type memoryTxKey struct{}

// memoryTx holds the rollback snapshot and the row locks taken through
// GetForUpdate. Locks are released when the transaction ends.
type memoryTx struct {
	snap   memorySnapshot
	locks  []*sync.Mutex
	locked map[string]bool
}

func (tx *memoryTx) release() {
	for i := len(tx.locks) - 1; i >= 0; i-- {
		tx.locks[i].Unlock()
	}
	tx.locks = nil
}

type memoryTransactor struct {
	db        *memoryLoansDB
	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
}

func (t *memoryTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}
	t.mu.Lock()
	t.begins++
	t.mu.Unlock()

	tx := &memoryTx{snap: t.db.snapshot(), locked: map[string]bool{}}
	defer tx.release()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		t.db.restore(tx.snap)
		t.mu.Lock()
		t.rollbacks++
		t.mu.Unlock()
		return err
	}
	t.mu.Lock()
	t.commits++
	t.mu.Unlock()
	return nil
}

func (t *memoryTransactor) counts() (int, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.begins, t.commits, t.rollbacks
}

type memoryStores struct {
	db *memoryLoansDB
	tx *memoryTransactor
}

func newMemoryStores() *memoryStores {
	db := newMemoryLoansDB()
	return &memoryStores{db: db, tx: &memoryTransactor{db: db}}
}

func (m *memoryStores) Transactor() Transactor               { return m.tx }
func (m *memoryStores) EmployeeStore() EmployeeStore         { return memoryEmployeeStore{db: m.db} }
func (m *memoryStores) GuarantorStore() GuarantorStore       { return memoryGuarantorStore{db: m.db} }
func (m *memoryStores) GrantTypeStore() GrantTypeStore       { return memoryGrantTypeStore{db: m.db} }
func (m *memoryStores) CodeSequenceStore() CodeSequenceStore { return memorySequenceStore{db: m.db} }
func (m *memoryStores) LoanStore() LoanStore                 { return memoryLoanStore{db: m.db} }
func (m *memoryStores) PaymentStore() PaymentStore           { return memoryPaymentStore{db: m.db} }
func (m *memoryStores) OutboxStore() OutboxStore             { return memoryOutboxStore{db: m.db} }

func (m *memoryStores) events() []LoanEvent {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return append([]LoanEvent(nil), m.db.outbox...)
}

func (m *memoryStores) eventNames() []string {
	events := m.events()
	out := make([]string, 0, len(events))
	for _, event := range events {
		out = append(out, event.Name)
	}
	return out
}

type memoryEmployeeStore struct{ db *memoryLoansDB }

func (s memoryEmployeeStore) Create(_ context.Context, in CreateEmployeeInput) (Employee, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.employees {
		if existing.EmployeeNumber == in.EmployeeNumber {
			return Employee{}, fmt.Errorf("memory: employee number %q already exists", in.EmployeeNumber)
		}
	}
	now := time.Now().UTC()
	record := Employee{
		ID:             s.db.nextID("emp"),
		EmployeeNumber: in.EmployeeNumber,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		Phone:          in.Phone,
		Department:     in.Department,
		Status:         EmployeeStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.db.employees[record.ID] = record
	return record, nil
}

func (s memoryEmployeeStore) Get(_ context.Context, id string) (Employee, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record, ok := s.db.employees[id]
	if !ok {
		return Employee{}, fmt.Errorf("memory: employee %q: %w", id, ErrNotFound)
	}
	return record, nil
}

func (s memoryEmployeeStore) UpdateStatus(_ context.Context, id string, status EmployeeStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record, ok := s.db.employees[id]
	if !ok {
		return fmt.Errorf("memory: employee %q: %w", id, ErrNotFound)
	}
	record.Status = status
	s.db.employees[id] = record
	return nil
}

type memoryGuarantorStore struct{ db *memoryLoansDB }

func (s memoryGuarantorStore) Create(_ context.Context, in CreateGuarantorInput) (Guarantor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record := Guarantor{
		ID:           s.db.nextID("gua"),
		EmployeeID:   in.EmployeeID,
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		Relationship: in.Relationship,
	}
	s.db.guarantors[record.ID] = record
	return record, nil
}

func (s memoryGuarantorStore) Get(_ context.Context, id string) (Guarantor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record, ok := s.db.guarantors[id]
	if !ok {
		return Guarantor{}, fmt.Errorf("memory: guarantor %q: %w", id, ErrNotFound)
	}
	return record, nil
}

func (s memoryGuarantorStore) ListByEmployee(_ context.Context, employeeID string) ([]Guarantor, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []Guarantor{}
	for _, record := range s.db.guarantors {
		if record.EmployeeID == employeeID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryGrantTypeStore struct{ db *memoryLoansDB }

func (s memoryGrantTypeStore) MaxCode(context.Context) (string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	best := ""
	for _, record := range s.db.grantTypes {
		if len(record.Code) > len(best) || (len(record.Code) == len(best) && record.Code > best) {
			best = record.Code
		}
	}
	return best, nil
}

func (s memoryGrantTypeStore) Create(_ context.Context, in NewGrantTypeRecord) (GrantType, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.grantTypes {
		if existing.Code == in.Code {
			return GrantType{}, fmt.Errorf("memory: grant code %q: %w", in.Code, ErrDuplicateCode)
		}
	}
	now := time.Now().UTC()
	record := GrantType{
		ID:              s.db.nextID("gt"),
		Code:            in.Code,
		Name:            in.Input.Name,
		Description:     in.Input.Description,
		MaxAmount:       in.Input.MaxAmount,
		InterestRateBPS: in.Input.InterestRateBPS,
		TermMonths:      in.Input.TermMonths,
		Status:          GrantTypeStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.db.grantTypes[record.ID] = record
	return record, nil
}

func (s memoryGrantTypeStore) Get(_ context.Context, id string) (GrantType, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record, ok := s.db.grantTypes[id]
	if !ok {
		return GrantType{}, fmt.Errorf("memory: grant type %q: %w", id, ErrNotFound)
	}
	return record, nil
}

func (s memoryGrantTypeStore) GetByCode(_ context.Context, code string) (GrantType, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, record := range s.db.grantTypes {
		if record.Code == code {
			return record, nil
		}
	}
	return GrantType{}, fmt.Errorf("memory: grant code %q: %w", code, ErrNotFound)
}

func (s memoryGrantTypeStore) List(_ context.Context, status GrantTypeStatus) ([]GrantType, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []GrantType{}
	for _, record := range s.db.grantTypes {
		if status == "" || record.Status == status {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s memoryGrantTypeStore) UpdateStatus(_ context.Context, id string, status GrantTypeStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record, ok := s.db.grantTypes[id]
	if !ok {
		return fmt.Errorf("memory: grant type %q: %w", id, ErrNotFound)
	}
	record.Status = status
	s.db.grantTypes[id] = record
	return nil
}

type memorySequenceStore struct{ db *memoryLoansDB }

func (s memorySequenceStore) NextValue(_ context.Context, name string, floor int64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	next := max(s.db.sequences[name], floor) + 1
	s.db.sequences[name] = next
	return next, nil
}

type memoryLoanStore struct{ db *memoryLoansDB }

func (s memoryLoanStore) Create(_ context.Context, loan Loan, installments []Installment) (IssuedLoan, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	loan.ID = s.db.nextID("loan")
	loan.CreatedAt = time.Now().UTC()
	loan.UpdatedAt = loan.CreatedAt
	stored := make([]Installment, 0, len(installments))
	for _, installment := range installments {
		installment.ID = s.db.nextID("inst")
		installment.LoanID = loan.ID
		stored = append(stored, installment)
	}
	s.db.loans[loan.ID] = loan
	s.db.installments[loan.ID] = stored
	return IssuedLoan{Loan: loan, Installments: append([]Installment(nil), stored...)}, nil
}

func (s memoryLoanStore) Get(_ context.Context, id string) (Loan, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	record, ok := s.db.loans[id]
	if !ok {
		return Loan{}, fmt.Errorf("memory: loan %q: %w", id, ErrNotFound)
	}
	return record, nil
}

// GetForUpdate blocks until no other transaction holds the loan. The
// rollback snapshot is retaken once the lock is held so that a rollback does
// not discard writes committed while this transaction waited. Callers lock
// before writing anything.
func (s memoryLoanStore) GetForUpdate(ctx context.Context, id string) (Loan, error) {
	tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx)
	if !ok {
		return s.Get(ctx, id)
	}
	if !tx.locked[id] {
		lock := s.db.rowLock(id)
		lock.Lock()
		tx.locks = append(tx.locks, lock)
		tx.locked[id] = true
		tx.snap = s.db.snapshot()
	}
	return s.Get(ctx, id)
}

func (s memoryLoanStore) ListByEmployee(_ context.Context, employeeID string) ([]Loan, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []Loan{}
	for _, record := range s.db.loans {
		if record.EmployeeID == employeeID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memoryLoanStore) Update(_ context.Context, loan Loan) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.loans[loan.ID]; !ok {
		return fmt.Errorf("memory: loan %q: %w", loan.ID, ErrNotFound)
	}
	loan.UpdatedAt = time.Now().UTC()
	s.db.loans[loan.ID] = loan
	return nil
}

func (s memoryLoanStore) ListInstallments(_ context.Context, loanID string) ([]Installment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return append([]Installment(nil), s.db.installments[loanID]...), nil
}

func (s memoryLoanStore) UpdateInstallment(_ context.Context, installment Installment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	items := s.db.installments[installment.LoanID]
	for i := range items {
		if items[i].ID == installment.ID {
			items[i] = installment
			return nil
		}
	}
	return fmt.Errorf("memory: installment %q: %w", installment.ID, ErrNotFound)
}

func (s memoryLoanStore) ListUnpaidInstallmentsDue(_ context.Context, from time.Time, to time.Time) ([]Installment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []Installment{}
	for _, items := range s.db.installments {
		for _, installment := range items {
			if installment.Status == InstallmentStatusPaid {
				continue
			}
			if installment.DueDate.Before(from) || !installment.DueDate.Before(to) {
				continue
			}
			out = append(out, installment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryPaymentStore struct{ db *memoryLoansDB }

func (s memoryPaymentStore) Create(_ context.Context, payment Payment) (Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	payment.ID = s.db.nextID("pay")
	payment.CreatedAt = time.Now().UTC()
	s.db.payments[payment.LoanID] = append(s.db.payments[payment.LoanID], payment)
	return payment, nil
}

func (s memoryPaymentStore) ListByLoan(_ context.Context, loanID string) ([]Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return append([]Payment(nil), s.db.payments[loanID]...), nil
}

type memoryOutboxStore struct{ db *memoryLoansDB }

func (s memoryOutboxStore) Enqueue(_ context.Context, event LoanEvent) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.outbox {
		if existing.ID == event.ID {
			return fmt.Errorf("memory: event %q: %w", event.ID, ErrDuplicateEvent)
		}
	}
	s.db.outbox = append(s.db.outbox, event)
	return nil
}

func (s memoryOutboxStore) ClaimBatch(_ context.Context, limit int) ([]LoanEvent, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if limit <= 0 || limit > len(s.db.outbox) {
		limit = len(s.db.outbox)
	}
	return append([]LoanEvent(nil), s.db.outbox[:limit]...), nil
}

func (s memoryOutboxStore) Ack(context.Context, string) error { return nil }

func (s memoryOutboxStore) Retry(context.Context, string, error, time.Time) error { return nil }

// failingMaxCodeReader fails every MaxCode call with err.
type failingMaxCodeReader struct {
	err error
}

func (r failingMaxCodeReader) MaxCode(context.Context) (string, error) {
	return "", r.err
}

type staticMaxCodeReader struct {
	code string
}

func (r staticMaxCodeReader) MaxCode(context.Context) (string, error) {
	return r.code, nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

// newTestService wires a service over fresh memory stores with a fixed clock.
func newTestService(now time.Time, opts ...Option) (*Service, *memoryStores, error) {
	stores := newMemoryStores()
	base := []Option{
		WithRepositoryFactory(stores),
		WithHighWaterMark(&HighWaterMark{}),
		WithClock(func() time.Time { return now }),
		WithLogger(stubLogger{}),
	}
	svc, err := NewService(Config{}, append(base, opts...)...)
	return svc, stores, err
}

func mustOnboard(svc *Service, number string, email string) (Employee, error) {
	return svc.OnboardEmployee(context.Background(), CreateEmployeeInput{
		EmployeeNumber: number,
		FirstName:      "Ada",
		LastName:       strings.ToUpper(number),
		Email:          email,
	})
}

func mustCreateGrantType(svc *Service, name string, maxAmount int64) (GrantType, error) {
	return svc.CreateGrantType(context.Background(), CreateGrantTypeInput{
		Name:            name,
		MaxAmount:       maxAmount,
		InterestRateBPS: 1200,
		TermMonths:      12,
	})
}
