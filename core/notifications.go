package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const DefaultNotificationProjectorName = "loans.notifications"

const (
	NotificationLoanIssued      = "loans.loan_issued"
	NotificationLoanCancelled   = "loans.loan_cancelled"
	NotificationLoanSettled     = "loans.loan_settled"
	NotificationPaymentReceived = "loans.payment_received"
	NotificationInstallmentDue  = "loans.installment_due"
)

// DefaultNotificationDefinitions maps loan event names to notification
// definition codes.
func DefaultNotificationDefinitions() map[string]string {
	return map[string]string{
		EventLoanIssued:      NotificationLoanIssued,
		EventLoanCancelled:   NotificationLoanCancelled,
		EventLoanSettled:     NotificationLoanSettled,
		EventPaymentRecorded: NotificationPaymentReceived,
		EventInstallmentDue:  NotificationInstallmentDue,
	}
}

type ProjectorRegistry interface {
	Handlers() []LoanEventHandler
}

type LoanProjectorRegistry struct {
	mu       sync.RWMutex
	handlers map[string]LoanEventHandler
	order    []string
}

func NewLoanProjectorRegistry() *LoanProjectorRegistry {
	return &LoanProjectorRegistry{
		handlers: make(map[string]LoanEventHandler),
		order:    make([]string, 0),
	}
}

func (r *LoanProjectorRegistry) Register(name string, handler LoanEventHandler) {
	if r == nil || handler == nil {
		return
	}
	key := strings.TrimSpace(name)
	if key == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string]LoanEventHandler)
	}
	if _, exists := r.handlers[key]; !exists {
		r.order = append(r.order, key)
		sort.Strings(r.order)
	}
	r.handlers[key] = handler
}

func (r *LoanProjectorRegistry) Handlers() []LoanEventHandler {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LoanEventHandler, 0, len(r.order))
	for _, key := range r.order {
		handler := r.handlers[key]
		if handler != nil {
			out = append(out, handler)
		}
	}
	return out
}

// NotificationProjector turns loan events into notifications addressed to
// the borrowing employee. Each (event, definition, recipient) is sent at most
// once; the dispatch ledger records both deliveries and failures.
type NotificationProjector struct {
	ProjectorName string
	Definitions   map[string]string
	Employees     EmployeeStore
	Sender        NotificationSender
	Ledger        NotificationDispatchLedger
}

func NewNotificationProjector(
	employees EmployeeStore,
	sender NotificationSender,
	ledger NotificationDispatchLedger,
) *NotificationProjector {
	return &NotificationProjector{
		ProjectorName: DefaultNotificationProjectorName,
		Definitions:   DefaultNotificationDefinitions(),
		Employees:     employees,
		Sender:        sender,
		Ledger:        ledger,
	}
}

func (p *NotificationProjector) Handle(ctx context.Context, event LoanEvent) error {
	if p == nil || p.Employees == nil || p.Sender == nil || p.Ledger == nil {
		return fmt.Errorf("core: notification projector dependencies are required")
	}
	definitionCode := strings.TrimSpace(p.Definitions[strings.TrimSpace(event.Name)])
	if definitionCode == "" {
		return nil
	}
	employeeID := strings.TrimSpace(event.EmployeeID)
	if employeeID == "" {
		return nil
	}
	employee, err := p.Employees.Get(ctx, employeeID)
	if err != nil {
		return err
	}
	address := strings.TrimSpace(employee.Email)
	if address == "" {
		return nil
	}
	recipient := Recipient{Type: "employee", ID: employee.ID, Address: address}

	projectorName := strings.TrimSpace(p.ProjectorName)
	if projectorName == "" {
		projectorName = DefaultNotificationProjectorName
	}
	recipientKey := formatRecipientKey(recipient)
	idempotencyKey := buildDispatchID(projectorName, definitionCode, event, recipientKey)
	seen, err := p.Ledger.Seen(ctx, idempotencyKey)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	metadata := copyAnyMap(event.Metadata)
	metadata["employee_name"] = employee.FullName()
	sendErr := p.Sender.Send(ctx, NotificationSendRequest{
		DefinitionCode: definitionCode,
		Recipients:     []Recipient{recipient},
		Event:          event,
		Metadata:       metadata,
	})
	record := NotificationDispatchRecord{
		EventID:        strings.TrimSpace(event.ID),
		Projector:      projectorName,
		DefinitionCode: definitionCode,
		RecipientKey:   recipientKey,
		IdempotencyKey: idempotencyKey,
		Status:         "sent",
		Metadata:       metadata,
	}
	if sendErr != nil {
		record.Status = "failed"
		record.Error = sendErr.Error()
	}
	if err := p.Ledger.Record(ctx, record); err != nil {
		return err
	}
	return sendErr
}

func formatRecipientKey(recipient Recipient) string {
	id := strings.TrimSpace(recipient.ID)
	if id == "" {
		return ""
	}
	kind := strings.TrimSpace(recipient.Type)
	if kind == "" {
		return id
	}
	return strings.ToLower(kind) + ":" + id
}

func buildDispatchID(projectorName string, definitionCode string, event LoanEvent, recipientKey string) string {
	eventID := strings.TrimSpace(event.ID)
	if eventID == "" {
		eventID = strings.TrimSpace(event.Name) + "|" + event.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	raw := strings.Join([]string{
		strings.TrimSpace(projectorName),
		strings.TrimSpace(definitionCode),
		eventID,
		strings.TrimSpace(recipientKey),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

var (
	_ ProjectorRegistry = (*LoanProjectorRegistry)(nil)
	_ LoanEventHandler  = (*NotificationProjector)(nil)
)
