package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var standardCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// ReminderSchedule is a UTC-only five field cron expression.
type ReminderSchedule struct {
	expr     string
	schedule cron.Schedule
}

func ParseReminderSchedule(expr string) (ReminderSchedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return ReminderSchedule{}, fmt.Errorf("core: reminder schedule is required")
	}
	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return ReminderSchedule{}, fmt.Errorf("core: reminder schedule must be UTC-only (timezone prefixes are not allowed)")
	}
	schedule, err := standardCronParser.Parse(clean)
	if err != nil {
		return ReminderSchedule{}, fmt.Errorf("core: invalid reminder schedule: %w", err)
	}
	return ReminderSchedule{expr: clean, schedule: schedule}, nil
}

func (s ReminderSchedule) String() string {
	return s.expr
}

func (s ReminderSchedule) Next(now time.Time) time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(now.UTC())
}

type ReminderResult struct {
	Scanned  int
	Enqueued int
}

// ReminderRunner enqueues installment.due events for unpaid installments
// falling due within the lead window.
type ReminderRunner struct {
	loans    LoanStore
	outbox   OutboxStore
	tx       Transactor
	leadDays int
}

func NewReminderRunner(loans LoanStore, outbox OutboxStore, tx Transactor, leadDays int) (*ReminderRunner, error) {
	if loans == nil {
		return nil, fmt.Errorf("core: loan store is required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("core: outbox store is required")
	}
	if tx == nil {
		tx = NopTransactor{}
	}
	if leadDays < 0 {
		leadDays = 0
	}
	return &ReminderRunner{loans: loans, outbox: outbox, tx: tx, leadDays: leadDays}, nil
}

func (r *ReminderRunner) Run(ctx context.Context, asOf time.Time) (ReminderResult, error) {
	if r == nil {
		return ReminderResult{}, fmt.Errorf("core: reminder runner is not configured")
	}
	asOf = asOf.UTC()
	from := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, r.leadDays+1)

	return RunInTransaction(ctx, r.tx, "run payment reminders", func(ctx context.Context) (ReminderResult, error) {
		due, err := r.loans.ListUnpaidInstallmentsDue(ctx, from, to)
		if err != nil {
			return ReminderResult{}, err
		}
		result := ReminderResult{Scanned: len(due)}
		loans := map[string]Loan{}
		for _, installment := range due {
			loan, ok := loans[installment.LoanID]
			if !ok {
				loan, err = r.loans.Get(ctx, installment.LoanID)
				if err != nil {
					return ReminderResult{}, err
				}
				loans[installment.LoanID] = loan
			}
			if loan.Status != LoanStatusActive {
				continue
			}
			event := LoanEvent{
				ID:         reminderEventID(installment),
				Name:       EventInstallmentDue,
				LoanID:     loan.ID,
				EmployeeID: loan.EmployeeID,
				Payload: map[string]any{
					"installment_id": installment.ID,
					"sequence":       installment.Sequence,
					"due_date":       installment.DueDate.UTC().Format(time.DateOnly),
					"amount_due":     installment.Outstanding(),
					"grant_code":     loan.GrantCode,
				},
				Metadata:   map[string]any{"source": "reminders"},
				OccurredAt: asOf,
			}
			if err := r.outbox.Enqueue(ctx, event); err != nil {
				if errors.Is(err, ErrDuplicateEvent) {
					continue
				}
				return ReminderResult{}, err
			}
			result.Enqueued++
		}
		return result, nil
	})
}

// reminderEventID is stable per installment and due date so that repeated
// runs on the same day do not enqueue duplicates.
func reminderEventID(installment Installment) string {
	key := installment.ID + ":" + installment.DueDate.UTC().Format(time.DateOnly)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(EventInstallmentDue+":"+key)).String()
}
