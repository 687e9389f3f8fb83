package core

import (
	"fmt"
	"time"
)

const basisPointsPerYear = 12 * 10000

// FlatInterest is principal * rate * term, rounded half up to the minor unit.
func FlatInterest(principal int64, rateBPS int, termMonths int) int64 {
	if principal <= 0 || rateBPS <= 0 || termMonths <= 0 {
		return 0
	}
	numerator := principal * int64(rateBPS) * int64(termMonths)
	return (numerator + basisPointsPerYear/2) / basisPointsPerYear
}

// BuildInstallments splits total into termMonths monthly installments. The
// remainder of the division goes to the last installment; the first one is
// due one month after issuedAt.
func BuildInstallments(total int64, termMonths int, issuedAt time.Time) ([]Installment, error) {
	if total <= 0 {
		return nil, fmt.Errorf("core: installment total must be positive: %w", ErrInvalidInput)
	}
	if termMonths <= 0 {
		return nil, fmt.Errorf("core: installment term must be positive: %w", ErrInvalidInput)
	}
	base := total / int64(termMonths)
	remainder := total % int64(termMonths)
	issuedAt = issuedAt.UTC()

	out := make([]Installment, 0, termMonths)
	for i := 1; i <= termMonths; i++ {
		amount := base
		if i == termMonths {
			amount += remainder
		}
		out = append(out, Installment{
			Sequence: i,
			DueDate:  addMonthsClamped(issuedAt, i),
			Amount:   amount,
			Status:   InstallmentStatusPending,
		})
	}
	return out, nil
}

// ApplyPayment allocates amount to installments in sequence order and
// returns the updated installments that changed, plus any unapplied amount.
func ApplyPayment(installments []Installment, amount int64, paidAt time.Time) ([]Installment, int64) {
	changed := make([]Installment, 0)
	remaining := amount
	for i := range installments {
		if remaining <= 0 {
			break
		}
		outstanding := installments[i].Outstanding()
		if outstanding == 0 {
			continue
		}
		applied := min(outstanding, remaining)
		installments[i].AmountPaid += applied
		remaining -= applied
		if installments[i].Outstanding() == 0 {
			installments[i].Status = InstallmentStatusPaid
			value := paidAt.UTC()
			installments[i].PaidAt = &value
		} else {
			installments[i].Status = InstallmentStatusPartial
		}
		changed = append(changed, installments[i])
	}
	return changed, remaining
}

// addMonthsClamped keeps month-end issue dates on the last day of shorter
// months instead of rolling into the next month.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	lastDay := target.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
