package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-loans/core"
)

func (r *employeeRecord) toDomain() core.Employee {
	if r == nil {
		return core.Employee{}
	}
	return core.Employee{
		ID:             r.ID,
		EmployeeNumber: r.EmployeeNumber,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Phone:          r.Phone,
		Department:     r.Department,
		Status:         core.EmployeeStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r *guarantorRecord) toDomain() core.Guarantor {
	if r == nil {
		return core.Guarantor{}
	}
	return core.Guarantor{
		ID:           r.ID,
		EmployeeID:   r.EmployeeID,
		FullName:     r.FullName,
		Email:        r.Email,
		Phone:        r.Phone,
		Relationship: r.Relationship,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r *grantTypeRecord) toDomain() core.GrantType {
	if r == nil {
		return core.GrantType{}
	}
	return core.GrantType{
		ID:              r.ID,
		Code:            r.Code,
		Name:            r.Name,
		Description:     r.Description,
		MaxAmount:       r.MaxAmount,
		InterestRateBPS: r.InterestRateBPS,
		TermMonths:      r.TermMonths,
		Status:          core.GrantTypeStatus(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func newLoanRecord(loan core.Loan, now time.Time) *loanRecord {
	status := strings.TrimSpace(string(loan.Status))
	if status == "" {
		status = string(core.LoanStatusActive)
	}
	issuedAt := loan.IssuedAt.UTC()
	if issuedAt.IsZero() {
		issuedAt = now
	}
	record := &loanRecord{
		ID:              strings.TrimSpace(loan.ID),
		EmployeeID:      strings.TrimSpace(loan.EmployeeID),
		GrantTypeID:     strings.TrimSpace(loan.GrantTypeID),
		GrantCode:       strings.TrimSpace(loan.GrantCode),
		Principal:       loan.Principal,
		InterestRateBPS: loan.InterestRateBPS,
		TermMonths:      loan.TermMonths,
		TotalDue:        loan.TotalDue,
		AmountPaid:      loan.AmountPaid,
		Balance:         loan.Balance,
		Status:          status,
		IssuedAt:        issuedAt,
		SettledAt:       cloneTimePointer(loan.SettledAt),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if guarantorID := strings.TrimSpace(loan.GuarantorID); guarantorID != "" {
		record.GuarantorID = &guarantorID
	}
	return record
}

func (r *loanRecord) toDomain() core.Loan {
	if r == nil {
		return core.Loan{}
	}
	loan := core.Loan{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		GrantTypeID:     r.GrantTypeID,
		GrantCode:       r.GrantCode,
		Principal:       r.Principal,
		InterestRateBPS: r.InterestRateBPS,
		TermMonths:      r.TermMonths,
		TotalDue:        r.TotalDue,
		AmountPaid:      r.AmountPaid,
		Balance:         r.Balance,
		Status:          core.LoanStatus(r.Status),
		IssuedAt:        r.IssuedAt,
		SettledAt:       cloneTimePointer(r.SettledAt),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.GuarantorID != nil {
		loan.GuarantorID = *r.GuarantorID
	}
	return loan
}

func newInstallmentRecord(installment core.Installment) installmentRecord {
	status := strings.TrimSpace(string(installment.Status))
	if status == "" {
		status = string(core.InstallmentStatusPending)
	}
	return installmentRecord{
		ID:         strings.TrimSpace(installment.ID),
		LoanID:     strings.TrimSpace(installment.LoanID),
		Sequence:   installment.Sequence,
		DueDate:    installment.DueDate.UTC(),
		Amount:     installment.Amount,
		AmountPaid: installment.AmountPaid,
		Status:     status,
		PaidAt:     cloneTimePointer(installment.PaidAt),
	}
}

func (r *installmentRecord) toDomain() core.Installment {
	if r == nil {
		return core.Installment{}
	}
	return core.Installment{
		ID:         r.ID,
		LoanID:     r.LoanID,
		Sequence:   r.Sequence,
		DueDate:    r.DueDate,
		Amount:     r.Amount,
		AmountPaid: r.AmountPaid,
		Status:     core.InstallmentStatus(r.Status),
		PaidAt:     cloneTimePointer(r.PaidAt),
	}
}

func installmentsToDomain(records []installmentRecord) []core.Installment {
	out := make([]core.Installment, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out
}

func (r *paymentRecord) toDomain() core.Payment {
	if r == nil {
		return core.Payment{}
	}
	return core.Payment{
		ID:        r.ID,
		LoanID:    r.LoanID,
		Amount:    r.Amount,
		Method:    r.Method,
		Reference: r.Reference,
		PaidAt:    r.PaidAt,
		CreatedAt: r.CreatedAt,
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
