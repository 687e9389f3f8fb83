package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[OnboardEmployeeMessage]       = (*OnboardEmployeeCommand)(nil)
	_ gocmd.Commander[DeactivateEmployeeMessage]    = (*DeactivateEmployeeCommand)(nil)
	_ gocmd.Commander[AddGuarantorMessage]          = (*AddGuarantorCommand)(nil)
	_ gocmd.Commander[CreateGrantTypeMessage]       = (*CreateGrantTypeCommand)(nil)
	_ gocmd.Commander[UpdateGrantTypeStatusMessage] = (*UpdateGrantTypeStatusCommand)(nil)
	_ gocmd.Commander[IssueLoanMessage]             = (*IssueLoanCommand)(nil)
	_ gocmd.Commander[CancelLoanMessage]            = (*CancelLoanCommand)(nil)
	_ gocmd.Commander[RecordPaymentMessage]         = (*RecordPaymentCommand)(nil)
	_ gocmd.Commander[RunRemindersMessage]          = (*RunRemindersCommand)(nil)
	_ gocmd.Commander[DispatchOutboxMessage]        = (*DispatchOutboxCommand)(nil)
)
