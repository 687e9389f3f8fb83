package sqlstore

import "github.com/goliatone/go-loans/core"

var (
	_ core.EmployeeStore          = (*EmployeeStore)(nil)
	_ core.GuarantorStore         = (*GuarantorStore)(nil)
	_ core.GrantTypeStore         = (*GrantTypeStore)(nil)
	_ core.CodeSequenceStore      = (*CodeSequenceStore)(nil)
	_ core.LoanStore              = (*LoanStore)(nil)
	_ core.PaymentStore           = (*PaymentStore)(nil)
	_ core.OutboxStore            = (*OutboxStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
