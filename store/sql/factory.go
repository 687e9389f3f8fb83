package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-loans/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	transactor                *Transactor
	employeeStore             *EmployeeStore
	guarantorStore            *GuarantorStore
	grantTypeStore            core.GrantTypeStore
	codeSequenceStore         *CodeSequenceStore
	loanStore                 *LoanStore
	paymentStore              *PaymentStore
	outboxStore               *OutboxStore
	notificationDispatchStore *NotificationDispatchStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.transactor != nil && f.grantTypeStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

// UseGrantTypeCache wraps the grant type store with a read-through cache.
// BuildStores must have run first.
func (f *RepositoryFactory) UseGrantTypeCache(cacheService repositorycache.CacheService) error {
	if f == nil || f.grantTypeStore == nil {
		return fmt.Errorf("sqlstore: repository factory stores are not built")
	}
	if _, ok := f.grantTypeStore.(*CachedGrantTypeStore); ok {
		return nil
	}
	cached, err := NewCachedGrantTypeStore(f.grantTypeStore, cacheService)
	if err != nil {
		return err
	}
	f.grantTypeStore = cached
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) Transactor() core.Transactor {
	if f == nil || f.transactor == nil {
		return nil
	}
	return f.transactor
}

func (f *RepositoryFactory) EmployeeStore() core.EmployeeStore {
	if f == nil || f.employeeStore == nil {
		return nil
	}
	return f.employeeStore
}

func (f *RepositoryFactory) GuarantorStore() core.GuarantorStore {
	if f == nil || f.guarantorStore == nil {
		return nil
	}
	return f.guarantorStore
}

func (f *RepositoryFactory) GrantTypeStore() core.GrantTypeStore {
	if f == nil {
		return nil
	}
	return f.grantTypeStore
}

func (f *RepositoryFactory) CodeSequenceStore() core.CodeSequenceStore {
	if f == nil || f.codeSequenceStore == nil {
		return nil
	}
	return f.codeSequenceStore
}

func (f *RepositoryFactory) LoanStore() core.LoanStore {
	if f == nil || f.loanStore == nil {
		return nil
	}
	return f.loanStore
}

func (f *RepositoryFactory) PaymentStore() core.PaymentStore {
	if f == nil || f.paymentStore == nil {
		return nil
	}
	return f.paymentStore
}

func (f *RepositoryFactory) OutboxStore() core.OutboxStore {
	if f == nil || f.outboxStore == nil {
		return nil
	}
	return f.outboxStore
}

func (f *RepositoryFactory) SQLOutboxStore() *OutboxStore {
	if f == nil {
		return nil
	}
	return f.outboxStore
}

func (f *RepositoryFactory) NotificationDispatchStore() *NotificationDispatchStore {
	if f == nil {
		return nil
	}
	return f.notificationDispatchStore
}

func (f *RepositoryFactory) SequenceStore() *CodeSequenceStore {
	if f == nil {
		return nil
	}
	return f.codeSequenceStore
}

func (f *RepositoryFactory) initStores() error {
	transactor, err := NewTransactor(f.db)
	if err != nil {
		return err
	}
	f.transactor = transactor
	employeeStore, err := NewEmployeeStore(f.db)
	if err != nil {
		return err
	}
	f.employeeStore = employeeStore
	guarantorStore, err := NewGuarantorStore(f.db)
	if err != nil {
		return err
	}
	f.guarantorStore = guarantorStore
	grantTypeStore, err := NewGrantTypeStore(f.db)
	if err != nil {
		return err
	}
	f.grantTypeStore = grantTypeStore
	codeSequenceStore, err := NewCodeSequenceStore(f.db)
	if err != nil {
		return err
	}
	f.codeSequenceStore = codeSequenceStore
	loanStore, err := NewLoanStore(f.db)
	if err != nil {
		return err
	}
	f.loanStore = loanStore
	paymentStore, err := NewPaymentStore(f.db)
	if err != nil {
		return err
	}
	f.paymentStore = paymentStore
	outboxStore, err := NewOutboxStore(f.db)
	if err != nil {
		return err
	}
	f.outboxStore = outboxStore
	notificationDispatchStore, err := NewNotificationDispatchStore(f.db)
	if err != nil {
		return err
	}
	f.notificationDispatchStore = notificationDispatchStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
