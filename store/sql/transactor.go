package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-loans/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type txContextKey struct{}

// txScope is what a transaction context carries: the bun transaction and the
// hooks to run once it commits.
type txScope struct {
	tx bun.Tx

	mu          sync.Mutex
	afterCommit []func(context.Context) error
}

func newTxContext(ctx context.Context, tx bun.Tx) (context.Context, *txScope) {
	scope := &txScope{tx: tx}
	return context.WithValue(ctx, txContextKey{}, scope), scope
}

func (s *txScope) runAfterCommit(ctx context.Context) error {
	s.mu.Lock()
	hooks := s.afterCommit
	s.afterCommit = nil
	s.mu.Unlock()
	var errs []error
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Transactor runs units of work on bun transactions. The transaction travels
// in the context so every store call made with that context joins it.
type Transactor struct {
	db *bun.DB
}

func NewTransactor(db *bun.DB) (*Transactor, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &Transactor{db: db}, nil
}

// RunInTx commits when fn returns nil and then runs the hooks registered
// with onCommit. Hooks never run after a rollback.
func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t == nil || t.db == nil {
		return fmt.Errorf("sqlstore: transactor is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: transaction work is required")
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	var scope *txScope
	err := t.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var txCtx context.Context
		txCtx, scope = newTxContext(ctx, tx)
		return fn(txCtx)
	})
	if err != nil {
		return err
	}
	if err := scope.runAfterCommit(ctx); err != nil {
		return fmt.Errorf("sqlstore: after commit: %w", err)
	}
	return nil
}

func scopeFromContext(ctx context.Context) (*txScope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(txContextKey{}).(*txScope)
	return scope, ok && scope != nil
}

func txFromContext(ctx context.Context) (bun.Tx, bool) {
	scope, ok := scopeFromContext(ctx)
	if !ok {
		return bun.Tx{}, false
	}
	return scope.tx, true
}

// onCommit registers fn to run after the transaction carried by ctx commits.
// It reports false when ctx carries no transaction.
func onCommit(ctx context.Context, fn func(context.Context) error) bool {
	scope, ok := scopeFromContext(ctx)
	if !ok || fn == nil {
		return false
	}
	scope.mu.Lock()
	scope.afterCommit = append(scope.afterCommit, fn)
	scope.mu.Unlock()
	return true
}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

func createRecord[T any](ctx context.Context, repo repository.Repository[T], record T) (T, error) {
	if tx, ok := txFromContext(ctx); ok {
		return repo.CreateTx(ctx, tx, record)
	}
	return repo.Create(ctx, record)
}

func notFound(kind string, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlstore: %s %q: %w", kind, id, core.ErrNotFound)
	}
	return err
}

func requireAffected(result sql.Result, kind string, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: %s %q: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	return strings.Contains(text, "unique") || strings.Contains(text, "duplicate")
}

var _ core.Transactor = (*Transactor)(nil)
