package core

import (
	"context"
	"errors"
)

var (
	errTransactorRequired = errors.New("core: transactor is required")
	errWorkRequired       = errors.New("core: unit of work is required")
)

// RunInTransaction runs work inside a transaction opened by tx. The result is
// returned after commit; any failure rolls the transaction back and is
// returned as an *OperationError labelled with label.
func RunInTransaction[R any](
	ctx context.Context,
	tx Transactor,
	label string,
	work func(ctx context.Context) (R, error),
) (R, error) {
	var zero R
	if tx == nil {
		return zero, WrapOperation(label, errTransactorRequired)
	}
	if work == nil {
		return zero, WrapOperation(label, errWorkRequired)
	}

	var result R
	err := tx.RunInTx(ctx, func(ctx context.Context) error {
		out, err := work(ctx)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return zero, WrapOperation(label, err)
	}
	return result, nil
}

// RunWithContext runs work without a transaction and wraps any failure the
// same way RunInTransaction does.
func RunWithContext[R any](
	ctx context.Context,
	label string,
	work func(ctx context.Context) (R, error),
) (R, error) {
	var zero R
	if work == nil {
		return zero, WrapOperation(label, errWorkRequired)
	}
	out, err := work(ctx)
	if err != nil {
		return zero, WrapOperation(label, err)
	}
	return out, nil
}

// NopTransactor runs fn directly. Useful for in-memory stores that have no
// transaction support.
type NopTransactor struct{}

func (NopTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ Transactor = NopTransactor{}
