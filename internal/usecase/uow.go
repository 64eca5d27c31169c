package usecase

import (
	"context"
	"errors"
	"fmt"
)

// Transact runs fn inside a fresh unit of work. The unit of work commits when fn
// returns nil and rolls back otherwise; the error from fn is returned (joined with
// any rollback failure). A panic in fn rolls back and is re-raised.
func Transact[R any](ctx context.Context, factory UnitOfWorkFactory, fn func(ctx context.Context, uow UnitOfWork) (R, error)) (result R, err error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	uow, err := factory.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin unit of work: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}

		rbErr := uow.Rollback(context.WithoutCancel(ctx))
		if p := recover(); p != nil {
			panic(p)
		}
		if rbErr != nil && err != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	result, err = fn(ctx, uow)
	if err != nil {
		return result, err
	}

	if err = uow.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit unit of work: %w", err)
	}
	committed = true

	return result, nil
}

// transactWithRetry wraps Transact with a Retrier when one is configured.
func transactWithRetry[R any](ctx context.Context, factory UnitOfWorkFactory, retrier Retrier, fn func(ctx context.Context, uow UnitOfWork) (R, error)) (R, error) {
	if retrier == nil {
		return Transact(ctx, factory, fn)
	}

	var result R
	err := retrier.Retry(ctx, func() error {
		var err error
		result, err = Transact(ctx, factory, fn)
		return err
	})

	return result, err
}
