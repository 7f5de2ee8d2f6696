// Package service implements the rental engine and the catalog operations
// around it. Every mutation runs in one store transaction that is retried on
// transient storage conflicts; business rules are decided inside the
// transaction after the rows they depend on are locked.
package service

import (
	"context"
	"errors"
	"log/slog"

	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/retry"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

// BookIndexer keeps the catalog search index in step with committed
// changes. Implementations must not fail the caller; SearchService logs.
type BookIndexer interface {
	IndexBook(ctx context.Context, serial int64)
	RemoveBook(ctx context.Context, serial int64)
}

type noopIndexer struct{}

func (noopIndexer) IndexBook(context.Context, int64)  {}
func (noopIndexer) RemoveBook(context.Context, int64) {}

// txRunner runs transactional work under a retry policy.
type txRunner struct {
	store  store.Store
	policy *retry.Policy
}

func newTxRunner(st store.Store, policy *retry.Policy) txRunner {
	if policy == nil {
		policy = retry.Default()
	}
	return txRunner{store: st, policy: policy}
}

// inTx runs fn in a transaction, re-running it from scratch when the store
// reports a transient conflict. fn must not keep state between attempts.
func (r txRunner) inTx(ctx context.Context, fn func(q store.Queries) error) error {
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		return r.store.WithTx(ctx, fn)
	})
	if errors.Is(err, store.ErrTransient) {
		return domainerrors.Wrap(err, domainerrors.CodeConflict, "the operation raced with a concurrent update, try again")
	}
	return err
}

// storeErr translates a store error into a domain error naming what. Domain
// errors, transient conflicts and context errors pass through unchanged.
func storeErr(err error, what string) error {
	var domainErr *domainerrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, store.ErrTransient),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFoundf("%s not found", what)
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.AlreadyExistsf("%s already exists", what).WithCause(err)
	case errors.Is(err, store.ErrConflict):
		return domainerrors.Conflictf("%s is still referenced", what).WithCause(err)
	default:
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "storage failure on %s", what)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// logRejection records a business rule failure at debug level and passes
// it through.
func logRejection(logger *slog.Logger, op string, err error, args ...any) error {
	if domainerrors.IsBusiness(err) {
		logger.Debug(op+" rejected", append(args, "error", err)...)
	} else if err != nil {
		logger.Error(op+" failed", append(args, "error", err)...)
	}
	return err
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, store.ErrAlreadyExists)
}

// pageErr translates listing errors; a malformed cursor is a validation
// failure.
func pageErr(err error, what string) error {
	if errors.Is(err, store.ErrInvalidCursor) {
		return domainerrors.Validation("invalid pagination cursor").WithCause(err)
	}
	return storeErr(err, what)
}
