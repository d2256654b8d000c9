// Package uow coordinates a transaction with work that must only happen once
// the transaction is durable, such as cache invalidation and change
// notifications after a booking or hierarchy save.
package uow

import (
	"context"

	"github.com/jackc/pgx/v5"

	postgres "github.com/venuepass/venuepass/internal/repository/postgres"
)

// AfterCommit runs after the transaction has committed. Hooks must tolerate
// failure on their own; a hook error cannot roll the commit back.
type AfterCommit func(ctx context.Context)

type UoW struct {
	store *postgres.Store
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside a transaction with the store's default options, then
// fires the hooks fn registered, in registration order.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts is Do with explicit transaction options. Hooks registered by fn
// are dropped when fn errors or the commit fails.
func (u *UoW) DoWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx postgres.DB, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.store.RunTx(ctx, opts, func(ctx context.Context, tx postgres.DB) error {
		return fn(ctx, tx, func(h AfterCommit) {
			if h != nil {
				hooks = append(hooks, h)
			}
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
