package main

import (
	"context"
	"database/sql"
	"fmt"

	appservice "prereg/internal/application/service"
	dErrors "prereg/pkg/domain-errors"
	txcontext "prereg/pkg/platform/tx"
)

// applicationPostgresTx runs lifecycle transactions on PostgreSQL. The key is
// not needed here: FindByID takes a row lock inside the transaction. The
// service bounds ctx with the store timeout before calling in.
type applicationPostgresTx struct {
	db    *sql.DB
	store appservice.Store
}

func newApplicationPostgresTx(db *sql.DB, store appservice.Store) *applicationPostgresTx {
	return &applicationPostgresTx{db: db, store: store}
}

func (t *applicationPostgresTx) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context, store appservice.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin application tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), t.store); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit application tx: %w", err)
	}
	return nil
}
