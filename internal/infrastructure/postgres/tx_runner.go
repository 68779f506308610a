package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/kardex-fifo/internal/application/costing"
)

var _ costing.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción READ COMMITTED, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Los grupos no comparten filas, así que no hace falta un aislamiento mayor.
func (r *TxRunner) Run(ctx context.Context, fn func(repos costing.Repositories) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NewRepositories arma el conjunto de repositorios sobre un pool o una tx.
func NewRepositories(q Querier) costing.Repositories {
	return costing.Repositories{
		Movements:     NewMovementRepository(q),
		Ledger:        NewLedgerRepository(q),
		Matching:      NewMatchingRepository(q),
		Balances:      NewBalanceRepository(q),
		DailyBalances: NewDailyBalanceRepository(q),
	}
}
