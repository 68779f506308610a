package costing

import (
	"context"

	"github.com/jhoicas/kardex-fifo/internal/domain/repository"
)

// Repositories agrupa los repositorios atados a una misma transacción.
type Repositories struct {
	Movements     repository.MovementRepository
	Ledger        repository.LedgerRepository
	Matching      repository.MatchingRepository
	Balances      repository.BalanceRepository
	DailyBalances repository.DailyBalanceRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback; si no, Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos Repositories) error) error
}
