package repository

import (
	"context"
	"time"

	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// BalanceRepository mantiene el saldo consolidado (una fila por grupo).
type BalanceRepository interface {
	Upsert(ctx context.Context, b *entity.ConsolidatedBalance) error
	// Get devuelve el saldo del grupo o nil si no existe.
	Get(ctx context.Context, key entity.GroupKey) (*entity.ConsolidatedBalance, error)
}

// DailyBalanceRepository mantiene los saldos de cierre diarios por (fecha, grupo).
type DailyBalanceRepository interface {
	Upsert(ctx context.Context, b *entity.DailyBalance) error
	// LatestBefore devuelve la última foto del grupo con fecha estrictamente anterior a date, o nil.
	LatestBefore(ctx context.Context, key entity.GroupKey, date time.Time) (*entity.DailyBalance, error)
	ListBetween(ctx context.Context, key entity.GroupKey, from, to time.Time) ([]*entity.DailyBalance, error)
}
