package costing

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// DailyReconciler completa las fotos de saldo diario en un rango de fechas,
// arrastrando el saldo anterior en los días sin movimiento.
type DailyReconciler struct{}

// NewDailyReconciler construye el reconciliador.
func NewDailyReconciler() *DailyReconciler {
	return &DailyReconciler{}
}

// Reconcile escribe una foto por cada día de [from, to] y devuelve cuántas escribió.
func (r *DailyReconciler) Reconcile(ctx context.Context, repos Repositories, key entity.GroupKey, from, to time.Time) (int, error) {
	from, to = entity.Day(from), entity.Day(to)
	if to.Before(from) {
		return 0, fmt.Errorf("rango inválido: %s > %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	closing := entity.DailyBalance{GroupKey: key}
	prev, err := repos.DailyBalances.LatestBefore(ctx, key, from)
	if err != nil {
		return 0, fmt.Errorf("saldo diario de arrastre: %w", err)
	}
	if prev != nil {
		closing.Quantity, closing.Value = prev.Quantity, prev.Value
	}

	entries, err := repos.Ledger.ListBetween(ctx, key, from, to)
	if err != nil {
		return 0, fmt.Errorf("líneas de kardex del rango: %w", err)
	}
	lastOfDay := make(map[time.Time]*entity.LedgerEntry, len(entries))
	for _, e := range entries {
		day := entity.Day(e.Date)
		if cur, ok := lastOfDay[day]; !ok || e.ID > cur.ID {
			lastOfDay[day] = e
		}
	}

	written := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if e, ok := lastOfDay[day]; ok {
			closing.Quantity, closing.Value = e.BalanceQuantity, e.BalanceValue
		}
		snapshot := closing
		snapshot.Date = day
		if err := repos.DailyBalances.Upsert(ctx, &snapshot); err != nil {
			return written, fmt.Errorf("guardar saldo diario %s: %w", day.Format(time.DateOnly), err)
		}
		written++
	}
	return written, nil
}
