package repository

import (
	"context"

	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// MovementRepository define el puerto de persistencia de movimientos para el motor de costeo.
// La ingesta (fuera de este módulo) crea los movimientos; el motor solo cambia sus banderas.
type MovementRepository interface {
	// ListPending devuelve movimientos INFLOW/OUTFLOW no costeados, no marcados para revisión y no ignorados,
	// ordenados por grupo, fecha, saldo inicial primero, entrada antes que salida e id. limit <= 0 = sin límite.
	ListPending(ctx context.Context, limit int) ([]*entity.Movement, error)
	// ListPendingByGroup es ListPending restringido a un grupo.
	ListPendingByGroup(ctx context.Context, key entity.GroupKey) ([]*entity.Movement, error)
	// CreateAdjustment persiste una entrada sintetizada por ajuste de tolerancia y asigna su ID.
	CreateAdjustment(ctx context.Context, m *entity.Movement) error
	MarkCosted(ctx context.Context, id int64) error
	MarkForReview(ctx context.Context, id int64, reason string) error
}
