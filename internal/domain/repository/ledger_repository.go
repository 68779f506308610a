package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// LedgerRepository define el puerto del kardex. Es de solo inserción salvo AvailableQuantity.
type LedgerRepository interface {
	// Create inserta la línea y asigna su ID (creciente).
	Create(ctx context.Context, e *entity.LedgerEntry) error
	// LatestBefore devuelve la última línea del grupo con fecha estrictamente anterior a date, o nil.
	LatestBefore(ctx context.Context, key entity.GroupKey, date time.Time) (*entity.LedgerEntry, error)
	// Latest devuelve la última línea del grupo por (fecha, id), o nil.
	Latest(ctx context.Context, key entity.GroupKey) (*entity.LedgerEntry, error)
	// OpenLots devuelve las líneas de entrada con disponible > 0 y fecha anterior a before, por (fecha, id).
	OpenLots(ctx context.Context, key entity.GroupKey, before time.Time) ([]*entity.LedgerEntry, error)
	// UpdateAvailable persiste el disponible de una línea de entrada.
	UpdateAvailable(ctx context.Context, entryID int64, available decimal.Decimal) error
	// ListBetween devuelve las líneas del grupo con fecha en [from, to], por (fecha, id).
	ListBetween(ctx context.Context, key entity.GroupKey, from, to time.Time) ([]*entity.LedgerEntry, error)
}

// MatchingRepository persiste el detalle de emparejamiento entrada/salida.
type MatchingRepository interface {
	Create(ctx context.Context, d *entity.MatchingDetail) error
	ListByOutflow(ctx context.Context, outflowMovementID int64) ([]*entity.MatchingDetail, error)
}
