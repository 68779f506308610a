package costing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// Lot es una vista en memoria sobre una línea de entrada del kardex.
// Es un valor: consumirlo devuelve un nuevo Lot y la escritura pendiente, nunca muta el original.
type Lot struct {
	EntryID    int64
	MovementID int64
	Date       time.Time
	UnitCost   decimal.Decimal
	Available  decimal.Decimal
}

// LotFromEntry envuelve una línea de entrada del kardex.
func LotFromEntry(e *entity.LedgerEntry) Lot {
	return Lot{
		EntryID:    e.ID,
		MovementID: e.MovementID,
		Date:       e.Date,
		UnitCost:   e.UnitCost,
		Available:  e.AvailableQuantity,
	}
}

// LotUpdate es la escritura pendiente sobre la línea de origen del lote.
type LotUpdate struct {
	EntryID   int64
	Available decimal.Decimal
}

// Consumption describe cuánto de un lote tomó una salida y a qué costo.
type Consumption struct {
	Lot         Lot // estado del lote después del consumo
	Quantity    decimal.Decimal
	PartialCost decimal.Decimal
	Update      LotUpdate
}

// Exhausted indica si el lote ya no tiene cantidad disponible.
func (l Lot) Exhausted() bool {
	return !l.Available.IsPositive()
}

// Consume toma min(cantidad, disponible) del lote.
func (l Lot) Consume(quantity decimal.Decimal) (Lot, Consumption) {
	consumed := decimal.Min(quantity, l.Available)
	if consumed.IsNegative() {
		consumed = decimal.Zero
	}
	next := l
	next.Available = l.Available.Sub(consumed)
	return next, Consumption{
		Lot:         next,
		Quantity:    consumed,
		PartialCost: TotalCost(consumed, l.UnitCost),
		Update:      LotUpdate{EntryID: l.EntryID, Available: next.Available},
	}
}
