package costing

import (
	"time"

	"github.com/shopspring/decimal"

	domcosting "github.com/jhoicas/kardex-fifo/internal/domain/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// inflowContext reúne lo necesario para construir la línea de una entrada.
type inflowContext struct {
	Movement *entity.Movement
	Balance  domcosting.Balance // saldo previo
}

// outflowContext reúne lo necesario para construir la línea de un consumo parcial.
type outflowContext struct {
	Movement    *entity.Movement
	Consumption domcosting.Consumption
	Balance     domcosting.Balance // saldo previo a este consumo parcial
}

// LedgerFactory construye líneas de kardex aplicando las fórmulas de costo y la política de redondeo.
type LedgerFactory struct {
	now func() time.Time
}

// NewLedgerFactory construye la fábrica con el reloj del sistema.
func NewLedgerFactory() *LedgerFactory {
	return &LedgerFactory{now: time.Now}
}

// newInflowEntry devuelve la línea de entrada y el saldo posterior.
// El disponible de la línea es la cantidad completa recibida.
func (f *LedgerFactory) newInflowEntry(c inflowContext) (*entity.LedgerEntry, domcosting.Balance) {
	m := c.Movement
	unitCost := domcosting.InflowUnitCost(m.Quantity, m.Price, m.Fees())
	totalCost := domcosting.TotalCost(m.Quantity, unitCost)
	after := c.Balance.Add(m.Quantity, totalCost)

	return &entity.LedgerEntry{
		MovementID:        m.ID,
		GroupKey:          m.GroupKey,
		Date:              entity.Day(m.Date),
		Type:              entity.EntryTypeInflow,
		Quantity:          m.Quantity,
		UnitCost:          unitCost,
		TotalCost:         totalCost,
		BalanceQuantity:   after.Quantity,
		BalanceValue:      after.Value,
		AvailableQuantity: m.Quantity,
		CreatedAt:         f.now(),
	}, after
}

// newOutflowEntry devuelve la línea de un consumo parcial (una por lote tocado) y el saldo posterior.
func (f *LedgerFactory) newOutflowEntry(c outflowContext) (*entity.LedgerEntry, domcosting.Balance) {
	m := c.Movement
	consumed := c.Consumption.Quantity
	cost := c.Consumption.PartialCost
	after := c.Balance.Sub(consumed, cost)

	return &entity.LedgerEntry{
		MovementID:        m.ID,
		GroupKey:          m.GroupKey,
		Date:              entity.Day(m.Date),
		Type:              entity.EntryTypeOutflow,
		Quantity:          consumed,
		UnitCost:          domcosting.UnitCostOf(cost, consumed),
		TotalCost:         cost,
		BalanceQuantity:   after.Quantity,
		BalanceValue:      after.Value,
		AvailableQuantity: decimal.Zero,
		CreatedAt:         f.now(),
	}, after
}
