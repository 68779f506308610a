package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de línea de kardex.
const (
	EntryTypeInflow  = "INFLOW"
	EntryTypeOutflow = "OUTFLOW"
)

// LedgerEntry es una línea de kardex: una entrada, o un consumo parcial de un lote por una salida.
// Inmutable salvo AvailableQuantity en las líneas de entrada, que disminuye con cada consumo.
type LedgerEntry struct {
	ID         int64
	MovementID int64
	GroupKey   GroupKey
	Date       time.Time
	Type       string
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
	TotalCost  decimal.Decimal

	// Saldo acumulado inmediatamente después de esta línea.
	BalanceQuantity decimal.Decimal
	BalanceValue    decimal.Decimal

	// Solo significativo en líneas de entrada.
	AvailableQuantity decimal.Decimal
	CreatedAt         time.Time
}

// IsInflow indica si la línea se originó en una entrada (y por tanto es un lote consumible).
func (e *LedgerEntry) IsInflow() bool {
	return e.Type == EntryTypeInflow
}
