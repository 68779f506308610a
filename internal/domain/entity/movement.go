package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountingType clasifica un movimiento según su efecto contable.
type AccountingType string

// Tipos contables de movimiento.
const (
	AccountingInflow    AccountingType = "INFLOW"     // adquisición (aumenta la posición)
	AccountingOutflow   AccountingType = "OUTFLOW"    // disposición (disminuye la posición)
	AccountingCharge    AccountingType = "CHARGE"     // cargo sin efecto FIFO
	AccountingDividend  AccountingType = "DIVIDEND"   // dividendo
	AccountingReturn    AccountingType = "RETURN"     // rendimiento
	AccountingNonCosted AccountingType = "NON_COSTED" // excluido del costeo
)

// IsFIFO indica si el tipo participa del emparejamiento FIFO.
func (t AccountingType) IsFIFO() bool {
	return t == AccountingInflow || t == AccountingOutflow
}

// Movement representa una transacción validada por ingesta, pendiente o ya costeada.
// Solo el motor de costeo modifica las banderas (Costed, ForReview).
type Movement struct {
	ID               int64
	GroupKey         GroupKey
	Date             time.Time // granularidad de día (medianoche UTC)
	Type             AccountingType
	Quantity         decimal.Decimal
	Price            decimal.Decimal
	Commission       decimal.Decimal
	Charges          decimal.Decimal // otros gastos
	Tax              decimal.Decimal
	IsInitialBalance bool
	AutoAdjustment   bool // entrada sintetizada por ajuste de tolerancia

	Costed       bool
	ForReview    bool
	Ignored      bool
	ReviewReason string
	UpdatedAt    time.Time
}

// Fees suma comisión, otros gastos e impuestos.
func (m *Movement) Fees() decimal.Decimal {
	return m.Commission.Add(m.Charges).Add(m.Tax)
}

// Day normaliza un instante a medianoche UTC del mismo día calendario.
func Day(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
