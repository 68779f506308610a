package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConsolidatedBalance es el resumen vigente por grupo (una fila por GroupKey).
type ConsolidatedBalance struct {
	GroupKey    GroupKey
	Quantity    decimal.Decimal
	TotalCost   decimal.Decimal
	AverageCost decimal.Decimal
	LastUpdate  time.Time
}

// DailyBalance es el saldo de cierre de un día para un grupo.
type DailyBalance struct {
	Date     time.Time
	GroupKey GroupKey
	Quantity decimal.Decimal
	Value    decimal.Decimal
}
