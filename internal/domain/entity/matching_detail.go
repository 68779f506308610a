package entity

import "github.com/shopspring/decimal"

// MatchingDetail traza qué entrada financió qué salida (auditoría FIFO).
type MatchingDetail struct {
	ID                int64
	InflowMovementID  int64
	OutflowMovementID int64
	InflowEntryID     int64
	OutflowEntryID    int64
	GroupKey          GroupKey
	Quantity          decimal.Decimal
	PartialCost       decimal.Decimal
}
