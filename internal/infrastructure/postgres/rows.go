package postgres

import (
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// Columnas de la clave de grupo, comunes a todas las tablas de costeo.
var groupCols = []string{"entity_id", "custodian_id", "instrument_id", "account_id"}

// GroupColumns se embebe en las filas de pgxscan. Exportado: scany no asigna campos de embebidos no exportados.
type GroupColumns struct {
	EntityID     string `db:"entity_id"`
	CustodianID  string `db:"custodian_id"`
	InstrumentID string `db:"instrument_id"`
	AccountID    string `db:"account_id"`
}

func (g GroupColumns) key() entity.GroupKey {
	return entity.GroupKey{
		EntityID:     g.EntityID,
		CustodianID:  g.CustodianID,
		InstrumentID: g.InstrumentID,
		AccountID:    g.AccountID,
	}
}

// groupEq filtra por las cuatro columnas de la clave.
func groupEq(key entity.GroupKey) squirrel.Eq {
	return squirrel.Eq{
		"entity_id":     key.EntityID,
		"custodian_id":  key.CustodianID,
		"instrument_id": key.InstrumentID,
		"account_id":    key.AccountID,
	}
}

func groupValues(key entity.GroupKey) []any {
	return []any{key.EntityID, key.CustodianID, key.InstrumentID, key.AccountID}
}

func columns(cols ...string) []string {
	out := make([]string, 0, len(groupCols)+len(cols))
	out = append(out, groupCols...)
	return append(out, cols...)
}

type movementRow struct {
	GroupColumns
	ID               int64           `db:"id"`
	Date             time.Time       `db:"date"`
	Type             string          `db:"accounting_type"`
	Quantity         decimal.Decimal `db:"quantity"`
	Price            decimal.Decimal `db:"price"`
	Commission       decimal.Decimal `db:"commission"`
	Charges          decimal.Decimal `db:"charges"`
	Tax              decimal.Decimal `db:"tax"`
	IsInitialBalance bool            `db:"is_initial_balance"`
	AutoAdjustment   bool            `db:"auto_adjustment"`
	Costed           bool            `db:"costed"`
	ForReview        bool            `db:"for_review"`
	Ignored          bool            `db:"ignored"`
	ReviewReason     string          `db:"review_reason"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

var movementCols = columns("id", "date", "accounting_type", "quantity", "price", "commission", "charges", "tax",
	"is_initial_balance", "auto_adjustment", "costed", "for_review", "ignored", "review_reason", "updated_at")

func (r movementRow) toEntity() *entity.Movement {
	return &entity.Movement{
		ID:               r.ID,
		GroupKey:         r.key(),
		Date:             entity.Day(r.Date),
		Type:             entity.AccountingType(r.Type),
		Quantity:         r.Quantity,
		Price:            r.Price,
		Commission:       r.Commission,
		Charges:          r.Charges,
		Tax:              r.Tax,
		IsInitialBalance: r.IsInitialBalance,
		AutoAdjustment:   r.AutoAdjustment,
		Costed:           r.Costed,
		ForReview:        r.ForReview,
		Ignored:          r.Ignored,
		ReviewReason:     r.ReviewReason,
		UpdatedAt:        r.UpdatedAt,
	}
}

type ledgerRow struct {
	GroupColumns
	ID                int64           `db:"id"`
	MovementID        int64           `db:"movement_id"`
	Date              time.Time       `db:"date"`
	EntryType         string          `db:"entry_type"`
	Quantity          decimal.Decimal `db:"quantity"`
	UnitCost          decimal.Decimal `db:"unit_cost"`
	TotalCost         decimal.Decimal `db:"total_cost"`
	BalanceQuantity   decimal.Decimal `db:"balance_quantity"`
	BalanceValue      decimal.Decimal `db:"balance_value"`
	AvailableQuantity decimal.Decimal `db:"available_quantity"`
	CreatedAt         time.Time       `db:"created_at"`
}

var ledgerCols = columns("id", "movement_id", "date", "entry_type", "quantity", "unit_cost", "total_cost",
	"balance_quantity", "balance_value", "available_quantity", "created_at")

func (r ledgerRow) toEntity() *entity.LedgerEntry {
	return &entity.LedgerEntry{
		ID:                r.ID,
		MovementID:        r.MovementID,
		GroupKey:          r.key(),
		Date:              entity.Day(r.Date),
		Type:              r.EntryType,
		Quantity:          r.Quantity,
		UnitCost:          r.UnitCost,
		TotalCost:         r.TotalCost,
		BalanceQuantity:   r.BalanceQuantity,
		BalanceValue:      r.BalanceValue,
		AvailableQuantity: r.AvailableQuantity,
		CreatedAt:         r.CreatedAt,
	}
}

type matchingRow struct {
	GroupColumns
	ID                int64           `db:"id"`
	InflowMovementID  int64           `db:"inflow_movement_id"`
	OutflowMovementID int64           `db:"outflow_movement_id"`
	InflowEntryID     int64           `db:"inflow_entry_id"`
	OutflowEntryID    int64           `db:"outflow_entry_id"`
	Quantity          decimal.Decimal `db:"quantity"`
	PartialCost       decimal.Decimal `db:"partial_cost"`
}

var matchingCols = columns("id", "inflow_movement_id", "outflow_movement_id", "inflow_entry_id", "outflow_entry_id",
	"quantity", "partial_cost")

func (r matchingRow) toEntity() *entity.MatchingDetail {
	return &entity.MatchingDetail{
		ID:                r.ID,
		InflowMovementID:  r.InflowMovementID,
		OutflowMovementID: r.OutflowMovementID,
		InflowEntryID:     r.InflowEntryID,
		OutflowEntryID:    r.OutflowEntryID,
		GroupKey:          r.key(),
		Quantity:          r.Quantity,
		PartialCost:       r.PartialCost,
	}
}

type balanceRow struct {
	GroupColumns
	Quantity    decimal.Decimal `db:"quantity"`
	TotalCost   decimal.Decimal `db:"total_cost"`
	AverageCost decimal.Decimal `db:"average_cost"`
	LastUpdate  time.Time       `db:"last_update"`
}

var balanceCols = columns("quantity", "total_cost", "average_cost", "last_update")

type dailyRow struct {
	GroupColumns
	Date     time.Time       `db:"date"`
	Quantity decimal.Decimal `db:"quantity"`
	Value    decimal.Decimal `db:"value"`
}

var dailyCols = columns("date", "quantity", "value")

func (r dailyRow) toEntity() *entity.DailyBalance {
	return &entity.DailyBalance{
		Date:     entity.Day(r.Date),
		GroupKey: r.key(),
		Quantity: r.Quantity,
		Value:    r.Value,
	}
}
