package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/kardex-fifo/internal/domain"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
	"github.com/jhoicas/kardex-fifo/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo implementa repository.LedgerRepository con PostgreSQL.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el repositorio del kardex.
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

func (r *LedgerRepo) Create(ctx context.Context, e *entity.LedgerEntry) error {
	if e == nil {
		return domain.ErrInvalidInput
	}
	query, args, err := psql.Insert("ledger_entries").
		Columns(columns("movement_id", "date", "entry_type", "quantity", "unit_cost", "total_cost",
			"balance_quantity", "balance_value", "available_quantity")...).
		Values(append(groupValues(e.GroupKey),
			e.MovementID, e.Date, e.Type, e.Quantity, e.UnitCost, e.TotalCost,
			e.BalanceQuantity, e.BalanceValue, e.AvailableQuantity)...).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build ledger insert: %w", err)
	}
	if err := r.q.QueryRow(ctx, query, args...).Scan(&e.ID, &e.CreatedAt); err != nil {
		return wrapWriteErr("ledger create", err)
	}
	return nil
}

func (r *LedgerRepo) LatestBefore(ctx context.Context, key entity.GroupKey, date time.Time) (*entity.LedgerEntry, error) {
	return r.one(ctx, r.byGroup(key).Where(squirrel.Lt{"date": date}))
}

func (r *LedgerRepo) Latest(ctx context.Context, key entity.GroupKey) (*entity.LedgerEntry, error) {
	return r.one(ctx, r.byGroup(key))
}

func (r *LedgerRepo) OpenLots(ctx context.Context, key entity.GroupKey, before time.Time) ([]*entity.LedgerEntry, error) {
	return r.list(ctx, psql.Select(ledgerCols...).
		From("ledger_entries").
		Where(groupEq(key)).
		Where(squirrel.Eq{"entry_type": entity.EntryTypeInflow}).
		Where(squirrel.Gt{"available_quantity": 0}).
		Where(squirrel.Lt{"date": before}).
		OrderBy("date", "id"))
}

func (r *LedgerRepo) UpdateAvailable(ctx context.Context, entryID int64, available decimal.Decimal) error {
	query := `UPDATE ledger_entries SET available_quantity = $2 WHERE id = $1 AND entry_type = 'INFLOW'`
	tag, err := r.q.Exec(ctx, query, entryID, available)
	if err != nil {
		return fmt.Errorf("ledger update available: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger update available %d: %w", entryID, domain.ErrNotFound)
	}
	return nil
}

func (r *LedgerRepo) ListBetween(ctx context.Context, key entity.GroupKey, from, to time.Time) ([]*entity.LedgerEntry, error) {
	return r.list(ctx, psql.Select(ledgerCols...).
		From("ledger_entries").
		Where(groupEq(key)).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy("date", "id"))
}

// byGroup devuelve la consulta de la última línea del grupo por (fecha, id).
func (r *LedgerRepo) byGroup(key entity.GroupKey) squirrel.SelectBuilder {
	return psql.Select(ledgerCols...).
		From("ledger_entries").
		Where(groupEq(key)).
		OrderBy("date DESC", "id DESC").
		Limit(1)
}

func (r *LedgerRepo) one(ctx context.Context, qb squirrel.SelectBuilder) (*entity.LedgerEntry, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}
	var row ledgerRow
	if err := pgxscan.Get(ctx, r.q, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger get: %w", err)
	}
	return row.toEntity(), nil
}

func (r *LedgerRepo) list(ctx context.Context, qb squirrel.SelectBuilder) ([]*entity.LedgerEntry, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}
	var rows []ledgerRow
	if err := pgxscan.Select(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	out := make([]*entity.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}
