package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/jhoicas/kardex-fifo/internal/domain"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
	"github.com/jhoicas/kardex-fifo/internal/domain/repository"
)

var (
	_ repository.BalanceRepository      = (*BalanceRepo)(nil)
	_ repository.DailyBalanceRepository = (*DailyBalanceRepo)(nil)
)

// BalanceRepo implementa el saldo consolidado por grupo.
type BalanceRepo struct {
	q Querier
}

// NewBalanceRepository construye el repositorio de saldos consolidados.
func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

func (r *BalanceRepo) Upsert(ctx context.Context, b *entity.ConsolidatedBalance) error {
	if b == nil {
		return domain.ErrInvalidInput
	}
	query := `
		INSERT INTO consolidated_balances (entity_id, custodian_id, instrument_id, account_id,
			quantity, total_cost, average_cost, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_id, custodian_id, instrument_id, account_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			total_cost = EXCLUDED.total_cost,
			average_cost = EXCLUDED.average_cost,
			last_update = EXCLUDED.last_update`
	args := append(groupValues(b.GroupKey), b.Quantity, b.TotalCost, b.AverageCost, b.LastUpdate)
	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("balances upsert: %w", err)
	}
	return nil
}

func (r *BalanceRepo) Get(ctx context.Context, key entity.GroupKey) (*entity.ConsolidatedBalance, error) {
	query, args, err := psql.Select(balanceCols...).
		From("consolidated_balances").
		Where(groupEq(key)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build balance query: %w", err)
	}
	var row balanceRow
	if err := pgxscan.Get(ctx, r.q, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("balances get: %w", err)
	}
	return &entity.ConsolidatedBalance{
		GroupKey:    row.key(),
		Quantity:    row.Quantity,
		TotalCost:   row.TotalCost,
		AverageCost: row.AverageCost,
		LastUpdate:  entity.Day(row.LastUpdate),
	}, nil
}

// DailyBalanceRepo implementa las fotos de cierre diarias.
type DailyBalanceRepo struct {
	q Querier
}

// NewDailyBalanceRepository construye el repositorio de saldos diarios.
func NewDailyBalanceRepository(q Querier) *DailyBalanceRepo {
	return &DailyBalanceRepo{q: q}
}

func (r *DailyBalanceRepo) Upsert(ctx context.Context, b *entity.DailyBalance) error {
	if b == nil {
		return domain.ErrInvalidInput
	}
	query := `
		INSERT INTO daily_balances (entity_id, custodian_id, instrument_id, account_id, date, quantity, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date, entity_id, custodian_id, instrument_id, account_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			value = EXCLUDED.value`
	args := append(groupValues(b.GroupKey), b.Date, b.Quantity, b.Value)
	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("daily balances upsert: %w", err)
	}
	return nil
}

func (r *DailyBalanceRepo) LatestBefore(ctx context.Context, key entity.GroupKey, date time.Time) (*entity.DailyBalance, error) {
	query, args, err := psql.Select(dailyCols...).
		From("daily_balances").
		Where(groupEq(key)).
		Where(squirrel.Lt{"date": date}).
		OrderBy("date DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build daily balance query: %w", err)
	}
	var row dailyRow
	if err := pgxscan.Get(ctx, r.q, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("daily balances latest before: %w", err)
	}
	return row.toEntity(), nil
}

func (r *DailyBalanceRepo) ListBetween(ctx context.Context, key entity.GroupKey, from, to time.Time) ([]*entity.DailyBalance, error) {
	query, args, err := psql.Select(dailyCols...).
		From("daily_balances").
		Where(groupEq(key)).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build daily balance query: %w", err)
	}
	var rows []dailyRow
	if err := pgxscan.Select(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("daily balances list: %w", err)
	}
	out := make([]*entity.DailyBalance, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}
