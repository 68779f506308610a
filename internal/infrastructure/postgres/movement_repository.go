package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/jhoicas/kardex-fifo/internal/domain"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
	"github.com/jhoicas/kardex-fifo/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementa repository.MovementRepository con PostgreSQL.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el repositorio sobre un pool o una tx.
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// pendingQuery selecciona los movimientos FIFO sin costear en orden de procesamiento.
func pendingQuery() squirrel.SelectBuilder {
	return psql.Select(movementCols...).
		From("movements").
		Where(squirrel.Eq{
			"accounting_type": []string{string(entity.AccountingInflow), string(entity.AccountingOutflow)},
			"costed":          false,
			"for_review":      false,
			"ignored":         false,
		}).
		OrderBy(
			"entity_id", "custodian_id", "instrument_id", "account_id", "date",
			"CASE WHEN is_initial_balance THEN 0 WHEN accounting_type = 'INFLOW' THEN 1 ELSE 2 END",
			"id",
		)
}

func (r *MovementRepo) ListPending(ctx context.Context, limit int) ([]*entity.Movement, error) {
	qb := pendingQuery()
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return r.list(ctx, qb)
}

func (r *MovementRepo) ListPendingByGroup(ctx context.Context, key entity.GroupKey) ([]*entity.Movement, error) {
	return r.list(ctx, pendingQuery().Where(groupEq(key)))
}

func (r *MovementRepo) list(ctx context.Context, qb squirrel.SelectBuilder) ([]*entity.Movement, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list pending: %w", err)
	}
	var rows []movementRow
	if err := pgxscan.Select(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("movements list pending: %w", err)
	}
	out := make([]*entity.Movement, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *MovementRepo) CreateAdjustment(ctx context.Context, m *entity.Movement) error {
	if m == nil {
		return domain.ErrInvalidInput
	}
	query := `
		INSERT INTO movements (entity_id, custodian_id, instrument_id, account_id, date, accounting_type,
			quantity, price, commission, charges, tax, is_initial_balance, auto_adjustment,
			costed, for_review, ignored, review_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13, FALSE, FALSE, '', NOW())
		RETURNING id, updated_at`
	args := append(groupValues(m.GroupKey),
		m.Date, string(m.Type), m.Quantity, m.Price, m.Commission, m.Charges, m.Tax, m.IsInitialBalance, m.Costed)
	if err := r.q.QueryRow(ctx, query, args...).Scan(&m.ID, &m.UpdatedAt); err != nil {
		return wrapWriteErr("movements create adjustment", err)
	}
	m.AutoAdjustment = true
	return nil
}

func (r *MovementRepo) MarkCosted(ctx context.Context, id int64) error {
	query := `UPDATE movements SET costed = TRUE, for_review = FALSE, review_reason = '', updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, "movements mark costed", query, id)
}

func (r *MovementRepo) MarkForReview(ctx context.Context, id int64, reason string) error {
	query := `UPDATE movements SET for_review = TRUE, review_reason = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, "movements mark for review", query, id, reason)
}

func (r *MovementRepo) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
