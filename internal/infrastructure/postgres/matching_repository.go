package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/jhoicas/kardex-fifo/internal/domain"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
	"github.com/jhoicas/kardex-fifo/internal/domain/repository"
)

var _ repository.MatchingRepository = (*MatchingRepo)(nil)

// MatchingRepo implementa repository.MatchingRepository con PostgreSQL.
type MatchingRepo struct {
	q Querier
}

// NewMatchingRepository construye el repositorio de emparejamientos.
func NewMatchingRepository(q Querier) *MatchingRepo {
	return &MatchingRepo{q: q}
}

func (r *MatchingRepo) Create(ctx context.Context, d *entity.MatchingDetail) error {
	if d == nil {
		return domain.ErrInvalidInput
	}
	query := `
		INSERT INTO matching_details (entity_id, custodian_id, instrument_id, account_id,
			inflow_movement_id, outflow_movement_id, inflow_entry_id, outflow_entry_id, quantity, partial_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	args := append(groupValues(d.GroupKey),
		d.InflowMovementID, d.OutflowMovementID, d.InflowEntryID, d.OutflowEntryID, d.Quantity, d.PartialCost)
	if err := r.q.QueryRow(ctx, query, args...).Scan(&d.ID); err != nil {
		return wrapWriteErr("matching create", err)
	}
	return nil
}

func (r *MatchingRepo) ListByOutflow(ctx context.Context, outflowMovementID int64) ([]*entity.MatchingDetail, error) {
	query, args, err := psql.Select(matchingCols...).
		From("matching_details").
		Where("outflow_movement_id = ?", outflowMovementID).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build matching query: %w", err)
	}
	var rows []matchingRow
	if err := pgxscan.Select(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("matching list by outflow: %w", err)
	}
	out := make([]*entity.MatchingDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}
