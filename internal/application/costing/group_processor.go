package costing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/kardex-fifo/internal/domain"
	domcosting "github.com/jhoicas/kardex-fifo/internal/domain/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// GroupResult resume la corrida de un grupo.
type GroupResult struct {
	Key         entity.GroupKey
	Processed   int // movimientos costeados y confirmados
	Failed      int // movimientos marcados para revisión
	Reverted    int // costeados antes del fallo y revertidos (modo atómico); quedan pendientes
	Adjustments int
	Snapshots   int
	From, To    time.Time
	Err         error
}

// Succeeded indica si el grupo terminó sin fallos.
func (r GroupResult) Succeeded() bool { return r.Err == nil }

// track acumula un movimiento costeado y extiende el rango de fechas procesado.
func (r *GroupResult) track(m *entity.Movement, out domcosting.Result) {
	r.Processed++
	r.Adjustments += out.Adjustments
	day := entity.Day(m.Date)
	if r.From.IsZero() || day.Before(r.From) {
		r.From = day
	}
	if day.After(r.To) {
		r.To = day
	}
}

// GroupProcessor procesa secuencialmente los movimientos de un grupo, en el orden recibido.
type GroupProcessor struct {
	tx         TxRunner
	inflow     *InflowHandler
	outflow    *OutflowHandler
	reconciler *DailyReconciler
	atomic     bool
}

// NewGroupProcessor construye el procesador. Con atomic=true toda la corrida del grupo es una sola
// transacción: si el grupo falla no queda nada escrito salvo las marcas de revisión. Con atomic=false
// cada movimiento se confirma en su propia transacción.
func NewGroupProcessor(tx TxRunner, inflow *InflowHandler, outflow *OutflowHandler, reconciler *DailyReconciler, atomic bool) *GroupProcessor {
	return &GroupProcessor{tx: tx, inflow: inflow, outflow: outflow, reconciler: reconciler, atomic: atomic}
}

// Process costea los movimientos del grupo. Los fallos quedan en GroupResult.Err, nunca se propagan.
func (p *GroupProcessor) Process(ctx context.Context, key entity.GroupKey, movements []*entity.Movement) GroupResult {
	log := zerolog.Ctx(ctx).With().Str("group", key.String()).Logger()
	ctx = log.WithContext(ctx)

	if len(movements) == 0 {
		return GroupResult{Key: key}
	}

	var res GroupResult
	if p.atomic {
		res = p.processAtomic(ctx, key, movements)
	} else {
		res = p.processEach(ctx, key, movements)
	}

	if res.Err != nil {
		log.Error().Err(res.Err).
			Int("processed", res.Processed).
			Int("failed", res.Failed).
			Int("reverted", res.Reverted).
			Msg("grupo con fallos; movimientos marcados para revisión")
	} else {
		log.Info().
			Int("processed", res.Processed).
			Int("adjustments", res.Adjustments).
			Int("snapshots", res.Snapshots).
			Msg("grupo costeado")
	}
	return res
}

// processAtomic corre el grupo completo en una transacción. Ante un fallo se revierte todo y los
// movimientos desde el fallido en adelante se marcan para revisión en otra transacción.
func (p *GroupProcessor) processAtomic(ctx context.Context, key entity.GroupKey, movements []*entity.Movement) GroupResult {
	var res GroupResult
	failedAt := 0
	err := p.tx.Run(ctx, func(repos Repositories) error {
		res = GroupResult{Key: key}
		failedAt = 0
		state, err := p.initState(ctx, repos, key, movements[0])
		if err != nil {
			return err
		}
		for i, m := range movements {
			out := p.apply(ctx, repos, m, state)
			if !out.OK() {
				failedAt = i
				return out.Err(key, m.ID)
			}
			state = out.State
			res.track(m, out)
		}
		// Un fallo al cerrar el grupo deja pendiente (y en revisión) el grupo entero.
		failedAt = 0
		return p.finalize(ctx, repos, key, state, &res)
	})
	if err == nil {
		return res
	}

	// La transacción se revirtió: nada de lo costeado quedó confirmado.
	res.Err = err
	res.Reverted = res.Processed
	res.Processed = 0
	res.Adjustments = 0
	res.Snapshots = 0
	res.Failed = p.markForReview(ctx, movements[failedAt:], err)
	return res
}

// processEach confirma cada movimiento en su propia transacción. Las escrituras del movimiento que
// falla se revierten completas; las de los anteriores quedan confirmadas y los saldos no se actualizan.
func (p *GroupProcessor) processEach(ctx context.Context, key entity.GroupKey, movements []*entity.Movement) GroupResult {
	res := GroupResult{Key: key}

	var state domcosting.State
	err := p.tx.Run(ctx, func(repos Repositories) error {
		var err error
		state, err = p.initState(ctx, repos, key, movements[0])
		return err
	})
	if err != nil {
		res.Err = err
		res.Failed = p.markForReview(ctx, movements, err)
		return res
	}

	for i, m := range movements {
		var out domcosting.Result
		err := p.tx.Run(ctx, func(repos Repositories) error {
			out = p.apply(ctx, repos, m, state)
			if !out.OK() {
				return out.Err(key, m.ID)
			}
			return nil
		})
		if err != nil {
			res.Err = err
			res.Failed = p.markForReview(ctx, movements[i:], err)
			return res
		}
		state = out.State
		res.track(m, out)
	}

	closing := res
	err = p.tx.Run(ctx, func(repos Repositories) error {
		closing = res
		return p.finalize(ctx, repos, key, state, &closing)
	})
	if err != nil {
		// Los movimientos ya están costeados; el consolidado queda desactualizado hasta la próxima corrida del grupo.
		res.Err = err
		return res
	}
	return closing
}

// apply costea un movimiento y lo marca como costeado, ambos dentro de la transacción de repos.
func (p *GroupProcessor) apply(ctx context.Context, repos Repositories, m *entity.Movement, state domcosting.State) domcosting.Result {
	res := p.dispatch(ctx, repos, m, state)
	if !res.OK() {
		zerolog.Ctx(ctx).Warn().
			Int64("movement_id", m.ID).
			Str("status", res.Status.String()).
			Msg("movimiento no costeado")
		return res
	}
	if err := repos.Movements.MarkCosted(ctx, m.ID); err != nil {
		return domcosting.Unexpected(fmt.Errorf("marcar movimiento costeado: %w", err))
	}
	return res
}

// initState reconstruye saldo y cola FIFO desde el kardex (la fuente de verdad).
func (p *GroupProcessor) initState(ctx context.Context, repos Repositories, key entity.GroupKey, first *entity.Movement) (domcosting.State, error) {
	start := entity.Day(first.Date)
	state := domcosting.State{Balance: domcosting.ZeroBalance()}

	if !first.IsInitialBalance {
		last, err := repos.Ledger.LatestBefore(ctx, key, start)
		if err != nil {
			return state, fmt.Errorf("saldo inicial del grupo %s: %w", key, err)
		}
		if last != nil {
			state.Balance = domcosting.Balance{Quantity: last.BalanceQuantity, Value: last.BalanceValue}
		}
	}

	entries, err := repos.Ledger.OpenLots(ctx, key, start)
	if err != nil {
		return state, fmt.Errorf("lotes abiertos del grupo %s: %w", key, err)
	}
	lots := make([]domcosting.Lot, 0, len(entries))
	for _, e := range entries {
		lots = append(lots, domcosting.LotFromEntry(e))
	}
	state.Queue = domcosting.NewQueue(lots...)
	return state, nil
}

func (p *GroupProcessor) dispatch(ctx context.Context, repos Repositories, m *entity.Movement, state domcosting.State) domcosting.Result {
	switch m.Type {
	case entity.AccountingInflow:
		return p.inflow.Handle(ctx, repos, m, state)
	case entity.AccountingOutflow:
		return p.outflow.Handle(ctx, repos, m, state)
	default:
		return domcosting.Invalid(fmt.Sprintf("tipo contable %q no participa del costeo FIFO", m.Type))
	}
}

// finalize verifica que el saldo corrido coincide con la última línea del kardex, actualiza el
// saldo consolidado y reconcilia los saldos diarios del rango procesado.
func (p *GroupProcessor) finalize(ctx context.Context, repos Repositories, key entity.GroupKey, state domcosting.State, res *GroupResult) error {
	last, err := repos.Ledger.Latest(ctx, key)
	if err != nil {
		return fmt.Errorf("última línea del kardex: %w", err)
	}
	if last != nil {
		tail := domcosting.Balance{Quantity: last.BalanceQuantity, Value: last.BalanceValue}
		if !tail.Equal(state.Balance) {
			// Pasa con movimientos fechados antes de líneas ya costeadas del grupo.
			return fmt.Errorf("saldo corrido %s/%s distinto de la última línea %d del kardex (%s/%s): %w",
				state.Balance.Quantity, state.Balance.Value, last.ID, tail.Quantity, tail.Value, domain.ErrConflict)
		}
	}

	balance := &entity.ConsolidatedBalance{
		GroupKey:    key,
		Quantity:    state.Balance.Quantity,
		TotalCost:   state.Balance.Value,
		AverageCost: domcosting.AverageCost(state.Balance.Value, state.Balance.Quantity),
		LastUpdate:  res.To,
	}
	if err := repos.Balances.Upsert(ctx, balance); err != nil {
		return fmt.Errorf("actualizar saldo consolidado: %w", err)
	}

	n, err := p.reconciler.Reconcile(ctx, repos, key, res.From, res.To)
	if err != nil {
		return fmt.Errorf("reconciliar saldos diarios: %w", err)
	}
	res.Snapshots = n
	return nil
}

// markForReview marca en una transacción propia los movimientos que no se pudieron costear.
// El primero lleva la causa; los siguientes, una referencia a él.
func (p *GroupProcessor) markForReview(ctx context.Context, movements []*entity.Movement, cause error) int {
	if len(movements) == 0 {
		return 0
	}
	err := p.tx.Run(ctx, func(repos Repositories) error {
		reason := cause.Error()
		for i, m := range movements {
			if i == 1 {
				reason = fmt.Sprintf("grupo detenido por el movimiento %d", movements[0].ID)
			}
			if err := repos.Movements.MarkForReview(ctx, m.ID, reason); err != nil {
				return fmt.Errorf("marcar movimiento %d para revisión: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("no se pudieron marcar los movimientos para revisión")
		return 0
	}
	return len(movements)
}
