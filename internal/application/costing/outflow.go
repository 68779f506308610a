package costing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	domcosting "github.com/jhoicas/kardex-fifo/internal/domain/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// DefaultTolerance es el faltante máximo que se corrige con una entrada automática.
var DefaultTolerance = decimal.RequireFromString("0.5")

// OutflowHandler procesa una disposición consumiendo lotes en orden FIFO.
type OutflowHandler struct {
	factory   *LedgerFactory
	inflow    *InflowHandler
	tolerance decimal.Decimal
}

// NewOutflowHandler construye el manejador de salidas. tolerance <= 0 deshabilita el ajuste automático.
func NewOutflowHandler(factory *LedgerFactory, inflow *InflowHandler, tolerance decimal.Decimal) *OutflowHandler {
	return &OutflowHandler{factory: factory, inflow: inflow, tolerance: tolerance}
}

// Handle aplica la verificación de suficiencia (con ajuste por tolerancia) y luego el consumo FIFO.
func (h *OutflowHandler) Handle(ctx context.Context, repos Repositories, m *entity.Movement, state domcosting.State) domcosting.Result {
	if reason := validateOutflow(m); reason != "" {
		return domcosting.Invalid(reason)
	}
	requested := m.Quantity
	adjustments := 0

	// Paso A: suficiencia.
	if state.Balance.Quantity.LessThan(requested) {
		shortfall := requested.Sub(state.Balance.Quantity)
		if shortfall.Abs().GreaterThan(h.tolerance) {
			return domcosting.Insufficient(requested, state.Balance.Quantity)
		}
		res := h.adjust(ctx, repos, m, shortfall, state)
		if !res.OK() {
			return res
		}
		state = res.State
		adjustments++
	}

	// Paso B: plan FIFO puro; si no alcanza no se escribe nada.
	next, consumptions, missing := state.Queue.Consume(requested)
	if missing.IsPositive() {
		return domcosting.Insufficient(requested, state.Queue.Available())
	}

	balance := state.Balance
	for _, c := range consumptions {
		if err := repos.Ledger.UpdateAvailable(ctx, c.Update.EntryID, c.Update.Available); err != nil {
			return domcosting.Unexpected(fmt.Errorf("actualizar disponible de línea %d: %w", c.Update.EntryID, err))
		}

		var entry *entity.LedgerEntry
		entry, balance = h.factory.newOutflowEntry(outflowContext{Movement: m, Consumption: c, Balance: balance})
		if err := repos.Ledger.Create(ctx, entry); err != nil {
			return domcosting.Unexpected(fmt.Errorf("crear línea de salida: %w", err))
		}

		detail := &entity.MatchingDetail{
			InflowMovementID:  c.Lot.MovementID,
			OutflowMovementID: m.ID,
			InflowEntryID:     c.Lot.EntryID,
			OutflowEntryID:    entry.ID,
			GroupKey:          m.GroupKey,
			Quantity:          c.Quantity,
			PartialCost:       c.PartialCost,
		}
		if err := repos.Matching.Create(ctx, detail); err != nil {
			return domcosting.Unexpected(fmt.Errorf("crear detalle de emparejamiento: %w", err))
		}
	}

	zerolog.Ctx(ctx).Debug().
		Int64("movement_id", m.ID).
		Int("lots", len(consumptions)).
		Str("quantity", requested.String()).
		Str("cost", state.Balance.Value.Sub(balance.Value).String()).
		Msg("salida costeada")

	res := domcosting.Success(domcosting.State{Balance: balance, Queue: next})
	res.Adjustments = adjustments
	return res
}

// adjust sintetiza y procesa la entrada automática que cubre el faltante, al precio de la salida.
func (h *OutflowHandler) adjust(ctx context.Context, repos Repositories, out *entity.Movement, shortfall decimal.Decimal, state domcosting.State) domcosting.Result {
	adj := &entity.Movement{
		GroupKey:       out.GroupKey,
		Date:           entity.Day(out.Date),
		Type:           entity.AccountingInflow,
		Quantity:       shortfall,
		Price:          out.Price,
		Commission:     decimal.Zero,
		Charges:        decimal.Zero,
		Tax:            decimal.Zero,
		AutoAdjustment: true,
		Costed:         true,
	}
	if err := repos.Movements.CreateAdjustment(ctx, adj); err != nil {
		return domcosting.Unexpected(fmt.Errorf("crear ajuste de tolerancia: %w", err))
	}

	res := h.inflow.Handle(ctx, repos, adj, state)
	if !res.OK() {
		return res
	}

	zerolog.Ctx(ctx).Warn().
		Int64("movement_id", out.ID).
		Int64("adjustment_id", adj.ID).
		Str("shortfall", shortfall.String()).
		Str("price", out.Price.String()).
		Str("tolerance", h.tolerance.String()).
		Msg("tolerance adjustment applied")
	return res
}

func validateOutflow(m *entity.Movement) string {
	switch {
	case m == nil:
		return "movimiento nulo"
	case m.Date.IsZero():
		return "fecha requerida"
	case !m.Quantity.IsPositive():
		return fmt.Sprintf("cantidad debe ser positiva: %s", m.Quantity)
	case m.Price.IsNegative():
		return fmt.Sprintf("precio no puede ser negativo: %s", m.Price)
	}
	return ""
}
