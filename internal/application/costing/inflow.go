package costing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	domcosting "github.com/jhoicas/kardex-fifo/internal/domain/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// InflowHandler procesa una adquisición: crea la línea de kardex y encola un lote consumible.
type InflowHandler struct {
	factory *LedgerFactory
}

// NewInflowHandler construye el manejador de entradas.
func NewInflowHandler(factory *LedgerFactory) *InflowHandler {
	return &InflowHandler{factory: factory}
}

// Handle valida la entrada antes de cualquier escritura, persiste su línea y devuelve el nuevo estado.
func (h *InflowHandler) Handle(ctx context.Context, repos Repositories, m *entity.Movement, state domcosting.State) domcosting.Result {
	if reason := validateInflow(m); reason != "" {
		return domcosting.Invalid(reason)
	}

	entry, after := h.factory.newInflowEntry(inflowContext{Movement: m, Balance: state.Balance})
	if err := repos.Ledger.Create(ctx, entry); err != nil {
		return domcosting.Unexpected(fmt.Errorf("crear línea de entrada: %w", err))
	}

	zerolog.Ctx(ctx).Debug().
		Int64("movement_id", m.ID).
		Int64("entry_id", entry.ID).
		Str("quantity", entry.Quantity.String()).
		Str("unit_cost", entry.UnitCost.String()).
		Msg("entrada costeada")

	return domcosting.Success(domcosting.State{
		Balance: after,
		Queue:   state.Queue.Push(domcosting.LotFromEntry(entry)),
	})
}

// validateInflow devuelve el motivo de rechazo o "" si la entrada es válida.
func validateInflow(m *entity.Movement) string {
	switch {
	case m == nil:
		return "movimiento nulo"
	case m.Date.IsZero():
		return "fecha requerida"
	case !m.Quantity.IsPositive():
		return fmt.Sprintf("cantidad debe ser positiva: %s", m.Quantity)
	case m.Price.IsNegative():
		return fmt.Sprintf("precio no puede ser negativo: %s", m.Price)
	case m.Commission.IsNegative(), m.Charges.IsNegative(), m.Tax.IsNegative():
		return "comisión, gastos e impuestos no pueden ser negativos"
	}
	return ""
}
