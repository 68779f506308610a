package costing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/kardex-fifo/internal/application/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain"
	domcosting "github.com/jhoicas/kardex-fifo/internal/domain/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
	"github.com/jhoicas/kardex-fifo/internal/infrastructure/memory"
)

// TestEngine_FIFOMatching: I1(10@10), I2(10@20) y una salida de 15 -> 100 de I1 + 100 de I2.
func TestEngine_FIFOMatching(t *testing.T) {
	f := newFixture(t, true)
	i1 := f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	i2 := f.store.AddMovement(inflow(groupA, day(2), "10", "20"))
	o1 := f.store.AddMovement(outflow(groupA, day(3), "15", "25"))

	res, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Groups)
	assert.Equal(t, 0, res.GroupsFailed)
	assert.Equal(t, 3, res.Processed)
	assert.NotEmpty(t, res.RunID)

	entries := f.store.Entries(groupA)
	require.Len(t, entries, 4, "dos entradas y una línea de salida por lote tocado")

	assert.Equal(t, entity.EntryTypeOutflow, entries[2].Type)
	assertDec(t, "10", entries[2].Quantity)
	assertDec(t, "100", entries[2].TotalCost)
	assertDec(t, "10", entries[2].UnitCost)
	assertDec(t, "10", entries[2].BalanceQuantity)
	assertDec(t, "200", entries[2].BalanceValue)

	assertDec(t, "5", entries[3].Quantity)
	assertDec(t, "100", entries[3].TotalCost)
	assertDec(t, "20", entries[3].UnitCost)
	assertDec(t, "5", entries[3].BalanceQuantity)
	assertDec(t, "100", entries[3].BalanceValue)

	assertDec(t, "0", entries[0].AvailableQuantity, "I1 agotado")
	assertDec(t, "5", entries[1].AvailableQuantity, "I2 queda con 5")

	details := matchedBy(t, f.store, o1)
	require.Len(t, details, 2)
	assert.Equal(t, i1, details[0].InflowMovementID)
	assert.Equal(t, o1, details[0].OutflowMovementID)
	assertDec(t, "10", details[0].Quantity)
	assertDec(t, "100", details[0].PartialCost)
	assert.Equal(t, i2, details[1].InflowMovementID)
	assertDec(t, "5", details[1].Quantity)
	assertDec(t, "100", details[1].PartialCost)

	total := details[0].PartialCost.Add(details[1].PartialCost)
	assertDec(t, "200", total, "costo realizado")

	bal := f.store.Balance(groupA)
	require.NotNil(t, bal)
	assertDec(t, "5", bal.Quantity)
	assertDec(t, "100", bal.TotalCost)
	assertDec(t, "20", bal.AverageCost)
	assert.Equal(t, day(3), bal.LastUpdate)
	assertReconciled(t, f.store, groupA)

	for _, id := range []int64{i1, i2, o1} {
		m := f.store.Movement(id)
		assert.True(t, m.Costed, "movimiento %d costeado", id)
		assert.False(t, m.ForReview)
	}
}

// TestEngine_AjusteDeTolerancia: salida de 10.3 contra saldo 10 -> entrada automática de 0.3 al precio de la salida.
func TestEngine_AjusteDeTolerancia(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	out := f.store.AddMovement(outflow(groupA, day(2), "10.3", "12"))

	res, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.GroupsFailed)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Adjustments)

	var adj *entity.Movement
	for _, m := range f.store.Movements() {
		if m.AutoAdjustment {
			adj = m
		}
	}
	require.NotNil(t, adj, "debe existir el movimiento de ajuste")
	assert.Equal(t, entity.AccountingInflow, adj.Type)
	assert.True(t, adj.Costed)
	assert.Equal(t, day(2), adj.Date)
	assertDec(t, "0.3", adj.Quantity)
	assertDec(t, "12", adj.Price)

	details := f.store.MatchingDetails()
	require.Len(t, details, 2)
	assert.Equal(t, adj.ID, details[1].InflowMovementID)
	assert.Equal(t, out, details[1].OutflowMovementID)
	assertDec(t, "3.6", details[1].PartialCost)

	bal := f.store.Balance(groupA)
	require.NotNil(t, bal)
	assertDec(t, "0", bal.Quantity)
	assertDec(t, "0", bal.TotalCost)
	assertDec(t, "0", bal.AverageCost)
	assertReconciled(t, f.store, groupA)
}

// TestEngine_FaltanteFueraDeTolerancia: faltante 1.0 > 0.5 -> saldo insuficiente, sin consumir lotes.
func TestEngine_FaltanteFueraDeTolerancia(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	out := f.store.AddMovement(outflow(groupA, day(2), "11", "12"))
	res, err := f.engine.Run(context.Background())
	require.NoError(t, err, "un grupo fallido no es un error de la corrida")
	assert.Equal(t, 1, res.GroupsFailed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.True(t, errors.Is(res.Failures[0].Err, domain.ErrInsufficientBalance))

	var merr *domcosting.MovementError
	require.ErrorAs(t, res.Failures[0].Err, &merr)
	assert.Equal(t, out, merr.MovementID)
	assert.Equal(t, groupA, merr.GroupKey)
	assertDec(t, "11", merr.Result.Requested)
	assertDec(t, "10", merr.Result.Available)

	m := f.store.Movement(out)
	assert.True(t, m.ForReview)
	assert.False(t, m.Costed)
	assert.Contains(t, m.ReviewReason, domain.ErrInsufficientBalance.Error())

	entries := f.store.Entries(groupA)
	require.Len(t, entries, 1, "no se crean líneas de salida")
	assertDec(t, "10", entries[0].AvailableQuantity, "ningún lote consumido")
	assert.Empty(t, f.store.MatchingDetails())
}

// TestEngine_Idempotente: sin pendientes nuevos, una segunda corrida no hace nada.
func TestEngine_Idempotente(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	f.store.AddMovement(outflow(groupA, day(2), "4", "11"))

	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	before := len(f.store.Entries(groupA))

	res, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Groups)
	assert.Equal(t, 0, res.Processed)
	assert.Len(t, f.store.Entries(groupA), before)
}

// TestEngine_AislamientoDeGrupos: el fallo del grupo A no impide costear el grupo B.
func TestEngine_AislamientoDeGrupos(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	f.store.AddMovement(outflow(groupA, day(2), "20", "10"))
	b1 := f.store.AddMovement(inflow(groupB, day(1), "5", "10"))
	b2 := f.store.AddMovement(outflow(groupB, day(2), "2", "10"))

	res, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Groups)
	assert.Equal(t, 1, res.GroupsFailed)
	assert.Equal(t, groupA, res.Failures[0].Key)

	assert.True(t, f.store.Movement(b1).Costed)
	assert.True(t, f.store.Movement(b2).Costed)
	bal := f.store.Balance(groupB)
	require.NotNil(t, bal)
	assertDec(t, "3", bal.Quantity)
	assertDec(t, "30", bal.TotalCost)
	assertReconciled(t, f.store, groupB)
	assert.Nil(t, f.store.Balance(groupA))
}

// TestEngine_InvarianteEntreCorridas: tras varias corridas el consolidado sigue al kardex.
func TestEngine_InvarianteEntreCorridas(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	f.store.AddMovement(outflow(groupA, day(2), "3", "12"))
	_, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assertReconciled(t, f.store, groupA)

	f.store.AddMovement(inflow(groupA, day(4), "5", "14"))
	f.store.AddMovement(outflow(groupA, day(5), "9", "15"))
	res, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assertReconciled(t, f.store, groupA)

	// 7 restantes a 10 + 5 a 14; salen 9 -> 7*10 + 2*14 = 98; quedan 3*14 = 42.
	bal := f.store.Balance(groupA)
	require.NotNil(t, bal)
	assertDec(t, "3", bal.Quantity)
	assertDec(t, "42", bal.TotalCost)
	assertDec(t, "14", bal.AverageCost)
}

func TestEngine_DescartaTiposNoFIFO(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	div := f.store.AddMovement(entity.Movement{GroupKey: groupA, Date: day(1), Type: entity.AccountingDividend, Quantity: d("1"), Price: d("3")})

	res, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	m := f.store.Movement(div)
	assert.False(t, m.Costed, "los dividendos no se costean")
	assert.False(t, m.ForReview)
}

func TestEngine_BatchLimit(t *testing.T) {
	store := memory.NewStore()
	eng := newLimitedEngine(store, 2)

	for i := 1; i <= 3; i++ {
		store.AddMovement(inflow(groupA, day(i), "1", "1"))
	}
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	res, err = eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func newLimitedEngine(store *memory.Store, limit int) *costing.Engine {
	factory := costing.NewLedgerFactory()
	in := costing.NewInflowHandler(factory)
	out := costing.NewOutflowHandler(factory, in, costing.DefaultTolerance)
	proc := costing.NewGroupProcessor(store, in, out, costing.NewDailyReconciler(), true)
	return costing.NewEngine(store, proc, costing.Options{Workers: 2, BatchLimit: limit}, zerolog.Nop())
}

// TestEngine_BatchLimit_NoPartePorDia: el corte del límite cae dentro del día 2 -> el día entero
// queda para la corrida siguiente y la salida encuentra sus lotes.
func TestEngine_BatchLimit_NoPartePorDia(t *testing.T) {
	store := memory.NewStore()
	eng := newLimitedEngine(store, 2)

	store.AddMovement(inflow(groupA, day(1), "10", "10"))
	store.AddMovement(inflow(groupA, day(2), "10", "20"))
	o1 := store.AddMovement(outflow(groupA, day(2), "15", "25"))

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed, "solo el día 1 cabe sin partir el día 2")

	res, err = eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.GroupsFailed)
	assert.Equal(t, 2, res.Processed)

	assert.True(t, store.Movement(o1).Costed)
	assert.Len(t, matchedBy(t, store, o1), 2)
	bal := store.Balance(groupA)
	require.NotNil(t, bal)
	assertDec(t, "5", bal.Quantity)
	assertDec(t, "100", bal.TotalCost)
	assertReconciled(t, store, groupA)
}

// TestEngine_BatchLimit_DiaMayorQueElLimite: si el primer día pendiente no cabe en el límite se procesa completo.
func TestEngine_BatchLimit_DiaMayorQueElLimite(t *testing.T) {
	store := memory.NewStore()
	eng := newLimitedEngine(store, 2)

	store.AddMovement(inflow(groupA, day(1), "10", "10"))
	store.AddMovement(inflow(groupA, day(1), "10", "20"))
	o1 := store.AddMovement(outflow(groupA, day(1), "15", "25"))
	later := store.AddMovement(inflow(groupA, day(2), "1", "1"))

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.GroupsFailed)
	assert.Equal(t, 3, res.Processed)
	assert.True(t, store.Movement(o1).Costed)
	assert.False(t, store.Movement(later).Costed, "el día siguiente queda para otra corrida")
	assertReconciled(t, store, groupA)

	res, err = eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assertReconciled(t, store, groupA)
}

func TestEngine_RunGroup(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	b := f.store.AddMovement(inflow(groupB, day(1), "10", "10"))

	res, err := f.engine.RunGroup(context.Background(), groupA)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, 1, res.Processed)
	assert.False(t, f.store.Movement(b).Costed, "otros grupos no se tocan")
}

func TestEngine_ContextoCancelado(t *testing.T) {
	f := newFixture(t, true)
	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPartition_ConservaOrden(t *testing.T) {
	ms := []*entity.Movement{
		{ID: 3, GroupKey: groupB, Type: entity.AccountingInflow},
		{ID: 1, GroupKey: groupA, Type: entity.AccountingOutflow},
		{ID: 2, GroupKey: groupB, Type: entity.AccountingOutflow},
		{ID: 4, GroupKey: groupA, Type: entity.AccountingCharge},
		{ID: 5, GroupKey: groupA, Type: entity.AccountingInflow, Ignored: true},
		{ID: 6, GroupKey: groupA, Type: entity.AccountingInflow},
	}
	groups, dropped := costing.Partition(ms)

	assert.Equal(t, 2, dropped)
	require.Len(t, groups, 2)
	assert.Equal(t, groupB, groups[0].Key)
	assert.Equal(t, []int64{3, 2}, ids(groups[0].Movements), "no se reordena dentro del grupo")
	assert.Equal(t, groupA, groups[1].Key)
	assert.Equal(t, []int64{1, 6}, ids(groups[1].Movements))
}

func ids(ms []*entity.Movement) []int64 {
	out := make([]int64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
