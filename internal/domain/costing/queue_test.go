package costing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/kardex-fifo/internal/domain/costing"
)

var day1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func twoLots() costing.Queue {
	return costing.NewQueue(
		costing.Lot{EntryID: 2, MovementID: 20, Date: day1.AddDate(0, 0, 1), UnitCost: d("20"), Available: d("10")},
		costing.Lot{EntryID: 1, MovementID: 10, Date: day1, UnitCost: d("10"), Available: d("10")},
	)
}

func TestNewQueue_OrdenFechaLuegoID(t *testing.T) {
	q := costing.NewQueue(
		costing.Lot{EntryID: 5, Date: day1, Available: d("1")},
		costing.Lot{EntryID: 3, Date: day1, Available: d("1")},
		costing.Lot{EntryID: 1, Date: day1.AddDate(0, 0, 1), Available: d("1")},
		costing.Lot{EntryID: 9, Date: day1, Available: d("0")},
	)
	lots := q.Lots()
	require.Len(t, lots, 3, "los lotes agotados se descartan")
	assert.Equal(t, []int64{3, 5, 1}, []int64{lots[0].EntryID, lots[1].EntryID, lots[2].EntryID})
}

// TestQueueConsume_FIFO: I1(10@10) e I2(10@20), salida de 15 -> 100 + 100, I2 queda con 5.
func TestQueueConsume_FIFO(t *testing.T) {
	q := twoLots()

	next, consumptions, missing := q.Consume(d("15"))
	require.True(t, missing.IsZero())
	require.Len(t, consumptions, 2)

	assert.Equal(t, int64(10), consumptions[0].Lot.MovementID)
	assert.True(t, consumptions[0].Quantity.Equal(d("10")))
	assert.True(t, consumptions[0].PartialCost.Equal(d("100")))
	assert.True(t, consumptions[0].Update.Available.IsZero())

	assert.Equal(t, int64(20), consumptions[1].Lot.MovementID)
	assert.True(t, consumptions[1].Quantity.Equal(d("5")))
	assert.True(t, consumptions[1].PartialCost.Equal(d("100")))
	assert.True(t, consumptions[1].Update.Available.Equal(d("5")))

	require.Equal(t, 1, next.Len())
	head, _ := next.Peek()
	assert.Equal(t, int64(2), head.EntryID)
	assert.True(t, head.Available.Equal(d("5")))
}

func TestQueueConsume_NoMutaLaOriginal(t *testing.T) {
	q := twoLots()
	_, _, _ = q.Consume(d("12"))

	assert.Equal(t, 2, q.Len())
	assert.True(t, q.Available().Equal(d("20")))
}

func TestQueueConsume_Faltante(t *testing.T) {
	q := twoLots()
	next, consumptions, missing := q.Consume(d("25"))

	assert.True(t, missing.Equal(d("5")))
	assert.Len(t, consumptions, 2)
	assert.Equal(t, 0, next.Len())
}

func TestLotConsume_NuncaNegativo(t *testing.T) {
	lot := costing.Lot{EntryID: 1, UnitCost: d("3"), Available: d("2")}
	next, c := lot.Consume(d("5"))

	assert.True(t, c.Quantity.Equal(d("2")))
	assert.True(t, next.Available.IsZero())
	assert.True(t, next.Exhausted())
	assert.True(t, lot.Available.Equal(d("2")), "el lote original no cambia")
}

func TestQueuePush_IgnoraAgotados(t *testing.T) {
	q := costing.NewQueue()
	q = q.Push(costing.Lot{EntryID: 1, Available: d("0")})
	assert.Equal(t, 0, q.Len())
	q = q.Push(costing.Lot{EntryID: 2, Available: d("1")})
	assert.Equal(t, 1, q.Len())
}
