package costing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Queue es la cola FIFO de lotes de un grupo, ordenada por (fecha, id de línea).
// Las operaciones devuelven una cola nueva; el slice subyacente nunca se comparte mutado.
type Queue struct {
	lots []Lot
}

// NewQueue construye la cola a partir de lotes ya ordenados; descarta los agotados.
func NewQueue(lots ...Lot) Queue {
	q := Queue{lots: make([]Lot, 0, len(lots))}
	for _, l := range lots {
		if !l.Exhausted() {
			q.lots = append(q.lots, l)
		}
	}
	sort.SliceStable(q.lots, func(i, j int) bool {
		a, b := q.lots[i], q.lots[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.EntryID < b.EntryID
	})
	return q
}

// Len devuelve la cantidad de lotes con disponible.
func (q Queue) Len() int { return len(q.lots) }

// Lots devuelve una copia de los lotes en orden FIFO.
func (q Queue) Lots() []Lot {
	out := make([]Lot, len(q.lots))
	copy(out, q.lots)
	return out
}

// Peek devuelve el lote en la cabeza de la cola.
func (q Queue) Peek() (Lot, bool) {
	if len(q.lots) == 0 {
		return Lot{}, false
	}
	return q.lots[0], true
}

// Push encola un lote al final.
func (q Queue) Push(l Lot) Queue {
	if l.Exhausted() {
		return q
	}
	next := make([]Lot, len(q.lots), len(q.lots)+1)
	copy(next, q.lots)
	return Queue{lots: append(next, l)}
}

// Available suma lo disponible en todos los lotes.
func (q Queue) Available() decimal.Decimal {
	total := decimal.Zero
	for _, l := range q.lots {
		total = total.Add(l.Available)
	}
	return total
}

// Consume planifica el consumo FIFO de quantity. Devuelve la cola resultante, un consumo por
// lote tocado y la cantidad que no pudo cubrirse (cero si la cola alcanzó).
// Es una función pura: si queda faltante, el llamador descarta el plan sin escribir nada.
func (q Queue) Consume(quantity decimal.Decimal) (Queue, []Consumption, decimal.Decimal) {
	next := make([]Lot, len(q.lots))
	copy(next, q.lots)

	var consumptions []Consumption
	remaining := quantity
	for remaining.IsPositive() && len(next) > 0 {
		head, c := next[0].Consume(remaining)
		consumptions = append(consumptions, c)
		remaining = remaining.Sub(c.Quantity)
		if head.Exhausted() {
			next = next[1:]
		} else {
			next[0] = head
		}
	}
	return Queue{lots: next}, consumptions, remaining
}
