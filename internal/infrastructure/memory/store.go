// Package memory implementa en memoria los repositorios del costeo y un TxRunner con
// rollback real (registro de deshacer por transacción). Se usa en pruebas y corridas en seco.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/kardex-fifo/internal/application/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
	"github.com/jhoicas/kardex-fifo/internal/domain/repository"
)

var _ costing.TxRunner = (*Store)(nil)

type dailyKey struct {
	Date time.Time
	Key  entity.GroupKey
}

// Store guarda todo el estado del costeo en memoria.
type Store struct {
	mu sync.RWMutex

	movements map[int64]*entity.Movement
	ledger    []*entity.LedgerEntry // ordenado por ID
	matching  []*entity.MatchingDetail
	balances  map[entity.GroupKey]entity.ConsolidatedBalance
	daily     map[dailyKey]entity.DailyBalance

	nextMovementID int64
	nextEntryID    int64
	nextMatchingID int64

	failures map[string]error
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		movements: make(map[int64]*entity.Movement),
		balances:  make(map[entity.GroupKey]entity.ConsolidatedBalance),
		daily:     make(map[dailyKey]entity.DailyBalance),
		failures:  make(map[string]error),
	}
}

// Run ejecuta fn con repositorios atados a una transacción; si fn falla deshace sus escrituras.
func (s *Store) Run(ctx context.Context, fn func(repos costing.Repositories) error) error {
	tx := &tx{store: s}
	repos := costing.Repositories{
		Movements:     (*movementRepo)(tx),
		Ledger:        (*ledgerRepo)(tx),
		Matching:      (*matchingRepo)(tx),
		Balances:      (*balanceRepo)(tx),
		DailyBalances: (*dailyRepo)(tx),
	}
	if err := fn(repos); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// FailOn hace que la próxima operación op ("ledger.create", "movements.mark_costed", ...) devuelva err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) injected(op string) error {
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

// AddMovement registra un movimiento como lo haría la ingesta y devuelve su ID.
func (s *Store) AddMovement(m entity.Movement) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		s.nextMovementID++
		m.ID = s.nextMovementID
	} else if m.ID > s.nextMovementID {
		s.nextMovementID = m.ID
	}
	m.Date = entity.Day(m.Date)
	s.movements[m.ID] = &m
	return m.ID
}

// Movement devuelve una copia del movimiento o nil.
func (s *Store) Movement(id int64) *entity.Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.movements[id]
	if !ok {
		return nil
	}
	c := *m
	return &c
}

// Movements devuelve copias de todos los movimientos ordenados por ID.
func (s *Store) Movements() []*entity.Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Movement, 0, len(s.movements))
	for _, m := range s.movements {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entries devuelve copias de las líneas de kardex del grupo por (fecha, id).
func (s *Store) Entries(key entity.GroupKey) []*entity.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesLocked(key, func(*entity.LedgerEntry) bool { return true })
}

// MatchingDetails devuelve copias de todos los detalles de emparejamiento.
func (s *Store) MatchingDetails() []*entity.MatchingDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.MatchingDetail, 0, len(s.matching))
	for _, d := range s.matching {
		c := *d
		out = append(out, &c)
	}
	return out
}

// Balance devuelve el saldo consolidado del grupo o nil.
func (s *Store) Balance(key entity.GroupKey) *entity.ConsolidatedBalance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[key]
	if !ok {
		return nil
	}
	return &b
}

// DailyBalances devuelve las fotos diarias del grupo ordenadas por fecha.
func (s *Store) DailyBalances(key entity.GroupKey) []entity.DailyBalance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.DailyBalance
	for k, b := range s.daily {
		if k.Key == key {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *Store) entriesLocked(key entity.GroupKey, keep func(*entity.LedgerEntry) bool) []*entity.LedgerEntry {
	var out []*entity.LedgerEntry
	for _, e := range s.ledger {
		if e.GroupKey == key && keep(e) {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// tx acumula las operaciones inversas de las escrituras hechas en la transacción.
type tx struct {
	store *Store
	undo  []func()
}

func (t *tx) write(op string, apply func() func()) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.injected(op); err != nil {
		return err
	}
	t.undo = append(t.undo, apply())
	return nil
}

func (t *tx) read(op string, fn func()) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if err := t.store.injected(op); err != nil {
		return err
	}
	fn()
	return nil
}

func (t *tx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Movimientos
// ──────────────────────────────────────────────────────────────────────────────

type movementRepo tx

var _ repository.MovementRepository = (*movementRepo)(nil)

func (r *movementRepo) ListPending(_ context.Context, limit int) ([]*entity.Movement, error) {
	return r.listPending(func(*entity.Movement) bool { return true }, limit)
}

func (r *movementRepo) ListPendingByGroup(_ context.Context, key entity.GroupKey) ([]*entity.Movement, error) {
	return r.listPending(func(m *entity.Movement) bool { return m.GroupKey == key }, 0)
}

func (r *movementRepo) listPending(keep func(*entity.Movement) bool, limit int) ([]*entity.Movement, error) {
	var out []*entity.Movement
	err := (*tx)(r).read("movements.list_pending", func() {
		for _, m := range r.store.movements {
			if m.Costed || m.ForReview || m.Ignored || !m.Type.IsFIFO() || !keep(m) {
				continue
			}
			c := *m
			out = append(out, &c)
		}
	})
	if err != nil {
		return nil, err
	}
	SortPending(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *movementRepo) CreateAdjustment(_ context.Context, m *entity.Movement) error {
	return (*tx)(r).write("movements.create_adjustment", func() func() {
		r.store.nextMovementID++
		m.ID = r.store.nextMovementID
		c := *m
		r.store.movements[m.ID] = &c
		id := m.ID
		return func() { delete(r.store.movements, id) }
	})
}

func (r *movementRepo) MarkCosted(_ context.Context, id int64) error {
	return r.setFlags("movements.mark_costed", id, true, false, "")
}

func (r *movementRepo) MarkForReview(_ context.Context, id int64, reason string) error {
	return r.setFlags("movements.mark_for_review", id, false, true, reason)
}

func (r *movementRepo) setFlags(op string, id int64, costed, review bool, reason string) error {
	var missing bool
	err := (*tx)(r).write(op, func() func() {
		m, ok := r.store.movements[id]
		if !ok {
			missing = true
			return func() {}
		}
		prev := *m
		m.Costed, m.ForReview, m.ReviewReason, m.UpdatedAt = costed, review, reason, time.Now()
		return func() { *m = prev }
	})
	if err != nil {
		return err
	}
	if missing {
		return domain.ErrNotFound
	}
	return nil
}

// SortPending ordena por grupo, fecha, saldo inicial primero, entrada antes que salida e id.
func SortPending(ms []*entity.Movement) {
	rank := func(m *entity.Movement) int {
		switch {
		case m.IsInitialBalance:
			return 0
		case m.Type == entity.AccountingInflow:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if ka, kb := a.GroupKey.String(), b.GroupKey.String(); ka != kb {
			return ka < kb
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Kardex
// ──────────────────────────────────────────────────────────────────────────────

type ledgerRepo tx

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

func (r *ledgerRepo) Create(_ context.Context, e *entity.LedgerEntry) error {
	return (*tx)(r).write("ledger.create", func() func() {
		r.store.nextEntryID++
		e.ID = r.store.nextEntryID
		c := *e
		r.store.ledger = append(r.store.ledger, &c)
		id := e.ID
		return func() {
			for i, x := range r.store.ledger {
				if x.ID == id {
					r.store.ledger = append(r.store.ledger[:i], r.store.ledger[i+1:]...)
					return
				}
			}
		}
	})
}

func (r *ledgerRepo) LatestBefore(_ context.Context, key entity.GroupKey, date time.Time) (*entity.LedgerEntry, error) {
	var out *entity.LedgerEntry
	err := (*tx)(r).read("ledger.latest_before", func() {
		list := r.store.entriesLocked(key, func(e *entity.LedgerEntry) bool { return e.Date.Before(date) })
		if len(list) > 0 {
			out = list[len(list)-1]
		}
	})
	return out, err
}

func (r *ledgerRepo) Latest(_ context.Context, key entity.GroupKey) (*entity.LedgerEntry, error) {
	var out *entity.LedgerEntry
	err := (*tx)(r).read("ledger.latest", func() {
		list := r.store.entriesLocked(key, func(*entity.LedgerEntry) bool { return true })
		if len(list) > 0 {
			out = list[len(list)-1]
		}
	})
	return out, err
}

func (r *ledgerRepo) OpenLots(_ context.Context, key entity.GroupKey, before time.Time) ([]*entity.LedgerEntry, error) {
	var out []*entity.LedgerEntry
	err := (*tx)(r).read("ledger.open_lots", func() {
		out = r.store.entriesLocked(key, func(e *entity.LedgerEntry) bool {
			return e.IsInflow() && e.AvailableQuantity.IsPositive() && e.Date.Before(before)
		})
	})
	return out, err
}

func (r *ledgerRepo) UpdateAvailable(_ context.Context, entryID int64, available decimal.Decimal) error {
	if available.IsNegative() {
		return domain.ErrInvalidInput
	}
	var missing bool
	err := (*tx)(r).write("ledger.update_available", func() func() {
		for _, e := range r.store.ledger {
			if e.ID == entryID {
				prev := e.AvailableQuantity
				e.AvailableQuantity = available
				return func() { e.AvailableQuantity = prev }
			}
		}
		missing = true
		return func() {}
	})
	if err != nil {
		return err
	}
	if missing {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ledgerRepo) ListBetween(_ context.Context, key entity.GroupKey, from, to time.Time) ([]*entity.LedgerEntry, error) {
	var out []*entity.LedgerEntry
	err := (*tx)(r).read("ledger.list_between", func() {
		out = r.store.entriesLocked(key, func(e *entity.LedgerEntry) bool {
			return !e.Date.Before(from) && !e.Date.After(to)
		})
	})
	return out, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Emparejamiento
// ──────────────────────────────────────────────────────────────────────────────

type matchingRepo tx

var _ repository.MatchingRepository = (*matchingRepo)(nil)

func (r *matchingRepo) Create(_ context.Context, d *entity.MatchingDetail) error {
	return (*tx)(r).write("matching.create", func() func() {
		r.store.nextMatchingID++
		d.ID = r.store.nextMatchingID
		c := *d
		r.store.matching = append(r.store.matching, &c)
		id := d.ID
		return func() {
			for i, x := range r.store.matching {
				if x.ID == id {
					r.store.matching = append(r.store.matching[:i], r.store.matching[i+1:]...)
					return
				}
			}
		}
	})
}

func (r *matchingRepo) ListByOutflow(_ context.Context, outflowMovementID int64) ([]*entity.MatchingDetail, error) {
	var out []*entity.MatchingDetail
	err := (*tx)(r).read("matching.list_by_outflow", func() {
		for _, d := range r.store.matching {
			if d.OutflowMovementID == outflowMovementID {
				c := *d
				out = append(out, &c)
			}
		}
	})
	return out, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Saldos
// ──────────────────────────────────────────────────────────────────────────────

type balanceRepo tx

var _ repository.BalanceRepository = (*balanceRepo)(nil)

func (r *balanceRepo) Upsert(_ context.Context, b *entity.ConsolidatedBalance) error {
	return (*tx)(r).write("balances.upsert", func() func() {
		prev, existed := r.store.balances[b.GroupKey]
		r.store.balances[b.GroupKey] = *b
		return func() {
			if existed {
				r.store.balances[b.GroupKey] = prev
			} else {
				delete(r.store.balances, b.GroupKey)
			}
		}
	})
}

func (r *balanceRepo) Get(_ context.Context, key entity.GroupKey) (*entity.ConsolidatedBalance, error) {
	var out *entity.ConsolidatedBalance
	err := (*tx)(r).read("balances.get", func() {
		if b, ok := r.store.balances[key]; ok {
			out = &b
		}
	})
	return out, err
}

type dailyRepo tx

var _ repository.DailyBalanceRepository = (*dailyRepo)(nil)

func (r *dailyRepo) Upsert(_ context.Context, b *entity.DailyBalance) error {
	k := dailyKey{Date: entity.Day(b.Date), Key: b.GroupKey}
	return (*tx)(r).write("daily.upsert", func() func() {
		prev, existed := r.store.daily[k]
		c := *b
		c.Date = k.Date
		r.store.daily[k] = c
		return func() {
			if existed {
				r.store.daily[k] = prev
			} else {
				delete(r.store.daily, k)
			}
		}
	})
}

func (r *dailyRepo) LatestBefore(_ context.Context, key entity.GroupKey, date time.Time) (*entity.DailyBalance, error) {
	var out *entity.DailyBalance
	err := (*tx)(r).read("daily.latest_before", func() {
		for k, b := range r.store.daily {
			if k.Key != key || !k.Date.Before(date) {
				continue
			}
			if out == nil || b.Date.After(out.Date) {
				c := b
				out = &c
			}
		}
	})
	return out, err
}

func (r *dailyRepo) ListBetween(_ context.Context, key entity.GroupKey, from, to time.Time) ([]*entity.DailyBalance, error) {
	var out []*entity.DailyBalance
	err := (*tx)(r).read("daily.list_between", func() {
		for k, b := range r.store.daily {
			if k.Key == key && !k.Date.Before(from) && !k.Date.After(to) {
				c := b
				out = append(out, &c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

// ErrInjected es un error de conveniencia para FailOn en pruebas.
var ErrInjected = errors.New("fallo inyectado")
