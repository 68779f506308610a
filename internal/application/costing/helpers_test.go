package costing_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/kardex-fifo/internal/application/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
	"github.com/jhoicas/kardex-fifo/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var (
	groupA = entity.GroupKey{EntityID: "E1", CustodianID: "C1", InstrumentID: "BOND-2030", AccountID: "ACC-1"}
	groupB = entity.GroupKey{EntityID: "E1", CustodianID: "C1", InstrumentID: "EQ-ACME", AccountID: "ACC-1"}
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// day devuelve el día n de enero de 2024.
func day(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s got %s", want, got}, msgAndArgs...)...)
}

func inflow(key entity.GroupKey, on time.Time, qty, price string) entity.Movement {
	return entity.Movement{GroupKey: key, Date: on, Type: entity.AccountingInflow, Quantity: d(qty), Price: d(price)}
}

func outflow(key entity.GroupKey, on time.Time, qty, price string) entity.Movement {
	return entity.Movement{GroupKey: key, Date: on, Type: entity.AccountingOutflow, Quantity: d(qty), Price: d(price)}
}

type fixture struct {
	store     *memory.Store
	engine    *costing.Engine
	processor *costing.GroupProcessor
}

func newFixture(t *testing.T, atomic bool) *fixture {
	t.Helper()
	store := memory.NewStore()
	factory := costing.NewLedgerFactory()
	in := costing.NewInflowHandler(factory)
	out := costing.NewOutflowHandler(factory, in, costing.DefaultTolerance)
	proc := costing.NewGroupProcessor(store, in, out, costing.NewDailyReconciler(), atomic)
	eng := costing.NewEngine(store, proc, costing.Options{Workers: 4}, zerolog.Nop())
	return &fixture{store: store, engine: eng, processor: proc}
}

// inTx ejecuta fn con los repositorios del store y falla el test si devuelve error.
func inTx(t *testing.T, store *memory.Store, fn func(repos costing.Repositories) error) {
	t.Helper()
	require.NoError(t, store.Run(context.Background(), fn))
}

// assertReconciled verifica, a través de los repositorios, que el saldo consolidado coincide con
// la última línea del kardex.
func assertReconciled(t *testing.T, store *memory.Store, key entity.GroupKey) {
	t.Helper()
	var (
		last *entity.LedgerEntry
		bal  *entity.ConsolidatedBalance
	)
	inTx(t, store, func(repos costing.Repositories) error {
		var err error
		if last, err = repos.Ledger.Latest(context.Background(), key); err != nil {
			return err
		}
		bal, err = repos.Balances.Get(context.Background(), key)
		return err
	})
	if !assert.NotNil(t, last, "debe existir kardex") || !assert.NotNil(t, bal, "debe existir saldo consolidado") {
		return
	}
	assert.True(t, bal.Quantity.Equal(last.BalanceQuantity), "cantidad consolidada %s vs kardex %s", bal.Quantity, last.BalanceQuantity)
	assert.True(t, bal.TotalCost.Equal(last.BalanceValue), "costo consolidado %s vs kardex %s", bal.TotalCost, last.BalanceValue)
}

// dailyBetween lee las fotos diarias del grupo en [from, to].
func dailyBetween(t *testing.T, store *memory.Store, key entity.GroupKey, from, to time.Time) []*entity.DailyBalance {
	t.Helper()
	var out []*entity.DailyBalance
	inTx(t, store, func(repos costing.Repositories) error {
		var err error
		out, err = repos.DailyBalances.ListBetween(context.Background(), key, from, to)
		return err
	})
	return out
}

// matchedBy lee los detalles de emparejamiento de una salida.
func matchedBy(t *testing.T, store *memory.Store, outflowID int64) []*entity.MatchingDetail {
	t.Helper()
	var out []*entity.MatchingDetail
	inTx(t, store, func(repos costing.Repositories) error {
		var err error
		out, err = repos.Matching.ListByOutflow(context.Background(), outflowID)
		return err
	})
	return out
}
