package costing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// Group es un grupo con sus movimientos pendientes en el orden recibido.
type Group struct {
	Key       entity.GroupKey
	Movements []*entity.Movement
}

// BatchResult agrega los resultados de una corrida del motor.
type BatchResult struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	Groups       int
	GroupsFailed int
	Processed    int
	Failed       int
	Reverted     int
	Adjustments  int
	Dropped      int // movimientos no FIFO descartados al particionar
	Failures     []GroupResult
}

// Options configura el motor.
type Options struct {
	Workers    int // grupos en paralelo; <= 0 equivale a 1
	BatchLimit int // tope de movimientos pendientes por corrida; <= 0 sin tope
}

// Engine selecciona movimientos pendientes, los particiona por grupo y procesa cada grupo.
type Engine struct {
	tx        TxRunner
	processor *GroupProcessor
	opts      Options
	log       zerolog.Logger
}

// NewEngine construye el motor de costeo.
func NewEngine(tx TxRunner, processor *GroupProcessor, opts Options, log zerolog.Logger) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Engine{
		tx:        tx,
		processor: processor,
		opts:      opts,
		log:       log.With().Str("component", "costing_engine").Logger(),
	}
}

// Run ejecuta una corrida completa. Un grupo fallido no aborta la corrida; solo un error al
// seleccionar pendientes o la cancelación del contexto se devuelven como error.
func (e *Engine) Run(ctx context.Context) (*BatchResult, error) {
	result := &BatchResult{RunID: uuid.New().String(), StartedAt: time.Now()}
	log := e.log.With().Str("run_id", result.RunID).Logger()
	ctx = log.WithContext(ctx)

	var pending []*entity.Movement
	err := e.tx.Run(ctx, func(repos Repositories) error {
		var err error
		pending, err = e.selectPending(ctx, repos)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listar movimientos pendientes: %w", err)
	}

	groups, dropped := Partition(pending)
	result.Dropped = dropped
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("movimientos no FIFO descartados del costeo")
	}
	log.Info().Int("movements", len(pending)).Int("groups", len(groups)).Msg("iniciando corrida de costeo")

	results, err := e.processGroups(ctx, groups)
	for _, r := range results {
		result.add(r)
	}
	result.Duration = time.Since(result.StartedAt)

	log.Info().
		Int("groups", result.Groups).
		Int("groups_failed", result.GroupsFailed).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("reverted", result.Reverted).
		Int("adjustments", result.Adjustments).
		Dur("duration", result.Duration).
		Msg("corrida de costeo finalizada")

	return result, err
}

// selectPending lista los pendientes respetando BatchLimit sin partir un (grupo, fecha): el estado
// inicial de la corrida siguiente solo ve líneas de fechas anteriores. Si el primer (grupo, fecha)
// no cabe en el límite se toma completo.
func (e *Engine) selectPending(ctx context.Context, repos Repositories) ([]*entity.Movement, error) {
	limit := e.opts.BatchLimit
	if limit <= 0 {
		return repos.Movements.ListPending(ctx, 0)
	}
	pending, err := repos.Movements.ListPending(ctx, limit+1)
	if err != nil || len(pending) <= limit {
		return pending, err
	}

	next := pending[limit]
	cut := limit
	for cut > 0 && sameGroupDay(pending[cut-1], next) {
		cut--
	}
	if cut > 0 {
		return pending[:cut], nil
	}

	all, err := repos.Movements.ListPendingByGroup(ctx, next.GroupKey)
	if err != nil {
		return nil, err
	}
	day := make([]*entity.Movement, 0, len(all))
	for _, m := range all {
		if sameGroupDay(m, next) {
			day = append(day, m)
		}
	}
	zerolog.Ctx(ctx).Warn().
		Str("group", next.GroupKey.String()).
		Int("limit", limit).
		Int("movements", len(day)).
		Msg("el día pendiente del grupo excede el límite de la corrida; se procesa completo")
	return day, nil
}

func sameGroupDay(a, b *entity.Movement) bool {
	return a.GroupKey == b.GroupKey && entity.Day(a.Date).Equal(entity.Day(b.Date))
}

// RunGroup recostea un único grupo, por ejemplo tras un ajuste manual de un movimiento en revisión.
func (e *Engine) RunGroup(ctx context.Context, key entity.GroupKey) (*GroupResult, error) {
	log := e.log.With().Str("run_id", uuid.New().String()).Logger()
	ctx = log.WithContext(ctx)

	var pending []*entity.Movement
	err := e.tx.Run(ctx, func(repos Repositories) error {
		var err error
		pending, err = repos.Movements.ListPendingByGroup(ctx, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listar pendientes del grupo %s: %w", key, err)
	}

	groups, _ := Partition(pending)
	res := GroupResult{Key: key}
	for _, g := range groups {
		if g.Key == key {
			res = e.processor.Process(ctx, key, g.Movements)
		}
	}
	return &res, nil
}

// processGroups procesa grupos en paralelo (acotado por Workers). Los movimientos de un grupo
// siempre se procesan en secuencia dentro de una sola goroutine.
func (e *Engine) processGroups(ctx context.Context, groups []Group) ([]GroupResult, error) {
	results := make([]GroupResult, len(groups))
	started := make([]bool, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, grp := range groups {
		if gctx.Err() != nil {
			break
		}
		started[i] = true
		i, grp := i, grp
		g.Go(func() error {
			results[i] = e.processor.Process(gctx, grp.Key, grp.Movements)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]GroupResult, 0, len(results))
	for i, r := range results {
		if started[i] {
			out = append(out, r)
		}
	}
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("corrida cancelada: %w", err)
	}
	return out, nil
}

func (b *BatchResult) add(r GroupResult) {
	b.Groups++
	b.Processed += r.Processed
	b.Failed += r.Failed
	b.Reverted += r.Reverted
	b.Adjustments += r.Adjustments
	if !r.Succeeded() {
		b.GroupsFailed++
		b.Failures = append(b.Failures, r)
	}
}

// Partition agrupa los movimientos por GroupKey conservando el orden recibido, tanto de los grupos
// (primera aparición) como dentro de cada grupo. Solo admite movimientos INFLOW/OUTFLOW pendientes;
// devuelve cuántos descartó.
func Partition(movements []*entity.Movement) ([]Group, int) {
	index := make(map[entity.GroupKey]int)
	var groups []Group
	dropped := 0
	for _, m := range movements {
		if m == nil || !m.Type.IsFIFO() || m.Costed || m.ForReview || m.Ignored {
			dropped++
			continue
		}
		i, ok := index[m.GroupKey]
		if !ok {
			i = len(groups)
			index[m.GroupKey] = i
			groups = append(groups, Group{Key: m.GroupKey})
		}
		groups[i].Movements = append(groups[i].Movements, m)
	}
	return groups, dropped
}
