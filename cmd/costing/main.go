package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhoicas/kardex-fifo/internal/application/costing"
	domcosting "github.com/jhoicas/kardex-fifo/internal/domain/costing"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
	"github.com/jhoicas/kardex-fifo/internal/infrastructure/postgres"
	"github.com/jhoicas/kardex-fifo/internal/infrastructure/scheduler"
	"github.com/jhoicas/kardex-fifo/pkg/config"
	"github.com/jhoicas/kardex-fifo/pkg/logger"
)

func main() {
	os.Exit(run())
}

// run devuelve el código de salida: 0 ok, 1 error de infraestructura, 2 grupos fallidos.
func run() int {
	once := flag.Bool("once", false, "ejecuta una sola corrida y termina")
	group := flag.String("group", "", "recostea solo este grupo (entidad/custodio/instrumento/cuenta) y termina")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("cargar configuración: " + err.Error() + "\n")
		return 1
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Int("workers", cfg.Costing.Workers).
		Bool("atomic_groups", cfg.Costing.AtomicGroups).
		Str("tolerance", cfg.Costing.Tolerance.String()).
		Msg("iniciando motor de costeo")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.Zerolog().WithContext(ctx)

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("conexión a PostgreSQL")
		return 1
	}
	defer pool.Close()

	txRunner := postgres.NewTxRunner(pool)
	factory := costing.NewLedgerFactory()
	inflow := costing.NewInflowHandler(factory)
	outflow := costing.NewOutflowHandler(factory, inflow, cfg.Costing.Tolerance)
	processor := costing.NewGroupProcessor(txRunner, inflow, outflow, costing.NewDailyReconciler(), cfg.Costing.AtomicGroups)
	engine := costing.NewEngine(txRunner, processor, costing.Options{
		Workers:    cfg.Costing.Workers,
		BatchLimit: cfg.Costing.BatchLimit,
	}, log.Zerolog())

	if *group != "" {
		return runGroup(ctx, log, engine, *group)
	}

	job := costing.NewBatchJob(engine)
	sched := scheduler.New(log.Zerolog(), cfg.Costing.RunTimeout)

	if *once {
		if err := sched.RunNow(ctx, job); err != nil {
			log.Error().Err(err).Msg("corrida de costeo")
			return 1
		}
		if last := job.Last(); last != nil && last.GroupsFailed > 0 {
			return 2
		}
		return 0
	}

	if err := sched.AddJob(cfg.Costing.Schedule, job); err != nil {
		log.Error().Err(err).Str("schedule", cfg.Costing.Schedule).Msg("programar corrida de costeo")
		return 1
	}
	sched.Start(ctx)

	<-ctx.Done()
	log.Info().Msg("apagando motor de costeo...")
	sched.Stop()
	log.Info().Msg("motor de costeo detenido")
	return 0
}

// runGroup recostea un grupo y devuelve el código de salida.
func runGroup(ctx context.Context, log *logger.Logger, engine *costing.Engine, raw string) int {
	key, err := entity.ParseGroupKey(raw)
	if err != nil {
		log.Error().Err(err).Msg("clave de grupo inválida")
		return 1
	}
	res, err := engine.RunGroup(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("group", key.String()).Msg("recostear grupo")
		return 1
	}
	ev := log.Info()
	if !res.Succeeded() {
		ev = log.Warn().Err(res.Err)
		var merr *domcosting.MovementError
		if errors.As(res.Err, &merr) {
			ev = ev.Int64("movement_id", merr.MovementID)
		}
	}
	ev.Str("group", key.String()).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Int("reverted", res.Reverted).
		Int("adjustments", res.Adjustments).
		Msg("grupo recosteado")
	if !res.Succeeded() {
		return 2
	}
	return 0
}
