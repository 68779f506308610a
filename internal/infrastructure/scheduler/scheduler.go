package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job es una tarea programable. Run recibe un contexto que se cancela al detener el scheduler.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler ejecuta jobs según expresiones cron (con segundos) o @every.
// Una ejecución que aún no termina hace que se omita el siguiente disparo del mismo job.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New crea el scheduler. timeout <= 0 deja las ejecuciones sin tope.
func New(log zerolog.Logger, timeout time.Duration) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     log,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start arranca el scheduler. Los jobs heredan los valores de ctx (p. ej. el logger).
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Msg("scheduler iniciado")
}

// Stop cancela las ejecuciones en curso y espera a que terminen.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler detenido")
}

// AddJob registra un job. Ejemplos de schedule:
//   - "0 */5 * * * *" cada 5 minutos
//   - "@every 30s"
//   - "@hourly"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if err := s.run(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("job falló")
		}
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registrado")
	return nil
}

// RunNow ejecuta el job inmediatamente, fuera de la programación, con el tope de duración configurado.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("ejecutando job inmediatamente")
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.log.Debug().Str("job", job.Name()).Msg("ejecutando job")
	if err := job.Run(ctx); err != nil {
		return err
	}
	s.log.Debug().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("job completado")
	return nil
}

// cronLogger adapta zerolog a cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
