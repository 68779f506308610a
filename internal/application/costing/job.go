package costing

import (
	"context"
	"sync"
)

// BatchJob expone una corrida del motor como tarea programable.
type BatchJob struct {
	engine *Engine

	mu   sync.Mutex
	last *BatchResult
}

// NewBatchJob envuelve el motor.
func NewBatchJob(engine *Engine) *BatchJob {
	return &BatchJob{engine: engine}
}

func (j *BatchJob) Name() string { return "costing_batch" }

// Run ejecuta una corrida. Los grupos fallidos quedan en el resultado y no se reportan como error.
func (j *BatchJob) Run(ctx context.Context) error {
	res, err := j.engine.Run(ctx)
	if res != nil {
		j.mu.Lock()
		j.last = res
		j.mu.Unlock()
	}
	return err
}

// Last devuelve el resultado de la última corrida, o nil si aún no hubo ninguna.
func (j *BatchJob) Last() *BatchResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
