package costing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/kardex-fifo/internal/application/costing"
)

func TestBatchJob_GuardaUltimaCorrida(t *testing.T) {
	f := newFixture(t, true)
	job := costing.NewBatchJob(f.engine)
	assert.Equal(t, "costing_batch", job.Name())
	assert.Nil(t, job.Last())

	f.store.AddMovement(inflow(groupA, day(1), "10", "10"))
	f.store.AddMovement(outflow(groupA, day(2), "30", "10"))

	require.NoError(t, job.Run(context.Background()), "un grupo fallido no es error de la corrida")
	last := job.Last()
	require.NotNil(t, last)
	assert.Equal(t, 1, last.GroupsFailed)
	assert.Len(t, last.Failures, 1)
}
