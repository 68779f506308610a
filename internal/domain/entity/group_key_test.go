package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

func TestParseGroupKey(t *testing.T) {
	k, err := entity.ParseGroupKey("E1/C1/BOND/A1")
	require.NoError(t, err)
	assert.Equal(t, entity.GroupKey{EntityID: "E1", CustodianID: "C1", InstrumentID: "BOND", AccountID: "A1"}, k)
	assert.Equal(t, "E1/C1/BOND/A1", k.String())

	for _, bad := range []string{"", "E1/C1/BOND", "E1//BOND/A1", "a/b/c/d/e"} {
		_, err := entity.ParseGroupKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestDay_NormalizaAMedianocheUTC(t *testing.T) {
	got := entity.Day(time.Date(2024, 5, 2, 17, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), got)
}
