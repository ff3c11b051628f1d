package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
)

func TestMACrossover_RejectsShortNotLessThanLong(t *testing.T) {
	_, err := NewMACrossover(map[string]any{"periods": [2]any{50, 20}})
	require.Error(t, err)
}

func TestMACrossover_DefaultsWhenParamsMissing(t *testing.T) {
	s, err := NewMACrossover(map[string]any{})
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestMACrossover_DeathCrossThenGoldenCrossPassesThroughAfterFirstChange(t *testing.T) {
	s, err := NewMACrossover(map[string]any{"periods": [2]any{2, 3}})
	require.NoError(t, err)
	require.Equal(t, 4, s.Maturity())

	for _, c := range []int64{10, 10, 16, 20} {
		s.Update(candleAt(c))
	}
	require.True(t, s.Mature())
	require.Equal(t, core.AdviceNone, s.Advice(), "no crossover observed yet")

	s.Update(candleAt(5))
	require.Equal(t, core.AdviceShort, s.Advice(), "first observed crossover is emitted")

	s.Update(candleAt(100))
	require.Equal(t, core.AdviceLong, s.Advice(), "passthrough unmodified once MidTrend is disabled")
}

func TestMACrossoverMeta_DeclaresPairedPeriods(t *testing.T) {
	meta := MACrossoverMeta()
	require.Contains(t, meta.Constraints, "periods")
	pair, ok := meta.Constraints["periods"].(Pair)
	require.True(t, ok)
	require.True(t, pair.Validate([2]any{5, 20}))
	require.False(t, pair.Validate([2]any{20, 5}))
}
