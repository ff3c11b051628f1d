package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"jax-research-platform/internal/core"
)

func candleAt(close int64) core.Candle {
	return core.Candle{Close: decimal.NewFromInt(close)}
}

func TestSingleMA_MaturityAccountsForWrappers(t *testing.T) {
	s, err := NewSingleMA(map[string]any{"period": 3, "persistence": 0})
	require.NoError(t, err)
	require.Equal(t, 4, s.Maturity())
}

func TestSingleMA_SignalsLongThenPermanentlyPassesThroughAfterChange(t *testing.T) {
	s, err := NewSingleMA(map[string]any{"period": 3, "persistence": 0})
	require.NoError(t, err)

	for _, c := range []int64{10, 10, 13, 14} {
		s.Update(candleAt(c))
	}
	require.True(t, s.Mature())
	require.Equal(t, core.AdviceNone, s.Advice(), "first crossing is swallowed by MidTrend(IGNORE)")

	s.Update(candleAt(8))
	require.Equal(t, core.AdviceShort, s.Advice(), "first observed change is emitted")

	s.Update(candleAt(40))
	require.Equal(t, core.AdviceLong, s.Advice(), "MidTrend passes everything through unmodified once disabled")
}

func TestSingleMA_RejectsInvalidPeriod(t *testing.T) {
	_, err := NewSingleMA(map[string]any{"period": 0})
	require.Error(t, err)
}

func TestSingleMAMeta_DeclaresPeriodAndPersistence(t *testing.T) {
	meta := SingleMAMeta()
	require.Contains(t, meta.Constraints, "period")
	require.Contains(t, meta.Constraints, "persistence")
}
