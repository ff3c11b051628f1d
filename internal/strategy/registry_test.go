package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterGetList(t *testing.T) {
	r := NewRegistry()
	require.Empty(t, r.List())

	err := r.Register("single_ma", NewSingleMA, SingleMAMeta())
	require.NoError(t, err)
	require.Equal(t, []string{"single_ma"}, r.List())

	reg, err := r.Get("single_ma")
	require.NoError(t, err)
	require.NotNil(t, reg.Factory)
	require.Contains(t, reg.Meta.Constraints, "period")
}

func TestRegistry_RegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("single_ma", NewSingleMA, SingleMAMeta()))
	require.Error(t, r.Register("single_ma", NewSingleMA, SingleMAMeta()))
}

func TestRegistry_RegisterNilFactoryFails(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register("broken", nil, Meta{}))
}

func TestRegistry_GetUnknownFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nonexistent")
	require.Error(t, err)
}

func TestNewDefaultRegistry_HasBuiltinStrategies(t *testing.T) {
	r := NewDefaultRegistry()
	require.ElementsMatch(t, []string{"single_ma", "ma_crossover"}, r.List())

	for _, name := range r.List() {
		reg, err := r.Get(name)
		require.NoError(t, err)
		s, err := reg.Factory(map[string]any{})
		require.NoError(t, err)
		require.NotNil(t, s)
	}
}
