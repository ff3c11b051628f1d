package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSize_RoundDown_QuantizesToStep(t *testing.T) {
	s := Size{Min: d("0"), Max: d("100"), Step: d("0.01")}
	require.True(t, s.RoundDown(d("1.239")).Equal(d("1.23")))
}

func TestSize_RoundDown_BelowMin_ReturnsZero(t *testing.T) {
	s := Size{Min: d("1"), Step: d("0.01")}
	require.True(t, s.RoundDown(d("0.5")).IsZero())
}

func TestSize_Valid(t *testing.T) {
	s := Size{Min: d("0"), Max: d("10"), Step: d("0.5")}
	require.True(t, s.Valid(d("1.5")))
	require.False(t, s.Valid(d("1.3")))
	require.False(t, s.Valid(d("11")))
}

func TestMinNotional_Valid(t *testing.T) {
	m := MinNotional{MinNotional: d("10")}
	require.True(t, m.Valid(d("5"), d("2")))
	require.False(t, m.Valid(d("5"), d("1")))
}

func TestPrice_RoundDown_ClampsToMax(t *testing.T) {
	p := Price{Min: d("0"), Max: d("100"), Step: d("1")}
	require.True(t, p.RoundDown(d("150")).Equal(d("100")))
}
