package delta

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_FirstObservationHasNoPrevious(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.Observe("XAU", 2040)
	require.False(t, ok)
}

func TestTracker_ObserveShiftsBaseline(t *testing.T) {
	tr := NewTracker()
	tr.Observe("XAU", 2000)

	prev, ok := tr.Observe("XAU", 2100)
	require.True(t, ok)
	require.Equal(t, 2000.0, prev)

	prev, ok = tr.Observe("XAU", 2050)
	require.True(t, ok)
	require.Equal(t, 2100.0, prev)
}

func TestTracker_SymbolsAreIndependent(t *testing.T) {
	tr := NewTracker()
	tr.Observe("XAU", 2000)
	_, ok := tr.Observe("XAG", 23)
	require.False(t, ok)
}

func TestTracker_Last(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.Last("USD/KZT")
	require.False(t, ok)

	tr.Observe("USD/KZT", 501.24)
	v, ok := tr.Last("USD/KZT")
	require.True(t, ok)
	require.Equal(t, 501.24, v)
}

func TestChange_ComputesDelta(t *testing.T) {
	change, pct := Change(2000, 2100, 15)
	require.Equal(t, 100.0, change)
	require.Equal(t, 5.0, pct)
}

func TestChange_NegativeDelta(t *testing.T) {
	change, pct := Change(2000, 1900, 15)
	require.Equal(t, -100.0, change)
	require.Equal(t, -5.0, pct)
}

func TestChange_ImplausibleSwingIsZeroed(t *testing.T) {
	// a 20% jump against a 15% cap reads as unit-ambiguity noise
	change, pct := Change(2000, 2400, 15)
	require.Zero(t, change)
	require.Zero(t, pct)

	change, pct = Change(2000, 1500, 15)
	require.Zero(t, change)
	require.Zero(t, pct)
}

func TestChange_NoPreviousMeansNoDelta(t *testing.T) {
	change, pct := Change(0, 2100, 15)
	require.Zero(t, change)
	require.Zero(t, pct)
}

func TestChange_ZeroCapDisablesRejection(t *testing.T) {
	change, pct := Change(100, 300, 0)
	require.Equal(t, 200.0, change)
	require.Equal(t, 200.0, pct)
}
