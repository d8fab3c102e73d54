package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotMarksToMarket(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Buy("NVDA", 2_000, 200, day(2024, 1, 5))
	require.NoError(t, err)

	snap := l.Snapshot(map[string]float64{"NVDA": 170}, day(2024, 1, 12))

	require.Len(t, snap.Positions, 1)
	pv := snap.Positions[0]
	assert.InDelta(t, 170, pv.Price, 1e-9)
	assert.InDelta(t, 10*170, pv.MarketValue, 1e-9)
	assert.InDelta(t, 10*(170-200), pv.UnrealizedPL, 1e-9)
	assert.InDelta(t, -0.15, pv.PLFraction, 1e-9)
	assert.Equal(t, 7, pv.HoldingDays)

	assert.InDelta(t, 8_000, snap.Cash, 1e-9)
	assert.InDelta(t, 8_000+1_700, snap.TotalValue, 1e-9)
	assert.InDelta(t, 8_000/9_700.0, snap.CashFraction, 1e-9)
	assert.InDelta(t, 1_700/9_700.0, pv.Weight, 1e-9)
}

func TestSnapshotFallsBackToAvgCostWithoutPrice(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Buy("VTI", 1_000, 100, day(2024, 1, 5))
	require.NoError(t, err)

	snap := l.Snapshot(nil, day(2024, 1, 5))
	require.Len(t, snap.Positions, 1)
	assert.InDelta(t, 100, snap.Positions[0].Price, 1e-9)
	assert.InDelta(t, 0, snap.Positions[0].UnrealizedPL, 1e-9)
	assert.InDelta(t, 10_000, snap.TotalValue, 1e-9)
}

func TestSnapshotCashOnly(t *testing.T) {
	t.Parallel()

	l := NewLedger(5_000)
	snap := l.Snapshot(nil, day(2024, 1, 5))

	assert.Empty(t, snap.Positions)
	assert.InDelta(t, 1.0, snap.CashFraction, 1e-9)
	assert.InDelta(t, 5_000, snap.TotalValue, 1e-9)
	assert.InDelta(t, 5_000, snap.Peak, 1e-9)
}

func TestSnapshotPositionsSortedBySymbol(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	for _, sym := range []string{"VTI", "AAPL", "NVDA"} {
		_, err := l.Buy(sym, 1_000, 100, day(2024, 1, 5))
		require.NoError(t, err)
	}

	snap := l.Snapshot(nil, day(2024, 1, 5))
	require.Len(t, snap.Positions, 3)
	assert.Equal(t, "AAPL", snap.Positions[0].Symbol)
	assert.Equal(t, "NVDA", snap.Positions[1].Symbol)
	assert.Equal(t, "VTI", snap.Positions[2].Symbol)
}

func TestSnapshotDoesNotAliasLedgerState(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Buy("VTI", 1_000, 100, day(2024, 1, 5))
	require.NoError(t, err)

	snap := l.Snapshot(nil, day(2024, 1, 5))
	snap.Positions[0].Quantity = 999

	p, ok := l.Position("VTI")
	require.True(t, ok)
	assert.InDelta(t, 10, p.Quantity, 1e-9)
}
