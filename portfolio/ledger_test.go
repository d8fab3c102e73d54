package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuyOpensPosition(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	ex, err := l.Buy("VTI", 2_000, 100, day(2024, 1, 5))
	require.NoError(t, err)

	assert.InDelta(t, 20, ex.Quantity, 1e-9)
	assert.InDelta(t, 2_000, ex.Total, 1e-9)
	assert.InDelta(t, 8_000, l.Cash(), 1e-9)

	p, ok := l.Position("VTI")
	require.True(t, ok)
	assert.InDelta(t, 20, p.Quantity, 1e-9)
	assert.InDelta(t, 100, p.AvgCost, 1e-9)
	assert.Equal(t, day(2024, 1, 5), p.OpenedAt)
}

func TestBuyUpdatesWeightedAverageCost(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Buy("VTI", 1_000, 100, day(2024, 1, 5))
	require.NoError(t, err)
	_, err = l.Buy("VTI", 2_400, 120, day(2024, 2, 5))
	require.NoError(t, err)

	p, ok := l.Position("VTI")
	require.True(t, ok)
	// 10 shares @ 100 + 20 shares @ 120 -> 30 shares @ 113.33
	assert.InDelta(t, 30, p.Quantity, 1e-9)
	assert.InDelta(t, (10*100.0+20*120.0)/30, p.AvgCost, 1e-9)
	// OpenedAt keeps the first acquisition date.
	assert.Equal(t, day(2024, 1, 5), p.OpenedAt)
}

func TestBuyInsufficientCashIsFatal(t *testing.T) {
	t.Parallel()

	l := NewLedger(1_000)
	_, err := l.Buy("VTI", 1_500, 100, day(2024, 1, 5))
	require.ErrorIs(t, err, ErrInsufficientCash)

	// Ledger unchanged after the failed buy.
	assert.InDelta(t, 1_000, l.Cash(), 1e-9)
	_, held := l.Position("VTI")
	assert.False(t, held)
}

func TestBuyExactCashBalance(t *testing.T) {
	t.Parallel()

	l := NewLedger(1_000)
	_, err := l.Buy("VTI", 1_000, 100, day(2024, 1, 5))
	require.NoError(t, err)
	assert.InDelta(t, 0, l.Cash(), 1e-9)
	assert.GreaterOrEqual(t, l.Cash(), 0.0)
}

func TestBuyRejectsBadInputs(t *testing.T) {
	t.Parallel()

	l := NewLedger(1_000)

	_, err := l.Buy("VTI", 100, 0, day(2024, 1, 5))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = l.Buy("VTI", -5, 100, day(2024, 1, 5))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSellRealizesProfitAndLoss(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Buy("NVDA", 2_000, 200, day(2024, 1, 5))
	require.NoError(t, err)

	ex, err := l.Sell("NVDA", 5, false, 250, day(2024, 3, 5))
	require.NoError(t, err)

	assert.InDelta(t, 5, ex.Quantity, 1e-9)
	assert.InDelta(t, 200, ex.AvgCost, 1e-9)
	assert.InDelta(t, (250-200)*5, ex.RealizedPL, 1e-9)
	assert.InDelta(t, 8_000+5*250, l.Cash(), 1e-9)

	p, ok := l.Position("NVDA")
	require.True(t, ok)
	assert.InDelta(t, 5, p.Quantity, 1e-9)
}

func TestSellAllRemovesPosition(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Buy("NVDA", 2_000, 200, day(2024, 1, 5))
	require.NoError(t, err)

	ex, err := l.Sell("NVDA", 0, true, 170, day(2024, 2, 5))
	require.NoError(t, err)

	assert.InDelta(t, 10, ex.Quantity, 1e-9)
	assert.InDelta(t, (170-200)*10, ex.RealizedPL, 1e-9)

	_, held := l.Position("NVDA")
	assert.False(t, held)
}

func TestSellClipsToHeldQuantityNeverShort(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Buy("VTI", 1_000, 100, day(2024, 1, 5))
	require.NoError(t, err)

	ex, err := l.Sell("VTI", 50, false, 110, day(2024, 2, 5))
	require.NoError(t, err)

	assert.InDelta(t, 10, ex.Quantity, 1e-9) // clipped from 50 to held 10
	_, held := l.Position("VTI")
	assert.False(t, held)
}

func TestSellRemovesDustWithinEpsilon(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Buy("VTI", 1_000, 100, day(2024, 1, 5))
	require.NoError(t, err)

	_, err = l.Sell("VTI", 10-QuantityEpsilon/2, false, 100, day(2024, 2, 5))
	require.NoError(t, err)

	_, held := l.Position("VTI")
	assert.False(t, held, "dust below epsilon should be removed")
}

func TestSellWithoutPositionIsFatal(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	_, err := l.Sell("TSLA", 5, false, 100, day(2024, 1, 5))
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestInvariantsHoldAcrossTradeSequence(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	asOf := day(2024, 1, 5)
	prices := map[string]float64{"VTI": 100, "VOO": 400, "NVDA": 200}

	steps := []func() error{
		func() error { _, err := l.Buy("VTI", 3_000, 100, asOf); return err },
		func() error { _, err := l.Buy("VOO", 2_000, 400, asOf); return err },
		func() error { _, err := l.Sell("VTI", 10, false, 110, asOf); return err },
		func() error { _, err := l.Buy("NVDA", 4_000, 200, asOf); return err },
		func() error { _, err := l.Sell("VOO", 0, true, 390, asOf); return err },
	}

	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)

		assert.GreaterOrEqual(t, l.Cash(), 0.0, "cash negative after step %d", i)
		for _, p := range l.Positions() {
			assert.Greater(t, p.Quantity, 0.0, "non-positive quantity after step %d", i)
		}

		// cash + sum(qty*price) must equal total value
		snap := l.Snapshot(prices, asOf)
		sum := snap.Cash
		for _, pv := range snap.Positions {
			sum += pv.Quantity * pv.Price
		}
		assert.InDelta(t, snap.TotalValue, sum, 1e-6)
	}
}

func TestObservePeakIsMonotonic(t *testing.T) {
	t.Parallel()

	l := NewLedger(10_000)
	assert.InDelta(t, 10_000, l.Peak(), 1e-9)

	l.ObservePeak(12_000)
	assert.InDelta(t, 12_000, l.Peak(), 1e-9)

	l.ObservePeak(9_000)
	assert.InDelta(t, 12_000, l.Peak(), 1e-9, "peak must never move backwards")
}
