package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/allocator/market"
	"github.com/rustyeddy/allocator/risk"
)

type proposerFunc func(ctx context.Context, c Context) ([]risk.ProposedTrade, error)

func (f proposerFunc) Propose(ctx context.Context, c Context) ([]risk.ProposedTrade, error) {
	return f(ctx, c)
}

func testRules() risk.Config {
	return risk.Config{
		MaxPositionPct:     0.50,
		MinCashPct:         0.10,
		StopLossPct:        0.15,
		MaxDrawdownPct:     0.30,
		MaxTradesPerCycle:  5,
		MinHoldingDays:     7,
		MinLiquidityVolume: 1_000_000,
		MinPrice:           5,
	}
}

// genSeries builds one daily bar per day starting at start, with closes from
// the price function and constant million-share volume.
func genSeries(symbol string, start time.Time, days int, price func(day int) float64) market.Series {
	bars := make([]market.Bar, days)
	for i := 0; i < days; i++ {
		p := price(i)
		bars[i] = market.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   p,
			High:   p,
			Low:    p,
			Close:  p,
			Volume: 1_000_000,
		}
	}
	return market.NewSeries(symbol, bars)
}

func flat(p float64) func(int) float64 {
	return func(int) float64 { return p }
}

func TestRunEmptyProposerHoldsCashFlat(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	history := MapHistory{
		"VTI": genSeries("VTI", start.AddDate(0, 0, -30), 120, flat(100)),
		"SPY": genSeries("SPY", start.AddDate(0, 0, -30), 120,
			func(day int) float64 { return 100 + float64(day)*0.5 }),
	}

	r := NewRunner(history, proposerFunc(func(context.Context, Context) ([]risk.ProposedTrade, error) {
		return nil, nil
	}), testRules())

	res, err := r.Run(context.Background(), Params{
		Start:        start,
		End:          start.AddDate(0, 0, 21), // 4 weekly ticks
		StartingCash: 10_000,
		Benchmark:    "SPY",
		Watchlist:    []string{"VTI"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Ticks)
	assert.Zero(t, res.SkippedTicks)
	require.Len(t, res.EquityCurve, 4)
	for _, p := range res.EquityCurve {
		assert.InDelta(t, 10_000, p.Equity, 1e-9)
		assert.Zero(t, p.Drawdown)
	}
	assert.InDelta(t, 0, res.TotalReturnPct, 1e-9)
	assert.InDelta(t, 0, res.MaxDrawdownPct, 1e-9)
	assert.Empty(t, res.TradeLog)

	// SPY rose 0.5/day over the window from its as-of close at start.
	require.True(t, res.HasBenchmark)
	assert.Greater(t, res.BenchmarkReturnPct, 0.0)
	assert.NotEmpty(t, res.RunID)
}

func TestRunProposerNeverSeesTheFuture(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Close price encodes the day offset so any lookahead is detectable.
	history := MapHistory{
		"VTI": genSeries("VTI", start, 120, func(day int) float64 { return 100 + float64(day) }),
	}

	var seen []float64
	r := NewRunner(history, proposerFunc(func(_ context.Context, c Context) ([]risk.ProposedTrade, error) {
		q, ok := c.Quotes["VTI"]
		require.True(t, ok)
		seen = append(seen, q.Price)

		// Context must not leak calendar dates.
		assert.True(t, c.Snapshot.AsOf.IsZero())
		assert.Equal(t, weekLabel(c.Week), c.Label)
		return nil, nil
	}), testRules())

	_, err := r.Run(context.Background(), Params{
		Start:        start,
		End:          start.AddDate(0, 0, 28),
		StartingCash: 10_000,
		Watchlist:    []string{"VTI"},
	})
	require.NoError(t, err)

	require.Len(t, seen, 5)
	for w, price := range seen {
		// The as-of close for tick w is exactly day 7*w; anything later
		// would mean a future bar leaked through.
		assert.InDelta(t, 100+float64(7*w), price, 1e-9, "week %d", w+1)
	}
}

func TestRunFailingProposerSkipsTickAndContinues(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	history := MapHistory{
		"VTI": genSeries("VTI", start.AddDate(0, 0, -30), 120, flat(100)),
	}

	var weeks []int
	r := NewRunner(history, proposerFunc(func(_ context.Context, c Context) ([]risk.ProposedTrade, error) {
		weeks = append(weeks, c.Week)
		if c.Week == 2 {
			return nil, errors.New("upstream timeout")
		}
		return nil, nil
	}), testRules())

	res, err := r.Run(context.Background(), Params{
		Start:        start,
		End:          start.AddDate(0, 0, 21),
		StartingCash: 10_000,
		Watchlist:    []string{"VTI"},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Ticks)
	assert.Equal(t, 1, res.SkippedTicks)
	assert.Equal(t, []int{1, 2, 3, 4}, weeks, "run continues after the failed tick")
	assert.Len(t, res.EquityCurve, 4, "skipped ticks still record equity")
}

func TestRunAppliesValidatedTrades(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	history := MapHistory{
		"VTI": genSeries("VTI", start.AddDate(0, 0, -30), 120,
			func(day int) float64 { return 100 + float64(day)*0.2 }),
	}

	script := &ScriptProposer{Weeks: map[int][]risk.ProposedTrade{
		1: {{Symbol: "VTI", Action: risk.ActionBuy, AmountUSD: 2_000, Urgency: risk.Medium}},
		4: {{Symbol: "VTI", Action: risk.ActionSell, SellAll: true, Urgency: risk.Medium}},
	}}

	r := NewRunner(history, script, testRules())
	res, err := r.Run(context.Background(), Params{
		Start:        start,
		End:          start.AddDate(0, 0, 28),
		StartingCash: 10_000,
		Watchlist:    []string{"VTI"},
	})
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 2)
	buy, sell := res.TradeLog[0], res.TradeLog[1]

	assert.Equal(t, "BUY", buy.Action)
	assert.InDelta(t, 2_000, buy.Total, 1e-9)

	assert.Equal(t, "SELL", sell.Action)
	assert.InDelta(t, buy.Quantity, sell.Quantity, 1e-9)
	// Price rose 0.2/day for 21 days while held.
	assert.Greater(t, sell.RealizedPL, 0.0)

	assert.InDelta(t, 100, res.WinRatePct, 1e-9)
	assert.Greater(t, res.TotalReturnPct, 0.0)
}

func TestRunForcedStopLossFiresDuringReplay(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	// Flat at 100 through week 2, then a crash to 70.
	crash := start.AddDate(0, 0, 10)
	history := MapHistory{
		"VTI": genSeries("VTI", start.AddDate(0, 0, -30), 120, flat(100)),
	}
	s := history["VTI"]
	for i := range s.Bars {
		if !s.Bars[i].Date.Before(crash) {
			s.Bars[i].Close = 70
			s.Bars[i].Open = 70
			s.Bars[i].High = 70
			s.Bars[i].Low = 70
		}
	}

	script := &ScriptProposer{Weeks: map[int][]risk.ProposedTrade{
		1: {{Symbol: "VTI", Action: risk.ActionBuy, AmountUSD: 2_000, Urgency: risk.Medium}},
	}}

	r := NewRunner(history, script, testRules())
	res, err := r.Run(context.Background(), Params{
		Start:        start,
		End:          start.AddDate(0, 0, 21),
		StartingCash: 10_000,
		Watchlist:    []string{"VTI"},
	})
	require.NoError(t, err)

	// Week 1 buy at 100, week 3 quote at 70 is -30%, past the -15% stop.
	require.Len(t, res.TradeLog, 2)
	assert.Equal(t, "SELL", res.TradeLog[1].Action)
	assert.Less(t, res.TradeLog[1].RealizedPL, 0.0)
	assert.Greater(t, res.MaxDrawdownPct, 0.0)
}

func TestRunRejectsBadParams(t *testing.T) {
	t.Parallel()

	history := MapHistory{}
	r := NewRunner(history, proposerFunc(func(context.Context, Context) ([]risk.ProposedTrade, error) {
		return nil, nil
	}), testRules())

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	_, err := r.Run(context.Background(), Params{Start: start, End: start, StartingCash: 0})
	assert.Error(t, err)

	_, err = r.Run(context.Background(), Params{
		Start: start, End: start.AddDate(0, 0, -7), StartingCash: 10_000,
	})
	assert.Error(t, err)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	history := MapHistory{
		"VTI": genSeries("VTI", start.AddDate(0, 0, -30), 400, flat(100)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(history, proposerFunc(func(context.Context, Context) ([]risk.ProposedTrade, error) {
		cancel()
		return nil, nil
	}), testRules())

	_, err := r.Run(ctx, Params{
		Start:        start,
		End:          start.AddDate(0, 0, 365),
		StartingCash: 10_000,
		Watchlist:    []string{"VTI"},
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMaxDrawdownAndWinRateHelpers(t *testing.T) {
	t.Parallel()

	curve := []EquityPoint{
		{Equity: 10_000},
		{Equity: 12_000},
		{Equity: 9_000}, // 25% off the 12k peak
		{Equity: 11_000},
	}
	assert.InDelta(t, 0.25, maxDrawdown(curve), 1e-9)
	assert.Zero(t, maxDrawdown(nil))

	_, ok := winRate(nil)
	assert.False(t, ok, "no sells means no win rate")
}
