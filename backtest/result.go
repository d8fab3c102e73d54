package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/allocator/portfolio"
)

// EquityPoint is one tick on the equity curve.
type EquityPoint struct {
	Date     time.Time `json:"date"`
	Equity   float64   `json:"equity"`
	Cash     float64   `json:"cash"`
	Drawdown float64   `json:"drawdown"`
}

// Result summarises a completed run.
type Result struct {
	RunID        string    `json:"run_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	StartingCash float64   `json:"starting_cash"`
	FinalEquity  float64   `json:"final_equity"`

	TotalReturnPct     float64 `json:"total_return_pct"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	WinRatePct         float64 `json:"win_rate_pct"`
	BenchmarkReturnPct float64 `json:"benchmark_return_pct"`

	Ticks        int  `json:"ticks"`
	SkippedTicks int  `json:"skipped_ticks"`
	HasBenchmark bool `json:"has_benchmark"`

	EquityCurve []EquityPoint         `json:"equity_curve"`
	TradeLog    []portfolio.Execution `json:"trade_log"`
}

// maxDrawdown returns the deepest peak-to-trough decline on the curve as a
// positive fraction.
func maxDrawdown(curve []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// winRate is the fraction of sells with realized P/L strictly above zero.
// Returns (0, false) when there were no sells.
func winRate(log []portfolio.Execution) (float64, bool) {
	var sells, wins int
	for _, ex := range log {
		if ex.Action != "SELL" {
			continue
		}
		sells++
		if ex.RealizedPL > 0 {
			wins++
		}
	}
	if sells == 0 {
		return 0, false
	}
	return float64(wins) / float64(sells), true
}

// Print writes a human-readable report.
func (r Result) Print(w io.Writer) {
	fmt.Fprintf(w, "Backtest %s\n", r.RunID)
	fmt.Fprintf(w, "  %s .. %s (%d ticks, %d skipped)\n",
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), r.Ticks, r.SkippedTicks)
	fmt.Fprintf(w, "  starting cash   %12.2f\n", r.StartingCash)
	fmt.Fprintf(w, "  final equity    %12.2f\n", r.FinalEquity)
	fmt.Fprintf(w, "  total return    %11.2f%%\n", r.TotalReturnPct)
	fmt.Fprintf(w, "  max drawdown    %11.2f%%\n", r.MaxDrawdownPct)
	fmt.Fprintf(w, "  win rate        %11.2f%%\n", r.WinRatePct)
	if r.HasBenchmark {
		fmt.Fprintf(w, "  benchmark       %11.2f%%\n", r.BenchmarkReturnPct)
	}
	fmt.Fprintf(w, "  trades executed %d\n", len(r.TradeLog))
}
