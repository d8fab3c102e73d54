// Package indicators derives compact technical summaries from close-price
// windows. The summaries are advisory context for the reasoning collaborator;
// no risk rule depends on them.
package indicators

import (
	"github.com/markcheno/go-talib"
)

// MinBars is the smallest close-price window Compute accepts: enough for the
// 50-bar SMA, the slowest indicator in the summary.
const MinBars = 50

// Summary is a snapshot of common technical indicators at the end of a
// close-price window.
type Summary struct {
	Price      float64 `json:"price"`
	SMA20      float64 `json:"sma20"`
	SMA50      float64 `json:"sma50"`
	RSI14      float64 `json:"rsi14"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	Trend      string  `json:"trend"` // UP, DOWN or FLAT
}

// Compute builds a Summary from closes (oldest first). ok is false when the
// window is shorter than MinBars.
func Compute(closes []float64) (Summary, bool) {
	if len(closes) < MinBars {
		return Summary{}, false
	}

	sma20 := talib.Sma(closes, 20)
	sma50 := talib.Sma(closes, 50)
	rsi := talib.Rsi(closes, 14)
	macd, signal, _ := talib.Macd(closes, 12, 26, 9)

	n := len(closes) - 1
	s := Summary{
		Price:      closes[n],
		SMA20:      sma20[n],
		SMA50:      sma50[n],
		RSI14:      rsi[n],
		MACD:       macd[n],
		MACDSignal: signal[n],
		Trend:      trend(sma20[n], sma50[n]),
	}
	return s, true
}

func trend(fast, slow float64) string {
	const band = 0.001 // 0.1% dead band around the crossover
	switch {
	case fast > slow*(1+band):
		return "UP"
	case fast < slow*(1-band):
		return "DOWN"
	default:
		return "FLAT"
	}
}
