package market

import "time"

// avgVolumeBars is the lookback used for the liquidity figure: the mean
// daily volume over the last 10 bars, expressed in dollars.
const avgVolumeBars = 10

// Quote is a point-in-time view of a symbol, derived from its series at a
// given date. It carries exactly the facts the risk rules consume.
type Quote struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	// Price is the as-of close.
	Price float64 `json:"price" yaml:"price"`
	// ChangePct is the day-over-day close change, in percent.
	ChangePct float64 `json:"change_pct" yaml:"change_pct"`
	// Volume is the as-of bar's share volume.
	Volume float64 `json:"volume" yaml:"volume"`
	// AvgDollarVolume is the 10-day mean share volume times the as-of price.
	AvgDollarVolume float64 `json:"avg_dollar_volume" yaml:"avg_dollar_volume"`
}

// QuoteAt derives a Quote from the series as of t. ok is false when the
// series has no bar on or before t.
func QuoteAt(s Series, t time.Time) (Quote, bool) {
	bars := s.UpTo(t, avgVolumeBars+1)
	if len(bars) == 0 {
		return Quote{}, false
	}
	last := bars[len(bars)-1]

	q := Quote{
		Symbol: s.Symbol,
		Price:  last.Close,
		Volume: last.Volume,
	}

	if len(bars) >= 2 {
		prev := bars[len(bars)-2].Close
		if prev > 0 {
			q.ChangePct = (last.Close - prev) / prev * 100
		}
	}

	volBars := bars
	if len(volBars) > avgVolumeBars {
		volBars = volBars[len(volBars)-avgVolumeBars:]
	}
	var sum float64
	for _, b := range volBars {
		sum += b.Volume
	}
	q.AvgDollarVolume = sum / float64(len(volBars)) * last.Close

	return q, true
}
