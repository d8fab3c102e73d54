package market

import (
	"fmt"
	"sort"
	"time"
)

// Series is a time-indexed sequence of daily bars for one symbol, sorted
// ascending by date. All backtest reads go through AsOf/UpTo so that no
// caller can observe a bar dated after its own clock.
type Series struct {
	Symbol string
	Bars   []Bar
}

// NewSeries builds a Series, sorting bars ascending by date.
func NewSeries(symbol string, bars []Bar) Series {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return Series{Symbol: symbol, Bars: sorted}
}

// Empty reports whether the series holds no bars.
func (s Series) Empty() bool { return len(s.Bars) == 0 }

// Span returns the first and last bar dates.
func (s Series) Span() (start, end time.Time, err error) {
	if s.Empty() {
		return time.Time{}, time.Time{}, fmt.Errorf("market: series %s is empty", s.Symbol)
	}
	return s.Bars[0].Date, s.Bars[len(s.Bars)-1].Date, nil
}

// AsOf returns the most recent bar dated on or before t. ok is false when no
// such bar exists (a data gap at the start of the series).
func (s Series) AsOf(t time.Time) (Bar, bool) {
	i := s.searchAfter(t)
	if i == 0 {
		return Bar{}, false
	}
	return s.Bars[i-1], true
}

// UpTo returns up to max bars ending on or before t, oldest first.
// max <= 0 means no limit.
func (s Series) UpTo(t time.Time, max int) []Bar {
	i := s.searchAfter(t)
	lo := 0
	if max > 0 && i-max > 0 {
		lo = i - max
	}
	out := make([]Bar, i-lo)
	copy(out, s.Bars[lo:i])
	return out
}

// Between returns the bars with start <= date <= end, oldest first.
func (s Series) Between(start, end time.Time) []Bar {
	lo := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Date.Before(start)
	})
	hi := s.searchAfter(end)
	if hi < lo {
		hi = lo
	}
	out := make([]Bar, hi-lo)
	copy(out, s.Bars[lo:hi])
	return out
}

// searchAfter returns the index of the first bar dated strictly after t.
func (s Series) searchAfter(t time.Time) int {
	return sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Date.After(t)
	})
}

// Closes extracts the close prices of bars, oldest first.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
