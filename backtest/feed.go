package backtest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rustyeddy/allocator/market"
)

// HistoryProvider loads the full bar history for a symbol. The runner loads
// everything it may need once, up front, then slices by date per tick; the
// no-lookahead guarantee lives in the slicing, not in the provider.
type HistoryProvider interface {
	Series(symbol string) (market.Series, error)
}

// CSVHistory reads series from a directory of CSV files, one per symbol
// (VTI.csv or VTI.csv.xz).
type CSVHistory struct {
	Dir string
}

func (h CSVHistory) Series(symbol string) (market.Series, error) {
	for _, name := range []string{symbol + ".csv", symbol + ".csv.xz"} {
		path := filepath.Join(h.Dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return market.LoadSeriesCSV(path)
	}
	return market.Series{}, fmt.Errorf("no data file for %s in %s", symbol, h.Dir)
}

// MapHistory serves preloaded series by symbol. Test fixture.
type MapHistory map[string]market.Series

func (h MapHistory) Series(symbol string) (market.Series, error) {
	s, ok := h[symbol]
	if !ok {
		return market.Series{}, fmt.Errorf("no series for %s", symbol)
	}
	return s, nil
}
