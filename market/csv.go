package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// LoadSeriesCSV reads a daily bar series from a CSV file with rows
//
//	date,open,high,low,close,volume
//
// where date is YYYY-MM-DD. A header row is skipped if present. Files ending
// in .xz are decompressed transparently. The symbol is taken from the file
// name (VTI.csv or VTI.csv.xz -> VTI).
func LoadSeriesCSV(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return Series{}, fmt.Errorf("xz reader %s: %w", path, err)
		}
		r = xr
	}

	bars, err := readBars(r)
	if err != nil {
		return Series{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return NewSeries(symbolFromPath(path), bars), nil
}

func symbolFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".xz")
	name = strings.TrimSuffix(name, ".csv")
	return strings.ToUpper(name)
}

func readBars(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	cr.TrimLeadingSpace = true

	var bars []Bar
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		// Skip a header row.
		if line == 1 && strings.EqualFold(rec[0], "date") {
			continue
		}

		b, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseBar(rec []string) (Bar, error) {
	date, err := time.ParseInLocation("2006-01-02", rec[0], time.UTC)
	if err != nil {
		return Bar{}, fmt.Errorf("bad date %q: %w", rec[0], err)
	}

	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad number %q: %w", rec[i+1], err)
		}
		vals[i] = v
	}

	return Bar{
		Date:   date,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
