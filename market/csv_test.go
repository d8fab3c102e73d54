package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeriesCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "vti.csv")
	data := "date,open,high,low,close,volume\n" +
		"2024-01-02,100,101,99,100.5,1200\n" +
		"2024-01-03,100.5,102,100,101.2,1500\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := LoadSeriesCSV(path)
	require.NoError(t, err)

	assert.Equal(t, "VTI", s.Symbol)
	require.Len(t, s.Bars, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), s.Bars[0].Date)
	assert.InDelta(t, 101.2, s.Bars[1].Close, 1e-12)
	assert.InDelta(t, 1500, s.Bars[1].Volume, 1e-12)
}

func TestLoadSeriesCSVNoHeader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "voo.csv")
	data := "2024-01-02,100,101,99,100.5,1200\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := LoadSeriesCSV(path)
	require.NoError(t, err)
	assert.Equal(t, "VOO", s.Symbol)
	require.Len(t, s.Bars, 1)
}

func TestLoadSeriesCSVBadRow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	data := "2024-01-02,100,101,notanumber,100.5,1200\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadSeriesCSV(path)
	assert.Error(t, err)
}
