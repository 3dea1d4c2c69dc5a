package data

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/markcheno/go-quote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
)

func day(n int) time.Time {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func sampleSet(n int) *market.CandleSet {
	rows := make([]market.Candle, n)
	for i := range rows {
		p := 100 + float64(i)
		rows[i] = market.Candle{Time: day(i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1}
	}
	return market.NewCandleSet("SPY", "test", rows)
}

func stubYahoo(t *testing.T, fn func(symbol, start, end string, period quote.Period, adjust bool) (quote.Quote, error)) {
	t.Helper()
	orig := yahooDownload
	yahooDownload = fn
	t.Cleanup(func() { yahooDownload = orig })
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    string
		wantErr string
	}{
		{name: "default is yahoo", opts: Options{}, want: "yahoo"},
		{name: "csv", opts: Options{Kind: "csv", Path: "spy.csv"}, want: "csv:spy.csv"},
		{name: "parquet", opts: Options{Kind: "PARQUET", Path: "spy.parquet"}, want: "parquet:spy.parquet"},
		{name: "csv without path", opts: Options{Kind: "csv"}, wantErr: "requires a path"},
		{name: "unknown", opts: Options{Kind: "bloomberg"}, wantErr: "unknown source"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := New(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, src.Name())
		})
	}
}

func TestYahoo_Fetch(t *testing.T) {
	stubYahoo(t, func(symbol, start, end string, period quote.Period, adjust bool) (quote.Quote, error) {
		assert.Equal(t, "SPY", symbol)
		assert.Equal(t, "2020-01-02", start)
		assert.Equal(t, quote.Daily, period)
		assert.True(t, adjust)
		return quote.Quote{
			Symbol: "SPY",
			Date:   []time.Time{day(1), day(2), day(3)},
			Open:   []float64{10, 11, 12},
			High:   []float64{10, 11, 12},
			Low:    []float64{10, 11, 12},
			Close:  []float64{10, math.NaN(), 12},
			Volume: []float64{1, 1, 1},
		}, nil
	})

	cs, err := (&Yahoo{}).Fetch(context.Background(), "SPY", day(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12}, cs.Closes())
	assert.Equal(t, "yahoo", cs.Source)
}

func TestYahoo_EmptyIsDataUnavailable(t *testing.T) {
	stubYahoo(t, func(symbol, start, end string, period quote.Period, adjust bool) (quote.Quote, error) {
		return quote.Quote{Symbol: symbol}, nil
	})

	_, err := (&Yahoo{}).Fetch(context.Background(), "NOPE", day(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}

func TestYahoo_DownloadErrorIsDataUnavailable(t *testing.T) {
	stubYahoo(t, func(symbol, start, end string, period quote.Period, adjust bool) (quote.Quote, error) {
		return quote.Quote{}, errors.New("connection refused")
	})

	_, err := (&Yahoo{}).Fetch(context.Background(), "SPY", day(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestYahoo_DownloadPanicIsDataUnavailable(t *testing.T) {
	stubYahoo(t, func(symbol, start, end string, period quote.Period, adjust bool) (quote.Quote, error) {
		var q *quote.Quote
		return *q, nil
	})

	var (
		cs  *market.CandleSet
		err error
	)
	require.NotPanics(t, func() {
		cs, err = (&Yahoo{}).Fetch(context.Background(), "SPY", day(0))
	})
	require.Error(t, err)
	assert.Nil(t, cs)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.Contains(t, err.Error(), "nil pointer dereference")
}

func TestFile_FetchCSVWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spy.csv")
	require.NoError(t, Save(path, FormatCSV, sampleSet(10)))

	src := &File{Path: path, Format: FormatCSV, End: day(6)}
	cs, err := src.Fetch(context.Background(), "SPY", day(3))
	require.NoError(t, err)
	assert.Equal(t, []float64{103, 104, 105, 106}, cs.Closes())
}

func TestFile_FetchParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spy.parquet")
	require.NoError(t, Save(path, FormatParquet, sampleSet(5)))

	cs, err := (&File{Path: path, Format: FormatParquet}).Fetch(context.Background(), "SPY", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 5, cs.Len())
}

func TestFile_MissingFileIsDataUnavailable(t *testing.T) {
	src := &File{Path: filepath.Join(t.TempDir(), "missing.csv"), Format: FormatCSV}
	_, err := src.Fetch(context.Background(), "SPY", day(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}

func TestFile_StartAfterLastBarIsDataUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spy.csv")
	require.NoError(t, Save(path, FormatCSV, sampleSet(3)))

	_, err := (&File{Path: path, Format: FormatCSV}).Fetch(context.Background(), "SPY", day(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}
