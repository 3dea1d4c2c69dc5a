package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/markcheno/go-quote"

	"github.com/rustyeddy/backtester/market"
)

// yahooDownload is swapped out in tests.
var yahooDownload = quote.NewQuoteFromYahoo

// Yahoo downloads adjusted daily bars from Yahoo Finance.
type Yahoo struct {
	End time.Time
}

func (y *Yahoo) Name() string { return "yahoo" }

func (y *Yahoo) Fetch(ctx context.Context, symbol string, start time.Time) (*market.CandleSet, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("data: yahoo: missing symbol")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := y.End
	if end.IsZero() {
		end = time.Now().UTC()
	}

	q, err := download(symbol, start, end)
	if err != nil {
		return nil, err
	}

	return window(fromQuote(q), symbol, start, y.End)
}

// download turns go-quote errors, and its panic on a failed request, into
// ErrDataUnavailable.
func download(symbol string, start, end time.Time) (q quote.Quote, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("data: yahoo %s: %v: %w", symbol, r, ErrDataUnavailable)
		}
	}()

	q, err = yahooDownload(symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), quote.Daily, true)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("data: yahoo %s: %v: %w", symbol, err, ErrDataUnavailable)
	}
	return q, nil
}

func fromQuote(q quote.Quote) *market.CandleSet {
	n := len(q.Date)
	rows := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(q.Open) || i >= len(q.High) || i >= len(q.Low) || i >= len(q.Close) || i >= len(q.Volume) {
			break
		}
		rows = append(rows, market.Candle{
			Time:   q.Date[i].UTC(),
			Open:   q.Open[i],
			High:   q.High[i],
			Low:    q.Low[i],
			Close:  q.Close[i],
			Volume: q.Volume[i],
		})
	}
	return market.NewCandleSet(q.Symbol, "yahoo", rows)
}
