package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/backtester/backtest"
)

var ErrNotFound = errors.New("journal: not found")

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RecordResult stores the run, its trades and its equity curve in one
// transaction and returns the stored run row.
func (j *SQLite) RecordResult(ctx context.Context, r *backtest.Result, dataset string) (RunRecord, error) {
	rec := NewRunRecord(r, dataset)

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return RunRecord{}, err
	}
	defer tx.Rollback()

	if err := recordRun(ctx, tx, rec); err != nil {
		return RunRecord{}, err
	}
	for _, t := range NewTradeRecords(rec.RunID, r) {
		if err := recordTrade(ctx, tx, t); err != nil {
			return RunRecord{}, err
		}
	}
	for _, p := range r.Equity {
		if err := recordEquity(ctx, tx, EquityRecord{RunID: rec.RunID, Time: p.Time, Equity: p.Equity}); err != nil {
			return RunRecord{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

func (j *SQLite) RecordRun(ctx context.Context, rec RunRecord) error {
	return recordRun(ctx, j.db, rec)
}

func (j *SQLite) RecordTrade(ctx context.Context, t TradeRecord) error {
	return recordTrade(ctx, j.db, t)
}

func (j *SQLite) RecordEquity(ctx context.Context, e EquityRecord) error {
	return recordEquity(ctx, j.db, e)
}

func recordRun(ctx context.Context, x execer, r RunRecord) error {
	_, err := x.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, symbol, strategy, params, dataset, start_time, end_time, bars,
		 initial_cash, commission, end_equity, return_pct, buy_hold_pct, cagr_pct, max_dd_pct,
		 sharpe, sortino, calmar, exposure_pct, win_rate, profit_factor, trades, wins, losses, chart_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created, r.Symbol, r.Strategy, string(r.Params), r.Dataset, r.Start, r.End, r.Bars,
		r.InitialCash, r.Commission, r.EndEquity,
		nullable(r.ReturnPct), nullable(r.BuyHoldPct), nullable(r.CAGRPct), nullable(r.MaxDDPct),
		nullable(r.Sharpe), nullable(r.Sortino), nullable(r.Calmar), nullable(r.ExposurePct),
		nullable(r.WinRate), nullable(r.ProfitFactor),
		r.Trades, r.Wins, r.Losses, r.ChartPath,
	)
	if err != nil {
		return fmt.Errorf("journal: record run %s: %w", r.RunID, err)
	}
	return nil
}

func recordTrade(ctx context.Context, x execer, t TradeRecord) error {
	_, err := x.ExecContext(ctx, `
		INSERT INTO trades
		(trade_id, run_id, symbol, shares, entry_price, exit_price, open_time, close_time, realized_pl, return_pct, is_open, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Symbol, t.Shares, t.EntryPrice, t.ExitPrice,
		t.OpenTime, t.CloseTime, t.RealizedPL, t.ReturnPct, t.Open, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("journal: record trade %s: %w", t.TradeID, err)
	}
	return nil
}

func recordEquity(ctx context.Context, x execer, e EquityRecord) error {
	_, err := x.ExecContext(ctx, `INSERT INTO equity (run_id, time, equity) VALUES (?, ?, ?)`,
		e.RunID, e.Time, e.Equity)
	return err
}

// SetChartPath attaches the rendered chart file to a stored run.
func (j *SQLite) SetChartPath(ctx context.Context, runID, path string) error {
	res, err := j.db.ExecContext(ctx, `UPDATE runs SET chart_path = ? WHERE run_id = ?`, path, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return nil
}

const runColumns = `run_id, created, symbol, strategy, params, dataset, start_time, end_time, bars,
	initial_cash, commission, end_equity, return_pct, buy_hold_pct, cagr_pct, max_dd_pct,
	sharpe, sortino, calmar, exposure_pct, win_rate, profit_factor, trades, wins, losses, chart_path`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRecord, error) {
	var (
		r      RunRecord
		params string
		ratios [10]sql.NullFloat64
	)
	err := s.Scan(
		&r.RunID, &r.Created, &r.Symbol, &r.Strategy, &params, &r.Dataset, &r.Start, &r.End, &r.Bars,
		&r.InitialCash, &r.Commission, &r.EndEquity,
		&ratios[0], &ratios[1], &ratios[2], &ratios[3], &ratios[4],
		&ratios[5], &ratios[6], &ratios[7], &ratios[8], &ratios[9],
		&r.Trades, &r.Wins, &r.Losses, &r.ChartPath,
	)
	if err != nil {
		return RunRecord{}, err
	}
	r.Params = []byte(params)
	r.ReturnPct = orNaN(ratios[0])
	r.BuyHoldPct = orNaN(ratios[1])
	r.CAGRPct = orNaN(ratios[2])
	r.MaxDDPct = orNaN(ratios[3])
	r.Sharpe = orNaN(ratios[4])
	r.Sortino = orNaN(ratios[5])
	r.Calmar = orNaN(ratios[6])
	r.ExposurePct = orNaN(ratios[7])
	r.WinRate = orNaN(ratios[8])
	r.ProfitFactor = orNaN(ratios[9])
	return r, nil
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return RunRecord{}, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY run_id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTradesByRunID returns a run's trades in entry order.
func (j *SQLite) ListTradesByRunID(ctx context.Context, runID string) ([]TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT trade_id, run_id, symbol, shares, entry_price, exit_price, open_time, close_time, realized_pl, return_pct, is_open, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY open_time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(
			&t.TradeID,
			&t.RunID,
			&t.Symbol,
			&t.Shares,
			&t.EntryPrice,
			&t.ExitPrice,
			&t.OpenTime,
			&t.CloseTime,
			&t.RealizedPL,
			&t.ReturnPct,
			&t.Open,
			&t.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityByRunID returns a run's equity curve in time order.
func (j *SQLite) ListEquityByRunID(ctx context.Context, runID string) ([]EquityRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, time, equity
		FROM equity
		WHERE run_id = ?
		ORDER BY time ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var e EquityRecord
		if err := rows.Scan(&e.RunID, &e.Time, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportBacktestOrg loads a run with its trades and returns the Org report.
func (j *SQLite) ExportBacktestOrg(ctx context.Context, runID string) (string, error) {
	run, err := j.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	trades, err := j.ListTradesByRunID(ctx, runID)
	if err != nil {
		return "", err
	}
	return FormatRunOrg(run, trades)
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// SQLite stores NaN as NULL; the ratio columns round trip through these.
func nullable(x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

func orNaN(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}
