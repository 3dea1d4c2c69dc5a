package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	strategy TEXT NOT NULL,
	params TEXT NOT NULL,
	dataset TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	initial_cash REAL NOT NULL,
	commission REAL NOT NULL,
	end_equity REAL NOT NULL,
	return_pct REAL,
	buy_hold_pct REAL,
	cagr_pct REAL,
	max_dd_pct REAL,
	sharpe REAL,
	sortino REAL,
	calmar REAL,
	exposure_pct REAL,
	win_rate REAL,
	profit_factor REAL,
	trades INTEGER NOT NULL,
	wins INTEGER NOT NULL,
	losses INTEGER NOT NULL,
	chart_path TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT NOT NULL,
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	symbol TEXT NOT NULL,
	shares INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	return_pct REAL NOT NULL,
	is_open INTEGER NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	time DATETIME NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run_time ON equity(run_id, time);
`
