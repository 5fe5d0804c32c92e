package journal

const Schema = `
CREATE TABLE IF NOT EXISTS cycles (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	total_positions INTEGER NOT NULL,
	buy_count INTEGER NOT NULL,
	sell_count INTEGER NOT NULL,
	buy_volume REAL NOT NULL,
	sell_volume REAL NOT NULL,
	buy_profit REAL NOT NULL,
	sell_profit REAL NOT NULL,
	total_profit REAL NOT NULL,
	equity REAL NOT NULL,
	balance REAL NOT NULL,
	margin_free REAL NOT NULL,
	margin_free_pct REAL NOT NULL,
	price REAL NOT NULL,
	trend TEXT NOT NULL,
	hedge_active INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_time ON cycles(time);
CREATE INDEX IF NOT EXISTS idx_cycles_run ON cycles(run_id);
`
