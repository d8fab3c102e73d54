// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS validations (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	tick INTEGER NOT NULL,
	date DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	origin TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL,
	detail TEXT NOT NULL,
	amount_usd REAL NOT NULL,
	quantity REAL NOT NULL,
	thesis TEXT NOT NULL,
	warnings TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	tick INTEGER NOT NULL,
	date DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	total REAL NOT NULL,
	avg_cost REAL NOT NULL,
	realized_pl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	tick INTEGER NOT NULL,
	date DATETIME NOT NULL,
	equity REAL NOT NULL,
	cash REAL NOT NULL,
	drawdown REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validations_run ON validations(run_id, tick);
CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, tick);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, tick);
`
