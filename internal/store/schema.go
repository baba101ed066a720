package store

const Schema = `
CREATE TABLE IF NOT EXISTS instruments (
	symbol TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	sector TEXT NOT NULL DEFAULT '',
	asset_type TEXT NOT NULL DEFAULT 'stock'
);

CREATE TABLE IF NOT EXISTS watchlist (
	symbol TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	add_date TEXT NOT NULL,
	in_pool INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_price (
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER NOT NULL DEFAULT 0,
	turnover REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, date)
);

CREATE TABLE IF NOT EXISTS index_daily_price (
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume INTEGER NOT NULL DEFAULT 0,
	turnover REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, date)
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	portfolio TEXT NOT NULL,
	date TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	qty REAL NOT NULL,
	fee REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cash_flows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	portfolio TEXT NOT NULL,
	date TEXT NOT NULL,
	amount REAL NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS portfolio (
	portfolio TEXT NOT NULL,
	symbol TEXT NOT NULL,
	qty REAL NOT NULL,
	cost REAL NOT NULL,
	target_price REAL,
	PRIMARY KEY (portfolio, symbol)
);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
	portfolio TEXT NOT NULL,
	date TEXT NOT NULL,
	total_value REAL NOT NULL,
	cash REAL NOT NULL,
	investment_value REAL NOT NULL,
	PRIMARY KEY (portfolio, date)
);

CREATE INDEX IF NOT EXISTS idx_daily_price_date ON daily_price(date);
CREATE INDEX IF NOT EXISTS idx_trades_portfolio ON trades(portfolio, date, id);
CREATE INDEX IF NOT EXISTS idx_cash_flows_portfolio ON cash_flows(portfolio, date);
`
