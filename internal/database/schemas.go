package database

// Schemas are embedded so migration never depends on the working directory.
var schemas = map[string]string{
	"portfolio": portfolioSchema,
	"cache":     cacheSchema,
}

const portfolioSchema = `
CREATE TABLE IF NOT EXISTS positions (
    symbol      TEXT PRIMARY KEY,
    amount      REAL NOT NULL,
    entry_price REAL NOT NULL,
    entry_time  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
    id               TEXT PRIMARY KEY,
    symbol           TEXT NOT NULL,
    action           TEXT NOT NULL,
    confidence       REAL NOT NULL,
    potential_profit REAL NOT NULL,
    price            REAL NOT NULL,
    amount           REAL NOT NULL,
    reason           TEXT NOT NULL DEFAULT '',
    executed         INTEGER NOT NULL DEFAULT 0,
    created_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_symbol_time
    ON decisions(symbol, created_at DESC);
`

const cacheSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at INTEGER NOT NULL,
    data       BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created
    ON snapshots(created_at);
`
