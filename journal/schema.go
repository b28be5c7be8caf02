package journal

// Schema is the DDL for the shell journal. OpenDB applies it; embed it in
// your own schema management if you share the database file.
const Schema = `
CREATE TABLE IF NOT EXISTS shell_journal (
    entry_id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    kind TEXT NOT NULL,
    subject TEXT NOT NULL,
    nav INTEGER NOT NULL DEFAULT 0,
    detail TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_shell_journal_time
    ON shell_journal(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_shell_journal_kind_time
    ON shell_journal(kind, timestamp DESC);
`
