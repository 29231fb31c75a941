package cache

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	stored_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_stored_at ON entries(stored_at);
CREATE INDEX IF NOT EXISTS idx_entries_expires_at ON entries(expires_at);

CREATE TABLE IF NOT EXISTS entry_tags (
	key TEXT NOT NULL,
	tag TEXT NOT NULL,
	PRIMARY KEY (key, tag)
);
CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON entry_tags(tag);
`

const (
	sqlSelectEntry = `SELECT body, stored_at, expires_at FROM entries WHERE key = ?`
	sqlSelectTags  = `SELECT tag FROM entry_tags WHERE key = ? ORDER BY tag`
	sqlUpsertEntry = `INSERT INTO entries (key, body, stored_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body, stored_at = excluded.stored_at, expires_at = excluded.expires_at`
	sqlInsertTag     = `INSERT OR IGNORE INTO entry_tags (key, tag) VALUES (?, ?)`
	sqlDeleteTags    = `DELETE FROM entry_tags WHERE key = ?`
	sqlDeleteEntry   = `DELETE FROM entries WHERE key = ?`
	sqlCountEntries  = `SELECT COUNT(*) FROM entries`
	sqlEvictOldest   = `DELETE FROM entries WHERE key IN (SELECT key FROM entries ORDER BY stored_at ASC, key ASC LIMIT ?)`
	sqlDeleteExpired = `DELETE FROM entries WHERE expires_at < ?`
	sqlDeleteTagged  = `DELETE FROM entries WHERE key IN (SELECT key FROM entry_tags WHERE tag = ?)`
	sqlDeleteOrphans = `DELETE FROM entry_tags WHERE key NOT IN (SELECT key FROM entries)`
	sqlDeleteAll     = `DELETE FROM entries`
)
