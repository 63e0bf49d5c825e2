package cachestore

// schemaVersion is the current forward-only migration version, tracked in
// schema_version per spec.md §6: "Schema versioned; forward-only
// migrations identified by integer version in a schema_version relation."
const schemaVersion = 1

// migrations mirrors the teacher's init.go: a slice of DDL statements run
// in order inside a single transaction at startup (content/repo/sql/db/
// sqlite3/init.go), extended here with the mandatory secondary indexes and
// FTS5 virtual table spec.md §4.4 requires.
var migrations = []string{
	`PRAGMA foreign_keys = ON`,
	`PRAGMA journal_mode = WAL`,

	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS streams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		stream_type TEXT NOT NULL,
		custom_tag TEXT,
		icon TEXT,
		unread_count INTEGER,
		total_count INTEGER,
		last_updated TIMESTAMP,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		stream_id TEXT NOT NULL REFERENCES streams(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		content_type TEXT NOT NULL,
		content_data_json TEXT NOT NULL,
		author_name TEXT,
		author_email TEXT,
		author_url TEXT,
		author_avatar TEXT,
		published TIMESTAMP,
		updated TIMESTAMP,
		url TEXT,
		thumbnail_url TEXT,
		is_read INTEGER NOT NULL DEFAULT 0,
		is_saved INTEGER NOT NULL DEFAULT 0,
		is_archived INTEGER NOT NULL DEFAULT 0,
		tags_json TEXT NOT NULL DEFAULT '[]',
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_items_stream_id ON items(stream_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_published ON items(published DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_items_is_read ON items(is_read)`,
	`CREATE INDEX IF NOT EXISTS idx_items_is_saved ON items(is_saved)`,
	`CREATE INDEX IF NOT EXISTS idx_items_is_archived ON items(is_archived)`,

	`CREATE TABLE IF NOT EXISTS sync_state (
		provider_id TEXT PRIMARY KEY,
		last_sync TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	// Local-owner collections, per spec.md §3's "collections created by
	// the local owner are mutated by collections.create/add_item/
	// remove_item RPC calls." Collections from other providers are never
	// persisted here; they are served live through HasCollections.
	`CREATE TABLE IF NOT EXISTS local_collections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		icon TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS local_collection_items (
		collection_id TEXT NOT NULL REFERENCES local_collections(id) ON DELETE CASCADE,
		item_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY(collection_id, item_id)
	)`,

	// Full-text index over items.title + content_data_json + tags_json,
	// per spec.md §4.4. content=items/content_rowid=rowid keeps it a
	// shadow index that tracks the items table via triggers below rather
	// than a detached index, matching the "additional full-text index
	// covers" wording (one logical index, not a side search engine).
	`CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
		title, content_data_json, tags_json,
		content='items', content_rowid='rowid'
	)`,

	`CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items BEGIN
		INSERT INTO items_fts(rowid, title, content_data_json, tags_json)
		VALUES (new.rowid, new.title, new.content_data_json, new.tags_json);
	END`,

	`CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
		INSERT INTO items_fts(items_fts, rowid, title, content_data_json, tags_json)
		VALUES ('delete', old.rowid, old.title, old.content_data_json, old.tags_json);
	END`,

	`CREATE TRIGGER IF NOT EXISTS items_au AFTER UPDATE ON items BEGIN
		INSERT INTO items_fts(items_fts, rowid, title, content_data_json, tags_json)
		VALUES ('delete', old.rowid, old.title, old.content_data_json, old.tags_json);
		INSERT INTO items_fts(rowid, title, content_data_json, tags_json)
		VALUES (new.rowid, new.title, new.content_data_json, new.tags_json);
	END`,
}
