package sqlite

const table = "observations"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		platform TEXT NOT NULL,
		project TEXT NOT NULL,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_redacted TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		tags_json TEXT NOT NULL DEFAULT '[]',
		privacy_tags_json TEXT NOT NULL DEFAULT '[]',
		correlation_id TEXT NOT NULL DEFAULT '',
		dedupe_hash TEXT NOT NULL UNIQUE,
		importance REAL NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS observations_session_idx ON observations (session_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS observations_created_idx ON observations (created_at)`,
}

// columns is the scan order used by every SELECT.
var columns = []string{
	"seq",
	"id",
	"platform",
	"project",
	"session_id",
	"event_type",
	"title",
	"content",
	"content_redacted",
	"created_at",
	"tags_json",
	"privacy_tags_json",
	"correlation_id",
	"dedupe_hash",
	"importance",
}
