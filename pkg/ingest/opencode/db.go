package opencode

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// rowsQuery joins each message with its session directory and the
// concatenated text of its text parts. Message and part bodies are stored as
// JSON in the data column. closed is set when opencode recorded an error or a
// completion time; superseded when the session has a later message.
const rowsQuery = `
	SELECT
		m.rowid,
		m.id,
		m.session_id,
		COALESCE(json_extract(m.data, '$.role'), ''),
		COALESCE(json_extract(m.data, '$.finish'), ''),
		json_type(m.data, '$.error') IS NOT NULL
			OR json_type(m.data, '$.time.completed') IS NOT NULL,
		EXISTS (
			SELECT 1 FROM message n
			WHERE n.session_id = m.session_id AND n.rowid > m.rowid
		),
		COALESCE(s.directory, ''),
		COALESCE(m.time_created, 0),
		COALESCE((
			SELECT group_concat(json_extract(p.data, '$.text'), char(10))
			FROM part p
			WHERE p.message_id = m.id
				AND json_extract(p.data, '$.type') = 'text'
		), '')
	FROM message m
	LEFT JOIN session s ON s.id = m.session_id
	WHERE m.rowid > ?
	ORDER BY m.rowid
	LIMIT ?
`

// OpenDB opens an opencode database read-only.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening opencode database: %w", err)
	}
	return db, nil
}

// ReadRows returns up to limit messages with a rowid greater than afterRowID,
// in rowid order.
func ReadRows(ctx context.Context, db *sql.DB, afterRowID int64, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := db.QueryContext(ctx, rowsQuery, afterRowID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying opencode messages: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.RowID, &r.ID, &r.SessionID, &r.Role, &r.Finish, &r.Closed, &r.Superseded, &r.Directory, &r.TimeCreated, &r.Text); err != nil {
			return nil, fmt.Errorf("scanning opencode message: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating opencode messages: %w", err)
	}

	return out, nil
}
