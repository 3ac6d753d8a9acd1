// Package sqlitevec implements vector.Driver on SQLite with the sqlite-vec
// extension. Observation ids live in a regular table whose rowid keys the
// vec0 virtual table, since vec0 only addresses rows by integer.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/vector"
)

const (
	docsTable = "observation_vectors"
	vecTable  = "observation_embeddings"

	defaultTopK = 10
)

// Config configures the driver.
type Config struct {
	// DBPath is the database file, or ":memory:".
	DBPath string

	// Dimensions must match the embedder's output length.
	Dimensions uint
}

// Driver is a sqlite-vec backed vector.Driver.
type Driver struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// New opens the database and creates the index tables if needed.
func New(c Config, log *slog.Logger) (*Driver, error) {
	sqlite_vec.Auto()
	log = logger.OrNop(log)

	if c.DBPath == "" {
		return nil, errors.New("sqlite-vec: database path is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("sqlite-vec: embedding dimensions must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening vector database: %w", err)
	}
	if c.DBPath == ":memory:" {
		// Every pooled connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	var version string
	if err := db.QueryRow(`SELECT vec_version()`).Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension unavailable: %w", err)
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS ` + docsTable + ` (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			observation_id TEXT NOT NULL UNIQUE,
			digest TEXT NOT NULL DEFAULT ''
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d])`, vecTable, c.Dimensions),
	}
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating vector schema: %w", err)
		}
	}

	log.Debug("vector index ready",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", version,
	)

	return &Driver{db: db, dimensions: int(c.Dimensions), logger: log}, nil
}

// Add upserts docs. vec0 has no UPDATE, so an existing embedding is deleted
// and reinserted under the same rowid.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning vector transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, doc := range docs {
		if len(doc.Embedding) != d.dimensions {
			return fmt.Errorf("observation %s: %w", doc.ID, vector.DimensionError{Want: d.dimensions, Got: len(doc.Embedding)})
		}

		var rowID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO `+docsTable+` (observation_id, digest) VALUES (?, ?)
			ON CONFLICT(observation_id) DO UPDATE SET digest = excluded.digest
			RETURNING rowid`,
			doc.ID, doc.Digest,
		).Scan(&rowID)
		if err != nil {
			return fmt.Errorf("upserting observation %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM `+vecTable+` WHERE rowid = ?`, rowID); err != nil {
			return fmt.Errorf("clearing embedding for %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+vecTable+` (rowid, embedding) VALUES (?, ?)`,
			rowID, encode(doc.Embedding),
		); err != nil {
			return fmt.Errorf("writing embedding for %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}

	d.logger.Debug("indexed embeddings", "count", len(docs))
	return nil
}

// Query runs a KNN match against the vec0 table.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.Match, error) {
	if len(embedding) != d.dimensions {
		return nil, vector.DimensionError{Want: d.dimensions, Got: len(embedding)}
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT v.observation_id, v.digest, e.distance
		FROM `+vecTable+` e
		JOIN `+docsTable+` v ON v.rowid = e.rowid
		WHERE e.embedding MATCH ? AND e.k = ?
		ORDER BY e.distance`,
		encode(embedding), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("querying nearest embeddings: %w", err)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var (
			m        vector.Match
			distance float64
		)
		if err := rows.Scan(&m.ID, &m.Digest, &distance); err != nil {
			return nil, fmt.Errorf("scanning nearest embedding: %w", err)
		}
		m.Score = vector.Similarity(distance)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Get returns the documents for ids, embeddings included.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Select("v.observation_id", "v.digest", "e.embedding").
		From(entsql.Table(docsTable).As("v")).
		Join(entsql.Table(vecTable).As("e")).On("e.rowid", "v.rowid").
		Where(entsql.In("v.observation_id", anys(ids)...)).
		Query()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var (
			doc  vector.Document
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Digest, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if doc.Embedding, err = decode(blob); err != nil {
			return nil, fmt.Errorf("observation %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes ids from both tables.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning vector transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	b := entsql.Dialect(dialect.SQLite)
	in := anys(ids)

	sub := b.Select("rowid").From(entsql.Table(docsTable)).Where(entsql.In("observation_id", in...))
	query, args := b.Delete(vecTable).Where(entsql.In("rowid", sub)).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	query, args = b.Delete(docsTable).Where(entsql.In("observation_id", in...)).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting vector documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector delete: %w", err)
	}

	d.logger.Debug("removed embeddings", "count", len(ids))
	return nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

// encode packs v as little-endian float32, the blob layout vec0 expects.
func encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob of %d bytes is not float32 aligned", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
