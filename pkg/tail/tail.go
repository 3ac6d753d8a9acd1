// Package tail drives the ingestion adapters over the files named by the
// configured sources. It owns the file handles and read cursors the adapters
// never see, records what they decode and hands new observations to the
// worker pool.
package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/papercomputeco/ctxmem/pkg/event"
	"github.com/papercomputeco/ctxmem/pkg/ingest"
	"github.com/papercomputeco/ctxmem/pkg/ingest/opencode"
	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/store"
	"github.com/papercomputeco/ctxmem/pkg/worker"
)

// MaxChunk caps a single read of a streamed source.
const MaxChunk = 4 << 20

// Enqueuer accepts follow-up jobs for inserted observations.
type Enqueuer interface {
	Enqueue(job worker.Job) bool
}

// Result summarizes one poll.
type Result struct {
	Files      int `json:"files"`
	Events     int `json:"events"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Enqueued   int `json:"enqueued"`
	Failed     int `json:"failed"`
}

func (r *Result) add(o Result) {
	r.Files += o.Files
	r.Events += o.Events
	r.Inserted += o.Inserted
	r.Duplicates += o.Duplicates
	r.Enqueued += o.Enqueued
	r.Failed += o.Failed
}

// Tailer polls sources into a store.
type Tailer struct {
	store    store.Store
	cursors  *CursorStore
	sources  []Source
	redactor *Redactor
	jobs     Enqueuer
	logger   *slog.Logger
	now      event.Clock
	chunk    int

	// mu serializes polls so cursor updates never interleave.
	mu sync.Mutex
}

// Option configures a Tailer.
type Option func(*Tailer)

// WithEnqueuer sends inserted observations to q.
func WithEnqueuer(q Enqueuer) Option {
	return func(t *Tailer) { t.jobs = q }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tailer) { t.logger = logger.OrNop(l) }
}

func WithClock(now event.Clock) Option {
	return func(t *Tailer) { t.now = now }
}

func WithRedactor(r *Redactor) Option {
	return func(t *Tailer) { t.redactor = r }
}

// WithChunkSize lowers the per-read cap below MaxChunk.
func WithChunkSize(n int) Option {
	return func(t *Tailer) {
		if n > 0 && n < MaxChunk {
			t.chunk = n
		}
	}
}

// New builds a Tailer over sources.
func New(st store.Store, cursors *CursorStore, sources []Source, opts ...Option) *Tailer {
	t := &Tailer{
		store:    st,
		cursors:  cursors,
		sources:  sources,
		redactor: NewRedactor(),
		logger:   logger.Nop(),
		now:      time.Now,
		chunk:    MaxChunk,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Poll reads every source once. A failing file is logged and counted; it
// never stops the rest of the poll. The returned error is only set when ctx
// is done.
func (t *Tailer) Poll(ctx context.Context) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total Result
	for _, src := range t.sources {
		files, err := src.Expand()
		if err != nil {
			t.logger.Warn("skipping source", "kind", src.Kind, "pattern", src.Pattern, "error", err)
			total.Failed++
			continue
		}

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return total, err
			}

			res, err := t.pollFile(ctx, f)
			total.add(res)
			total.Files++
			if err != nil {
				total.Failed++
				t.logger.Warn("tailing file failed", "source_key", f.Key, "error", err)
			}
		}
	}

	t.logger.Debug("poll complete",
		"files", total.Files,
		"events", total.Events,
		"inserted", total.Inserted,
		"failed", total.Failed,
	)
	return total, nil
}

func (t *Tailer) pollFile(ctx context.Context, f File) (Result, error) {
	switch {
	case f.Kind == ingest.KindOpenCodeDB:
		return t.pollRows(ctx, f)
	case f.Kind.WholeFile():
		return t.pollDocument(ctx, f)
	default:
		return t.pollStream(ctx, f)
	}
}

// pollStream reads a line-oriented file from its cursor until the adapter
// stops consuming or the file is exhausted.
func (t *Tailer) pollStream(ctx context.Context, f File) (Result, error) {
	var res Result

	file, err := os.Open(f.Path)
	if err != nil {
		return res, fmt.Errorf("opening %s: %w", f.Path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", f.Path, err)
	}

	cur := t.cursors.Get(f.Key)
	if info.Size() < cur.Offset {
		t.logger.Info("source shrank, rereading from start", "source_key", f.Key, "offset", cur.Offset, "size", info.Size())
		cur = Cursor{}
	}

	buf := make([]byte, t.chunk)
	for cur.Offset < info.Size() {
		n, err := file.ReadAt(buf, cur.Offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return res, fmt.Errorf("reading %s: %w", f.Path, err)
		}
		if n == 0 {
			break
		}

		in := ingest.Input{SourceKey: f.Key, BaseOffset: cur.Offset, Chunk: buf[:n], Now: t.now}
		batch := t.parseStream(f, in, &cur)

		if err := t.record(ctx, f, batch.Events, &res); err != nil {
			return res, err
		}

		if batch.Consumed == 0 {
			if n < len(buf) || bytes.IndexByte(buf[:n], '\n') >= 0 {
				break
			}

			end, ok, err := nextLine(file, cur.Offset+int64(n), info.Size())
			if err != nil {
				return res, fmt.Errorf("reading %s: %w", f.Path, err)
			}
			if !ok {
				t.logger.Debug("oversized record not terminated yet", "source_key", f.Key, "offset", cur.Offset)
				break
			}

			t.logger.Warn("dropping record larger than read chunk",
				"source_key", f.Key,
				"offset", cur.Offset,
				"bytes", end-cur.Offset,
				"chunk", len(buf),
			)
			cur.Offset = end
			if err := t.cursors.Put(f.Key, cur); err != nil {
				return res, err
			}
			continue
		}

		cur.Offset += int64(batch.Consumed)
		if err := t.cursors.Put(f.Key, cur); err != nil {
			return res, err
		}
	}

	return res, nil
}

// nextLine returns the offset just past the first newline at or after from,
// and false when the file has no newline before size.
func nextLine(file io.ReaderAt, from, size int64) (int64, bool, error) {
	buf := make([]byte, 64<<10)
	for from < size {
		n, err := file.ReadAt(buf, from)
		if idx := bytes.IndexByte(buf[:n], '\n'); idx >= 0 {
			return from + int64(idx) + 1, true, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, false, err
		}
		if n == 0 {
			break
		}
		from += int64(n)
	}
	return 0, false, nil
}

// pollDocument parses a whole-file source when its digest changed. A
// document that fails to parse consumes nothing and keeps the old digest.
func (t *Tailer) pollDocument(ctx context.Context, f File) (Result, error) {
	var res Result

	info, err := os.Stat(f.Path)
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", f.Path, err)
	}
	if info.Size() > int64(t.chunk) {
		return res, fmt.Errorf("%s is larger than %d bytes", f.Path, t.chunk)
	}

	content, err := os.ReadFile(f.Path)
	if err != nil {
		return res, fmt.Errorf("reading %s: %w", f.Path, err)
	}

	cur := t.cursors.Get(f.Key)
	digest := event.Digest(content)
	if cur.Digest == digest {
		return res, nil
	}

	var batch event.Batch
	switch f.Kind {
	case ingest.KindOpenCodeStorage:
		batch = parseOpenCodeStorage(f, content, t.now)
	default:
		batch = parseAntigravityFile(f, content, info.ModTime(), t.now)
	}

	if batch.Consumed == 0 {
		return res, nil
	}

	if err := t.record(ctx, f, batch.Events, &res); err != nil {
		return res, err
	}

	return res, t.cursors.Put(f.Key, Cursor{Offset: int64(batch.Consumed), Digest: digest})
}

// pollRows reads settled opencode messages past the cursor row id. An
// unsettled row stops the scan so it is read again once it finishes, unless
// it was abandoned, in which case it is skipped.
func (t *Tailer) pollRows(ctx context.Context, f File) (Result, error) {
	var res Result

	db, err := opencode.OpenDB(f.Path)
	if err != nil {
		return res, err
	}
	defer db.Close()

	cur := t.cursors.Get(f.Key)
	for {
		rows, err := opencode.ReadRows(ctx, db, cur.Offset, rowBatch)
		if err != nil {
			return res, err
		}
		if len(rows) == 0 {
			return res, nil
		}

		for _, row := range rows {
			if !opencode.Settled(row) {
				if !opencode.Abandoned(row, t.now()) {
					return res, nil
				}
				t.logger.Warn("skipping abandoned opencode message", "source_key", f.Key, "message_id", row.ID, "row_id", row.RowID)
				cur.Offset = row.RowID
				if err := t.cursors.Put(f.Key, cur); err != nil {
					return res, err
				}
				continue
			}

			if ev := opencode.ParseRow(f.Key, row, t.now, opencode.Context{DefaultProject: f.Project}); ev != nil {
				if err := t.record(ctx, f, []event.Event{*ev}, &res); err != nil {
					return res, err
				}
			}

			cur.Offset = row.RowID
			if err := t.cursors.Put(f.Key, cur); err != nil {
				return res, err
			}
		}
	}
}

// record redacts and stores events, enqueueing those newly inserted.
func (t *Tailer) record(ctx context.Context, f File, events []event.Event, res *Result) error {
	for _, ev := range events {
		env := store.Envelope{Event: ev, ContentRedacted: t.redactor.Redact(ev.Content())}

		out, err := t.store.RecordEvent(ctx, env)
		if err != nil {
			return fmt.Errorf("recording event: %w", err)
		}

		res.Events++
		if !out.Inserted {
			res.Duplicates++
			continue
		}

		res.Inserted++
		if t.jobs != nil {
			job := worker.Job{Observation: store.FromEnvelope(env, out.ID, 0), SourceKey: f.Key}
			if t.jobs.Enqueue(job) {
				res.Enqueued++
			}
		}
	}
	return nil
}
