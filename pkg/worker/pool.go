// Package worker runs the asynchronous follow-up for newly recorded
// observations: embedding them into the vector index and announcing them on
// the event stream. Ingestion never waits on either.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/ctxmem/pkg/eventstream"
	"github.com/papercomputeco/ctxmem/pkg/logger"
	"github.com/papercomputeco/ctxmem/pkg/store"
)

const (
	defaultNumWorkers uint = 2
	defaultQueueSize  uint = 256
	defaultJobTimeout      = 30 * time.Second
)

// Job is one inserted observation to follow up on.
type Job struct {
	Observation store.Observation
	SourceKey   string
}

// Config configures the pool. Vectors and Publisher are both optional.
type Config struct {
	Vectors   *store.VectorIndex
	Publisher eventstream.Publisher

	NumWorkers uint
	QueueSize  uint

	// JobTimeout bounds the work done for a single job.
	JobTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Stats counts job outcomes.
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Pool processes jobs on a fixed set of goroutines.
type Pool struct {
	config Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewPool starts the workers.
func NewPool(c Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt32) {
		return nil, fmt.Errorf("worker count %d is too large", c.NumWorkers)
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger.OrNop(c.Logger),
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.run(i)
	}
	return p, nil
}

// Enqueue hands job to the pool without blocking. A full queue drops the
// job and returns false.
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("worker queue full, job dropped", "observation_id", job.Observation.ID)
		return false
	}
}

// Close stops accepting work and waits for queued jobs to finish. It is
// safe to call more than once. Enqueue must not be called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Pool) run(id uint) {
	defer p.wg.Done()

	for job := range p.queue {
		if err := p.process(job); err != nil {
			p.failed.Add(1)
			p.logger.Warn("observation follow-up failed",
				"worker_id", id,
				"observation_id", job.Observation.ID,
				"error", err,
			)
			continue
		}
		p.processed.Add(1)
	}
}

// process indexes and publishes job. Both steps run even when the first
// fails; their errors are joined.
func (p *Pool) process(job Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	var errs []error
	if p.config.Vectors.Enabled() {
		if err := p.config.Vectors.Index(ctx, job.Observation); err != nil {
			errs = append(errs, fmt.Errorf("indexing embedding: %w", err))
		}
	}

	if p.config.Publisher != nil {
		ev := eventstream.NewObservationRecorded(job.Observation, job.SourceKey, p.config.Now())
		if err := p.config.Publisher.PublishObservation(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("publishing event: %w", err))
		}
	}

	return errors.Join(errs...)
}
