// Package nop is the publisher used when no event stream is configured. It
// counts what it would have sent so callers can still observe the flow.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/ctxmem/pkg/eventstream"
)

// Publisher validates and counts events without delivering them.
type Publisher struct {
	dropped atomic.Int64
}

var _ eventstream.Publisher = (*Publisher)(nil)

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishObservation rejects nil events and otherwise records the drop.
func (p *Publisher) PublishObservation(_ context.Context, event *eventstream.ObservationRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	p.dropped.Add(1)
	return nil
}

// Dropped is the number of events accepted so far.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	return nil
}
