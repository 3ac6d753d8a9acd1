// Package eventstreamutils builds the configured eventstream.Publisher.
package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/ctxmem/pkg/eventstream"
	"github.com/papercomputeco/ctxmem/pkg/eventstream/kafka"
	"github.com/papercomputeco/ctxmem/pkg/eventstream/nop"
)

const ProviderKafka = "kafka"

// NewPublisherOpts selects and configures a publisher.
type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *slog.Logger
}

// NewPublisher returns the publisher for o.ProviderType. An empty provider
// yields the nop publisher.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "none":
		return nop.NewPublisher(), nil
	case ProviderKafka:
		return kafka.NewPublisher(kafka.Config{Brokers: o.Brokers, Topic: o.Topic}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %q", o.ProviderType)
	}
}
