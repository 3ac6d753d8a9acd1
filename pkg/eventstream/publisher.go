package eventstream

import "context"

// Publisher delivers observation events to a stream backend.
type Publisher interface {
	PublishObservation(ctx context.Context, event *ObservationRecordedEvent) error
	Close() error
}
