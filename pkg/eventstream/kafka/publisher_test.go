package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/ctxmem/pkg/eventstream"
	"github.com/papercomputeco/ctxmem/pkg/eventstream/kafka"
	"github.com/papercomputeco/ctxmem/pkg/logger"
)

type recordingWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
	deadline bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *recordingWriter
		p *kafka.Publisher
	)

	BeforeEach(func() {
		w = &recordingWriter{}
		p = kafka.NewWithWriter(w, "observations", 0, logger.Nop())
	})

	It("validates config", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"}, nil)
		Expect(err).To(MatchError(ContainSubstring("broker")))
		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}}, nil)
		Expect(err).To(MatchError(ContainSubstring("topic")))
	})

	It("rejects nil events", func() {
		Expect(p.PublishObservation(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("writes a keyed JSON message with headers", func() {
		ev := &eventstream.ObservationRecordedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeObservationRecorded,
			EmittedAt:     time.Unix(1767225600, 0).UTC(),
			Observation:   eventstream.ObservationPayload{ID: "obs-1", SessionID: "sess-1"},
		}
		Expect(p.PublishObservation(context.Background(), ev)).To(Succeed())

		Expect(w.messages).To(HaveLen(1))
		msg := w.messages[0]
		Expect(string(msg.Key)).To(Equal("sess-1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "schema_version", Value: []byte("1")}))
		Expect(w.deadline).To(BeTrue())

		var decoded eventstream.ObservationRecordedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.Observation.ID).To(Equal("obs-1"))
	})

	It("wraps write failures", func() {
		w.err = errors.New("broker down")
		err := p.PublishObservation(context.Background(), &eventstream.ObservationRecordedEvent{})
		Expect(err).To(MatchError(ContainSubstring("publishing to observations")))
		Expect(errors.Unwrap(err)).To(MatchError("broker down"))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
