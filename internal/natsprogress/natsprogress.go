// Package natsprogress implements a ProgressSink that publishes run
// progress to a NATS subject, with the publishing span's trace context
// propagated into message headers so a subscriber can stitch progress
// events back into the run's trace.
package natsprogress

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("artron-natsprogress")
var propagator = propagation.TraceContext{}

// Event is the message body published on every Update.
type Event struct {
	N         int       `json:"n"`
	Delta     int       `json:"delta"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink is a artron.ProgressSink that publishes a JSON Event to subject
// on every Update and a final empty-delta Event on Close.
type Sink struct {
	ctx     context.Context
	nc      *nats.Conn
	subject string
	n       int64
}

// New returns a Sink bound to nc, publishing to subject. ctx is used to
// carry the run's trace context into every published message.
func New(ctx context.Context, nc *nats.Conn, subject string) *Sink {
	return &Sink{ctx: ctx, nc: nc, subject: subject}
}

// N implements artron.ProgressSink.
func (s *Sink) N() int { return int(atomic.LoadInt64(&s.n)) }

// Update implements artron.ProgressSink: it advances the running total
// and publishes the new total and delta.
func (s *Sink) Update(delta int) {
	n := atomic.AddInt64(&s.n, int64(delta))
	s.publish(Event{N: int(n), Delta: delta, Timestamp: time.Now()})
}

// Close implements artron.ProgressSink by publishing a final, zero-delta
// event marking the run as finished.
func (s *Sink) Close() {
	s.publish(Event{N: s.N(), Delta: 0, Timestamp: time.Now()})
}

func (s *Sink) publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("natsprogress: marshal event failed", "error", err)
		return
	}

	_, span := tracer.Start(s.ctx, "natsprogress.publish")
	defer span.End()

	hdr := nats.Header{}
	propagator.Inject(s.ctx, propagation.HeaderCarrier(hdr))

	msg := &nats.Msg{Subject: s.subject, Data: data, Header: hdr}
	if err := s.nc.PublishMsg(msg); err != nil {
		slog.Warn("natsprogress: publish failed", "subject", s.subject, "error", err)
	}
}
