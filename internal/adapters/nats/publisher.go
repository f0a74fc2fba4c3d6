package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// Subjects carrying domain events.
const (
	SubjectPositions    = "signalmap.positions"
	SubjectMeasurements = "signalmap.measurements"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

// streams backs each subject with JetStream. Positions are only useful while
// a survey is live; measurement events must outlive a restart of the
// heatmap invalidator.
var streams = []nats.StreamConfig{
	{
		Name:      "SIGNALMAP_POSITIONS",
		Subjects:  []string{SubjectPositions},
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * time.Minute,
		Storage:   nats.MemoryStorage,
	},
	{
		Name:      "SIGNALMAP_MEASUREMENTS",
		Subjects:  []string{SubjectMeasurements},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	},
}

func ensureStreams(js nats.JetStreamContext) error {
	for i := range streams {
		cfg := streams[i]
		if _, err := js.AddStream(&cfg); err == nil {
			continue
		}
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// publish sends v as JSON. The event id doubles as the JetStream dedup id.
func (p *Publisher) publish(ctx context.Context, subject, eventID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}
	if _, err := p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(eventID)); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// PublishPosition announces a session's latest position.
func (p *Publisher) PublishPosition(ctx context.Context, event *domain.PositionEvent) error {
	return p.publish(ctx, SubjectPositions, event.EventID, event)
}

// PublishMeasurement announces a stored location or speed result.
func (p *Publisher) PublishMeasurement(ctx context.Context, event *domain.MeasurementEvent) error {
	return p.publish(ctx, SubjectMeasurements, event.EventID, event)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn opens a plain connection, used directly by the WebSocket relay.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("signalmap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
