package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"dairy-market-lab/internal/observability"
)

// LogPublisher writes events to the logger. Used when no broker is configured.
type LogPublisher struct {
	logger logrus.FieldLogger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Compile-time interface check.
var _ Publisher = (*LogPublisher)(nil)

// Publish logs the event at info level.
func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.WithFields(logrus.Fields{
		"event_type": e.Type,
		"key":        e.Key,
		"payload":    string(e.Payload),
	}).Info("event published")
	observability.RecordEventPublished("log", nil)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
