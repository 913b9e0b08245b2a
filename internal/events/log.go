package events

import (
	"context"
	"encoding/json"
	"log"
)

// LogPublisher records events to the service log. It stands in when no
// broker is configured.
type LogPublisher struct {
	logger *log.Logger
}

// NewLogPublisher constructs a log-backed publisher.
func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish writes the event to the log.
func (p *LogPublisher) Publish(_ context.Context, event any) error {
	if p == nil || p.logger == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.logger.Printf("event %s: %s", eventTypeName(event), payload)
	return nil
}
