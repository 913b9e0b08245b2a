package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"watering-cloud/internal/events"
	"watering-cloud/internal/heartbeat/notify"
	"watering-cloud/internal/observability/metrics"
)

// Clock supplies current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// StaleMarker demotes devices whose heartbeat predates the cutoff.
type StaleMarker interface {
	MarkStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error)
}

// Evaluator runs the periodic offline sweep: any device that has not
// reported within the staleness threshold is demoted to inactive.
type Evaluator struct {
	repo      StaleMarker
	clock     Clock
	threshold time.Duration
	logger    *log.Logger
	channel   notify.Channel
	publisher events.Publisher
}

// Option configures the evaluator.
type Option func(*Evaluator)

// WithNotifyChannel sets an offline notification channel.
func WithNotifyChannel(channel notify.Channel) Option {
	return func(e *Evaluator) { e.channel = channel }
}

// WithPublisher sets a fleet event publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(e *Evaluator) { e.publisher = publisher }
}

// NewEvaluator constructs an evaluator.
func NewEvaluator(repo StaleMarker, clock Clock, threshold time.Duration, logger *log.Logger, opts ...Option) (*Evaluator, error) {
	if repo == nil {
		return nil, errors.New("heartbeat evaluator: nil repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if threshold <= 0 {
		return nil, errors.New("heartbeat evaluator: threshold must be positive")
	}
	if logger == nil {
		logger = log.Default()
	}
	evaluator := &Evaluator{repo: repo, clock: clock, threshold: threshold, logger: logger}
	for _, opt := range opts {
		opt(evaluator)
	}
	return evaluator, nil
}

// RunOnce performs one sweep and returns the number of demoted devices.
// A storage failure aborts the run; the next scheduled run retries.
func (e *Evaluator) RunOnce(ctx context.Context) (int64, error) {
	now := e.clock.Now().UTC()
	cutoff := now.Add(-e.threshold)

	start := time.Now()
	demoted, err := e.repo.MarkStale(ctx, cutoff, now)
	if err != nil {
		metrics.ObserveSweep("error", 0, time.Since(start))
		return 0, err
	}
	metrics.ObserveSweep("success", demoted, time.Since(start))

	if demoted > 0 {
		e.logger.Printf("heartbeat sweep: marked %d devices as inactive", demoted)
		e.notify(ctx, demoted, now)
	}
	return demoted, nil
}

// Start begins the sweep loop with the given interval.
func (e *Evaluator) Start(ctx context.Context, interval time.Duration) {
	if e == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.RunOnce(ctx); err != nil {
				e.logger.Printf("heartbeat sweep error: %v", err)
			}
		}
	}
}

func (e *Evaluator) notify(ctx context.Context, demoted int64, now time.Time) {
	if e.channel != nil {
		content := fmt.Sprintf("watering fleet: %d device(s) went offline at %s", demoted, now.Format(time.RFC3339))
		if err := e.channel.Send(ctx, content); err != nil {
			e.logger.Printf("heartbeat notify error: %v", err)
		}
	}
	if e.publisher != nil {
		event := events.DeviceOffline{DeviceCount: demoted, OccurredAt: now}
		if err := e.publisher.Publish(ctx, event); err != nil {
			e.logger.Printf("heartbeat publish error: %v", err)
		}
	}
}
