package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	registry "watering-cloud/internal/registry/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// memoryRegistry applies the sweep predicate over in-memory devices the
// same way the SQL bulk update does: strictly-older-than cutoff, or never
// reported, and not already inactive.
type memoryRegistry struct {
	mu      sync.Mutex
	devices []*registry.Device
	fail    bool
}

func (m *memoryRegistry) MarkStale(_ context.Context, cutoff time.Time, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, errors.New("storage unavailable")
	}
	var affected int64
	for _, device := range m.devices {
		if device.Status == registry.StatusInactive {
			continue
		}
		if device.LastSeenAt == nil || device.LastSeenAt.Before(cutoff) {
			device.Status = registry.StatusInactive
			device.UpdatedAt = now
			affected++
		}
	}
	return affected, nil
}

type recordingChannel struct {
	messages []string
}

func (c *recordingChannel) Send(_ context.Context, content string) error {
	c.messages = append(c.messages, content)
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.Writer(), "", 0)
}

func TestEvaluator_DemotesStaleDevice(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-6 * time.Minute)
	repo := &memoryRegistry{devices: []*registry.Device{
		{ID: 1, Status: registry.StatusActive, LastSeenAt: &seen},
	}}
	evaluator, err := NewEvaluator(repo, fixedClock{now: now}, 5*time.Minute, testLogger())
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	demoted, err := evaluator.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if demoted != 1 {
		t.Fatalf("expected 1 demoted, got %d", demoted)
	}
	if repo.devices[0].Status != registry.StatusInactive {
		t.Fatalf("expected device inactive, got %s", repo.devices[0].Status)
	}
}

func TestEvaluator_NeverReportedIsDemoted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &memoryRegistry{devices: []*registry.Device{
		{ID: 1, Status: registry.StatusActive, LastSeenAt: nil},
	}}
	evaluator, err := NewEvaluator(repo, fixedClock{now: now}, 5*time.Minute, testLogger())
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	demoted, err := evaluator.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if demoted != 1 {
		t.Fatalf("expected 1 demoted, got %d", demoted)
	}
}

func TestEvaluator_BoundaryExactlyAtThresholdIsNotStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-5 * time.Minute)
	repo := &memoryRegistry{devices: []*registry.Device{
		{ID: 1, Status: registry.StatusActive, LastSeenAt: &seen},
	}}
	evaluator, err := NewEvaluator(repo, fixedClock{now: now}, 5*time.Minute, testLogger())
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	demoted, err := evaluator.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if demoted != 0 {
		t.Fatalf("expected 0 demoted at exact threshold, got %d", demoted)
	}
	if repo.devices[0].Status != registry.StatusActive {
		t.Fatalf("expected device still active, got %s", repo.devices[0].Status)
	}
}

func TestEvaluator_SecondRunIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-10 * time.Minute)
	repo := &memoryRegistry{devices: []*registry.Device{
		{ID: 1, Status: registry.StatusActive, LastSeenAt: &seen},
		{ID: 2, Status: registry.StatusInactive, LastSeenAt: nil},
	}}
	evaluator, err := NewEvaluator(repo, fixedClock{now: now}, 5*time.Minute, testLogger())
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	first, err := evaluator.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected 1 demoted on first run, got %d", first)
	}

	second, err := evaluator.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second != 0 {
		t.Fatalf("expected idempotent second run, got %d", second)
	}
}

func TestEvaluator_StorageFailureAbortsRun(t *testing.T) {
	repo := &memoryRegistry{fail: true}
	evaluator, err := NewEvaluator(repo, fixedClock{now: time.Now()}, 5*time.Minute, testLogger())
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	if _, err := evaluator.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from failing storage")
	}
}

func TestEvaluator_NotifiesOnDemotion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &memoryRegistry{devices: []*registry.Device{
		{ID: 1, Status: registry.StatusActive, LastSeenAt: nil},
	}}
	channel := &recordingChannel{}
	evaluator, err := NewEvaluator(repo, fixedClock{now: now}, 5*time.Minute, testLogger(), WithNotifyChannel(channel))
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	if _, err := evaluator.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(channel.messages) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(channel.messages))
	}

	// No further demotion, no further notification.
	if _, err := evaluator.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(channel.messages) != 1 {
		t.Fatalf("expected no notification on no-op run, got %d", len(channel.messages))
	}
}
