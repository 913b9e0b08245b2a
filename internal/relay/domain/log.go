// Package relay models the watering relay's activity log. The cloud never
// drives the relay directly; devices report what happened and operators
// record intents, so the log is append-only and advisory.
package relay

import (
	"context"
	"errors"
	"time"
)

// Actions a relay log row can carry.
const (
	ActionActivated   = "activated"
	ActionDeactivated = "deactivated"
	ActionScheduled   = "scheduled"
)

// Events a device may report. schedule_added is acknowledged but never
// logged here; schedule bookkeeping lives with the schedules module.
const (
	EventManualActivation  = "manual_activation"
	EventScheduleTriggered = "schedule_triggered"
	EventDeactivation      = "deactivation"
	EventScheduleAdded     = "schedule_added"
)

// ErrNotFound is returned when no log row matches a lookup.
var ErrNotFound = errors.New("relay log: not found")

// Log is one relay state change for one device.
type Log struct {
	ID              int64
	DeviceID        int64
	Action          string
	DurationSeconds *int
	CreatedAt       time.Time
}

// ActionForEvent maps a reported event to the action stored for it.
// The second return is false for events that carry no log row.
func ActionForEvent(event string) (string, bool) {
	switch event {
	case EventManualActivation:
		return ActionActivated, true
	case EventScheduleTriggered:
		return ActionScheduled, true
	case EventDeactivation:
		return ActionDeactivated, true
	default:
		return "", false
	}
}

// EventNeedsDuration reports whether an event must carry a duration.
func EventNeedsDuration(event string) bool {
	return event == EventManualActivation || event == EventScheduleTriggered
}

// ValidAction reports whether action is one of the stored actions.
func ValidAction(action string) bool {
	switch action {
	case ActionActivated, ActionDeactivated, ActionScheduled:
		return true
	default:
		return false
	}
}

// ListFilter narrows a log listing. Zero values mean "no constraint".
type ListFilter struct {
	DeviceID int64
	Action   string
	From     time.Time
	To       time.Time
	Limit    int
}

// LogRepository is the storage contract for relay activity.
type LogRepository interface {
	Insert(ctx context.Context, log *Log) (*Log, error)

	// List returns rows newest first, honoring the filter.
	List(ctx context.Context, filter ListFilter) ([]Log, error)

	// Latest returns the newest row for one device, or ErrNotFound.
	Latest(ctx context.Context, deviceID int64) (*Log, error)
}
