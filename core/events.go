package core

import (
	"context"
	"time"
)

// EventKind names a domain event emitted by the attendance engine.
type EventKind string

const (
	EventSessionOpened      EventKind = "session_opened"
	EventSessionClosed      EventKind = "session_closed"
	EventAttendanceRecorded EventKind = "attendance_recorded"
	// EventAbsenceAdded is emitted whenever a mutation adds an absence for a student;
	// the notifier re-checks absence thresholds on it.
	EventAbsenceAdded  EventKind = "absence_added"
	EventExcuseDecided EventKind = "excuse_decided"
)

// Event is a fact produced by an engine operation, consumed after the operation committed.
type Event struct {
	Kind         EventKind `json:"kind"`
	CourseID     string    `json:"course_id"`
	SessionID    string    `json:"session_id,omitempty"`
	StudentID    string    `json:"student_id,omitempty"`
	AttendanceID string    `json:"attendance_id,omitempty"`
	ExcuseID     string    `json:"excuse_id,omitempty"`
	Week         int       `json:"week,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Events []Event

func (evs *Events) Add(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = NowFunc()
	}
	*evs = append(*evs, ev)
}

// EventHandler consumes the events of a committed operation.
type EventHandler interface {
	Handle(ctx context.Context, events Events)
}
