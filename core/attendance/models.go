package attendance

import (
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/policy"
)

// Status is the adjudicated outcome of a student's participation in a session.
type Status int

const (
	StatusUndetermined Status = iota
	StatusPresent
	StatusLate
	StatusAbsent
	StatusExcused
)

var statusNames = map[Status]string{
	StatusUndetermined: "undetermined",
	StatusPresent:      "present",
	StatusLate:         "late",
	StatusAbsent:       "absent",
	StatusExcused:      "excused",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the recordable statuses (present, late, absent, excused).
func (s Status) Valid() bool {
	return s >= StatusPresent && s <= StatusExcused
}

// Attendance is the adjudicated outcome of one student's participation in one Session.
type Attendance struct {
	ID          string     `json:"id" db:"id"`
	SessionID   string     `json:"session_id" db:"session_id"`
	CourseID    string     `json:"course_id" db:"course_id"`
	StudentID   string     `json:"student_id" db:"student_id"`
	Status      Status     `json:"status" db:"status"`
	CheckedAt   *time.Time `json:"checked_at" db:"checked_at"` // nil for excuse-derived records
	LateMinutes int        `json:"late_minutes" db:"late_minutes"`
	Location    string     `json:"location,omitempty" db:"location"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// LateMinutes is the number of whole minutes elapsed between start and t, never negative.
func LateMinutes(start, t time.Time) int {
	m := int(t.Sub(start) / time.Minute)
	if m < 0 {
		return 0
	}
	return m
}

// Classify applies the policy's two-threshold ladder. Ties fall on the more favorable side.
func Classify(lateMinutes int, p policy.Policy) Status {
	switch {
	case lateMinutes > p.LateToAbsentThreshold:
		return StatusAbsent
	case lateMinutes > p.LateThreshold:
		return StatusLate
	default:
		return StatusPresent
	}
}

// CheckIn is a student's attempt to record their attendance.
type CheckIn struct {
	SessionID string `json:"-"`
	StudentID string `json:"-"`
	Code      string `json:"code"`
	Location  string `json:"location" validate:"max=255"`
}

// Entry is an instructor's roll-call entry or correction; nil fields are left untouched.
type Entry struct {
	Status      *Status `json:"status" validate:"omitempty,attendance_status"`
	LateMinutes *int    `json:"late_minutes" validate:"omitempty,min=0"`
}

// Result is what an adjudication produced: the primary record, the records written
// alongside it (propagation, sweep) and the events to dispatch once committed.
type Result struct {
	Attendance Attendance   `json:"attendance"`
	Related    []Attendance `json:"related,omitempty"`
	Events     core.Events  `json:"-"`
}
