package session

import (
	"time"

	"github.com/trezcool/mahudhurio/core"
)

// Method is how students record their attendance for a session.
type Method string

const (
	MethodElectronic Method = "electronic"
	MethodCode       Method = "code"
	MethodRollCall   Method = "roll_call"
)

var AllMethods = []string{string(MethodElectronic), string(MethodCode), string(MethodRollCall)}

// DefaultAttendanceDuration is the check-in window (minutes) used when none is given.
const DefaultAttendanceDuration = 15

// Session is one scheduled meeting period of a course in a given week.
type Session struct {
	ID                 string    `json:"id" db:"id"`
	CourseID           string    `json:"course_id" db:"course_id"`
	Week               int       `json:"week" db:"week"`
	Period             int       `json:"period" db:"period"`
	StartTime          time.Time `json:"start_time" db:"start_time"`
	EndTime            time.Time `json:"end_time" db:"end_time"`
	Room               string    `json:"room" db:"room"`
	Method             Method    `json:"method" db:"method"`
	AttendanceCode     string    `json:"-" db:"attendance_code"`
	Status             Status    `json:"status" db:"status"`
	AttendanceDuration int       `json:"attendance_duration" db:"attendance_duration"` // minutes
	IsHoliday          bool      `json:"is_holiday" db:"is_holiday"`
	IsMakeup           bool      `json:"is_makeup" db:"is_makeup"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Duration is the length of the period.
func (s Session) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// WindowEnd is the last instant a check-in is accepted.
func (s Session) WindowEnd() time.Time {
	return s.StartTime.Add(time.Duration(s.AttendanceDuration) * time.Minute)
}

// InWindow reports whether t falls within [start, start + attendance duration].
func (s Session) InWindow(t time.Time) bool {
	return !t.Before(s.StartTime) && !t.After(s.WindowEnd())
}

// IsAnchor reports whether s is period 1 of its week.
func (s Session) IsAnchor() bool { return s.Period == 1 }

// NewSession contains the information needed to schedule period 1 of a course week.
type NewSession struct {
	Week               int       `json:"week" validate:"required,min=1"`
	StartTime          time.Time `json:"start_time" validate:"required"`
	EndTime            time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Room               string    `json:"room"`
	Method             Method    `json:"method" validate:"omitempty,attendance_method"`
	AttendanceDuration int       `json:"attendance_duration" validate:"omitempty,min=1"`
	IsHoliday          bool      `json:"is_holiday"`
	IsMakeup           bool      `json:"is_makeup"`
}

func (ns *NewSession) Clean() {
	ns.Room = core.CleanString(ns.Room)
	if ns.Method == "" {
		ns.Method = MethodElectronic
	}
	if ns.AttendanceDuration == 0 {
		ns.AttendanceDuration = DefaultAttendanceDuration
	}
	ns.StartTime = ns.StartTime.UTC()
	ns.EndTime = ns.EndTime.UTC()
}

// Siblings derives periods 2..n of the week anchored on period 1, contiguous and of the same length.
func Siblings(anchor Session, n int) []Session {
	if n < 2 {
		return nil
	}
	d := anchor.Duration()
	sibs := make([]Session, 0, n-1)
	for p := 2; p <= n; p++ {
		start := anchor.StartTime.Add(time.Duration(p-1) * d)
		sibs = append(sibs, Session{
			CourseID:           anchor.CourseID,
			Week:               anchor.Week,
			Period:             p,
			StartTime:          start,
			EndTime:            start.Add(d),
			Room:               anchor.Room,
			Method:             anchor.Method,
			Status:             StatusScheduled,
			AttendanceDuration: anchor.AttendanceDuration,
			IsHoliday:          anchor.IsHoliday,
			IsMakeup:           anchor.IsMakeup,
		})
	}
	return sibs
}
