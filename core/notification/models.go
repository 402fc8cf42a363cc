package notification

import (
	"fmt"
	"time"

	"github.com/trezcool/mahudhurio/core/policy"
)

// Kinds
const (
	KindAttendanceOpened = "attendance_opened"
	KindAttendanceClosed = "attendance_closed"
	KindAbsenceWarning   = "absence_warning"
	KindAbsenceDanger    = "absence_danger"
	KindExcuseApproved   = "excuse_approved"
	KindExcuseRejected   = "excuse_rejected"
)

// Notification is a one-shot message to a user about a domain event.
type Notification struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Kind      string     `json:"kind" db:"kind"`
	CourseID  string     `json:"course_id,omitempty" db:"course_id"`
	SessionID string     `json:"session_id,omitempty" db:"session_id"`
	ExcuseID  string     `json:"excuse_id,omitempty" db:"excuse_id"`
	Title     string     `json:"title" db:"title"`
	Body      string     `json:"body" db:"body"`
	DedupeKey string     `json:"-" db:"dedupe_key"`
	IsRead    bool       `json:"is_read" db:"is_read"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ReadAt    *time.Time `json:"read_at" db:"read_at"`
}

// Crossings returns the absence notification kinds fired when a student's absence count is exactly count.
func Crossings(count int, p policy.Policy) []string {
	var kinds []string
	if count > 0 && count == p.AbsenceWarningCount {
		kinds = append(kinds, KindAbsenceWarning)
	}
	if count > 0 && count == p.AbsenceDangerCount {
		kinds = append(kinds, KindAbsenceDanger)
	}
	return kinds
}

// AbsenceKey identifies one threshold crossing of a student in a course.
func AbsenceKey(kind, courseID, studentID string, count int) string {
	return fmt.Sprintf("%s:%s:%s:%d", kind, courseID, studentID, count)
}

func sessionKey(kind, sessionID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", kind, sessionID, userID)
}

func excuseKey(kind, excuseID string) string {
	return fmt.Sprintf("%s:%s", kind, excuseID)
}
