package attendance

import (
	"github.com/trezcool/mahudhurio/core/policy"
	"github.com/trezcool/mahudhurio/core/session"
)

// Summary aggregates a student's attendance over the closed sessions of a course.
type Summary struct {
	CourseID       string  `json:"course_id"`
	StudentID      string  `json:"student_id"`
	ClosedSessions int     `json:"closed_sessions"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	Excused        int     `json:"excused"`
	AbsenceRatio   float64 `json:"absence_ratio"`
	Score          float64 `json:"score"`
	AtRisk         bool    `json:"at_risk"`
	Failing        bool    `json:"failing"`
}

// Summarize computes the Summary of studentID from the course sessions and the student's records.
// Records of sessions that are not closed are ignored.
func Summarize(courseID, studentID string, sessions []session.Session, records []Attendance, p policy.Policy) Summary {
	sum := Summary{CourseID: courseID, StudentID: studentID}

	closed := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		if s.Status == session.StatusClosed {
			closed[s.ID] = true
		}
	}
	sum.ClosedSessions = len(closed)

	for _, a := range records {
		if !closed[a.SessionID] {
			continue
		}
		switch a.Status {
		case StatusPresent:
			sum.Present++
		case StatusLate:
			sum.Late++
		case StatusAbsent:
			sum.Absent++
		case StatusExcused:
			sum.Excused++
		}
	}

	if sum.ClosedSessions > 0 {
		sum.AbsenceRatio = float64(sum.Absent) / float64(sum.ClosedSessions)
		if full := float64(sum.ClosedSessions) * p.AttendanceWeight; full > 0 {
			earned := float64(sum.Present+sum.Excused)*p.AttendanceWeight + float64(sum.Late)*p.LateWeight
			sum.Score = earned / full
		}
	}
	sum.AtRisk = p.AbsenceDangerCount > 0 && sum.Absent >= p.AbsenceDangerCount
	sum.Failing = sum.AbsenceRatio > p.AbsenceFailRatio
	return sum
}
