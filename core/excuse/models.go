package excuse

import (
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

// Reasons
const (
	ReasonSickLeave   = "sick-leave"
	ReasonBereavement = "bereavement"
	ReasonOther       = "other"
)

var AllReasons = []string{ReasonSickLeave, ReasonBereavement, ReasonOther}

// Decision statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var AllDecisions = []string{StatusApproved, StatusRejected}

// Excuse is a student's claim that a whole course week should be excused.
// It is decided as a unit; its per-period Requests carry no decision of their own.
type Excuse struct {
	ID          string     `json:"id" db:"id"`
	CourseID    string     `json:"course_id" db:"course_id"`
	Week        int        `json:"week" db:"week"`
	StudentID   string     `json:"student_id" db:"student_id"`
	ReasonCode  string     `json:"reason_code" db:"reason_code"`
	ReasonText  string     `json:"reason_text,omitempty" db:"reason_text"`
	Files       []string   `json:"files,omitempty" db:"files"`
	Status      string     `json:"status" db:"status"`
	Comment     string     `json:"comment,omitempty" db:"comment"`
	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at" db:"reviewed_at"`
	Requests    []Request  `json:"requests" db:"-"`
}

func (e Excuse) IsPending() bool { return e.Status == StatusPending }

// SessionIDs lists the sessions the excuse covers.
func (e Excuse) SessionIDs() []string {
	ids := make([]string, 0, len(e.Requests))
	for _, r := range e.Requests {
		ids = append(ids, r.SessionID)
	}
	return ids
}

func (e Excuse) covers(sessionID string) bool {
	for _, r := range e.Requests {
		if r.SessionID == sessionID {
			return true
		}
	}
	return false
}

// Request is the per-period row of an Excuse.
type Request struct {
	ID        string `json:"id" db:"id"`
	ExcuseID  string `json:"excuse_id" db:"excuse_id"`
	SessionID string `json:"session_id" db:"session_id"`
	Period    int    `json:"period" db:"period"`
}

// NewExcuse is what a student submits for a week.
type NewExcuse struct {
	ReasonCode string   `json:"reason_code" validate:"required,excuse_reason"`
	ReasonText string   `json:"reason_text" validate:"max=2000"`
	Files      []string `json:"files" validate:"dive,notblank"`
}

func (ne *NewExcuse) Clean() {
	ne.ReasonCode = core.CleanString(ne.ReasonCode, true /* lower */)
	ne.ReasonText = core.CleanString(ne.ReasonText)
	files := ne.Files[:0]
	for _, f := range ne.Files {
		if f = core.CleanString(f); f != "" {
			files = append(files, f)
		}
	}
	ne.Files = files
}

// Decision is an instructor's ruling over a whole Excuse.
type Decision struct {
	Status  string `json:"status" validate:"required,excuse_decision"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Outcome is what deciding an Excuse produced.
type Outcome struct {
	Excuse      Excuse                  `json:"excuse"`
	Attendances []attendance.Attendance `json:"attendances,omitempty"`
	Events      core.Events             `json:"-"`
}
