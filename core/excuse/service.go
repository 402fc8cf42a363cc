package excuse

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/session"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("excuse request not found")
	ErrNoSessions      = core.NewNotFoundError("no sessions scheduled for this course week")
	ErrDuplicate       = core.NewConflictError("an excuse was already submitted for this week")
	ErrAlreadyDecided  = core.NewConflictError("excuse has already been decided")
	ErrInvalidReason   = core.NewValidationError(nil, core.FieldError{Field: "reason_code", Error: reasonText})
	ErrInvalidDecision = core.NewValidationError(nil, core.FieldError{Field: "status", Error: decisionText})
)

type (
	Repository interface {
		// CreateExcuse inserts the excuse and its requests; ErrDuplicate if the student already has one for the week.
		CreateExcuse(ctx context.Context, e Excuse) (Excuse, error)
		// GetExcuseByRequest finds the excuse owning the given request (or with the given ID).
		GetExcuseByRequest(ctx context.Context, id string) (Excuse, error)
		QueryStudentExcuses(ctx context.Context, courseID, studentID string) ([]Excuse, error)
		// UpdateExcuse saves the decision of a pending excuse and inserts requests it does not have yet.
		// ErrAlreadyDecided if the stored excuse is no longer pending.
		UpdateExcuse(ctx context.Context, e Excuse) (Excuse, error)
	}

	SessionReader interface {
		QueryWeek(ctx context.Context, courseID string, week int) ([]session.Session, error)
	}

	AttendanceExcuser interface {
		Excuse(ctx context.Context, s session.Session, studentID string) (attendance.Attendance, error)
	}

	Service struct {
		repo     Repository
		sessions SessionReader
		excuser  AttendanceExcuser
	}
)

func NewService(repo Repository, sessions SessionReader, excuser AttendanceExcuser) *Service {
	return &Service{repo: repo, sessions: sessions, excuser: excuser}
}

func (svc *Service) Get(ctx context.Context, id string) (Excuse, error) {
	return svc.repo.GetExcuseByRequest(ctx, id)
}

func (svc *Service) StudentExcuses(ctx context.Context, courseID, studentID string) ([]Excuse, error) {
	return svc.repo.QueryStudentExcuses(ctx, courseID, studentID)
}

// SubmitWeekly files a pending excuse covering every session of the course week.
func (svc *Service) SubmitWeekly(ctx context.Context, courseID string, week int, studentID string, ne NewExcuse) (Excuse, error) {
	ne.Clean()
	if !validReason(ne.ReasonCode) {
		return Excuse{}, ErrInvalidReason
	}

	sessions, err := svc.sessions.QueryWeek(ctx, courseID, week)
	if err != nil {
		return Excuse{}, errors.Wrap(err, "querying week sessions")
	}
	if len(sessions) == 0 {
		return Excuse{}, ErrNoSessions
	}

	e := Excuse{
		CourseID:    courseID,
		Week:        week,
		StudentID:   studentID,
		ReasonCode:  ne.ReasonCode,
		ReasonText:  ne.ReasonText,
		Files:       ne.Files,
		Status:      StatusPending,
		SubmittedAt: core.NowFunc(),
		Requests:    make([]Request, 0, len(sessions)),
	}
	for _, s := range sessions {
		e.Requests = append(e.Requests, Request{SessionID: s.ID, Period: s.Period})
	}
	return svc.repo.CreateExcuse(ctx, e)
}

// Decide rules on the whole week the request belongs to. Approval excuses the student's
// attendance for every session of the week, overriding any prior status.
// Sessions materialized after submission join the excuse.
func (svc *Service) Decide(ctx context.Context, requestID string, d Decision) (Outcome, error) {
	if d.Status != StatusApproved && d.Status != StatusRejected {
		return Outcome{}, ErrInvalidDecision
	}

	e, err := svc.repo.GetExcuseByRequest(ctx, requestID)
	if err != nil {
		return Outcome{}, err
	}
	if !e.IsPending() {
		return Outcome{}, ErrAlreadyDecided
	}

	sessions, err := svc.sessions.QueryWeek(ctx, e.CourseID, e.Week)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "querying week sessions")
	}
	for _, s := range sessions {
		if !e.covers(s.ID) {
			e.Requests = append(e.Requests, Request{ExcuseID: e.ID, SessionID: s.ID, Period: s.Period})
		}
	}

	now := core.NowFunc()
	e.Status = d.Status
	e.Comment = core.CleanString(d.Comment)
	e.ReviewedAt = &now

	e, err = svc.repo.UpdateExcuse(ctx, e)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyDecided {
			return Outcome{}, err // decided concurrently
		}
		return Outcome{}, errors.Wrap(err, "saving excuse decision")
	}

	out := Outcome{Excuse: e}
	out.Events.Add(core.Event{
		Kind:      core.EventExcuseDecided,
		CourseID:  e.CourseID,
		StudentID: e.StudentID,
		ExcuseID:  e.ID,
		Week:      e.Week,
		Detail:    e.Status,
	})
	if e.Status != StatusApproved {
		return out, nil
	}

	for _, s := range sessions {
		a, err := svc.excuser.Excuse(ctx, s, e.StudentID)
		if err != nil {
			return Outcome{}, errors.Wrapf(err, "excusing period %d", s.Period)
		}
		out.Attendances = append(out.Attendances, a)
		out.Events.Add(core.Event{
			Kind:         core.EventAttendanceRecorded,
			CourseID:     a.CourseID,
			SessionID:    a.SessionID,
			StudentID:    a.StudentID,
			AttendanceID: a.ID,
			ExcuseID:     e.ID,
			Week:         e.Week,
			Detail:       a.Status.String(),
		})
	}
	return out, nil
}

func validReason(code string) bool {
	for _, r := range AllReasons {
		if code == r {
			return true
		}
	}
	return false
}
