package attendance

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/policy"
	"github.com/trezcool/mahudhurio/core/session"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("attendance not found")
	ErrDuplicate        = core.NewConflictError("attendance already recorded for this session")
	ErrNotEnrolled      = core.NewConflictError("student is not enrolled in this course")
	ErrSessionNotOpen   = core.NewConflictError("session is not open for check-in")
	ErrOutsideWindow    = core.NewConflictError("check-in window is closed")
	ErrInvalidCode      = core.NewValidationError(nil, core.FieldError{Field: "code", Error: "invalid attendance code"})
	ErrInvalidStatus    = core.NewValidationError(nil, core.FieldError{Field: "status", Error: "status must be one of 1 (present), 2 (late), 3 (absent) or 4 (excused)"})
	ErrNegativeLateness = core.NewValidationError(nil, core.FieldError{Field: "late_minutes", Error: "late minutes cannot be negative"})
)

type (
	Repository interface {
		// CreateAttendance inserts a unique (session, student) record; ErrDuplicate if one exists.
		CreateAttendance(ctx context.Context, a Attendance) (Attendance, error)
		GetAttendance(ctx context.Context, id string) (Attendance, error)
		GetSessionAttendance(ctx context.Context, sessionID, studentID string) (Attendance, error)
		QuerySessionAttendances(ctx context.Context, sessionID string) ([]Attendance, error)
		QueryStudentAttendances(ctx context.Context, courseID, studentID string) ([]Attendance, error)
		UpdateAttendance(ctx context.Context, a Attendance) (Attendance, error)
		// CountAbsences counts absent records of the student across all the course's sessions.
		CountAbsences(ctx context.Context, courseID, studentID string) (int, error)
	}

	SessionReader interface {
		GetSession(ctx context.Context, id string) (session.Session, error)
		QueryWeek(ctx context.Context, courseID string, week int) ([]session.Session, error)
	}

	Enrollment interface {
		IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
		EnrolledStudents(ctx context.Context, courseID string) ([]string, error)
	}

	PolicyProvider interface {
		GetOrCreateDefault(ctx context.Context, courseID string) (policy.Policy, error)
	}

	// Service is the attendance adjudicator.
	Service struct {
		repo       Repository
		sessions   SessionReader
		enrollment Enrollment
		policies   PolicyProvider
	}
)

func NewService(repo Repository, sessions SessionReader, enrollment Enrollment, policies PolicyProvider) *Service {
	return &Service{
		repo:       repo,
		sessions:   sessions,
		enrollment: enrollment,
		policies:   policies,
	}
}

func (svc *Service) Get(ctx context.Context, id string) (Attendance, error) {
	return svc.repo.GetAttendance(ctx, id)
}

func (svc *Service) SessionAttendances(ctx context.Context, sessionID string) ([]Attendance, error) {
	return svc.repo.QuerySessionAttendances(ctx, sessionID)
}

func (svc *Service) StudentAttendances(ctx context.Context, courseID, studentID string) ([]Attendance, error) {
	return svc.repo.QueryStudentAttendances(ctx, courseID, studentID)
}

func (svc *Service) CountAbsences(ctx context.Context, courseID, studentID string) (int, error) {
	return svc.repo.CountAbsences(ctx, courseID, studentID)
}

func (svc *Service) checkEnrolled(ctx context.Context, courseID, studentID string) error {
	ok, err := svc.enrollment.IsEnrolled(ctx, courseID, studentID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !ok {
		return ErrNotEnrolled
	}
	return nil
}

// CheckIn validates and adjudicates a student's check-in. Checking into period 1 also records
// the same status for every other period of the week the student has no record for.
func (svc *Service) CheckIn(ctx context.Context, ci CheckIn) (Result, error) {
	now := core.NowFunc()

	s, err := svc.sessions.GetSession(ctx, ci.SessionID)
	if err != nil {
		return Result{}, err
	}
	if err = svc.checkEnrolled(ctx, s.CourseID, ci.StudentID); err != nil {
		return Result{}, err
	}
	if s.Status != session.StatusOpen {
		return Result{}, ErrSessionNotOpen
	}
	if !s.InWindow(now) {
		return Result{}, ErrOutsideWindow
	}
	if s.Method == session.MethodCode && (s.AttendanceCode == "" || strings.ToUpper(core.CleanString(ci.Code)) != s.AttendanceCode) {
		return Result{}, ErrInvalidCode
	}

	p, err := svc.policies.GetOrCreateDefault(ctx, s.CourseID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting policy")
	}

	late := LateMinutes(s.StartTime, now)
	a, err := svc.repo.CreateAttendance(ctx, Attendance{
		SessionID:   s.ID,
		CourseID:    s.CourseID,
		StudentID:   ci.StudentID,
		Status:      Classify(late, p),
		CheckedAt:   &now,
		LateMinutes: late,
		Location:    core.CleanString(ci.Location),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Attendance: a}
	res.Events.Add(recordedEvent(a, s.Week))

	if s.IsAnchor() {
		res.Related, err = svc.propagate(ctx, s, a, &res.Events)
		if err != nil {
			return Result{}, err
		}
	}
	if a.Status == StatusAbsent {
		res.Events.Add(absenceEvent(a, s.Week))
	}
	return res, nil
}

// propagate copies the anchor's status to the other periods of the week lacking a record.
// Propagated records are never late themselves.
func (svc *Service) propagate(ctx context.Context, anchor session.Session, a Attendance, evs *core.Events) ([]Attendance, error) {
	week, err := svc.sessions.QueryWeek(ctx, anchor.CourseID, anchor.Week)
	if err != nil {
		return nil, errors.Wrap(err, "querying week sessions")
	}

	var propagated []Attendance
	for _, s := range week {
		if s.Period <= 1 {
			continue
		}
		pa, err := svc.repo.CreateAttendance(ctx, Attendance{
			SessionID:   s.ID,
			CourseID:    s.CourseID,
			StudentID:   a.StudentID,
			Status:      a.Status,
			CheckedAt:   a.CheckedAt,
			LateMinutes: 0,
			Location:    a.Location,
			CreatedAt:   a.CreatedAt,
			UpdatedAt:   a.UpdatedAt,
		})
		if err != nil {
			if errors.Cause(err) == ErrDuplicate {
				continue // independent record wins
			}
			return nil, errors.Wrap(err, "propagating attendance")
		}
		propagated = append(propagated, pa)
		evs.Add(recordedEvent(pa, s.Week))
		if pa.Status == StatusAbsent {
			evs.Add(absenceEvent(pa, s.Week))
		}
	}
	return propagated, nil
}

// RollCall upserts the student's record for the session. A new record defaults to present;
// an existing one only gets the supplied fields, and its checked-at is set only if it was unset.
func (svc *Service) RollCall(ctx context.Context, sessionID, studentID string, e Entry) (Result, error) {
	if err := validateEntry(e); err != nil {
		return Result{}, err
	}

	s, err := svc.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if err = svc.checkEnrolled(ctx, s.CourseID, studentID); err != nil {
		return Result{}, err
	}

	prior, err := svc.repo.GetSessionAttendance(ctx, sessionID, studentID)
	switch {
	case err == nil:
		return svc.apply(ctx, prior, e, s.Week)
	case errors.Cause(err) != ErrNotFound:
		return Result{}, errors.Wrap(err, "getting session attendance")
	}

	now := core.NowFunc()
	a := Attendance{
		SessionID: s.ID,
		CourseID:  s.CourseID,
		StudentID: studentID,
		Status:    StatusPresent,
		CheckedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if e.Status != nil {
		a.Status = *e.Status
	}
	if e.LateMinutes != nil {
		a.LateMinutes = *e.LateMinutes
	}

	a, err = svc.repo.CreateAttendance(ctx, a)
	if err != nil {
		if errors.Cause(err) != ErrDuplicate {
			return Result{}, errors.Wrap(err, "creating attendance")
		}
		// a check-in landed in between: upsert onto it
		if prior, err = svc.repo.GetSessionAttendance(ctx, sessionID, studentID); err != nil {
			return Result{}, errors.Wrap(err, "getting session attendance")
		}
		return svc.apply(ctx, prior, e, s.Week)
	}

	res := Result{Attendance: a}
	res.Events.Add(recordedEvent(a, s.Week))
	if a.Status == StatusAbsent {
		res.Events.Add(absenceEvent(a, s.Week))
	}
	return res, nil
}

// Correct overwrites the supplied fields of an existing record.
func (svc *Service) Correct(ctx context.Context, attendanceID string, e Entry) (Result, error) {
	if err := validateEntry(e); err != nil {
		return Result{}, err
	}
	prior, err := svc.repo.GetAttendance(ctx, attendanceID)
	if err != nil {
		return Result{}, err
	}
	s, err := svc.sessions.GetSession(ctx, prior.SessionID)
	if err != nil {
		return Result{}, errors.Wrap(err, "getting attendance session")
	}
	return svc.apply(ctx, prior, e, s.Week)
}

func (svc *Service) apply(ctx context.Context, prior Attendance, e Entry, week int) (Result, error) {
	a := prior
	if e.Status != nil {
		a.Status = *e.Status
	}
	if e.LateMinutes != nil {
		a.LateMinutes = *e.LateMinutes
	}
	now := core.NowFunc()
	if a.CheckedAt == nil {
		a.CheckedAt = &now
	}
	a.UpdatedAt = now

	a, err := svc.repo.UpdateAttendance(ctx, a)
	if err != nil {
		return Result{}, errors.Wrap(err, "updating attendance")
	}

	res := Result{Attendance: a}
	res.Events.Add(recordedEvent(a, week))
	if a.Status == StatusAbsent && prior.Status != StatusAbsent {
		res.Events.Add(absenceEvent(a, week))
	}
	return res, nil
}

// MarkAbsentees records an absence for every enrolled student without a record for s.
// A record created concurrently counts as already handled.
func (svc *Service) MarkAbsentees(ctx context.Context, s session.Session) (Result, error) {
	students, err := svc.enrollment.EnrolledStudents(ctx, s.CourseID)
	if err != nil {
		return Result{}, errors.Wrap(err, "querying enrolled students")
	}
	existing, err := svc.repo.QuerySessionAttendances(ctx, s.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "querying session attendances")
	}
	recorded := make(map[string]bool, len(existing))
	for _, a := range existing {
		recorded[a.StudentID] = true
	}

	now := core.NowFunc()
	var res Result
	for _, studentID := range students {
		if recorded[studentID] {
			continue
		}
		a, err := svc.repo.CreateAttendance(ctx, Attendance{
			SessionID:   s.ID,
			CourseID:    s.CourseID,
			StudentID:   studentID,
			Status:      StatusAbsent,
			CheckedAt:   &now,
			LateMinutes: 0,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			if errors.Cause(err) == ErrDuplicate {
				continue
			}
			return Result{}, errors.Wrap(err, "marking absence")
		}
		res.Related = append(res.Related, a)
		res.Events.Add(recordedEvent(a, s.Week))
		res.Events.Add(absenceEvent(a, s.Week))
	}
	return res, nil
}

// Excuse sets the student's record for the session to excused, creating it (with no checked-at) if needed.
func (svc *Service) Excuse(ctx context.Context, s session.Session, studentID string) (Attendance, error) {
	now := core.NowFunc()
	a, err := svc.repo.CreateAttendance(ctx, Attendance{
		SessionID: s.ID,
		CourseID:  s.CourseID,
		StudentID: studentID,
		Status:    StatusExcused,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err == nil {
		return a, nil
	}
	if errors.Cause(err) != ErrDuplicate {
		return Attendance{}, errors.Wrap(err, "creating excused attendance")
	}

	a, err = svc.repo.GetSessionAttendance(ctx, s.ID, studentID)
	if err != nil {
		return Attendance{}, errors.Wrap(err, "getting session attendance")
	}
	a.Status = StatusExcused
	a.UpdatedAt = now
	a, err = svc.repo.UpdateAttendance(ctx, a)
	if err != nil {
		return Attendance{}, errors.Wrap(err, "excusing attendance")
	}
	return a, nil
}

func validateEntry(e Entry) error {
	if e.Status != nil && !e.Status.Valid() {
		return ErrInvalidStatus
	}
	if e.LateMinutes != nil && *e.LateMinutes < 0 {
		return ErrNegativeLateness
	}
	return nil
}

func recordedEvent(a Attendance, week int) core.Event {
	return core.Event{
		Kind:         core.EventAttendanceRecorded,
		CourseID:     a.CourseID,
		SessionID:    a.SessionID,
		StudentID:    a.StudentID,
		AttendanceID: a.ID,
		Week:         week,
		Detail:       a.Status.String(),
	}
}

func absenceEvent(a Attendance, week int) core.Event {
	return core.Event{
		Kind:         core.EventAbsenceAdded,
		CourseID:     a.CourseID,
		SessionID:    a.SessionID,
		StudentID:    a.StudentID,
		AttendanceID: a.ID,
		Week:         week,
	}
}
