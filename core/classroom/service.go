// Package classroom is the entry point of the attendance engine: it authorizes the caller,
// runs each operation in one transaction and hands the resulting events to the notifier once committed.
package classroom

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/excuse"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/policy"
	"github.com/trezcool/mahudhurio/core/session"
)

type (
	Deps struct {
		Directory     course.Directory
		Tx            core.Transactor
		Sessions      session.Repository
		Attendances   attendance.Repository
		Policies      policy.Repository
		Excuses       excuse.Repository
		Notifications notification.Repository
		Mailer        core.EmailService
		Logger        core.Logger
		CodeLength    int
		PeriodMinutes int
	}

	Service struct {
		dir           course.Directory
		tx            core.Transactor
		sessions      *session.Service
		attendance    *attendance.Service
		policies      *policy.Service
		excuses       *excuse.Service
		notifications *notification.Service
		handler       core.EventHandler
		periodMinutes int
	}
)

func NewService(deps Deps) *Service {
	policies := policy.NewService(deps.Policies)
	attSvc := attendance.NewService(deps.Attendances, deps.Sessions, deps.Directory, policies)
	return &Service{
		dir:           deps.Directory,
		tx:            deps.Tx,
		sessions:      session.NewService(deps.Sessions, deps.CodeLength),
		attendance:    attSvc,
		policies:      policies,
		excuses:       excuse.NewService(deps.Excuses, deps.Sessions, attSvc),
		notifications: notification.NewService(deps.Notifications),
		handler:       notification.NewNotifier(deps.Notifications, attSvc, policies, deps.Directory, deps.Mailer, deps.Logger),
		periodMinutes: deps.PeriodMinutes,
	}
}

// inTx runs fn in a transaction and dispatches the events it collected once committed.
func (svc *Service) inTx(ctx context.Context, fn func(ctx context.Context, evs *core.Events) error) error {
	var evs core.Events
	err := svc.tx.RunInTx(ctx, func(ctx context.Context) error {
		evs = evs[:0]
		return fn(ctx, &evs)
	})
	if err != nil {
		return err
	}
	if len(evs) > 0 {
		svc.handler.Handle(ctx, evs)
	}
	return nil
}

// Sessions

func (svc *Service) ScheduleWeek(ctx context.Context, actor core.Actor, courseID string, ns session.NewSession) (session.Session, error) {
	if _, err := svc.authorizeInstructor(ctx, actor, courseID); err != nil {
		return session.Session{}, err
	}
	return svc.sessions.Schedule(ctx, courseID, ns)
}

func (svc *Service) ListWeek(ctx context.Context, actor core.Actor, courseID string, week int) ([]session.Session, error) {
	if err := svc.authorizeReader(ctx, actor, courseID, ""); err != nil {
		return nil, err
	}
	return svc.sessions.Week(ctx, courseID, week)
}

func (svc *Service) GetSession(ctx context.Context, actor core.Actor, id string) (session.Session, error) {
	s, err := svc.sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if err = svc.authorizeReader(ctx, actor, s.CourseID, ""); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// OpenSession opens a scheduled session or resumes a paused one.
func (svc *Service) OpenSession(ctx context.Context, actor core.Actor, id string) (session.Session, error) {
	s, err := svc.sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	c, err := svc.authorizeInstructor(ctx, actor, s.CourseID)
	if err != nil {
		return session.Session{}, err
	}

	err = svc.inTx(ctx, func(ctx context.Context, evs *core.Events) error {
		resumed := s.Status == session.StatusPaused
		s, _, err = svc.sessions.Open(ctx, id, c.PeriodsPerWeek(svc.periodMinutes))
		if err != nil {
			return err
		}
		if !resumed {
			evs.Add(sessionEvent(core.EventSessionOpened, s))
		}
		return nil
	})
	return s, err
}

func (svc *Service) PauseSession(ctx context.Context, actor core.Actor, id string) (session.Session, error) {
	s, err := svc.sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if _, err = svc.authorizeInstructor(ctx, actor, s.CourseID); err != nil {
		return session.Session{}, err
	}

	err = svc.inTx(ctx, func(ctx context.Context, _ *core.Events) error {
		s, err = svc.sessions.Pause(ctx, id)
		return err
	})
	return s, err
}

// CloseSession closes the session and marks every enrolled student without a record absent.
func (svc *Service) CloseSession(ctx context.Context, actor core.Actor, id string) (session.Session, error) {
	s, err := svc.sessions.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if _, err = svc.authorizeInstructor(ctx, actor, s.CourseID); err != nil {
		return session.Session{}, err
	}

	err = svc.inTx(ctx, func(ctx context.Context, evs *core.Events) error {
		if s, err = svc.sessions.Close(ctx, id); err != nil {
			return err
		}
		evs.Add(sessionEvent(core.EventSessionClosed, s))

		res, err := svc.attendance.MarkAbsentees(ctx, s)
		if err != nil {
			return errors.Wrap(err, "marking absentees")
		}
		*evs = append(*evs, res.Events...)
		return nil
	})
	return s, err
}

func (svc *Service) GetAttendanceCode(ctx context.Context, actor core.Actor, id string) (string, error) {
	s, err := svc.sessions.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err = svc.authorizeInstructor(ctx, actor, s.CourseID); err != nil {
		return "", err
	}

	var code string
	err = svc.inTx(ctx, func(ctx context.Context, _ *core.Events) error {
		code, err = svc.sessions.AttendanceCode(ctx, id)
		return err
	})
	return code, err
}

// Attendance

func (svc *Service) CheckIn(ctx context.Context, actor core.Actor, ci attendance.CheckIn) (attendance.Result, error) {
	if err := authorizeStudent(actor, ci.StudentID); err != nil {
		return attendance.Result{}, err
	}
	return svc.adjudicate(ctx, func(ctx context.Context) (attendance.Result, error) {
		return svc.attendance.CheckIn(ctx, ci)
	})
}

func (svc *Service) RollCall(ctx context.Context, actor core.Actor, sessionID, studentID string, e attendance.Entry) (attendance.Result, error) {
	s, err := svc.sessions.Get(ctx, sessionID)
	if err != nil {
		return attendance.Result{}, err
	}
	if _, err = svc.authorizeInstructor(ctx, actor, s.CourseID); err != nil {
		return attendance.Result{}, err
	}
	return svc.adjudicate(ctx, func(ctx context.Context) (attendance.Result, error) {
		return svc.attendance.RollCall(ctx, sessionID, studentID, e)
	})
}

func (svc *Service) CorrectAttendance(ctx context.Context, actor core.Actor, attendanceID string, e attendance.Entry) (attendance.Result, error) {
	a, err := svc.attendance.Get(ctx, attendanceID)
	if err != nil {
		return attendance.Result{}, err
	}
	if _, err = svc.authorizeInstructor(ctx, actor, a.CourseID); err != nil {
		return attendance.Result{}, err
	}
	return svc.adjudicate(ctx, func(ctx context.Context) (attendance.Result, error) {
		return svc.attendance.Correct(ctx, attendanceID, e)
	})
}

func (svc *Service) adjudicate(ctx context.Context, fn func(ctx context.Context) (attendance.Result, error)) (attendance.Result, error) {
	var res attendance.Result
	err := svc.inTx(ctx, func(ctx context.Context, evs *core.Events) error {
		var err error
		if res, err = fn(ctx); err != nil {
			return err
		}
		*evs = append(*evs, res.Events...)
		return nil
	})
	if err != nil {
		return attendance.Result{}, err
	}
	return res, nil
}

func (svc *Service) ListSessionAttendance(ctx context.Context, actor core.Actor, sessionID string) ([]attendance.Attendance, error) {
	s, err := svc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err = svc.authorizeInstructor(ctx, actor, s.CourseID); err != nil {
		return nil, err
	}
	return svc.attendance.SessionAttendances(ctx, sessionID)
}

// Summary aggregates the student's attendance over the course's closed sessions.
func (svc *Service) Summary(ctx context.Context, actor core.Actor, courseID, studentID string) (attendance.Summary, error) {
	if err := svc.authorizeReader(ctx, actor, courseID, studentID); err != nil {
		return attendance.Summary{}, err
	}
	sessions, err := svc.sessions.CourseSessions(ctx, courseID)
	if err != nil {
		return attendance.Summary{}, errors.Wrap(err, "querying course sessions")
	}
	records, err := svc.attendance.StudentAttendances(ctx, courseID, studentID)
	if err != nil {
		return attendance.Summary{}, errors.Wrap(err, "querying student attendances")
	}
	p, err := svc.policies.GetOrCreateDefault(ctx, courseID)
	if err != nil {
		return attendance.Summary{}, err
	}
	return attendance.Summarize(courseID, studentID, sessions, records, p), nil
}

// Policies

func (svc *Service) GetPolicy(ctx context.Context, actor core.Actor, courseID string) (policy.Policy, error) {
	if err := svc.authorizeReader(ctx, actor, courseID, ""); err != nil {
		return policy.Policy{}, err
	}
	return svc.policies.GetOrCreateDefault(ctx, courseID)
}

func (svc *Service) UpdatePolicy(ctx context.Context, actor core.Actor, courseID string, up policy.UpdatePolicy) (policy.Policy, error) {
	if _, err := svc.authorizeInstructor(ctx, actor, courseID); err != nil {
		return policy.Policy{}, err
	}
	var p policy.Policy
	err := svc.inTx(ctx, func(ctx context.Context, _ *core.Events) error {
		var err error
		p, err = svc.policies.Update(ctx, courseID, up)
		return err
	})
	return p, err
}

// Excuses

func (svc *Service) SubmitWeeklyExcuse(ctx context.Context, actor core.Actor, courseID string, week int, studentID string, ne excuse.NewExcuse) (excuse.Excuse, error) {
	if err := authorizeStudent(actor, studentID); err != nil {
		return excuse.Excuse{}, err
	}
	if _, err := svc.dir.GetCourse(ctx, courseID); err != nil {
		return excuse.Excuse{}, err
	}
	enrolled, err := svc.dir.IsEnrolled(ctx, courseID, studentID)
	if err != nil {
		return excuse.Excuse{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return excuse.Excuse{}, attendance.ErrNotEnrolled
	}

	var e excuse.Excuse
	err = svc.inTx(ctx, func(ctx context.Context, _ *core.Events) error {
		e, err = svc.excuses.SubmitWeekly(ctx, courseID, week, studentID, ne)
		return err
	})
	return e, err
}

// DecideExcuse rules on the week the request belongs to.
func (svc *Service) DecideExcuse(ctx context.Context, actor core.Actor, requestID string, d excuse.Decision) (excuse.Outcome, error) {
	e, err := svc.excuses.Get(ctx, requestID)
	if err != nil {
		return excuse.Outcome{}, err
	}
	if _, err = svc.authorizeInstructor(ctx, actor, e.CourseID); err != nil {
		return excuse.Outcome{}, err
	}

	var out excuse.Outcome
	err = svc.inTx(ctx, func(ctx context.Context, evs *core.Events) error {
		if out, err = svc.excuses.Decide(ctx, requestID, d); err != nil {
			return err
		}
		*evs = append(*evs, out.Events...)
		return nil
	})
	if err != nil {
		return excuse.Outcome{}, err
	}
	return out, nil
}

// Notifications

func (svc *Service) ListNotifications(ctx context.Context, actor core.Actor, unreadOnly bool) ([]notification.Notification, error) {
	return svc.notifications.List(ctx, actor.UserID, unreadOnly)
}

func (svc *Service) MarkNotificationRead(ctx context.Context, actor core.Actor, id string) (notification.Notification, error) {
	return svc.notifications.MarkRead(ctx, actor.UserID, id)
}

func sessionEvent(kind core.EventKind, s session.Session) core.Event {
	return core.Event{
		Kind:      kind,
		CourseID:  s.CourseID,
		SessionID: s.ID,
		Week:      s.Week,
		Detail:    string(s.Status),
	}
}
