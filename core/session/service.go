package session

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("session not found")
	ErrDuplicate         = core.NewConflictError("a session already exists for this course week and period")
	ErrInvalidTransition = core.NewConflictError("invalid session status transition")
	ErrNotCodeMethod     = core.NewConflictError("session does not use code attendance")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		// LockSession reads the session and holds it until the surrounding transaction ends.
		LockSession(ctx context.Context, id string) (Session, error)
		// QueryWeek returns the sessions of a course week ordered by period.
		QueryWeek(ctx context.Context, courseID string, week int) ([]Session, error)
		QueryCourseSessions(ctx context.Context, courseID string) ([]Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
	}

	Service struct {
		repo    Repository
		codeLen int
	}
)

func NewService(repo Repository, codeLen int) *Service {
	if codeLen <= 0 {
		codeLen = defaultCodeLength
	}
	return &Service{repo: repo, codeLen: codeLen}
}

// Schedule creates period 1 of a course week. Sibling periods are materialized when it opens.
func (svc *Service) Schedule(ctx context.Context, courseID string, ns NewSession) (Session, error) {
	ns.Clean()
	now := core.NowFunc()
	s := Session{
		CourseID:           courseID,
		Week:               ns.Week,
		Period:             1,
		StartTime:          ns.StartTime,
		EndTime:            ns.EndTime,
		Room:               ns.Room,
		Method:             ns.Method,
		Status:             StatusScheduled,
		AttendanceDuration: ns.AttendanceDuration,
		IsHoliday:          ns.IsHoliday,
		IsMakeup:           ns.IsMakeup,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return svc.repo.CreateSession(ctx, s)
}

func (svc *Service) Get(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) Week(ctx context.Context, courseID string, week int) ([]Session, error) {
	return svc.repo.QueryWeek(ctx, courseID, week)
}

func (svc *Service) CourseSessions(ctx context.Context, courseID string) ([]Session, error) {
	return svc.repo.QueryCourseSessions(ctx, courseID)
}

// Open moves the session to `open` (from scheduled or paused). A code session gets its code,
// and when period 1 is the only period of its week, periods 2..periodsPerWeek are created.
// The created siblings are returned along with the opened session.
func (svc *Service) Open(ctx context.Context, id string, periodsPerWeek int) (Session, []Session, error) {
	s, err := svc.transition(ctx, id, StatusOpen, func(s *Session) error {
		if s.Method == MethodCode && s.AttendanceCode == "" {
			code, err := generateCode(svc.codeLen)
			if err != nil {
				return errors.Wrap(err, "generating attendance code")
			}
			s.AttendanceCode = code
		}
		return nil
	})
	if err != nil {
		return Session{}, nil, err
	}
	if !s.IsAnchor() || periodsPerWeek < 2 {
		return s, nil, nil
	}

	week, err := svc.repo.QueryWeek(ctx, s.CourseID, s.Week)
	if err != nil {
		return Session{}, nil, errors.Wrap(err, "querying week sessions")
	}
	if len(week) != 1 {
		return s, nil, nil
	}

	now := core.NowFunc()
	created := make([]Session, 0, periodsPerWeek-1)
	for _, sib := range Siblings(s, periodsPerWeek) {
		sib.CreatedAt = now
		sib.UpdatedAt = now
		sib, err = svc.repo.CreateSession(ctx, sib)
		if err != nil {
			if errors.Cause(err) == ErrDuplicate {
				continue // materialized concurrently
			}
			return Session{}, nil, errors.Wrap(err, "creating sibling period")
		}
		created = append(created, sib)
	}
	return s, created, nil
}

func (svc *Service) Pause(ctx context.Context, id string) (Session, error) {
	return svc.transition(ctx, id, StatusPaused, nil)
}

// Close moves the session to `closed`. Auto-absence marking is done by the caller within the same transaction.
func (svc *Service) Close(ctx context.Context, id string) (Session, error) {
	return svc.transition(ctx, id, StatusClosed, nil)
}

// AttendanceCode returns the session's current code, generating one if it has none yet.
func (svc *Service) AttendanceCode(ctx context.Context, id string) (string, error) {
	s, err := svc.repo.LockSession(ctx, id)
	if err != nil {
		return "", err
	}
	if s.Method != MethodCode {
		return "", ErrNotCodeMethod
	}
	if s.AttendanceCode != "" {
		return s.AttendanceCode, nil
	}

	code, err := generateCode(svc.codeLen)
	if err != nil {
		return "", errors.Wrap(err, "generating attendance code")
	}
	s.AttendanceCode = code
	s.UpdatedAt = core.NowFunc()
	if _, err = svc.repo.UpdateSession(ctx, s); err != nil {
		return "", errors.Wrap(err, "saving attendance code")
	}
	return code, nil
}

func (svc *Service) transition(ctx context.Context, id string, to Status, mutate func(*Session) error) (Session, error) {
	s, err := svc.repo.LockSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err = ValidateTransition(s.Status, to); err != nil {
		return Session{}, err
	}
	if mutate != nil {
		if err = mutate(&s); err != nil {
			return Session{}, err
		}
	}
	s.Status = to
	s.UpdatedAt = core.NowFunc()
	s, err = svc.repo.UpdateSession(ctx, s)
	if err != nil {
		return Session{}, errors.Wrapf(err, "updating session status to %s", to)
	}
	return s, nil
}
