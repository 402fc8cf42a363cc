package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/session"
)

type sessionRow struct {
	ID                 string      `db:"id"`
	CourseID           string      `db:"course_id"`
	Week               int         `db:"week"`
	Period             int         `db:"period"`
	StartTime          time.Time   `db:"start_time"`
	EndTime            time.Time   `db:"end_time"`
	Room               string      `db:"room"`
	Method             string      `db:"method"`
	AttendanceCode     null.String `db:"attendance_code"`
	Status             string      `db:"status"`
	AttendanceDuration int         `db:"attendance_duration"`
	IsHoliday          bool        `db:"is_holiday"`
	IsMakeup           bool        `db:"is_makeup"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

func toSessionRow(s session.Session) sessionRow {
	return sessionRow{
		ID:                 s.ID,
		CourseID:           s.CourseID,
		Week:               s.Week,
		Period:             s.Period,
		StartTime:          s.StartTime.UTC(),
		EndTime:            s.EndTime.UTC(),
		Room:               s.Room,
		Method:             string(s.Method),
		AttendanceCode:     null.NewString(s.AttendanceCode, s.AttendanceCode != ""),
		Status:             string(s.Status),
		AttendanceDuration: s.AttendanceDuration,
		IsHoliday:          s.IsHoliday,
		IsMakeup:           s.IsMakeup,
		CreatedAt:          s.CreatedAt.UTC(),
		UpdatedAt:          s.UpdatedAt.UTC(),
	}
}

func (row sessionRow) toSession() session.Session {
	return session.Session{
		ID:                 row.ID,
		CourseID:           row.CourseID,
		Week:               row.Week,
		Period:             row.Period,
		StartTime:          row.StartTime,
		EndTime:            row.EndTime,
		Room:               row.Room,
		Method:             session.Method(row.Method),
		AttendanceCode:     row.AttendanceCode.String,
		Status:             session.Status(row.Status),
		AttendanceDuration: row.AttendanceDuration,
		IsHoliday:          row.IsHoliday,
		IsMakeup:           row.IsMakeup,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

const sessionColumns = `id, course_id, week, period, start_time, end_time, room, method, attendance_code,
	status, attendance_duration, is_holiday, is_makeup, created_at, updated_at`

type sessionRepository struct {
	*Store
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(st *Store) *sessionRepository {
	return &sessionRepository{Store: st}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	s.ID = newID()
	q := `INSERT INTO sessions (` + sessionColumns + `) VALUES (
		:id, :course_id, :week, :period, :start_time, :end_time, :room, :method, :attendance_code,
		:status, :attendance_duration, :is_holiday, :is_makeup, :created_at, :updated_at
	) ON CONFLICT (course_id, week, period) DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toSessionRow(s))
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	ok, err := affected(res)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	if !ok {
		return session.Session{}, session.ErrDuplicate
	}
	return s, nil
}

func (repo *sessionRepository) get(ctx context.Context, q string, args ...interface{}) (session.Session, error) {
	var row sessionRow
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, args...); err != nil {
		if isNoRows(err) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "selecting session")
	}
	return row.toSession(), nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	return repo.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

func (repo *sessionRepository) LockSession(ctx context.Context, id string) (session.Session, error) {
	return repo.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
}

func (repo *sessionRepository) query(ctx context.Context, q string, args ...interface{}) ([]session.Session, error) {
	var rows []sessionRow
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.toSession())
	}
	return sessions, nil
}

func (repo *sessionRepository) QueryWeek(ctx context.Context, courseID string, week int) ([]session.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE course_id = $1 AND week = $2 ORDER BY period`
	return repo.query(ctx, q, courseID, week)
}

func (repo *sessionRepository) QueryCourseSessions(ctx context.Context, courseID string) ([]session.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE course_id = $1 ORDER BY week, period`
	return repo.query(ctx, q, courseID)
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, s session.Session) (session.Session, error) {
	q := `UPDATE sessions SET
		start_time = :start_time, end_time = :end_time, room = :room, method = :method,
		attendance_code = :attendance_code, status = :status, attendance_duration = :attendance_duration,
		is_holiday = :is_holiday, is_makeup = :is_makeup, updated_at = :updated_at
	WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toSessionRow(s))
	if err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if ok, err := affected(res); err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	} else if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}
