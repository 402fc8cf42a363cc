package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRow struct {
	ID          string    `db:"id"`
	SessionID   string    `db:"session_id"`
	CourseID    string    `db:"course_id"`
	StudentID   string    `db:"student_id"`
	Status      int       `db:"status"`
	CheckedAt   null.Time `db:"checked_at"`
	LateMinutes int       `db:"late_minutes"`
	Location    string    `db:"location"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func toAttendanceRow(a attendance.Attendance) attendanceRow {
	row := attendanceRow{
		ID:          a.ID,
		SessionID:   a.SessionID,
		CourseID:    a.CourseID,
		StudentID:   a.StudentID,
		Status:      int(a.Status),
		LateMinutes: a.LateMinutes,
		Location:    a.Location,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
	if a.CheckedAt != nil {
		row.CheckedAt = null.TimeFrom(a.CheckedAt.UTC())
	}
	return row
}

func (row attendanceRow) toAttendance() attendance.Attendance {
	return attendance.Attendance{
		ID:          row.ID,
		SessionID:   row.SessionID,
		CourseID:    row.CourseID,
		StudentID:   row.StudentID,
		Status:      attendance.Status(row.Status),
		CheckedAt:   row.CheckedAt.Ptr(),
		LateMinutes: row.LateMinutes,
		Location:    row.Location,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

const attendanceColumns = `id, session_id, course_id, student_id, status, checked_at, late_minutes, location, created_at, updated_at`

type attendanceRepository struct {
	*Store
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(st *Store) *attendanceRepository {
	return &attendanceRepository{Store: st}
}

// CreateAttendance yields exactly one row per (session_id, student_id), whatever the concurrency.
func (repo *attendanceRepository) CreateAttendance(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	a.ID = newID()
	q := `INSERT INTO attendances (` + attendanceColumns + `) VALUES (
		:id, :session_id, :course_id, :student_id, :status, :checked_at, :late_minutes, :location, :created_at, :updated_at
	) ON CONFLICT (session_id, student_id) DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toAttendanceRow(a))
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Attendance{}, attendance.ErrDuplicate
		}
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	ok, err := affected(res)
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	if !ok {
		return attendance.Attendance{}, attendance.ErrDuplicate
	}
	return a, nil
}

func (repo *attendanceRepository) get(ctx context.Context, q string, args ...interface{}) (attendance.Attendance, error) {
	var row attendanceRow
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, args...); err != nil {
		if isNoRows(err) {
			return attendance.Attendance{}, attendance.ErrNotFound
		}
		return attendance.Attendance{}, errors.Wrap(err, "selecting attendance")
	}
	return row.toAttendance(), nil
}

func (repo *attendanceRepository) GetAttendance(ctx context.Context, id string) (attendance.Attendance, error) {
	return repo.get(ctx, `SELECT `+attendanceColumns+` FROM attendances WHERE id = $1`, id)
}

func (repo *attendanceRepository) GetSessionAttendance(ctx context.Context, sessionID, studentID string) (attendance.Attendance, error) {
	q := `SELECT ` + attendanceColumns + ` FROM attendances WHERE session_id = $1 AND student_id = $2`
	return repo.get(ctx, q, sessionID, studentID)
}

func (repo *attendanceRepository) query(ctx context.Context, q string, args ...interface{}) ([]attendance.Attendance, error) {
	var rows []attendanceRow
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendances")
	}
	records := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toAttendance())
	}
	return records, nil
}

func (repo *attendanceRepository) QuerySessionAttendances(ctx context.Context, sessionID string) ([]attendance.Attendance, error) {
	q := `SELECT ` + attendanceColumns + ` FROM attendances WHERE session_id = $1 ORDER BY student_id`
	return repo.query(ctx, q, sessionID)
}

func (repo *attendanceRepository) QueryStudentAttendances(ctx context.Context, courseID, studentID string) ([]attendance.Attendance, error) {
	q := `SELECT a.id, a.session_id, a.course_id, a.student_id, a.status, a.checked_at, a.late_minutes, a.location,
		a.created_at, a.updated_at
	FROM attendances a JOIN sessions s ON s.id = a.session_id
	WHERE a.course_id = $1 AND a.student_id = $2
	ORDER BY s.week, s.period`
	return repo.query(ctx, q, courseID, studentID)
}

func (repo *attendanceRepository) UpdateAttendance(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	q := `UPDATE attendances SET
		status = :status, checked_at = :checked_at, late_minutes = :late_minutes, location = :location, updated_at = :updated_at
	WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toAttendanceRow(a))
	if err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "updating attendance")
	}
	if ok, err := affected(res); err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "updating attendance")
	} else if !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	return a, nil
}

func (repo *attendanceRepository) CountAbsences(ctx context.Context, courseID, studentID string) (int, error) {
	var n int
	q := `SELECT COUNT(*) FROM attendances WHERE course_id = $1 AND student_id = $2 AND status = $3`
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &n, q, courseID, studentID, int(attendance.StatusAbsent)); err != nil {
		return 0, errors.Wrap(err, "counting absences")
	}
	return n, nil
}
