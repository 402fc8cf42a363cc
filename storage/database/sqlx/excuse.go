package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/excuse"
)

type excuseRow struct {
	ID          string         `db:"id"`
	CourseID    string         `db:"course_id"`
	Week        int            `db:"week"`
	StudentID   string         `db:"student_id"`
	ReasonCode  string         `db:"reason_code"`
	ReasonText  string         `db:"reason_text"`
	Files       pq.StringArray `db:"files"`
	Status      string         `db:"status"`
	Comment     string         `db:"comment"`
	SubmittedAt time.Time      `db:"submitted_at"`
	ReviewedAt  null.Time      `db:"reviewed_at"`
}

func toExcuseRow(e excuse.Excuse) excuseRow {
	row := excuseRow{
		ID:          e.ID,
		CourseID:    e.CourseID,
		Week:        e.Week,
		StudentID:   e.StudentID,
		ReasonCode:  e.ReasonCode,
		ReasonText:  e.ReasonText,
		Files:       pq.StringArray(e.Files),
		Status:      e.Status,
		Comment:     e.Comment,
		SubmittedAt: e.SubmittedAt.UTC(),
	}
	if row.Files == nil {
		row.Files = pq.StringArray{}
	}
	if e.ReviewedAt != nil {
		row.ReviewedAt = null.TimeFrom(e.ReviewedAt.UTC())
	}
	return row
}

func (row excuseRow) toExcuse() excuse.Excuse {
	e := excuse.Excuse{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Week:        row.Week,
		StudentID:   row.StudentID,
		ReasonCode:  row.ReasonCode,
		ReasonText:  row.ReasonText,
		Status:      row.Status,
		Comment:     row.Comment,
		SubmittedAt: row.SubmittedAt,
		ReviewedAt:  row.ReviewedAt.Ptr(),
		Requests:    make([]excuse.Request, 0),
	}
	if len(row.Files) > 0 {
		e.Files = []string(row.Files)
	}
	return e
}

const excuseColumns = `id, course_id, week, student_id, reason_code, reason_text, files, status, comment, submitted_at, reviewed_at`

type excuseRepository struct {
	*Store
}

var _ excuse.Repository = (*excuseRepository)(nil)

func NewExcuseRepository(st *Store) *excuseRepository {
	return &excuseRepository{Store: st}
}

func (repo *excuseRepository) CreateExcuse(ctx context.Context, e excuse.Excuse) (excuse.Excuse, error) {
	e.ID = newID()
	q := `INSERT INTO excuses (` + excuseColumns + `) VALUES (
		:id, :course_id, :week, :student_id, :reason_code, :reason_text, :files, :status, :comment, :submitted_at, :reviewed_at
	) ON CONFLICT (course_id, week, student_id) DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, toExcuseRow(e))
	if err != nil {
		return excuse.Excuse{}, errors.Wrap(err, "inserting excuse")
	}
	ok, err := affected(res)
	if err != nil {
		return excuse.Excuse{}, errors.Wrap(err, "inserting excuse")
	}
	if !ok {
		return excuse.Excuse{}, excuse.ErrDuplicate
	}

	reqs := e.Requests
	e.Requests = make([]excuse.Request, 0, len(reqs))
	for _, r := range reqs {
		if r, err = repo.createRequest(ctx, e.ID, r); err != nil {
			return excuse.Excuse{}, err
		}
		e.Requests = append(e.Requests, r)
	}
	return e, nil
}

func (repo *excuseRepository) createRequest(ctx context.Context, excuseID string, r excuse.Request) (excuse.Request, error) {
	r.ID = newID()
	r.ExcuseID = excuseID
	q := `INSERT INTO excuse_requests (id, excuse_id, session_id, period) VALUES (:id, :excuse_id, :session_id, :period)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(ctx), q, r); err != nil {
		return excuse.Request{}, errors.Wrap(err, "inserting excuse request")
	}
	return r, nil
}

// GetExcuseByRequest accepts either a request ID or the excuse ID itself.
func (repo *excuseRepository) GetExcuseByRequest(ctx context.Context, id string) (excuse.Excuse, error) {
	var row excuseRow
	q := `SELECT ` + excuseColumns + ` FROM excuses
	WHERE id = $1 OR id = (SELECT excuse_id FROM excuse_requests WHERE id = $1)`
	if err := sqlx.GetContext(ctx, repo.ext(ctx), &row, q, id); err != nil {
		if isNoRows(err) {
			return excuse.Excuse{}, excuse.ErrNotFound
		}
		return excuse.Excuse{}, errors.Wrap(err, "selecting excuse")
	}

	excuses, err := repo.withRequests(ctx, []excuseRow{row})
	if err != nil {
		return excuse.Excuse{}, err
	}
	return excuses[0], nil
}

func (repo *excuseRepository) QueryStudentExcuses(ctx context.Context, courseID, studentID string) ([]excuse.Excuse, error) {
	var rows []excuseRow
	q := `SELECT ` + excuseColumns + ` FROM excuses WHERE course_id = $1 AND student_id = $2 ORDER BY week`
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &rows, q, courseID, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting excuses")
	}
	return repo.withRequests(ctx, rows)
}

// withRequests converts rows and loads their requests in a single query.
func (repo *excuseRepository) withRequests(ctx context.Context, rows []excuseRow) ([]excuse.Excuse, error) {
	excuses := make([]excuse.Excuse, 0, len(rows))
	if len(rows) == 0 {
		return excuses, nil
	}

	ids := make([]string, 0, len(rows))
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		ids = append(ids, row.ID)
		index[row.ID] = i
		excuses = append(excuses, row.toExcuse())
	}

	var reqs []excuse.Request
	q := `SELECT id, excuse_id, session_id, period FROM excuse_requests WHERE excuse_id = ANY($1) ORDER BY period`
	if err := sqlx.SelectContext(ctx, repo.ext(ctx), &reqs, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting excuse requests")
	}
	for _, r := range reqs {
		i := index[r.ExcuseID]
		excuses[i].Requests = append(excuses[i].Requests, r)
	}
	return excuses, nil
}

func (repo *excuseRepository) UpdateExcuse(ctx context.Context, e excuse.Excuse) (excuse.Excuse, error) {
	// the status guard makes concurrent deciders queue on the row lock; the later one matches nothing
	q := `UPDATE excuses SET status = $1, comment = $2, reviewed_at = $3 WHERE id = $4 AND status = $5`
	row := toExcuseRow(e)
	res, err := repo.ext(ctx).ExecContext(ctx, q, row.Status, row.Comment, row.ReviewedAt, row.ID, excuse.StatusPending)
	if err != nil {
		return excuse.Excuse{}, errors.Wrap(err, "updating excuse")
	}
	if ok, err := affected(res); err != nil {
		return excuse.Excuse{}, errors.Wrap(err, "updating excuse")
	} else if !ok {
		return excuse.Excuse{}, excuse.ErrAlreadyDecided
	}

	for _, r := range e.Requests {
		if r.ID != "" {
			continue
		}
		if _, err = repo.createRequest(ctx, e.ID, r); err != nil {
			return excuse.Excuse{}, err
		}
	}
	return repo.GetExcuseByRequest(ctx, e.ID)
}
