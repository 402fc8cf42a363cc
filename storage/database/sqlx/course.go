package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/course"
)

type directory struct {
	*Store
}

var _ course.Directory = (*directory)(nil)

func NewDirectory(st *Store) *directory {
	return &directory{Store: st}
}

func (dir *directory) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var c course.Course
	q := `SELECT id, code, name, instructor_id, weekly_minutes FROM courses WHERE id = $1`
	if err := sqlx.GetContext(ctx, dir.ext(ctx), &c, q, id); err != nil {
		if isNoRows(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "selecting course")
	}
	return c, nil
}

func (dir *directory) IsInstructor(ctx context.Context, courseID, userID string) (bool, error) {
	var ok bool
	q := `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1 AND instructor_id = $2)`
	if err := sqlx.GetContext(ctx, dir.ext(ctx), &ok, q, courseID, userID); err != nil {
		return false, errors.Wrap(err, "checking course instructor")
	}
	return ok, nil
}

func (dir *directory) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	var ok bool
	q := `SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2)`
	if err := sqlx.GetContext(ctx, dir.ext(ctx), &ok, q, courseID, studentID); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return ok, nil
}

func (dir *directory) EnrolledStudents(ctx context.Context, courseID string) ([]string, error) {
	ids := make([]string, 0)
	q := `SELECT student_id FROM enrollments WHERE course_id = $1 ORDER BY student_id`
	if err := sqlx.SelectContext(ctx, dir.ext(ctx), &ids, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting enrolled students")
	}
	return ids, nil
}

func (dir *directory) GetPerson(ctx context.Context, id string) (course.Person, error) {
	var p course.Person
	q := `SELECT id, name, email, role FROM people WHERE id = $1`
	if err := sqlx.GetContext(ctx, dir.ext(ctx), &p, q, id); err != nil {
		if isNoRows(err) {
			return course.Person{}, course.ErrPersonNotFound
		}
		return course.Person{}, errors.Wrap(err, "selecting person")
	}
	return p, nil
}
