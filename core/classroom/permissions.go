package classroom

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
)

// authorizeInstructor allows admins and the course's instructor.
func (svc *Service) authorizeInstructor(ctx context.Context, actor core.Actor, courseID string) (course.Course, error) {
	c, err := svc.dir.GetCourse(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if actor.IsAdmin() {
		return c, nil
	}
	if !actor.IsInstructor() {
		return course.Course{}, core.ErrPermissionDenied
	}
	ok, err := svc.dir.IsInstructor(ctx, courseID, actor.UserID)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "checking course ownership")
	}
	if !ok {
		return course.Course{}, core.ErrPermissionDenied
	}
	return c, nil
}

// authorizeReader allows admins, the course's instructor and its enrolled students.
// When studentID is set, a student may only read their own records.
func (svc *Service) authorizeReader(ctx context.Context, actor core.Actor, courseID, studentID string) error {
	if actor.IsStudent() {
		if _, err := svc.dir.GetCourse(ctx, courseID); err != nil {
			return err
		}
		if studentID != "" && studentID != actor.UserID {
			return core.ErrPermissionDenied
		}
		ok, err := svc.dir.IsEnrolled(ctx, courseID, actor.UserID)
		if err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		if !ok {
			return core.ErrPermissionDenied
		}
		return nil
	}
	_, err := svc.authorizeInstructor(ctx, actor, courseID)
	return err
}

// authorizeStudent allows a student acting for themselves, and admins acting for anyone.
func authorizeStudent(actor core.Actor, studentID string) error {
	if actor.IsAdmin() || (actor.IsStudent() && actor.UserID == studentID) {
		return nil
	}
	return core.ErrPermissionDenied
}
