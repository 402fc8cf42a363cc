package course

import (
	"context"

	"github.com/trezcool/mahudhurio/core"
)

// DefaultPeriodMinutes is the length of one meeting period when none is configured.
const DefaultPeriodMinutes = 60

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("course not found")
	ErrPersonNotFound = core.NewNotFoundError("person not found")
)

// Course is owned by the course-management collaborator; the engine only reads it.
type Course struct {
	ID            string `json:"id" db:"id"`
	Code          string `json:"code" db:"code"`
	Name          string `json:"name" db:"name"`
	InstructorID  string `json:"instructor_id" db:"instructor_id"`
	WeeklyMinutes int    `json:"weekly_minutes" db:"weekly_minutes"`
}

// PeriodsPerWeek is the number of periods of periodMinutes the course meets each week (at least 1).
func (c Course) PeriodsPerWeek(periodMinutes int) int {
	if periodMinutes <= 0 {
		periodMinutes = DefaultPeriodMinutes
	}
	n := c.WeeklyMinutes / periodMinutes
	if n < 1 {
		return 1
	}
	return n
}

type Person struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Role  string `json:"role" db:"role"`
}

// Directory gives the engine read access to courses, people and enrollments.
type Directory interface {
	GetCourse(ctx context.Context, id string) (Course, error)
	IsInstructor(ctx context.Context, courseID, userID string) (bool, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	EnrolledStudents(ctx context.Context, courseID string) ([]string, error)
	GetPerson(ctx context.Context, id string) (Person, error)
}
