package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/course"
)

type Directory struct {
	db *directoryTable
}

var _ course.Directory = (*Directory)(nil)

func NewDirectory(db *DB) *Directory {
	return &Directory{db: db.directory}
}

// AddCourse registers c, generating its ID if empty.
func (dir *Directory) AddCourse(c course.Course) course.Course {
	dir.db.Lock()
	defer dir.db.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	dir.db.courses[c.ID] = c
	return c
}

// AddPerson registers p, generating its ID if empty.
func (dir *Directory) AddPerson(p course.Person) course.Person {
	dir.db.Lock()
	defer dir.db.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	dir.db.people[p.ID] = p
	return p
}

func (dir *Directory) Enroll(courseID string, studentIDs ...string) {
	dir.db.Lock()
	defer dir.db.Unlock()

	students, ok := dir.db.enrollments[courseID]
	if !ok {
		students = make(map[string]bool)
		dir.db.enrollments[courseID] = students
	}
	for _, id := range studentIDs {
		students[id] = true
	}
}

func (dir *Directory) GetCourse(_ context.Context, id string) (course.Course, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()

	if c, ok := dir.db.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (dir *Directory) IsInstructor(_ context.Context, courseID, userID string) (bool, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()

	c, ok := dir.db.courses[courseID]
	return ok && c.InstructorID == userID, nil
}

func (dir *Directory) IsEnrolled(_ context.Context, courseID, studentID string) (bool, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()
	return dir.db.enrollments[courseID][studentID], nil
}

func (dir *Directory) EnrolledStudents(_ context.Context, courseID string) ([]string, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()

	ids := make([]string, 0, len(dir.db.enrollments[courseID]))
	for id := range dir.db.enrollments[courseID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (dir *Directory) GetPerson(_ context.Context, id string) (course.Person, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()

	if p, ok := dir.db.people[id]; ok {
		return p, nil
	}
	return course.Person{}, course.ErrPersonNotFound
}
