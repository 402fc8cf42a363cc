// Package inmemdb is an in-memory store implementing every repository of the engine
// with the same uniqueness guarantees as the SQL schema. It backs tests and demos.
package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/excuse"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/policy"
	"github.com/trezcool/mahudhurio/core/session"
)

type (
	DB struct {
		directory    *directoryTable
		session      *sessionTable
		attendance   *attendanceTable
		policy       *policyTable
		excuse       *excuseTable
		notification *notificationTable
	}

	directoryTable struct {
		sync.RWMutex
		courses     map[string]course.Course
		people      map[string]course.Person
		enrollments map[string]map[string]bool // {courseID: {studentID}}
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Attendance
	}

	policyTable struct {
		sync.RWMutex
		table map[string]*policy.Policy // by course
	}

	excuseTable struct {
		sync.RWMutex
		table    map[string]*excuse.Excuse
		requests map[string]string // {requestID: excuseID}
	}

	notificationTable struct {
		sync.RWMutex
		table  map[string]*notification.Notification
		dedupe map[string]string // {dedupeKey: id}
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{
		directory: &directoryTable{
			courses:     make(map[string]course.Course),
			people:      make(map[string]course.Person),
			enrollments: make(map[string]map[string]bool),
		},
		session:      &sessionTable{table: make(map[string]*session.Session)},
		attendance:   &attendanceTable{table: make(map[string]*attendance.Attendance)},
		policy:       &policyTable{table: make(map[string]*policy.Policy)},
		excuse:       &excuseTable{table: make(map[string]*excuse.Excuse), requests: make(map[string]string)},
		notification: &notificationTable{table: make(map[string]*notification.Notification), dedupe: make(map[string]string)},
	}
}

// RunInTx runs fn directly: every write is atomic per table and uniqueness is checked under the table lock.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newID() string {
	return uuid.NewString()
}
