package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/services/email"
	"github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database/inmem"
)

// Monday 09:00 UTC, start of week 1.
var Start = time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)

type Fixture struct {
	Conf   *core.Config
	Logger core.Logger
	Mailer *emailsvc.ConsoleServiceMock

	DB            *inmemdb.DB
	Directory     *inmemdb.Directory
	Sessions      session.Repository
	Classroom     *classroom.Service
	ClassroomDeps classroom.Deps

	Course     course.Course
	Admin      core.Actor
	Instructor core.Actor
	Students   []core.Actor
}

func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	return conf
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", log.LstdFlags), conf)
}

// NewFixture sets up an in-memory engine with one course of weeklyMinutes taught by Instructor,
// with nStudents enrolled students.
func NewFixture(t *testing.T, weeklyMinutes, nStudents int) *Fixture {
	t.Helper()

	conf := NewConfig()
	logger := NewLogger(conf)
	core.ParseEmailTemplates(logger, conf)

	db := inmemdb.Open()
	dir := inmemdb.NewDirectory(db)
	fx := &Fixture{
		Conf:      conf,
		Logger:    logger,
		Mailer:    emailsvc.NewConsoleServiceMock(logger, conf),
		DB:        db,
		Directory: dir,
		Sessions:  inmemdb.NewSessionRepository(db),
	}
	fx.ClassroomDeps = classroom.Deps{
		Directory:     dir,
		Tx:            db,
		Sessions:      fx.Sessions,
		Attendances:   inmemdb.NewAttendanceRepository(db),
		Policies:      inmemdb.NewPolicyRepository(db),
		Excuses:       inmemdb.NewExcuseRepository(db),
		Notifications: inmemdb.NewNotificationRepository(db),
		Mailer:        fx.Mailer,
		Logger:        logger,
		CodeLength:    conf.Attendance.CodeLength,
		PeriodMinutes: conf.Attendance.PeriodMinutes,
	}
	fx.Classroom = classroom.NewService(fx.ClassroomDeps)

	fx.Admin = fx.AddPerson("Admin", core.RoleAdmin)
	fx.Instructor = fx.AddPerson("Instructor", core.RoleInstructor)
	fx.Course = dir.AddCourse(course.Course{
		Code:          "CS101",
		Name:          "Introduction to Computing",
		InstructorID:  fx.Instructor.UserID,
		WeeklyMinutes: weeklyMinutes,
	})
	for i := 0; i < nStudents; i++ {
		st := fx.AddPerson("Student", core.RoleStudent)
		dir.Enroll(fx.Course.ID, st.UserID)
		fx.Students = append(fx.Students, st)
	}
	return fx
}

func (fx *Fixture) AddPerson(name, role string) core.Actor {
	p := fx.Directory.AddPerson(course.Person{Name: name, Role: role})
	p.Email = p.ID + "@test.cd"
	fx.Directory.AddPerson(p)
	return core.Actor{UserID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role}
}

// Schedule creates period 1 of week starting at start, lasting one period.
func (fx *Fixture) Schedule(t *testing.T, week int, start time.Time, method session.Method) session.Session {
	t.Helper()

	s, err := fx.Classroom.ScheduleWeek(ctx(), fx.Instructor, fx.Course.ID, session.NewSession{
		Week:      week,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Room:      "B-12",
		Method:    method,
	})
	if err != nil {
		t.Fatalf("Schedule(): %v", err)
	}
	return s
}

// Open opens s and returns the sessions of its week.
func (fx *Fixture) Open(t *testing.T, s session.Session) []session.Session {
	t.Helper()

	if _, err := fx.Classroom.OpenSession(ctx(), fx.Instructor, s.ID); err != nil {
		t.Fatalf("Open(): %v", err)
	}
	week, err := fx.Classroom.ListWeek(ctx(), fx.Instructor, fx.Course.ID, s.Week)
	if err != nil {
		t.Fatalf("ListWeek(): %v", err)
	}
	return week
}

func ctx() context.Context { return context.Background() }

// MockNow freezes core.NowFunc at now until the test ends.
func MockNow(t *testing.T, now time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}
