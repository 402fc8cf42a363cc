package classroom_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/policy"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/tests"
)

var ctx = context.Background()

func TestScheduleWeek_permissions(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 1)
	other := fx.AddPerson("Other", core.RoleInstructor)
	ns := func(week int) session.NewSession {
		return session.NewSession{Week: week, StartTime: testutil.Start, EndTime: testutil.Start.Add(time.Hour)}
	}

	tests := []struct {
		name    string
		actor   core.Actor
		course  string
		week    int
		wantErr error
	}{
		{name: "course instructor", actor: fx.Instructor, course: fx.Course.ID, week: 1},
		{name: "admin", actor: fx.Admin, course: fx.Course.ID, week: 2},
		{name: "duplicate week", actor: fx.Instructor, course: fx.Course.ID, week: 1, wantErr: session.ErrDuplicate},
		{name: "other instructor", actor: other, course: fx.Course.ID, week: 3, wantErr: core.ErrPermissionDenied},
		{name: "student", actor: fx.Students[0], course: fx.Course.ID, week: 3, wantErr: core.ErrPermissionDenied},
		{name: "unknown course", actor: fx.Admin, course: "nope", week: 1, wantErr: course.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := fx.Classroom.ScheduleWeek(ctx, tt.actor, tt.course, ns(tt.week))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.week, s.Week)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	fx := testutil.NewFixture(t, 120, 1)
	s := fx.Schedule(t, 1, testutil.Start, session.MethodCode)

	_, err := fx.Classroom.OpenSession(ctx, fx.Students[0], s.ID)
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))

	opened, err := fx.Classroom.OpenSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusOpen, opened.Status)

	week, err := fx.Classroom.ListWeek(ctx, fx.Students[0], fx.Course.ID, 1)
	require.NoError(t, err)
	assert.Len(t, week, 2)

	code, err := fx.Classroom.GetAttendanceCode(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, opened.AttendanceCode, code)

	_, err = fx.Classroom.GetAttendanceCode(ctx, fx.Students[0], s.ID)
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))

	paused, err := fx.Classroom.PauseSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPaused, paused.Status)

	resumed, err := fx.Classroom.OpenSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusOpen, resumed.Status)

	closed, err := fx.Classroom.CloseSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusClosed, closed.Status)

	_, err = fx.Classroom.PauseSession(ctx, fx.Instructor, s.ID)
	assert.Equal(t, session.ErrInvalidTransition, errors.Cause(err))

	_, err = fx.Classroom.CloseSession(ctx, fx.Instructor, "nope")
	assert.Equal(t, session.ErrNotFound, errors.Cause(err))

	// resuming sends no second opening notification
	ns, err := fx.Classroom.ListNotifications(ctx, fx.Students[0], false)
	require.NoError(t, err)
	var opens int
	for _, n := range ns {
		if n.Kind == "attendance_opened" {
			opens++
		}
	}
	assert.Equal(t, 1, opens)
}

func TestPolicy_permissions(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 1)
	outsider := fx.AddPerson("Outsider", core.RoleStudent)
	late := 5

	p, err := fx.Classroom.GetPolicy(ctx, fx.Students[0], fx.Course.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.Default(fx.Course.ID).LateThreshold, p.LateThreshold)

	_, err = fx.Classroom.GetPolicy(ctx, outsider, fx.Course.ID)
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))

	_, err = fx.Classroom.UpdatePolicy(ctx, fx.Students[0], fx.Course.ID, policy.UpdatePolicy{LateThreshold: &late})
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))

	p, err = fx.Classroom.UpdatePolicy(ctx, fx.Instructor, fx.Course.ID, policy.UpdatePolicy{LateThreshold: &late})
	require.NoError(t, err)
	assert.Equal(t, 5, p.LateThreshold)

	// the updated threshold drives classification
	s := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	fx.Open(t, s)
	testutil.MockNow(t, testutil.Start.Add(6*time.Minute))
	res, err := fx.Classroom.CheckIn(ctx, fx.Students[0], attendance.CheckIn{SessionID: s.ID, StudentID: fx.Students[0].UserID})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, res.Attendance.Status)
}

func TestSummary(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 2)
	student := fx.Students[0]

	for week := 1; week <= 4; week++ {
		start := testutil.Start.AddDate(0, 0, 7*(week-1))
		s := fx.Schedule(t, week, start, session.MethodElectronic)
		fx.Open(t, s)
		switch week {
		case 1:
			testutil.MockNow(t, start)
		case 2:
			testutil.MockNow(t, start.Add(12*time.Minute))
		}
		if week <= 2 {
			_, err := fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{SessionID: s.ID, StudentID: student.UserID})
			require.NoError(t, err)
		}
		if week < 4 {
			_, err := fx.Classroom.CloseSession(ctx, fx.Instructor, s.ID)
			require.NoError(t, err)
		}
	}

	sum, err := fx.Classroom.Summary(ctx, student, fx.Course.ID, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.ClosedSessions)
	assert.Equal(t, 1, sum.Present)
	assert.Equal(t, 1, sum.Late)
	assert.Equal(t, 1, sum.Absent)
	assert.InDelta(t, 1.0/3, sum.AbsenceRatio, 1e-9)
	assert.InDelta(t, 1.5/3, sum.Score, 1e-9)
	assert.True(t, sum.Failing)
	assert.False(t, sum.AtRisk)

	_, err = fx.Classroom.Summary(ctx, fx.Students[1], fx.Course.ID, student.UserID)
	assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))

	other, err := fx.Classroom.Summary(ctx, fx.Instructor, fx.Course.ID, fx.Students[1].UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, other.Absent)
	assert.True(t, other.AtRisk)
}

// brokenNotifications fails every notification write.
type brokenNotifications struct {
	notification.Repository
	attempts *int
}

func (r brokenNotifications) CreateNotificationIfNotExist(context.Context, notification.Notification) (notification.Notification, bool, error) {
	*r.attempts++
	return notification.Notification{}, false, errors.New("notification store unavailable")
}

func TestCloseSession_notificationFailure(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 2)
	var attempts int
	deps := fx.ClassroomDeps
	deps.Notifications = brokenNotifications{Repository: deps.Notifications, attempts: &attempts}
	svc := classroom.NewService(deps)

	s := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	_, err := svc.OpenSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)

	closed, err := svc.CloseSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusClosed, closed.Status)
	assert.NotZero(t, attempts)

	records, err := svc.ListSessionAttendance(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, a := range records {
		assert.Equal(t, attendance.StatusAbsent, a.Status)
	}

	stored, err := svc.GetSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusClosed, stored.Status)

	ns, err := svc.ListNotifications(ctx, fx.Students[0], false)
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestOpenSession_configuredPeriodLength(t *testing.T) {
	fx := testutil.NewFixture(t, 120, 1)
	deps := fx.ClassroomDeps
	deps.PeriodMinutes = 40
	svc := classroom.NewService(deps)

	s := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	_, err := svc.OpenSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)

	week, err := svc.ListWeek(ctx, fx.Instructor, fx.Course.ID, 1)
	require.NoError(t, err)
	require.Len(t, week, 3)
	for i, sib := range week {
		assert.Equal(t, i+1, sib.Period)
	}
}
