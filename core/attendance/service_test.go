package attendance_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/tests"
)

var ctx = context.Background()

func statusPtr(s attendance.Status) *attendance.Status { return &s }
func intPtr(i int) *int                                { return &i }

func TestCheckIn_classification(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 3)
	s, err := fx.Classroom.ScheduleWeek(ctx, fx.Instructor, fx.Course.ID, session.NewSession{
		Week:               1,
		StartTime:          testutil.Start,
		EndTime:            testutil.Start.Add(time.Hour),
		AttendanceDuration: 60,
	})
	require.NoError(t, err)
	fx.Open(t, s)

	tests := []struct {
		name     string
		student  core.Actor
		at       time.Time
		want     attendance.Status
		wantLate int
	}{
		{name: "09:05 present", student: fx.Students[0], at: testutil.Start.Add(5 * time.Minute), want: attendance.StatusPresent, wantLate: 5},
		{name: "09:15 late", student: fx.Students[1], at: testutil.Start.Add(15 * time.Minute), want: attendance.StatusLate, wantLate: 15},
		{name: "09:35 absent", student: fx.Students[2], at: testutil.Start.Add(35 * time.Minute), want: attendance.StatusAbsent, wantLate: 35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.MockNow(t, tt.at)
			res, err := fx.Classroom.CheckIn(ctx, tt.student, attendance.CheckIn{
				SessionID: s.ID,
				StudentID: tt.student.UserID,
				Location:  " lab ",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Attendance.Status)
			assert.Equal(t, tt.wantLate, res.Attendance.LateMinutes)
			assert.Equal(t, "lab", res.Attendance.Location)
			require.NotNil(t, res.Attendance.CheckedAt)
			assert.True(t, tt.at.Equal(*res.Attendance.CheckedAt))

			var absences int
			for _, ev := range res.Events {
				if ev.Kind == core.EventAbsenceAdded {
					absences++
				}
			}
			if tt.want == attendance.StatusAbsent {
				assert.Equal(t, 1, absences)
			} else {
				assert.Zero(t, absences)
			}
		})
	}
}

func TestCheckIn_rejections(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 2)
	student := fx.Students[0]
	stranger := fx.AddPerson("Stranger", core.RoleStudent)

	scheduled := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	open := fx.Schedule(t, 2, testutil.Start, session.MethodElectronic)
	fx.Open(t, open)
	coded := fx.Schedule(t, 3, testutil.Start, session.MethodCode)
	fx.Open(t, coded)
	code, err := fx.Classroom.GetAttendanceCode(ctx, fx.Instructor, coded.ID)
	require.NoError(t, err)

	testutil.MockNow(t, testutil.Start.Add(5*time.Minute))

	tests := []struct {
		name    string
		actor   core.Actor
		ci      attendance.CheckIn
		wantErr error
	}{
		{name: "unknown session", actor: student, ci: attendance.CheckIn{SessionID: "nope", StudentID: student.UserID}, wantErr: session.ErrNotFound},
		{name: "not enrolled", actor: stranger, ci: attendance.CheckIn{SessionID: open.ID, StudentID: stranger.UserID}, wantErr: attendance.ErrNotEnrolled},
		{name: "not open", actor: student, ci: attendance.CheckIn{SessionID: scheduled.ID, StudentID: student.UserID}, wantErr: attendance.ErrSessionNotOpen},
		{name: "wrong code", actor: student, ci: attendance.CheckIn{SessionID: coded.ID, StudentID: student.UserID, Code: "XXXXXX"}, wantErr: attendance.ErrInvalidCode},
		{name: "missing code", actor: student, ci: attendance.CheckIn{SessionID: coded.ID, StudentID: student.UserID}, wantErr: attendance.ErrInvalidCode},
		{name: "for someone else", actor: fx.Students[1], ci: attendance.CheckIn{SessionID: open.ID, StudentID: student.UserID}, wantErr: core.ErrPermissionDenied},
		{name: "instructor", actor: fx.Instructor, ci: attendance.CheckIn{SessionID: open.ID, StudentID: student.UserID}, wantErr: core.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.Classroom.CheckIn(ctx, tt.actor, tt.ci)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	t.Run("code is case insensitive", func(t *testing.T) {
		res, err := fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{
			SessionID: coded.ID,
			StudentID: student.UserID,
			Code:      " " + strings.ToLower(code) + " ",
		})
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusPresent, res.Attendance.Status)
	})

	t.Run("outside window", func(t *testing.T) {
		testutil.MockNow(t, testutil.Start.Add(16*time.Minute))
		_, err := fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{SessionID: open.ID, StudentID: student.UserID})
		assert.Equal(t, attendance.ErrOutsideWindow, errors.Cause(err))
	})

	t.Run("before start", func(t *testing.T) {
		testutil.MockNow(t, testutil.Start.Add(-time.Minute))
		_, err := fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{SessionID: open.ID, StudentID: student.UserID})
		assert.Equal(t, attendance.ErrOutsideWindow, errors.Cause(err))
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{SessionID: open.ID, StudentID: student.UserID})
		require.NoError(t, err)
		_, err = fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{SessionID: open.ID, StudentID: student.UserID})
		assert.Equal(t, attendance.ErrDuplicate, errors.Cause(err))
		assert.True(t, core.IsConflict(err))
	})

	t.Run("admin acts for a student", func(t *testing.T) {
		other := fx.Students[1]
		res, err := fx.Classroom.CheckIn(ctx, fx.Admin, attendance.CheckIn{SessionID: open.ID, StudentID: other.UserID})
		require.NoError(t, err)
		assert.Equal(t, other.UserID, res.Attendance.StudentID)
	})
}

func TestCheckIn_concurrentDuplicates(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 1)
	student := fx.Students[0]
	s := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	fx.Open(t, s)
	testutil.MockNow(t, testutil.Start.Add(time.Minute))

	const attempts = 20
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		duplicates int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{SessionID: s.ID, StudentID: student.UserID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Cause(err) == attendance.ErrDuplicate:
				duplicates++
			default:
				t.Errorf("CheckIn() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, duplicates)

	records, err := fx.Classroom.ListSessionAttendance(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCheckIn_weekPropagation(t *testing.T) {
	fx := testutil.NewFixture(t, 180, 2)
	student := fx.Students[0]
	p1 := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	week := fx.Open(t, p1)
	require.Len(t, week, 3)
	p2, p3 := week[1], week[2]

	// an independent record on period 3 is kept
	_, err := fx.Classroom.RollCall(ctx, fx.Instructor, p3.ID, student.UserID, attendance.Entry{
		Status:      statusPtr(attendance.StatusLate),
		LateMinutes: intPtr(7),
	})
	require.NoError(t, err)

	testutil.MockNow(t, testutil.Start.Add(12*time.Minute))
	res, err := fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{SessionID: p1.ID, StudentID: student.UserID})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLate, res.Attendance.Status)
	assert.Equal(t, 12, res.Attendance.LateMinutes)

	require.Len(t, res.Related, 1)
	assert.Equal(t, p2.ID, res.Related[0].SessionID)
	assert.Equal(t, attendance.StatusLate, res.Related[0].Status)
	assert.Zero(t, res.Related[0].LateMinutes)
	assert.NotNil(t, res.Related[0].CheckedAt)

	records, err := fx.Classroom.ListSessionAttendance(ctx, fx.Instructor, p3.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7, records[0].LateMinutes)

	t.Run("checking into a later period does not propagate", func(t *testing.T) {
		other := fx.Students[1]
		_, err := fx.Classroom.OpenSession(ctx, fx.Instructor, p2.ID)
		require.NoError(t, err)
		testutil.MockNow(t, p2.StartTime.Add(time.Minute))

		res, err := fx.Classroom.CheckIn(ctx, other, attendance.CheckIn{SessionID: p2.ID, StudentID: other.UserID})
		require.NoError(t, err)
		assert.Empty(t, res.Related)

		records, err := fx.Classroom.ListSessionAttendance(ctx, fx.Instructor, p3.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}

func TestRollCall(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 2)
	student := fx.Students[0]
	s := fx.Schedule(t, 1, testutil.Start, session.MethodRollCall)
	testutil.MockNow(t, testutil.Start.Add(20*time.Minute))

	res, err := fx.Classroom.RollCall(ctx, fx.Instructor, s.ID, student.UserID, attendance.Entry{})
	require.NoError(t, err)
	created := res.Attendance
	assert.Equal(t, attendance.StatusPresent, created.Status)
	assert.Zero(t, created.LateMinutes)
	require.NotNil(t, created.CheckedAt)

	testutil.MockNow(t, testutil.Start.Add(40*time.Minute))
	res, err = fx.Classroom.RollCall(ctx, fx.Instructor, s.ID, student.UserID, attendance.Entry{LateMinutes: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.Attendance.ID)
	assert.Equal(t, attendance.StatusPresent, res.Attendance.Status)
	assert.Equal(t, 3, res.Attendance.LateMinutes)
	assert.Equal(t, *created.CheckedAt, *res.Attendance.CheckedAt) // not overwritten

	res, err = fx.Classroom.RollCall(ctx, fx.Instructor, s.ID, student.UserID, attendance.Entry{Status: statusPtr(attendance.StatusAbsent)})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, res.Attendance.Status)
	assert.Equal(t, 3, res.Attendance.LateMinutes)

	tests := []struct {
		name    string
		actor   core.Actor
		student string
		entry   attendance.Entry
		wantErr error
	}{
		{name: "invalid status", actor: fx.Instructor, student: student.UserID, entry: attendance.Entry{Status: statusPtr(7)}, wantErr: attendance.ErrInvalidStatus},
		{name: "undetermined", actor: fx.Instructor, student: student.UserID, entry: attendance.Entry{Status: statusPtr(attendance.StatusUndetermined)}, wantErr: attendance.ErrInvalidStatus},
		{name: "negative lateness", actor: fx.Instructor, student: student.UserID, entry: attendance.Entry{LateMinutes: intPtr(-1)}, wantErr: attendance.ErrNegativeLateness},
		{name: "not enrolled", actor: fx.Instructor, student: "stranger", wantErr: attendance.ErrNotEnrolled},
		{name: "student", actor: student, student: student.UserID, wantErr: core.ErrPermissionDenied},
		{name: "other instructor", actor: fx.AddPerson("Other", core.RoleInstructor), student: student.UserID, wantErr: core.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.Classroom.RollCall(ctx, tt.actor, s.ID, tt.student, tt.entry)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}
}

func TestCorrectAttendance(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 1)
	student := fx.Students[0]
	s := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	fx.Open(t, s)
	testutil.MockNow(t, testutil.Start.Add(2*time.Minute))

	res, err := fx.Classroom.CheckIn(ctx, student, attendance.CheckIn{SessionID: s.ID, StudentID: student.UserID})
	require.NoError(t, err)

	corrected, err := fx.Classroom.CorrectAttendance(ctx, fx.Instructor, res.Attendance.ID, attendance.Entry{
		Status: statusPtr(attendance.StatusAbsent),
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, corrected.Attendance.Status)
	assert.Equal(t, 2, corrected.Attendance.LateMinutes)
	assert.Equal(t, core.EventAbsenceAdded, corrected.Events[len(corrected.Events)-1].Kind)

	// absent to absent adds no absence
	again, err := fx.Classroom.CorrectAttendance(ctx, fx.Instructor, res.Attendance.ID, attendance.Entry{
		Status: statusPtr(attendance.StatusAbsent),
	})
	require.NoError(t, err)
	for _, ev := range again.Events {
		assert.NotEqual(t, core.EventAbsenceAdded, ev.Kind)
	}

	_, err = fx.Classroom.CorrectAttendance(ctx, fx.Instructor, "nope", attendance.Entry{})
	assert.Equal(t, attendance.ErrNotFound, errors.Cause(err))
}

func TestCloseSession_marksAbsentees(t *testing.T) {
	fx := testutil.NewFixture(t, 60, 3)
	s := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	fx.Open(t, s)

	testutil.MockNow(t, testutil.Start.Add(time.Minute))
	checkedIn := fx.Students[0]
	_, err := fx.Classroom.CheckIn(ctx, checkedIn, attendance.CheckIn{SessionID: s.ID, StudentID: checkedIn.UserID})
	require.NoError(t, err)

	testutil.MockNow(t, testutil.Start.Add(time.Hour))
	closed, err := fx.Classroom.CloseSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusClosed, closed.Status)

	records, err := fx.Classroom.ListSessionAttendance(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, a := range records {
		if a.StudentID == checkedIn.UserID {
			assert.Equal(t, attendance.StatusPresent, a.Status)
			continue
		}
		assert.Equal(t, attendance.StatusAbsent, a.Status)
		assert.Zero(t, a.LateMinutes)
		require.NotNil(t, a.CheckedAt)
		assert.True(t, testutil.Start.Add(time.Hour).Equal(*a.CheckedAt))
	}

	_, err = fx.Classroom.CloseSession(ctx, fx.Instructor, s.ID)
	assert.Equal(t, session.ErrInvalidTransition, errors.Cause(err))
}
