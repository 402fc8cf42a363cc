package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/excuse"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/policy"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/tests"
)

var ctx = context.Background()

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
}

func setup(t *testing.T, weeklyMinutes, nStudents int) (*testutil.Fixture, echoapi.Server) {
	t.Helper()
	fx := testutil.NewFixture(t, weeklyMinutes, nStudents)
	translator := core.NewTranslator()
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           fx.Conf,
		Logger:         fx.Logger,
		Classroom:      fx.Classroom,
		Validate:       echoapi.NewValidator(translator),
		Translator:     translator,
		DisableReqLogs: true,
	})
	return fx, srv
}

func getToken(t *testing.T, conf *core.Config, actor core.Actor) string {
	token, err := echoapi.GenerateToken(conf, echoapi.GetActorClaims(conf, actor))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func do(t *testing.T, srv echoapi.Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func runTests(t *testing.T, srv echoapi.Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthentication(t *testing.T) {
	fx, srv := setup(t, 60, 1)

	rec := do(t, srv, http.MethodGet, "/v1/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var herr httpErr
	decode(t, rec, &herr)
	assert.Equal(t, "missing or malformed jwt", herr.Error)

	forged := getToken(t, fx.Conf, core.Actor{UserID: fx.Students[0].UserID, Role: "superuser"})
	rec = do(t, srv, http.MethodGet, "/v1/notifications", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := *fx.Conf
	other.SecretKey = "not-the-secret"
	rec = do(t, srv, http.MethodGet, "/v1/notifications", getToken(t, &other, fx.Students[0]), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/notifications", getToken(t, fx.Conf, fx.Students[0]), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionAPI(t *testing.T) {
	fx, srv := setup(t, 120, 2)
	instructor := getToken(t, fx.Conf, fx.Instructor)
	student := getToken(t, fx.Conf, fx.Students[0])
	weekPath := "/v1/courses/" + fx.Course.ID + "/weeks/1/sessions"
	ns := session.NewSession{StartTime: testutil.Start, EndTime: testutil.Start.Add(time.Hour), Method: session.MethodCode}

	runTests(t, srv, []httpTest{
		{name: "student cannot schedule", method: http.MethodPost, path: weekPath, body: ns, token: student, wantCode: http.StatusForbidden},
		{name: "bad week", method: http.MethodPost, path: "/v1/courses/" + fx.Course.ID + "/weeks/zero/sessions", body: ns, token: instructor, wantCode: http.StatusBadRequest},
		{name: "missing times", method: http.MethodPost, path: weekPath, body: session.NewSession{}, token: instructor, wantCode: http.StatusBadRequest},
		{name: "garbage token", method: http.MethodPost, path: weekPath, body: ns, token: "garbage", wantCode: http.StatusUnauthorized},
		{name: "unknown course", method: http.MethodPost, path: "/v1/courses/nope/weeks/1/sessions", body: ns, token: getToken(t, fx.Conf, fx.Admin), wantCode: http.StatusNotFound},
	})

	rec := do(t, srv, http.MethodPost, weekPath, instructor, ns)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var s session.Session
	decode(t, rec, &s)
	assert.Equal(t, 1, s.Week)
	assert.Equal(t, 1, s.Period)
	assert.Equal(t, session.StatusScheduled, s.Status)

	rec = do(t, srv, http.MethodPost, weekPath, instructor, ns)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPost, "/v1/sessions/"+s.ID+"/open", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, weekPath, student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var week []session.Session
	decode(t, rec, &week)
	assert.Len(t, week, 2)

	rec = do(t, srv, http.MethodGet, "/v1/sessions/"+s.ID+"/code", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/sessions/"+s.ID+"/code", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var code echoapi.CodeResponse
	decode(t, rec, &code)
	assert.NotEmpty(t, code.Code)

	testutil.MockNow(t, testutil.Start.Add(2*time.Minute))
	checkIn := "/v1/sessions/" + s.ID + "/checkin"

	rec = do(t, srv, http.MethodPost, checkIn, student, attendance.CheckIn{Code: "WRONG!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, checkIn, student, attendance.CheckIn{Code: code.Code})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res attendance.Result
	decode(t, rec, &res)
	assert.Equal(t, attendance.StatusPresent, res.Attendance.Status)
	assert.Equal(t, fx.Students[0].UserID, res.Attendance.StudentID)
	assert.Len(t, res.Related, 1) // period 2

	rec = do(t, srv, http.MethodPost, checkIn, student, attendance.CheckIn{Code: code.Code})
	assert.Equal(t, http.StatusConflict, rec.Code)
	var herr httpErr
	decode(t, rec, &herr)
	assert.Equal(t, attendance.ErrDuplicate.Error(), herr.Error)

	rec = do(t, srv, http.MethodPost, "/v1/sessions/nope/checkin", student, attendance.CheckIn{Code: code.Code})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/v1/sessions/"+s.ID+"/close", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/sessions/"+s.ID+"/attendances", instructor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []attendance.Attendance
	decode(t, rec, &records)
	require.Len(t, records, 2)
	statuses := map[string]attendance.Status{}
	for _, a := range records {
		statuses[a.StudentID] = a.Status
	}
	assert.Equal(t, attendance.StatusPresent, statuses[fx.Students[0].UserID])
	assert.Equal(t, attendance.StatusAbsent, statuses[fx.Students[1].UserID])
}

func TestRollCallAPI(t *testing.T) {
	fx, srv := setup(t, 60, 1)
	instructor := getToken(t, fx.Conf, fx.Instructor)
	s := fx.Schedule(t, 1, testutil.Start, session.MethodRollCall)
	fx.Open(t, s)

	late := attendance.StatusLate
	minutes := 12
	path := "/v1/sessions/" + s.ID + "/attendances/" + fx.Students[0].UserID

	rec := do(t, srv, http.MethodPut, path, instructor, attendance.Entry{Status: &late, LateMinutes: &minutes})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res attendance.Result
	decode(t, rec, &res)
	assert.Equal(t, attendance.StatusLate, res.Attendance.Status)
	assert.Equal(t, 12, res.Attendance.LateMinutes)

	excused := attendance.StatusExcused
	rec = do(t, srv, http.MethodPatch, "/v1/attendances/"+res.Attendance.ID, instructor, attendance.Entry{Status: &excused})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &res)
	assert.Equal(t, attendance.StatusExcused, res.Attendance.Status)

	invalid := attendance.Status(9)
	runTests(t, srv, []httpTest{
		{name: "invalid status", method: http.MethodPatch, path: "/v1/attendances/" + res.Attendance.ID, body: attendance.Entry{Status: &invalid}, token: instructor, wantCode: http.StatusBadRequest},
		{name: "unknown record", method: http.MethodPatch, path: "/v1/attendances/nope", body: attendance.Entry{Status: &late}, token: instructor, wantCode: http.StatusNotFound},
		{name: "student", method: http.MethodPut, path: path, body: attendance.Entry{}, token: getToken(t, fx.Conf, fx.Students[0]), wantCode: http.StatusForbidden},
	})
}

func TestPolicyAPI(t *testing.T) {
	fx, srv := setup(t, 60, 1)
	path := "/v1/courses/" + fx.Course.ID + "/policy"
	danger := 5

	rec := do(t, srv, http.MethodGet, path, getToken(t, fx.Conf, fx.Students[0]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p policy.Policy
	decode(t, rec, &p)
	assert.Equal(t, policy.DefaultAbsenceDangerCount, p.AbsenceDangerCount)

	rec = do(t, srv, http.MethodPatch, path, getToken(t, fx.Conf, fx.Instructor), policy.UpdatePolicy{AbsenceDangerCount: &danger})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &p)
	assert.Equal(t, 5, p.AbsenceDangerCount)
	assert.Equal(t, policy.DefaultLateThreshold, p.LateThreshold)

	rec = do(t, srv, http.MethodPatch, path, getToken(t, fx.Conf, fx.Students[0]), policy.UpdatePolicy{AbsenceDangerCount: &danger})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExcuseAPI(t *testing.T) {
	fx, srv := setup(t, 60, 1)
	student := fx.Students[0]
	s := fx.Schedule(t, 1, testutil.Start, session.MethodElectronic)
	fx.Open(t, s)
	_, err := fx.Classroom.CloseSession(ctx, fx.Instructor, s.ID)
	require.NoError(t, err)

	path := "/v1/courses/" + fx.Course.ID + "/weeks/1/excuses"
	runTests(t, srv, []httpTest{
		{name: "missing reason", method: http.MethodPost, path: path, body: excuse.NewExcuse{}, token: getToken(t, fx.Conf, student), wantCode: http.StatusBadRequest},
		{name: "unknown reason", method: http.MethodPost, path: path, body: excuse.NewExcuse{ReasonCode: "hangover"}, token: getToken(t, fx.Conf, student), wantCode: http.StatusBadRequest},
	})

	rec := do(t, srv, http.MethodPost, path, getToken(t, fx.Conf, student), excuse.NewExcuse{ReasonCode: "Sick-Leave", ReasonText: "flu"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e excuse.Excuse
	decode(t, rec, &e)
	assert.Equal(t, excuse.StatusPending, e.Status)
	require.Len(t, e.Requests, 1)

	decision := "/v1/excuses/" + e.Requests[0].ID + "/decision"
	runTests(t, srv, []httpTest{
		{name: "student decides", method: http.MethodPost, path: decision, body: excuse.Decision{Status: excuse.StatusApproved}, token: getToken(t, fx.Conf, student), wantCode: http.StatusForbidden},
		{name: "pending is no decision", method: http.MethodPost, path: decision, body: excuse.Decision{Status: excuse.StatusPending}, token: getToken(t, fx.Conf, fx.Instructor), wantCode: http.StatusBadRequest},
	})

	rec = do(t, srv, http.MethodPost, decision, getToken(t, fx.Conf, fx.Instructor), excuse.Decision{Status: excuse.StatusApproved})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out excuse.Outcome
	decode(t, rec, &out)
	assert.Equal(t, excuse.StatusApproved, out.Excuse.Status)
	require.Len(t, out.Attendances, 1)
	assert.Equal(t, attendance.StatusExcused, out.Attendances[0].Status)

	rec = do(t, srv, http.MethodPost, decision, getToken(t, fx.Conf, fx.Instructor), excuse.Decision{Status: excuse.StatusRejected})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/courses/"+fx.Course.ID+"/students/"+student.UserID+"/summary", getToken(t, fx.Conf, student), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sum attendance.Summary
	decode(t, rec, &sum)
	assert.Equal(t, 1, sum.ClosedSessions)
	assert.Equal(t, 1, sum.Excused)
	assert.Equal(t, 0, sum.Absent)
}

func TestNotificationAPI(t *testing.T) {
	fx, srv := setup(t, 60, 1)
	student := getToken(t, fx.Conf, fx.Students[0])
	fx.Open(t, fx.Schedule(t, 1, testutil.Start, session.MethodElectronic))

	rec := do(t, srv, http.MethodGet, "/v1/notifications?unread=true", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ns []notification.Notification
	decode(t, rec, &ns)
	require.Len(t, ns, 1)
	assert.Equal(t, notification.KindAttendanceOpened, ns[0].Kind)

	rec = do(t, srv, http.MethodPost, "/v1/notifications/"+ns[0].ID+"/read", getToken(t, fx.Conf, fx.Instructor), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/v1/notifications/"+ns[0].ID+"/read", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var n notification.Notification
	decode(t, rec, &n)
	assert.True(t, n.IsRead)
	assert.NotNil(t, n.ReadAt)

	rec = do(t, srv, http.MethodGet, "/v1/notifications?unread=true", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &ns)
	assert.Empty(t, ns)
}
