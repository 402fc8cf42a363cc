package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/policy"
	"github.com/trezcool/mahudhurio/storage/database"
	"github.com/trezcool/mahudhurio/storage/database/inmem"
	"github.com/trezcool/mahudhurio/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Fixture, *bytes.Buffer) {
	fx := testutil.NewFixture(t, 60, 1)
	var out bytes.Buffer
	return &commandLine{
		conf:      fx.Conf,
		directory: fx.Directory,
		policies:  policy.NewService(inmemdb.NewPolicyRepository(fx.DB)),
		out:       &out,
	}, fx, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	orig := database.GooseRunFunc
	t.Cleanup(func() { database.GooseRunFunc = orig })
	database.GooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "running migrations lol: \"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "running migrations up-to: up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "running migrations up-to: version must be a number (got 'lol')"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "running migrations down-to: version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "holidays", "sql"}},
	})
}

func Test_commandLine_setPolicy(t *testing.T) {
	cli, fx, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no course", args: []string{"setpolicy", "-late", "5"}, wantErr: errHelp},
		{name: "bad flag", args: []string{"setpolicy", "-course", fx.Course.ID, "-late", "soon"}, wantErr: errHelp},
		{name: "unknown course", args: []string{"setpolicy", "-course", "nope", "-late", "5"}, wantErr: course.ErrNotFound},
		{name: "update", args: []string{"setpolicy", "-course", fx.Course.ID, "-late", "0", "-fail", "0.4"}},
	})

	p, err := cli.policies.GetOrCreateDefault(context.Background(), fx.Course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.LateThreshold) // explicitly set to zero
	assert.Equal(t, 0.4, p.AbsenceFailRatio)
	assert.Equal(t, policy.DefaultLateToAbsentThreshold, p.LateToAbsentThreshold)
	assert.Contains(t, out.String(), fx.Course.ID+": late > 0 min")
}

func Test_commandLine_importPolicies(t *testing.T) {
	cli, fx, _ := setup(t)
	other := fx.Directory.AddCourse(course.Course{Code: "CS102", Name: "Data Structures", InstructorID: fx.Instructor.UserID, WeeklyMinutes: 120})

	write := func(name, content string) string {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	valid := write("policies.yaml", strings.Join([]string{
		"policies:",
		"  - course_id: " + fx.Course.ID,
		"    absence_warning_count: 3",
		"    absence_danger_count: 5",
		"  - course_id: " + other.ID,
		"    late_weight: 0.75",
	}, "\n"))
	unknownField := write("unknown.yaml", "policies:\n  - course_id: "+fx.Course.ID+"\n    lateness: 3\n")
	noCourse := write("nocourse.yaml", "policies:\n  - late_threshold: 3\n")

	runCLITests(t, cli, []cliTest{
		{name: "no file", args: []string{"importpolicies"}, wantErr: errHelp},
		{name: "import", args: []string{"importpolicies", "-file", valid}},
	})

	err := cli.run([]string{"admin", "importpolicies", "-file", unknownField})
	assert.Error(t, err)
	err = cli.run([]string{"admin", "importpolicies", "-file", noCourse})
	assert.EqualError(t, err, "policy entry without course_id")
	err = cli.run([]string{"admin", "importpolicies", "-file", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	ctx := context.Background()
	p, err := cli.policies.GetOrCreateDefault(ctx, fx.Course.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.AbsenceWarningCount)
	assert.Equal(t, 5, p.AbsenceDangerCount)
	assert.Equal(t, policy.DefaultLateThreshold, p.LateThreshold)

	p, err = cli.policies.GetOrCreateDefault(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.75, p.LateWeight)
}

func Test_commandLine_token(t *testing.T) {
	cli, fx, out := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no user", args: []string{"token"}, wantErr: errHelp},
		{name: "unknown user", args: []string{"token", "-user", "nope"}, wantErr: course.ErrPersonNotFound},
		{name: "token", args: []string{"token", "-user", fx.Instructor.UserID}},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(lines[len(lines)-1], claims, func(*jwt.Token) (interface{}, error) {
		return []byte(fx.Conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, fx.Instructor, claims.Actor())
}
