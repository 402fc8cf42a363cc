package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/policy"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db        *sql.DB
	conf      *core.Config
	directory course.Directory
	policies  *policy.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) over the migrations")
	_, _ = fmt.Fprintln(cli.out, "  setpolicy -course ID [-late N] [-absent N] [-warning N] [-danger N] [-fail R] - update a course's policy")
	_, _ = fmt.Fprintln(cli.out, "  importpolicies -file FILE - apply the policies listed in a YAML file")
	_, _ = fmt.Fprintln(cli.out, "  token -user ID - issue an API token for a person")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "setpolicy":
		cmd := flag.NewFlagSet("setpolicy", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		courseID := cmd.String("course", "", "The course ID.")
		late := cmd.Int("late", 0, "Minutes after start past which a check-in is late.")
		absent := cmd.Int("absent", 0, "Minutes after start past which a check-in counts as an absence.")
		warning := cmd.Int("warning", 0, "Absence count triggering a warning.")
		danger := cmd.Int("danger", 0, "Absence count triggering a danger notice.")
		fail := cmd.Float64("fail", 0, "Absence ratio above which the student fails.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *courseID == "" {
			cmd.Usage()
			return errHelp
		}

		// only flags given on the command line are applied
		var up policy.UpdatePolicy
		cmd.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "late":
				up.LateThreshold = late
			case "absent":
				up.LateToAbsentThreshold = absent
			case "warning":
				up.AbsenceWarningCount = warning
			case "danger":
				up.AbsenceDangerCount = danger
			case "fail":
				up.AbsenceFailRatio = fail
			}
		})
		return cli.setPolicy(ctx, *courseID, up)

	case "importpolicies":
		cmd := flag.NewFlagSet("importpolicies", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		file := cmd.String("file", "", "Path to the YAML file.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *file == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.importPolicies(ctx, *file)

	case "token":
		cmd := flag.NewFlagSet("token", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		userID := cmd.String("user", "", "The person ID.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *userID == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.token(ctx, *userID)

	default:
		cli.printUsage()
		return errHelp
	}
}
