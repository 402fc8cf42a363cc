package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/mahudhurio/core/policy"
)

// policyFile is the layout read by importpolicies:
//
//	policies:
//	  - course_id: c1
//	    late_threshold: 5
//	    absence_fail_ratio: 0.2
type policyFile struct {
	Policies []struct {
		CourseID            string `yaml:"course_id"`
		policy.UpdatePolicy `yaml:",inline"`
	} `yaml:"policies"`
}

func (cli *commandLine) setPolicy(ctx context.Context, courseID string, up policy.UpdatePolicy) error {
	if _, err := cli.directory.GetCourse(ctx, courseID); err != nil {
		return errors.Wrapf(err, "finding course %q", courseID)
	}
	p, err := cli.policies.Update(ctx, courseID, up)
	if err != nil {
		return errors.Wrapf(err, "updating policy of course %q", courseID)
	}
	_, _ = fmt.Fprintf(cli.out, "%s: late > %d min, absent > %d min, warning at %d, danger at %d, fail above %.2f\n",
		p.CourseID, p.LateThreshold, p.LateToAbsentThreshold, p.AbsenceWarningCount, p.AbsenceDangerCount, p.AbsenceFailRatio)
	return nil
}

func (cli *commandLine) importPolicies(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening policies file")
	}
	defer func() { _ = f.Close() }()

	var pf policyFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(&pf); err != nil {
		return errors.Wrap(err, "decoding policies file")
	}

	for _, entry := range pf.Policies {
		if entry.CourseID == "" {
			return errors.New("policy entry without course_id")
		}
		if err = cli.setPolicy(ctx, entry.CourseID, entry.UpdatePolicy); err != nil {
			return err
		}
	}
	return nil
}
