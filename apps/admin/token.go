package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
)

func (cli *commandLine) token(ctx context.Context, userID string) error {
	p, err := cli.directory.GetPerson(ctx, userID)
	if err != nil {
		return errors.Wrapf(err, "finding person %q", userID)
	}
	actor := core.Actor{UserID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role}
	token, err := echoapi.GenerateToken(cli.conf, echoapi.GetActorClaims(cli.conf, actor))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, token)
	return nil
}
