package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/policy"
)

type policyApi struct {
	svc *classroom.Service
}

func registerPolicyAPI(g *echo.Group, svc *classroom.Service) {
	api := policyApi{svc: svc}

	g.GET("/courses/:course/policy", api.retrieve)
	g.PATCH("/courses/:course/policy", api.update, roleMiddleware(core.RoleAdmin, core.RoleInstructor))
}

func (api *policyApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.GetPolicy(ctx.Request().Context(), actor, ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "getting policy")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *policyApi) update(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data policy.UpdatePolicy
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}

	p, err := api.svc.UpdatePolicy(ctx.Request().Context(), actor, ctx.Param("course"), data)
	if err != nil {
		return errors.Wrap(err, "updating policy")
	}
	return ctx.JSON(http.StatusOK, p)
}
