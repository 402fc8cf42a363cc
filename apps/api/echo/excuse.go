package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/excuse"
)

type excuseApi struct {
	svc *classroom.Service
}

func registerExcuseAPI(g *echo.Group, svc *classroom.Service) {
	api := excuseApi{svc: svc}

	g.POST("/courses/:course/weeks/:week/excuses", api.submit)
	g.POST("/excuses/:id/decision", api.decide, roleMiddleware(core.RoleAdmin, core.RoleInstructor))
}

// SubmitExcuseRequest lets staff submit on behalf of a student; students always submit for themselves.
type SubmitExcuseRequest struct {
	excuse.NewExcuse
	StudentID string `json:"student_id"`
}

func (api *excuseApi) submit(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	week, err := intParam(ctx, "week")
	if err != nil {
		return err
	}

	var data SubmitExcuseRequest
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	if actor.IsStudent() || data.StudentID == "" {
		data.StudentID = actor.UserID
	}

	e, err := api.svc.SubmitWeeklyExcuse(ctx.Request().Context(), actor, ctx.Param("course"), week, data.StudentID, data.NewExcuse)
	if err != nil {
		return errors.Wrap(err, "submitting excuse")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *excuseApi) decide(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data excuse.Decision
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}

	out, err := api.svc.DecideExcuse(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "deciding excuse")
	}
	return ctx.JSON(http.StatusOK, out)
}
