package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/classroom"
)

type attendanceApi struct {
	svc *classroom.Service
}

func registerAttendanceAPI(g *echo.Group, svc *classroom.Service) {
	api := attendanceApi{svc: svc}
	staff := roleMiddleware(core.RoleAdmin, core.RoleInstructor)

	g.POST("/sessions/:id/checkin", api.checkIn, roleMiddleware(core.RoleStudent))
	g.GET("/sessions/:id/attendances", api.listSession, staff)
	g.PUT("/sessions/:id/attendances/:student", api.rollCall, staff)
	g.PATCH("/attendances/:id", api.correct, staff)
	g.GET("/courses/:course/students/:student/summary", api.summary)
}

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data attendance.CheckIn
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}
	data.SessionID = ctx.Param("id")
	data.StudentID = actor.UserID

	res, err := api.svc.CheckIn(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "checking in")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *attendanceApi) listSession(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.ListSessionAttendance(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing session attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) rollCall(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data attendance.Entry
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}

	res, err := api.svc.RollCall(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("student"), data)
	if err != nil {
		return errors.Wrap(err, "recording roll call")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) correct(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	var data attendance.Entry
	if err = bindAndValidate(ctx, &data); err != nil {
		return err
	}

	res, err := api.svc.CorrectAttendance(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "correcting attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), actor, ctx.Param("course"), ctx.Param("student"))
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}
