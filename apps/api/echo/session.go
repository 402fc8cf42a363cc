package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/session"
)

type sessionApi struct {
	svc *classroom.Service
}

func registerSessionAPI(g *echo.Group, svc *classroom.Service) {
	api := sessionApi{svc: svc}
	staff := roleMiddleware(core.RoleAdmin, core.RoleInstructor)

	g.POST("/courses/:course/weeks/:week/sessions", api.schedule, staff)
	g.GET("/courses/:course/weeks/:week/sessions", api.listWeek)

	sg := g.Group("/sessions/:id")
	sg.GET("", api.retrieve)
	sg.POST("/open", api.open, staff)
	sg.POST("/pause", api.pause, staff)
	sg.POST("/close", api.close, staff)
	sg.GET("/code", api.code, staff)
}

// CodeResponse carries the attendance code of a code-method session.
type CodeResponse struct {
	Code string `json:"code"`
}

func (api *sessionApi) schedule(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	week, err := intParam(ctx, "week")
	if err != nil {
		return err
	}

	var data session.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if data.Week != 0 && data.Week != week {
		return core.NewValidationError(nil, core.FieldError{Field: "week", Error: "does not match the path"})
	}
	data.Week = week
	data.Clean()
	if err = ctx.Validate(&data); err != nil {
		return err
	}

	s, err := api.svc.ScheduleWeek(ctx.Request().Context(), actor, ctx.Param("course"), data)
	if err != nil {
		return errors.Wrap(err, "scheduling week")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *sessionApi) listWeek(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	week, err := intParam(ctx, "week")
	if err != nil {
		return err
	}

	sessions, err := api.svc.ListWeek(ctx.Request().Context(), actor, ctx.Param("course"), week)
	if err != nil {
		return errors.Wrap(err, "listing week sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.GetSession(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) transition(
	ctx echo.Context,
	fn func(svc *classroom.Service, actor core.Actor, id string) (session.Session, error),
) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	s, err := fn(api.svc, actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "transitioning session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) open(ctx echo.Context) error {
	return api.transition(ctx, func(svc *classroom.Service, actor core.Actor, id string) (session.Session, error) {
		return svc.OpenSession(ctx.Request().Context(), actor, id)
	})
}

func (api *sessionApi) pause(ctx echo.Context) error {
	return api.transition(ctx, func(svc *classroom.Service, actor core.Actor, id string) (session.Session, error) {
		return svc.PauseSession(ctx.Request().Context(), actor, id)
	})
}

func (api *sessionApi) close(ctx echo.Context) error {
	return api.transition(ctx, func(svc *classroom.Service, actor core.Actor, id string) (session.Session, error) {
		return svc.CloseSession(ctx.Request().Context(), actor, id)
	})
}

func (api *sessionApi) code(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	code, err := api.svc.GetAttendanceCode(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting attendance code")
	}
	return ctx.JSON(http.StatusOK, CodeResponse{Code: code})
}
