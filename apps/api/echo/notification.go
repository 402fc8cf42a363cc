package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/classroom"
)

type notificationApi struct {
	svc *classroom.Service
}

func registerNotificationAPI(g *echo.Group, svc *classroom.Service) {
	api := notificationApi{svc: svc}

	g.GET("/notifications", api.list)
	g.POST("/notifications/:id/read", api.markRead)
}

func (api *notificationApi) list(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	ns, err := api.svc.ListNotifications(ctx.Request().Context(), actor, boolQuery(ctx, "unread"))
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, ns)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkNotificationRead(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}
