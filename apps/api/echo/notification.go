package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core/notification"
)

type notificationApi struct {
	inbox *notification.Inbox
}

func registerNotificationAPI(g *echo.Group, inbox *notification.Inbox) {
	api := notificationApi{inbox: inbox}

	ng := g.Group("/notifications")
	ng.GET("", api.list)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

func (api *notificationApi) list(ctx echo.Context) error {
	unread, err := boolParam(ctx, "unread")
	if err != nil {
		return err
	}
	notifs, err := api.inbox.List(ctx.Request().Context(), getContextUser(ctx), unread != nil && *unread)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	n, err := api.inbox.UnreadCount(ctx.Request().Context(), getContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": n})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	notif, err := api.inbox.MarkRead(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification as read")
	}
	return ctx.JSON(http.StatusOK, notif)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	n, err := api.inbox.MarkAllRead(ctx.Request().Context(), getContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "marking all notifications as read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": n})
}
