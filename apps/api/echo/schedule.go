package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core/schedule"
)

type scheduleApi struct {
	svc *schedule.Service
}

func registerScheduleAPI(g *echo.Group, svc *schedule.Service) {
	api := scheduleApi{svc: svc}

	g.POST("/rooms", api.createRoom)
	g.GET("/rooms", api.listRooms)
	g.GET("/rooms/:id", api.retrieveRoom)

	sg := g.Group("/schedules")
	sg.POST("", api.createSchedule)
	sg.GET("", api.querySchedules)
	sg.GET("/:id", api.retrieveSchedule)
	sg.PUT("/:id", api.updateSchedule)
	sg.DELETE("/:id", api.destroySchedule)

	bg := g.Group("/bookings")
	bg.POST("", api.bookRoom)
	bg.GET("", api.queryBookings)
	bg.GET("/:id", api.retrieveBooking)
	bg.PUT("/:id", api.updateBooking)
	bg.DELETE("/:id", api.cancelBooking)
}

// Rooms

func (api *scheduleApi) createRoom(ctx echo.Context) error {
	var data schedule.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	room, err := api.svc.CreateRoom(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *scheduleApi) listRooms(ctx echo.Context) error {
	rooms, err := api.svc.QueryRooms(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing rooms")
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *scheduleApi) retrieveRoom(ctx echo.Context) error {
	room, err := api.svc.GetRoom(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting room")
	}
	return ctx.JSON(http.StatusOK, room)
}

// Schedules

func (api *scheduleApi) createSchedule(ctx echo.Context) error {
	var data schedule.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	sch, err := api.svc.CreateSchedule(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating schedule")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *scheduleApi) querySchedules(ctx echo.Context) error {
	var filter schedule.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	schedules, err := api.svc.QuerySchedules(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying schedules")
	}
	return ctx.JSON(http.StatusOK, schedules)
}

func (api *scheduleApi) retrieveSchedule(ctx echo.Context) error {
	sch, err := api.svc.GetSchedule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting schedule")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *scheduleApi) updateSchedule(ctx echo.Context) error {
	var data schedule.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	sch, err := api.svc.UpdateSchedule(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating schedule")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *scheduleApi) destroySchedule(ctx echo.Context) error {
	if err := api.svc.DeleteSchedule(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Bookings

func (api *scheduleApi) bookRoom(ctx echo.Context) error {
	var data schedule.NewBooking
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	bk, err := api.svc.BookRoom(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "booking room")
	}
	return ctx.JSON(http.StatusCreated, bk)
}

func (api *scheduleApi) queryBookings(ctx echo.Context) error {
	var filter schedule.BookingFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to BookingFilter")
	}
	bookings, err := api.svc.QueryBookings(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying bookings")
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (api *scheduleApi) retrieveBooking(ctx echo.Context) error {
	bk, err := api.svc.GetBooking(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting booking")
	}
	return ctx.JSON(http.StatusOK, bk)
}

func (api *scheduleApi) updateBooking(ctx echo.Context) error {
	var data schedule.NewBooking
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	bk, err := api.svc.UpdateBooking(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating booking")
	}
	return ctx.JSON(http.StatusOK, bk)
}

func (api *scheduleApi) cancelBooking(ctx echo.Context) error {
	if err := api.svc.CancelBooking(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "cancelling booking")
	}
	return ctx.NoContent(http.StatusNoContent)
}
