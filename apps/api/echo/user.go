package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core/gamification"
	"github.com/trezcool/learnsphere/core/user"
)

type userApi struct {
	svc    user.ServiceInterface
	points *gamification.Service
}

type (
	linkParentRequest struct {
		ParentID string `json:"parent_id"`
	}

	pointsResponse struct {
		Balance      int                        `json:"balance"`
		Transactions []gamification.Transaction `json:"transactions"`
	}
)

func registerUserAPI(g *echo.Group, svc user.ServiceInterface, points *gamification.Service) {
	api := userApi{svc: svc, points: points}

	ug := g.Group("/users")
	ug.POST("", api.create)
	ug.GET("", api.query)
	ug.GET("/me", api.me)

	// detail endpoints
	dg := ug.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.GET("/parents", api.parents)
	dg.POST("/parents", api.linkParent)
	dg.DELETE("/parents/:parent_id", api.unlinkParent)
	dg.GET("/children", api.children)
	dg.GET("/points", api.pointsOf)

	g.POST("/points", api.award)
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	usr, err := api.svc.Create(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	isActive, err := boolParam(ctx, "is_active")
	if err != nil {
		return err
	}
	filter.IsActive = isActive

	var ord Ordering
	ord.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), getContextUser(ctx), &filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) me(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextUser(ctx))
}

func (api *userApi) retrieve(ctx echo.Context) error {
	id := ctx.Param("id")
	actor := getContextUser(ctx)
	if actor.ID != id {
		if err := api.svc.CanView(ctx.Request().Context(), actor, id); err != nil {
			return err
		}
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	usr, err := api.svc.Update(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) parents(ctx echo.Context) error {
	parents, err := api.svc.Parents(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying parents")
	}
	return ctx.JSON(http.StatusOK, parents)
}

func (api *userApi) linkParent(ctx echo.Context) error {
	var data linkParentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to linkParentRequest")
	}
	if err := api.svc.LinkParent(ctx.Request().Context(), getContextUser(ctx), data.ParentID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "linking parent")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) unlinkParent(ctx echo.Context) error {
	if err := api.svc.UnlinkParent(ctx.Request().Context(), getContextUser(ctx), ctx.Param("parent_id"), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unlinking parent")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) children(ctx echo.Context) error {
	children, err := api.svc.Children(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	return ctx.JSON(http.StatusOK, children)
}

func (api *userApi) pointsOf(ctx echo.Context) error {
	reqCtx, actor, id := ctx.Request().Context(), getContextUser(ctx), ctx.Param("id")

	balance, err := api.points.Balance(reqCtx, actor, id)
	if err != nil {
		return errors.Wrap(err, "getting points balance")
	}
	history, err := api.points.History(reqCtx, actor, id)
	if err != nil {
		return errors.Wrap(err, "getting points history")
	}
	return ctx.JSON(http.StatusOK, pointsResponse{Balance: balance, Transactions: history})
}

func (api *userApi) award(ctx echo.Context) error {
	var data gamification.ManualAward
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManualAward")
	}
	tr, err := api.points.Award(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "awarding points")
	}
	return ctx.JSON(http.StatusCreated, tr)
}
