package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core/gamification"
)

type gamificationApi struct {
	svc *gamification.Service
}

func registerGamificationAPI(g *echo.Group, svc *gamification.Service) {
	api := gamificationApi{svc: svc}

	rg := g.Group("/rewards")
	rg.GET("", api.shop)
	rg.POST("", api.createReward)
	rg.PUT("/:id", api.updateReward)
	rg.POST("/:id/redeem", api.redeem)

	dg := g.Group("/redemptions")
	dg.GET("", api.queryRedemptions)
	dg.POST("/:id/approve", api.approve)
	dg.POST("/:id/reject", api.reject)
	dg.POST("/:id/equip", api.equip)
	dg.POST("/:id/unequip", api.unequip)

	bg := g.Group("/badges")
	bg.GET("", api.badges)
	bg.POST("", api.createBadge)
	bg.POST("/:id/grant", api.grantBadge)
	g.GET("/users/:id/badges", api.userBadges)

	g.GET("/leaderboard", api.leaderboard)
}

func (api *gamificationApi) shop(ctx echo.Context) error {
	shop, err := api.svc.Shop(ctx.Request().Context(), getContextUser(ctx))
	if err != nil {
		return errors.Wrap(err, "listing rewards")
	}
	return ctx.JSON(http.StatusOK, shop)
}

func (api *gamificationApi) createReward(ctx echo.Context) error {
	var data gamification.NewReward
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReward")
	}
	rw, err := api.svc.CreateReward(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating reward")
	}
	return ctx.JSON(http.StatusCreated, rw)
}

func (api *gamificationApi) updateReward(ctx echo.Context) error {
	var data gamification.UpdateReward
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReward")
	}
	rw, err := api.svc.UpdateReward(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating reward")
	}
	return ctx.JSON(http.StatusOK, rw)
}

func (api *gamificationApi) redeem(ctx echo.Context) error {
	rd, err := api.svc.Redeem(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "redeeming reward")
	}
	return ctx.JSON(http.StatusCreated, rd)
}

func (api *gamificationApi) queryRedemptions(ctx echo.Context) error {
	var filter gamification.RedemptionFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to RedemptionFilter")
	}
	list, err := api.svc.QueryRedemptions(ctx.Request().Context(), getContextUser(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying redemptions")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *gamificationApi) process(ctx echo.Context, approve bool) error {
	rd, err := api.svc.ProcessRedemption(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), approve)
	if err != nil {
		return errors.Wrap(err, "processing redemption")
	}
	return ctx.JSON(http.StatusOK, rd)
}

func (api *gamificationApi) approve(ctx echo.Context) error { return api.process(ctx, true) }
func (api *gamificationApi) reject(ctx echo.Context) error  { return api.process(ctx, false) }

func (api *gamificationApi) equip(ctx echo.Context) error {
	rd, err := api.svc.Equip(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "equipping item")
	}
	return ctx.JSON(http.StatusOK, rd)
}

func (api *gamificationApi) unequip(ctx echo.Context) error {
	rd, err := api.svc.Unequip(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unequipping item")
	}
	return ctx.JSON(http.StatusOK, rd)
}

func (api *gamificationApi) badges(ctx echo.Context) error {
	list, err := api.svc.Badges(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying badges")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *gamificationApi) createBadge(ctx echo.Context) error {
	var data gamification.NewBadge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBadge")
	}
	b, err := api.svc.CreateBadge(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating badge")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *gamificationApi) grantBadge(ctx echo.Context) error {
	var data gamification.BadgeGrant
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BadgeGrant")
	}
	ub, err := api.svc.GrantBadge(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "granting badge")
	}
	return ctx.JSON(http.StatusCreated, ub)
}

func (api *gamificationApi) userBadges(ctx echo.Context) error {
	list, err := api.svc.UserBadges(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying user badges")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *gamificationApi) leaderboard(ctx echo.Context) error {
	var filter gamification.LeaderboardFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to LeaderboardFilter")
	}
	entries, err := api.svc.Leaderboard(ctx.Request().Context(), getContextUser(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "ranking students")
	}
	return ctx.JSON(http.StatusOK, entries)
}
