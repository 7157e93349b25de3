package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core/homework"
)

type homeworkApi struct {
	svc *homework.Service
}

func registerHomeworkAPI(g *echo.Group, svc *homework.Service) {
	api := homeworkApi{svc: svc}

	ag := g.Group("/assignments")
	ag.POST("", api.createAssignment)
	ag.GET("", api.queryAssignments)
	ag.GET("/:id", api.retrieveAssignment)
	ag.POST("/:id/submissions", api.submit)
	ag.GET("/:id/submissions", api.querySubmissions)

	g.PUT("/submissions/:id/grade", api.gradeSubmission)
}

func (api *homeworkApi) createAssignment(ctx echo.Context) error {
	var data homework.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	asg, err := api.svc.CreateAssignment(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *homeworkApi) queryAssignments(ctx echo.Context) error {
	var filter homework.AssignmentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to AssignmentFilter")
	}
	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), getContextUser(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *homeworkApi) retrieveAssignment(ctx echo.Context) error {
	asg, err := api.svc.GetAssignment(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *homeworkApi) submit(ctx echo.Context) error {
	var data homework.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	sub, err := api.svc.Submit(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *homeworkApi) querySubmissions(ctx echo.Context) error {
	subs, err := api.svc.QuerySubmissions(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *homeworkApi) gradeSubmission(ctx echo.Context) error {
	var data homework.SubmissionGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmissionGrade")
	}
	sub, err := api.svc.GradeSubmission(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
