package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core/journal"
)

type journalApi struct {
	rec *journal.Recorder
}

type upsertGradeResponse struct {
	Grade  journal.Grade       `json:"grade"`
	Action journal.AuditAction `json:"action"`
}

func registerJournalAPI(g *echo.Group, rec *journal.Recorder) {
	api := journalApi{rec: rec}

	gg := g.Group("/grades")
	gg.POST("", api.upsertGrade)
	gg.POST("/bulk", api.recordGrades)
	gg.GET("", api.queryGrades)
	gg.GET("/:id", api.retrieveGrade)
	gg.DELETE("/:id", api.destroyGrade)
	gg.GET("/:id/audit", api.gradeHistory)

	g.GET("/students/:id/summary", api.studentSummary)

	ag := g.Group("/attendance")
	ag.POST("", api.upsertAttendance)
	ag.POST("/bulk", api.recordAttendance)
	ag.GET("", api.queryAttendance)
}

// Grades

func (api *journalApi) upsertGrade(ctx echo.Context) error {
	var data journal.GradeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}
	grade, action, err := api.rec.UpsertGrade(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "upserting grade")
	}

	code := http.StatusOK
	if action == journal.AuditCreate {
		code = http.StatusCreated
	}
	return ctx.JSON(code, upsertGradeResponse{Grade: grade, Action: action})
}

func (api *journalApi) recordGrades(ctx echo.Context) error {
	var data journal.BulkGrades
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkGrades")
	}
	res, err := api.rec.RecordGrades(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "recording grades")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *journalApi) queryGrades(ctx echo.Context) error {
	var filter journal.GradeFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to GradeFilter")
	}
	grades, err := api.rec.QueryGrades(ctx.Request().Context(), getContextUser(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *journalApi) retrieveGrade(ctx echo.Context) error {
	grade, err := api.rec.GetGrade(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grade")
	}
	return ctx.JSON(http.StatusOK, grade)
}

func (api *journalApi) destroyGrade(ctx echo.Context) error {
	if err := api.rec.DeleteGrade(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *journalApi) gradeHistory(ctx echo.Context) error {
	audits, err := api.rec.GradeHistory(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grade history")
	}
	return ctx.JSON(http.StatusOK, audits)
}

func (api *journalApi) studentSummary(ctx echo.Context) error {
	sum, err := api.rec.StudentSummary(ctx.Request().Context(), getContextUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "summarizing student")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// Attendance

func (api *journalApi) upsertAttendance(ctx echo.Context) error {
	var data journal.AttendanceInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceInput")
	}
	att, err := api.rec.UpsertAttendance(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "upserting attendance")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *journalApi) recordAttendance(ctx echo.Context) error {
	var data journal.BulkAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkAttendance")
	}
	res, err := api.rec.RecordAttendance(ctx.Request().Context(), getContextUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *journalApi) queryAttendance(ctx echo.Context) error {
	var filter journal.AttendanceFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to AttendanceFilter")
	}
	records, err := api.rec.QueryAttendance(ctx.Request().Context(), getContextUser(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}
