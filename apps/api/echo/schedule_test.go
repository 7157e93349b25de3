package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsphere/core/schedule"
)

type conflictResponse struct {
	Error     string             `json:"error"`
	Dimension string             `json:"dimension"`
	Conflict  schedule.Occupancy `json:"conflict"`
}

func Test_scheduleApi_schedules(t *testing.T) {
	f := setup(t)
	directorToken := getToken(t, f, f.director)

	newSch := func(teacherID, room, start, end string) []byte {
		return marchallObj(t, schedule.NewSchedule{
			ClassID: f.classA.ID, SubjectID: f.math.ID, TeacherID: teacherID, Room: room,
			Day: "monday", StartTime: start, EndTime: end,
		})
	}

	rec := f.do(httpTest{method: http.MethodPost, path: "/v1/schedules", token: directorToken, body: newSch(f.teacher.ID, "101", "09:00", "10:00")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var base schedule.Schedule
	unmarshal(t, rec, &base)
	assert.Equal(t, schedule.Weekday("monday"), base.Day)
	assert.Equal(t, "09:00", base.StartTime.String())

	t.Run("teacher conflict", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodPost, path: "/v1/schedules", token: directorToken, body: newSch(f.teacher.ID, "102", "09:30", "10:30")})
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
		var got conflictResponse
		unmarshal(t, rec, &got)
		assert.Equal(t, "teacher", got.Dimension)
		assert.Equal(t, base.ID, got.Conflict.ID)
		assert.Contains(t, got.Error, "teacher is already busy at this time")
		assert.Equal(t, 1, f.app.Metrics.Conflicts["teacher"])
	})

	tests := []httpTest{
		{
			name: "teachers may not manage schedules", method: http.MethodPost, path: "/v1/schedules", token: getToken(t, f, f.teacher),
			body: newSch(f.outsider.ID, "102", "11:00", "12:00"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied: teacher cannot manage schedule"}),
		},
		{
			name: "empty interval", method: http.MethodPost, path: "/v1/schedules", token: directorToken,
			body: newSch(f.outsider.ID, "102", "11:00", "11:00"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "end time (11:00) must be after start time (11:00)"}),
		},
		{
			name: "editing keeps its own slot", method: http.MethodPut, path: "/v1/schedules/" + base.ID, token: directorToken,
			body: newSch(f.teacher.ID, "101", "09:15", "10:15"), wantCode: http.StatusOK,
		},
		{name: "query by teacher", path: "/v1/schedules?teacher_id=" + f.teacher.ID + "&day=monday", token: directorToken, wantCode: http.StatusOK},
		{name: "delete", method: http.MethodDelete, path: "/v1/schedules/" + base.ID, token: directorToken, wantCode: http.StatusNoContent},
		{
			name: "deleted", path: "/v1/schedules/" + base.ID, token: directorToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "schedule not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_scheduleApi_bookings(t *testing.T) {
	f := setup(t)
	directorToken := getToken(t, f, f.director)
	teacherToken := getToken(t, f, f.teacher)
	outsiderToken := getToken(t, f, f.outsider)

	rec := f.do(httpTest{
		method: http.MethodPost, path: "/v1/rooms", token: directorToken,
		body: marchallObj(t, schedule.NewRoom{Number: "L1", Capacity: 20, RoomType: "Lab", HasProjector: true}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var room schedule.Room
	unmarshal(t, rec, &room)
	assert.Equal(t, schedule.RoomLab, room.RoomType)

	newBooking := func(start, end string) []byte {
		return marchallObj(t, schedule.NewBooking{RoomID: room.ID, Date: "2024-03-04", StartTime: start, EndTime: end, Purpose: "Lab work"})
	}

	rec = f.do(httpTest{method: http.MethodPost, path: "/v1/bookings", token: teacherToken, body: newBooking("10:00", "11:00")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bk schedule.RoomBooking
	unmarshal(t, rec, &bk)
	assert.Equal(t, f.teacher.ID, bk.TeacherID)

	t.Run("room conflict", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodPost, path: "/v1/bookings", token: outsiderToken, body: newBooking("10:30", "11:30")})
		require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
		var got conflictResponse
		unmarshal(t, rec, &got)
		assert.Equal(t, "room", got.Dimension)
		assert.Equal(t, bk.ID, got.Conflict.ID)
		assert.Contains(t, got.Conflict.Label, "Teacher")
	})

	tests := []httpTest{
		{
			name: "students may not book", method: http.MethodPost, path: "/v1/bookings", token: getToken(t, f, f.student),
			body: newBooking("12:00", "13:00"), wantCode: http.StatusForbidden,
		},
		{
			name: "back to back", method: http.MethodPost, path: "/v1/bookings", token: outsiderToken,
			body: newBooking("11:00", "12:00"), wantCode: http.StatusCreated,
		},
		{
			name: "unknown room", method: http.MethodPost, path: "/v1/bookings", token: outsiderToken,
			body:     marchallObj(t, schedule.NewBooking{RoomID: "unknown", Date: "2024-03-04", StartTime: "08:00", EndTime: "09:00"}),
			wantCode: http.StatusNotFound,
		},
		{
			name: "bad date", method: http.MethodPost, path: "/v1/bookings", token: outsiderToken,
			body:     marchallObj(t, schedule.NewBooking{RoomID: room.ID, Date: "04.03.2024", StartTime: "08:00", EndTime: "09:00"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "others cannot cancel", method: http.MethodDelete, path: "/v1/bookings/" + bk.ID, token: outsiderToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "owner moves booking", method: http.MethodPut, path: "/v1/bookings/" + bk.ID, token: teacherToken,
			body: newBooking("09:00", "10:00"), wantCode: http.StatusOK,
		},
		{name: "owner cancels", method: http.MethodDelete, path: "/v1/bookings/" + bk.ID, token: teacherToken, wantCode: http.StatusNoContent},
		{
			name: "cancelled", path: "/v1/bookings/" + bk.ID, token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "booking not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("query", func(t *testing.T) {
		rec := f.do(httpTest{path: "/v1/bookings?room_id=" + room.ID + "&date=2024-03-04", token: teacherToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []schedule.RoomBooking
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, f.outsider.ID, got[0].TeacherID)
	})
}
