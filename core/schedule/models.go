package schedule

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsphere/core"
)

type RoomType string

const (
	RoomClassroom RoomType = "classroom"
	RoomLab       RoomType = "lab"
	RoomHall      RoomType = "hall"
	RoomSport     RoomType = "sport"
	RoomMeeting   RoomType = "meeting"
)

var RoomTypes = []RoomType{RoomClassroom, RoomLab, RoomHall, RoomSport, RoomMeeting}

func (rt RoomType) Valid() bool {
	for _, t := range RoomTypes {
		if rt == t {
			return true
		}
	}
	return false
}

type Room struct {
	ID            string    `json:"id"`
	Number        string    `json:"number"`
	Capacity      int       `json:"capacity"`
	RoomType      RoomType  `json:"room_type"`
	HasProjector  bool      `json:"has_projector"`
	HasSmartboard bool      `json:"has_smartboard"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// Schedule is a weekly lesson: a class learns a subject with a teacher in a room.
type Schedule struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	SubjectID string    `json:"subject_id"`
	TeacherID string    `json:"teacher_id"`
	Room      string    `json:"room"`
	Day       Weekday   `json:"day_of_week"`
	StartTime Clock     `json:"start_time"`
	EndTime   Clock     `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Schedule) Slot() TimeSlot {
	return TimeSlot{Start: s.StartTime, End: s.EndTime}
}

// RoomBooking reserves a room on a given date.
type RoomBooking struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	TeacherID string    `json:"teacher_id"`
	Date      core.Date `json:"date"`
	StartTime Clock     `json:"start_time"`
	EndTime   Clock     `json:"end_time"`
	Purpose   string    `json:"purpose"`
	CreatedAt time.Time `json:"created_at"`
}

func (b RoomBooking) Slot() TimeSlot {
	return TimeSlot{Start: b.StartTime, End: b.EndTime}
}

type NewRoom struct {
	Number        string `json:"number" validate:"required,notblank,max=10"`
	Capacity      int    `json:"capacity" validate:"min=0"`
	RoomType      string `json:"room_type" validate:"required,room_type"`
	HasProjector  bool   `json:"has_projector"`
	HasSmartboard bool   `json:"has_smartboard"`
	Description   string `json:"description"`
}

func (nr *NewRoom) Validate(validate *validator.Validate) error {
	nr.Number = core.CleanString(nr.Number)
	nr.RoomType = core.CleanString(nr.RoomType, true /* lower */)
	nr.Description = core.CleanString(nr.Description)
	return validate.Struct(nr)
}

// NewSchedule is used to create or replace a Schedule.
type NewSchedule struct {
	ClassID   string `json:"class_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
	Room      string `json:"room" validate:"required,notblank"`
	Day       string `json:"day_of_week" validate:"required,weekday"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	ns.Room = core.CleanString(ns.Room)
	ns.Day = core.CleanString(ns.Day, true /* lower */)
	return validate.Struct(ns)
}

// schedule must only be called after Validate.
func (ns NewSchedule) schedule() Schedule {
	return Schedule{
		ClassID:   ns.ClassID,
		SubjectID: ns.SubjectID,
		TeacherID: ns.TeacherID,
		Room:      ns.Room,
		Day:       Weekday(ns.Day),
		StartTime: MustParseClock(ns.StartTime),
		EndTime:   MustParseClock(ns.EndTime),
	}
}

// NewBooking is used to create or replace a RoomBooking.
type NewBooking struct {
	RoomID    string `json:"room_id" validate:"required"`
	Date      string `json:"date" validate:"required,date"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
	Purpose   string `json:"purpose" validate:"max=255"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.Purpose = core.CleanString(nb.Purpose)
	return validate.Struct(nb)
}

// booking must only be called after Validate.
func (nb NewBooking) booking() RoomBooking {
	date, _ := core.ParseDate(nb.Date)
	return RoomBooking{
		RoomID:    nb.RoomID,
		Date:      date,
		StartTime: MustParseClock(nb.StartTime),
		EndTime:   MustParseClock(nb.EndTime),
		Purpose:   nb.Purpose,
	}
}

type QueryFilter struct {
	ClassID   string  `query:"class_id"`
	TeacherID string  `query:"teacher_id"`
	SubjectID string  `query:"subject_id"`
	Room      string  `query:"room"`
	Day       Weekday `query:"day"`
}

type BookingFilter struct {
	RoomID    string    `query:"room_id"`
	TeacherID string    `query:"teacher_id"`
	Date      core.Date `query:"date"`
}
