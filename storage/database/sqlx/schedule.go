package sqlxrepos

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/schedule"
)

const (
	roomColumns     = "id, number, capacity, room_type, has_projector, has_smartboard, description, created_at"
	scheduleColumns = "id, class_id, subject_id, teacher_id, room, day_of_week, start_minute, end_minute, created_at, updated_at"
	bookingColumns  = "id, room_id, teacher_id, date, start_minute, end_minute, purpose, created_at"
)

type roomRow struct {
	ID            string    `db:"id"`
	Number        string    `db:"number"`
	Capacity      int       `db:"capacity"`
	RoomType      string    `db:"room_type"`
	HasProjector  bool      `db:"has_projector"`
	HasSmartboard bool      `db:"has_smartboard"`
	Description   string    `db:"description"`
	CreatedAt     time.Time `db:"created_at"`
}

type scheduleRow struct {
	ID          string    `db:"id"`
	ClassID     string    `db:"class_id"`
	SubjectID   string    `db:"subject_id"`
	TeacherID   string    `db:"teacher_id"`
	Room        string    `db:"room"`
	DayOfWeek   string    `db:"day_of_week"`
	StartMinute int       `db:"start_minute"`
	EndMinute   int       `db:"end_minute"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type bookingRow struct {
	ID          string    `db:"id"`
	RoomID      string    `db:"room_id"`
	TeacherID   string    `db:"teacher_id"`
	Date        core.Date `db:"date"`
	StartMinute int       `db:"start_minute"`
	EndMinute   int       `db:"end_minute"`
	Purpose     string    `db:"purpose"`
	CreatedAt   time.Time `db:"created_at"`
}

type occupancyRow struct {
	ID          string `db:"id"`
	StartMinute int    `db:"start_minute"`
	EndMinute   int    `db:"end_minute"`
	Label       string `db:"label"`
}

func (row occupancyRow) occupancy() schedule.Occupancy {
	slot := schedule.TimeSlot{Start: schedule.Clock(row.StartMinute), End: schedule.Clock(row.EndMinute)}
	return schedule.Occupancy{
		ID:    row.ID,
		Slot:  slot,
		Label: strings.TrimSpace(row.Label + " " + slot.String()),
	}
}

type scheduleRepository struct {
	baseRepository
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(exec core.DBExecutor) *scheduleRepository {
	return &scheduleRepository{baseRepository{exec: exec}}
}

func (repo scheduleRepository) unboilRoom(row roomRow) schedule.Room {
	return schedule.Room{
		ID:            row.ID,
		Number:        row.Number,
		Capacity:      row.Capacity,
		RoomType:      schedule.RoomType(row.RoomType),
		HasProjector:  row.HasProjector,
		HasSmartboard: row.HasSmartboard,
		Description:   row.Description,
		CreatedAt:     row.CreatedAt,
	}
}

func (repo scheduleRepository) unboilSchedule(row scheduleRow) schedule.Schedule {
	return schedule.Schedule{
		ID:        row.ID,
		ClassID:   row.ClassID,
		SubjectID: row.SubjectID,
		TeacherID: row.TeacherID,
		Room:      row.Room,
		Day:       schedule.Weekday(row.DayOfWeek),
		StartTime: schedule.Clock(row.StartMinute),
		EndTime:   schedule.Clock(row.EndMinute),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (repo scheduleRepository) unboilBooking(row bookingRow) schedule.RoomBooking {
	return schedule.RoomBooking{
		ID:        row.ID,
		RoomID:    row.RoomID,
		TeacherID: row.TeacherID,
		Date:      row.Date,
		StartTime: schedule.Clock(row.StartMinute),
		EndTime:   schedule.Clock(row.EndMinute),
		Purpose:   row.Purpose,
		CreatedAt: row.CreatedAt,
	}
}

// Rooms

func (repo scheduleRepository) CreateRoom(ctx context.Context, room schedule.Room, exec ...core.DBExecutor) (schedule.Room, error) {
	room.ID = newID()
	room.CreatedAt = room.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO rooms ("+roomColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		room.ID, room.Number, room.Capacity, string(room.RoomType), room.HasProjector, room.HasSmartboard, room.Description, room.CreatedAt)
	return room, errors.Wrap(err, "inserting room")
}

func (repo scheduleRepository) GetRoom(ctx context.Context, id string, exec ...core.DBExecutor) (schedule.Room, error) {
	var row roomRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+roomColumns+" FROM rooms WHERE id = ?", id); err != nil {
		return schedule.Room{}, trapNoRowsErr(err, "room", id, "finding room")
	}
	return repo.unboilRoom(row), nil
}

func (repo scheduleRepository) RoomNumberTaken(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT id FROM rooms WHERE number = ?", number)
	return ok, errors.Wrap(err, "checking room number")
}

func (repo scheduleRepository) QueryRooms(ctx context.Context, exec ...core.DBExecutor) ([]schedule.Room, error) {
	var rows []roomRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, "SELECT "+roomColumns+" FROM rooms ORDER BY number"); err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	rooms := make([]schedule.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, repo.unboilRoom(r))
	}
	return rooms, nil
}

// Schedules

func (repo scheduleRepository) CreateSchedule(ctx context.Context, sch schedule.Schedule, exec ...core.DBExecutor) (schedule.Schedule, error) {
	sch.ID = newID()
	sch.CreatedAt = sch.CreatedAt.UTC()
	sch.UpdatedAt = sch.UpdatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO schedules ("+scheduleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sch.ID, sch.ClassID, sch.SubjectID, sch.TeacherID, sch.Room, string(sch.Day),
		int(sch.StartTime), int(sch.EndTime), sch.CreatedAt, sch.UpdatedAt)
	return sch, errors.Wrap(err, "inserting schedule")
}

func (repo scheduleRepository) UpdateSchedule(ctx context.Context, sch schedule.Schedule, exec ...core.DBExecutor) (schedule.Schedule, error) {
	sch.UpdatedAt = sch.UpdatedAt.UTC()
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE schedules SET class_id = ?, subject_id = ?, teacher_id = ?, room = ?, day_of_week = ?, "+
			"start_minute = ?, end_minute = ?, updated_at = ? WHERE id = ?",
		sch.ClassID, sch.SubjectID, sch.TeacherID, sch.Room, string(sch.Day),
		int(sch.StartTime), int(sch.EndTime), sch.UpdatedAt, sch.ID)
	if err != nil {
		return schedule.Schedule{}, errors.Wrap(err, "updating schedule")
	}
	if n == 0 {
		return schedule.Schedule{}, core.NewNotFoundError("schedule", sch.ID)
	}
	return sch, nil
}

func (repo scheduleRepository) DeleteSchedule(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := execute(ctx, repo.getExec(exec), "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	if n == 0 {
		return core.NewNotFoundError("schedule", id)
	}
	return nil
}

func (repo scheduleRepository) GetSchedule(ctx context.Context, id string, exec ...core.DBExecutor) (schedule.Schedule, error) {
	var row scheduleRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", id); err != nil {
		return schedule.Schedule{}, trapNoRowsErr(err, "schedule", id, "finding schedule")
	}
	return repo.unboilSchedule(row), nil
}

func (repo scheduleRepository) QuerySchedules(ctx context.Context, filter schedule.QueryFilter, exec ...core.DBExecutor) ([]schedule.Schedule, error) {
	w := &where{}
	if filter.ClassID != "" {
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.TeacherID != "" {
		w.add("teacher_id = ?", filter.TeacherID)
	}
	if filter.SubjectID != "" {
		w.add("subject_id = ?", filter.SubjectID)
	}
	if filter.Room != "" {
		w.add("room = ?", filter.Room)
	}
	if filter.Day != "" {
		w.add("day_of_week = ?", string(filter.Day))
	}

	var rows []scheduleRow
	q := "SELECT " + scheduleColumns + " FROM schedules" + w.String() + " ORDER BY day_of_week, start_minute, id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	schedules := make([]schedule.Schedule, 0, len(rows))
	for _, r := range rows {
		schedules = append(schedules, repo.unboilSchedule(r))
	}
	// day_of_week sorts alphabetically in SQL; restore the week order.
	sortByWeekday(schedules)
	return schedules, nil
}

func sortByWeekday(schedules []schedule.Schedule) {
	rank := make(map[schedule.Weekday]int, len(schedule.Weekdays))
	for i, d := range schedule.Weekdays {
		rank[d] = i
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		return rank[schedules[i].Day] < rank[schedules[j].Day]
	})
}

func (repo scheduleRepository) ScheduleOccupancies(ctx context.Context, day schedule.Weekday, resource schedule.Resource, exec ...core.DBExecutor) ([]schedule.Occupancy, error) {
	var col string
	switch resource.Dimension {
	case schedule.DimensionTeacher:
		col = "s.teacher_id"
	case schedule.DimensionRoom:
		col = "s.room"
	case schedule.DimensionClass:
		col = "s.class_id"
	default:
		return nil, errors.Errorf("unknown dimension %q", resource.Dimension)
	}

	var rows []occupancyRow
	q := "SELECT s.id, s.start_minute, s.end_minute, c.name || ' ' || sub.name AS label " +
		"FROM schedules s JOIN classes c ON c.id = s.class_id JOIN subjects sub ON sub.id = s.subject_id " +
		fmt.Sprintf("WHERE s.day_of_week = ? AND %s = ? ORDER BY s.start_minute, s.id", col)
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, string(day), resource.Key); err != nil {
		return nil, errors.Wrap(err, "querying schedule occupancies")
	}
	occupancies := make([]schedule.Occupancy, 0, len(rows))
	for _, r := range rows {
		occupancies = append(occupancies, r.occupancy())
	}
	return occupancies, nil
}

func (repo scheduleRepository) Teaches(ctx context.Context, teacherID, classID, subjectID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT id FROM schedules WHERE teacher_id = ? AND class_id = ? AND subject_id = ?", teacherID, classID, subjectID)
	return ok, errors.Wrap(err, "checking teaching assignment")
}

// Room bookings

func (repo scheduleRepository) CreateBooking(ctx context.Context, bk schedule.RoomBooking, exec ...core.DBExecutor) (schedule.RoomBooking, error) {
	bk.ID = newID()
	bk.CreatedAt = bk.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO room_bookings ("+bookingColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		bk.ID, bk.RoomID, bk.TeacherID, bk.Date, int(bk.StartTime), int(bk.EndTime), bk.Purpose, bk.CreatedAt)
	return bk, errors.Wrap(err, "inserting room booking")
}

func (repo scheduleRepository) UpdateBooking(ctx context.Context, bk schedule.RoomBooking, exec ...core.DBExecutor) (schedule.RoomBooking, error) {
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE room_bookings SET room_id = ?, date = ?, start_minute = ?, end_minute = ?, purpose = ? WHERE id = ?",
		bk.RoomID, bk.Date, int(bk.StartTime), int(bk.EndTime), bk.Purpose, bk.ID)
	if err != nil {
		return schedule.RoomBooking{}, errors.Wrap(err, "updating room booking")
	}
	if n == 0 {
		return schedule.RoomBooking{}, core.NewNotFoundError("booking", bk.ID)
	}
	return bk, nil
}

func (repo scheduleRepository) DeleteBooking(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := execute(ctx, repo.getExec(exec), "DELETE FROM room_bookings WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting room booking")
	}
	if n == 0 {
		return core.NewNotFoundError("booking", id)
	}
	return nil
}

func (repo scheduleRepository) GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (schedule.RoomBooking, error) {
	var row bookingRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+bookingColumns+" FROM room_bookings WHERE id = ?", id); err != nil {
		return schedule.RoomBooking{}, trapNoRowsErr(err, "booking", id, "finding room booking")
	}
	return repo.unboilBooking(row), nil
}

func (repo scheduleRepository) QueryBookings(ctx context.Context, filter schedule.BookingFilter, exec ...core.DBExecutor) ([]schedule.RoomBooking, error) {
	w := &where{}
	if filter.RoomID != "" {
		w.add("room_id = ?", filter.RoomID)
	}
	if filter.TeacherID != "" {
		w.add("teacher_id = ?", filter.TeacherID)
	}
	if !filter.Date.IsZero() {
		w.add("date = ?", filter.Date)
	}

	var rows []bookingRow
	q := "SELECT " + bookingColumns + " FROM room_bookings" + w.String() + " ORDER BY date, start_minute, id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying room bookings")
	}
	bookings := make([]schedule.RoomBooking, 0, len(rows))
	for _, r := range rows {
		bookings = append(bookings, repo.unboilBooking(r))
	}
	return bookings, nil
}

func (repo scheduleRepository) BookingOccupancies(ctx context.Context, roomID string, date core.Date, exec ...core.DBExecutor) ([]schedule.Occupancy, error) {
	var rows []occupancyRow
	q := "SELECT b.id, b.start_minute, b.end_minute, u.name AS label " +
		"FROM room_bookings b JOIN users u ON u.id = b.teacher_id " +
		"WHERE b.room_id = ? AND b.date = ? ORDER BY b.start_minute, b.id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, roomID, date); err != nil {
		return nil, errors.Wrap(err, "querying booking occupancies")
	}
	occupancies := make([]schedule.Occupancy, 0, len(rows))
	for _, r := range rows {
		occupancies = append(occupancies, r.occupancy())
	}
	return occupancies, nil
}
