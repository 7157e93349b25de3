package schedule

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/school"
	"github.com/trezcool/learnsphere/core/user"
)

var (
	ErrNotATeacher = errors.New("user is not an active teacher")
	ErrRoomExists  = errors.New("a room with this number already exists")
)

type (
	Repository interface {
		CreateRoom(ctx context.Context, room Room, exec ...core.DBExecutor) (Room, error)
		GetRoom(ctx context.Context, id string, exec ...core.DBExecutor) (Room, error)
		RoomNumberTaken(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error)
		QueryRooms(ctx context.Context, exec ...core.DBExecutor) ([]Room, error)

		CreateSchedule(ctx context.Context, sch Schedule, exec ...core.DBExecutor) (Schedule, error)
		UpdateSchedule(ctx context.Context, sch Schedule, exec ...core.DBExecutor) (Schedule, error)
		DeleteSchedule(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetSchedule(ctx context.Context, id string, exec ...core.DBExecutor) (Schedule, error)
		QuerySchedules(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Schedule, error)
		// ScheduleOccupancies lists the schedules held by resource on day.
		ScheduleOccupancies(ctx context.Context, day Weekday, resource Resource, exec ...core.DBExecutor) ([]Occupancy, error)
		// Teaches reports whether a schedule exists for (teacherID, classID, subjectID).
		Teaches(ctx context.Context, teacherID, classID, subjectID string, exec ...core.DBExecutor) (bool, error)

		CreateBooking(ctx context.Context, bk RoomBooking, exec ...core.DBExecutor) (RoomBooking, error)
		UpdateBooking(ctx context.Context, bk RoomBooking, exec ...core.DBExecutor) (RoomBooking, error)
		DeleteBooking(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetBooking(ctx context.Context, id string, exec ...core.DBExecutor) (RoomBooking, error)
		QueryBookings(ctx context.Context, filter BookingFilter, exec ...core.DBExecutor) ([]RoomBooking, error)
		// BookingOccupancies lists the bookings of roomID on date.
		BookingOccupancies(ctx context.Context, roomID string, date core.Date, exec ...core.DBExecutor) ([]Occupancy, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		users    user.Repository
		schools  school.Repository
		policy   policy.Evaluator
		validate *validator.Validate
		metrics  core.Metrics
	}
)

func NewService(
	db core.DB,
	repo Repository,
	users user.Repository,
	schools school.Repository,
	pol policy.Evaluator,
	validate *validator.Validate,
	metrics core.Metrics,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		users:    users,
		schools:  schools,
		policy:   pol,
		validate: validate,
		metrics:  metrics,
	}
}

// Rooms

func (svc *Service) CreateRoom(ctx context.Context, actor user.User, nr NewRoom) (Room, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageRooms); err != nil {
		return Room{}, err
	}
	if err := nr.Validate(svc.validate); err != nil {
		return Room{}, err
	}
	taken, err := svc.repo.RoomNumberTaken(ctx, nr.Number)
	if err != nil {
		return Room{}, errors.Wrap(err, "checking room number")
	}
	if taken {
		return Room{}, core.NewValidationError(ErrRoomExists, core.FieldError{Field: "number", Error: ErrRoomExists.Error()})
	}

	room, err := svc.repo.CreateRoom(ctx, Room{
		Number:        nr.Number,
		Capacity:      nr.Capacity,
		RoomType:      RoomType(nr.RoomType),
		HasProjector:  nr.HasProjector,
		HasSmartboard: nr.HasSmartboard,
		Description:   nr.Description,
		CreatedAt:     core.Now(),
	})
	return room, errors.Wrap(err, "creating room")
}

func (svc *Service) GetRoom(ctx context.Context, id string) (Room, error) {
	return svc.repo.GetRoom(ctx, id)
}

func (svc *Service) QueryRooms(ctx context.Context) ([]Room, error) {
	return svc.repo.QueryRooms(ctx)
}

// Schedules

// checkReferences makes sure the class, subject and teacher of sch exist.
func (svc *Service) checkReferences(ctx context.Context, sch Schedule) error {
	if _, err := svc.schools.GetClass(ctx, sch.ClassID); err != nil {
		return err
	}
	if _, err := svc.schools.GetSubject(ctx, sch.SubjectID); err != nil {
		return err
	}
	teacher, err := svc.users.GetUser(ctx, user.GetFilter{ID: sch.TeacherID})
	if err != nil {
		return err
	}
	if !teacher.IsTeacher() || !teacher.IsActive {
		return core.NewValidationError(ErrNotATeacher, core.FieldError{Field: "teacher_id", Error: ErrNotATeacher.Error()})
	}
	return nil
}

// checkSchedule runs the conflict validator on the teacher, room and class of sch, in that order.
func (svc *Service) checkSchedule(ctx context.Context, sch Schedule, self string, exec core.DBExecutor) error {
	slot := sch.Slot()
	if err := slot.Validate(); err != nil {
		return err
	}

	resources := []Resource{
		{Dimension: DimensionTeacher, Key: sch.TeacherID},
		{Dimension: DimensionRoom, Key: sch.Room},
		{Dimension: DimensionClass, Key: sch.ClassID},
	}
	for _, res := range resources {
		existing, err := svc.repo.ScheduleOccupancies(ctx, sch.Day, res, exec)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("querying %s occupancies", res.Dimension))
		}
		if err = ValidateNoOverlap(existing, slot, res, self); err != nil {
			svc.metrics.IncConflict(string(res.Dimension))
			return err
		}
	}
	return nil
}

func (svc *Service) CreateSchedule(ctx context.Context, actor user.User, ns NewSchedule) (Schedule, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageSchedule); err != nil {
		return Schedule{}, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Schedule{}, err
	}
	sch := ns.schedule()
	if err := sch.Slot().Validate(); err != nil {
		return Schedule{}, err
	}
	if err := svc.checkReferences(ctx, sch); err != nil {
		return Schedule{}, err
	}

	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkSchedule(ctx, sch, "", tx); err != nil {
			return err
		}
		now := core.Now()
		sch.CreatedAt = now
		sch.UpdatedAt = now
		created, err := svc.repo.CreateSchedule(ctx, sch, tx)
		if err != nil {
			return errors.Wrap(err, "creating schedule")
		}
		sch = created
		return nil
	})
	if err != nil {
		return Schedule{}, err
	}
	return sch, nil
}

// UpdateSchedule replaces the schedule id. The edited row never conflicts with itself.
func (svc *Service) UpdateSchedule(ctx context.Context, actor user.User, id string, ns NewSchedule) (Schedule, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageSchedule); err != nil {
		return Schedule{}, err
	}
	orig, err := svc.repo.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if err = ns.Validate(svc.validate); err != nil {
		return Schedule{}, err
	}
	sch := ns.schedule()
	sch.ID = orig.ID
	sch.CreatedAt = orig.CreatedAt
	if err = sch.Slot().Validate(); err != nil {
		return Schedule{}, err
	}
	if err = svc.checkReferences(ctx, sch); err != nil {
		return Schedule{}, err
	}

	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkSchedule(ctx, sch, orig.ID, tx); err != nil {
			return err
		}
		sch.UpdatedAt = core.Now()
		updated, err := svc.repo.UpdateSchedule(ctx, sch, tx)
		if err != nil {
			return errors.Wrap(err, "updating schedule")
		}
		sch = updated
		return nil
	})
	if err != nil {
		return Schedule{}, err
	}
	return sch, nil
}

func (svc *Service) DeleteSchedule(ctx context.Context, actor user.User, id string) error {
	if err := svc.policy.Authorize(actor.Role, policy.ManageSchedule); err != nil {
		return err
	}
	if _, err := svc.repo.GetSchedule(ctx, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteSchedule(ctx, id), "deleting schedule")
}

func (svc *Service) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, id)
}

func (svc *Service) QuerySchedules(ctx context.Context, filter QueryFilter) ([]Schedule, error) {
	filter.Room = core.CleanString(filter.Room)
	return svc.repo.QuerySchedules(ctx, filter)
}

// Teaches reports whether teacherID teaches subjectID to classID.
func (svc *Service) Teaches(ctx context.Context, teacherID, classID, subjectID string) (bool, error) {
	return svc.repo.Teaches(ctx, teacherID, classID, subjectID)
}

// Room bookings

func (svc *Service) checkBooking(ctx context.Context, bk RoomBooking, self string, exec core.DBExecutor) error {
	existing, err := svc.repo.BookingOccupancies(ctx, bk.RoomID, bk.Date, exec)
	if err != nil {
		return errors.Wrap(err, "querying room occupancies")
	}
	res := Resource{Dimension: DimensionRoom, Key: bk.RoomID}
	if err = ValidateNoOverlap(existing, bk.Slot(), res, self); err != nil {
		var cErr *ConflictError
		if errors.As(err, &cErr) {
			svc.metrics.IncConflict(string(res.Dimension))
		}
		return err
	}
	return nil
}

// canEditBooking allows the booking owner and management.
func (svc *Service) canEditBooking(actor user.User, bk RoomBooking) error {
	if actor.ID == bk.TeacherID || actor.Role.IsManagement() {
		return nil
	}
	return core.NewPermissionError(actor.Role, "edit another teacher's booking")
}

func (svc *Service) BookRoom(ctx context.Context, actor user.User, nb NewBooking) (RoomBooking, error) {
	if err := svc.policy.Authorize(actor.Role, policy.BookRoom); err != nil {
		return RoomBooking{}, err
	}
	if err := nb.Validate(svc.validate); err != nil {
		return RoomBooking{}, err
	}
	bk := nb.booking()
	if err := bk.Slot().Validate(); err != nil {
		return RoomBooking{}, err
	}
	if _, err := svc.repo.GetRoom(ctx, bk.RoomID); err != nil {
		return RoomBooking{}, err
	}
	bk.TeacherID = actor.ID

	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkBooking(ctx, bk, "", tx); err != nil {
			return err
		}
		bk.CreatedAt = core.Now()
		created, err := svc.repo.CreateBooking(ctx, bk, tx)
		if err != nil {
			return errors.Wrap(err, "creating booking")
		}
		bk = created
		return nil
	})
	if err != nil {
		return RoomBooking{}, err
	}
	return bk, nil
}

func (svc *Service) UpdateBooking(ctx context.Context, actor user.User, id string, nb NewBooking) (RoomBooking, error) {
	if err := svc.policy.Authorize(actor.Role, policy.BookRoom); err != nil {
		return RoomBooking{}, err
	}
	orig, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return RoomBooking{}, err
	}
	if err = svc.canEditBooking(actor, orig); err != nil {
		return RoomBooking{}, err
	}
	if err = nb.Validate(svc.validate); err != nil {
		return RoomBooking{}, err
	}
	bk := nb.booking()
	bk.ID = orig.ID
	bk.TeacherID = orig.TeacherID
	bk.CreatedAt = orig.CreatedAt
	if err = bk.Slot().Validate(); err != nil {
		return RoomBooking{}, err
	}
	if _, err = svc.repo.GetRoom(ctx, bk.RoomID); err != nil {
		return RoomBooking{}, err
	}

	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkBooking(ctx, bk, orig.ID, tx); err != nil {
			return err
		}
		updated, err := svc.repo.UpdateBooking(ctx, bk, tx)
		if err != nil {
			return errors.Wrap(err, "updating booking")
		}
		bk = updated
		return nil
	})
	if err != nil {
		return RoomBooking{}, err
	}
	return bk, nil
}

func (svc *Service) CancelBooking(ctx context.Context, actor user.User, id string) error {
	if err := svc.policy.Authorize(actor.Role, policy.BookRoom); err != nil {
		return err
	}
	bk, err := svc.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.canEditBooking(actor, bk); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteBooking(ctx, id), "deleting booking")
}

func (svc *Service) GetBooking(ctx context.Context, id string) (RoomBooking, error) {
	return svc.repo.GetBooking(ctx, id)
}

func (svc *Service) QueryBookings(ctx context.Context, filter BookingFilter) ([]RoomBooking, error) {
	return svc.repo.QueryBookings(ctx, filter)
}
