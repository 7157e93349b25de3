package journal

import (
	"context"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/notification"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/school"
	"github.com/trezcool/learnsphere/core/user"
)

var (
	ErrNotAStudent    = errors.New("user is not a student")
	ErrNotInClass     = errors.New("student does not belong to this class")
	ErrInvalidStatus  = errors.New("invalid attendance status")
	errGradeNotTaught = "grade a class or subject they do not teach"
)

type (
	Repository interface {
		GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)
		GetGradeByKey(ctx context.Context, studentID, subjectID string, date core.Date, exec ...core.DBExecutor) (Grade, error)
		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		UpdateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error
		QueryGrades(ctx context.Context, filter GradeFilter, exec ...core.DBExecutor) ([]Grade, error)

		CreateGradeAudit(ctx context.Context, a GradeAudit, exec ...core.DBExecutor) (GradeAudit, error)
		// QueryGradeAudits returns the audit trail of gradeID, oldest first.
		QueryGradeAudits(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]GradeAudit, error)

		GetAttendanceByKey(ctx context.Context, studentID string, date core.Date, exec ...core.DBExecutor) (Attendance, error)
		CreateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		UpdateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		QueryAttendance(ctx context.Context, filter AttendanceFilter, exec ...core.DBExecutor) ([]Attendance, error)

		SubjectSummaries(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]SubjectSummary, error)
		AttendanceCounts(ctx context.Context, studentID string, exec ...core.DBExecutor) (map[Status]int, error)
	}

	// Notifier is told about newly created grades and absences.
	Notifier interface {
		DispatchGrade(ctx context.Context, ev notification.GradeEvent) ([]notification.Notification, error)
		DispatchAbsence(ctx context.Context, ev notification.AbsenceEvent) ([]notification.Notification, error)
	}

	// TeachingChecker knows which teacher teaches which subject to which class.
	TeachingChecker interface {
		Teaches(ctx context.Context, teacherID, classID, subjectID string) (bool, error)
	}

	// Awarder rewards students for new grades.
	Awarder interface {
		AwardForGrade(ctx context.Context, studentID, subjectID string, value int) (int, error)
	}

	// RecordViewer decides who may read a student's records.
	RecordViewer interface {
		CanView(ctx context.Context, actor user.User, studentID string) error
	}

	Recorder struct {
		db       core.DB
		repo     Repository
		users    user.Repository
		schools  school.Repository
		teaching TeachingChecker
		notifier Notifier
		awarder  Awarder
		viewer   RecordViewer
		policy   policy.Evaluator
		validate *validator.Validate
		metrics  core.Metrics
		logger   core.Logger
	}

	// Deps groups the collaborators of a Recorder.
	Deps struct {
		DB       core.DB
		Repo     Repository
		Users    user.Repository
		Schools  school.Repository
		Teaching TeachingChecker
		Notifier Notifier
		Awarder  Awarder
		Viewer   RecordViewer
		Policy   policy.Evaluator
		Validate *validator.Validate
		Metrics  core.Metrics
		Logger   core.Logger
	}
)

func NewRecorder(deps Deps) *Recorder {
	metrics := deps.Metrics
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Recorder{
		db:       deps.DB,
		repo:     deps.Repo,
		users:    deps.Users,
		schools:  deps.Schools,
		teaching: deps.Teaching,
		notifier: deps.Notifier,
		awarder:  deps.Awarder,
		viewer:   deps.Viewer,
		policy:   deps.Policy,
		validate: deps.Validate,
		metrics:  metrics,
		logger:   deps.Logger,
	}
}

func (r *Recorder) getStudent(ctx context.Context, id string) (user.User, error) {
	student, err := r.users.GetUser(ctx, user.GetFilter{ID: id})
	if err != nil {
		return user.User{}, err
	}
	if !student.IsStudent() {
		return user.User{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "student_id", Error: ErrNotAStudent.Error()})
	}
	return student, nil
}

// authorizeGrading lets teachers grade only the classes and subjects they have a schedule for.
func (r *Recorder) authorizeGrading(ctx context.Context, actor user.User, classID, subjectID string) error {
	if !actor.IsTeacher() {
		return nil
	}
	if classID == "" {
		return core.NewPermissionError(actor.Role, errGradeNotTaught)
	}
	teaches, err := r.teaching.Teaches(ctx, actor.ID, classID, subjectID)
	if err != nil {
		return errors.Wrap(err, "checking teaching assignment")
	}
	if !teaches {
		return core.NewPermissionError(actor.Role, errGradeNotTaught)
	}
	return nil
}

// upsertGrade writes g on its natural key together with its audit row.
// A write that leaves the value unchanged refreshes the other fields and is not audited.
func (r *Recorder) upsertGrade(ctx context.Context, actor user.User, g Grade) (Grade, AuditAction, error) {
	action := AuditNone
	err := core.InTx(ctx, r.db, func(tx core.DBExecutor) error {
		now := core.Now()
		audit := GradeAudit{ChangedBy: actor.ID, NewValue: null.IntFrom(g.Value), CreatedAt: now}

		existing, err := r.repo.GetGradeByKey(ctx, g.StudentID, g.SubjectID, g.Date, tx)
		switch {
		case core.IsNotFound(err):
			g.CreatedAt = now
			g.UpdatedAt = now
			if g, err = r.repo.CreateGrade(ctx, g, tx); err != nil {
				return errors.Wrap(err, "creating grade")
			}
			action = AuditCreate
		case err != nil:
			return errors.Wrap(err, "getting grade")
		default:
			prev := existing.Value
			existing.Value = g.Value
			existing.TeacherID = g.TeacherID
			existing.Comment = g.Comment
			existing.Metadata = existing.Metadata.Merge(g.Metadata)
			existing.UpdatedAt = now
			if g, err = r.repo.UpdateGrade(ctx, existing, tx); err != nil {
				return errors.Wrap(err, "updating grade")
			}
			if prev == g.Value {
				return nil
			}
			audit.PreviousValue = null.IntFrom(prev)
			action = AuditUpdate
		}

		audit.GradeID = g.ID
		audit.Action = action
		_, err = r.repo.CreateGradeAudit(ctx, audit, tx)
		return errors.Wrap(err, "creating grade audit")
	})
	if err != nil {
		return Grade{}, AuditNone, err
	}

	if action != AuditNone {
		r.metrics.IncGradeAudit(string(action))
	}
	if action == AuditCreate {
		r.afterGradeCreated(ctx, g)
	}
	return g, action, nil
}

// afterGradeCreated runs the best-effort side effects of a new grade.
func (r *Recorder) afterGradeCreated(ctx context.Context, g Grade) {
	ev := notification.GradeEvent{
		GradeID:   g.ID,
		StudentID: g.StudentID,
		SubjectID: g.SubjectID,
		Value:     g.Value,
		Comment:   g.Comment,
	}
	if _, err := r.notifier.DispatchGrade(ctx, ev); err != nil {
		r.logger.Error(fmt.Sprintf("dispatching grade notifications: %v", err), err)
	}
	if r.awarder != nil {
		if _, err := r.awarder.AwardForGrade(ctx, g.StudentID, g.SubjectID, g.Value); err != nil {
			r.logger.Error(fmt.Sprintf("awarding grade points: %v", err), err)
		}
	}
}

// UpsertGrade creates or updates the grade of a student for a subject and date.
func (r *Recorder) UpsertGrade(ctx context.Context, actor user.User, in GradeInput) (Grade, AuditAction, error) {
	if err := r.policy.Authorize(actor.Role, policy.RecordJournal); err != nil {
		return Grade{}, AuditNone, err
	}
	if err := in.Validate(r.validate); err != nil {
		return Grade{}, AuditNone, err
	}
	value, err := ParseGradeValue(in.Value)
	if err != nil {
		return Grade{}, AuditNone, err
	}
	date, _ := core.ParseDate(in.Date)

	student, err := r.getStudent(ctx, in.StudentID)
	if err != nil {
		return Grade{}, AuditNone, err
	}
	if _, err = r.schools.GetSubject(ctx, in.SubjectID); err != nil {
		return Grade{}, AuditNone, err
	}
	if err = r.authorizeGrading(ctx, actor, student.ClassID, in.SubjectID); err != nil {
		return Grade{}, AuditNone, err
	}

	return r.upsertGrade(ctx, actor, Grade{
		StudentID: student.ID,
		SubjectID: in.SubjectID,
		TeacherID: actor.ID,
		Value:     value,
		Date:      date,
		Comment:   in.Comment,
		Metadata:  in.Metadata,
	})
}

// RecordGrades saves a gradebook submission row by row. Invalid rows are reported and skipped.
func (r *Recorder) RecordGrades(ctx context.Context, actor user.User, bulk BulkGrades) (BulkResult, error) {
	res := BulkResult{Warnings: []string{}}
	if err := r.policy.Authorize(actor.Role, policy.RecordJournal); err != nil {
		return res, err
	}
	if err := r.validate.Struct(bulk); err != nil {
		return res, err
	}
	if _, err := r.schools.GetClass(ctx, bulk.ClassID); err != nil {
		return res, err
	}
	if _, err := r.schools.GetSubject(ctx, bulk.SubjectID); err != nil {
		return res, err
	}
	if err := r.authorizeGrading(ctx, actor, bulk.ClassID, bulk.SubjectID); err != nil {
		return res, err
	}
	date, _ := core.ParseDate(bulk.Date)

	warn := func(studentID string, err error) {
		msg := fmt.Sprintf("student %s: %v", studentID, err)
		r.logger.Warn("skipping gradebook row: "+msg, err)
		res.Warnings = append(res.Warnings, msg)
	}

	for _, entry := range bulk.Entries {
		if entry.Value.IsBlank() {
			continue
		}
		value, err := ParseGradeValue(entry.Value)
		if err != nil {
			warn(entry.StudentID, err)
			continue
		}
		student, err := r.getStudent(ctx, entry.StudentID)
		if err != nil {
			warn(entry.StudentID, err)
			continue
		}
		if student.ClassID != bulk.ClassID {
			warn(entry.StudentID, ErrNotInClass)
			continue
		}

		var metadata core.Metadata
		if competency := core.CleanString(entry.Competency); competency != "" {
			metadata = core.Metadata{"competency": competency}
		}
		_, _, err = r.upsertGrade(ctx, actor, Grade{
			StudentID: student.ID,
			SubjectID: bulk.SubjectID,
			TeacherID: actor.ID,
			Value:     value,
			Date:      date,
			Comment:   core.CleanString(entry.Comment),
			Metadata:  metadata,
		})
		if err != nil {
			warn(entry.StudentID, err)
			continue
		}
		res.Saved++
	}
	return res, nil
}

func (r *Recorder) upsertAttendance(ctx context.Context, a Attendance) (Attendance, error) {
	var created bool
	err := core.InTx(ctx, r.db, func(tx core.DBExecutor) error {
		now := core.Now()
		existing, err := r.repo.GetAttendanceByKey(ctx, a.StudentID, a.Date, tx)
		switch {
		case core.IsNotFound(err):
			a.CreatedAt = now
			a.UpdatedAt = now
			a, err = r.repo.CreateAttendance(ctx, a, tx)
			created = true
			return errors.Wrap(err, "creating attendance")
		case err != nil:
			return errors.Wrap(err, "getting attendance")
		}
		existing.Status = a.Status
		existing.UpdatedAt = now
		a, err = r.repo.UpdateAttendance(ctx, existing, tx)
		return errors.Wrap(err, "updating attendance")
	})
	if err != nil {
		return Attendance{}, err
	}

	if created && a.Status == StatusAbsent {
		ev := notification.AbsenceEvent{StudentID: a.StudentID, Date: a.Date}
		if _, err = r.notifier.DispatchAbsence(ctx, ev); err != nil {
			r.logger.Error(fmt.Sprintf("dispatching absence notification: %v", err), err)
		}
	}
	return a, nil
}

// UpsertAttendance creates or updates the attendance of a student on a date. Attendance is not audited.
func (r *Recorder) UpsertAttendance(ctx context.Context, actor user.User, in AttendanceInput) (Attendance, error) {
	if err := r.policy.Authorize(actor.Role, policy.RecordJournal); err != nil {
		return Attendance{}, err
	}
	if err := in.Validate(r.validate); err != nil {
		return Attendance{}, err
	}
	student, err := r.getStudent(ctx, in.StudentID)
	if err != nil {
		return Attendance{}, err
	}
	date, _ := core.ParseDate(in.Date)
	return r.upsertAttendance(ctx, Attendance{StudentID: student.ID, Date: date, Status: Status(in.Status)})
}

// RecordAttendance saves the attendance of a class row by row. Invalid rows are reported and skipped.
func (r *Recorder) RecordAttendance(ctx context.Context, actor user.User, bulk BulkAttendance) (BulkResult, error) {
	res := BulkResult{Warnings: []string{}}
	if err := r.policy.Authorize(actor.Role, policy.RecordJournal); err != nil {
		return res, err
	}
	if err := r.validate.Struct(bulk); err != nil {
		return res, err
	}
	if _, err := r.schools.GetClass(ctx, bulk.ClassID); err != nil {
		return res, err
	}
	date, _ := core.ParseDate(bulk.Date)

	warn := func(studentID string, err error) {
		msg := fmt.Sprintf("student %s: %v", studentID, err)
		r.logger.Warn("skipping attendance row: "+msg, err)
		res.Warnings = append(res.Warnings, msg)
	}

	for _, entry := range bulk.Entries {
		status := Status(core.CleanString(entry.Status, true /* lower */))
		if !status.Valid() {
			warn(entry.StudentID, errors.Wrap(ErrInvalidStatus, entry.Status))
			continue
		}
		student, err := r.getStudent(ctx, entry.StudentID)
		if err != nil {
			warn(entry.StudentID, err)
			continue
		}
		if student.ClassID != bulk.ClassID {
			warn(entry.StudentID, ErrNotInClass)
			continue
		}
		if _, err = r.upsertAttendance(ctx, Attendance{StudentID: student.ID, Date: date, Status: status}); err != nil {
			warn(entry.StudentID, err)
			continue
		}
		res.Saved++
	}
	return res, nil
}

// DeleteGrade removes a grade and appends a delete audit row in the same transaction.
func (r *Recorder) DeleteGrade(ctx context.Context, actor user.User, id string) error {
	if err := r.policy.Authorize(actor.Role, policy.RecordJournal); err != nil {
		return err
	}
	g, err := r.repo.GetGrade(ctx, id)
	if err != nil {
		return err
	}
	if actor.IsTeacher() {
		student, err := r.getStudent(ctx, g.StudentID)
		if err != nil {
			return err
		}
		if err = r.authorizeGrading(ctx, actor, student.ClassID, g.SubjectID); err != nil {
			return err
		}
	}

	err = core.InTx(ctx, r.db, func(tx core.DBExecutor) error {
		if err := r.repo.DeleteGrade(ctx, g.ID, tx); err != nil {
			return errors.Wrap(err, "deleting grade")
		}
		_, err := r.repo.CreateGradeAudit(ctx, GradeAudit{
			GradeID:       g.ID,
			ChangedBy:     actor.ID,
			PreviousValue: null.IntFrom(g.Value),
			Action:        AuditDelete,
			CreatedAt:     core.Now(),
		}, tx)
		return errors.Wrap(err, "creating grade audit")
	})
	if err != nil {
		return err
	}
	r.metrics.IncGradeAudit(string(AuditDelete))
	return nil
}

// GradeHistory returns the audit trail of a grade, including grades that were since deleted.
func (r *Recorder) GradeHistory(ctx context.Context, actor user.User, gradeID string) ([]GradeAudit, error) {
	if err := r.policy.Authorize(actor.Role, policy.ViewAudit); err != nil {
		return nil, err
	}
	return r.repo.QueryGradeAudits(ctx, gradeID)
}

func (r *Recorder) GetGrade(ctx context.Context, actor user.User, id string) (Grade, error) {
	g, err := r.repo.GetGrade(ctx, id)
	if err != nil {
		return Grade{}, err
	}
	if err = r.viewer.CanView(ctx, actor, g.StudentID); err != nil {
		return Grade{}, err
	}
	return g, nil
}

// scopeStudent narrows a query to the students actor may see.
func (r *Recorder) scopeStudent(ctx context.Context, actor user.User, studentID string) (string, error) {
	if r.policy.Allowed(actor.Role, policy.ViewRecords) {
		return studentID, nil
	}
	if studentID == "" && actor.IsStudent() {
		studentID = actor.ID
	}
	if studentID == "" {
		return "", core.NewPermissionError(actor.Role, string(policy.ViewRecords))
	}
	return studentID, r.viewer.CanView(ctx, actor, studentID)
}

func (r *Recorder) QueryGrades(ctx context.Context, actor user.User, filter GradeFilter) ([]Grade, error) {
	studentID, err := r.scopeStudent(ctx, actor, core.CleanString(filter.StudentID))
	if err != nil {
		return nil, err
	}
	filter.StudentID = studentID
	return r.repo.QueryGrades(ctx, filter)
}

func (r *Recorder) QueryAttendance(ctx context.Context, actor user.User, filter AttendanceFilter) ([]Attendance, error) {
	studentID, err := r.scopeStudent(ctx, actor, core.CleanString(filter.StudentID))
	if err != nil {
		return nil, err
	}
	filter.StudentID = studentID
	return r.repo.QueryAttendance(ctx, filter)
}

// StudentSummary aggregates per-subject averages and attendance counts of a student.
func (r *Recorder) StudentSummary(ctx context.Context, actor user.User, studentID string) (StudentSummary, error) {
	if err := r.viewer.CanView(ctx, actor, studentID); err != nil {
		return StudentSummary{}, err
	}
	student, err := r.getStudent(ctx, studentID)
	if err != nil {
		return StudentSummary{}, err
	}
	subjects, err := r.repo.SubjectSummaries(ctx, student.ID)
	if err != nil {
		return StudentSummary{}, errors.Wrap(err, "summarizing grades")
	}
	counts, err := r.repo.AttendanceCounts(ctx, student.ID)
	if err != nil {
		return StudentSummary{}, errors.Wrap(err, "counting attendance")
	}

	summary := StudentSummary{
		StudentID:   student.ID,
		StudentName: student.Name,
		Subjects:    subjects,
		Attendance:  make(map[Status]int, len(Statuses)),
	}
	var sum int
	for i, s := range subjects {
		summary.Subjects[i].Average = roundAverage(s.Sum, s.Count)
		summary.GradeCount += s.Count
		sum += s.Sum
	}
	summary.Average = roundAverage(sum, summary.GradeCount)
	for _, st := range Statuses {
		summary.Attendance[st] = counts[st]
	}
	return summary, nil
}

// roundAverage returns sum/count rounded to 2 decimals.
func roundAverage(sum, count int) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(count)*100) / 100
}
