// Package testutil wires the application on a throwaway SQLite database for tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/gamification"
	"github.com/trezcool/learnsphere/core/homework"
	"github.com/trezcool/learnsphere/core/journal"
	"github.com/trezcool/learnsphere/core/notification"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/schedule"
	"github.com/trezcool/learnsphere/core/school"
	"github.com/trezcool/learnsphere/core/user"
	emailsvc "github.com/trezcool/learnsphere/services/email"
	"github.com/trezcool/learnsphere/storage/database"
	sqlxrepos "github.com/trezcool/learnsphere/storage/database/sqlx"
)

func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.Database.Engine = database.EngineSQLite
	return conf
}

// PrepareDB opens a migrated SQLite database that lives as long as the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	goose.SetLogger(log.New(io.Discard, "", 0))

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	schedule.InitValidators(validate, translator)
	journal.InitValidators(validate, translator)
	return validate, translator
}

// Logger records the messages it receives.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Metrics counts the recorded domain events.
type Metrics struct {
	mu            sync.Mutex
	Conflicts     map[string]int
	GradeAudits   map[string]int
	Notifications map[string]int
}

var _ core.Metrics = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{
		Conflicts:     make(map[string]int),
		GradeAudits:   make(map[string]int),
		Notifications: make(map[string]int),
	}
}

func (m *Metrics) IncConflict(dimension string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Conflicts[dimension]++
}

func (m *Metrics) IncGradeAudit(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GradeAudits[action]++
}

func (m *Metrics) AddNotifications(kind string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications[kind] += n
}

// App holds every repository and service, wired the same way as the API.
type App struct {
	DB         *sqlx.DB
	Conf       *core.Config
	Logger     *Logger
	Metrics    *Metrics
	Mail       *emailsvc.ConsoleServiceMock
	Validate   *validator.Validate
	Translator ut.Translator
	Policy     policy.Evaluator

	UserRepo         user.Repository
	SchoolRepo       school.Repository
	ScheduleRepo     schedule.Repository
	JournalRepo      journal.Repository
	NotificationRepo notification.Repository
	HomeworkRepo     homework.Repository
	PointsRepo       gamification.Repository

	UserSvc     *user.Service
	SchoolSvc   *school.Service
	ScheduleSvc *schedule.Service
	Dispatcher  *notification.Dispatcher
	Inbox       *notification.Inbox
	Points      *gamification.Service
	Recorder    *journal.Recorder
	HomeworkSvc *homework.Service
}

func NewApp(t *testing.T) *App {
	t.Helper()

	a := &App{
		DB:      PrepareDB(t),
		Conf:    NewConfig(),
		Logger:  &Logger{},
		Metrics: NewMetrics(),
		Policy:  policy.New(),
	}
	a.Validate, a.Translator = NewValidator()
	a.Mail = emailsvc.NewConsoleServiceMock(a.Conf, a.Logger)

	a.UserRepo = sqlxrepos.NewUserRepository(a.DB)
	a.SchoolRepo = sqlxrepos.NewSchoolRepository(a.DB)
	a.ScheduleRepo = sqlxrepos.NewScheduleRepository(a.DB)
	a.JournalRepo = sqlxrepos.NewJournalRepository(a.DB)
	a.NotificationRepo = sqlxrepos.NewNotificationRepository(a.DB)
	a.HomeworkRepo = sqlxrepos.NewHomeworkRepository(a.DB)
	a.PointsRepo = sqlxrepos.NewPointsRepository(a.DB)

	a.UserSvc = user.NewService(a.DB, a.UserRepo, a.SchoolRepo, a.Policy, a.Validate)
	a.SchoolSvc = school.NewService(a.SchoolRepo, a.Policy, a.Validate)
	a.ScheduleSvc = schedule.NewService(a.DB, a.ScheduleRepo, a.UserRepo, a.SchoolRepo, a.Policy, a.Validate, a.Metrics)
	a.Dispatcher = notification.NewDispatcher(a.NotificationRepo, a.UserRepo, a.SchoolRepo, a.Mail, a.Metrics, a.Logger)
	a.Inbox = notification.NewInbox(a.NotificationRepo, a.Policy)
	a.Points = gamification.NewService(a.DB, a.PointsRepo, a.UserRepo, a.SchoolRepo, a.UserSvc, a.Policy, a.Validate)
	a.Recorder = journal.NewRecorder(journal.Deps{
		DB:       a.DB,
		Repo:     a.JournalRepo,
		Users:    a.UserRepo,
		Schools:  a.SchoolRepo,
		Teaching: a.ScheduleSvc,
		Notifier: a.Dispatcher,
		Awarder:  a.Points,
		Viewer:   a.UserSvc,
		Policy:   a.Policy,
		Validate: a.Validate,
		Metrics:  a.Metrics,
		Logger:   a.Logger,
	})
	a.HomeworkSvc = homework.NewService(a.DB, a.HomeworkRepo, a.SchoolRepo, a.Dispatcher, a.Policy, a.Validate, a.Logger)
	return a
}

var fixtureSeq int

func nextSeq() int {
	fixtureSeq++
	return fixtureSeq
}

func CreateSchool(t *testing.T, repo school.Repository, name string) school.School {
	t.Helper()
	sch, err := repo.CreateSchool(context.Background(), school.School{Name: name, CreatedAt: core.Now()})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return sch
}

func CreateClass(t *testing.T, repo school.Repository, schoolID, name string) school.Class {
	t.Helper()
	cls, err := repo.CreateClass(context.Background(), school.Class{Name: name, SchoolID: schoolID, CreatedAt: core.Now()})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateSubject(t *testing.T, repo school.Repository, name string) school.Subject {
	t.Helper()
	subj, err := repo.CreateSubject(context.Background(), school.Subject{Name: name, CreatedAt: core.Now()})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return subj
}

// CreateUser inserts an active user. The username is derived from name when uname is empty.
func CreateUser(t *testing.T, repo user.Repository, name, uname, email string, role core.Role, classID ...string) user.User {
	t.Helper()
	if uname == "" {
		uname = fmt.Sprintf("user%03d", nextSeq())
	}
	now := core.Now()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(classID) > 0 {
		usr.ClassID = classID[0]
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func LinkParent(t *testing.T, repo user.Repository, parentID, childID string) {
	t.Helper()
	if err := repo.LinkParent(context.Background(), parentID, childID); err != nil {
		t.Fatalf("LinkParent() failed: %v", err)
	}
	// parents are ordered by link time
	time.Sleep(time.Millisecond)
}

// CreateSchedule inserts a schedule without conflict checks.
func CreateSchedule(t *testing.T, repo schedule.Repository, classID, subjectID, teacherID, room string, day schedule.Weekday, start, end string) schedule.Schedule {
	t.Helper()
	now := core.Now()
	sch, err := repo.CreateSchedule(context.Background(), schedule.Schedule{
		ClassID:   classID,
		SubjectID: subjectID,
		TeacherID: teacherID,
		Room:      room,
		Day:       day,
		StartTime: schedule.MustParseClock(start),
		EndTime:   schedule.MustParseClock(end),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSchedule() failed: %v", err)
	}
	return sch
}
