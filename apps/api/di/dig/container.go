package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/learnsphere/apps/api/echo"
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
	logsvc "github.com/trezcool/learnsphere/services/logger"
	metricsvc "github.com/trezcool/learnsphere/services/metrics"
	"github.com/trezcool/learnsphere/storage/database"
	sqlxrepos "github.com/trezcool/learnsphere/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type repositories struct {
	dig.Out

	Users         user.Repository
	Schools       school.Repository
	Schedules     schedule.Repository
	Journal       journal.Repository
	Notifications notification.Repository
	Homework      homework.Repository
	Points        gamification.Repository
}

type recorderParams struct {
	dig.In

	DB         core.DB
	Repo       journal.Repository
	Users      user.Repository
	Schools    school.Repository
	Schedules  *schedule.Service
	Dispatcher *notification.Dispatcher
	Points     *gamification.Service
	UserSvc    *user.Service
	Policy     policy.Evaluator
	Validate   *validator.Validate
	Metrics    core.Metrics
	Logger     core.Logger
}

type serverParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	UserSvc     user.ServiceInterface
	SchoolSvc   *school.Service
	ScheduleSvc *schedule.Service
	Recorder    *journal.Recorder
	HomeworkSvc *homework.Service
	Inbox       *notification.Inbox
	PointsSvc   *gamification.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newRepositories(db core.DB) repositories {
	return repositories{
		Users:         sqlxrepos.NewUserRepository(db),
		Schools:       sqlxrepos.NewSchoolRepository(db),
		Schedules:     sqlxrepos.NewScheduleRepository(db),
		Journal:       sqlxrepos.NewJournalRepository(db),
		Notifications: sqlxrepos.NewNotificationRepository(db),
		Homework:      sqlxrepos.NewHomeworkRepository(db),
		Points:        sqlxrepos.NewPointsRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newMetrics(conf *core.Config) (*metricsvc.PrometheusMetrics, core.Metrics) {
	m := metricsvc.NewPrometheusMetrics(conf)
	return m, m
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newUserService(db core.DB, repo user.Repository, schools school.Repository, pol policy.Evaluator, validate *validator.Validate) (*user.Service, user.ServiceInterface) {
	svc := user.NewService(db, repo, schools, pol, validate)
	return svc, svc
}

func newPointsService(db core.DB, repo gamification.Repository, users user.Repository, schools school.Repository, usrSvc *user.Service, pol policy.Evaluator, validate *validator.Validate) *gamification.Service {
	return gamification.NewService(db, repo, users, schools, usrSvc, pol, validate)
}

func newHomeworkService(db core.DB, repo homework.Repository, schools school.Repository, dispatcher *notification.Dispatcher, pol policy.Evaluator, validate *validator.Validate, logger core.Logger) *homework.Service {
	return homework.NewService(db, repo, schools, dispatcher, pol, validate, logger)
}

func newRecorder(p recorderParams) *journal.Recorder {
	return journal.NewRecorder(journal.Deps{
		DB:       p.DB,
		Repo:     p.Repo,
		Users:    p.Users,
		Schools:  p.Schools,
		Teaching: p.Schedules,
		Notifier: p.Dispatcher,
		Awarder:  p.Points,
		Viewer:   p.UserSvc,
		Policy:   p.Policy,
		Validate: p.Validate,
		Metrics:  p.Metrics,
		Logger:   p.Logger,
	})
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		SchoolSvc:   p.SchoolSvc,
		ScheduleSvc: p.ScheduleSvc,
		Recorder:    p.Recorder,
		HomeworkSvc: p.HomeworkSvc,
		Inbox:       p.Inbox,
		PointsSvc:   p.PointsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newMetrics))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(policy.New))

	must(c.Provide(newUserService))
	must(c.Provide(school.NewService))
	must(c.Provide(schedule.NewService))
	must(c.Provide(notification.NewDispatcher))
	must(c.Provide(notification.NewInbox))
	must(c.Provide(newPointsService))
	must(c.Provide(newHomeworkService))
	must(c.Provide(newRecorder))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
