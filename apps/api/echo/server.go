package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/gamification"
	"github.com/trezcool/learnsphere/core/homework"
	"github.com/trezcool/learnsphere/core/journal"
	"github.com/trezcool/learnsphere/core/notification"
	"github.com/trezcool/learnsphere/core/schedule"
	"github.com/trezcool/learnsphere/core/school"
	"github.com/trezcool/learnsphere/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		UserSvc     user.ServiceInterface
		SchoolSvc   *school.Service
		ScheduleSvc *schedule.Service
		Recorder    *journal.Recorder
		HomeworkSvc *homework.Service
		Inbox       *notification.Inbox
		PointsSvc   *gamification.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs && !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1", middleware.JWTWithConfig(newJWTConfig(conf)), actorMiddleware(s.deps.UserSvc))

	registerUserAPI(v1, s.deps.UserSvc, s.deps.PointsSvc)
	registerSchoolAPI(v1, s.deps.SchoolSvc)
	registerScheduleAPI(v1, s.deps.ScheduleSvc)
	registerJournalAPI(v1, s.deps.Recorder)
	registerHomeworkAPI(v1, s.deps.HomeworkSvc)
	registerNotificationAPI(v1, s.deps.Inbox)
	registerGamificationAPI(v1, s.deps.PointsSvc)
}

// Start blocks until the server stops. Errors other than a regular shutdown are sent on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to LearnSphere API!")
}
