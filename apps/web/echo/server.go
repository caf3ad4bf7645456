package echoweb

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/auth"
	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/core/user"
	appfs "github.com/trezcool/dormportal/fs"
	"github.com/trezcool/dormportal/services/oauth"
	"github.com/trezcool/dormportal/services/session"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		SignalShutdown func()
	}

	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Gate       *auth.Gate
		Sessions   session.Store
		UserSvc    user.Service
		StudentSvc student.Service
		Notifier   ReportNotifier
		OAuth      oauth.Resolver // nil when Google login is not configured
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		deps *Deps
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options, deps *Deps) (Server, error) {
	s := &server{
		opts: opts,
		deps: deps,
		app:  echo.New(),
	}
	if err := s.setup(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *server) setup() error {
	conf := s.deps.Conf

	rdr, err := newRenderer(appfs.FS, pagesDir)
	if err != nil {
		return errors.Wrap(err, "parsing page templates")
	}
	s.app.Renderer = rdr

	v := &views{
		appName:          conf.AppName,
		gate:             s.deps.Gate,
		googleConfigured: conf.GoogleConfigured(),
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(sessionMiddleware(s.deps.Sessions, s.deps.Logger))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(v, s.deps.Logger, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.StaticFS("/static", echo.MustSubFS(appfs.FS, "static"))
	s.app.Static("/uploads", conf.UploadsDir)

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	registerAuthRoutes(s.app.Group(""), &authHandlers{
		views:   v,
		gate:    s.deps.Gate,
		userSvc: s.deps.UserSvc,
		oauth:   s.deps.OAuth,
		logger:  s.deps.Logger,
	})

	// a group with middleware catches every unmatched path under its prefix
	authed := s.app.Group("/students", loginRequired(s.deps.Gate))
	registerStudentRoutes(authed, &studentHandlers{
		views:         v,
		svc:           s.deps.StudentSvc,
		notifier:      s.deps.Notifier,
		publicBaseURL: conf.PublicBaseURL,
	})
	registerReportRoutes(authed, &reportHandlers{
		views: v,
		svc:   s.deps.StudentSvc,
	})
	return nil
}

func (s *server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		s.app.Logger.Fatal(err)
	}
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.Redirect(http.StatusSeeOther, "/students")
}
