package echoweb_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/dormportal/apps/web/echo"
	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/attachment"
	"github.com/trezcool/dormportal/core/auth"
	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/core/user"
	"github.com/trezcool/dormportal/services/session"
	"github.com/trezcool/dormportal/storage/database/dummy"
	"github.com/trezcool/dormportal/tests"
)

type env struct {
	app      Server
	conf     *core.Config
	repo     student.Repository
	userSvc  user.Service
	fs       afero.Fs
	notifier *notifierMock
	logger   *testutil.Logger
	cookies  map[string]*http.Cookie
}

type setupOpts struct {
	resolver  *resolverMock
	configure func(conf *core.Config)
}

func testConfig() *core.Config {
	conf := &core.Config{AppName: "Dorm Test", TestMode: true, UploadsDir: "uploads"}
	conf.Session.Secret = "test-secret"
	conf.Session.Backend = "cookie"
	conf.Session.MaxAge = time.Hour
	conf.Dev.Enabled = true
	conf.Dev.UserEmail = "dev@example.com"
	conf.Dev.UserName = "Dev User"
	return conf
}

func setup(t *testing.T, opts ...setupOpts) *env {
	var o setupOpts
	if len(opts) > 0 {
		o = opts[0]
	}
	conf := testConfig()
	if o.configure != nil {
		o.configure(conf)
	}

	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewStudentRepository(db)
	userSvc := user.NewService(dummydb.NewUserRepository(db))

	logger := new(testutil.Logger)
	fs := afero.NewMemMapFs()
	validate, translator := core.NewValidator()
	studentSvc := student.NewService(repo, attachment.NewManager(fs, conf.UploadsDir, logger), validate, translator)

	sessions, err := session.NewCookieStore(conf)
	require.NoError(t, err)

	notifier := new(notifierMock)
	deps := &Deps{
		Conf:       conf,
		Logger:     logger,
		Gate:       auth.NewGate(conf),
		Sessions:   sessions,
		UserSvc:    userSvc,
		StudentSvc: studentSvc,
		Notifier:   notifier,
	}
	if o.resolver != nil {
		deps.OAuth = o.resolver
	}

	app, err := NewServer(&Options{DisableReqLogs: true}, deps)
	require.NoError(t, err)

	return &env{
		app:      app,
		conf:     conf,
		repo:     repo,
		userSvc:  userSvc,
		fs:       fs,
		notifier: notifier,
		logger:   logger,
		cookies:  make(map[string]*http.Cookie),
	}
}

// do sends req with the cookies collected so far, and collects the ones of the response.
func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range e.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(e.cookies, c.Name)
		} else {
			e.cookies[c.Name] = c
		}
	}
	return rec
}

func (e *env) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *env) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// postMultipart posts form along with an optional image_file upload; an empty filename sends no file.
func (e *env) postMultipart(t *testing.T, path string, form url.Values, filename string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, vals := range form {
		for _, v := range vals {
			require.NoError(t, w.WriteField(key, v))
		}
	}
	if filename != "" {
		fw, err := w.CreateFormFile("image_file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(req)
}

func (e *env) login(t *testing.T) {
	rec := e.postForm("/login/dev", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/students?success=Dev+login+enabled", rec.Header().Get("Location"))
	require.Contains(t, e.cookies, session.CookieName)
}

type dispatchCall struct {
	student student.Student
	report  student.DailyReport
	baseURL string
}

type notifierMock struct {
	err   error
	calls []dispatchCall
}

var _ ReportNotifier = (*notifierMock)(nil)

func (m *notifierMock) Dispatch(_ context.Context, st student.Student, r student.DailyReport, baseURL string) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, dispatchCall{student: st, report: r, baseURL: baseURL})
	return nil
}

type resolverMock struct {
	claim   user.Claim
	err     error
	gotCode string
}

func (m *resolverMock) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (m *resolverMock) Resolve(_ context.Context, code string) (user.Claim, error) {
	m.gotCode = code
	return m.claim, m.err
}
