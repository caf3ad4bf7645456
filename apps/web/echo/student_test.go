package echoweb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/notify"
	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/tests"
)

func TestStudents_CreateAndQuery(t *testing.T) {
	e := setup(t)
	e.login(t)

	rec := e.postForm("/students", url.Values{"name": {"  Ann Smith "}, "email": {"ann@example.com"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/students/1", rec.Header().Get("Location"))

	testutil.CreateStudent(t, e.repo, "Bob Jones", "bob@example.com")

	rec = e.get("/students")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<a href="/students/1">Ann Smith</a>`)
	assert.Contains(t, rec.Body.String(), "Bob Jones")

	rec = e.get("/students?q=BOB")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bob Jones")
	assert.NotContains(t, rec.Body.String(), "Ann Smith")
	assert.Contains(t, rec.Body.String(), `value="BOB"`)

	rec = e.get("/students?q=nobody")
	assert.Contains(t, rec.Body.String(), `No students matching "nobody".`)
}

func TestStudents_CreateInvalid(t *testing.T) {
	e := setup(t)
	e.login(t)

	rec := e.postForm("/students", url.Values{"name": {"   "}, "email": {"ann@example.com"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>name</strong>: this field is required")

	students, err := e.repo.QueryStudents(context.Background(), student.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestStudents_Detail(t *testing.T) {
	e := setup(t)
	e.login(t)

	st := testutil.CreateStudent(t, e.repo, "Ann", "ann@example.com")
	base := testutil.Date(t, "2024-05-01")
	for i := 0; i < student.DetailReportsLimit+2; i++ {
		testutil.CreateReport(t, e.repo, student.DailyReport{
			StudentID:  st.ID,
			ReportDate: base.AddDate(0, 0, i),
			Notes:      "day " + strconv.Itoa(i),
		})
	}

	rec := e.get("/students/" + strconv.Itoa(st.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Ann</h1>")
	assert.Contains(t, body, "2024-05-12") // newest
	assert.Contains(t, body, "2024-05-03") // 10th newest
	assert.NotContains(t, body, "2024-05-02")
	assert.Contains(t, body, `name="report_date" value="`+core.Today()+`"`)

	rec = e.get("/students/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Student not found")

	rec = e.get("/students/abc")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudents_EditDelete(t *testing.T) {
	e := setup(t)
	e.login(t)

	st := testutil.CreateStudent(t, e.repo, "Ann", "ann@example.com")
	path := "/students/" + strconv.Itoa(st.ID)

	rec := e.get(path + "/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="ann@example.com"`)

	rec = e.postForm(path+"/edit", url.Values{"name": {"Annie"}, "email": {"annie@example.com"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, path+"?success=Student+updated", rec.Header().Get("Location"))

	updated, err := e.repo.GetStudent(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Annie", updated.Name)
	assert.Equal(t, "annie@example.com", updated.Email)

	rec = e.postForm(path+"/edit", url.Values{"name": {"Annie"}, "email": {""}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.postForm(path+"/delete", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/students?success=Student+deleted", rec.Header().Get("Location"))

	_, err = e.repo.GetStudent(context.Background(), st.ID)
	assert.True(t, student.IsNotFound(err))
}

func TestStudents_MissingRedirects(t *testing.T) {
	e := setup(t)
	e.login(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "edit page", method: http.MethodGet, path: "/students/42/edit"},
		{name: "edit submit", method: http.MethodPost, path: "/students/42/edit"},
		{name: "delete", method: http.MethodPost, path: "/students/42/delete"},
		{name: "bad id", method: http.MethodGet, path: "/students/x/edit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.method == http.MethodPost {
				rec = e.postForm(tt.path, url.Values{"name": {"Ann"}, "email": {"ann@example.com"}})
			} else {
				rec = e.get(tt.path)
			}
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/students?error=Student+not+found", rec.Header().Get("Location"))
		})
	}
}

func TestStudents_Send(t *testing.T) {
	e := setup(t)
	e.login(t)

	st := testutil.CreateStudent(t, e.repo, "Ann", "ann@example.com")
	older := testutil.CreateReport(t, e.repo, student.DailyReport{
		StudentID:  st.ID,
		ReportDate: testutil.Date(t, "2024-05-01"),
		Notes:      "first",
		CreatedAt:  time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	})
	latest := testutil.CreateReport(t, e.repo, student.DailyReport{
		StudentID:  st.ID,
		ReportDate: testutil.Date(t, "2024-05-01"),
		Notes:      "second",
		Rating:     null.IntFrom(4),
		CreatedAt:  time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
	})
	require.NotEqual(t, older.ID, latest.ID)
	path := "/students/" + strconv.Itoa(st.ID) + "/send"

	t.Run("queued", func(t *testing.T) {
		rec := e.postForm(path, url.Values{"report_date": {"2024-05-01"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Queued email to ann@example.com for 2024-05-01.")

		require.Len(t, e.notifier.calls, 1)
		call := e.notifier.calls[0]
		assert.Equal(t, st.ID, call.student.ID)
		assert.Equal(t, latest.ID, call.report.ID)
		assert.Equal(t, "http://example.com", call.baseURL)
	})

	t.Run("no report", func(t *testing.T) {
		rec := e.postForm(path, url.Values{"report_date": {"2024-05-02"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "No report found for 2024-05-02.")
		assert.Contains(t, rec.Body.String(), "second") // recent reports still listed
	})

	t.Run("bad date", func(t *testing.T) {
		rec := e.postForm(path, url.Values{"report_date": {"05/01/2024"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid date, expected YYYY-MM-DD")
	})

	t.Run("unknown student", func(t *testing.T) {
		rec := e.postForm("/students/999/send", url.Values{"report_date": {"2024-05-01"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	for _, err := range []error{core.ErrMailNotConfigured, notify.ErrQueueFull} {
		t.Run(err.Error(), func(t *testing.T) {
			e.notifier.err = err
			defer func() { e.notifier.err = nil }()

			rec := e.postForm(path, url.Values{"report_date": {"2024-05-01"}})
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `<div class="flash error">`)
			assert.NotContains(t, rec.Body.String(), "Queued email")
		})
	}
}

func TestStudents_SendPublicBaseURL(t *testing.T) {
	e := setup(t, setupOpts{configure: func(conf *core.Config) { conf.PublicBaseURL = "https://dorm.example.org" }})
	e.login(t)

	st := testutil.CreateStudent(t, e.repo, "Ann", "ann@example.com")
	testutil.CreateReport(t, e.repo, student.DailyReport{StudentID: st.ID, ReportDate: testutil.Date(t, "2024-05-01"), Notes: "ok"})

	rec := e.postForm("/students/"+strconv.Itoa(st.ID)+"/send", url.Values{"report_date": {"2024-05-01"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, e.notifier.calls, 1)
	assert.Equal(t, "https://dorm.example.org", e.notifier.calls[0].baseURL)
}
