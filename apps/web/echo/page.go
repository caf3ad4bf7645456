package echoweb

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/auth"
	"github.com/trezcool/dormportal/core/student"
)

var ratings = []int{core.MinRating, 2, 3, 4, core.MaxRating}

type (
	// page is the data every template is executed with.
	page struct {
		AppName          string
		User             *auth.Identity
		GoogleConfigured bool
		DevMode          bool
		FlashSuccess     string
		FlashError       string
		Today            string

		Query    string
		Student  student.Student
		Students []student.Student
		Report   student.DailyReport
		Reports  []student.DailyReport
		Ratings  []int
		Error    *errorPage
	}

	errorPage struct {
		Code    int
		Title   string
		Message string
		Fields  []core.FieldError
	}

	views struct {
		appName          string
		gate             *auth.Gate
		googleConfigured bool
	}
)

// page returns the base page of the request; flash messages come from the `success` and `error` query params.
func (v *views) page(ctx echo.Context) *page {
	p := &page{
		AppName:          v.appName,
		GoogleConfigured: v.googleConfigured,
		DevMode:          v.gate.DevEnabled(),
		FlashSuccess:     ctx.QueryParam("success"),
		FlashError:       ctx.QueryParam("error"),
		Today:            core.Today(),
		Ratings:          ratings,
	}
	if ident, ok := v.gate.Resolve(getSession(ctx)); ok {
		p.User = &ident
	}
	return p
}

func redirectSuccess(ctx echo.Context, path, msg string) error {
	return redirectFlash(ctx, path, "success", msg)
}

func redirectError(ctx echo.Context, path, msg string) error {
	return redirectFlash(ctx, path, "error", msg)
}

func redirectFlash(ctx echo.Context, path, key, msg string) error {
	q := make(url.Values)
	q.Set(key, msg)
	return ctx.Redirect(http.StatusSeeOther, path+"?"+q.Encode())
}

// intParam reads a numeric path param; anything else cannot match a record.
func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func studentPath(id int) string {
	return "/students/" + strconv.Itoa(id)
}

func reportsPath(studentID int) string {
	return studentPath(studentID) + "/reports"
}
