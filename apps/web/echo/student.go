package echoweb

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/notify"
	"github.com/trezcool/dormportal/core/student"
)

// ReportNotifier schedules the email of a report. baseURL prefixes the links to uploaded images.
type ReportNotifier interface {
	Dispatch(ctx context.Context, st student.Student, r student.DailyReport, baseURL string) error
}

var _ ReportNotifier = (*notify.Dispatcher)(nil) // interface compliance check

type studentHandlers struct {
	*views
	svc           student.Service
	notifier      ReportNotifier
	publicBaseURL string
}

func registerStudentRoutes(g *echo.Group, h *studentHandlers) {
	g.GET("", h.query)
	g.POST("", h.create)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/edit", h.editPage)
	g.POST("/:id/edit", h.update)
	g.POST("/:id/delete", h.destroy)
	g.POST("/:id/send", h.send)
}

// Handlers

func (h *studentHandlers) query(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	students, err := h.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}

	p := h.page(ctx)
	p.Query = filter.Search
	p.Students = students
	return ctx.Render(http.StatusOK, "students", p)
}

func (h *studentHandlers) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	st, err := h.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.Redirect(http.StatusSeeOther, studentPath(st.ID))
}

func (h *studentHandlers) retrieve(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	st, err := h.svc.GetStudent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return h.renderDetail(ctx, http.StatusOK, h.page(ctx), st)
}

func (h *studentHandlers) editPage(ctx echo.Context) error {
	st, err := h.studentOrRedirect(ctx)
	if err != nil || st == nil {
		return err
	}
	p := h.page(ctx)
	p.Student = *st
	return ctx.Render(http.StatusOK, "student_edit", p)
}

func (h *studentHandlers) update(ctx echo.Context) error {
	st, err := h.studentOrRedirect(ctx)
	if err != nil || st == nil {
		return err
	}
	var data student.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if _, err = h.svc.UpdateStudent(ctx.Request().Context(), st.ID, data); err != nil {
		return err
	}
	return redirectSuccess(ctx, studentPath(st.ID), "Student updated")
}

func (h *studentHandlers) destroy(ctx echo.Context) error {
	st, err := h.studentOrRedirect(ctx)
	if err != nil || st == nil {
		return err
	}
	if err = h.svc.DeleteStudent(ctx.Request().Context(), st.ID); err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return redirectError(ctx, "/students", "Student not found")
		}
		return errors.Wrap(err, "deleting student")
	}
	return redirectSuccess(ctx, "/students", "Student deleted")
}

// send schedules the email of the latest report written for the submitted date.
// It renders the detail page in place with the outcome as a flash message.
func (h *studentHandlers) send(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	st, err := h.svc.GetStudent(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	date, err := core.ParseDate(ctx.FormValue("report_date"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "report_date", Error: "invalid date, expected YYYY-MM-DD"})
	}

	p := h.page(ctx)
	p.FlashSuccess, p.FlashError = "", ""
	code := http.StatusOK

	report, err := h.svc.LatestReportForDate(reqCtx, id, date)
	switch {
	case errors.Cause(err) == student.ErrReportNotFound:
		code = http.StatusNotFound
		p.FlashError = fmt.Sprintf("No report found for %s.", date.Format(core.DateLayout))
	case err != nil:
		return errors.Wrap(err, "getting report")
	default:
		err = h.notifier.Dispatch(reqCtx, st, report, h.baseURL(ctx))
		switch errors.Cause(err) {
		case nil:
			p.FlashSuccess = fmt.Sprintf("Queued email to %s for %s.", st.Email, report.Date())
		case core.ErrMailNotConfigured, notify.ErrQueueFull:
			p.FlashError = err.Error()
		default:
			return errors.Wrap(err, "dispatching report")
		}
	}
	return h.renderDetail(ctx, code, p, st)
}

func (h *studentHandlers) renderDetail(ctx echo.Context, code int, p *page, st student.Student) error {
	reports, err := h.svc.ListReports(ctx.Request().Context(), st.ID, student.DetailReportsLimit)
	if err != nil {
		return errors.Wrap(err, "listing reports")
	}
	p.Student = st
	p.Reports = reports
	return ctx.Render(code, "student_detail", p)
}

// studentOrRedirect loads the student of the `id` param. A nil student with a nil error means
// the request was already answered with a redirect to the list page.
func (h *studentHandlers) studentOrRedirect(ctx echo.Context) (*student.Student, error) {
	id, err := intParam(ctx, "id")
	if err == nil {
		var st student.Student
		if st, err = h.svc.GetStudent(ctx.Request().Context(), id); err == nil {
			return &st, nil
		}
	}
	if err == errHttpNotFound || errors.Cause(err) == student.ErrNotFound {
		return nil, redirectError(ctx, "/students", "Student not found")
	}
	return nil, errors.Wrap(err, "getting student")
}

// baseURL is the configured public URL, or the one the request was made to.
func (h *studentHandlers) baseURL(ctx echo.Context) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	return ctx.Scheme() + "://" + ctx.Request().Host
}
