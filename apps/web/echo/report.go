package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core/student"
)

const uploadField = "image_file"

type reportHandlers struct {
	*views
	svc student.Service
}

func registerReportRoutes(g *echo.Group, h *reportHandlers) {
	rg := g.Group("/:id/reports")
	rg.GET("", h.query)
	rg.GET("/new", h.newPage)
	rg.POST("/new", h.create)
	rg.POST("", h.create)
	rg.GET("/:rid/edit", h.editPage)
	rg.POST("/:rid/edit", h.update)
	rg.POST("/:rid/delete", h.destroy)
}

// Handlers

func (h *reportHandlers) query(ctx echo.Context) error {
	st, err := h.student(ctx)
	if err != nil {
		return err
	}
	reports, err := h.svc.ListReports(ctx.Request().Context(), st.ID, 0)
	if err != nil {
		return errors.Wrap(err, "listing reports")
	}
	p := h.page(ctx)
	p.Student = st
	p.Reports = reports
	return ctx.Render(http.StatusOK, "report_list", p)
}

func (h *reportHandlers) newPage(ctx echo.Context) error {
	st, err := h.student(ctx)
	if err != nil {
		return err
	}
	p := h.page(ctx)
	p.Student = st
	return ctx.Render(http.StatusOK, "report_new", p)
}

func (h *reportHandlers) create(ctx echo.Context) error {
	st, err := h.student(ctx)
	if err != nil {
		return err
	}

	var form student.ReportForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to ReportForm")
	}
	data, err := form.NewReport()
	if err != nil {
		return err
	}
	upload, closeUpload, err := formUpload(ctx)
	if err != nil {
		return err
	}
	defer closeUpload()

	if _, err = h.svc.CreateReport(ctx.Request().Context(), st.ID, data, upload); err != nil {
		return err
	}
	return redirectSuccess(ctx, studentPath(st.ID), "Report saved")
}

func (h *reportHandlers) editPage(ctx echo.Context) error {
	st, report, err := h.reportOrRedirect(ctx)
	if err != nil || report == nil {
		return err
	}
	p := h.page(ctx)
	p.Student = st
	p.Report = *report
	return ctx.Render(http.StatusOK, "report_edit", p)
}

func (h *reportHandlers) update(ctx echo.Context) error {
	st, report, err := h.reportOrRedirect(ctx)
	if err != nil || report == nil {
		return err
	}

	var form student.ReportForm
	if err = ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to ReportForm")
	}
	data, err := form.UpdateReport()
	if err != nil {
		return err
	}
	upload, closeUpload, err := formUpload(ctx)
	if err != nil {
		return err
	}
	defer closeUpload()

	if _, err = h.svc.UpdateReport(ctx.Request().Context(), st.ID, report.ID, data, upload); err != nil {
		return err
	}
	return redirectSuccess(ctx, reportsPath(st.ID), "Report updated")
}

func (h *reportHandlers) destroy(ctx echo.Context) error {
	studentID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	reportID, err := intParam(ctx, "rid")
	if err == nil {
		err = h.svc.DeleteReport(ctx.Request().Context(), studentID, reportID)
	}
	if err != nil {
		if err == errHttpNotFound || student.IsNotFound(err) {
			return redirectError(ctx, reportsPath(studentID), "Report not found")
		}
		return errors.Wrap(err, "deleting report")
	}
	return redirectSuccess(ctx, reportsPath(studentID), "Report deleted")
}

// student loads the student of the `id` param; a missing one is a 404.
func (h *reportHandlers) student(ctx echo.Context) (student.Student, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return student.Student{}, err
	}
	st, err := h.svc.GetStudent(ctx.Request().Context(), id)
	return st, errors.Wrap(err, "getting student")
}

// reportOrRedirect loads the student and report of the path params. A nil report with a nil error
// means the request was already answered with a redirect.
func (h *reportHandlers) reportOrRedirect(ctx echo.Context) (student.Student, *student.DailyReport, error) {
	reqCtx := ctx.Request().Context()

	id, err := intParam(ctx, "id")
	if err == nil {
		var st student.Student
		if st, err = h.svc.GetStudent(reqCtx, id); err == nil {
			var reportID int
			if reportID, err = intParam(ctx, "rid"); err == nil {
				var report student.DailyReport
				if report, err = h.svc.GetReport(reqCtx, id, reportID); err == nil {
					return st, &report, nil
				}
			}
			if err == errHttpNotFound || student.IsNotFound(err) {
				return st, nil, redirectError(ctx, reportsPath(id), "Report not found")
			}
			return st, nil, errors.Wrap(err, "getting report")
		}
	}
	if err == errHttpNotFound || errors.Cause(err) == student.ErrNotFound {
		return student.Student{}, nil, redirectError(ctx, "/students", "Student not found")
	}
	return student.Student{}, nil, errors.Wrap(err, "getting student")
}

// formUpload returns the uploaded image of the form, nil when no file was chosen.
// The returned func closes the file and is always safe to call.
func formUpload(ctx echo.Context) (*student.Upload, func(), error) {
	noop := func() {}

	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, noop, nil
		}
		return nil, noop, errors.Wrap(err, "reading upload")
	}
	if fh.Filename == "" {
		return nil, noop, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, errors.Wrap(err, "opening upload")
	}
	return &student.Upload{Filename: fh.Filename, Content: f}, func() { _ = f.Close() }, nil
}
