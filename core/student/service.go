package student

import (
	"context"
	"io"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/attachment"
)

// DetailReportsLimit is the number of reports shown on a student's page.
const DetailReportsLimit = 10

var (
	// errors
	ErrNotFound       = errors.New("student not found")
	ErrReportNotFound = errors.New("report not found")
	ErrReportMismatch = errors.New("report does not belong to this student")

	// orderings
	StudentOrdering = []core.DBOrdering{{Field: "created_at"}, {Field: "id"}}
	ReportOrdering  = []core.DBOrdering{{Field: "report_date"}, {Field: "created_at"}, {Field: "id"}}
)

// IsNotFound reports whether err means the requested student or report is not reachable.
func IsNotFound(err error) bool {
	switch errors.Cause(err) {
	case ErrNotFound, ErrReportNotFound, ErrReportMismatch:
		return true
	default:
		return false
	}
}

type (
	// Upload is an image file submitted with a report form.
	Upload struct {
		Filename string
		Content  io.Reader
	}

	Repository interface {
		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudent(ctx context.Context, id int) (Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		DeleteStudent(ctx context.Context, id int) error
		QueryStudents(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error)

		CreateReport(ctx context.Context, r DailyReport) (DailyReport, error)
		GetReport(ctx context.Context, id int) (DailyReport, error)
		UpdateReport(ctx context.Context, r DailyReport) (DailyReport, error)
		DeleteReport(ctx context.Context, id int) error
		DeleteStudentReports(ctx context.Context, studentID int) error
		// QueryReports returns at most limit reports; 0 means no limit.
		QueryReports(ctx context.Context, filter ReportFilter, limit int, ordering ...core.DBOrdering) ([]DailyReport, error)

		// InTx runs fn against a Repository bound to a single transaction,
		// which is committed when fn returns nil and rolled back otherwise.
		InTx(ctx context.Context, fn func(repo Repository) error) error
	}

	Service interface {
		CreateStudent(ctx context.Context, data NewStudent) (Student, error)
		GetStudent(ctx context.Context, id int) (Student, error)
		UpdateStudent(ctx context.Context, id int, data UpdateStudent) (Student, error)
		DeleteStudent(ctx context.Context, id int) error
		QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error)

		CreateReport(ctx context.Context, studentID int, data NewReport, upload *Upload) (DailyReport, error)
		GetReport(ctx context.Context, studentID, reportID int) (DailyReport, error)
		UpdateReport(ctx context.Context, studentID, reportID int, data UpdateReport, upload *Upload) (DailyReport, error)
		DeleteReport(ctx context.Context, studentID, reportID int) error
		ListReports(ctx context.Context, studentID, limit int) ([]DailyReport, error)
		LatestReportForDate(ctx context.Context, studentID int, date time.Time) (DailyReport, error)
	}

	service struct {
		repo        Repository
		attachments attachment.Storer
		validate    *validator.Validate
		translator  ut.Translator
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, attachments attachment.Storer, validate *validator.Validate, translator ut.Translator) Service {
	RegisterValidators(validate)
	return &service{
		repo:        repo,
		attachments: attachments,
		validate:    validate,
		translator:  translator,
	}
}

func (svc *service) validationError(err error) error {
	return core.TranslateValidationErrors(err, svc.translator)
}

func (svc *service) CreateStudent(ctx context.Context, data NewStudent) (Student, error) {
	if err := data.Validate(svc.validate); err != nil {
		return Student{}, svc.validationError(err)
	}
	st, err := svc.repo.CreateStudent(ctx, Student{
		Name:      data.Name,
		Email:     data.Email,
		CreatedAt: core.NowFunc(),
	})
	return st, errors.Wrap(err, "creating student")
}

func (svc *service) GetStudent(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) UpdateStudent(ctx context.Context, id int, data UpdateStudent) (Student, error) {
	st, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err = data.Validate(svc.validate); err != nil {
		return Student{}, svc.validationError(err)
	}
	st.Name = data.Name
	st.Email = data.Email
	st, err = svc.repo.UpdateStudent(ctx, st)
	return st, errors.Wrap(err, "updating student")
}

// DeleteStudent removes the student with its reports and their uploaded files.
// Files are removed best-effort: a failure is logged by the attachment manager and the deletion goes on.
func (svc *service) DeleteStudent(ctx context.Context, id int) error {
	return svc.repo.InTx(ctx, func(repo Repository) error {
		if _, err := repo.GetStudent(ctx, id); err != nil {
			return err
		}

		reports, err := repo.QueryReports(ctx, ReportFilter{StudentID: id}, 0)
		if err != nil {
			return errors.Wrap(err, "listing student reports")
		}
		for _, r := range reports {
			if r.ImagePath.Valid {
				svc.attachments.Delete(r.ImagePath.String)
			}
		}

		if err = repo.DeleteStudentReports(ctx, id); err != nil {
			return errors.Wrap(err, "deleting student reports")
		}
		return errors.Wrap(repo.DeleteStudent(ctx, id), "deleting student")
	})
}

func (svc *service) QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter, StudentOrdering...)
}

func (svc *service) CreateReport(ctx context.Context, studentID int, data NewReport, upload *Upload) (DailyReport, error) {
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return DailyReport{}, err
	}
	if err := data.Validate(svc.validate); err != nil {
		return DailyReport{}, svc.validationError(err)
	}

	report := DailyReport{
		StudentID:  studentID,
		ReportDate: data.ReportDate,
		Notes:      data.Notes,
		Rating:     data.Rating,
		ImageURL:   data.ImageURL,
		CreatedAt:  core.NowFunc(),
	}
	if upload != nil {
		imgPath, err := svc.attachments.Store(upload.Content, upload.Filename)
		if err != nil {
			return DailyReport{}, errors.Wrap(err, "storing upload")
		}
		report.ImagePath = null.StringFrom(imgPath)
	}

	created, err := svc.repo.CreateReport(ctx, report)
	if err != nil {
		if report.ImagePath.Valid {
			svc.attachments.Delete(report.ImagePath.String)
		}
		return DailyReport{}, errors.Wrap(err, "creating report")
	}
	return created, nil
}

func (svc *service) GetReport(ctx context.Context, studentID, reportID int) (DailyReport, error) {
	report, err := svc.repo.GetReport(ctx, reportID)
	if err != nil {
		return DailyReport{}, err
	}
	if report.StudentID != studentID {
		return DailyReport{}, ErrReportMismatch
	}
	return report, nil
}

// UpdateReport overwrites the report fields. A clear flag wins over a newly supplied URL,
// and a blank URL keeps the current one. A new upload replaces the old file, which is deleted first.
func (svc *service) UpdateReport(ctx context.Context, studentID, reportID int, data UpdateReport, upload *Upload) (DailyReport, error) {
	report, err := svc.GetReport(ctx, studentID, reportID)
	if err != nil {
		return DailyReport{}, err
	}
	if err = data.Validate(svc.validate); err != nil {
		return DailyReport{}, svc.validationError(err)
	}

	report.ReportDate = data.ReportDate
	report.Notes = data.Notes
	report.Rating = data.Rating

	if data.ClearImageURL {
		report.ImageURL = null.String{}
	} else if data.ImageURL.Valid {
		report.ImageURL = data.ImageURL
	}

	if data.ClearImageUpload && report.ImagePath.Valid {
		svc.attachments.Delete(report.ImagePath.String)
		report.ImagePath = null.String{}
	}
	if upload != nil {
		if report.ImagePath.Valid {
			svc.attachments.Delete(report.ImagePath.String)
			report.ImagePath = null.String{}
		}
		imgPath, err := svc.attachments.Store(upload.Content, upload.Filename)
		if err != nil {
			return DailyReport{}, errors.Wrap(err, "storing upload")
		}
		report.ImagePath = null.StringFrom(imgPath)
	}

	updated, err := svc.repo.UpdateReport(ctx, report)
	if err != nil {
		if upload != nil {
			svc.attachments.Delete(report.ImagePath.String)
		}
		return DailyReport{}, errors.Wrap(err, "updating report")
	}
	return updated, nil
}

func (svc *service) DeleteReport(ctx context.Context, studentID, reportID int) error {
	report, err := svc.GetReport(ctx, studentID, reportID)
	if err != nil {
		return err
	}
	if report.ImagePath.Valid {
		svc.attachments.Delete(report.ImagePath.String)
	}
	return errors.Wrap(svc.repo.DeleteReport(ctx, report.ID), "deleting report")
}

func (svc *service) ListReports(ctx context.Context, studentID, limit int) ([]DailyReport, error) {
	return svc.repo.QueryReports(ctx, ReportFilter{StudentID: studentID}, limit, ReportOrdering...)
}

// LatestReportForDate returns the most recent report written for the given day.
func (svc *service) LatestReportForDate(ctx context.Context, studentID int, date time.Time) (DailyReport, error) {
	reports, err := svc.repo.QueryReports(ctx, ReportFilter{StudentID: studentID, ReportDate: date}, 1, ReportOrdering...)
	if err != nil {
		return DailyReport{}, err
	}
	if len(reports) == 0 {
		return DailyReport{}, ErrReportNotFound
	}
	return reports[0], nil
}
