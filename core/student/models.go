package student

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dormportal/core"
)

type Student struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// DailyReport is a welfare report about a Student on a given day.
// ImageURL (pasted link) and ImagePath (uploaded file) are independent slots.
type DailyReport struct {
	ID         int         `json:"id" db:"id"`
	StudentID  int         `json:"student_id" db:"student_id"`
	ReportDate time.Time   `json:"report_date" db:"report_date"` // date only, UTC midnight
	Notes      string      `json:"notes" db:"notes"`
	Rating     null.Int    `json:"rating" db:"rating"`
	ImageURL   null.String `json:"image_url" db:"image_url"`
	ImagePath  null.String `json:"image_path" db:"image_path"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"` // UTC
}

// Date returns the report date as YYYY-MM-DD.
func (r DailyReport) Date() string {
	return r.ReportDate.Format(core.DateLayout)
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name  string `form:"name" validate:"required"`
	Email string `form:"email" validate:"required"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent NewStudent

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.Email = core.CleanString(us.Email)
	return validate.Struct(us)
}

type QueryFilter struct {
	// Search does a case-insensitive substring match on either Name or Email.
	Search string `query:"q"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type ReportFilter struct {
	StudentID  int
	ReportDate time.Time // ignored when zero
}

// ReportForm is the raw report form as submitted by the browser.
type ReportForm struct {
	ReportDate       string `form:"report_date"`
	Notes            string `form:"notes"`
	Rating           string `form:"rating"`
	ImageURL         string `form:"image_url"`
	ClearImageURL    string `form:"clear_image_url"`
	ClearImageUpload string `form:"clear_image_upload"`
}

// NewReport contains information needed to create a new DailyReport.
type NewReport struct {
	ReportDate time.Time   `form:"report_date" validate:"required"`
	Notes      string      `form:"notes" validate:"required"`
	Rating     null.Int    `form:"rating"` // checked by reportStructValidation
	ImageURL   null.String `form:"image_url"`
}

func (nr *NewReport) Validate(validate *validator.Validate) error {
	nr.Notes = core.CleanString(nr.Notes)
	nr.ImageURL = cleanNullString(nr.ImageURL)
	return validate.Struct(nr)
}

// UpdateReport defines what information may be provided to modify an existing DailyReport.
// ClearImageURL wins over a supplied ImageURL; a blank ImageURL keeps the current one.
type UpdateReport struct {
	ReportDate       time.Time   `form:"report_date" validate:"required"`
	Notes            string      `form:"notes" validate:"required"`
	Rating           null.Int    `form:"rating"`
	ImageURL         null.String `form:"image_url"`
	ClearImageURL    bool        `form:"clear_image_url"`
	ClearImageUpload bool        `form:"clear_image_upload"`
}

func (ur *UpdateReport) Validate(validate *validator.Validate) error {
	ur.Notes = core.CleanString(ur.Notes)
	ur.ImageURL = cleanNullString(ur.ImageURL)
	return validate.Struct(ur)
}

// NewReport parses the form into a NewReport. Malformed dates and ratings fail fast.
func (f ReportForm) NewReport() (NewReport, error) {
	date, rating, err := f.parse()
	if err != nil {
		return NewReport{}, err
	}
	return NewReport{
		ReportDate: date,
		Notes:      f.Notes,
		Rating:     rating,
		ImageURL:   null.NewString(f.ImageURL, f.ImageURL != ""),
	}, nil
}

// UpdateReport parses the form into an UpdateReport. Malformed dates and ratings fail fast.
func (f ReportForm) UpdateReport() (UpdateReport, error) {
	date, rating, err := f.parse()
	if err != nil {
		return UpdateReport{}, err
	}
	return UpdateReport{
		ReportDate:       date,
		Notes:            f.Notes,
		Rating:           rating,
		ImageURL:         null.NewString(f.ImageURL, f.ImageURL != ""),
		ClearImageURL:    formBool(f.ClearImageURL),
		ClearImageUpload: formBool(f.ClearImageUpload),
	}, nil
}

func (f ReportForm) parse() (time.Time, null.Int, error) {
	date, err := core.ParseDate(f.ReportDate)
	if err != nil {
		return time.Time{}, null.Int{}, core.NewValidationError(err, core.FieldError{Field: "report_date", Error: "invalid date, expected YYYY-MM-DD"})
	}

	var rating null.Int
	if raw := core.CleanString(f.Rating); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, null.Int{}, core.NewValidationError(err, core.FieldError{Field: "rating", Error: "rating must be a whole number"})
		}
		rating = null.IntFrom(val)
	}
	return date, rating, nil
}

// formBool reads an HTML checkbox: any non-blank value counts as checked.
func formBool(val string) bool {
	return core.CleanString(val) != ""
}

func cleanNullString(s null.String) null.String {
	if !s.Valid {
		return s
	}
	val := core.CleanString(s.String)
	return null.NewString(val, val != "")
}
