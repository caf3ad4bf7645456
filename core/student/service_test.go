package student_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/attachment"
	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/storage/database/dummy"
	"github.com/trezcool/dormportal/tests"
)

type env struct {
	svc    student.Service
	repo   student.Repository
	fs     afero.Fs
	logger *testutil.Logger
}

func setup(t *testing.T, fs ...afero.Fs) env {
	db, err := dummydb.Open()
	require.NoError(t, err)

	e := env{
		repo:   dummydb.NewStudentRepository(db),
		fs:     afero.NewMemMapFs(),
		logger: &testutil.Logger{},
	}
	if len(fs) > 0 {
		e.fs = fs[0]
	}
	validate, translator := core.NewValidator()
	e.svc = student.NewService(e.repo, attachment.NewManager(e.fs, "uploads", e.logger), validate, translator)
	return e
}

func (e env) fileExists(t *testing.T, publicPath string) bool {
	ok, err := afero.Exists(e.fs, "uploads/"+strings.TrimPrefix(publicPath, attachment.PublicPrefix))
	require.NoError(t, err)
	return ok
}

func upload(name, content string) *student.Upload {
	return &student.Upload{Filename: name, Content: strings.NewReader(content)}
}

func TestService_CreateStudent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		data       student.NewStudent
		wantFields []string
	}{
		{name: "missing name", data: student.NewStudent{Email: "a@b.c"}, wantFields: []string{"name"}},
		{name: "blank fields", data: student.NewStudent{Name: "  ", Email: " "}, wantFields: []string{"name", "email"}},
		{name: "free-form email", data: student.NewStudent{Name: "Ana", Email: "room 12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := e.svc.CreateStudent(ctx, tt.data)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				assert.NotZero(t, st.ID)
				return
			}
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			var fields []string
			for _, f := range vErr.Fields {
				fields = append(fields, f.Field)
				assert.Equal(t, "this field is required", f.Error)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestService_QueryStudents(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ana := testutil.CreateStudent(t, e.repo, "Ana Moreau", "ana@dorm.test", now.Add(-2*time.Hour))
	bob := testutil.CreateStudent(t, e.repo, "Bob", "bob@school.test", now.Add(-time.Hour))
	cid := testutil.CreateStudent(t, e.repo, "Cid", "CID@DORM.test", now)

	tests := []struct {
		name   string
		search string
		want   []student.Student
	}{
		{name: "all, newest first", search: "", want: []student.Student{cid, bob, ana}},
		{name: "name match", search: "moreau", want: []student.Student{ana}},
		{name: "email match, case insensitive", search: " Dorm.Test ", want: []student.Student{cid, ana}},
		{name: "no match", search: "zzz", want: []student.Student{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.svc.QueryStudents(ctx, student.QueryFilter{Search: tt.search})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_CreateReportRating(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	st := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
	date := testutil.Date(t, "2024-03-01")

	tests := []struct {
		name    string
		rating  null.Int
		wantErr bool
	}{
		{name: "no rating", rating: null.Int{}},
		{name: "zero", rating: null.IntFrom(0), wantErr: true},
		{name: "lower bound", rating: null.IntFrom(1)},
		{name: "upper bound", rating: null.IntFrom(5)},
		{name: "six", rating: null.IntFrom(6), wantErr: true},
		{name: "negative", rating: null.IntFrom(-3), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := e.svc.ListReports(ctx, st.ID, 0)
			require.NoError(t, err)

			r, err := e.svc.CreateReport(ctx, st.ID, student.NewReport{ReportDate: date, Notes: "ok", Rating: tt.rating}, nil)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.rating, r.Rating)
				return
			}

			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, "rating", vErr.Fields[0].Field)
			assert.Equal(t, "rating must be between 1 and 5", vErr.Fields[0].Error)

			after, err := e.svc.ListReports(ctx, st.ID, 0)
			require.NoError(t, err)
			assert.Len(t, after, len(before), "rejected report must not be persisted")
		})
	}
}

func TestService_CreateReport(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	st := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
	date := testutil.Date(t, "2024-03-01")

	_, err := e.svc.CreateReport(ctx, 999, student.NewReport{ReportDate: date, Notes: "x"}, nil)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))

	_, err = e.svc.CreateReport(ctx, st.ID, student.NewReport{ReportDate: date, Notes: "  "}, nil)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "notes", vErr.Fields[0].Field)

	r, err := e.svc.CreateReport(ctx, st.ID, student.NewReport{
		ReportDate: date,
		Notes:      " slept well ",
		ImageURL:   null.StringFrom(" https://img/1.png "),
	}, upload("me.png", "png"))
	require.NoError(t, err)
	assert.Equal(t, "slept well", r.Notes)
	assert.Equal(t, "https://img/1.png", r.ImageURL.String)
	require.True(t, r.ImagePath.Valid)
	assert.True(t, e.fileExists(t, r.ImagePath.String))
}

func TestService_GetReportMismatch(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	ana := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
	bob := testutil.CreateStudent(t, e.repo, "Bob", "bob@dorm.test")
	r := testutil.CreateReport(t, e.repo, student.DailyReport{StudentID: ana.ID, ReportDate: testutil.Date(t, "2024-03-01"), Notes: "n"})

	_, err := e.svc.GetReport(ctx, bob.ID, r.ID)
	assert.Equal(t, student.ErrReportMismatch, err)
	assert.True(t, student.IsNotFound(err))

	_, err = e.svc.GetReport(ctx, ana.ID, r.ID+100)
	assert.True(t, student.IsNotFound(err))

	got, err := e.svc.GetReport(ctx, ana.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestService_UpdateReportImages(t *testing.T) {
	ctx := context.Background()
	date := testutil.Date(t, "2024-03-01")

	tests := []struct {
		name          string
		data          student.UpdateReport
		upload        *student.Upload
		wantImageURL  null.String
		wantOldFile   bool
		wantImagePath bool
	}{
		{
			name:          "blank url keeps existing",
			data:          student.UpdateReport{},
			wantImageURL:  null.StringFrom("https://old"),
			wantOldFile:   true,
			wantImagePath: true,
		},
		{
			name:          "new url replaces",
			data:          student.UpdateReport{ImageURL: null.StringFrom("https://new")},
			wantImageURL:  null.StringFrom("https://new"),
			wantOldFile:   true,
			wantImagePath: true,
		},
		{
			name:          "clear wins over new url",
			data:          student.UpdateReport{ImageURL: null.StringFrom("https://new"), ClearImageURL: true},
			wantImageURL:  null.String{},
			wantOldFile:   true,
			wantImagePath: true,
		},
		{
			name:          "clear upload",
			data:          student.UpdateReport{ClearImageUpload: true},
			wantImageURL:  null.StringFrom("https://old"),
			wantOldFile:   false,
			wantImagePath: false,
		},
		{
			name:          "replace upload",
			data:          student.UpdateReport{},
			upload:        upload("new.png", "new"),
			wantImageURL:  null.StringFrom("https://old"),
			wantOldFile:   false,
			wantImagePath: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			st := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
			orig, err := e.svc.CreateReport(ctx, st.ID, student.NewReport{
				ReportDate: date,
				Notes:      "n",
				Rating:     null.IntFrom(4),
				ImageURL:   null.StringFrom("https://old"),
			}, upload("old.png", "old"))
			require.NoError(t, err)

			data := tt.data
			data.ReportDate = date
			data.Notes = "edited"
			got, err := e.svc.UpdateReport(ctx, st.ID, orig.ID, data, tt.upload)
			require.NoError(t, err)

			assert.Equal(t, "edited", got.Notes)
			assert.False(t, got.Rating.Valid, "blank rating clears it")
			assert.Equal(t, tt.wantImageURL, got.ImageURL)
			assert.Equal(t, tt.wantOldFile, e.fileExists(t, orig.ImagePath.String))
			assert.Equal(t, tt.wantImagePath, got.ImagePath.Valid)
			if got.ImagePath.Valid {
				assert.True(t, e.fileExists(t, got.ImagePath.String))
			}
		})
	}
}

type failingUpdateRepo struct {
	student.Repository
}

func (failingUpdateRepo) UpdateReport(context.Context, student.DailyReport) (student.DailyReport, error) {
	return student.DailyReport{}, errors.New("db down")
}

func TestService_UpdateReportRemovesUploadOnFailure(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	date := testutil.Date(t, "2024-03-01")

	st := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
	orig, err := e.svc.CreateReport(ctx, st.ID, student.NewReport{ReportDate: date, Notes: "n"}, nil)
	require.NoError(t, err)

	validate, translator := core.NewValidator()
	svc := student.NewService(failingUpdateRepo{e.repo}, attachment.NewManager(e.fs, "uploads", e.logger), validate, translator)

	_, err = svc.UpdateReport(ctx, st.ID, orig.ID, student.UpdateReport{ReportDate: date, Notes: "edited"}, upload("new.png", "new"))
	require.Error(t, err)

	files, err := afero.ReadDir(e.fs, "uploads")
	require.NoError(t, err)
	assert.Empty(t, files)

	stored, err := e.repo.GetReport(ctx, orig.ID)
	require.NoError(t, err)
	assert.False(t, stored.ImagePath.Valid)
	assert.Equal(t, "n", stored.Notes)
}

func TestService_ListReportsOrdering(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	st := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
	t0 := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

	a := testutil.CreateReport(t, e.repo, student.DailyReport{StudentID: st.ID, ReportDate: testutil.Date(t, "2024-03-01"), Notes: "a", CreatedAt: t0})
	b := testutil.CreateReport(t, e.repo, student.DailyReport{StudentID: st.ID, ReportDate: testutil.Date(t, "2024-03-01"), Notes: "b", CreatedAt: t0.Add(time.Minute)})
	c := testutil.CreateReport(t, e.repo, student.DailyReport{StudentID: st.ID, ReportDate: testutil.Date(t, "2024-02-28"), Notes: "c", CreatedAt: t0.Add(2 * time.Minute)})
	d := testutil.CreateReport(t, e.repo, student.DailyReport{StudentID: st.ID, ReportDate: testutil.Date(t, "2024-03-01"), Notes: "d", CreatedAt: t0.Add(time.Minute)})

	got, err := e.svc.ListReports(ctx, st.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []student.DailyReport{d, b, a, c}, got)

	got, err = e.svc.ListReports(ctx, st.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []student.DailyReport{d, b}, got)

	latest, err := e.svc.LatestReportForDate(ctx, st.ID, testutil.Date(t, "2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, d, latest)

	_, err = e.svc.LatestReportForDate(ctx, st.ID, testutil.Date(t, "2024-01-01"))
	assert.Equal(t, student.ErrReportNotFound, err)
}

func TestService_DeleteStudentCascade(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	date := testutil.Date(t, "2024-03-01")

	ana := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
	bob := testutil.CreateStudent(t, e.repo, "Bob", "bob@dorm.test")
	r1, err := e.svc.CreateReport(ctx, ana.ID, student.NewReport{ReportDate: date, Notes: "1"}, upload("1.png", "1"))
	require.NoError(t, err)
	r2, err := e.svc.CreateReport(ctx, ana.ID, student.NewReport{ReportDate: date, Notes: "2"}, upload("2.png", "2"))
	require.NoError(t, err)
	_, err = e.svc.CreateReport(ctx, ana.ID, student.NewReport{ReportDate: date, Notes: "3"}, nil)
	require.NoError(t, err)
	rb, err := e.svc.CreateReport(ctx, bob.ID, student.NewReport{ReportDate: date, Notes: "b"}, upload("b.png", "b"))
	require.NoError(t, err)

	require.NoError(t, e.svc.DeleteStudent(ctx, ana.ID))

	_, err = e.svc.GetStudent(ctx, ana.ID)
	assert.Equal(t, student.ErrNotFound, err)
	reports, err := e.svc.ListReports(ctx, ana.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.False(t, e.fileExists(t, r1.ImagePath.String))
	assert.False(t, e.fileExists(t, r2.ImagePath.String))

	// other students are untouched
	reports, err = e.svc.ListReports(ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	assert.True(t, e.fileExists(t, rb.ImagePath.String))

	assert.Equal(t, student.ErrNotFound, errors.Cause(e.svc.DeleteStudent(ctx, ana.ID)))
}

func TestService_DeleteStudentFileFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	e := setup(t, base)
	ctx := context.Background()

	st := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
	r, err := e.svc.CreateReport(ctx, st.ID, student.NewReport{ReportDate: testutil.Date(t, "2024-03-01"), Notes: "n"}, upload("a.png", "a"))
	require.NoError(t, err)

	// same records, but the files can no longer be removed
	validate, translator := core.NewValidator()
	svc := student.NewService(e.repo, attachment.NewManager(afero.NewReadOnlyFs(base), "uploads", e.logger), validate, translator)

	require.NoError(t, svc.DeleteStudent(ctx, st.ID))

	_, err = svc.GetStudent(ctx, st.ID)
	assert.Equal(t, student.ErrNotFound, err)
	_, err = e.repo.GetReport(ctx, r.ID)
	assert.Equal(t, student.ErrReportNotFound, err)
	assert.True(t, e.fileExists(t, r.ImagePath.String))
	assert.Len(t, e.logger.Messages(), 1)
}

func TestService_DeleteReport(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	ana := testutil.CreateStudent(t, e.repo, "Ana", "ana@dorm.test")
	bob := testutil.CreateStudent(t, e.repo, "Bob", "bob@dorm.test")
	r, err := e.svc.CreateReport(ctx, ana.ID, student.NewReport{ReportDate: testutil.Date(t, "2024-03-01"), Notes: "n"}, upload("a.png", "a"))
	require.NoError(t, err)

	assert.Equal(t, student.ErrReportMismatch, e.svc.DeleteReport(ctx, bob.ID, r.ID))
	assert.True(t, e.fileExists(t, r.ImagePath.String))

	require.NoError(t, e.svc.DeleteReport(ctx, ana.ID, r.ID))
	assert.False(t, e.fileExists(t, r.ImagePath.String))
	assert.True(t, student.IsNotFound(e.svc.DeleteReport(ctx, ana.ID, r.ID)))
}

func TestReportForm(t *testing.T) {
	tests := []struct {
		name       string
		form       student.ReportForm
		wantErr    bool
		wantRating null.Int
		wantClear  bool
	}{
		{name: "malformed date", form: student.ReportForm{ReportDate: "03/01/2024", Notes: "n"}, wantErr: true},
		{name: "empty date", form: student.ReportForm{Notes: "n"}, wantErr: true},
		{name: "non numeric rating", form: student.ReportForm{ReportDate: "2024-03-01", Rating: "five"}, wantErr: true},
		{name: "blank rating", form: student.ReportForm{ReportDate: "2024-03-01", Rating: " "}},
		{name: "rating", form: student.ReportForm{ReportDate: "2024-03-01", Rating: "3"}, wantRating: null.IntFrom(3)},
		{name: "checkbox on", form: student.ReportForm{ReportDate: "2024-03-01", ClearImageURL: "on"}, wantClear: true},
		{name: "checkbox any value", form: student.ReportForm{ReportDate: "2024-03-01", ClearImageURL: "false"}, wantClear: true},
		{name: "checkbox blank", form: student.ReportForm{ReportDate: "2024-03-01", ClearImageURL: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ur, err := tt.form.UpdateReport()
			if tt.wantErr {
				var vErr *core.ValidationError
				assert.True(t, errors.As(err, &vErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRating, ur.Rating)
			assert.Equal(t, tt.wantClear, ur.ClearImageURL)
			assert.Equal(t, testutil.Date(t, "2024-03-01"), ur.ReportDate)
		})
	}
}
