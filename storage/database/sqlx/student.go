package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/student"
)

const (
	studentColumns = "id, name, email, created_at"
	reportColumns  = "id, student_id, report_date, notes, rating, image_url, image_path, created_at"
)

type studentRepository struct {
	db sqlx.ExtContext // *sqlx.DB, or *sqlx.Tx inside InTx
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) InTx(ctx context.Context, fn func(repo student.Repository) error) error {
	db, ok := repo.db.(*sqlx.DB)
	if !ok { // already in a transaction
		return fn(repo)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	if err = fn(&studentRepository{db: tx}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO student (name, email, created_at) VALUES ($1, $2, $3) RETURNING id`,
		st.Name, st.Email, st.CreatedAt,
	).Scan(&st.ID)
	return st, errors.Wrap(err, "inserting student")
}

func (repo *studentRepository) GetStudent(ctx context.Context, id int) (student.Student, error) {
	var st student.Student
	err := sqlx.GetContext(ctx, repo.db, &st, `SELECT `+studentColumns+` FROM student WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return student.Student{}, student.ErrNotFound
	}
	return st, errors.Wrap(err, "selecting student")
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	var updated student.Student
	err := sqlx.GetContext(ctx, repo.db, &updated,
		`UPDATE student SET name = $1, email = $2 WHERE id = $3 RETURNING `+studentColumns,
		st.Name, st.Email, st.ID,
	)
	if err == sql.ErrNoRows {
		return student.Student{}, student.ErrNotFound
	}
	return updated, errors.Wrap(err, "updating student")
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM student WHERE id = $1`, id)
	return deleted(res, err, student.ErrNotFound, "deleting student")
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, ordering ...core.DBOrdering) ([]student.Student, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		where = append(where, "(name ILIKE $1 OR email ILIKE $1)")
	}

	students := make([]student.Student, 0)
	q := `SELECT ` + studentColumns + ` FROM student` + whereClause(where) + orderByClause(ordering)
	err := sqlx.SelectContext(ctx, repo.db, &students, q, args...)
	return students, errors.Wrap(err, "selecting students")
}

func (repo *studentRepository) CreateReport(ctx context.Context, r student.DailyReport) (student.DailyReport, error) {
	err := repo.db.QueryRowxContext(ctx,
		`INSERT INTO daily_report (student_id, report_date, notes, rating, image_url, image_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		r.StudentID, r.ReportDate, r.Notes, r.Rating, r.ImageURL, r.ImagePath, r.CreatedAt,
	).Scan(&r.ID)
	return r, errors.Wrap(err, "inserting report")
}

func (repo *studentRepository) GetReport(ctx context.Context, id int) (student.DailyReport, error) {
	var r student.DailyReport
	err := sqlx.GetContext(ctx, repo.db, &r, `SELECT `+reportColumns+` FROM daily_report WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return student.DailyReport{}, student.ErrReportNotFound
	}
	r.ReportDate = asDate(r.ReportDate)
	return r, errors.Wrap(err, "selecting report")
}

func (repo *studentRepository) UpdateReport(ctx context.Context, r student.DailyReport) (student.DailyReport, error) {
	var updated student.DailyReport
	err := sqlx.GetContext(ctx, repo.db, &updated,
		`UPDATE daily_report SET report_date = $1, notes = $2, rating = $3, image_url = $4, image_path = $5
		WHERE id = $6 RETURNING `+reportColumns,
		r.ReportDate, r.Notes, r.Rating, r.ImageURL, r.ImagePath, r.ID,
	)
	if err == sql.ErrNoRows {
		return student.DailyReport{}, student.ErrReportNotFound
	}
	updated.ReportDate = asDate(updated.ReportDate)
	return updated, errors.Wrap(err, "updating report")
}

func (repo *studentRepository) DeleteReport(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM daily_report WHERE id = $1`, id)
	return deleted(res, err, student.ErrReportNotFound, "deleting report")
}

func (repo *studentRepository) DeleteStudentReports(ctx context.Context, studentID int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM daily_report WHERE student_id = $1`, studentID)
	return errors.Wrap(err, "deleting student reports")
}

func (repo *studentRepository) QueryReports(ctx context.Context, filter student.ReportFilter, limit int, ordering ...core.DBOrdering) ([]student.DailyReport, error) {
	where := []string{"student_id = $1"}
	args := []interface{}{filter.StudentID}
	if !filter.ReportDate.IsZero() {
		args = append(args, filter.ReportDate)
		where = append(where, fmt.Sprintf("report_date = $%d", len(args)))
	}

	q := `SELECT ` + reportColumns + ` FROM daily_report` + whereClause(where) + orderByClause(ordering)
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	reports := make([]student.DailyReport, 0)
	if err := sqlx.SelectContext(ctx, repo.db, &reports, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting reports")
	}
	for i := range reports {
		reports[i].ReportDate = asDate(reports[i].ReportDate)
	}
	return reports, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func orderByClause(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return ""
	}
	return " ORDER BY " + core.OrderByClause(ordering...)
}

func deleted(res sql.Result, err error, notFound error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
