package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

// InTx restores both tables to their prior content when fn fails.
func (repo *studentRepository) InTx(_ context.Context, fn func(repo student.Repository) error) error {
	repo.db.txMu.Lock()
	defer repo.db.txMu.Unlock()

	snap := repo.db.snapshot()
	if err := fn(repo); err != nil {
		repo.db.restore(snap)
		return err
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student) (student.Student, error) {
	tbl := repo.db.student
	tbl.Lock()
	defer tbl.Unlock()

	tbl.pkCount++
	st.ID = tbl.pkCount
	tbl.table[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id int) (student.Student, error) {
	tbl := repo.db.student
	tbl.RLock()
	defer tbl.RUnlock()

	if st, ok := tbl.table[id]; ok {
		return *st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st student.Student) (student.Student, error) {
	tbl := repo.db.student
	tbl.Lock()
	defer tbl.Unlock()

	existing, ok := tbl.table[st.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	existing.Name = st.Name
	existing.Email = st.Email
	return *existing, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, id int) error {
	tbl := repo.db.student
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.table[id]; !ok {
		return student.ErrNotFound
	}
	delete(tbl.table, id)
	return nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter, ordering ...core.DBOrdering) ([]student.Student, error) {
	tbl := repo.db.student
	tbl.RLock()
	defer tbl.RUnlock()

	search := strings.ToLower(filter.Search)
	students := make([]student.Student, 0, len(tbl.table))
	for _, st := range tbl.table {
		// search keyword matching either Name or Email ?
		if search != "" &&
			!strings.Contains(strings.ToLower(st.Name), search) &&
			!strings.Contains(strings.ToLower(st.Email), search) {
			continue
		}
		students = append(students, *st)
	}

	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "id":
				cmp = compareInts(a.ID, b.ID)
			case "name":
				cmp = strings.Compare(a.Name, b.Name)
			case "created_at":
				cmp = compareTimes(a.CreatedAt, b.CreatedAt)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return false
	})
	return students, nil
}

func (repo *studentRepository) CreateReport(_ context.Context, r student.DailyReport) (student.DailyReport, error) {
	repo.db.student.RLock()
	_, ok := repo.db.student.table[r.StudentID]
	repo.db.student.RUnlock()
	if !ok { // foreign key
		return student.DailyReport{}, student.ErrNotFound
	}

	tbl := repo.db.report
	tbl.Lock()
	defer tbl.Unlock()

	tbl.pkCount++
	r.ID = tbl.pkCount
	tbl.table[r.ID] = &r
	return r, nil
}

func (repo *studentRepository) GetReport(_ context.Context, id int) (student.DailyReport, error) {
	tbl := repo.db.report
	tbl.RLock()
	defer tbl.RUnlock()

	if r, ok := tbl.table[id]; ok {
		return *r, nil
	}
	return student.DailyReport{}, student.ErrReportNotFound
}

func (repo *studentRepository) UpdateReport(_ context.Context, r student.DailyReport) (student.DailyReport, error) {
	tbl := repo.db.report
	tbl.Lock()
	defer tbl.Unlock()

	existing, ok := tbl.table[r.ID]
	if !ok {
		return student.DailyReport{}, student.ErrReportNotFound
	}
	r.StudentID = existing.StudentID
	r.CreatedAt = existing.CreatedAt
	*existing = r
	return r, nil
}

func (repo *studentRepository) DeleteReport(_ context.Context, id int) error {
	tbl := repo.db.report
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.table[id]; !ok {
		return student.ErrReportNotFound
	}
	delete(tbl.table, id)
	return nil
}

func (repo *studentRepository) DeleteStudentReports(_ context.Context, studentID int) error {
	tbl := repo.db.report
	tbl.Lock()
	defer tbl.Unlock()

	for id, r := range tbl.table {
		if r.StudentID == studentID {
			delete(tbl.table, id)
		}
	}
	return nil
}

func (repo *studentRepository) QueryReports(_ context.Context, filter student.ReportFilter, limit int, ordering ...core.DBOrdering) ([]student.DailyReport, error) {
	tbl := repo.db.report
	tbl.RLock()
	defer tbl.RUnlock()

	reports := make([]student.DailyReport, 0)
	for _, r := range tbl.table {
		if r.StudentID != filter.StudentID {
			continue
		}
		if !filter.ReportDate.IsZero() && !r.ReportDate.Equal(filter.ReportDate) {
			continue
		}
		reports = append(reports, *r)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "id":
				cmp = compareInts(a.ID, b.ID)
			case "report_date":
				cmp = compareTimes(a.ReportDate, b.ReportDate)
			case "created_at":
				cmp = compareTimes(a.CreatedAt, b.CreatedAt)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return false
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
