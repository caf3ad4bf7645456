package dummydb

import (
	"sync"

	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/core/user"
)

type (
	// DB is an in-memory stand-in for the Postgres database, used by tests and the admin dry runs.
	DB struct {
		user    *userTable
		student *studentTable
		report  *reportTable
		txMu    sync.Mutex // serializes transactions
	}

	userTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*user.DormUser
	}

	studentTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*student.Student
	}

	reportTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*student.DailyReport
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[int]*user.DormUser)},
		student: &studentTable{table: make(map[int]*student.Student)},
		report:  &reportTable{table: make(map[int]*student.DailyReport)},
	}
	return db, nil
}

type snapshot struct {
	studentPK int
	students  map[int]student.Student
	reportPK  int
	reports   map[int]student.DailyReport
}

func (db *DB) snapshot() snapshot {
	db.student.RLock()
	db.report.RLock()
	defer db.student.RUnlock()
	defer db.report.RUnlock()

	snap := snapshot{
		studentPK: db.student.pkCount,
		students:  make(map[int]student.Student, len(db.student.table)),
		reportPK:  db.report.pkCount,
		reports:   make(map[int]student.DailyReport, len(db.report.table)),
	}
	for id, st := range db.student.table {
		snap.students[id] = *st
	}
	for id, r := range db.report.table {
		snap.reports[id] = *r
	}
	return snap
}

func (db *DB) restore(snap snapshot) {
	db.student.Lock()
	db.report.Lock()
	defer db.student.Unlock()
	defer db.report.Unlock()

	db.student.pkCount = snap.studentPK
	db.student.table = make(map[int]*student.Student, len(snap.students))
	for id, st := range snap.students {
		st := st
		db.student.table[id] = &st
	}
	db.report.pkCount = snap.reportPK
	db.report.table = make(map[int]*student.DailyReport, len(snap.reports))
	for id, r := range snap.reports {
		r := r
		db.report.table[id] = &r
	}
}
