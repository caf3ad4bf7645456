package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/trezcool/dormportal/core"
	"github.com/trezcool/dormportal/core/student"
	"github.com/trezcool/dormportal/storage/database"
)

// PrepareDB opens the database pointed by TEST_DATABASE_URL, migrates it and empties its tables.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Ping(context.Background(), db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err = db.Exec(`TRUNCATE daily_report, student, dorm_user RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateStudent(t *testing.T, repo student.Repository, name, email string, createdAt ...time.Time) student.Student {
	tstamp := core.NowFunc()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	st, err := repo.CreateStudent(context.Background(), student.Student{
		Name:      name,
		Email:     email,
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

func CreateReport(t *testing.T, repo student.Repository, r student.DailyReport) student.DailyReport {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = core.NowFunc()
	}
	r, err := repo.CreateReport(context.Background(), r)
	if err != nil {
		t.Fatalf("CreateReport() failed: %v", err)
	}
	return r
}

// Date parses a YYYY-MM-DD date, failing the test on error.
func Date(t *testing.T, s string) time.Time {
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("Date(%q) failed: %v", s, err)
	}
	return d
}

// Logger records messages instead of printing them. It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	messages []string
}

var _ core.Logger = (*Logger)(nil) // interface compliance check

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+": "+msg)
}

// Messages returns a copy of what was logged so far.
func (l *Logger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }
