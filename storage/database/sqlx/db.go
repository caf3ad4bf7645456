// Package sqlxrepos implements the repositories over Postgres with sqlx.
package sqlxrepos

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// asDate drops the time and location parts the driver attaches to DATE columns.
func asDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// likePattern escapes LIKE wildcards in s and wraps it for a substring match.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
