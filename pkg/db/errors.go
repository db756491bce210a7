package db

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error is a unique constraint
// violation. When constraintName is provided, the violated constraint must
// match. Falls back to message inspection for drivers that do not expose
// structured errors (tests run against SQLite).
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pqErr.Constraint == constraintName
	}

	// SQLite reports "UNIQUE constraint failed: <table>.<column>" without the
	// index name, so a generic duplicate marker counts as a match even when a
	// constraint name was requested.
	msg := err.Error()
	if strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	return constraintName != "" && strings.Contains(msg, constraintName)
}
