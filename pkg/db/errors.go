package db

import "strings"

// IsUniqueViolation reports whether err is a duplicate-key failure. Passing a
// constraintName narrows the check to that index. Matching on the message
// text keeps the helper working under both the postgres and sqlite drivers,
// which surface the conflict with different error types.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
