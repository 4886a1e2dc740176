// ABOUTME: Date argument handling for Garmin tools.
// ABOUTME: Absent dates mean today; present ones must be calendar dates.
package mcp

import (
	"strings"
	"time"

	"github.com/harperreed/garmin-mcp/internal/models"
)

// resolveDate returns the calendar date a tool should query. A nil d means
// today in now's location. Empty or malformed values are rejected.
func resolveDate(d *string, now time.Time) (string, error) {
	if d == nil {
		return now.Format(models.DateLayout), nil
	}
	return parseDate("date", *d)
}

// parseDate accepts YYYY-MM-DD, or an RFC 3339 timestamp truncated to its
// calendar date.
func parseDate(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", invalidInput("%s must be a date in YYYY-MM-DD format, got an empty string", field)
	}
	if t, err := time.Parse(models.DateLayout, v); err == nil {
		return t.Format(models.DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.Format(models.DateLayout), nil
	}
	return "", invalidInput("%s must be a date in YYYY-MM-DD format, got %q", field, value)
}
