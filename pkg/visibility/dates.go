package visibility

import (
	"time"
)

const (
	dateLayout    = "2006-01-02"
	midnightInUTC = "T00:00:00.000Z"
)

// normalizeDateLiteral turns a strict YYYY-MM-DD literal into the ISO instant
// at midnight UTC, which is how date fields store their values.
// Anything else is returned unchanged.
func normalizeDateLiteral(v any) any {
	s, ok := v.(string)
	if !ok || !isDate(s) {
		return v
	}
	return s + midnightInUTC
}

// isDate reports whether s is exactly a calendar date in YYYY-MM-DD form.
func isDate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
