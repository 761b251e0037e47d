package model

import (
	"fmt"
	"strings"
)

// ValidationError reports input that cannot be planned at all: a required
// column is missing or a row is unreadable. It aborts the run before any
// group is attempted.
type ValidationError struct {
	Missing []string // required columns not present
	Row     int      // 1-based data row, 0 when not row specific
	Column  string
	Reason  string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing required columns %s", strings.Join(e.Missing, ", "))
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, ": row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}
