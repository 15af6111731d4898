package identifier

import (
	"fmt"
	"time"
)

// periodFormat is the calendar period component of a document reference,
// e.g. "2024-03".
const periodFormat = "2006-01"

// FormatReference builds the public document reference from a configured
// prefix, the registration period, and the period-scoped sequence number:
// <prefix>-<yyyy-MM>-<NNN> with the sequence zero-padded to three digits.
func FormatReference(prefix string, period time.Time, sequence int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, period.Format(periodFormat), sequence)
}

// NextSequence returns the sequence number to assign after the current
// per-period maximum. A period with no registered documents has maximum 0,
// so the first sequence is 1.
func NextSequence(currentMax int) int {
	if currentMax < 0 {
		currentMax = 0
	}
	return currentMax + 1
}

// PeriodBounds returns the half-open [start, end) interval covering the
// calendar month that t falls in. Used to scope the sequence query to a
// registration period.
func PeriodBounds(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
