package sequence

import (
	"context"
	"fmt"
	"time"
)

// Allocator hands out gapless-enough counters scoped to a period key.
// Values start at 1 and only ever grow; a value is never reissued for
// the same period even when the caller's surrounding work is retried.
type Allocator interface {
	Next(ctx context.Context, period string) (int64, error)
}

// AdmissionPeriod keys the counter behind admission numbers. Admissions
// restart at 1 every calendar year.
func AdmissionPeriod(t time.Time) string {
	return fmt.Sprintf("ADM:%04d", t.Year())
}

// RoundPeriod keys the counter behind ward round numbers, which restart
// daily.
func RoundPeriod(t time.Time) string {
	return fmt.Sprintf("RND:%s", t.Format("20060102"))
}

// FormatAdmissionNumber renders the human-facing admission number, e.g.
// the first admission of 2024 is A2024000001.
func FormatAdmissionNumber(year int, n int64) string {
	return fmt.Sprintf("A%04d%06d", year, n)
}

// FormatRoundNumber renders a ward round number, e.g. R202408300001.
func FormatRoundNumber(day time.Time, n int64) string {
	return fmt.Sprintf("R%s%04d", day.Format("20060102"), n)
}
