package billing

import (
	"regexp"
	"strconv"
	"time"
)

const periodLayout = "2006-01"

var periodPattern = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)

// Period is a calendar billing month.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a strict YYYY-MM period.
func ParsePeriod(value string) (Period, error) {
	match := periodPattern.FindStringSubmatch(value)
	if match == nil {
		return Period{}, &ValidationError{Field: "period", Value: value, Reason: "expected YYYY-MM with month 01-12"}
	}
	year, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the period containing t (UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// Start returns the first day of the period at UTC midnight.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period at UTC midnight.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Previous returns the calendar month before p.
func (p Period) Previous() Period {
	return PeriodOf(p.Start().AddDate(0, -1, 0))
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// String returns the YYYY-MM form.
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Start().Format(periodLayout)
}

// Compact returns the YYYYMM form used in invoice numbers.
func (p Period) Compact() string {
	return p.Start().Format("200601")
}

// DateOnly truncates t to UTC midnight.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
