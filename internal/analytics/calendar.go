package analytics

import (
	"fmt"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

// YearMonth identifies a calendar month
type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// String formats the month as YYYY-MM
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Before reports whether ym is earlier than other
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// MarshalText encodes the month as YYYY-MM
func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

// ParseYearMonth parses a YYYY-MM string
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the calendar month of t in loc
func MonthOf(t time.Time, loc *time.Location) YearMonth {
	t = t.In(location(loc))
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// DaysInMonth returns the number of days in the given month
func DaysInMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SameDay reports whether the entry falls on now's calendar date in loc.
func SameDay(entry models.LogEntry, now time.Time, loc *time.Location) bool {
	if !entry.Valid() {
		return false
	}
	loc = location(loc)
	ey, em, ed := entry.CreatedAt.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	return ey == ny && em == nm && ed == nd
}

// SameMonth reports whether the entry falls in now's calendar month in loc.
func SameMonth(entry models.LogEntry, now time.Time, loc *time.Location) bool {
	if !entry.Valid() {
		return false
	}
	return MonthOf(entry.CreatedAt, loc) == MonthOf(now, loc)
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
