// Package view derives the filtered, searched and paginated slice of the
// transaction log that the dashboard table displays.
package view

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/analytics"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

// TimeRange restricts entries by calendar period relative to now
type TimeRange string

const (
	RangeAll   TimeRange = "all"
	RangeMonth TimeRange = "month"
	RangeDay   TimeRange = "day"
)

// ParseTimeRange parses a filter name; empty means all.
func ParseTimeRange(s string) (TimeRange, error) {
	switch r := TimeRange(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeMonth, RangeDay:
		return r, nil
	default:
		return "", fmt.Errorf("invalid filter %q (expected all, month or day)", s)
	}
}

// PageSize is the number of rows per page. PageSizeAll shows everything.
type PageSize int

const (
	PageSizeAll PageSize = -1
)

// PageSizes lists the selectable sizes
var PageSizes = []PageSize{5, 10, 20, PageSizeAll}

// DefaultPageSize is used until the user picks another
const DefaultPageSize PageSize = 5

func (p PageSize) String() string {
	if p <= 0 {
		return "all"
	}
	return strconv.Itoa(int(p))
}

// ParsePageSize accepts 5, 10, 20 or "all"
func ParsePageSize(s string) (PageSize, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPageSize, nil
	}
	if s == "all" {
		return PageSizeAll, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid page size %q", s)
	}
	for _, p := range PageSizes {
		if p != PageSizeAll && int(p) == n {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unsupported page size %d (expected 5, 10, 20 or all)", n)
}

// FilterEntries applies the time range and then a case-insensitive username
// substring match. An empty search matches everything. Order is preserved.
func FilterEntries(entries []models.LogEntry, timeRange TimeRange, search string, now time.Time, loc *time.Location) []models.LogEntry {
	needle := strings.ToLower(search)
	out := make([]models.LogEntry, 0, len(entries))

	for _, e := range entries {
		switch timeRange {
		case RangeMonth:
			if !analytics.SameMonth(e, now, loc) {
				continue
			}
		case RangeDay:
			if !analytics.SameDay(e, now, loc) {
				continue
			}
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Username), needle) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// TotalPages is ceil(count/size), or 1 when every row fits on one page.
func TotalPages(count int, size PageSize) int {
	if size <= 0 {
		return 1
	}
	return (count + int(size) - 1) / int(size)
}

// Paginate returns the window [(page-1)*size, page*size) of entries.
// Out-of-range pages yield an empty slice.
func Paginate(entries []models.LogEntry, page int, size PageSize) []models.LogEntry {
	if size <= 0 {
		return entries
	}
	if page < 1 {
		return []models.LogEntry{}
	}
	start := (page - 1) * int(size)
	if start >= len(entries) {
		return []models.LogEntry{}
	}
	end := start + int(size)
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}
