// Package analytics derives the chart and summary-card views from a list of
// transaction log entries. Every function is pure and never mutates its input.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

// DayBucket is one bar of the monthly histogram
type DayBucket struct {
	Day   int       `json:"day"`
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Histogram is the per-day transaction count for one month
type Histogram struct {
	Month   YearMonth   `json:"month"`
	Buckets []DayBucket `json:"buckets"`
	Max     int         `json:"max"`
	Total   int         `json:"total"`
}

// Counts returns the bucket counts as a plain slice
func (h Histogram) Counts() []int {
	out := make([]int, len(h.Buckets))
	for i, b := range h.Buckets {
		out[i] = b.Count
	}
	return out
}

// HistogramForMonth counts entries per day of the given month. The result
// always has exactly DaysInMonth(year, month) buckets. Max is at least 1 so
// callers can scale bars without dividing by zero.
func HistogramForMonth(entries []models.LogEntry, year int, month time.Month, loc *time.Location) Histogram {
	loc = location(loc)
	days := DaysInMonth(year, month)

	h := Histogram{
		Month:   YearMonth{Year: year, Month: month},
		Buckets: make([]DayBucket, days),
		Max:     1,
	}
	for i := range h.Buckets {
		h.Buckets[i] = DayBucket{
			Day:  i + 1,
			Date: time.Date(year, month, i+1, 0, 0, 0, 0, loc),
		}
	}

	for _, e := range entries {
		if !e.Valid() {
			continue
		}
		t := e.CreatedAt.In(loc)
		if t.Year() != year || t.Month() != month {
			continue
		}
		h.Buckets[t.Day()-1].Count++
		h.Total++
	}

	for _, b := range h.Buckets {
		if b.Count > h.Max {
			h.Max = b.Count
		}
	}
	return h
}

// AvailableMonths returns the current month plus every month observed in
// entries, newest first and without duplicates.
func AvailableMonths(entries []models.LogEntry, now time.Time, loc *time.Location) []YearMonth {
	seen := map[YearMonth]struct{}{MonthOf(now, loc): {}}
	for _, e := range entries {
		if e.Valid() {
			seen[MonthOf(e.CreatedAt, loc)] = struct{}{}
		}
	}

	months := make([]YearMonth, 0, len(seen))
	for ym := range seen {
		months = append(months, ym)
	}
	sort.Slice(months, func(i, j int) bool {
		return months[j].Before(months[i])
	})
	return months
}

// SumRevenue is count(entries) x pricePerTransaction. There is no per-entry
// amount; every transaction is billed at the same price.
func SumRevenue(entries []models.LogEntry, pricePerTransaction decimal.Decimal) decimal.Decimal {
	return pricePerTransaction.Mul(decimal.NewFromInt(int64(len(entries))))
}

// Today returns the entries on now's calendar date
func Today(entries []models.LogEntry, now time.Time, loc *time.Location) []models.LogEntry {
	out := make([]models.LogEntry, 0)
	for _, e := range entries {
		if SameDay(e, now, loc) {
			out = append(out, e)
		}
	}
	return out
}

// ThisMonth returns the entries in now's calendar month
func ThisMonth(entries []models.LogEntry, now time.Time, loc *time.Location) []models.LogEntry {
	out := make([]models.LogEntry, 0)
	for _, e := range entries {
		if SameMonth(e, now, loc) {
			out = append(out, e)
		}
	}
	return out
}

// StatsRange selects the slice used by the headline cards
type StatsRange string

const (
	StatsRangeMonth StatsRange = "month"
	StatsRangeAll   StatsRange = "all"
)

// projectionFactor scales the displayed revenue into the next-period estimate.
var projectionFactor = decimal.NewFromFloat(1.1)

// Summary backs the revenue and transaction cards
type Summary struct {
	Range                 StatsRange      `json:"range"`
	PricePerTransaction   decimal.Decimal `json:"price_per_transaction"`
	TotalTransactions     int             `json:"total_transactions"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	TodayTransactions     int             `json:"today_transactions"`
	TodayRevenue          decimal.Decimal `json:"today_revenue"`
	MonthTransactions     int             `json:"month_transactions"`
	MonthRevenue          decimal.Decimal `json:"month_revenue"`
	DisplayedTransactions int             `json:"displayed_transactions"`
	DisplayedRevenue      decimal.Decimal `json:"displayed_revenue"`
	DailyAverage          int             `json:"daily_average"`
	ProjectedRevenue      decimal.Decimal `json:"projected_revenue"`
	GeneratedAt           time.Time       `json:"generated_at"`
}

// Summarize computes all-time, this-month and today revenue plus the
// range-dependent headline figures.
func Summarize(entries []models.LogEntry, statsRange StatsRange, price decimal.Decimal, now time.Time, loc *time.Location) Summary {
	today := Today(entries, now, loc)
	month := ThisMonth(entries, now, loc)

	displayed := entries
	if statsRange != StatsRangeAll {
		statsRange = StatsRangeMonth
		displayed = month
	}

	displayedRevenue := SumRevenue(displayed, price)

	return Summary{
		Range:                 statsRange,
		PricePerTransaction:   price,
		TotalTransactions:     len(entries),
		TotalRevenue:          SumRevenue(entries, price),
		TodayTransactions:     len(today),
		TodayRevenue:          SumRevenue(today, price),
		MonthTransactions:     len(month),
		MonthRevenue:          SumRevenue(month, price),
		DisplayedTransactions: len(displayed),
		DisplayedRevenue:      displayedRevenue,
		DailyAverage:          dailyAverage(len(displayed), len(entries), statsRange),
		ProjectedRevenue:      displayedRevenue.Mul(projectionFactor),
		GeneratedAt:           now,
	}
}

func dailyAverage(displayed, total int, statsRange StatsRange) int {
	days := 30.0
	if statsRange == StatsRangeAll {
		days = 1
		if total > 0 {
			days = 365
		}
	}
	return int(math.Round(float64(displayed) / days))
}
