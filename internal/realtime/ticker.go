package realtime

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartdevs17/xltoken-dashboard/internal/analytics"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

// TodayEntries returns the entries on now's calendar date, order preserved.
func TodayEntries(entries []models.LogEntry, now time.Time, loc *time.Location) []models.LogEntry {
	return analytics.Today(entries, now, loc)
}

// Duration is the marquee loop time for n items: four seconds per item,
// never under fifteen.
func Duration(n int) time.Duration {
	secs := n * 4
	if secs < 15 {
		secs = 15
	}
	return time.Duration(secs) * time.Second
}

// TickerSnapshot is the ticker's current content
type TickerSnapshot struct {
	Entries         []models.LogEntry `json:"entries"`
	Count           int               `json:"count"`
	DurationSeconds int               `json:"duration_seconds"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// TickerView recomputes today's entries on every store change.
type TickerView struct {
	mu       sync.RWMutex
	snapshot TickerSnapshot
	loc      *time.Location
	now      func() time.Time

	price  decimal.Decimal
	symbol string
}

// NewTickerView creates a ticker; loc nil means local time
func NewTickerView(loc *time.Location, now func() time.Time) *TickerView {
	if now == nil {
		now = time.Now
	}
	return &TickerView{loc: loc, now: now, snapshot: TickerSnapshot{Entries: []models.LogEntry{}, DurationSeconds: 15}}
}

// SetPrice makes Line show a "+<amount>" chip per item. A zero price hides it.
func (tv *TickerView) SetPrice(price decimal.Decimal, symbol string) {
	tv.mu.Lock()
	tv.price = price
	tv.symbol = symbol
	tv.mu.Unlock()
}

// Update is a logstore listener
func (tv *TickerView) Update(entries []models.LogEntry) {
	now := tv.now()
	today := TodayEntries(entries, now, tv.loc)

	tv.mu.Lock()
	tv.snapshot = TickerSnapshot{
		Entries:         today,
		Count:           len(today),
		DurationSeconds: int(Duration(len(today)) / time.Second),
		UpdatedAt:       now,
	}
	tv.mu.Unlock()
}

// Snapshot returns the current ticker content
func (tv *TickerView) Snapshot() TickerSnapshot {
	tv.mu.RLock()
	defer tv.mu.RUnlock()
	return tv.snapshot
}

// Line renders the ticker as a single marquee line
func (tv *TickerView) Line() string {
	tv.mu.RLock()
	snap, price, symbol := tv.snapshot, tv.price, tv.symbol
	tv.mu.RUnlock()
	if snap.Count == 0 {
		return "no transactions today"
	}

	chip := ""
	if price.IsPositive() {
		chip = " +" + analytics.FormatCurrency(price, symbol)
	}
	parts := make([]string, 0, snap.Count)
	for _, e := range snap.Entries {
		parts = append(parts, e.Username+" @ "+e.CreatedAt.In(location(tv.loc)).Format("15:04:05")+chip)
	}
	return strings.Join(parts, "  •  ")
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
