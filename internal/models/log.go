package models

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// LogEntry is a single token-usage transaction recorded by the backend.
type LogEntry struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// RawCreatedAt keeps the backend value when it could not be parsed.
	RawCreatedAt string `json:"-" db:"raw_created_at"`
}

// Valid reports whether the entry carries a usable timestamp.
func (l LogEntry) Valid() bool {
	return !l.CreatedAt.IsZero()
}

// UnmarshalJSON accepts both "_id" and "id" and never fails on a bad
// createdAt; such entries are kept with a zero CreatedAt.
func (l *LogEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID   string          `json:"_id"`
		ID        string          `json:"id"`
		Username  string          `json:"username"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.ID = raw.ID
	if raw.MongoID != "" {
		l.ID = raw.MongoID
	}
	l.Username = raw.Username
	l.CreatedAt, l.RawCreatedAt = parseTimestamp(raw.CreatedAt)
	return nil
}

// MarshalJSON writes invalid timestamps back out as the raw backend value.
func (l LogEntry) MarshalJSON() ([]byte, error) {
	var createdAt interface{} = l.CreatedAt
	if !l.Valid() {
		createdAt = l.RawCreatedAt
	}
	return json.Marshal(struct {
		ID        string      `json:"id"`
		Username  string      `json:"username"`
		CreatedAt interface{} `json:"createdAt"`
	}{l.ID, l.Username, createdAt})
}

// LogEntryFilter for querying the archived journal
type LogEntryFilter struct {
	Username *string    `json:"username,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

// Date-only values are UTC and date-times without an offset are local wall
// time, the way a browser reads them.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000Z07:00",
		"2006-01-02",
	}
	localLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.000",
	}
)

var timestampLocation atomic.Pointer[time.Location]

// SetTimestampLocation sets the zone for timestamps that carry no offset.
// Until called, time.Local is used.
func SetTimestampLocation(loc *time.Location) {
	timestampLocation.Store(loc)
}

func localZone() *time.Location {
	if loc := timestampLocation.Load(); loc != nil {
		return loc
	}
	return time.Local
}

// ParseTimestamp parses a backend timestamp string, returning the zero time
// if none of the known layouts match.
func ParseTimestamp(value string) time.Time {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	loc := localZone()
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimestamp(raw json.RawMessage) (time.Time, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// numbers are treated as unix milliseconds, anything else is kept raw
		var ms int64
		if err := json.Unmarshal(raw, &ms); err == nil {
			return time.UnixMilli(ms).UTC(), ""
		}
		return time.Time{}, string(raw)
	}

	t := ParseTimestamp(s)
	if t.IsZero() {
		return t, s
	}
	return t, ""
}
