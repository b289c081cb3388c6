package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTimestampLocation(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := timestampLocation.Load()
	SetTimestampLocation(loc)
	t.Cleanup(func() { timestampLocation.Store(prev) })
}

func TestParseTimestampZonelessUsesConfiguredZone(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	useTimestampLocation(t, wib)

	tests := []struct {
		value string
		want  time.Time
	}{
		{"2024-05-15 10:00:00", time.Date(2024, 5, 15, 3, 0, 0, 0, time.UTC)},
		{"2024-05-15T10:00:00", time.Date(2024, 5, 15, 3, 0, 0, 0, time.UTC)},
		{"2024-05-15T10:00:00.250", time.Date(2024, 5, 15, 3, 0, 0, 250e6, time.UTC)},
		{"2024-05-15", time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-05-15T10:00:00Z", time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)},
		{"2024-05-15T10:00:00+02:00", time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := ParseTimestamp(tt.value)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	assert.True(t, ParseTimestamp("yesterday").IsZero())
}

func TestLogEntryUnmarshalZonelessCreatedAt(t *testing.T) {
	useTimestampLocation(t, time.FixedZone("WIB", 7*3600))

	var e LogEntry
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"a1","username":"andi","createdAt":"2024-05-15 00:30:00"}`), &e))
	require.True(t, e.Valid())
	assert.Equal(t, "a1", e.ID)
	assert.True(t, time.Date(2024, 5, 14, 17, 30, 0, 0, time.UTC).Equal(e.CreatedAt))
	assert.Equal(t, 15, e.CreatedAt.In(time.FixedZone("WIB", 7*3600)).Day())
}
