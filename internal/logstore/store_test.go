package logstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

func entry(id string, ts string) models.LogEntry {
	t, _ := time.Parse(time.RFC3339, ts)
	return models.LogEntry{ID: id, Username: "user-" + id, CreatedAt: t}
}

func TestLoadInitialSortsDescending(t *testing.T) {
	s := New()
	s.LoadInitial([]models.LogEntry{
		entry("a", "2024-05-01T10:00:00Z"),
		entry("b", "2024-05-03T10:00:00Z"),
		{ID: "bad", Username: "x", RawCreatedAt: "not-a-date"},
		entry("c", "2024-05-02T10:00:00Z"),
	})

	got := s.Entries()
	require.Len(t, got, 4)
	assert.Equal(t, []string{"b", "c", "a", "bad"}, ids(got))
	assert.True(t, IsSortedDescending(got))
}

func TestLoadInitialReplacesContents(t *testing.T) {
	s := New()
	s.LoadInitial([]models.LogEntry{entry("a", "2024-05-01T10:00:00Z")})
	s.LoadInitial([]models.LogEntry{entry("b", "2024-05-02T10:00:00Z"), entry("c", "2024-05-03T10:00:00Z")})

	assert.Equal(t, []string{"c", "b"}, ids(s.Entries()))
}

func TestPrependPutsEntryFirstWithoutResort(t *testing.T) {
	s := New()
	s.LoadInitial([]models.LogEntry{
		entry("a", "2024-05-02T10:00:00Z"),
		entry("b", "2024-05-01T10:00:00Z"),
	})

	// an older entry delivered late still lands at index 0
	s.Prepend(entry("late", "2024-04-01T10:00:00Z"))

	got := s.Entries()
	require.Len(t, got, 3)
	assert.Equal(t, "late", got[0].ID)
	assert.False(t, IsSortedDescending(got))
}

func TestInsertKeepsOrder(t *testing.T) {
	s := New()
	s.LoadInitial([]models.LogEntry{
		entry("a", "2024-05-03T10:00:00Z"),
		entry("b", "2024-05-01T10:00:00Z"),
	})

	s.Insert(entry("mid", "2024-05-02T10:00:00Z"))
	s.Insert(entry("new", "2024-05-04T10:00:00Z"))
	s.Insert(entry("old", "2024-04-01T10:00:00Z"))
	s.Insert(entry("tie", "2024-05-03T10:00:00Z"))

	got := s.Entries()
	assert.Equal(t, []string{"new", "tie", "a", "mid", "b", "old"}, ids(got))
	assert.True(t, IsSortedDescending(got))
}

func TestEntriesReturnsCopy(t *testing.T) {
	s := New()
	s.LoadInitial([]models.LogEntry{entry("a", "2024-05-01T10:00:00Z")})

	got := s.Entries()
	got[0].ID = "mutated"

	assert.Equal(t, "a", s.Entries()[0].ID)
}

func TestSubscribe(t *testing.T) {
	s := New()
	var calls []int
	unsubscribe := s.Subscribe(func(entries []models.LogEntry) {
		calls = append(calls, len(entries))
	})

	s.LoadInitial([]models.LogEntry{entry("a", "2024-05-01T10:00:00Z")})
	s.Prepend(entry("b", "2024-05-02T10:00:00Z"))
	unsubscribe()
	s.Prepend(entry("c", "2024-05-03T10:00:00Z"))

	assert.Equal(t, []int{1, 2}, calls)
	assert.Equal(t, 3, s.Len())
}

func ids(entries []models.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestSubscribeRunsListenersInRegistrationOrder(t *testing.T) {
	s := New()
	var order []string
	first := s.Subscribe(func([]models.LogEntry) { order = append(order, "first") })
	s.Subscribe(func([]models.LogEntry) { order = append(order, "second") })
	s.Subscribe(func([]models.LogEntry) { order = append(order, "third") })

	for i := 0; i < 50; i++ {
		s.Prepend(entry("x", "2024-05-01T10:00:00Z"))
	}
	require.Len(t, order, 150)
	for i := 0; i < len(order); i += 3 {
		assert.Equal(t, []string{"first", "second", "third"}, order[i:i+3])
	}

	order = nil
	first()
	s.Prepend(entry("y", "2024-05-02T10:00:00Z"))
	assert.Equal(t, []string{"second", "third"}, order)
}
