package view

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

var fixedNow = time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC)

func entriesN(n int) []models.LogEntry {
	out := make([]models.LogEntry, n)
	for i := range out {
		out[i] = models.LogEntry{
			ID:        fmt.Sprintf("id-%d", i),
			Username:  fmt.Sprintf("user%d", i%3),
			CreatedAt: fixedNow.Add(-time.Duration(i) * time.Minute),
		}
	}
	return out
}

func newVM(entries []models.LogEntry) *ViewModel {
	return NewViewModel(func() []models.LogEntry { return entries }, Options{
		Location:       time.UTC,
		Now:            func() time.Time { return fixedNow },
		SearchDebounce: 20 * time.Millisecond,
	})
}

func TestFilterDayScenario(t *testing.T) {
	entries := []models.LogEntry{
		{ID: "today", Username: "Alice", CreatedAt: time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC)},
		{ID: "yesterday", Username: "alice", CreatedAt: time.Date(2024, 5, 14, 22, 0, 0, 0, time.UTC)},
	}

	for _, search := range []string{"", "ali", "ALICE"} {
		got := FilterEntries(entries, RangeDay, search, fixedNow, time.UTC)
		require.Len(t, got, 1, "search %q", search)
		assert.Equal(t, "today", got[0].ID)
	}
}

func TestFilterMonthAndAll(t *testing.T) {
	entries := []models.LogEntry{
		{ID: "may", Username: "bob", CreatedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "april", Username: "bob", CreatedAt: time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)},
		{ID: "bad", Username: "bob", RawCreatedAt: "nope"},
	}

	assert.Len(t, FilterEntries(entries, RangeMonth, "", fixedNow, time.UTC), 1)
	assert.Len(t, FilterEntries(entries, RangeAll, "", fixedNow, time.UTC), 3)
	assert.Len(t, FilterEntries(entries, RangeAll, "carol", fixedNow, time.UTC), 0)
}

func TestPaginate(t *testing.T) {
	entries := entriesN(12)

	assert.Len(t, Paginate(entries, 1, 5), 5)
	assert.Len(t, Paginate(entries, 3, 5), 2)
	assert.Empty(t, Paginate(entries, 4, 5))
	assert.Empty(t, Paginate(entries, 0, 5))
	assert.Len(t, Paginate(entries, 1, PageSizeAll), 12)
	assert.Equal(t, "id-5", Paginate(entries, 2, 5)[0].ID)
}

func TestTotalPagesMatchesNextNavigation(t *testing.T) {
	for _, size := range []PageSize{5, 10, 20} {
		for _, n := range []int{1, 4, 5, 6, 19, 20, 21, 47} {
			vm := newVM(entriesN(n))
			vm.SetPageSize(size)

			reachable := 1
			for vm.Next() {
				reachable++
			}
			assert.Equal(t, TotalPages(n, size), reachable, "size=%d n=%d", size, n)
			assert.Equal(t, (n+int(size)-1)/int(size), reachable)
		}
	}
}

func TestChangesResetPage(t *testing.T) {
	vm := newVM(entriesN(40))
	vm.SetPageSize(5)

	require.True(t, vm.GoToPage(3))
	vm.SetFilter(RangeMonth)
	assert.Equal(t, 1, vm.CurrentPage())

	require.True(t, vm.GoToPage(2))
	vm.SetPageSize(10)
	assert.Equal(t, 1, vm.CurrentPage())

	require.True(t, vm.GoToPage(4))
	vm.SetSearch("user1")
	assert.Equal(t, 1, vm.CurrentPage())
}

func TestUnchangedSettingsKeepPage(t *testing.T) {
	vm := newVM(entriesN(40))
	vm.SetPageSize(5)

	var changes int32
	vm.OnChange(func() { atomic.AddInt32(&changes, 1) })

	require.True(t, vm.GoToPage(3))
	vm.SetFilter(RangeAll)
	vm.SetPageSize(5)
	vm.SetSearch("")
	assert.Equal(t, 3, vm.CurrentPage())
	assert.Equal(t, int32(1), atomic.LoadInt32(&changes))

	vm.SetFilter(RangeDay)
	assert.Equal(t, 1, vm.CurrentPage())
	assert.Equal(t, int32(2), atomic.LoadInt32(&changes))
}

func TestDefaultPageSize(t *testing.T) {
	vm := newVM(entriesN(12))
	assert.Equal(t, "5", vm.Page().PageSize)
	assert.Equal(t, 3, vm.Page().TotalPages)

	size, err := ParsePageSize("")
	require.NoError(t, err)
	assert.Equal(t, PageSize(5), size)
}

func TestGoToPageOutOfRangeIsNoop(t *testing.T) {
	vm := newVM(entriesN(12))
	vm.SetPageSize(5)

	assert.False(t, vm.GoToPage(0))
	assert.False(t, vm.GoToPage(4))
	assert.Equal(t, 1, vm.CurrentPage())
	assert.False(t, vm.Prev())

	require.True(t, vm.GoToPage(3))
	assert.False(t, vm.Next())
	assert.Equal(t, 3, vm.CurrentPage())
}

func TestPageView(t *testing.T) {
	vm := newVM(entriesN(12))
	vm.SetPageSize(5)
	vm.Next()

	p := vm.Page()
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 12, p.FilteredCount)
	assert.Equal(t, "5", p.PageSize)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)
	require.Len(t, p.Entries, 5)
	assert.Equal(t, "id-5", p.Entries[0].ID)
}

func TestInputSearchIsDebounced(t *testing.T) {
	vm := newVM(entriesN(9))
	defer vm.Close()

	var changes int32
	vm.OnChange(func() { atomic.AddInt32(&changes, 1) })

	vm.InputSearch("u")
	vm.InputSearch("us")
	vm.InputSearch("user2")
	assert.Equal(t, "", vm.Search())

	assert.Eventually(t, func() bool { return vm.Search() == "user2" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&changes))
	assert.Equal(t, 3, vm.Page().FilteredCount)
}

func TestDebouncerCancel(t *testing.T) {
	var calls int32
	d := NewDebouncer(10*time.Millisecond, func(string) { atomic.AddInt32(&calls, 1) })
	d.Submit("x")
	d.Cancel()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestParsers(t *testing.T) {
	r, err := ParseTimeRange("DAY")
	require.NoError(t, err)
	assert.Equal(t, RangeDay, r)
	_, err = ParseTimeRange("week")
	assert.Error(t, err)

	size, err := ParsePageSize("all")
	require.NoError(t, err)
	assert.Equal(t, PageSizeAll, size)
	size, err = ParsePageSize("20")
	require.NoError(t, err)
	assert.Equal(t, PageSize(20), size)
	_, err = ParsePageSize("7")
	assert.Error(t, err)
}
