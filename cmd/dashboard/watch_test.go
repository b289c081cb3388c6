package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/internal/view"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func sampleEntries(n int) []models.LogEntry {
	entries := make([]models.LogEntry, n)
	for i := range entries {
		entries[i] = models.LogEntry{
			ID:        fmt.Sprintf("id-%02d", i),
			Username:  fmt.Sprintf("user%02d", i),
			CreatedAt: fixedNow.Add(-time.Duration(i) * time.Minute),
		}
	}
	return entries
}

func TestParseWatchInput(t *testing.T) {
	tests := []struct {
		line string
		want watchCommand
	}{
		{"andi", watchCommand{action: actionSearch, search: "andi"}},
		{"", watchCommand{action: actionSearch}},
		{":c", watchCommand{action: actionSearch}},
		{":n", watchCommand{action: actionNext}},
		{":prev", watchCommand{action: actionPrev}},
		{":g 3", watchCommand{action: actionPage, page: 3}},
		{":f day", watchCommand{action: actionFilter, filter: view.RangeDay}},
		{":filter MONTH", watchCommand{action: actionFilter, filter: view.RangeMonth}},
		{":s all", watchCommand{action: actionPageSize, size: view.PageSizeAll}},
		{":s 20", watchCommand{action: actionPageSize, size: 20}},
		{":r", watchCommand{action: actionRefresh}},
		{":", watchCommand{action: actionRedraw}},
		{":q\r\n", watchCommand{action: actionQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, parseWatchInput(tt.line))
		})
	}
}

func TestParseWatchInputInvalid(t *testing.T) {
	for _, line := range []string{":g", ":g 0", ":g x", ":f week", ":s 7", ":zzz"} {
		cmd := parseWatchInput(line)
		assert.Equal(t, actionInvalid, cmd.action, line)
		assert.Error(t, cmd.err, line)
	}
}

func newTestScreen(entries []models.LogEntry, size view.PageSize) (*watchScreen, *bytes.Buffer) {
	vm := view.NewViewModel(func() []models.LogEntry { return entries }, view.Options{
		PageSize: size,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	})
	var buf bytes.Buffer
	return &watchScreen{out: &buf, vm: vm, ticker: func() string { return "no transactions today" }, loc: time.UTC}, &buf
}

func TestApplyWatchCommandPaging(t *testing.T) {
	screen, buf := newTestScreen(sampleEntries(12), 5)
	defer screen.vm.Close()
	screen.vm.OnChange(screen.draw)

	noRefresh := func() error { return nil }

	assert.False(t, applyWatchCommand(parseWatchInput(":n"), screen.vm, screen, noRefresh))
	assert.Equal(t, 2, screen.vm.CurrentPage())
	assert.Contains(t, buf.String(), "page 2/3")

	applyWatchCommand(parseWatchInput(":g 3"), screen.vm, screen, noRefresh)
	assert.Equal(t, 3, screen.vm.CurrentPage())

	buf.Reset()
	applyWatchCommand(parseWatchInput(":n"), screen.vm, screen, noRefresh)
	assert.Equal(t, 3, screen.vm.CurrentPage())
	assert.Contains(t, buf.String(), "already on the last page")

	applyWatchCommand(parseWatchInput(":s 10"), screen.vm, screen, noRefresh)
	assert.Equal(t, 1, screen.vm.CurrentPage())

	buf.Reset()
	applyWatchCommand(parseWatchInput(":g 9"), screen.vm, screen, noRefresh)
	assert.Contains(t, buf.String(), "page 9 is out of range")
}

func TestApplyWatchCommandFilterRefreshQuit(t *testing.T) {
	entries := sampleEntries(3)
	entries = append(entries, models.LogEntry{ID: "old", Username: "old", CreatedAt: fixedNow.AddDate(0, -2, 0)})
	screen, buf := newTestScreen(entries, 10)
	defer screen.vm.Close()

	applyWatchCommand(parseWatchInput(":f month"), screen.vm, screen, nil)
	assert.Equal(t, 3, screen.vm.Page().FilteredCount)

	refreshed := false
	applyWatchCommand(parseWatchInput(":r"), screen.vm, screen, func() error {
		refreshed = true
		return errors.New("backend down")
	})
	assert.True(t, refreshed)
	assert.Contains(t, buf.String(), "refresh failed: backend down")

	buf.Reset()
	applyWatchCommand(parseWatchInput(":bogus"), screen.vm, screen, nil)
	assert.Contains(t, buf.String(), `unknown command "bogus"`)

	assert.True(t, applyWatchCommand(parseWatchInput(":q"), screen.vm, screen, nil))
}

func TestWatchScreenDraw(t *testing.T) {
	screen, buf := newTestScreen(sampleEntries(2), 10)
	defer screen.vm.Close()

	screen.draw()
	out := buf.String()
	require.Contains(t, out, "today: no transactions today")
	assert.Contains(t, out, "user00")
	assert.Contains(t, out, "user01")
	assert.Contains(t, out, "page 1/1  filter=all size=10")
}

func TestReadLinesStopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	lines := readLines(strings.NewReader("andi\n:n\n:q\n"), done)

	assert.Equal(t, "andi", <-lines)
	close(done)

	// the reader closes the channel instead of blocking on a send
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-lines:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestReadLinesClosesAtEOF(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	var got []string
	for line := range readLines(strings.NewReader("a\nb\n"), done) {
		got = append(got, line)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}
