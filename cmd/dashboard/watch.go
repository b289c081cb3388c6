package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/internal/view"
)

// watchAction is one parsed line of watch input
type watchAction int

const (
	actionSearch watchAction = iota
	actionNext
	actionPrev
	actionPage
	actionFilter
	actionPageSize
	actionRefresh
	actionRedraw
	actionHelp
	actionQuit
	actionInvalid
)

type watchCommand struct {
	action watchAction
	search string
	page   int
	filter view.TimeRange
	size   view.PageSize
	err    error
}

// parseWatchInput turns a line into a command. Lines starting with ':' are
// commands; anything else is search text.
func parseWatchInput(line string) watchCommand {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, ":") {
		return watchCommand{action: actionSearch, search: line}
	}

	fields := strings.Fields(strings.TrimPrefix(line, ":"))
	if len(fields) == 0 {
		return watchCommand{action: actionRedraw}
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "n", "next":
		return watchCommand{action: actionNext}
	case "p", "prev":
		return watchCommand{action: actionPrev}
	case "g", "page":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return watchCommand{action: actionInvalid, err: fmt.Errorf("invalid page %q", arg)}
		}
		return watchCommand{action: actionPage, page: n}
	case "f", "filter":
		tr, err := view.ParseTimeRange(arg)
		if err != nil {
			return watchCommand{action: actionInvalid, err: err}
		}
		return watchCommand{action: actionFilter, filter: tr}
	case "s", "size":
		size, err := view.ParsePageSize(arg)
		if err != nil {
			return watchCommand{action: actionInvalid, err: err}
		}
		return watchCommand{action: actionPageSize, size: size}
	case "c", "clear":
		return watchCommand{action: actionSearch}
	case "r", "refresh":
		return watchCommand{action: actionRefresh}
	case "h", "help":
		return watchCommand{action: actionHelp}
	case "q", "quit":
		return watchCommand{action: actionQuit}
	default:
		return watchCommand{action: actionInvalid, err: fmt.Errorf("unknown command %q", fields[0])}
	}
}

const watchHelp = `commands:
  <text>        search usernames (debounced)
  :c            clear the search
  :n / :p       next / previous page
  :g N          go to page N
  :f all|month|day
  :s 5|10|20|all
  :r            reload from the backend
  :q            quit`

// watchScreen serializes redraws from the view model, the store and input
type watchScreen struct {
	mu     sync.Mutex
	out    io.Writer
	vm     *view.ViewModel
	ticker func() string
	loc    *time.Location
}

func (s *watchScreen) draw() {
	pv := s.vm.Page()

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "today: %s\n", s.ticker())
	renderPage(s.out, pv, s.loc)
}

func (s *watchScreen) message(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

// watchCmd runs the live pipeline and an interactive table on the terminal
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live transaction table in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, err := NewApplication(cfg)
		if err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		defer app.Stop()

		if err := app.initializeRuntime(); err != nil {
			return err
		}

		filter, size, err := parseViewFlags(cfg.Analytics.DefaultFilter, cfg.Analytics.DefaultPageSize)
		if err != nil {
			return err
		}
		vm := view.NewViewModel(app.store.Entries, view.Options{
			Filter:         filter,
			PageSize:       size,
			SearchDebounce: cfg.Analytics.SearchDebounce,
			Location:       app.location,
		})
		defer vm.Close()

		screen := &watchScreen{out: cmd.OutOrStdout(), vm: vm, ticker: app.ticker.Line, loc: app.location}
		vm.OnChange(screen.draw)
		unsubscribe := app.store.Subscribe(func(_ []models.LogEntry) { screen.draw() })
		defer unsubscribe()

		if err := app.Start(); err != nil {
			return fmt.Errorf("failed to start application: %w", err)
		}
		screen.draw()
		screen.message("type :h for help")

		done := make(chan struct{})
		defer close(done)
		lines := readLines(cmd.InOrStdin(), done)

		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signalChan)

		for {
			select {
			case <-signalChan:
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if quit := applyWatchCommand(parseWatchInput(line), vm, screen, func() error {
					return app.monitor.Refresh(app.ctx)
				}); quit {
					return nil
				}
			}
		}
	},
}

// readLines scans r into the returned channel until r is exhausted or done
// is closed. The channel is closed when the reader goroutine exits.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

// applyWatchCommand executes cmd against the view model; it returns true on quit
func applyWatchCommand(cmd watchCommand, vm *view.ViewModel, screen *watchScreen, refresh func() error) bool {
	switch cmd.action {
	case actionSearch:
		vm.InputSearch(cmd.search)
	case actionNext:
		if !vm.Next() {
			screen.message("already on the last page")
		}
	case actionPrev:
		if !vm.Prev() {
			screen.message("already on the first page")
		}
	case actionPage:
		if !vm.GoToPage(cmd.page) {
			screen.message("page %d is out of range", cmd.page)
		}
	case actionFilter:
		vm.SetFilter(cmd.filter)
	case actionPageSize:
		vm.SetPageSize(cmd.size)
	case actionRefresh:
		if err := refresh(); err != nil {
			screen.message("refresh failed: %v", err)
		}
	case actionRedraw:
		screen.draw()
	case actionHelp:
		screen.message(watchHelp)
	case actionQuit:
		return true
	case actionInvalid:
		screen.message("%v", cmd.err)
	}
	return false
}
