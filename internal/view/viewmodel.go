package view

import (
	"sync"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/models"
)

// DefaultSearchDebounce is the quiet period between keystrokes and filtering
const DefaultSearchDebounce = 300 * time.Millisecond

// Source supplies the current log entries, newest first
type Source func() []models.LogEntry

// PageView is one rendered page of the table
type PageView struct {
	Entries       []models.LogEntry `json:"entries"`
	Page          int               `json:"page"`
	TotalPages    int               `json:"total_pages"`
	FilteredCount int               `json:"filtered_count"`
	TotalCount    int               `json:"total_count"`
	Filter        TimeRange         `json:"filter"`
	PageSize      string            `json:"page_size"`
	Search        string            `json:"search"`
	HasNext       bool              `json:"has_next"`
	HasPrev       bool              `json:"has_prev"`
}

// Options configures a ViewModel
type Options struct {
	Filter         TimeRange
	PageSize       PageSize
	SearchDebounce time.Duration
	Location       *time.Location
	Now            func() time.Time
}

// ViewModel tracks the user's filter, search, page size and current page.
// "now" is evaluated on every render, not frozen at construction.
type ViewModel struct {
	mu       sync.Mutex
	source   Source
	filter   TimeRange
	pageSize PageSize
	search   string
	page     int
	loc      *time.Location
	now      func() time.Time

	debouncer *Debouncer
	onChange  func()
}

// NewViewModel creates a view model over source
func NewViewModel(source Source, opts Options) *ViewModel {
	if opts.Filter == "" {
		opts.Filter = RangeAll
	}
	if opts.PageSize == 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DefaultSearchDebounce
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	vm := &ViewModel{
		source:   source,
		filter:   opts.Filter,
		pageSize: opts.PageSize,
		page:     1,
		loc:      opts.Location,
		now:      opts.Now,
	}
	vm.debouncer = NewDebouncer(opts.SearchDebounce, vm.SetSearch)
	return vm
}

// OnChange registers a callback run after any state change
func (vm *ViewModel) OnChange(fn func()) {
	vm.mu.Lock()
	vm.onChange = fn
	vm.mu.Unlock()
}

// SetFilter changes the time range and returns to page 1. Re-selecting the
// current range changes nothing.
func (vm *ViewModel) SetFilter(r TimeRange) {
	vm.update(func() bool {
		if vm.filter == r {
			return false
		}
		vm.filter = r
		vm.page = 1
		return true
	})
}

// SetPageSize changes the page size and returns to page 1
func (vm *ViewModel) SetPageSize(size PageSize) {
	vm.update(func() bool {
		if vm.pageSize == size {
			return false
		}
		vm.pageSize = size
		vm.page = 1
		return true
	})
}

// SetSearch applies a search term immediately and returns to page 1
func (vm *ViewModel) SetSearch(term string) {
	vm.update(func() bool {
		if vm.search == term {
			return false
		}
		vm.search = term
		vm.page = 1
		return true
	})
}

// InputSearch feeds a raw keystroke value; it is applied once input has been
// quiet for the debounce interval.
func (vm *ViewModel) InputSearch(raw string) {
	vm.debouncer.Submit(raw)
}

// GoToPage moves to page n. It is a no-op returning false outside
// [1, totalPages].
func (vm *ViewModel) GoToPage(n int) bool {
	vm.mu.Lock()
	total := TotalPages(len(vm.filtered()), vm.pageSize)
	if n < 1 || n > total || n == vm.page {
		ok := n >= 1 && n <= total
		vm.mu.Unlock()
		return ok
	}
	vm.page = n
	cb := vm.onChange
	vm.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

// Next advances one page if possible
func (vm *ViewModel) Next() bool {
	return vm.GoToPage(vm.CurrentPage() + 1)
}

// Prev goes back one page if possible
func (vm *ViewModel) Prev() bool {
	return vm.GoToPage(vm.CurrentPage() - 1)
}

// CurrentPage returns the 1-based page number
func (vm *ViewModel) CurrentPage() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.page
}

// Search returns the applied (debounced) search term
func (vm *ViewModel) Search() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.search
}

// Page renders the current page
func (vm *ViewModel) Page() PageView {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	return Render(vm.source(), vm.filter, vm.search, vm.pageSize, vm.page, vm.now(), vm.loc)
}

// Close cancels any pending debounced search
func (vm *ViewModel) Close() {
	vm.debouncer.Cancel()
}

// update applies fn and runs the change callback if fn reports a change
func (vm *ViewModel) update(fn func() bool) {
	vm.mu.Lock()
	changed := fn()
	cb := vm.onChange
	vm.mu.Unlock()

	if changed && cb != nil {
		cb()
	}
}

func (vm *ViewModel) filtered() []models.LogEntry {
	return FilterEntries(vm.source(), vm.filter, vm.search, vm.now(), vm.loc)
}

// Render computes a single page without keeping state, for request-scoped
// callers such as the HTTP API.
func Render(entries []models.LogEntry, filter TimeRange, search string, size PageSize, page int, now time.Time, loc *time.Location) PageView {
	if page < 1 {
		page = 1
	}
	filtered := FilterEntries(entries, filter, search, now, loc)
	total := TotalPages(len(filtered), size)
	return PageView{
		Entries:       Paginate(filtered, page, size),
		Page:          page,
		TotalPages:    total,
		FilteredCount: len(filtered),
		TotalCount:    len(entries),
		Filter:        filter,
		PageSize:      size.String(),
		Search:        search,
		HasNext:       page < total,
		HasPrev:       page > 1,
	}
}
