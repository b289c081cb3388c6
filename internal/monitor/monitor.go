// File: internal/monitor/monitor.go
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/xltoken-dashboard/internal/analytics"
	"github.com/smartdevs17/xltoken-dashboard/internal/logstore"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/internal/realtime"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// Fetcher loads the full transaction log from the backend
type Fetcher interface {
	GetTokenLogTransactions(ctx context.Context) ([]models.LogEntry, error)
}

// Feed is the push subscription started after the initial load
type Feed interface {
	Start(ctx context.Context) error
	Stop() error
	Stats() realtime.FeedStats
}

// Archiver receives fetched lists for the journal
type Archiver interface {
	ArchiveBatch(entries []models.LogEntry, source string)
}

// Recorder receives monitor metrics
type Recorder interface {
	RecordAPIRequest(operation, status string, duration time.Duration)
	RecordLogEntries(source string, count int)
	UpdateLogStoreSize(size int)
	UpdateTransactionCounts(today, month int)
	UpdateComponentHealth(component string, healthy bool)
}

// Modes
const (
	ModeRealtime = "realtime"
	ModePoll     = "poll"
	ModeDemo     = "demo"
	ModeManual   = "manual"
)

// MonitorConfig holds monitor configuration
type MonitorConfig struct {
	PollInterval    time.Duration  `json:"poll_interval"`
	FetchTimeout    time.Duration  `json:"fetch_timeout"`
	RealtimeEnabled bool           `json:"realtime_enabled"`
	DemoMode        bool           `json:"demo_mode"`
	DemoEntries     int            `json:"demo_entries"`
	Location        *time.Location `json:"-"`
}

// MonitorStats provides monitoring statistics
type MonitorStats struct {
	StartTime      time.Time           `json:"start_time"`
	Uptime         time.Duration       `json:"uptime"`
	IsRunning      bool                `json:"is_running"`
	Mode           string              `json:"mode"`
	StoreSize      int                 `json:"store_size"`
	TotalFetches   uint64              `json:"total_fetches"`
	FetchErrors    uint64              `json:"fetch_errors"`
	LastFetchAt    *time.Time          `json:"last_fetch_at,omitempty"`
	LastFetchCount int                 `json:"last_fetch_count"`
	LastError      *string             `json:"last_error,omitempty"`
	LastErrorTime  *time.Time          `json:"last_error_time,omitempty"`
	Feed           *realtime.FeedStats `json:"feed,omitempty"`
	Poller         *PollerStats        `json:"poller,omitempty"`
}

// HealthStatus provides health information
type HealthStatus struct {
	Healthy           bool     `json:"healthy"`
	Mode              string   `json:"mode"`
	InitialLoadDone   bool     `json:"initial_load_done"`
	ConnectionHealthy bool     `json:"connection_healthy"`
	Issues            []string `json:"issues,omitempty"`
}

// TransactionMonitor owns the dashboard session lifecycle: initial load into
// the store, then either the push feed or the poller.
type TransactionMonitor struct {
	fetcher  Fetcher
	store    *logstore.Store
	feed     Feed
	archiver Archiver
	recorder Recorder
	logger   *logrus.Entry
	config   MonitorConfig
	now      func() time.Time

	mu          sync.RWMutex
	running     bool
	mode        string
	loaded      bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	poller      *Poller
	unsubscribe func()
	stats       MonitorStats
}

// NewTransactionMonitor creates a monitor loading into store. fetcher may be
// nil in demo mode.
func NewTransactionMonitor(fetcher Fetcher, store *logstore.Store, config MonitorConfig) *TransactionMonitor {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 15 * time.Second
	}

	return &TransactionMonitor{
		fetcher: fetcher,
		store:   store,
		config:  config,
		logger:  utils.ComponentLogger("monitor"),
		now:     time.Now,
	}
}

// SetFeed attaches the push feed used when realtime is enabled
func (tm *TransactionMonitor) SetFeed(feed Feed) {
	tm.mu.Lock()
	tm.feed = feed
	tm.mu.Unlock()
}

// SetArchiver attaches the journal sink for fetched lists
func (tm *TransactionMonitor) SetArchiver(a Archiver) {
	tm.mu.Lock()
	tm.archiver = a
	tm.mu.Unlock()
}

// SetRecorder attaches a metrics recorder
func (tm *TransactionMonitor) SetRecorder(r Recorder) {
	tm.mu.Lock()
	tm.recorder = r
	tm.mu.Unlock()
}

// Start performs the initial load and begins live updates. A failed initial
// fetch is logged and leaves the store empty; it does not stop the monitor.
func (tm *TransactionMonitor) Start(ctx context.Context) error {
	tm.mu.Lock()
	if tm.running {
		tm.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeInternal, "Monitor already running", "")
	}

	runCtx, cancel := context.WithCancel(ctx)
	tm.cancel = cancel
	tm.running = true
	tm.stats.StartTime = tm.now()
	tm.unsubscribe = tm.store.Subscribe(tm.onStoreChange)
	feed := tm.feed
	tm.mu.Unlock()

	if tm.config.DemoMode {
		tm.setMode(ModeDemo)
		entries := GenerateDemoEntries(tm.config.DemoEntries, tm.now(), 1)
		tm.store.LoadInitial(entries)
		tm.afterLoad(entries, ModeDemo)
		tm.logger.WithField("entries", len(entries)).Warn("Demo mode: serving generated transactions")
		return nil
	}

	if err := tm.fetch(runCtx, "initial"); err != nil {
		tm.logger.WithError(err).Error("Initial transaction fetch failed")
	}

	switch {
	case tm.config.RealtimeEnabled && feed != nil:
		tm.setMode(ModeRealtime)
		if err := feed.Start(runCtx); err != nil {
			tm.Stop()
			return utils.NewAppError(utils.ErrCodeConnection, "Failed to start realtime feed", err.Error())
		}
	case tm.config.PollInterval > 0:
		tm.setMode(ModePoll)
		poller := NewPoller(tm.config.PollInterval, func(ctx context.Context) error {
			return tm.fetch(ctx, "poll")
		})
		tm.mu.Lock()
		tm.poller = poller
		tm.mu.Unlock()

		tm.wg.Add(1)
		go func() {
			defer tm.wg.Done()
			poller.Run(runCtx)
		}()
	default:
		tm.setMode(ModeManual)
	}

	tm.logger.WithFields(logrus.Fields{
		"mode":    tm.Mode(),
		"entries": tm.store.Len(),
	}).Info("Transaction monitor started")
	return nil
}

// Stop disconnects the feed and stops polling
func (tm *TransactionMonitor) Stop() error {
	tm.mu.Lock()
	if !tm.running {
		tm.mu.Unlock()
		return nil
	}
	tm.running = false
	tm.cancel()
	feed := tm.feed
	mode := tm.mode
	if tm.unsubscribe != nil {
		tm.unsubscribe()
		tm.unsubscribe = nil
	}
	tm.mu.Unlock()

	var err error
	if mode == ModeRealtime && feed != nil {
		err = feed.Stop()
	}
	tm.wg.Wait()

	tm.logger.Info("Transaction monitor stopped")
	return err
}

// IsRunning returns whether the monitor is running
func (tm *TransactionMonitor) IsRunning() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.running
}

// Mode returns how the store is being kept current
func (tm *TransactionMonitor) Mode() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.mode
}

// Refresh refetches the full list on demand. In demo mode it is a no-op.
func (tm *TransactionMonitor) Refresh(ctx context.Context) error {
	if tm.config.DemoMode {
		return nil
	}
	return tm.fetch(ctx, "refresh")
}

// fetch loads the backend list into the store. On failure the store keeps
// its previous contents and nothing is retried.
func (tm *TransactionMonitor) fetch(ctx context.Context, source string) error {
	if tm.fetcher == nil {
		return utils.NewAppError(utils.ErrCodeConfiguration, "No transaction source configured", "")
	}

	ctx, cancel := context.WithTimeout(ctx, tm.config.FetchTimeout)
	defer cancel()

	start := time.Now()
	entries, err := tm.fetcher.GetTokenLogTransactions(ctx)
	duration := time.Since(start)

	tm.mu.Lock()
	tm.stats.TotalFetches++
	recorder := tm.recorder
	if err != nil {
		msg := err.Error()
		now := tm.now()
		tm.stats.FetchErrors++
		tm.stats.LastError = &msg
		tm.stats.LastErrorTime = &now
	}
	tm.mu.Unlock()

	if err != nil {
		if recorder != nil {
			recorder.RecordAPIRequest("gettokenlogtransactions", "error", duration)
		}
		tm.logger.WithError(err).WithField("source", source).Warn("Failed to fetch transactions")
		return err
	}

	if recorder != nil {
		recorder.RecordAPIRequest("gettokenlogtransactions", "success", duration)
	}

	tm.store.LoadInitial(entries)
	tm.afterLoad(entries, source)

	tm.logger.WithFields(logrus.Fields{
		"source":   source,
		"entries":  len(entries),
		"duration": duration,
	}).Debug("Transactions loaded")
	return nil
}

func (tm *TransactionMonitor) afterLoad(entries []models.LogEntry, source string) {
	now := tm.now()

	tm.mu.Lock()
	tm.loaded = true
	tm.stats.LastFetchAt = &now
	tm.stats.LastFetchCount = len(entries)
	archiver, recorder := tm.archiver, tm.recorder
	tm.mu.Unlock()

	if recorder != nil {
		recorder.RecordLogEntries(source, len(entries))
	}
	if archiver != nil {
		archiver.ArchiveBatch(entries, source)
	}
}

func (tm *TransactionMonitor) onStoreChange(entries []models.LogEntry) {
	tm.mu.RLock()
	recorder := tm.recorder
	tm.mu.RUnlock()

	if recorder == nil {
		return
	}

	now := tm.now()
	recorder.UpdateLogStoreSize(len(entries))
	recorder.UpdateTransactionCounts(
		len(analytics.Today(entries, now, tm.config.Location)),
		len(analytics.ThisMonth(entries, now, tm.config.Location)),
	)
}

func (tm *TransactionMonitor) setMode(mode string) {
	tm.mu.Lock()
	tm.mode = mode
	tm.mu.Unlock()
}

// GetStats returns monitoring statistics
func (tm *TransactionMonitor) GetStats() MonitorStats {
	tm.mu.RLock()
	stats := tm.stats
	stats.IsRunning = tm.running
	stats.Mode = tm.mode
	feed, poller := tm.feed, tm.poller
	tm.mu.RUnlock()

	if stats.IsRunning {
		stats.Uptime = tm.now().Sub(stats.StartTime)
	}
	stats.StoreSize = tm.store.Len()

	if stats.Mode == ModeRealtime && feed != nil {
		fs := feed.Stats()
		stats.Feed = &fs
	}
	if poller != nil {
		ps := poller.GetStats()
		stats.Poller = &ps
	}
	return stats
}

// GetHealth reports the monitor's health and records it as a metric
func (tm *TransactionMonitor) GetHealth() HealthStatus {
	stats := tm.GetStats()

	tm.mu.RLock()
	loaded := tm.loaded
	recorder := tm.recorder
	tm.mu.RUnlock()

	health := HealthStatus{
		Healthy:           true,
		Mode:              stats.Mode,
		InitialLoadDone:   loaded,
		ConnectionHealthy: true,
	}

	if !stats.IsRunning {
		health.Healthy = false
		health.Issues = append(health.Issues, "monitor not running")
	}
	if !loaded {
		health.Healthy = false
		health.Issues = append(health.Issues, "transactions not loaded")
	}
	if stats.Feed != nil && !stats.Feed.Connected {
		health.ConnectionHealthy = false
		health.Healthy = false
		health.Issues = append(health.Issues, "realtime channel disconnected")
	}
	if stats.LastErrorTime != nil && (stats.LastFetchAt == nil || stats.LastErrorTime.After(*stats.LastFetchAt)) {
		health.Issues = append(health.Issues, "last fetch failed: "+*stats.LastError)
	}

	if recorder != nil {
		recorder.UpdateComponentHealth("monitor", health.Healthy)
		recorder.UpdateComponentHealth("realtime", health.ConnectionHealthy)
	}
	return health
}
