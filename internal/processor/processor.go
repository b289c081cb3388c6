// File: internal/processor/processor.go
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/xltoken-dashboard/internal/config"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// Store is the in-memory list new entries are applied to
type Store interface {
	Prepend(entry models.LogEntry)
	Insert(entry models.LogEntry)
}

// Archiver journals entries
type Archiver interface {
	SaveLogEntries(ctx context.Context, entries []models.LogEntry, source string) (int, error)
}

// Notifier forwards entries to webhooks
type Notifier interface {
	Notify(ctx context.Context, entry models.LogEntry) error
}

// Recorder receives processor metrics
type Recorder interface {
	RecordLogEntries(source string, count int)
	RecordProcessorJob(job, status string)
	UpdateProcessorQueueDepth(depth int)
}

// Job names
const (
	JobArchive = "archive"
	JobNotify  = "notify"
)

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Workers        int           `json:"workers"`
	QueueSize      int           `json:"queue_size"`
	ProcessTimeout time.Duration `json:"process_timeout"`
	Ordering       string        `json:"ordering"`
	EnableArchive  bool          `json:"enable_archive"`
}

// NewProcessorConfig builds the processor settings from application config
func NewProcessorConfig(cfg *config.Config) ProcessorConfig {
	return ProcessorConfig{
		Workers:        cfg.Processor.Workers,
		QueueSize:      cfg.Processor.QueueSize,
		ProcessTimeout: cfg.Processor.ProcessTimeout,
		Ordering:       cfg.Realtime.Ordering,
		EnableArchive:  cfg.Processor.EnableArchive,
	}
}

// ProcessorStats provides processor statistics
type ProcessorStats struct {
	StartTime     time.Time  `json:"start_time"`
	IsRunning     bool       `json:"is_running"`
	Ordering      string     `json:"ordering"`
	Applied       uint64     `json:"applied"`
	Archived      uint64     `json:"archived"`
	Notified      uint64     `json:"notified"`
	Dropped       uint64     `json:"dropped"`
	ErrorCount    uint64     `json:"error_count"`
	QueueLength   int        `json:"queue_length"`
	LastError     *string    `json:"last_error,omitempty"`
	LastErrorTime *time.Time `json:"last_error_time,omitempty"`
}

// ProcessorHealth provides processor health information
type ProcessorHealth struct {
	Healthy     bool   `json:"healthy"`
	QueueLength int    `json:"queue_length"`
	QueueSize   int    `json:"queue_size"`
	Error       string `json:"error,omitempty"`
}

type job struct {
	entries []models.LogEntry
	source  string
	notify  bool
}

// LogProcessor applies pushed entries to the store and runs their follow-up
// work (journal and webhooks) on a bounded worker pool. The store update is
// synchronous so views see a push immediately; background work never
// blocks the push path.
type LogProcessor struct {
	store    Store
	archiver Archiver
	notifier Notifier
	recorder Recorder
	logger   *logrus.Entry
	config   ProcessorConfig

	queue chan job

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stats   ProcessorStats
}

// NewLogProcessor creates a processor applying entries to store
func NewLogProcessor(store Store, cfg ProcessorConfig) *LogProcessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 30 * time.Second
	}
	if cfg.Ordering == "" {
		cfg.Ordering = config.OrderingPrepend
	}

	return &LogProcessor{
		store:  store,
		logger: utils.ComponentLogger("processor"),
		config: cfg,
		queue:  make(chan job, cfg.QueueSize),
		stats:  ProcessorStats{Ordering: cfg.Ordering},
	}
}

// SetArchiver attaches the journal; nil disables archiving
func (p *LogProcessor) SetArchiver(a Archiver) {
	p.mu.Lock()
	p.archiver = a
	p.mu.Unlock()
}

// SetNotifier attaches the webhook forwarder; nil disables forwarding
func (p *LogProcessor) SetNotifier(n Notifier) {
	p.mu.Lock()
	p.notifier = n
	p.mu.Unlock()
}

// SetRecorder attaches a metrics recorder
func (p *LogProcessor) SetRecorder(r Recorder) {
	p.mu.Lock()
	p.recorder = r
	p.mu.Unlock()
}

// Start launches the worker pool
func (p *LogProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Processor already running", "")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.stats.StartTime = time.Now()

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.logger.WithFields(logrus.Fields{
		"workers":  p.config.Workers,
		"ordering": p.config.Ordering,
	}).Info("Log processor started")
	return nil
}

// Stop stops the workers. Jobs still queued are abandoned.
func (p *LogProcessor) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Log processor stopped")
	return nil
}

// IsRunning reports whether the worker pool is active
func (p *LogProcessor) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// HandleEntry applies a pushed entry to the store and queues its follow-up
// work. It has the signature of a realtime entry handler.
func (p *LogProcessor) HandleEntry(entry models.LogEntry) {
	if p.config.Ordering == config.OrderingSorted {
		p.store.Insert(entry)
	} else {
		p.store.Prepend(entry)
	}

	p.mu.Lock()
	p.stats.Applied++
	recorder := p.recorder
	p.mu.Unlock()

	if recorder != nil {
		recorder.RecordLogEntries("realtime", 1)
	}

	p.enqueue(job{entries: []models.LogEntry{entry}, source: "realtime", notify: true})
}

// ArchiveBatch queues a fetched list for the journal without forwarding it
func (p *LogProcessor) ArchiveBatch(entries []models.LogEntry, source string) {
	if len(entries) == 0 {
		return
	}
	batch := make([]models.LogEntry, len(entries))
	copy(batch, entries)
	p.enqueue(job{entries: batch, source: source})
}

func (p *LogProcessor) enqueue(j job) {
	p.mu.RLock()
	running := p.running
	wanted := (p.archiver != nil && p.config.EnableArchive) || (j.notify && p.notifier != nil)
	p.mu.RUnlock()

	if !running || !wanted {
		return
	}

	select {
	case p.queue <- j:
		p.updateQueueDepth()
	default:
		p.mu.Lock()
		p.stats.Dropped++
		p.mu.Unlock()
		p.logger.WithFields(logrus.Fields{
			"entries": len(j.entries),
			"source":  j.source,
		}).Warn("Processor queue full, dropping background work")
	}
}

func (p *LogProcessor) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.updateQueueDepth()
			p.process(ctx, j)
		}
	}
}

func (p *LogProcessor) process(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, p.config.ProcessTimeout)
	defer cancel()

	p.mu.RLock()
	archiver, notifier := p.archiver, p.notifier
	p.mu.RUnlock()

	if archiver != nil && p.config.EnableArchive {
		n, err := archiver.SaveLogEntries(ctx, j.entries, j.source)
		p.finish(JobArchive, err, func(s *ProcessorStats) { s.Archived += uint64(n) })
	}

	if j.notify && notifier != nil {
		for _, entry := range j.entries {
			err := notifier.Notify(ctx, entry)
			p.finish(JobNotify, err, func(s *ProcessorStats) { s.Notified++ })
		}
	}
}

func (p *LogProcessor) finish(name string, err error, onSuccess func(*ProcessorStats)) {
	p.mu.Lock()
	recorder := p.recorder
	status := "success"
	if err != nil {
		status = "error"
		msg := err.Error()
		now := time.Now()
		p.stats.ErrorCount++
		p.stats.LastError = &msg
		p.stats.LastErrorTime = &now
	} else {
		onSuccess(&p.stats)
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.WithError(err).WithField("job", name).Warn("Background job failed")
	}
	if recorder != nil {
		recorder.RecordProcessorJob(name, status)
	}
}

func (p *LogProcessor) updateQueueDepth() {
	p.mu.RLock()
	recorder := p.recorder
	p.mu.RUnlock()
	if recorder != nil {
		recorder.UpdateProcessorQueueDepth(len(p.queue))
	}
}

// GetStats returns processor statistics
func (p *LogProcessor) GetStats() ProcessorStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := p.stats
	stats.IsRunning = p.running
	stats.QueueLength = len(p.queue)
	return stats
}

// GetHealth reports unhealthy when stopped or the queue is nearly full
func (p *LogProcessor) GetHealth() ProcessorHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	health := ProcessorHealth{
		Healthy:     p.running,
		QueueLength: len(p.queue),
		QueueSize:   cap(p.queue),
	}
	if !p.running {
		health.Error = "processor not running"
	} else if health.QueueLength*10 >= health.QueueSize*9 {
		health.Healthy = false
		health.Error = "processor queue nearly full"
	}
	return health
}
