// File: internal/notification/notification.go
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/xltoken-dashboard/internal/config"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// Event is the webhook event name for a forwarded transaction
const Event = "log:new"

// Store persists delivery records
type Store interface {
	SaveNotification(ctx context.Context, notification *models.Notification) error
	GetPendingNotifications(ctx context.Context, limit int) ([]*models.Notification, error)
}

// Recorder receives delivery metrics
type Recorder interface {
	RecordNotificationSent(channel, notificationType string, duration time.Duration)
	RecordNotificationFailure(channel, notificationType, errorType string)
}

// NotificationStats provides notification statistics
type NotificationStats struct {
	Webhooks      int        `json:"webhooks"`
	Queued        uint64     `json:"queued"`
	Sent          uint64     `json:"sent"`
	Failed        uint64     `json:"failed"`
	Dropped       uint64     `json:"dropped"`
	QueueLength   int        `json:"queue_length"`
	LastError     *string    `json:"last_error,omitempty"`
	LastErrorTime *time.Time `json:"last_error_time,omitempty"`
}

// NotificationManager forwards new log entries to the configured webhooks.
// Each (entry, webhook) pair is one Notification row, delivered by a worker
// pool.
type NotificationManager struct {
	config   *config.NotificationConfig
	logger   *logrus.Entry
	store    Store
	sender   *WebhookSender
	recorder Recorder
	hooks    map[string]config.WebhookConfig

	queue chan *models.Notification

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stats   NotificationStats
}

// NewNotificationManager creates a new notification manager. store may be nil.
func NewNotificationManager(cfg *config.NotificationConfig, store Store) (*NotificationManager, error) {
	hooks := make(map[string]config.WebhookConfig, len(cfg.Webhooks))
	for _, hook := range cfg.Webhooks {
		if err := ValidateWebhookConfig(hook); err != nil {
			return nil, err
		}
		hooks[hook.URL] = hook
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	return &NotificationManager{
		config: cfg,
		logger: utils.ComponentLogger("notification"),
		store:  store,
		sender: NewWebhookSender(cfg.Timeout, WebhookRetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryDelay,
		}),
		hooks: hooks,
		queue: make(chan *models.Notification, queueSize),
		stats: NotificationStats{Webhooks: len(hooks)},
	}, nil
}

// SetRecorder attaches a metrics recorder
func (nm *NotificationManager) SetRecorder(r Recorder) {
	nm.mu.Lock()
	nm.recorder = r
	nm.mu.Unlock()
}

// Start launches the delivery workers and requeues deliveries left pending
// by a previous run.
func (nm *NotificationManager) Start(ctx context.Context) error {
	nm.mu.Lock()
	if nm.running {
		nm.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeInternal, "Notification manager already running", "")
	}

	workers := nm.config.Workers
	if workers <= 0 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	nm.cancel = cancel
	nm.running = true
	for i := 0; i < workers; i++ {
		nm.wg.Add(1)
		go nm.worker(runCtx)
	}
	nm.mu.Unlock()

	nm.logger.WithFields(logrus.Fields{
		"workers":  workers,
		"webhooks": len(nm.hooks),
	}).Info("Notification manager started")

	nm.replayPending(ctx)
	return nil
}

// Stop stops the workers; queued deliveries stay pending in storage
func (nm *NotificationManager) Stop() error {
	nm.mu.Lock()
	if !nm.running {
		nm.mu.Unlock()
		return nil
	}
	nm.running = false
	nm.cancel()
	nm.mu.Unlock()

	nm.wg.Wait()
	nm.logger.Info("Notification manager stopped")
	return nil
}

// IsHealthy returns whether the notification manager is running
func (nm *NotificationManager) IsHealthy() bool {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return nm.running
}

// Notify queues entry for delivery to every webhook. It never blocks; when
// the queue is full the delivery is recorded as failed.
func (nm *NotificationManager) Notify(ctx context.Context, entry models.LogEntry) error {
	if !nm.IsHealthy() {
		return utils.NewAppError(utils.ErrCodeInternal, "Notification manager not running", "")
	}

	for _, hook := range nm.config.Webhooks {
		n := newNotification(entry, hook)
		nm.save(ctx, n)
		nm.enqueue(ctx, n)
	}
	return nil
}

// GetStats returns notification statistics
func (nm *NotificationManager) GetStats() NotificationStats {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	stats := nm.stats
	stats.QueueLength = len(nm.queue)
	return stats
}

func newNotification(entry models.LogEntry, hook config.WebhookConfig) *models.Notification {
	created := "unknown time"
	if entry.Valid() {
		created = entry.CreatedAt.UTC().Format(time.RFC3339)
	}

	return &models.Notification{
		ID:      utils.GenerateID(),
		Type:    models.NotificationTypeWebhook,
		EntryID: entry.ID,
		Title:   "New token transaction",
		Message: fmt.Sprintf("%s used a token at %s", entry.Username, created),
		Data: map[string]interface{}{
			"id":        entry.ID,
			"username":  entry.Username,
			"createdAt": entryTimestamp(entry),
			"webhook":   hook.Name,
		},
		Target:    hook.URL,
		Status:    models.NotificationStatusPending,
		CreatedAt: time.Now(),
	}
}

func entryTimestamp(entry models.LogEntry) string {
	if entry.Valid() {
		return entry.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return entry.RawCreatedAt
}

func (nm *NotificationManager) enqueue(ctx context.Context, n *models.Notification) {
	select {
	case nm.queue <- n:
		nm.mu.Lock()
		nm.stats.Queued++
		nm.mu.Unlock()
	default:
		nm.mu.Lock()
		nm.stats.Dropped++
		nm.mu.Unlock()

		nm.finish(ctx, n, &WebhookResponse{
			Error: utils.NewAppError(utils.ErrCodeProcessing, "Notification queue full", ""),
		})
		nm.logger.WithField("target", n.Target).Warn("Notification queue full, delivery dropped")
	}
}

func (nm *NotificationManager) worker(ctx context.Context) {
	defer nm.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-nm.queue:
			nm.deliver(ctx, n)
		}
	}
}

func (nm *NotificationManager) deliver(ctx context.Context, n *models.Notification) {
	hook, ok := nm.hooks[n.Target]
	if !ok {
		// replayed row for a webhook that is no longer configured
		hook = config.WebhookConfig{URL: n.Target, Method: "POST"}
	}

	payload := &WebhookPayload{
		ID:        n.ID,
		Event:     Event,
		Timestamp: time.Now(),
		Source:    "xltoken-dashboard",
		Type:      "transaction",
		Data:      n.Data,
		Version:   "1.0",
	}

	response := nm.sender.Send(ctx, hook, payload)
	if ctx.Err() != nil && !response.Success {
		// shutting down; leave the row pending for the next start
		return
	}
	nm.finish(ctx, n, response)
}

func (nm *NotificationManager) finish(ctx context.Context, n *models.Notification, response *WebhookResponse) {
	n.Attempts += response.Attempts

	nm.mu.Lock()
	recorder := nm.recorder
	if response.Success {
		now := time.Now()
		n.Status = models.NotificationStatusSent
		n.SentAt = &now
		n.Error = nil
		nm.stats.Sent++
	} else {
		msg := "delivery failed"
		if response.Error != nil {
			msg = response.Error.Error()
		}
		now := time.Now()
		n.Status = models.NotificationStatusFailed
		n.Error = &msg
		nm.stats.Failed++
		nm.stats.LastError = &msg
		nm.stats.LastErrorTime = &now
	}
	nm.mu.Unlock()

	if recorder != nil {
		if response.Success {
			recorder.RecordNotificationSent("webhook", Event, response.ResponseTime)
		} else {
			recorder.RecordNotificationFailure("webhook", Event, failureKind(response))
		}
	}

	logger := nm.logger.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"target":          n.Target,
		"attempts":        n.Attempts,
		"status_code":     response.StatusCode,
	})
	if response.Success {
		logger.Debug("Webhook delivered")
	} else {
		logger.WithField("error", *n.Error).Error("Webhook delivery failed")
	}

	nm.save(context.WithoutCancel(ctx), n)
}

func failureKind(response *WebhookResponse) string {
	switch {
	case response.StatusCode >= 500:
		return "server_error"
	case response.StatusCode >= 400:
		return "client_error"
	case response.StatusCode == 0 && response.Attempts == 0:
		return "queue_full"
	default:
		return "transport_error"
	}
}

func (nm *NotificationManager) save(ctx context.Context, n *models.Notification) {
	if nm.store == nil {
		return
	}
	if err := nm.store.SaveNotification(ctx, n); err != nil {
		nm.logger.WithError(err).WithField("notification_id", n.ID).Warn("Failed to record notification")
	}
}

func (nm *NotificationManager) replayPending(ctx context.Context) {
	if nm.store == nil {
		return
	}

	pending, err := nm.store.GetPendingNotifications(ctx, cap(nm.queue))
	if err != nil {
		nm.logger.WithError(err).Warn("Failed to load pending notifications")
		return
	}

	for _, n := range pending {
		nm.enqueue(ctx, n)
	}
	if len(pending) > 0 {
		nm.logger.WithField("count", len(pending)).Info("Requeued pending notifications")
	}
}
