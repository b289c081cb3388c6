// Package realtime bridges the backend push channel to the log store and
// derives the same-day ticker from it.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/xltoken-dashboard/internal/connection"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// DefaultEvent is the push event carrying one new log entry
const DefaultEvent = "log:new"

// Transport is the push connection the feed listens on
type Transport interface {
	On(event string, h connection.EventHandler)
	Off(event string)
	Start(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EntryHandler consumes one decoded entry
type EntryHandler func(entry models.LogEntry)

// FeedStats holds feed counters
type FeedStats struct {
	Event     string `json:"event"`
	Connected bool   `json:"connected"`
	Received  uint64 `json:"received"`
	Dropped   uint64 `json:"dropped"`
}

// Feed subscribes to the push event and hands each entry to the handler,
// synchronously and in delivery order.
type Feed struct {
	transport Transport
	event     string
	handler   EntryHandler
	logger    *logrus.Entry

	mu       sync.Mutex
	started  bool
	received uint64
	dropped  uint64
}

// NewFeed creates a feed for event ("" means log:new)
func NewFeed(transport Transport, event string, handler EntryHandler) *Feed {
	if event == "" {
		event = DefaultEvent
	}
	return &Feed{
		transport: transport,
		event:     event,
		handler:   handler,
		logger:    utils.ComponentLogger("realtime_feed").WithField("event", event),
	}
}

// Start subscribes and connects. Reconnection is left to the transport.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return nil
	}
	f.transport.On(f.event, f.onEvent)
	if err := f.transport.Start(ctx); err != nil {
		f.transport.Off(f.event)
		return err
	}
	f.started = true
	f.logger.Info("Realtime feed started")
	return nil
}

// Stop unsubscribes and disconnects
func (f *Feed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started {
		return nil
	}
	f.started = false
	f.transport.Off(f.event)
	if err := f.transport.Close(); err != nil {
		return err
	}
	f.logger.Info("Realtime feed stopped")
	return nil
}

// Stats returns feed counters
func (f *Feed) Stats() FeedStats {
	return FeedStats{
		Event:     f.event,
		Connected: f.transport.IsConnected(),
		Received:  atomic.LoadUint64(&f.received),
		Dropped:   atomic.LoadUint64(&f.dropped),
	}
}

func (f *Feed) onEvent(args []json.RawMessage) {
	if len(args) == 0 {
		atomic.AddUint64(&f.dropped, 1)
		f.logger.Warn("Push event without payload")
		return
	}

	var entry models.LogEntry
	if err := json.Unmarshal(args[0], &entry); err != nil {
		atomic.AddUint64(&f.dropped, 1)
		f.logger.WithError(err).Warn("Malformed push payload")
		return
	}

	atomic.AddUint64(&f.received, 1)
	f.logger.WithFields(logrus.Fields{
		"id":       entry.ID,
		"username": entry.Username,
	}).Debug("New log entry pushed")

	f.handler(entry)
}
