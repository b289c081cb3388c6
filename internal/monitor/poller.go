// File: internal/monitor/poller.go
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// Poller re-runs a fetch at a fixed interval. It is the fallback used when
// the push channel is disabled.
type Poller struct {
	interval time.Duration
	fetch    func(ctx context.Context) error
	logger   *logrus.Entry

	mu           sync.RWMutex
	lastPollTime time.Time
	pollCount    uint64
	errorCount   uint64
}

// PollerStats contains poller statistics
type PollerStats struct {
	Interval     time.Duration `json:"interval"`
	PollCount    uint64        `json:"poll_count"`
	ErrorCount   uint64        `json:"error_count"`
	LastPollTime time.Time     `json:"last_poll_time"`
}

// NewPoller creates a poller calling fetch every interval
func NewPoller(interval time.Duration, fetch func(ctx context.Context) error) *Poller {
	return &Poller{
		interval: interval,
		fetch:    fetch,
		logger:   utils.ComponentLogger("poller"),
	}
}

// Run polls until ctx is done. The first poll happens after one interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.interval).Debug("Poller started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	p.pollCount++
	p.lastPollTime = time.Now()
	p.mu.Unlock()

	if err := p.fetch(ctx); err != nil && ctx.Err() == nil {
		p.mu.Lock()
		p.errorCount++
		p.mu.Unlock()
	}
}

// GetStats returns poller statistics
func (p *Poller) GetStats() PollerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PollerStats{
		Interval:     p.interval,
		PollCount:    p.pollCount,
		ErrorCount:   p.errorCount,
		LastPollTime: p.lastPollTime,
	}
}
