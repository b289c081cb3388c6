// Package connection is a Socket.IO v4 client over gorilla/websocket. The
// Manager keeps one session open and reconnects with jittered backoff.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/xltoken-dashboard/pkg/utils"
)

// EventHandler receives the arguments of one event
type EventHandler func(args []json.RawMessage)

// Recorder observes connection activity, typically for metrics
type Recorder interface {
	SetSocketConnected(connected bool)
	RecordSocketEvent(event string)
	RecordReconnect()
	RecordConnectionError(reason string)
}

// Config holds Manager settings. Zero values take the Socket.IO client
// defaults: 1s initial delay, 5s max delay, unlimited attempts.
type Config struct {
	URL               string        `json:"url"`
	Path              string        `json:"path"`
	Namespace         string        `json:"namespace"`
	DialTimeout       time.Duration `json:"dial_timeout"`
	ReconnectDelay    time.Duration `json:"reconnect_delay"`
	ReconnectDelayMax time.Duration `json:"reconnect_delay_max"`
	// ReconnectAttempts caps consecutive failed dials; 0 means unlimited.
	ReconnectAttempts int         `json:"reconnect_attempts"`
	Randomization     float64     `json:"randomization"`
	Header            http.Header `json:"-"`
	Auth              interface{} `json:"-"`
}

// Stats holds connection statistics
type Stats struct {
	URL             string    `json:"url"`
	Namespace       string    `json:"namespace"`
	SID             string    `json:"sid,omitempty"`
	Connected       bool      `json:"connected"`
	Connects        uint64    `json:"connects"`
	Reconnects      uint64    `json:"reconnects"`
	FailedDials     uint64    `json:"failed_dials"`
	EventsReceived  uint64    `json:"events_received"`
	LastConnectedAt time.Time `json:"last_connected_at,omitempty"`
	LastEventAt     time.Time `json:"last_event_at,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

// Manager owns the socket lifecycle
type Manager struct {
	config   Config
	endpoint string
	dialer   *websocket.Dialer
	logger   *logrus.Entry
	recorder Recorder

	mu       sync.RWMutex
	handlers map[string][]EventHandler
	socket   *socket
	stats    Stats
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	onState  []func(connected bool)
}

// NewManager validates cfg and creates a manager. Nothing is dialed until Start.
func NewManager(cfg Config) (*Manager, error) {
	endpoint, err := SocketURL(cfg.URL, cfg.Path)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "invalid realtime URL", err.Error())
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 20 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.ReconnectDelayMax <= 0 {
		cfg.ReconnectDelayMax = 5 * time.Second
	}
	if cfg.Randomization < 0 || cfg.Randomization >= 1 {
		cfg.Randomization = 0.5
	}

	return &Manager{
		config:   cfg,
		endpoint: endpoint,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		logger:   utils.ComponentLogger("socket").WithField("url", cfg.URL),
		handlers: make(map[string][]EventHandler),
		stats:    Stats{URL: cfg.URL, Namespace: cfg.Namespace},
	}, nil
}

// SetRecorder attaches a metrics recorder
func (m *Manager) SetRecorder(r Recorder) {
	m.mu.Lock()
	m.recorder = r
	m.mu.Unlock()
}

// On registers a handler for event. Handlers run on the read goroutine, in
// delivery order.
func (m *Manager) On(event string, h EventHandler) {
	m.mu.Lock()
	m.handlers[event] = append(m.handlers[event], h)
	m.mu.Unlock()
}

// Off removes every handler for event
func (m *Manager) Off(event string) {
	m.mu.Lock()
	delete(m.handlers, event)
	m.mu.Unlock()
}

// OnStateChange registers a callback for connect and disconnect transitions
func (m *Manager) OnStateChange(fn func(connected bool)) {
	m.mu.Lock()
	m.onState = append(m.onState, fn)
	m.mu.Unlock()
}

// Start connects in the background and keeps reconnecting until Close or
// ctx cancellation.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeConnection, "socket manager already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Close disconnects and stops reconnecting. It blocks until the background
// loop has exited.
func (m *Manager) Close() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel := m.cancel
	sock := m.socket
	done := m.done
	m.mu.Unlock()

	cancel()
	if sock != nil {
		sock.close()
	}
	<-done

	m.logger.Info("Socket manager closed")
	return nil
}

// Emit sends an event on the current session
func (m *Manager) Emit(event string, args ...interface{}) error {
	m.mu.RLock()
	sock := m.socket
	m.mu.RUnlock()

	if sock == nil {
		return utils.NewAppError(utils.ErrCodeConnection, "socket not connected")
	}
	return sock.emit(event, args...)
}

// IsConnected reports whether a namespace session is open
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats.Connected
}

// Stats returns connection statistics
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		sock, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			m.recordFailure(err)
			if m.config.ReconnectAttempts > 0 && failures >= m.config.ReconnectAttempts {
				m.logger.WithField("attempts", failures).Error("Giving up reconnecting")
				return
			}
			if !m.sleep(ctx, m.backoff(failures)) {
				return
			}
			continue
		}

		failures = 0
		m.setConnected(sock)
		err = sock.run(m.dispatch, nil)
		m.setDisconnected(err)
		sock.close()

		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrServerDisconnect) {
			m.logger.Warn("Server closed the namespace, not reconnecting")
			return
		}

		m.mu.Lock()
		m.stats.Reconnects++
		rec := m.recorder
		m.mu.Unlock()
		if rec != nil {
			rec.RecordReconnect()
		}

		if !m.sleep(ctx, m.backoff(1)) {
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context) (*socket, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.config.DialTimeout)
	defer cancel()

	m.logger.Debug("Dialing socket")
	return dialSocket(dialCtx, m.dialer, m.endpoint, m.config.Namespace, m.config.Header, m.config.Auth)
}

func (m *Manager) dispatch(p *Packet) {
	m.mu.Lock()
	m.stats.EventsReceived++
	m.stats.LastEventAt = time.Now()
	handlers := append([]EventHandler(nil), m.handlers[p.Event]...)
	rec := m.recorder
	m.mu.Unlock()

	if rec != nil {
		rec.RecordSocketEvent(p.Event)
	}
	for _, h := range handlers {
		h(p.Args)
	}
}

func (m *Manager) setConnected(sock *socket) {
	m.mu.Lock()
	m.socket = sock
	m.stats.Connected = true
	m.stats.Connects++
	m.stats.SID = sock.sid
	m.stats.LastConnectedAt = time.Now()
	m.stats.LastError = ""
	rec := m.recorder
	callbacks := append([]func(bool){}, m.onState...)
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"sid":       sock.sid,
		"namespace": m.config.Namespace,
	}).Info("Socket connected")

	if rec != nil {
		rec.SetSocketConnected(true)
	}
	for _, fn := range callbacks {
		fn(true)
	}
}

func (m *Manager) setDisconnected(err error) {
	m.mu.Lock()
	m.socket = nil
	m.stats.Connected = false
	m.stats.SID = ""
	if err != nil {
		m.stats.LastError = err.Error()
	}
	rec := m.recorder
	callbacks := append([]func(bool){}, m.onState...)
	m.mu.Unlock()

	entry := m.logger
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("Socket disconnected")

	if rec != nil {
		rec.SetSocketConnected(false)
		if err != nil && !errors.Is(err, ErrServerDisconnect) {
			rec.RecordConnectionError("read")
		}
	}
	for _, fn := range callbacks {
		fn(false)
	}
}

func (m *Manager) recordFailure(err error) {
	m.mu.Lock()
	m.stats.FailedDials++
	m.stats.LastError = err.Error()
	rec := m.recorder
	m.mu.Unlock()

	m.logger.WithError(err).Warn("Socket connection failed")
	if rec != nil {
		rec.RecordConnectionError("dial")
	}
}

// backoff returns the jittered delay before the given attempt (1-based).
func (m *Manager) backoff(attempt int) time.Duration {
	base := float64(m.config.ReconnectDelay) * math.Pow(2, float64(attempt-1))
	if r := m.config.Randomization; r > 0 {
		deviation := r * base
		if rand.Intn(2) == 0 {
			base -= rand.Float64() * deviation
		} else {
			base += rand.Float64() * deviation
		}
	}
	d := time.Duration(base)
	if d > m.config.ReconnectDelayMax {
		d = m.config.ReconnectDelayMax
	}
	return d
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
