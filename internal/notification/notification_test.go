package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/config"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	rows    map[string]models.Notification
	pending []*models.Notification
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string]models.Notification)}
}

func (s *memoryStore) SaveNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[n.ID] = *n
	return nil
}

func (s *memoryStore) GetPendingNotifications(context.Context, int) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, nil
}

func (s *memoryStore) byStatus(status string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.rows {
		if n.Status == status {
			out = append(out, n)
		}
	}
	return out
}

type recorder struct {
	sent, failed atomic.Int32
}

func (r *recorder) RecordNotificationSent(string, string, time.Duration) { r.sent.Add(1) }
func (r *recorder) RecordNotificationFailure(string, string, string)    { r.failed.Add(1) }

func testConfig(hooks ...config.WebhookConfig) *config.NotificationConfig {
	return &config.NotificationConfig{
		Enabled:       true,
		QueueSize:     10,
		Workers:       2,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		Timeout:       2 * time.Second,
		Webhooks:      hooks,
	}
}

func startManager(t *testing.T, cfg *config.NotificationConfig, store Store) *NotificationManager {
	t.Helper()
	nm, err := NewNotificationManager(cfg, store)
	require.NoError(t, err)
	require.NoError(t, nm.Start(context.Background()))
	t.Cleanup(func() { nm.Stop() })
	return nm
}

func TestNotificationManager_DeliversSignedPayload(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
		gotAuth      string
		calls        atomic.Int32
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get(SignatureHeader)
		gotAuth = r.Header.Get("Authorization")
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	store := newMemoryStore()
	rec := &recorder{}
	nm := startManager(t, testConfig(config.WebhookConfig{
		Name:    "ops",
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Token abc"},
		Secret:  "s3cret",
	}), store)
	nm.SetRecorder(rec)

	entry := models.LogEntry{ID: "e1", Username: "alice", CreatedAt: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, nm.Notify(context.Background(), entry))

	require.Eventually(t, func() bool { return len(store.byStatus(models.NotificationStatusSent)) == 1 },
		2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "Token abc", gotAuth)
	assert.Equal(t, Sign("s3cret", gotBody), gotSignature)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, Event, payload.Event)
	data := payload.Data.(map[string]interface{})
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, "e1", data["id"])
	assert.Equal(t, "ops", data["webhook"])

	sent := store.byStatus(models.NotificationStatusSent)[0]
	assert.Equal(t, "e1", sent.EntryID)
	assert.Equal(t, 1, sent.Attempts)
	assert.NotNil(t, sent.SentAt)

	stats := nm.GetStats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, 1, stats.Webhooks)
	assert.Equal(t, int32(1), rec.sent.Load())
}

func TestNotificationManager_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := newMemoryStore()
	nm := startManager(t, testConfig(config.WebhookConfig{URL: server.URL}), store)

	require.NoError(t, nm.Notify(context.Background(), models.LogEntry{ID: "e1", Username: "bob"}))

	require.Eventually(t, func() bool { return len(store.byStatus(models.NotificationStatusSent)) == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, store.byStatus(models.NotificationStatusSent)[0].Attempts)
}

func TestNotificationManager_FailsAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newMemoryStore()
	rec := &recorder{}
	nm := startManager(t, testConfig(config.WebhookConfig{URL: server.URL}), store)
	nm.SetRecorder(rec)

	require.NoError(t, nm.Notify(context.Background(), models.LogEntry{ID: "e1"}))

	require.Eventually(t, func() bool { return len(store.byStatus(models.NotificationStatusFailed)) == 1 },
		2*time.Second, 10*time.Millisecond)

	failed := store.byStatus(models.NotificationStatusFailed)[0]
	assert.Equal(t, 3, failed.Attempts)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "status: 500")
	assert.Equal(t, uint64(1), nm.GetStats().Failed)
	assert.Equal(t, int32(1), rec.failed.Load())
}

func TestNotificationManager_ReplaysPending(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	store := newMemoryStore()
	store.pending = []*models.Notification{{
		ID:     "left-over",
		Type:   models.NotificationTypeWebhook,
		Target: server.URL,
		Status: models.NotificationStatusPending,
		Data:   map[string]interface{}{"id": "old"},
	}}

	startManager(t, testConfig(config.WebhookConfig{URL: server.URL}), store)

	require.Eventually(t, func() bool { return len(store.byStatus(models.NotificationStatusSent)) == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotificationManager_NotRunning(t *testing.T) {
	nm, err := NewNotificationManager(testConfig(), nil)
	require.NoError(t, err)
	assert.Error(t, nm.Notify(context.Background(), models.LogEntry{}))
	assert.False(t, nm.IsHealthy())
	assert.NoError(t, nm.Stop())
}

func TestNewNotificationManager_InvalidWebhook(t *testing.T) {
	_, err := NewNotificationManager(testConfig(config.WebhookConfig{Name: "bad", URL: "ftp://x"}), nil)
	assert.Error(t, err)

	_, err = NewNotificationManager(testConfig(config.WebhookConfig{Name: "empty"}), nil)
	assert.Error(t, err)
}

func TestWebhookSender_RetryDelay(t *testing.T) {
	ws := NewWebhookSender(time.Second, WebhookRetryConfig{
		MaxAttempts: 6,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
	})

	assert.Equal(t, time.Second, ws.retryDelay(2))
	assert.Equal(t, 2*time.Second, ws.retryDelay(3))
	assert.Equal(t, 4*time.Second, ws.retryDelay(4))
	assert.Equal(t, 5*time.Second, ws.retryDelay(5))
}

func TestSign(t *testing.T) {
	body := []byte("The quick brown fox jumps over the lazy dog")
	assert.Equal(t, "sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", Sign("key", body))
	assert.NotEqual(t, Sign("key", body), Sign("other", body))
}
