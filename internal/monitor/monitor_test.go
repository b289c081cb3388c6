package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/logstore"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/smartdevs17/xltoken-dashboard/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) GetTokenLogTransactions(ctx context.Context) ([]models.LogEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]models.LogEntry)
	return entries, args.Error(1)
}

type fakeFeed struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	startErr error
}

func (f *fakeFeed) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeFeed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeFeed) Stats() realtime.FeedStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return realtime.FeedStats{Event: "log:new", Connected: f.started && !f.stopped}
}

type fakeArchiver struct {
	mu      sync.Mutex
	batches map[string]int
}

func (a *fakeArchiver) ArchiveBatch(entries []models.LogEntry, source string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.batches == nil {
		a.batches = map[string]int{}
	}
	a.batches[source] += len(entries)
}

func (a *fakeArchiver) count(source string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.batches[source]
}

type fakeRecorder struct {
	mu        sync.Mutex
	requests  map[string]int
	storeSize int
	today     int
	month     int
	health    map[string]bool
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{requests: map[string]int{}, health: map[string]bool{}}
}

func (r *fakeRecorder) RecordAPIRequest(operation, status string, _ time.Duration) {
	r.mu.Lock()
	r.requests[operation+":"+status]++
	r.mu.Unlock()
}

func (r *fakeRecorder) RecordLogEntries(string, int) {}

func (r *fakeRecorder) UpdateLogStoreSize(size int) {
	r.mu.Lock()
	r.storeSize = size
	r.mu.Unlock()
}

func (r *fakeRecorder) UpdateTransactionCounts(today, month int) {
	r.mu.Lock()
	r.today, r.month = today, month
	r.mu.Unlock()
}

func (r *fakeRecorder) UpdateComponentHealth(component string, healthy bool) {
	r.mu.Lock()
	r.health[component] = healthy
	r.mu.Unlock()
}

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func sampleEntries() []models.LogEntry {
	return []models.LogEntry{
		{ID: "1", Username: "andi", CreatedAt: fixedNow.Add(-time.Hour)},
		{ID: "2", Username: "budi", CreatedAt: fixedNow.AddDate(0, 0, -3)},
		{ID: "3", Username: "citra", CreatedAt: fixedNow.AddDate(0, -1, 0)},
	}
}

func newTestMonitor(fetcher Fetcher, store *logstore.Store, cfg MonitorConfig) *TransactionMonitor {
	tm := NewTransactionMonitor(fetcher, store, cfg)
	tm.now = func() time.Time { return fixedNow }
	return tm
}

func TestTransactionMonitor_InitialLoadAndRealtime(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("GetTokenLogTransactions", mock.Anything).Return(sampleEntries(), nil).Once()

	store := logstore.New()
	feed := &fakeFeed{}
	archiver := &fakeArchiver{}
	recorder := newFakeRecorder()

	tm := newTestMonitor(fetcher, store, MonitorConfig{RealtimeEnabled: true, Location: time.UTC})
	tm.SetFeed(feed)
	tm.SetArchiver(archiver)
	tm.SetRecorder(recorder)

	require.NoError(t, tm.Start(context.Background()))
	defer tm.Stop()

	assert.Equal(t, ModeRealtime, tm.Mode())
	assert.Equal(t, 3, store.Len())
	assert.True(t, feed.started)
	assert.Equal(t, 3, archiver.count("initial"))

	recorder.mu.Lock()
	assert.Equal(t, 1, recorder.requests["gettokenlogtransactions:success"])
	assert.Equal(t, 3, recorder.storeSize)
	assert.Equal(t, 1, recorder.today)
	assert.Equal(t, 2, recorder.month)
	recorder.mu.Unlock()

	stats := tm.GetStats()
	assert.True(t, stats.IsRunning)
	assert.Equal(t, uint64(1), stats.TotalFetches)
	assert.Equal(t, 3, stats.LastFetchCount)
	require.NotNil(t, stats.Feed)
	assert.True(t, stats.Feed.Connected)

	health := tm.GetHealth()
	assert.True(t, health.Healthy)
	assert.Empty(t, health.Issues)
	assert.True(t, recorder.health["monitor"])

	require.NoError(t, tm.Stop())
	assert.True(t, feed.stopped)
	assert.False(t, tm.IsRunning())
	fetcher.AssertExpectations(t)
}

func TestTransactionMonitor_InitialFetchFailureKeepsStore(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("GetTokenLogTransactions", mock.Anything).Return(nil, errors.New("network down"))

	store := logstore.New()
	previous := sampleEntries()[:1]
	store.LoadInitial(previous)

	tm := newTestMonitor(fetcher, store, MonitorConfig{})
	require.NoError(t, tm.Start(context.Background()))
	defer tm.Stop()

	assert.Equal(t, ModeManual, tm.Mode())
	assert.Equal(t, previous, store.Entries())

	stats := tm.GetStats()
	assert.Equal(t, uint64(1), stats.FetchErrors)
	require.NotNil(t, stats.LastError)
	assert.Equal(t, "network down", *stats.LastError)

	health := tm.GetHealth()
	assert.False(t, health.Healthy)
	assert.Contains(t, health.Issues, "transactions not loaded")

	assert.Error(t, tm.Refresh(context.Background()))
}

func TestTransactionMonitor_DemoMode(t *testing.T) {
	store := logstore.New()
	tm := newTestMonitor(nil, store, MonitorConfig{DemoMode: true, DemoEntries: 25})

	require.NoError(t, tm.Start(context.Background()))
	defer tm.Stop()

	assert.Equal(t, ModeDemo, tm.Mode())
	assert.Equal(t, 25, store.Len())
	assert.True(t, logstore.IsSortedDescending(store.Entries()))
	assert.NoError(t, tm.Refresh(context.Background()))
}

func TestTransactionMonitor_FeedStartFailure(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("GetTokenLogTransactions", mock.Anything).Return(sampleEntries(), nil)

	tm := newTestMonitor(fetcher, logstore.New(), MonitorConfig{RealtimeEnabled: true})
	tm.SetFeed(&fakeFeed{startErr: errors.New("refused")})

	err := tm.Start(context.Background())
	require.Error(t, err)
	assert.False(t, tm.IsRunning())
}

func TestTransactionMonitor_PollerRefreshes(t *testing.T) {
	fetcher := &mockFetcher{}
	fetcher.On("GetTokenLogTransactions", mock.Anything).Return(sampleEntries()[:1], nil).Once()
	fetcher.On("GetTokenLogTransactions", mock.Anything).Return(sampleEntries(), nil)

	store := logstore.New()
	tm := newTestMonitor(fetcher, store, MonitorConfig{PollInterval: 10 * time.Millisecond})

	require.NoError(t, tm.Start(context.Background()))
	assert.Equal(t, ModePoll, tm.Mode())

	require.Eventually(t, func() bool { return store.Len() == 3 }, 2*time.Second, 5*time.Millisecond)

	stats := tm.GetStats()
	require.NotNil(t, stats.Poller)
	assert.GreaterOrEqual(t, stats.Poller.PollCount, uint64(1))
	assert.GreaterOrEqual(t, stats.TotalFetches, uint64(2))

	require.NoError(t, tm.Stop())
	assert.NoError(t, tm.Stop())
}

func TestTransactionMonitor_StartTwice(t *testing.T) {
	tm := newTestMonitor(nil, logstore.New(), MonitorConfig{DemoMode: true, DemoEntries: 1})
	require.NoError(t, tm.Start(context.Background()))
	defer tm.Stop()
	assert.Error(t, tm.Start(context.Background()))
}

func TestGenerateDemoEntries(t *testing.T) {
	a := GenerateDemoEntries(30, fixedNow, 7)
	b := GenerateDemoEntries(30, fixedNow, 7)
	require.Len(t, a, 30)
	assert.Equal(t, a, b)
	assert.Nil(t, GenerateDemoEntries(0, fixedNow, 7))

	today := 0
	for _, e := range a {
		assert.True(t, e.Valid())
		assert.False(t, e.CreatedAt.After(fixedNow))
		if e.CreatedAt.Year() == 2024 && e.CreatedAt.YearDay() == fixedNow.YearDay() {
			today++
		}
	}
	assert.GreaterOrEqual(t, today, 3)
}
