package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartdevs17/xltoken-dashboard/internal/config"
	"github.com/smartdevs17/xltoken-dashboard/internal/logstore"
	"github.com/smartdevs17/xltoken-dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) SaveLogEntries(ctx context.Context, entries []models.LogEntry, source string) (int, error) {
	args := m.Called(ctx, entries, source)
	return args.Int(0), args.Error(1)
}

type fakeNotifier struct {
	mu      sync.Mutex
	entries []models.LogEntry
}

func (f *fakeNotifier) Notify(_ context.Context, entry models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func at(id string, hour int) models.LogEntry {
	return models.LogEntry{ID: id, Username: "u" + id, CreatedAt: time.Date(2024, 6, 10, hour, 0, 0, 0, time.UTC)}
}

func TestLogProcessor_PrependOrdering(t *testing.T) {
	store := logstore.New()
	store.LoadInitial([]models.LogEntry{at("a", 10), at("b", 8)})

	p := NewLogProcessor(store, ProcessorConfig{})
	p.HandleEntry(at("late", 9))

	entries := store.Entries()
	require.Len(t, entries, 3)
	// prepend trusts arrival order
	assert.Equal(t, "late", entries[0].ID)
	assert.Equal(t, uint64(1), p.GetStats().Applied)
	assert.Equal(t, config.OrderingPrepend, p.GetStats().Ordering)
}

func TestLogProcessor_SortedOrdering(t *testing.T) {
	store := logstore.New()
	store.LoadInitial([]models.LogEntry{at("a", 10), at("b", 8)})

	p := NewLogProcessor(store, ProcessorConfig{Ordering: config.OrderingSorted})
	p.HandleEntry(at("late", 9))

	entries := store.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a", "late", "b"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.True(t, logstore.IsSortedDescending(entries))
}

func TestLogProcessor_ArchivesAndNotifies(t *testing.T) {
	store := logstore.New()
	archiver := &mockArchiver{}
	notifier := &fakeNotifier{}

	entry := at("x", 12)
	archiver.On("SaveLogEntries", mock.Anything, []models.LogEntry{entry}, "realtime").Return(1, nil)

	p := NewLogProcessor(store, ProcessorConfig{Workers: 2, EnableArchive: true})
	p.SetArchiver(archiver)
	p.SetNotifier(notifier)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	p.HandleEntry(entry)

	require.Eventually(t, func() bool {
		s := p.GetStats()
		return s.Archived == 1 && s.Notified == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, notifier.count())
	archiver.AssertExpectations(t)
}

func TestLogProcessor_ArchiveBatchDoesNotNotify(t *testing.T) {
	archiver := &mockArchiver{}
	notifier := &fakeNotifier{}
	batch := []models.LogEntry{at("a", 1), at("b", 2)}
	archiver.On("SaveLogEntries", mock.Anything, batch, "initial").Return(2, nil)

	p := NewLogProcessor(logstore.New(), ProcessorConfig{EnableArchive: true})
	p.SetArchiver(archiver)
	p.SetNotifier(notifier)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	p.ArchiveBatch(batch, "initial")

	require.Eventually(t, func() bool { return p.GetStats().Archived == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, notifier.count())
}

func TestLogProcessor_ArchiveError(t *testing.T) {
	archiver := &mockArchiver{}
	archiver.On("SaveLogEntries", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("disk full"))

	p := NewLogProcessor(logstore.New(), ProcessorConfig{EnableArchive: true})
	p.SetArchiver(archiver)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	p.HandleEntry(at("x", 1))

	require.Eventually(t, func() bool { return p.GetStats().ErrorCount == 1 }, 2*time.Second, 5*time.Millisecond)
	stats := p.GetStats()
	require.NotNil(t, stats.LastError)
	assert.Equal(t, "disk full", *stats.LastError)
}

func TestLogProcessor_NotRunningStillApplies(t *testing.T) {
	store := logstore.New()
	archiver := &mockArchiver{}

	p := NewLogProcessor(store, ProcessorConfig{EnableArchive: true})
	p.SetArchiver(archiver)
	p.HandleEntry(at("x", 1))

	assert.Equal(t, 1, store.Len())
	assert.Zero(t, p.GetStats().QueueLength)
	archiver.AssertNotCalled(t, "SaveLogEntries", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogProcessor_Lifecycle(t *testing.T) {
	p := NewLogProcessor(logstore.New(), ProcessorConfig{QueueSize: 10})

	assert.False(t, p.GetHealth().Healthy)
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	assert.True(t, p.IsRunning())

	health := p.GetHealth()
	assert.True(t, health.Healthy)
	assert.Equal(t, 10, health.QueueSize)

	require.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())
}

func TestNewProcessorConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Processor.Workers = 3
	cfg.Processor.QueueSize = 50
	cfg.Processor.EnableArchive = true
	cfg.Realtime.Ordering = config.OrderingSorted

	pc := NewProcessorConfig(cfg)
	assert.Equal(t, 3, pc.Workers)
	assert.Equal(t, 50, pc.QueueSize)
	assert.True(t, pc.EnableArchive)
	assert.Equal(t, config.OrderingSorted, pc.Ordering)
}
