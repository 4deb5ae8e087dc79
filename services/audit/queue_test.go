package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/Zaramlt59/TMS-sub001/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errStoreDown = errors.New("store unavailable")

type fakeWriter struct {
	mu        sync.Mutex
	entries   []*Entry
	attempts  int
	failFirst int
	alwaysErr bool
	gate      chan struct{}
}

func (w *fakeWriter) Insert(ctx context.Context, entry *Entry) error {
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.attempts++
	if w.alwaysErr || w.attempts <= w.failFirst {
		return errStoreDown
	}
	w.entries = append(w.entries, entry)
	return nil
}

func (w *fakeWriter) persisted() []*Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Entry(nil), w.entries...)
}

func (w *fakeWriter) attemptCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

func queueConfig() config.AuditConfig {
	return testutils.GetTestConfig().Audit
}

func newEntry(action Action, n int) *Entry {
	return &Entry{UserID: uint(n + 1), Action: action, ResourceType: "school", ResourceID: fmt.Sprint(n)}
}

func flush(t *testing.T, q *Queue) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))
}

func TestQueue_PersistsAllEntries(t *testing.T) {
	writer := &fakeWriter{}
	q := NewQueue(writer, queueConfig(), nil)

	for i := 0; i < 25; i++ {
		require.True(t, q.Enqueue(newEntry(ActionView, i), false))
	}
	flush(t, q)

	assert.Len(t, writer.persisted(), 25)
	stats := q.Stats()
	assert.Equal(t, int64(25), stats.Enqueued)
	assert.Equal(t, int64(25), stats.Persisted)
	assert.Zero(t, stats.Dropped)
	assert.Zero(t, stats.Depth)
	assert.False(t, stats.Processing)
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	writer := &fakeWriter{failFirst: 3}
	cfg := queueConfig()
	cfg.MaxRetries = 3
	q := NewQueue(writer, cfg, nil)

	require.True(t, q.Enqueue(newEntry(ActionLogin, 1), true))
	flush(t, q)

	assert.Len(t, writer.persisted(), 1)
	assert.Equal(t, 4, writer.attemptCount())
	assert.Equal(t, int64(3), q.Stats().Retried)
	assert.Zero(t, q.Stats().Dropped)
}

func TestQueue_DropsAfterMaxRetries(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	writer := &fakeWriter{alwaysErr: true}
	cfg := queueConfig()
	cfg.MaxRetries = 3
	q := NewQueue(writer, cfg, logging.NewFromZap(zap.New(core)))

	require.True(t, q.Enqueue(newEntry(ActionLogin, 1), true))
	flush(t, q)

	assert.Empty(t, writer.persisted())
	assert.Equal(t, 4, writer.attemptCount(), "initial attempt plus three retries")
	assert.Equal(t, int64(1), q.Stats().Dropped)
	assert.Zero(t, q.Depth())
	assert.Equal(t, 1, logs.FilterMessage("dropping audit entry after max retries").Len())
}

func TestQueue_NoRetriesWhenMaxRetriesZero(t *testing.T) {
	writer := &fakeWriter{alwaysErr: true}
	cfg := queueConfig()
	cfg.MaxRetries = 0
	q := NewQueue(writer, cfg, nil)

	q.Enqueue(newEntry(ActionLogin, 1), true)
	flush(t, q)

	assert.Equal(t, 1, writer.attemptCount())
	assert.Equal(t, int64(1), q.Stats().Dropped)
}

func TestQueue_RetriesOnlyFailedEntries(t *testing.T) {
	writer := &fakeWriter{failFirst: 1}
	cfg := queueConfig()
	cfg.BatchSize = 5
	q := NewQueue(writer, cfg, nil)

	for i := 0; i < 5; i++ {
		q.Enqueue(newEntry(ActionCreate, i), false)
	}
	flush(t, q)

	assert.Len(t, writer.persisted(), 5)
	assert.Equal(t, 6, writer.attemptCount())
	assert.Equal(t, int64(1), q.Stats().Retried)
}

func TestQueue_DropsNewestWhenFull(t *testing.T) {
	writer := &fakeWriter{gate: make(chan struct{})}
	cfg := queueConfig()
	cfg.MaxQueueSize = 5
	cfg.BatchSize = 2
	q := NewQueue(writer, cfg, nil)

	accepted := 0
	for i := 0; i < 8; i++ {
		if q.Enqueue(newEntry(ActionCreate, i), false) {
			accepted++
		}
		assert.LessOrEqual(t, q.Depth(), 5)
	}
	assert.Equal(t, 5, accepted)

	close(writer.gate)
	flush(t, q)

	persisted := writer.persisted()
	require.Len(t, persisted, 5)
	ids := make(map[string]bool)
	for _, e := range persisted {
		ids[e.ResourceID] = true
	}
	assert.False(t, ids["5"] || ids["6"] || ids["7"], "overflow entries are the ones dropped")
	assert.Equal(t, int64(3), q.Stats().Dropped)
}

func TestQueue_SecurityEntryDisplacesOrdinary(t *testing.T) {
	writer := &fakeWriter{gate: make(chan struct{})}
	cfg := queueConfig()
	cfg.MaxQueueSize = 3
	cfg.BatchSize = 1
	q := NewQueue(writer, cfg, nil)

	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(newEntry(ActionView, i), false))
	}
	assert.False(t, q.Enqueue(newEntry(ActionView, 99), false))
	assert.True(t, q.Enqueue(newEntry(ActionSuspiciousActivity, 100), true))
	assert.Equal(t, 3, q.Depth())

	close(writer.gate)
	flush(t, q)

	var actions []Action
	for _, e := range writer.persisted() {
		actions = append(actions, e.Action)
	}
	assert.Len(t, actions, 3)
	assert.Contains(t, actions, ActionSuspiciousActivity)
	assert.Equal(t, int64(2), q.Stats().Dropped)
}

func TestQueue_SecurityEntryDroppedWhenOnlySecurityQueued(t *testing.T) {
	writer := &fakeWriter{gate: make(chan struct{})}
	cfg := queueConfig()
	cfg.MaxQueueSize = 2
	q := NewQueue(writer, cfg, nil)
	defer close(writer.gate)

	require.True(t, q.Enqueue(newEntry(ActionLoginFailed, 1), true))
	require.True(t, q.Enqueue(newEntry(ActionLoginFailed, 2), true))
	assert.False(t, q.Enqueue(newEntry(ActionLoginFailed, 3), true))
}

func TestQueue_FlushHonoursContext(t *testing.T) {
	writer := &fakeWriter{gate: make(chan struct{})}
	q := NewQueue(writer, queueConfig(), nil)
	defer close(writer.gate)

	q.Enqueue(newEntry(ActionCreate, 1), false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Flush(ctx), context.DeadlineExceeded)
}

func TestQueue_ShutdownStopsIntake(t *testing.T) {
	writer := &fakeWriter{}
	q := NewQueue(writer, queueConfig(), nil)

	q.Enqueue(newEntry(ActionCreate, 1), false)
	require.NoError(t, q.Shutdown(context.Background()))

	assert.Len(t, writer.persisted(), 1)
	assert.False(t, q.Enqueue(newEntry(ActionCreate, 2), false))
	assert.Len(t, writer.persisted(), 1)
}

func TestQueue_FlushEmpty(t *testing.T) {
	q := NewQueue(&fakeWriter{}, queueConfig(), nil)
	assert.NoError(t, q.Flush(context.Background()))
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	writer := &fakeWriter{}
	q := NewQueue(writer, queueConfig(), nil)

	var wg sync.WaitGroup
	for g := 0; g < 50; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				q.Enqueue(newEntry(ActionCreate, g*10+i), false)
			}
		}(g)
	}
	wg.Wait()
	flush(t, q)

	assert.Len(t, writer.persisted(), 500)
	assert.Zero(t, q.Stats().Dropped)
}

func TestQueue_RestartsAfterIdle(t *testing.T) {
	writer := &fakeWriter{}
	q := NewQueue(writer, queueConfig(), nil)

	q.Enqueue(newEntry(ActionCreate, 1), false)
	flush(t, q)
	assert.False(t, q.Stats().Processing)

	q.Enqueue(newEntry(ActionCreate, 2), false)
	assert.Eventually(t, func() bool {
		return len(writer.persisted()) == 2
	}, time.Second, 5*time.Millisecond)
}
