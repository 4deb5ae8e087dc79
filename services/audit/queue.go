package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/zap"
)

type queued struct {
	entry      *Entry
	security   bool
	retryCount int
}

type QueueStats struct {
	Enqueued   int64 `json:"enqueued"`
	Persisted  int64 `json:"persisted"`
	Retried    int64 `json:"retried"`
	Dropped    int64 `json:"dropped"`
	Depth      int   `json:"depth"`
	Processing bool  `json:"processing"`
}

// Queue buffers entries in memory and persists them in batches from a single
// background drain goroutine. Enqueue never blocks on the writer.
type Queue struct {
	writer Writer
	cfg    config.AuditConfig
	logger *logging.Service

	mu         sync.Mutex
	items      []*queued
	inFlight   int
	processing bool
	closed     bool
	idle       chan struct{}

	flushing atomic.Int32

	enqueued  atomic.Int64
	persisted atomic.Int64
	retried   atomic.Int64
	dropped   atomic.Int64
}

func NewQueue(writer Writer, cfg config.AuditConfig, logger *logging.Service) *Queue {
	return &Queue{
		writer: writer,
		cfg:    cfg,
		logger: logger,
	}
}

// Enqueue appends an entry and starts a drain cycle if none is running. When
// the queue is full the newest entry is dropped, except that a security entry
// takes the place of the newest queued non-security entry.
func (q *Queue) Enqueue(entry *Entry, security bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.dropped.Add(1)
		q.warn("audit queue closed, dropping entry", entry)
		return false
	}

	if len(q.items)+q.inFlight >= q.cfg.MaxQueueSize {
		if !security || !q.evictNewestOrdinaryLocked() {
			q.dropped.Add(1)
			q.warn("audit queue full, dropping entry", entry)
			return false
		}
	}

	q.items = append(q.items, &queued{entry: entry, security: security})
	q.enqueued.Add(1)

	if !q.processing {
		q.startLocked()
	}
	return true
}

func (q *Queue) evictNewestOrdinaryLocked() bool {
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.items[i].security {
			continue
		}
		evicted := q.items[i]
		q.items = append(q.items[:i], q.items[i+1:]...)
		q.dropped.Add(1)
		q.warn("audit queue full, evicting entry for security event", evicted.entry)
		return true
	}
	return false
}

func (q *Queue) startLocked() {
	q.processing = true
	q.idle = make(chan struct{})
	go q.drain(q.idle)
}

// Depth counts queued and in-flight entries.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) + q.inFlight
}

func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	depth := len(q.items) + q.inFlight
	processing := q.processing
	q.mu.Unlock()

	return QueueStats{
		Enqueued:   q.enqueued.Load(),
		Persisted:  q.persisted.Load(),
		Retried:    q.retried.Load(),
		Dropped:    q.dropped.Load(),
		Depth:      depth,
		Processing: processing,
	}
}

func (q *Queue) drain(idle chan struct{}) {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.processing = false
			close(idle)
			q.mu.Unlock()
			return
		}

		n := q.cfg.BatchSize
		if n <= 0 || n > len(q.items) {
			n = len(q.items)
		}
		batch := make([]*queued, n)
		copy(batch, q.items[:n])
		q.items = q.items[n:]
		q.inFlight += n
		q.mu.Unlock()

		failed := q.persistBatch(batch)

		q.mu.Lock()
		q.inFlight -= n
		q.requeueLocked(failed)
		more := len(q.items) > 0
		q.mu.Unlock()

		if more && q.cfg.BatchPause > 0 && q.flushing.Load() == 0 {
			time.Sleep(q.cfg.BatchPause)
		}
	}
}

// persistBatch writes every entry concurrently and returns those that failed.
func (q *Queue) persistBatch(batch []*queued) []*queued {
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item *queued) {
			defer wg.Done()
			errs[i] = q.persist(item.entry)
		}(i, item)
	}
	wg.Wait()

	var failed []*queued
	for i, err := range errs {
		if err == nil {
			q.persisted.Add(1)
			continue
		}
		if q.logger != nil {
			q.logger.Warn("failed to persist audit entry",
				zap.String("action", string(batch[i].entry.Action)),
				zap.Int("retry_count", batch[i].retryCount),
				zap.Error(err))
		}
		failed = append(failed, batch[i])
	}
	return failed
}

func (q *Queue) persist(entry *Entry) error {
	ctx := context.Background()
	if q.cfg.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.PersistTimeout)
		defer cancel()
	}
	return q.writer.Insert(ctx, entry)
}

// requeueLocked puts failed entries back at the front in their original order.
func (q *Queue) requeueLocked(failed []*queued) {
	retry := make([]*queued, 0, len(failed))
	for _, item := range failed {
		item.retryCount++
		if item.retryCount > q.cfg.MaxRetries {
			q.dropped.Add(1)
			if q.logger != nil {
				q.logger.Error("dropping audit entry after max retries",
					zap.String("action", string(item.entry.Action)),
					zap.Uint("user_id", item.entry.UserID),
					zap.String("resource_type", item.entry.ResourceType),
					zap.Int("max_retries", q.cfg.MaxRetries))
			}
			continue
		}
		retry = append(retry, item)
	}
	if len(retry) == 0 {
		return
	}
	q.retried.Add(int64(len(retry)))
	q.items = append(retry, q.items...)
}

// Flush drains the queue without pausing between batches and blocks until it
// is empty or ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	q.flushing.Add(1)
	defer q.flushing.Add(-1)

	for {
		q.mu.Lock()
		if len(q.items) == 0 && !q.processing {
			q.mu.Unlock()
			return nil
		}
		if !q.processing {
			q.startLocked()
		}
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown stops accepting entries and flushes what is buffered.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	if err := q.Flush(ctx); err != nil {
		if q.logger != nil {
			q.logger.Error("audit queue flush did not complete",
				zap.Int("remaining", q.Depth()),
				zap.Error(err))
		}
		return err
	}

	if q.logger != nil {
		stats := q.Stats()
		q.logger.Info("audit queue flushed",
			zap.Int64("persisted", stats.Persisted),
			zap.Int64("dropped", stats.Dropped))
	}
	return nil
}

func (q *Queue) warn(msg string, entry *Entry) {
	if q.logger == nil {
		return
	}
	q.logger.Warn(msg,
		zap.String("action", string(entry.Action)),
		zap.Uint("user_id", entry.UserID),
		zap.Int("max_queue_size", q.cfg.MaxQueueSize))
}
