package orchestrator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/project"
	"github.com/fyrsmithlabs/craftd/internal/store"
)

const defaultPersistQueueSize = 64

// persister serializes snapshot writes through a bounded queue
// consumed by a single goroutine. Enqueue never blocks: when the
// queue is full the oldest pending snapshot is dropped, since a newer
// snapshot of the same history supersedes it anyway. Pipeline
// progress must never stall on disk.
type persister struct {
	store  store.Store
	queue  chan project.Snapshot
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newPersister(st store.Store, size int, logger *zap.Logger) *persister {
	if size <= 0 {
		size = defaultPersistQueueSize
	}
	w := &persister{
		store:  st,
		queue:  make(chan project.Snapshot, size),
		logger: logger,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue queues a snapshot write, dropping the oldest pending entry
// when the queue is full. Snapshots enqueued after Close are dropped;
// pipeline goroutines may still be running during shutdown.
func (w *persister) Enqueue(snap project.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Debug("persister closed, dropping snapshot",
			zap.String("project", snap.ProjectID))
		return
	}
	for {
		select {
		case w.queue <- snap:
			return
		default:
		}
		select {
		case dropped := <-w.queue:
			w.logger.Debug("snapshot queue full, dropping oldest",
				zap.String("project", dropped.ProjectID))
		default:
		}
	}
}

// Close stops accepting writes and drains what is queued.
func (w *persister) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *persister) run() {
	defer close(w.done)
	for snap := range w.queue {
		data, err := snap.Encode()
		if err != nil {
			w.logger.Warn("snapshot encode failed",
				zap.String("project", snap.ProjectID),
				zap.Error(err))
			continue
		}
		if err := w.store.SaveState(snap.ProjectID, data); err != nil {
			w.logger.Warn("snapshot write failed",
				zap.String("project", snap.ProjectID),
				zap.Error(err))
		}
	}
}
