package requestlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raikyou/uniapi/pkg/proxy"
)

// mirrorWriteTimeout bounds a single async sqlite write.
const mirrorWriteTimeout = 5 * time.Second

// mirrorBuffer is the async write channel's capacity; a full channel drops
// the record and logs a warning rather than blocking the request path.
const mirrorBuffer = 1000

// Logger is the Request Logger: it satisfies proxy.Recorder, pushing every
// terminated request onto a bounded in-memory ring (synchronously — the
// ring push is O(1) under a single mutex, cheap enough to do inline) and
// fanning it out to live admin subscribers. An optional sqlite Mirror is
// written to asynchronously, since that write is I/O-bound.
type Logger struct {
	ring   *ring
	hub    *hub
	mirror *Mirror

	mirrorCh chan Record
	done     chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// New builds a Logger with the given ring capacity. Pass a nil mirror to run
// ring-only (no durability across restarts).
func New(capacity int, mirror *Mirror, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{
		ring:   newRing(capacity),
		hub:    newHub(),
		mirror: mirror,
		logger: logger,
	}
	if mirror != nil {
		l.mirrorCh = make(chan Record, mirrorBuffer)
		l.done = make(chan struct{})
		l.wg.Add(1)
		go l.mirrorWorker()
	}
	return l
}

// Record implements proxy.Recorder.
func (l *Logger) Record(o proxy.Outcome) {
	rec := fromOutcome(uuid.NewString(), o)
	l.ring.push(rec)
	l.hub.publish(rec)

	if l.mirrorCh == nil {
		return
	}
	select {
	case l.mirrorCh <- rec:
	default:
		l.logger.Warn("request log mirror channel full, dropping record", "request_id", rec.RequestID)
	}
}

// Snapshot returns every record currently held in the in-memory ring,
// oldest first.
func (l *Logger) Snapshot() []Record {
	return l.ring.snapshot()
}

// Subscribe registers a live listener for new records as they are recorded.
// Callers implementing the admin SSE tail should call Snapshot immediately
// before or after Subscribe and serve the snapshot first, then the channel
// ("snapshot-then-subscribe").
func (l *Logger) Subscribe() (<-chan Record, func()) {
	return l.hub.subscribe()
}

// Close stops the async mirror worker, draining any pending writes first.
// Safe to call on a ring-only Logger (no-op).
func (l *Logger) Close() error {
	if l.mirrorCh == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	return l.mirror.Close()
}

func (l *Logger) mirrorWorker() {
	defer l.wg.Done()
	for {
		select {
		case rec := <-l.mirrorCh:
			l.writeMirror(rec)
		case <-l.done:
			for {
				select {
				case rec := <-l.mirrorCh:
					l.writeMirror(rec)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) writeMirror(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()

	if err := l.mirror.Write(ctx, rec); err != nil {
		l.logger.Error("failed to write request log mirror record", "request_id", rec.RequestID, "error", err)
	}
}
