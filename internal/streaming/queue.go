package streaming

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rendis/agent8/internal/logging"
)

const defaultQueueBuffer = 64

// Queue is a FIFO emitter feeding one connection writer.
// Frames are encoded on Emit; the writer drains Frames() until Done() closes.
type Queue struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewQueue creates a queue with the given buffer size (64 when <= 0).
func NewQueue(buffer int, logger *slog.Logger) *Queue {
	if buffer <= 0 {
		buffer = defaultQueueBuffer
	}
	return &Queue{
		frames: make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logging.OrDefault(logger),
	}
}

// Emit encodes and enqueues the event. It blocks while the buffer is full and
// returns without sending once the queue is closed or ctx is done.
func (q *Queue) Emit(ctx context.Context, ev Event) {
	select {
	case <-q.done:
		return
	case <-ctx.Done():
		return
	default:
	}

	frame, err := ev.Marshal()
	if err != nil {
		q.logger.ErrorContext(ctx, "encode event", slog.String("event", ev.Name), slog.String("error", err.Error()))
		return
	}

	select {
	case q.frames <- frame:
	case <-q.done:
	case <-ctx.Done():
	}
}

// Frames is the encoded event stream.
func (q *Queue) Frames() <-chan []byte {
	return q.frames
}

// Done is closed once the queue is closed.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Close stops accepting events. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

var _ Emitter = (*Queue)(nil)
