package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

const (
	// DefaultQueueCapacity is used when a non-positive capacity is requested.
	DefaultQueueCapacity = 64

	// DefaultBlockTimeout bounds a blocked Push under the block policy.
	DefaultBlockTimeout = 10 * time.Second
)

// Queue is the bounded FIFO between the Subscriber (producer) and the
// Consumer. Events are delivered exactly once, in arrival order.
//
// When full, the overflow policy decides what Push does:
//   - config.OverflowDrop: the new event is dropped, counted and logged
//   - config.OverflowBlock: Push waits for space, logging when it starts waiting,
//     then drops and counts once the block timeout passes
//
// Push runs on the MQTT client's receive path, so the block timeout must stay
// below the broker keepalive.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Queue struct {
	ch           chan yolink.Event
	policy       string
	blockTimeout time.Duration
	logger       Logger

	dropped atomic.Uint64
	blocked atomic.Uint64
}

// NewQueue creates a queue with the given capacity and overflow policy.
// An unrecognised policy falls back to drop.
func NewQueue(capacity int, policy string, logger Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if policy != config.OverflowBlock {
		policy = config.OverflowDrop
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Queue{
		ch:           make(chan yolink.Event, capacity),
		policy:       policy,
		blockTimeout: DefaultBlockTimeout,
		logger:       logger,
	}
}

// SetBlockTimeout sets how long Push may wait under the block policy.
// Non-positive values keep the current timeout. Call before use.
func (q *Queue) SetBlockTimeout(d time.Duration) {
	if d > 0 {
		q.blockTimeout = d
	}
}

// Push enqueues evt.
//
// Under the drop policy Push never blocks and returns ErrQueueFull when
// the event was discarded. Under the block policy it waits up to the block
// timeout, then drops the event and returns ErrQueueFull; it returns
// ctx.Err() if ctx ends first.
func (q *Queue) Push(ctx context.Context, evt yolink.Event) error {
	select {
	case q.ch <- evt:
		return nil
	default:
	}

	if q.policy == config.OverflowDrop {
		return q.drop(evt)
	}

	q.logger.Warn("event queue full, producer blocking",
		"device_id", evt.DeviceID,
		"capacity", cap(q.ch),
		"timeout", q.blockTimeout.String())
	q.blocked.Add(1)

	timer := time.NewTimer(q.blockTimeout)
	defer timer.Stop()

	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return q.drop(evt)
	}
}

func (q *Queue) drop(evt yolink.Event) error {
	n := q.dropped.Add(1)
	q.logger.Warn("event queue full, dropping event",
		"device_id", evt.DeviceID,
		"event", evt.Event,
		"capacity", cap(q.ch),
		"dropped_total", n)
	return ErrQueueFull
}

// Pop blocks until an event is available or ctx ends.
func (q *Queue) Pop(ctx context.Context) (yolink.Event, error) {
	select {
	case evt := <-q.ch:
		return evt, nil
	case <-ctx.Done():
		return yolink.Event{}, ctx.Err()
	}
}

// TryPop returns the next event without blocking.
func (q *Queue) TryPop() (yolink.Event, bool) {
	select {
	case evt := <-q.ch:
		return evt, true
	default:
		return yolink.Event{}, false
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Blocked returns how many times a producer had to wait for space.
func (q *Queue) Blocked() uint64 {
	return q.blocked.Load()
}
