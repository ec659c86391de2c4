package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

// AsyncPublisher hands events to a background goroutine. When the buffer is
// full the event is dropped; callers never wait on the stream.
type AsyncPublisher struct {
	log     *logger.Logger
	bus     Bus
	ch      chan Event
	dropped atomic.Int64
	closed  atomic.Bool
	started atomic.Bool
	once    sync.Once
	stop    chan struct{}
	done    chan struct{}
}

func NewAsyncPublisher(log *logger.Logger, b Bus, buffer int) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AsyncPublisher{
		log:  log.With("component", "AsyncDrillPublisher"),
		bus:  b,
		ch:   make(chan Event, buffer),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (p *AsyncPublisher) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case <-p.stop:
				p.drain()
				return
			case ev := <-p.ch:
				p.publish(ev)
			}
		}
	}()
}

// Emit enqueues ev without blocking. Safe on a nil receiver and after Close,
// when events are dropped.
func (p *AsyncPublisher) Emit(ev Event) {
	if p == nil || p.bus == nil || p.closed.Load() {
		return
	}
	select {
	case p.ch <- ev:
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.log.Warn("Drill stream buffer full; dropping events", "dropped_total", n)
		}
	}
}

func (p *AsyncPublisher) Dropped() int64 {
	if p == nil {
		return 0
	}
	return p.dropped.Load()
}

// Close stops accepting events and waits briefly for the queue to flush.
func (p *AsyncPublisher) Close() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.stop)
	})
	if !p.started.Load() {
		return
	}
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
	}
}

func (p *AsyncPublisher) drain() {
	for {
		select {
		case ev := <-p.ch:
			p.publish(ev)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.bus.Publish(ctx, ev); err != nil {
		p.log.Warn("Drill stream publish failed", "event_id", ev.ID, "error", err)
	}
}
