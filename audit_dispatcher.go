package tokenauth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events from request goroutines to a single worker
// that calls the sink. A nil dispatcher means audit is disabled.
type auditDispatcher struct {
	sink  AuditSink
	queue chan AuditEvent
	// drop selects between dropping on a full queue and waiting for space.
	drop bool

	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &auditDispatcher{
		sink:  sink,
		queue: make(chan AuditEvent, max(cfg.BufferSize, 1)),
		drop:  cfg.DropIfFull,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.done)
	ctx := context.Background()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		case <-d.quit:
			// Flush what was queued before Close.
			for {
				select {
				case ev := <-d.queue:
					d.sink.Emit(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// Emit queues ev. When the queue is full the event is either counted as
// dropped or Emit blocks until there is room, ctx is done or the
// dispatcher is closed.
func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil {
		return
	}
	select {
	case <-d.quit:
		return
	default:
	}

	if d.drop {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close flushes queued events and stops the worker. Later calls are no-ops.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() { close(d.quit) })
	<-d.done
}

// Dropped reports events lost to a full queue.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
