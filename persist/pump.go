// Package persist pumps filled snapshots out of a ring and into a Sink,
// releasing each slot once its content is durably handed off. It is the
// consumer role of the ring packaged as a runnable component.
package persist

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/persistq/snapring/ring"
	"github.com/persistq/snapring/snapshot"
)

// Sink receives drained snapshot content. Persist must not retain s past
// its return: the slot is recycled immediately after.
type Sink interface {
	Persist(ctx context.Context, s *snapshot.Snapshot) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, s *snapshot.Snapshot) error

func (f SinkFunc) Persist(ctx context.Context, s *snapshot.Snapshot) error {
	return f(ctx, s)
}

// Options tune pump behavior.
type Options struct {
	// PollInterval is how long the pump sleeps when neither the ring nor
	// the overflow queue has work. Default 200µs.
	PollInterval time.Duration

	// FlushEvery asynchronously flushes the ring mapping after this many
	// persisted records. 0 means every 64.
	FlushEvery int

	// Logger receives persist failures. nil discards them.
	Logger *slog.Logger
}

// Stats is a snapshot of pump counters.
type Stats struct {
	Persisted uint64 // records handed to the sink successfully
	Failures  uint64 // sink errors (the record is dropped, not retried)
	Overflow  uint64 // records that arrived through the overflow queue
}

// Pump drains one ring into one sink. Run owns the ring's consumer role;
// Enqueue may be called from the producer side.
type Pump struct {
	r    *ring.Ring
	sink Sink
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	overflow *queue.Queue

	persisted atomic.Uint64
	failures  atomic.Uint64
	overflown atomic.Uint64
}

// New builds a pump over r and sink.
func New(r *ring.Ring, sink Sink, opts Options) *Pump {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Microsecond
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 64
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pump{
		r:        r,
		sink:     sink,
		opts:     opts,
		log:      log,
		overflow: queue.New(),
	}
}

// Enqueue hands the pump a heap-backed snapshot that never made it into
// the ring (the producer hit backpressure and fell back to an external
// allocation). Overflow records are persisted after ring records.
func (p *Pump) Enqueue(s *snapshot.Snapshot) {
	p.mu.Lock()
	p.overflow.Add(s)
	p.mu.Unlock()
}

func (p *Pump) dequeue() *snapshot.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.overflow.Length() == 0 {
		return nil
	}
	return p.overflow.Remove().(*snapshot.Snapshot)
}

// Run drains until ctx is done, then flushes the ring synchronously and
// returns ctx's error. Records drained in ring order, overflow afterwards.
func (p *Pump) Run(ctx context.Context) error {
	ticker := time.NewTimer(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := p.r.Sync(); err != nil {
				p.log.Warn("persist: final sync failed", "err", err)
			}
			return ctx.Err()
		default:
		}

		if p.RunOnce(ctx) {
			continue
		}

		ticker.Reset(p.opts.PollInterval)
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// RunOnce persists at most one record and reports whether it did any work.
// Exposed for callers driving the consumer from their own loop.
func (p *Pump) RunOnce(ctx context.Context) bool {
	if s := p.r.NextFilled(); s != nil {
		p.persistOne(ctx, s, true)
		return true
	}
	if s := p.dequeue(); s != nil {
		p.overflown.Add(1)
		p.persistOne(ctx, s, false)
		return true
	}
	return false
}

func (p *Pump) persistOne(ctx context.Context, s *snapshot.Snapshot, ringOwned bool) {
	if err := p.sink.Persist(ctx, s); err != nil {
		p.failures.Add(1)
		p.log.Warn("persist: sink failed, dropping record",
			"sender", s.Sender(), "err", err)
	} else {
		p.persisted.Add(1)
	}

	if ringOwned {
		if err := p.r.ReleaseFilled(s); err != nil {
			p.log.Warn("persist: release failed", "err", err)
		}
		if p.persisted.Load()%uint64(p.opts.FlushEvery) == 0 {
			p.r.Flush()
		}
	}
}

// Stats returns the current counters.
func (p *Pump) Stats() Stats {
	return Stats{
		Persisted: p.persisted.Load(),
		Failures:  p.failures.Load(),
		Overflow:  p.overflown.Load(),
	}
}
