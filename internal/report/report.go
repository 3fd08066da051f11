// Package report delivers settlement and withdrawal reports to the host.
// Delivery is fire-and-forget: Dispatch never blocks and never reports
// failure back to the caller.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"minibet/internal/game"
)

type Sink interface {
	Send(ctx context.Context, r game.Report) error
	Name() string
}

// Observer is told about every delivery attempt. internal/metrics implements
// it.
type Observer interface {
	ReportDelivered(sink string, err error)
	ReportDropped()
}

type nopObserver struct{}

func (nopObserver) ReportDelivered(string, error) {}
func (nopObserver) ReportDropped()                {}

type Options struct {
	QueueSize   int
	SendTimeout time.Duration
	Logger      *slog.Logger
	Observer    Observer
}

// Dispatcher fans every report out to all sinks from a single background
// worker, so reports reach each sink in dispatch order.
type Dispatcher struct {
	sinks   []Sink
	queue   chan game.Report
	timeout time.Duration
	log     *slog.Logger
	obs     Observer

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ game.Reporter = (*Dispatcher)(nil)

func NewDispatcher(sinks []Sink, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan game.Report, opts.QueueSize),
		timeout: opts.SendTimeout,
		log:     opts.Logger.With(slog.String("component", "report")),
		obs:     opts.Observer,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Dispatch(r game.Report) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("report dropped after close", "action", r.Action)
		d.obs.ReportDropped()
		return
	}
	select {
	case d.queue <- r:
	default:
		d.log.Warn("report queue full, dropping", "action", r.Action)
		d.obs.ReportDropped()
	}
}

// Close stops accepting reports and waits for queued ones to be delivered,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) SinkNames() []string {
	out := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		out = append(out, s.Name())
	}
	return out
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for r := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, r)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, r game.Report) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("report sink panicked", "sink", s.Name(), "panic", p)
			d.obs.ReportDelivered(s.Name(), fmt.Errorf("sink panic: %v", p))
		}
	}()
	err := s.Send(ctx, r)
	d.obs.ReportDelivered(s.Name(), err)
	if err != nil {
		d.log.Warn("report delivery failed", "sink", s.Name(), "action", r.Action, "err", err)
		return
	}
	d.log.Debug("report delivered", "sink", s.Name(), "action", r.Action)
}
