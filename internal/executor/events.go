package executor

import (
	"log/slog"
	"sync"
)

// Subscriber receives pipeline callbacks. Callbacks for one pipeline are
// delivered in order from a single dispatch goroutine; implementations must
// not block for long.
type Subscriber interface {
	OnStateChange(pipeline string, from, to State)
	OnFrameProcessed(pipeline string, payload map[string]any)
	OnAnalytics(pipeline string, nodeID string, report map[string]any)
	OnError(pipeline string, nodeID string, err error)
}

// SubscriberFuncs adapts plain functions into a Subscriber; nil fields are
// ignored.
type SubscriberFuncs struct {
	StateChange    func(pipeline string, from, to State)
	FrameProcessed func(pipeline string, payload map[string]any)
	Analytics      func(pipeline string, nodeID string, report map[string]any)
	Error          func(pipeline string, nodeID string, err error)
}

func (s *SubscriberFuncs) OnStateChange(pipeline string, from, to State) {
	if s.StateChange != nil {
		s.StateChange(pipeline, from, to)
	}
}

func (s *SubscriberFuncs) OnFrameProcessed(pipeline string, payload map[string]any) {
	if s.FrameProcessed != nil {
		s.FrameProcessed(pipeline, payload)
	}
}

func (s *SubscriberFuncs) OnAnalytics(pipeline string, nodeID string, report map[string]any) {
	if s.Analytics != nil {
		s.Analytics(pipeline, nodeID, report)
	}
}

func (s *SubscriberFuncs) OnError(pipeline string, nodeID string, err error) {
	if s.Error != nil {
		s.Error(pipeline, nodeID, err)
	}
}

// dispatchBuffer bounds the pending callback queue per pipeline.
const dispatchBuffer = 256

// dispatcher serializes subscriber callbacks onto one goroutine. Publishing
// never blocks the pipeline loop: when the queue is full the callback is
// dropped and counted.
type dispatcher struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs []Subscriber

	ch      chan func(Subscriber)
	done    chan struct{}
	dropped uint64
	closed  bool
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		logger: logger,
		ch:     make(chan func(Subscriber), dispatchBuffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for deliver := range d.ch {
		d.mu.Lock()
		subs := make([]Subscriber, len(d.subs))
		copy(subs, d.subs)
		d.mu.Unlock()
		for _, sub := range subs {
			deliver(sub)
		}
	}
}

func (d *dispatcher) subscribe(sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, sub)
}

// publish enqueues one callback delivery without blocking. The lock orders
// publish against close so a send never races a closed channel.
func (d *dispatcher) publish(deliver func(Subscriber)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.ch <- deliver:
	default:
		d.dropped++
		d.logger.Warn("Subscriber queue full, dropping callback.", "dropped_total", d.dropped)
	}
}

// close drains pending callbacks and stops the dispatch goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.ch)
	<-d.done
}
