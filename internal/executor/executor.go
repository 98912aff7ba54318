// Package executor runs one pipeline: it owns the node instances, the tick
// loop, and the lifecycle state machine.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visionflow/visionflow/internal/config"
	"github.com/visionflow/visionflow/internal/node"
	"github.com/visionflow/visionflow/internal/registry"
)

// State is the lifecycle state of a pipeline.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateError    State = "error"
)

const (
	defaultFPS = 30.0
	// pausePoll is how often a paused loop rechecks its state.
	pausePoll = 100 * time.Millisecond
	// stopTimeout bounds the wait for the loop goroutine during Stop.
	stopTimeout = 5 * time.Second
)

var (
	// ErrInvalidTransition is returned for lifecycle calls that do not
	// apply in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Status is a snapshot of an executor's externally visible state.
type Status struct {
	Pipeline string
	State    State
	Error    string
	Stats    StatsSnapshot
	Nodes    []node.Status
}

// Executor runs a single validated pipeline definition.
type Executor struct {
	cfg      *config.Pipeline
	reg      *registry.Registry
	logger   *slog.Logger
	order    []string
	interval time.Duration

	dispatcher *dispatcher

	// mu guards the state machine and the node maps. Stop holds it across
	// the loop join, which is bounded by stopTimeout.
	mu       sync.Mutex
	state    State
	stateErr string
	// paused gates the loop without it touching mu.
	paused atomic.Bool

	nodes   map[string]node.Node
	sources map[string]node.Source
	edges   map[string][]config.EdgeConfig

	st     *stats
	cancel context.CancelFunc
	done   chan struct{}
}

// New validates the pipeline against the registry and builds a stopped
// executor. The definition is not instantiated until Start.
func New(cfg *config.Pipeline, reg *registry.Registry, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("pipeline", cfg.Name)

	kindOf := func(typeName string) (string, error) {
		kind, err := reg.Category(typeName)
		return string(kind), err
	}
	if err := config.Validate(cfg, kindOf); err != nil {
		return nil, err
	}
	order, err := topoOrder(cfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline '%s': %w", cfg.Name, err)
	}

	fps := cfg.FPS
	if fps <= 0 {
		fps = defaultFPS
	}

	e := &Executor{
		cfg:        cfg,
		reg:        reg,
		logger:     logger,
		order:      order,
		interval:   time.Duration(float64(time.Second) / fps),
		dispatcher: newDispatcher(logger),
		state:      StateStopped,
		st:         newStats(),
	}
	return e, nil
}

// Name returns the pipeline name.
func (e *Executor) Name() string { return e.cfg.Name }

// Config returns the pipeline definition the executor runs.
func (e *Executor) Config() *config.Pipeline { return e.cfg }

// Subscribe registers a callback receiver. Subscribers added while the
// pipeline runs start receiving from the next event.
func (e *Executor) Subscribe(sub Subscriber) {
	e.dispatcher.subscribe(sub)
}

// State returns the current lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// setState transitions and publishes the change. Callers hold the lock.
func (e *Executor) setState(to State, errMsg string) {
	from := e.state
	e.state = to
	e.stateErr = errMsg
	if from == to {
		return
	}
	e.logger.Info("Pipeline state changed.", "from", from, "to", to, "error", errMsg)
	name := e.cfg.Name
	e.dispatcher.publish(func(s Subscriber) { s.OnStateChange(name, from, to) })
}

// Start instantiates the nodes, initializes them in execution order, starts
// the input streams, and launches the tick loop. A failed node initialize
// moves the pipeline to Error and tears down what was already built.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateStopped, StateError:
	case StateRunning, StatePaused:
		return fmt.Errorf("%w: pipeline '%s' is already %s", ErrInvalidTransition, e.cfg.Name, e.state)
	default:
		return fmt.Errorf("%w: pipeline '%s' is %s", ErrInvalidTransition, e.cfg.Name, e.state)
	}
	e.setState(StateStarting, "")

	if err := e.buildNodes(); err != nil {
		e.teardownNodes()
		e.setState(StateError, err.Error())
		return err
	}

	for _, id := range e.order {
		n := e.nodes[id]
		if err := n.Initialize(ctx); err != nil {
			wrapped := fmt.Errorf("initialize node '%s': %w", id, err)
			e.teardownNodes()
			e.setState(StateError, wrapped.Error())
			return wrapped
		}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	for id, src := range e.sources {
		if err := src.StartStream(loopCtx); err != nil {
			wrapped := fmt.Errorf("start stream on node '%s': %w", id, err)
			cancel()
			e.teardownNodes()
			e.setState(StateError, wrapped.Error())
			return wrapped
		}
	}

	e.st = newStats()
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.paused.Store(false)
	e.setState(StateRunning, "")
	go e.run(loopCtx, done, graph{
		order:   e.order,
		nodes:   e.nodes,
		sources: e.sources,
		edges:   e.edges,
	})
	return nil
}

// Stop cancels the loop, waits for it with a bounded timeout, stops the
// input streams, and cleans up every node. Stopping an already stopped
// pipeline is a no-op.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateStopped:
		return nil
	case StateRunning, StatePaused, StateError:
	default:
		return fmt.Errorf("%w: pipeline '%s' is %s", ErrInvalidTransition, e.cfg.Name, e.state)
	}
	e.setState(StateStopping, "")

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.done != nil {
		select {
		case <-e.done:
		case <-time.After(stopTimeout):
			e.logger.Error("Pipeline loop did not exit in time.", "timeout", stopTimeout)
		case <-ctx.Done():
		}
		e.done = nil
	}

	e.teardownNodes()
	e.setState(StateStopped, "")
	return nil
}

// Pause suspends processing without tearing anything down.
func (e *Executor) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return fmt.Errorf("%w: cannot pause pipeline '%s' while %s", ErrInvalidTransition, e.cfg.Name, e.state)
	}
	e.paused.Store(true)
	e.setState(StatePaused, "")
	return nil
}

// Resume continues a paused pipeline.
func (e *Executor) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return fmt.Errorf("%w: cannot resume pipeline '%s' while %s", ErrInvalidTransition, e.cfg.Name, e.state)
	}
	e.paused.Store(false)
	e.setState(StateRunning, "")
	return nil
}

// Status returns a full snapshot: state, counters, and per-node status.
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := Status{
		Pipeline: e.cfg.Name,
		State:    e.state,
		Error:    e.stateErr,
		Stats:    e.st.snapshot(),
	}
	for _, id := range e.order {
		if n, ok := e.nodes[id]; ok {
			status.Nodes = append(status.Nodes, n.Status())
		}
	}
	return status
}

// Close releases the dispatcher. The executor must be stopped first.
func (e *Executor) Close() {
	e.dispatcher.close()
}

// buildNodes instantiates every node from the registry and indexes
// sources and incoming edges.
func (e *Executor) buildNodes() error {
	e.nodes = make(map[string]node.Node, len(e.cfg.Nodes))
	e.sources = make(map[string]node.Source)
	e.edges = make(map[string][]config.EdgeConfig)

	for _, nc := range e.cfg.Nodes {
		n, err := e.reg.CreateNode(nc.Type, nc.ID, nc.Parameters)
		if err != nil {
			return err
		}
		e.nodes[nc.ID] = n
		if src, ok := n.(node.Source); ok {
			e.sources[nc.ID] = src
		}
	}
	for _, edge := range e.cfg.Edges {
		e.edges[edge.Target] = append(e.edges[edge.Target], edge)
	}
	return nil
}

// teardownNodes stops streams and cleans up every built node. Cleanup
// errors are logged, not propagated; teardown always completes.
func (e *Executor) teardownNodes() {
	for _, src := range e.sources {
		src.StopStream()
	}
	for _, id := range e.order {
		n, ok := e.nodes[id]
		if !ok {
			continue
		}
		if err := n.Cleanup(); err != nil {
			e.logger.Warn("Node cleanup failed.", "node", id, "error", err)
		}
	}
	e.nodes = nil
	e.sources = nil
}
