// Package node defines the unit of pipeline work. A node is a capability
// set, not a class hierarchy: every implementation satisfies Node, and the
// Input and Output variants additionally satisfy Source and Sink. Variant
// behavior lives in composition (a concrete struct embedding Base for the
// shared status fields), selected at creation time through the registry.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/visionflow/visionflow/internal/frame"
)

// Kind classifies a node type for catalog and scheduling purposes.
type Kind string

const (
	KindInput      Kind = "input"
	KindProcessing Kind = "processing"
	KindAnalytics  Kind = "analytics"
	KindOutput     Kind = "output"
)

// Data kinds exchanged along edges.
const (
	KindVideo      = "video"
	KindImage      = "image"
	KindDetections = "detections"
	KindAnalytic   = "analytics"
	KindData       = "data"
)

// Status is a point-in-time snapshot of a node's externally visible state.
type Status struct {
	NodeID        string
	Initialized   bool
	Running       bool
	ErrorMessage  string
	LastProcessed time.Time
}

// Node is the contract every pipeline node implements.
//
// Initialize must be called exactly once before Process; a failed Initialize
// leaves the node in a reportable error state, never partially usable.
// Process on an uninitialized node fails with a deterministic error and
// never panics. Cleanup is safe to call multiple times and after a failed
// Initialize.
type Node interface {
	ID() string
	Initialize(ctx context.Context) error
	Process(ctx context.Context, input map[string]any) frame.Result
	Cleanup() error
	InputKinds() []string
	OutputKinds() []string
	Status() Status
}

// Source is the Input variant: it produces frames from an external source
// through an internal capture loop and a bounded buffer.
type Source interface {
	Node
	StartStream(ctx context.Context) error
	StopStream()
	// NextFrame is a non-blocking poll of the internal buffer.
	NextFrame() (frame.Frame, bool)
}

// Sink is the Output variant: terminal, no output kinds.
type Sink interface {
	Node
	Send(payload map[string]any) bool
}

// Base holds the status and error state shared by all node implementations.
// It is embedded by value; its zero value is not usable — construct with
// NewBase.
type Base struct {
	mu          sync.Mutex
	id          string
	initialized bool
	running     bool
	errMsg      string
	last        time.Time
}

// NewBase returns a Base for the given node id.
func NewBase(id string) Base {
	return Base{id: id}
}

// ID returns the node's pipeline-unique identifier.
func (b *Base) ID() string { return b.id }

// MarkInitialized records a successful Initialize.
func (b *Base) MarkInitialized() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = true
	b.errMsg = ""
}

// MarkUninitialized records teardown of node resources.
func (b *Base) MarkUninitialized() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = false
	b.running = false
}

// Ready reports whether Initialize has completed successfully.
func (b *Base) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// SetRunning toggles the running flag (capture loop active, for sources).
func (b *Base) SetRunning(running bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = running
}

// SetError records an error message visible through Status.
func (b *Base) SetError(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errMsg = msg
}

// Touch records the time of the latest successful Process call.
func (b *Base) Touch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = time.Now()
}

// Status returns a snapshot of the shared node state.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		NodeID:        b.id,
		Initialized:   b.initialized,
		Running:       b.running,
		ErrorMessage:  b.errMsg,
		LastProcessed: b.last,
	}
}
