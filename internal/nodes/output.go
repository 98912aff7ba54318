package nodes

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/visionflow/visionflow/internal/ctxlog"
	"github.com/visionflow/visionflow/internal/frame"
	"github.com/visionflow/visionflow/internal/node"
)

// LogOutput writes a one-line summary of every payload it receives to the
// structured log.
type LogOutput struct {
	node.Base
	logger *slog.Logger
	level  slog.Level
	sent   atomic.Uint64
}

// NewLogOutput builds a log sink. A nil logger falls back to slog.Default.
func NewLogOutput(id string, logger *slog.Logger, level slog.Level) *LogOutput {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogOutput{Base: node.NewBase(id), logger: logger.With("node", id), level: level}
}

func (n *LogOutput) Initialize(ctx context.Context) error {
	n.MarkInitialized()
	return nil
}

func (n *LogOutput) Process(ctx context.Context, input map[string]any) frame.Result {
	if !n.Ready() {
		return frame.Fail(fmt.Sprintf("node '%s' is not initialized", n.ID()))
	}
	n.Send(input)
	n.Touch()
	return frame.OK(nil, map[string]any{"sent": n.sent.Load()})
}

// Send logs the payload summary. It never blocks and never fails.
func (n *LogOutput) Send(payload map[string]any) bool {
	attrs := []any{"keys", payloadKeys(payload)}
	if f, ok := payload[frame.KeyFrame].(frame.Frame); ok {
		attrs = append(attrs, "source", f.SourceID, "sequence", f.Sequence)
	}
	if dets, ok := payload[frame.KeyDetections].([]frame.Detection); ok {
		attrs = append(attrs, "detections", len(dets))
	}
	if report, ok := payload[KeyAnalytics].(map[string]any); ok {
		attrs = append(attrs, "analytics_type", report["type"])
	}
	n.logger.Log(context.Background(), n.level, "Pipeline payload.", attrs...)
	n.sent.Add(1)
	return true
}

// Sent returns the number of payloads logged.
func (n *LogOutput) Sent() uint64 { return n.sent.Load() }

func (n *LogOutput) Cleanup() error {
	n.MarkUninitialized()
	return nil
}

func (n *LogOutput) InputKinds() []string {
	return []string{node.KindVideo, node.KindImage, node.KindDetections, node.KindAnalytic, node.KindData}
}
func (n *LogOutput) OutputKinds() []string { return nil }

func payloadKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	return keys
}

// SocketIOConfig controls a socket.io sink.
type SocketIOConfig struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIOOutput forwards payloads to a socket.io server as events. The
// connection is established during Initialize and held for the life of the
// node.
type SocketIOOutput struct {
	node.Base
	cfg SocketIOConfig

	mu   sync.Mutex
	io   *socket.Socket
	sent atomic.Uint64
}

// NewSocketIOOutput builds a socket.io sink; the event name defaults to
// "pipeline_event" and the connect timeout to 15s.
func NewSocketIOOutput(id string, cfg SocketIOConfig) (*SocketIOOutput, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("socketio output '%s': url is required", id)
	}
	if cfg.Event == "" {
		cfg.Event = "pipeline_event"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	return &SocketIOOutput{Base: node.NewBase(id), cfg: cfg}, nil
}

// Initialize connects to the server and waits for the handshake.
func (n *SocketIOOutput) Initialize(ctx context.Context) error {
	logger := ctxlog.From(ctx).With("node", n.ID(), "url", n.cfg.URL)
	logger.Info("Connecting socket.io output...")

	parsedURL, err := url.Parse(n.cfg.URL)
	if err != nil {
		n.SetError(err.Error())
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if n.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(n.cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Successfully connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			n.SetError(err.Error())
			return fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(n.cfg.ConnectTimeout):
		io.Disconnect()
		n.SetError("connect timeout")
		return fmt.Errorf("timed out after %s waiting for socket.io connection", n.cfg.ConnectTimeout)
	}

	n.mu.Lock()
	n.io = io
	n.mu.Unlock()
	n.MarkInitialized()
	return nil
}

func (n *SocketIOOutput) Process(ctx context.Context, input map[string]any) frame.Result {
	if !n.Ready() {
		return frame.Fail(fmt.Sprintf("node '%s' is not initialized", n.ID()))
	}
	if !n.Send(input) {
		return frame.Fail("emit failed")
	}
	n.Touch()
	return frame.OK(nil, map[string]any{"sent": n.sent.Load()})
}

// Send emits the payload. Raw frame image bytes are stripped before the
// emit; only metadata, detections, and analytics travel over the wire.
func (n *SocketIOOutput) Send(payload map[string]any) bool {
	n.mu.Lock()
	io := n.io
	n.mu.Unlock()
	if io == nil {
		return false
	}
	if err := io.Emit(n.cfg.Event, wirePayload(payload)); err != nil {
		n.SetError(err.Error())
		return false
	}
	n.sent.Add(1)
	return true
}

// Sent returns the number of payloads emitted.
func (n *SocketIOOutput) Sent() uint64 { return n.sent.Load() }

// Cleanup disconnects from the server.
func (n *SocketIOOutput) Cleanup() error {
	n.mu.Lock()
	io := n.io
	n.io = nil
	n.mu.Unlock()
	if io != nil {
		io.Disconnect()
	}
	n.MarkUninitialized()
	return nil
}

func (n *SocketIOOutput) InputKinds() []string {
	return []string{node.KindDetections, node.KindAnalytic, node.KindData}
}
func (n *SocketIOOutput) OutputKinds() []string { return nil }

// wirePayload flattens a pipeline payload into a JSON-friendly map without
// image bytes.
func wirePayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, val := range payload {
		switch key {
		case frame.KeyFrame:
			if f, ok := val.(frame.Frame); ok {
				out["frame"] = map[string]any{
					"source":      f.SourceID,
					"sequence":    f.Sequence,
					"width":       f.Width,
					"height":      f.Height,
					"captured_at": f.CapturedAt.UTC().Format(time.RFC3339Nano),
				}
			}
		case frame.KeyImageBuffer:
			// Dropped: raw image bytes stay on the node side.
		default:
			out[key] = val
		}
	}
	return out
}
