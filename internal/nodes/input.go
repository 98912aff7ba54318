package nodes

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/visionflow/visionflow/internal/ctxlog"
	"github.com/visionflow/visionflow/internal/frame"
	"github.com/visionflow/visionflow/internal/node"
)

// CaptureDevice abstracts the thing a video input reads frames from. Open
// and Read honor context cancellation; Read blocks at most until the next
// frame is available from the device.
type CaptureDevice interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (frame.Frame, error)
	Close() error
}

// reconnect policy for capture loops. Doubles up to the cap, gives up after
// maxAttempts consecutive failures.
const (
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 30 * time.Second
	reconnectMaxAttempts  = 5
)

// VideoInput is the shared Input implementation: a capture goroutine pulls
// frames from a CaptureDevice into a bounded drop-oldest buffer that the
// pipeline loop polls.
type VideoInput struct {
	node.Base
	device   CaptureDevice
	bufSize  int
	interval time.Duration

	mu     sync.Mutex
	buffer *frame.Buffer
	cancel context.CancelFunc
	done   chan struct{}
}

// VideoInputConfig carries the capture settings shared by all video inputs.
type VideoInputConfig struct {
	BufferSize int
	FPS        float64
}

// NewVideoInput builds a video input around a device. Zero config fields
// take defaults (buffer 10, device-paced capture).
func NewVideoInput(id string, device CaptureDevice, cfg VideoInputConfig) *VideoInput {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10
	}
	var interval time.Duration
	if cfg.FPS > 0 {
		interval = time.Duration(float64(time.Second) / cfg.FPS)
	}
	return &VideoInput{
		Base:     node.NewBase(id),
		device:   device,
		bufSize:  cfg.BufferSize,
		buffer:   frame.NewBuffer(cfg.BufferSize),
		interval: interval,
	}
}

// Initialize opens the capture device and replaces the frame buffer, so a
// re-initialized input never serves frames from a previous run.
func (v *VideoInput) Initialize(ctx context.Context) error {
	if err := v.device.Open(ctx); err != nil {
		v.SetError(err.Error())
		return fmt.Errorf("open capture device: %w", err)
	}
	v.mu.Lock()
	v.buffer = frame.NewBuffer(v.bufSize)
	v.mu.Unlock()
	v.MarkInitialized()
	return nil
}

// StartStream launches the capture goroutine. It is an error to start an
// uninitialized or already-streaming input.
func (v *VideoInput) StartStream(ctx context.Context) error {
	if !v.Ready() {
		return fmt.Errorf("input '%s' is not initialized", v.ID())
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		return fmt.Errorf("input '%s' is already streaming", v.ID())
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v.cancel = cancel
	v.done = done
	v.SetRunning(true)
	go v.captureLoop(loopCtx, done)
	return nil
}

// StopStream cancels the capture goroutine and waits for it to exit.
func (v *VideoInput) StopStream() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.cancel, v.done = nil, nil
	v.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	v.SetRunning(false)
}

// NextFrame polls the internal buffer without blocking.
func (v *VideoInput) NextFrame() (frame.Frame, bool) {
	return v.buf().Pop()
}

// Dropped returns the number of frames discarded under buffer pressure.
func (v *VideoInput) Dropped() uint64 { return v.buf().Dropped() }

func (v *VideoInput) buf() *frame.Buffer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.buffer
}

// Process returns the most recent buffered frame, for callers that drive
// the input synchronously instead of through StartStream.
func (v *VideoInput) Process(ctx context.Context, input map[string]any) frame.Result {
	if !v.Ready() {
		return frame.Fail(fmt.Sprintf("input '%s' is not initialized", v.ID()))
	}
	f, ok := v.buf().Pop()
	if !ok {
		f, err := v.device.Read(ctx)
		if err != nil {
			v.SetError(err.Error())
			return frame.Fail(err.Error())
		}
		v.Touch()
		return frame.OK(map[string]any{frame.KeyFrame: f}, nil)
	}
	v.Touch()
	return frame.OK(map[string]any{frame.KeyFrame: f}, nil)
}

// Cleanup stops the stream, closes the frame buffer, and closes the device.
func (v *VideoInput) Cleanup() error {
	v.StopStream()
	v.buf().Close()
	err := v.device.Close()
	v.MarkUninitialized()
	return err
}

func (v *VideoInput) InputKinds() []string  { return nil }
func (v *VideoInput) OutputKinds() []string { return []string{node.KindVideo} }

// captureLoop reads frames until the context is cancelled, reconnecting with
// exponential backoff on device errors.
func (v *VideoInput) captureLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	logger := ctxlog.From(ctx).With("node", v.ID())

	delay := reconnectInitialDelay
	attempts := 0
	var ticker *time.Ticker
	if v.interval > 0 {
		ticker = time.NewTicker(v.interval)
		defer ticker.Stop()
	}

	for {
		if ctx.Err() != nil {
			return
		}
		f, err := v.device.Read(ctx)
		switch {
		case err == nil:
			attempts = 0
			delay = reconnectInitialDelay
			if err := v.buf().Push(f); err != nil {
				logger.Debug("Frame buffer closed, capture over.")
				v.SetRunning(false)
				return
			}
			v.Touch()
		case ctx.Err() != nil:
			return
		case err == io.EOF:
			logger.Info("Capture device reached end of stream.")
			v.SetRunning(false)
			return
		default:
			attempts++
			if attempts > reconnectMaxAttempts {
				logger.Error("Giving up on capture device after repeated failures.", "attempts", attempts-1, "error", err)
				v.SetError(err.Error())
				v.SetRunning(false)
				return
			}
			logger.Warn("Capture read failed, reconnecting.", "attempt", attempts, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			v.device.Close()
			if err := v.device.Open(ctx); err != nil {
				logger.Warn("Capture device reopen failed.", "error", err)
			}
			continue
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// SyntheticDevice generates deterministic gradient frames in memory, with
// optional injected objects carried in frame attributes.
type SyntheticDevice struct {
	SourceID string
	Width    int
	Height   int
	Objects  []frame.Detection

	mu   sync.Mutex
	seq  uint64
	open bool
}

// NewSyntheticDevice builds a synthetic device; zero dimensions default to
// 640x480.
func NewSyntheticDevice(sourceID string, width, height int) *SyntheticDevice {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &SyntheticDevice{SourceID: sourceID, Width: width, Height: height}
}

func (d *SyntheticDevice) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	return nil
}

func (d *SyntheticDevice) Read(ctx context.Context) (frame.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return frame.Frame{}, fmt.Errorf("synthetic device '%s' is closed", d.SourceID)
	}
	d.seq++
	image := make([]byte, d.Width)
	for i := range image {
		image[i] = byte((i + int(d.seq)) % 256)
	}
	f := frame.Frame{
		Image:      image,
		Width:      d.Width,
		Height:     d.Height,
		CapturedAt: time.Now(),
		Sequence:   d.seq,
		SourceID:   d.SourceID,
	}
	if len(d.Objects) > 0 {
		f.Attributes = map[string]any{"objects": d.Objects}
	}
	return f, nil
}

func (d *SyntheticDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

// FileDevice replays a still image file as a frame source. With Loop set it
// produces the image indefinitely; otherwise it returns io.EOF after the
// first read.
type FileDevice struct {
	Path string
	Loop bool

	mu    sync.Mutex
	image []byte
	seq   uint64
}

func (d *FileDevice) Open(ctx context.Context) error {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.Path, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.image = data
	d.seq = 0
	return nil
}

func (d *FileDevice) Read(ctx context.Context) (frame.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.image == nil {
		return frame.Frame{}, fmt.Errorf("file device '%s' is closed", d.Path)
	}
	if !d.Loop && d.seq > 0 {
		return frame.Frame{}, io.EOF
	}
	d.seq++
	return frame.Frame{
		Image:      d.image,
		CapturedAt: time.Now(),
		Sequence:   d.seq,
		SourceID:   d.Path,
	}, nil
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.image = nil
	return nil
}
