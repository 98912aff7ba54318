package executor

import (
	"context"
	"errors"
	"time"

	"github.com/visionflow/visionflow/internal/config"
	"github.com/visionflow/visionflow/internal/frame"
	"github.com/visionflow/visionflow/internal/node"
)

// graph is the immutable execution plan handed to the loop goroutine.
type graph struct {
	order   []string
	nodes   map[string]node.Node
	sources map[string]node.Source
	edges   map[string][]config.EdgeConfig
}

// run is the pipeline loop. One tick polls every source, processes the
// graph in execution order, and publishes results. Ticks with no source
// frame pace but do not count. The loop exits only on context
// cancellation.
func (e *Executor) run(ctx context.Context, done chan struct{}, g graph) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if e.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(pausePoll):
			}
			continue
		}

		started := time.Now()
		if produced := e.tick(ctx, g, started); produced {
			e.st.recordTick(time.Since(started), started)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one pass over the graph. It reports whether any source
// produced a frame.
func (e *Executor) tick(ctx context.Context, g graph, now time.Time) bool {
	outputs := make(map[string]map[string]any, len(g.order))
	name := e.cfg.Name

	produced := false
	var droppedTotal uint64
	for id, src := range g.sources {
		if f, ok := src.NextFrame(); ok {
			outputs[id] = map[string]any{frame.KeyFrame: f}
			produced = true
		}
		type dropCounter interface{ Dropped() uint64 }
		if dc, ok := src.(dropCounter); ok {
			droppedTotal += dc.Dropped()
		}
	}
	e.st.setDropped(droppedTotal)
	if !produced {
		return false
	}

	for _, id := range g.order {
		if ctx.Err() != nil {
			return produced
		}
		if _, isSource := g.sources[id]; isSource {
			continue
		}

		input, ok := e.upstreamPayload(g, outputs, id)
		if !ok {
			continue
		}

		result := g.nodes[id].Process(ctx, input)
		if !result.Success {
			e.st.recordError()
			err := errors.New(result.Err)
			e.logger.Warn("Node processing failed.", "node", id, "error", result.Err)
			nodeID := id
			e.dispatcher.publish(func(s Subscriber) { s.OnError(name, nodeID, err) })
			continue
		}
		outputs[id] = result.Payload
		if dets := frame.Detections(result.Payload); len(dets) > 0 {
			e.st.recordDetections(len(dets))
		}

		if report, ok := result.Payload[keyAnalytics].(map[string]any); ok {
			nodeID := id
			e.dispatcher.publish(func(s Subscriber) { s.OnAnalytics(name, nodeID, report) })
		}
	}

	final := e.finalPayload(g, outputs)
	e.dispatcher.publish(func(s Subscriber) { s.OnFrameProcessed(name, final) })
	return produced
}

// keyAnalytics mirrors the payload key analytics nodes publish under,
// without importing the catalog package.
const keyAnalytics = "analytics"

// upstreamPayload resolves a node's input for this tick: the output of the
// first incoming edge, in declared order, whose source produced one.
func (e *Executor) upstreamPayload(g graph, outputs map[string]map[string]any, id string) (map[string]any, bool) {
	for _, edge := range g.edges[id] {
		if payload, ok := outputs[edge.Source]; ok {
			return payload, true
		}
	}
	return nil, false
}

// finalPayload is the tick's published result: the output of the last node
// in execution order that produced one.
func (e *Executor) finalPayload(g graph, outputs map[string]map[string]any) map[string]any {
	for i := len(g.order) - 1; i >= 0; i-- {
		if payload, ok := outputs[g.order[i]]; ok {
			return payload
		}
	}
	return nil
}
