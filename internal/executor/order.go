package executor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/visionflow/visionflow/internal/config"
)

// ErrCycle is returned when a pipeline's edges form a cycle.
var ErrCycle = errors.New("pipeline graph contains a cycle")

// topoOrder computes a deterministic execution order for the pipeline's
// nodes: topological over the edges, with the declared node order breaking
// ties. Nodes without edges run in declared order.
func topoOrder(p *config.Pipeline) ([]string, error) {
	position := make(map[string]int, len(p.Nodes))
	for i, n := range p.Nodes {
		position[n.ID] = i
	}

	indegree := make(map[string]int, len(p.Nodes))
	successors := make(map[string][]string, len(p.Nodes))
	for _, n := range p.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range p.Edges {
		successors[e.Source] = append(successors[e.Source], e.Target)
		indegree[e.Target]++
	}

	// ready holds the zero-indegree frontier, kept in declared order by
	// insertion-sorting each new entry.
	var ready []string
	admit := func(id string) {
		i := len(ready)
		for i > 0 && position[ready[i-1]] > position[id] {
			i--
		}
		ready = append(ready, "")
		copy(ready[i+1:], ready[i:])
		ready[i] = id
	}
	for _, n := range p.Nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]string, 0, len(p.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, next := range successors[id] {
			if indegree[next]--; indegree[next] == 0 {
				admit(next)
			}
		}
	}

	if len(order) != len(p.Nodes) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: involving nodes %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}
