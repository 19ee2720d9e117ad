// Package graph implements the processing graph registry and the
// puller that drives a sink node with sequential, prioritized frame
// requests.
package graph

import (
	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/node"
)

// Graph is a dense registry of nodes, assigned IDs in construction
// order. It exists so a demonstration binary or future pipeline
// description surface has one place to look a node up by ID; nothing
// in Pull itself consults the Graph — every node already holds direct
// references to its upstreams via node.InputProcessingNode.
type Graph struct {
	nodes []node.Node
}

// New builds an empty Graph.
func New() *Graph { return &Graph{} }

// Add registers n and returns the dense ID it was assigned.
func (g *Graph) Add(n node.Node) node.ID {
	id := node.ID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	return id
}

// Node looks up a previously Added node by ID.
func (g *Graph) Node(id node.ID) (node.Node, bool) {
	if int(id) < 0 || int(id) >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[int(id)], true
}

// Len reports how many nodes are registered.
func (g *Graph) Len() int { return len(g.nodes) }

// Validate confirms the registry is non-empty when a caller expects a
// runnable graph. It does not walk node inputs: it neither checks that
// each upstream was itself Added nor looks for cycles. Construction order
// already rules out cycles, because a node can only reference an
// upstream Node value that exists at the time it is built.
func (g *Graph) Validate() error {
	if len(g.nodes) == 0 {
		return recorder.New(recorder.KindConfig, "graph: no nodes registered")
	}
	return nil
}
