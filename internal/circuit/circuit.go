package circuit

import (
	"net/http"

	"github.com/vyrodovalexey/rebound/internal/rebound"
)

// FallbackOrdinal is the ordinal of the synthetic fallback node.
const FallbackOrdinal = -1

// FallbackStatus is the status of the synthetic fallback node.
const FallbackStatus = http.StatusBadGateway

// Node is one compiled rule.
type Node struct {
	// Ordinal is the declaration index of the rule, or FallbackOrdinal.
	Ordinal int

	// Name is the optional rule name.
	Name string

	Predicate *Predicate
	Action    Action

	// Synthetic marks the fallback node appended by Build.
	Synthetic bool
}

// Matches reports whether the node's predicate accepts the request.
func (n *Node) Matches(req *rebound.Request) bool {
	return n.Predicate.Match(req)
}

// Circuit is an ordered, immutable sequence of nodes whose last node is
// always a catch-all.
type Circuit struct {
	nodes []*Node
}

// Lookup returns the first node matching the request. It returns nil
// only for a Circuit that was not produced by Build.
func (c *Circuit) Lookup(req *rebound.Request) *Node {
	for _, n := range c.nodes {
		if n.Matches(req) {
			return n
		}
	}
	return nil
}

// Nodes returns a copy of the node sequence in evaluation order.
func (c *Circuit) Nodes() []*Node {
	return append([]*Node(nil), c.nodes...)
}

// Fallback returns the last node, which matches every request.
func (c *Circuit) Fallback() *Node {
	if len(c.nodes) == 0 {
		return nil
	}
	return c.nodes[len(c.nodes)-1]
}

// Len returns the number of nodes, the synthetic fallback included.
func (c *Circuit) Len() int {
	return len(c.nodes)
}
