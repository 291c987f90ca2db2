// Package path defines the waypoint paths produced by a Router and consumed by movement actions.
package path

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// NodeFlags are per-node movement hints.
type NodeFlags uint8

const (
	// FlagBackwards marks the leg starting at this node as driven in reverse: the agent keeps
	// facing the previous node while it moves.
	FlagBackwards NodeFlags = 1 << iota
)

// Has returns whether all bits of flag are set.
func (f NodeFlags) Has(flag NodeFlags) bool {
	return f&flag == flag
}

// Node is one waypoint. A positive Radius asks for the corner at this node to be rounded into an
// arc of that radius.
type Node struct {
	Position r3.Vector `bson:"position" json:"position"`
	Radius   float64   `bson:"radius" json:"radius"`
	Flags    NodeFlags `bson:"flags" json:"flags"`
}

// Path is an immutable, non-empty sequence of nodes.
type Path struct {
	nodes []Node
}

// New returns a path over a copy of nodes.
func New(nodes ...Node) (*Path, error) {
	if len(nodes) == 0 {
		return nil, errors.New("a path needs at least one node")
	}
	for i, n := range nodes {
		if !finite(n.Position) {
			return nil, errors.Errorf("node %d has a non-finite position", i)
		}
		if n.Radius < 0 || math.IsNaN(n.Radius) || math.IsInf(n.Radius, 0) {
			return nil, errors.Errorf("node %d has invalid radius %v", i, n.Radius)
		}
	}
	return &Path{nodes: append([]Node(nil), nodes...)}, nil
}

// FromPositions returns a path with one sharp-cornered node per position.
func FromPositions(positions ...r3.Vector) (*Path, error) {
	nodes := make([]Node, 0, len(positions))
	for _, p := range positions {
		nodes = append(nodes, Node{Position: p})
	}
	return New(nodes...)
}

func finite(v r3.Vector) bool {
	for _, f := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Nodes returns a copy of the nodes.
func (p *Path) Nodes() []Node {
	return append([]Node(nil), p.nodes...)
}

// Len returns the number of nodes.
func (p *Path) Len() int {
	return len(p.nodes)
}

// Node returns the node at index i.
func (p *Path) Node(i int) Node {
	return p.nodes[i]
}

// Start returns the position of the first node.
func (p *Path) Start() r3.Vector {
	return p.nodes[0].Position
}

// End returns the position of the last node.
func (p *Path) End() r3.Vector {
	return p.nodes[len(p.nodes)-1].Position
}

// Length returns the length of the polyline through all nodes, ignoring corner radii.
func (p *Path) Length() float64 {
	var length float64
	for i := 1; i < len(p.nodes); i++ {
		length += p.nodes[i].Position.Sub(p.nodes[i-1].Position).Norm()
	}
	return length
}

// Remaining returns a new Path equal to the given path from the node index onwards.
func (p *Path) Remaining(index int) (*Path, error) {
	if index < 0 {
		return nil, errors.New("could not access path with negative node index")
	}
	if index >= len(p.nodes) {
		return nil, errors.Errorf("could not access path index %d, must be less than %d", index, len(p.nodes))
	}
	return &Path{nodes: append([]Node(nil), p.nodes[index:]...)}, nil
}

// Smoothed returns a copy where every interior node without a radius of its own gets radius.
// The first and last nodes stay sharp.
func (p *Path) Smoothed(radius float64) *Path {
	nodes := p.Nodes()
	if radius > 0 {
		for i := 1; i < len(nodes)-1; i++ {
			if nodes[i].Radius == 0 {
				nodes[i].Radius = radius
			}
		}
	}
	return &Path{nodes: nodes}
}

func (p *Path) String() string {
	parts := make([]string, 0, len(p.nodes))
	for _, n := range p.nodes {
		parts = append(parts, fmt.Sprintf("(%.2f, %.2f, %.2f r=%.2f)", n.Position.X, n.Position.Y, n.Position.Z, n.Radius))
	}
	return strings.Join(parts, " -> ")
}
