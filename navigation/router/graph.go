package router

import (
	"context"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	gpath "gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/16tons/emergency5-sdk-sub029/logging"
	"github.com/16tons/emergency5-sdk-sub029/navigation/path"
)

// Graph routes over an undirected waypoint graph with A*. Start and goal connect to their nearest
// waypoints; a goal farther than MaxSnapDistance from every waypoint is unreachable unless the
// request is relaxed, in which case the path ends at the reachable waypoint closest to the goal.
type Graph struct {
	// MaxSnapDistance bounds how far start and goal may be from the graph. Zero means unbounded.
	MaxSnapDistance float64

	mu        sync.RWMutex
	g         *simple.WeightedUndirectedGraph
	positions map[int64]r3.Vector
	logger    logging.Logger
}

// NewGraph returns an empty waypoint graph.
func NewGraph(maxSnapDistance float64, logger logging.Logger) *Graph {
	return &Graph{
		MaxSnapDistance: maxSnapDistance,
		g:               simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		positions:       map[int64]r3.Vector{},
		logger:          logger,
	}
}

// AddWaypoint adds a waypoint.
func (r *Graph) AddWaypoint(id int64, position r3.Vector) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.g.Node(id) != nil {
		return errors.Errorf("waypoint %d already exists", id)
	}
	r.g.AddNode(simple.Node(id))
	r.positions[id] = position
	return nil
}

// Connect adds an edge between two waypoints weighted by their distance.
func (r *Graph) Connect(a, b int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pa, okA := r.positions[a]
	pb, okB := r.positions[b]
	if !okA || !okB {
		return errors.Errorf("cannot connect unknown waypoints %d and %d", a, b)
	}
	if a == b {
		return errors.Errorf("cannot connect waypoint %d to itself", a)
	}
	r.g.SetWeightedEdge(r.g.NewWeightedEdge(simple.Node(a), simple.Node(b), pa.Sub(pb).Norm()))
	return nil
}

// Disconnect removes the edge between two waypoints, e.g. when a road gets blocked.
func (r *Graph) Disconnect(a, b int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.g.RemoveEdge(a, b)
}

// nearest returns the waypoint closest to p and its distance, preferring the lowest id on ties.
func (r *Graph) nearest(p r3.Vector) (int64, float64, bool) {
	best, bestDist, found := int64(0), math.Inf(1), false
	for id, pos := range r.positions {
		d := pos.Sub(p).Norm()
		if d < bestDist || (d == bestDist && id < best) {
			best, bestDist, found = id, d, true
		}
	}
	return best, bestDist, found
}

func (r *Graph) snappable(dist float64) bool {
	return r.MaxSnapDistance <= 0 || dist <= r.MaxSnapDistance
}

// FindPath implements path.Router.
func (r *Graph) FindPath(ctx context.Context, req path.Request) (*path.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	startID, startDist, ok := r.nearest(req.Start)
	if !ok || !r.snappable(startDist) {
		return nil, errors.Wrap(path.NewNoPathError(req), "start is off the waypoint graph")
	}
	goalID, goalDist, _ := r.nearest(req.Goal)
	goalOnGraph := r.snappable(goalDist)

	heuristic := func(x, y graph.Node) float64 {
		return r.positions[x.ID()].Sub(r.positions[y.ID()]).Norm()
	}
	var route []graph.Node
	if goalOnGraph {
		shortest, _ := gpath.AStar(simple.Node(startID), simple.Node(goalID), r.g, heuristic)
		route, _ = shortest.To(goalID)
	}

	reachesGoal := len(route) > 0
	if !reachesGoal {
		if !req.Relaxed {
			return nil, path.NewNoPathError(req)
		}
		route = r.closestReachable(startID, req.Goal)
		r.logger.CDebugw(ctx, "relaxed route", "agent", req.Agent, "goal", req.Goal, "end", r.positions[route[len(route)-1].ID()])
	}

	positions := []r3.Vector{req.Start}
	for _, n := range route {
		positions = append(positions, r.positions[n.ID()])
	}
	if reachesGoal {
		positions = append(positions, req.Goal)
	}
	p, err := path.FromPositions(positions...)
	if err != nil {
		return nil, err
	}
	return p.Smoothed(req.CornerRadius), nil
}

// closestReachable returns the route from start to the waypoint reachable from start that is
// closest to goal.
func (r *Graph) closestReachable(startID int64, goal r3.Vector) []graph.Node {
	shortest := gpath.DijkstraFrom(simple.Node(startID), r.g)
	best, bestDist := startID, r.positions[startID].Sub(goal).Norm()
	for id, pos := range r.positions {
		if math.IsInf(shortest.WeightTo(id), 1) {
			continue
		}
		d := pos.Sub(goal).Norm()
		if d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	route, _ := shortest.To(best)
	return route
}
