package path

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/16tons/emergency5-sdk-sub029/entity"
)

// ErrNoPath is returned (possibly wrapped) by a Router that cannot connect start and goal.
var ErrNoPath = errors.New("no path found")

// NewNoPathError wraps ErrNoPath with the endpoints of the failed request.
func NewNoPathError(req Request) error {
	return errors.Wrapf(ErrNoPath, "from %v to %v", req.Start, req.Goal)
}

// Request asks a Router for a path.
type Request struct {
	Agent        entity.ID
	Start        r3.Vector
	StartHeading float64
	Goal         r3.Vector
	// Tolerance is how close to Goal the path has to end.
	Tolerance float64
	// CornerRadius is applied to interior nodes of the returned path.
	CornerRadius float64
	// Relaxed allows the router to end the path at the reachable point closest to Goal.
	Relaxed bool
}

// Router computes paths.
type Router interface {
	FindPath(ctx context.Context, req Request) (*Path, error)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(ctx context.Context, req Request) (*Path, error)

// FindPath calls f.
func (f RouterFunc) FindPath(ctx context.Context, req Request) (*Path, error) {
	return f(ctx, req)
}
