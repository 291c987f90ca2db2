// Package router provides reference implementations of path.Router.
package router

import (
	"context"

	"github.com/16tons/emergency5-sdk-sub029/navigation/path"
)

// Direct routes in a straight line from start to goal. It is used for open terrain and in tests.
type Direct struct{}

// FindPath returns the two-node path start -> goal.
func (Direct) FindPath(ctx context.Context, req path.Request) (*path.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return path.FromPositions(req.Start, req.Goal)
}
