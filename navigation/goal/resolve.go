package goal

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/16tons/emergency5-sdk-sub029/entity"
)

var (
	// ErrTargetLost is returned when the goal's target entity no longer exists.
	ErrTargetLost = errors.New("navigation goal target lost")
	// ErrUnknownTargetPoint is returned when no provider is registered for a target point.
	ErrUnknownTargetPoint = errors.New("unknown target point")
)

// TargetPointProvider turns "reach entity X" into a concrete approach position.
type TargetPointProvider interface {
	TargetPoint(world entity.World, agent, target entity.ID) (r3.Vector, error)
}

// TargetPointFunc adapts a function to the TargetPointProvider interface.
type TargetPointFunc func(world entity.World, agent, target entity.ID) (r3.Vector, error)

// TargetPoint calls f.
func (f TargetPointFunc) TargetPoint(world entity.World, agent, target entity.ID) (r3.Vector, error) {
	return f(world, agent, target)
}

// OffsetProvider approaches a fixed point in the target's local frame (+X forward, +Y left).
type OffsetProvider struct {
	Offset r3.Vector
}

// TargetPoint returns the offset transformed by the target's pose.
func (p OffsetProvider) TargetPoint(world entity.World, agent, target entity.ID) (r3.Vector, error) {
	pose, ok := world.Pose(target)
	if !ok {
		return r3.Vector{}, errors.Wrapf(ErrTargetLost, "target %v", target)
	}
	return pose.Transform(p.Offset), nil
}

// Providers maps target point names to providers.
type Providers map[TargetPointID]TargetPointProvider

// Resolved is a goal evaluated against the current world.
type Resolved struct {
	Position  r3.Vector
	Tolerance float64
	Heading   *float64
}

// Resolve evaluates g for agent. It returns an error wrapping ErrTargetLost when the goal's
// target no longer resolves; that is never retried.
func Resolve(g Goal, world entity.World, providers Providers, agent entity.ID) (Resolved, error) {
	resolved := Resolved{Tolerance: g.Tolerance, Heading: g.Heading}
	switch g.Kind {
	case FixedPoint:
		resolved.Position = g.Position
		return resolved, nil
	case ReachEntity:
		pose, ok := world.Pose(g.Target)
		if !ok {
			return Resolved{}, errors.Wrapf(ErrTargetLost, "target %v", g.Target)
		}
		if g.TargetPoint == "" {
			resolved.Position = pose.Point
			return resolved, nil
		}
		provider, ok := providers[g.TargetPoint]
		if !ok {
			return Resolved{}, errors.Wrapf(ErrUnknownTargetPoint, "%q", g.TargetPoint)
		}
		point, err := provider.TargetPoint(world, agent, g.Target)
		if err != nil {
			return Resolved{}, errors.Wrapf(err, "target point %q", g.TargetPoint)
		}
		resolved.Position = point
		return resolved, nil
	case FollowEntity:
		pose, ok := world.Pose(g.Target)
		if !ok {
			return Resolved{}, errors.Wrapf(ErrTargetLost, "followed entity %v", g.Target)
		}
		resolved.Position = pose.Point
		return resolved, nil
	default:
		return Resolved{}, errors.Errorf("unknown goal kind %d", g.Kind)
	}
}
