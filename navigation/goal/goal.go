// Package goal describes where a moving agent wants to go: a fixed point, an entity to reach, or
// an entity to follow. Goals hold entity ids only and are resolved against the world every tick.
package goal

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
	"github.com/16tons/emergency5-sdk-sub029/utils"
)

// Kind selects the variant of a Goal.
type Kind uint8

// The goal variants.
const (
	FixedPoint Kind = iota
	ReachEntity
	FollowEntity
)

func (k Kind) String() string {
	switch k {
	case FixedPoint:
		return "fixed_point"
	case ReachEntity:
		return "reach_entity"
	case FollowEntity:
		return "follow_entity"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{FixedPoint, ReachEntity, FollowEntity} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown goal kind %q", s)
}

// TargetPointID names a TargetPointProvider, e.g. "diver_pickup".
type TargetPointID string

// Goal is a tagged union over Kind. FixedPoint uses Position; ReachEntity uses Target and the
// optional TargetPoint; FollowEntity uses Target. Tolerance is the arrival distance, or the
// distance to keep behind the target when following. Heading, when set, is the orientation the
// agent must end up with.
type Goal struct {
	Kind        Kind          `bson:"kind"`
	Position    r3.Vector     `bson:"position"`
	Target      entity.ID     `bson:"target"`
	TargetPoint TargetPointID `bson:"target_point"`
	Tolerance   float64       `bson:"tolerance"`
	Heading     *float64      `bson:"heading,omitempty"`
}

// NewFixedPoint returns a goal at a world position.
func NewFixedPoint(position r3.Vector, tolerance float64) Goal {
	return Goal{Kind: FixedPoint, Position: position, Target: entity.Uninitialized, Tolerance: tolerance}
}

// NewReachEntity returns a goal to reach target, at the point named by point. An empty point
// means the target's own position.
func NewReachEntity(target entity.ID, point TargetPointID, tolerance float64) Goal {
	return Goal{Kind: ReachEntity, Target: target, TargetPoint: point, Tolerance: tolerance}
}

// NewFollowEntity returns a goal to keep following target at distance.
func NewFollowEntity(target entity.ID, distance float64) Goal {
	return Goal{Kind: FollowEntity, Target: target, Tolerance: distance}
}

// WithHeading returns a copy of g that requires the agent to face heading on arrival.
func (g Goal) WithHeading(heading float64) Goal {
	wrapped := spatialmath.WrapToPi(heading)
	g.Heading = &wrapped
	return g
}

// Validate checks that the fields used by the goal's kind are set.
func (g Goal) Validate() error {
	if g.Tolerance < 0 {
		return utils.NewNegativeValueError("goal tolerance", g.Tolerance)
	}
	switch g.Kind {
	case FixedPoint:
		return nil
	case ReachEntity, FollowEntity:
		if !g.Target.IsValid() {
			return errors.Errorf("%v goal needs a target entity", g.Kind)
		}
		return nil
	default:
		return errors.Errorf("unknown goal kind %d", g.Kind)
	}
}

// FollowedEntity returns the target of a follow goal, or entity.Uninitialized otherwise.
func (g Goal) FollowedEntity() entity.ID {
	if g.Kind != FollowEntity {
		return entity.Uninitialized
	}
	return g.Target
}

// Completes returns whether reaching the goal ends the movement. Follow goals never complete.
func (g Goal) Completes() bool {
	return g.Kind != FollowEntity
}
