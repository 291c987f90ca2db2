// Package sim runs navigation scenarios: a world of entities, a router and a set of move orders
// ticked by an actions.Scheduler until every order finishes.
package sim

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/16tons/emergency5-sdk-sub029/config"
	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/movement"
	"github.com/16tons/emergency5-sdk-sub029/navigation/goal"
)

// Scenario is a world and the orders given in it.
type Scenario struct {
	Name       string  `json:"name"`
	TickMS     int     `json:"tick_ms"`
	MaxTicks   int     `json:"max_ticks"`
	GameSpeed  float64 `json:"game_speed,omitempty"`
	StepHeight float64 `json:"step_height,omitempty"`
	// Debug logs this scenario's debug output regardless of the logger level.
	Debug bool `json:"debug,omitempty"`

	Entities  []EntitySpec   `json:"entities"`
	Grounds   []GroundSpec   `json:"grounds,omitempty"`
	Waypoints []WaypointSpec `json:"waypoints,omitempty"`
	Edges     []EdgeSpec     `json:"edges,omitempty"`
	// TargetPoints are named offsets in a target's local frame, like "rear door".
	TargetPoints map[string]r3.Vector `json:"target_points,omitempty"`

	Orders []OrderSpec `json:"orders"`
}

// EntitySpec places an entity.
type EntitySpec struct {
	ID       uint32    `json:"id"`
	Kind     string    `json:"kind"`
	Position r3.Vector `json:"position"`
	Heading  float64   `json:"heading,omitempty"`
	// Blocked entities ignore pose writes, as if they were wedged in.
	Blocked bool `json:"blocked,omitempty"`
}

// GroundSpec is a walkable box; its top face is the ground surface.
type GroundSpec struct {
	ID  uint32    `json:"id"`
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// WaypointSpec is a node of the routing graph.
type WaypointSpec struct {
	ID       int64     `json:"id"`
	Position r3.Vector `json:"position"`
}

// EdgeSpec connects two waypoints both ways.
type EdgeSpec struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// FollowWaitSpec makes a follower hold up the entity it follows.
type FollowWaitSpec struct {
	Distance float64 `json:"distance"`
	WaitSec  float64 `json:"wait_sec"`
}

// OrderSpec is one move order.
type OrderSpec struct {
	Agent       uint32    `json:"agent"`
	Goal        string    `json:"goal" jsonschema:"enum=fixed_point,enum=reach_entity,enum=follow_entity"`
	Position    r3.Vector `json:"position,omitempty"`
	Target      uint32    `json:"target,omitempty"`
	TargetPoint string    `json:"target_point,omitempty"`
	Tolerance   float64   `json:"tolerance,omitempty"`
	Heading     *float64  `json:"heading,omitempty"`
	// Mode names a movement mode; empty uses the agent's default.
	Mode       string `json:"mode,omitempty"`
	MaxTimeSec float64 `json:"max_time_sec,omitempty"`
	StuckCheck string  `json:"stuck_check,omitempty"`
	// Path replaces the initial planning with a precomputed path. Without a goal the agent
	// follows it to its end.
	Path       []r3.Vector     `json:"path,omitempty"`
	FollowWait *FollowWaitSpec `json:"follow_wait,omitempty"`
}

// ReadScenario reads a scenario from a json5 file.
func ReadScenario(filePath string) (*Scenario, error) {
	var scn Scenario
	if err := config.ReadFile(filePath, &scn); err != nil {
		return nil, errors.Wrapf(err, "failed to read scenario %q", filePath)
	}
	if err := scn.Validate(); err != nil {
		return nil, err
	}
	return &scn, nil
}

// Tick returns the tick duration.
func (s *Scenario) Tick() time.Duration {
	return time.Duration(s.TickMS) * time.Millisecond
}

// Validate returns every problem of the scenario.
func (s *Scenario) Validate() error {
	var errs error
	if s.TickMS <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError("", "tick_ms"))
	}
	if s.MaxTicks <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError("", "max_ticks"))
	}
	if s.GameSpeed < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError("game_speed", errors.New("cannot be negative")))
	}

	ids := map[uint32]bool{}
	for idx, e := range s.Entities {
		path := fmt.Sprintf("%s.%d", "entities", idx)
		if !entity.ID(e.ID).IsValid() {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("reserved entity id")))
		}
		if e.Kind == "" {
			errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "kind"))
		}
		if ids[e.ID] {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.Errorf("duplicate entity id %d", e.ID)))
		}
		ids[e.ID] = true
	}
	for idx, g := range s.Grounds {
		path := fmt.Sprintf("%s.%d", "grounds", idx)
		if ids[g.ID] {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.Errorf("duplicate entity id %d", g.ID)))
		}
		ids[g.ID] = true
		if g.Max.X <= g.Min.X || g.Max.Y <= g.Min.Y {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("ground has no area")))
		}
	}

	waypoints := map[int64]bool{}
	for _, w := range s.Waypoints {
		waypoints[w.ID] = true
	}
	for idx, e := range s.Edges {
		if !waypoints[e.From] || !waypoints[e.To] {
			errs = multierr.Append(errs, utils.NewConfigValidationError(fmt.Sprintf("%s.%d", "edges", idx),
				errors.Errorf("edge %d-%d references an unknown waypoint", e.From, e.To)))
		}
	}

	if len(s.Orders) == 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError("", "orders"))
	}
	agents := map[uint32]bool{}
	for idx := range s.Orders {
		path := fmt.Sprintf("%s.%d", "orders", idx)
		order := &s.Orders[idx]
		if !ids[order.Agent] {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.Errorf("unknown agent %d", order.Agent)))
		}
		if agents[order.Agent] {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("agent %d has more than one order", order.Agent)))
		}
		agents[order.Agent] = true
		if err := order.Validate(path); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Validate ensures all parts of the order are valid.
func (o *OrderSpec) Validate(path string) error {
	if o.Goal == "" && len(o.Path) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "goal")
	}
	if o.Goal != "" {
		g, err := o.goal()
		if err != nil {
			return utils.NewConfigValidationError(path, err)
		}
		if err := g.Validate(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if o.MaxTimeSec < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_time_sec cannot be negative"))
	}
	if _, err := movement.ParseStuckCheckMode(o.StuckCheck); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if o.FollowWait != nil {
		if o.Goal != goal.FollowEntity.String() {
			return utils.NewConfigValidationError(path, errors.New("follow_wait needs a follow_entity goal"))
		}
		if o.FollowWait.Distance <= 0 || o.FollowWait.WaitSec <= 0 {
			return utils.NewConfigValidationError(path, errors.New("follow_wait needs a positive distance and wait_sec"))
		}
	}
	return nil
}

// goal builds the navigation goal of the order, or nil for path-only orders.
func (o *OrderSpec) goal() (*goal.Goal, error) {
	if o.Goal == "" {
		return nil, nil
	}
	kind, err := goal.ParseKind(o.Goal)
	if err != nil {
		return nil, err
	}
	var g goal.Goal
	switch kind {
	case goal.FixedPoint:
		g = goal.NewFixedPoint(o.Position, o.Tolerance)
	case goal.ReachEntity:
		g = goal.NewReachEntity(entity.ID(o.Target), goal.TargetPointID(o.TargetPoint), o.Tolerance)
	case goal.FollowEntity:
		g = goal.NewFollowEntity(entity.ID(o.Target), o.Tolerance)
	}
	if o.Heading != nil {
		g = g.WithHeading(*o.Heading)
	}
	return &g, nil
}

// MaxTime returns MaxTimeSec as a duration.
func (o *OrderSpec) MaxTime() time.Duration {
	return time.Duration(o.MaxTimeSec * float64(time.Second))
}
