// Package move implements MoveAction, the action that drives one entity along a planned path to a
// goal. It plans through a path.Router, follows the smoothed path at the speed of its movement
// mode and recovers from getting stuck by replanning a bounded number of times.
package move

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/16tons/emergency5-sdk-sub029/actions"
	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/logging"
	"github.com/16tons/emergency5-sdk-sub029/movement"
	"github.com/16tons/emergency5-sdk-sub029/navigation/goal"
	"github.com/16tons/emergency5-sdk-sub029/navigation/path"
	"github.com/16tons/emergency5-sdk-sub029/navigation/segmenter"
	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
	"github.com/16tons/emergency5-sdk-sub029/utils"
)

const (
	// arrivalEpsilon absorbs float error when comparing the final position against the tolerance.
	arrivalEpsilon = 1e-3
	// headingEpsilon is the smallest horizontal direction that still defines a heading.
	headingEpsilon = 1e-9
)

// Dependencies are the collaborators a MoveAction reads and writes. World, Router and Modes are
// required; the others switch off their feature when nil.
type Dependencies struct {
	World     entity.World
	Router    path.Router
	Modes     movement.Resolver
	Providers goal.Providers
	Ground    entity.GroundTracer
	WaitBoard *WaitBoard
	Signaler  Signaler
}

type forcedWait struct {
	distance float64
	wait     time.Duration
}

type groundTrace struct {
	valid   bool
	lastPos r3.Vector
	ground  entity.ID
}

// MoveAction moves one agent to a goal. It is driven by an actions.Scheduler and is not safe for
// concurrent use.
type MoveAction struct {
	agent  entity.ID
	deps   Dependencies
	cfg    Config
	logger logging.Logger

	goal        *goal.Goal
	modeID      movement.ModeID
	initialPath *path.Path
	maxMoveTime time.Duration
	started     bool

	mode               movement.Mode
	stuckCheck         movement.StuckCheckMode
	stuckCheckOverride bool

	state   State
	reason  FailureReason
	err     error
	history []StatusChange

	path       *path.Path
	seg        *segmenter.Segmenter
	pathLength float64
	offset     float64
	consumed   float64
	plannedFor r3.Vector
	relaxed    bool

	elapsed     time.Duration
	retries     int
	replanCount int

	stuckAnchor r3.Vector
	stuckTime   time.Duration
	pauseLeft   time.Duration

	signaled  bool
	forceWait *forcedWait
	trace     groundTrace
}

// New returns a MoveAction for agent. It has to be initialized with Init before it is scheduled.
func New(agent entity.ID, deps Dependencies, cfg Config, logger logging.Logger) (*MoveAction, error) {
	if !agent.IsValid() {
		return nil, errors.New("move action needs a valid agent")
	}
	if deps.World == nil || deps.Router == nil || deps.Modes == nil {
		return nil, errors.New("move action needs a world, a router and movement modes")
	}
	if err := cfg.Validate("move"); err != nil {
		return nil, err
	}
	return &MoveAction{
		agent:  agent,
		deps:   deps,
		cfg:    cfg,
		logger: logger.Sublogger(agent.String()),
		modeID: movement.Uninitialized,
	}, nil
}

// Init sets what to move to. Either g or p has to be given. With only p the agent follows the
// given path and any replanning targets its end. A zero maxMoveTime means no time limit.
// Calling Init on a started action restarts it with the new parameters. Forced wait settings
// belong to the previous goal and are dropped; a failed Init changes nothing.
func (a *MoveAction) Init(g *goal.Goal, modeID movement.ModeID, p *path.Path, maxMoveTime time.Duration) error {
	if g == nil && p == nil {
		return errors.New("move action needs a goal or a path")
	}
	if maxMoveTime < 0 {
		return utils.NewNegativeValueError("max move time", maxMoveTime.Seconds())
	}
	var copied *goal.Goal
	if g != nil {
		if err := g.Validate(); err != nil {
			return err
		}
		c := *g
		copied = &c
	}
	a.goal = copied
	a.forceWait = nil
	a.modeID = modeID
	a.initialPath = p
	a.maxMoveTime = maxMoveTime
	a.reset()
	if a.started {
		return a.begin()
	}
	return nil
}

func (a *MoveAction) reset() {
	a.state = Uninitialized
	a.reason = NoFailure
	a.err = nil
	a.history = nil
	a.path = nil
	a.seg = nil
	a.pathLength = 0
	a.offset = 0
	a.consumed = 0
	a.plannedFor = r3.Vector{}
	a.relaxed = false
	a.elapsed = 0
	a.retries = 0
	a.replanCount = 0
	a.stuckTime = 0
	a.pauseLeft = 0
	a.trace = groundTrace{}
	a.releaseSideEffects()
}

// begin resolves the movement mode and enters the first active state.
func (a *MoveAction) begin() error {
	if a.goal == nil && a.initialPath == nil {
		return errors.New("move action started without Init")
	}
	mode, err := a.deps.Modes.Resolve(a.modeID, a.agent)
	if err != nil {
		return errors.Wrapf(err, "resolving movement mode for %v", a.agent)
	}
	a.mode = mode
	if !a.stuckCheckOverride {
		a.stuckCheck = mode.StuckCheck
	}
	pose, ok := a.deps.World.Pose(a.agent)
	if !ok {
		return errors.Wrapf(ErrAgentLost, "entity %v", a.agent)
	}
	a.stuckAnchor = pose.Point
	if a.initialPath != nil {
		target := a.initialPath.End()
		if a.goal != nil {
			if resolved, err := goal.Resolve(*a.goal, a.deps.World, a.deps.Providers, a.agent); err == nil {
				target = resolved.Position
			}
		}
		a.adoptPath(a.initialPath, target)
		a.setState(Moving, "precomputed path")
		return nil
	}
	a.setState(Planning, "started")
	return nil
}

// OnStartup resolves the movement mode and starts planning.
func (a *MoveAction) OnStartup(ctx context.Context) error {
	a.started = true
	if err := a.begin(); err != nil {
		return err
	}
	a.logger.CDebugw(ctx, "move started", "mode", a.mode.Name, "state", a.state.String())
	return nil
}

// OnShutdown drops all per-movement side effects. An action shut down before it finished counts
// as aborted.
func (a *MoveAction) OnShutdown() {
	if !a.state.Terminal() && a.state != Uninitialized {
		a.setState(Aborted, "shut down")
	}
	a.stuckTime = 0
	a.pauseLeft = 0
	a.trace = groundTrace{}
	a.releaseSideEffects()
	a.started = false
}

func (a *MoveAction) releaseSideEffects() {
	if a.signaled && a.deps.Signaler != nil {
		a.deps.Signaler.SetEmergencyOperations(a.agent, false)
	}
	a.signaled = false
	if a.deps.WaitBoard != nil {
		a.deps.WaitBoard.Release(a.agent)
	}
}

// Update advances the movement by one tick.
func (a *MoveAction) Update(ctx context.Context, clock actions.Clock) actions.Result {
	switch a.state {
	case Arrived:
		return actions.Done
	case Failed, Aborted:
		return actions.Failed
	case Uninitialized:
		return a.fail(ctx, InvalidPath, ErrNotStarted)
	case Planning, Moving, StuckRetry:
	}
	if err := ctx.Err(); err != nil {
		a.err = err
		a.setState(Aborted, "context done")
		return actions.Failed
	}

	a.elapsed += clock.Delta
	if a.maxMoveTime > 0 && a.elapsed > a.maxMoveTime {
		return a.fail(ctx, Timeout, errors.Wrapf(ErrTimeout, "after %v", a.maxMoveTime))
	}

	resolved, err := a.resolveGoal()
	if err != nil {
		if errors.Is(err, goal.ErrTargetLost) {
			return a.fail(ctx, TargetLost, err)
		}
		return a.fail(ctx, InvalidPath, err)
	}

	if a.state == Moving && a.goalMoved(resolved) {
		a.setState(Planning, "goal moved")
	}

	switch a.state {
	case StuckRetry:
		a.pauseLeft -= clock.Delta
		if a.pauseLeft <= 0 {
			a.pauseLeft = 0
			a.setState(Planning, "retry pause over")
		}
		return actions.Running
	case Planning:
		if result := a.plan(ctx, resolved); a.state != Moving {
			return result
		}
		return a.move(ctx, clock, resolved)
	default:
		return a.move(ctx, clock, resolved)
	}
}

// resolveGoal evaluates the goal, or the end of the precomputed path when there is no goal.
func (a *MoveAction) resolveGoal() (goal.Resolved, error) {
	if a.goal != nil {
		return goal.Resolve(*a.goal, a.deps.World, a.deps.Providers, a.agent)
	}
	return goal.Resolved{Position: a.initialPath.End()}, nil
}

func (a *MoveAction) goalMoved(resolved goal.Resolved) bool {
	return resolved.Position.Sub(a.plannedFor).Norm() > a.cfg.MinDistanceForRetry
}

// plan asks the router for a path from the current pose. A failed strict request is retried
// once in relaxed mode before the goal is declared unreachable.
func (a *MoveAction) plan(ctx context.Context, resolved goal.Resolved) actions.Result {
	pose, ok := a.deps.World.Pose(a.agent)
	if !ok {
		return a.fail(ctx, AgentLost, errors.Wrapf(ErrAgentLost, "entity %v", a.agent))
	}
	req := path.Request{
		Agent:        a.agent,
		Start:        pose.Point,
		StartHeading: pose.Heading,
		Goal:         resolved.Position,
		Tolerance:    resolved.Tolerance,
		CornerRadius: a.mode.CornerRadius,
	}
	p, err := a.deps.Router.FindPath(ctx, req)
	if errors.Is(err, path.ErrNoPath) {
		a.logger.CDebugw(ctx, "no strict path, retrying relaxed", "goal", resolved.Position)
		req.Relaxed = true
		p, err = a.deps.Router.FindPath(ctx, req)
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.err = err
		a.setState(Aborted, "planning canceled")
		return actions.Failed
	case err != nil:
		return a.fail(ctx, Unreachable, err)
	case p == nil:
		return a.fail(ctx, InvalidPath, errors.New("router returned no path"))
	}

	if a.path != nil {
		a.replanCount++
	}
	a.adoptPath(p, resolved.Position)
	a.relaxed = req.Relaxed
	a.setState(Moving, "path planned")
	a.logger.CDebugw(ctx, "path planned",
		"nodes", p.Len(), "length", a.pathLength, "relaxed", req.Relaxed, "replans", a.replanCount)
	return actions.Running
}

func (a *MoveAction) adoptPath(p *path.Path, plannedFor r3.Vector) {
	a.path = p
	a.seg = segmenter.FromPath(p)
	a.pathLength = a.seg.Length()
	a.offset = 0
	a.consumed = 0
	a.plannedFor = plannedFor
	a.relaxed = false
	if pose, ok := a.deps.World.Pose(a.agent); ok {
		a.stuckAnchor = pose.Point
	}
	a.stuckTime = 0
}

// move is one tick of path following.
func (a *MoveAction) move(ctx context.Context, clock actions.Clock, resolved goal.Resolved) actions.Result {
	pose, ok := a.deps.World.Pose(a.agent)
	if !ok {
		return a.fail(ctx, AgentLost, errors.Wrapf(ErrAgentLost, "entity %v", a.agent))
	}

	limit := a.seg.Length()
	if a.goal != nil && !a.goal.Completes() {
		limit = math.Max(0, limit-resolved.Tolerance)
	}

	waiting := a.deps.WaitBoard != nil && a.deps.WaitBoard.MustWait(a.agent, clock.Now)
	deviated := pose.Point.Sub(a.seg.EvaluatePositionAt(a.offset)).Norm() > a.cfg.PlanDeviation
	position := pose.Point
	advanced := false
	if !waiting && !deviated {
		next := math.Min(a.offset+a.mode.Speed*clock.DeltaSeconds(), limit)
		if next > a.offset {
			a.offset = next
			advanced = true
		}
		position = a.seg.EvaluatePositionAt(a.offset)
		if err := a.deps.World.SetPose(a.agent, a.poseAt(position, pose.Heading)); err != nil {
			return a.fail(ctx, AgentLost, err)
		}
	}

	if advanced && !a.signaled && a.mode.EmergencyOperations && a.deps.Signaler != nil {
		a.deps.Signaler.SetEmergencyOperations(a.agent, true)
		a.signaled = true
	}

	// A follower parked at its follow distance is holding on purpose, not stuck.
	holding := a.goal != nil && !a.goal.Completes() && a.offset >= limit
	if result, done := a.checkStuck(ctx, pose.Point, clock.Delta, waiting || holding); done {
		return result
	}
	a.requestFollowedWait(clock.Now, waiting)
	a.traceGround(ctx, position)
	a.cutConsumed()

	return a.checkArrival(ctx, position, resolved)
}

// poseAt returns the pose on the path at position. Legs flagged as backwards are driven in
// reverse, so the agent faces against the direction of travel. Where the path has no horizontal
// direction (empty or vertical) the agent keeps current.
func (a *MoveAction) poseAt(position r3.Vector, current float64) spatialmath.Pose {
	dir := a.seg.EvaluateDirectionAt(a.offset)
	if math.Hypot(dir.X, dir.Y) < headingEpsilon {
		return spatialmath.NewPose(position, current)
	}
	heading := spatialmath.HeadingFromDirection(dir)
	if a.path != nil {
		idx := int(math.Floor(a.seg.NodeIndexByPathPosition(a.offset)))
		if idx >= 0 && idx < a.path.Len() && a.path.Node(idx).Flags.Has(path.FlagBackwards) {
			heading += math.Pi
		}
	}
	return spatialmath.NewPose(position, heading)
}

// checkStuck measures progress since the stuck anchor. It returns done when the tick ends here.
func (a *MoveAction) checkStuck(
	ctx context.Context, position r3.Vector, delta time.Duration, paused bool,
) (actions.Result, bool) {
	profile, enabled := a.cfg.stuckCheck(a.stuckCheck)
	if !enabled || paused {
		a.stuckAnchor = position
		a.stuckTime = 0
		return actions.Running, false
	}
	if position.Sub(a.stuckAnchor).Norm() > profile.Tolerance {
		a.stuckAnchor = position
		a.stuckTime = 0
		return actions.Running, false
	}
	a.stuckTime += delta
	if a.stuckTime < profile.Window() {
		return actions.Running, false
	}

	a.retries++
	a.stuckTime = 0
	a.stuckAnchor = position
	if a.retries > a.cfg.MaxRetries {
		return a.fail(ctx, RetriesExhausted,
			errors.Wrapf(ErrRetriesExhausted, "stuck %d times", a.retries)), true
	}
	a.logger.CWarnw(ctx, "stuck, retrying", "retry", a.retries, "max_retries", a.cfg.MaxRetries,
		"check", a.stuckCheck.String(), "position", position)
	a.pauseLeft = a.cfg.RetryPause()
	a.setState(StuckRetry, "stuck")
	return actions.Running, true
}

// requestFollowedWait asks the followed entity to wait when the agent is close behind it. An
// agent that is itself waiting does not hold anyone up, so mutual requests cannot deadlock.
func (a *MoveAction) requestFollowedWait(now time.Duration, waiting bool) {
	if a.forceWait == nil || waiting || a.deps.WaitBoard == nil {
		return
	}
	target := a.FollowedEntity()
	if !target.IsValid() {
		return
	}
	own, ok := a.deps.World.Pose(a.agent)
	if !ok {
		return
	}
	other, ok := a.deps.World.Pose(target)
	if !ok {
		return
	}
	if own.Point.Sub(other.Point).Norm() <= a.forceWait.distance {
		a.deps.WaitBoard.RequestWait(target, a.agent, now+a.forceWait.wait)
	}
}

// traceGround reattaches the agent to the ground under it every GroundTraceDistance.
func (a *MoveAction) traceGround(ctx context.Context, position r3.Vector) {
	if a.deps.Ground == nil {
		return
	}
	if a.trace.valid && position.Sub(a.trace.lastPos).Norm() < a.cfg.GroundTraceDistance {
		return
	}
	ground, ok := a.deps.Ground.GroundAt(position)
	if !ok {
		ground = entity.Uninitialized
	}
	if !a.trace.valid || ground != a.trace.ground {
		if err := a.deps.Ground.AttachToGround(a.agent, ground); err != nil {
			a.logger.CWarnw(ctx, "cannot attach to ground", "ground", ground, "error", err)
		}
	}
	a.trace = groundTrace{valid: true, lastPos: position, ground: ground}
}

func (a *MoveAction) cutConsumed() {
	if a.offset <= a.cfg.PathCutDistance {
		return
	}
	a.seg.CutAwayPathBeforeOffset(a.offset)
	a.consumed += a.offset
	a.offset = 0
}

func (a *MoveAction) checkArrival(ctx context.Context, position r3.Vector, resolved goal.Resolved) actions.Result {
	if a.goal != nil && !a.goal.Completes() {
		return actions.Running
	}
	end := a.seg.EvaluatePositionAt(a.seg.Length())
	reach := resolved.Tolerance + arrivalEpsilon
	if end.Sub(resolved.Position).Norm() > reach {
		if a.offset < a.seg.Length() {
			return actions.Running
		}
		// A strict path that misses the goal went stale while the goal moved less than
		// MinDistanceForRetry. Only relaxed paths end short because the goal is out of reach.
		if !a.relaxed {
			a.setState(Planning, "stale path")
			return actions.Running
		}
		a.retries++
		if a.retries > a.cfg.MaxRetries {
			return a.fail(ctx, Unreachable, errors.Wrapf(path.ErrNoPath, "path ends %v short of the goal",
				end.Sub(resolved.Position).Norm()))
		}
		a.setState(Planning, "partial path")
		return actions.Running
	}
	if position.Sub(resolved.Position).Norm() > reach {
		return actions.Running
	}
	if resolved.Heading != nil {
		if err := a.deps.World.SetPose(a.agent, spatialmath.NewPose(position, *resolved.Heading)); err != nil {
			return a.fail(ctx, AgentLost, err)
		}
	}
	a.setState(Arrived, "goal reached")
	a.releaseSideEffects()
	a.logger.CDebugw(ctx, "arrived", "elapsed", a.elapsed, "retries", a.retries, "replans", a.replanCount)
	return actions.Done
}

func (a *MoveAction) fail(ctx context.Context, reason FailureReason, err error) actions.Result {
	a.reason = reason
	a.err = err
	a.setState(Failed, reason.String())
	a.releaseSideEffects()
	a.logger.CWarnw(ctx, "move failed", "reason", reason.String(), "error", err)
	return actions.Failed
}

func (a *MoveAction) setState(state State, reason string) {
	a.state = state
	a.history = append(a.history, StatusChange{State: state, Reason: reason, Elapsed: a.elapsed})
}

// Agent returns the moving entity.
func (a *MoveAction) Agent() entity.ID {
	return a.agent
}

// State returns the current state.
func (a *MoveAction) State() State {
	return a.state
}

// FailureReason returns why the action failed, or NoFailure.
func (a *MoveAction) FailureReason() FailureReason {
	return a.reason
}

// Err returns the error that ended the action, if any.
func (a *MoveAction) Err() error {
	return a.err
}

// History returns every state change so far.
func (a *MoveAction) History() []StatusChange {
	return append([]StatusChange(nil), a.history...)
}

// NumberOfRetries returns how often the agent got stuck or hit a partial path.
func (a *MoveAction) NumberOfRetries() int {
	return a.retries
}

// ReplanCount returns how many paths were planned after the first one.
func (a *MoveAction) ReplanCount() int {
	return a.replanCount
}

// PathLength returns the length of the current path as planned, or 0 before there is one.
func (a *MoveAction) PathLength() float64 {
	if a.seg == nil {
		return 0
	}
	return a.pathLength
}

// Traveled returns the distance covered along the current path.
func (a *MoveAction) Traveled() float64 {
	return a.consumed + a.offset
}

// Elapsed returns the game time spent in Update.
func (a *MoveAction) Elapsed() time.Duration {
	return a.elapsed
}

// CurrentPath returns the path being followed, or nil.
func (a *MoveAction) CurrentPath() *path.Path {
	return a.path
}

// Mode returns the resolved movement mode. It is only valid after startup.
func (a *MoveAction) Mode() movement.Mode {
	return a.mode
}

// StuckCheckMode returns the stuck check in effect.
func (a *MoveAction) StuckCheckMode() movement.StuckCheckMode {
	return a.stuckCheck
}

// SetStuckCheckMode overrides the stuck check of the movement mode.
func (a *MoveAction) SetStuckCheckMode(mode movement.StuckCheckMode) {
	a.stuckCheck = mode
	a.stuckCheckOverride = true
	a.stuckTime = 0
}

// FollowedEntity returns the entity being followed, or entity.Uninitialized.
func (a *MoveAction) FollowedEntity() entity.ID {
	if a.goal == nil {
		return entity.Uninitialized
	}
	return a.goal.FollowedEntity()
}

// ForceFollowedEntityToWait makes the followed entity pause for waitTime whenever the agent is
// within distance of it. It requires a follow goal.
func (a *MoveAction) ForceFollowedEntityToWait(distance float64, waitTime time.Duration) error {
	if !a.FollowedEntity().IsValid() {
		return errors.New("forced wait needs a follow goal")
	}
	if distance <= 0 || waitTime <= 0 {
		return errors.Errorf("forced wait needs a positive distance and time, got %v and %v", distance, waitTime)
	}
	a.forceWait = &forcedWait{distance: distance, wait: waitTime}
	return nil
}
