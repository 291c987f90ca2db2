package move

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/movement"
	"github.com/16tons/emergency5-sdk-sub029/navigation/goal"
	"github.com/16tons/emergency5-sdk-sub029/navigation/path"
	"github.com/16tons/emergency5-sdk-sub029/navigation/segmenter"
)

// PersistentStateVersion is written into every PersistentState. Restore rejects other versions.
const PersistentStateVersion = 1

// PersistentState is everything needed to continue a MoveAction after a save and load. The
// segmenter is not stored; it is rebuilt from the path nodes and the consumed length.
type PersistentState struct {
	Version int       `bson:"version"`
	Agent   entity.ID `bson:"agent"`

	Goal        *goal.Goal      `bson:"goal,omitempty"`
	ModeID      movement.ModeID `bson:"mode_id"`
	InitialPath []path.Node     `bson:"initial_path,omitempty"`
	MaxMoveTime time.Duration   `bson:"max_move_time"`
	Started     bool            `bson:"started"`

	StuckCheck         movement.StuckCheckMode `bson:"stuck_check"`
	StuckCheckOverride bool                    `bson:"stuck_check_override"`

	State  State         `bson:"state"`
	Reason FailureReason `bson:"reason"`
	Err    string        `bson:"err,omitempty"`

	Path       []path.Node `bson:"path,omitempty"`
	Consumed   float64     `bson:"consumed"`
	Offset     float64     `bson:"offset"`
	PlannedFor r3.Vector   `bson:"planned_for"`
	Relaxed    bool        `bson:"relaxed"`

	Elapsed     time.Duration `bson:"elapsed"`
	Retries     int           `bson:"retries"`
	ReplanCount int           `bson:"replan_count"`

	StuckAnchor r3.Vector     `bson:"stuck_anchor"`
	StuckTime   time.Duration `bson:"stuck_time"`
	PauseLeft   time.Duration `bson:"pause_left"`

	Signaled          bool          `bson:"signaled"`
	ForceWait         bool          `bson:"force_wait"`
	ForceWaitDistance float64       `bson:"force_wait_distance"`
	ForceWaitTime     time.Duration `bson:"force_wait_time"`

	TraceValid   bool      `bson:"trace_valid"`
	TraceLastPos r3.Vector `bson:"trace_last_pos"`
	TraceGround  entity.ID `bson:"trace_ground"`
}

// Serializer turns a PersistentState into bytes and back.
type Serializer interface {
	Marshal(state PersistentState) ([]byte, error)
	Unmarshal(data []byte, state *PersistentState) error
}

// BSONSerializer stores states as BSON documents, the format savegames are written in.
type BSONSerializer struct{}

// Marshal encodes state.
func (BSONSerializer) Marshal(state PersistentState) ([]byte, error) {
	return bson.Marshal(state)
}

// Unmarshal decodes data into state.
func (BSONSerializer) Unmarshal(data []byte, state *PersistentState) error {
	return bson.Unmarshal(data, state)
}

// Snapshot captures the current state.
func (a *MoveAction) Snapshot() PersistentState {
	state := PersistentState{
		Version:            PersistentStateVersion,
		Agent:              a.agent,
		Goal:               a.goal,
		ModeID:             a.modeID,
		MaxMoveTime:        a.maxMoveTime,
		Started:            a.started,
		StuckCheck:         a.stuckCheck,
		StuckCheckOverride: a.stuckCheckOverride,
		State:              a.state,
		Reason:             a.reason,
		Consumed:           a.consumed,
		Offset:             a.offset,
		PlannedFor:         a.plannedFor,
		Relaxed:            a.relaxed,
		Elapsed:            a.elapsed,
		Retries:            a.retries,
		ReplanCount:        a.replanCount,
		StuckAnchor:        a.stuckAnchor,
		StuckTime:          a.stuckTime,
		PauseLeft:          a.pauseLeft,
		Signaled:           a.signaled,
		TraceValid:         a.trace.valid,
		TraceLastPos:       a.trace.lastPos,
		TraceGround:        a.trace.ground,
	}
	if a.err != nil {
		state.Err = a.err.Error()
	}
	if a.initialPath != nil {
		state.InitialPath = a.initialPath.Nodes()
	}
	if a.path != nil {
		state.Path = a.path.Nodes()
	}
	if a.forceWait != nil {
		state.ForceWait = true
		state.ForceWaitDistance = a.forceWait.distance
		state.ForceWaitTime = a.forceWait.wait
	}
	return state
}

// RestoreSnapshot replaces the action's state with state. The movement mode is resolved again
// from the registry, so modes are looked up by id rather than stored.
func (a *MoveAction) RestoreSnapshot(state PersistentState) error {
	if state.Version != PersistentStateVersion {
		return errors.Errorf("unsupported move state version %d, expected %d", state.Version, PersistentStateVersion)
	}
	if state.Agent != a.agent {
		return errors.Errorf("move state belongs to entity %v, not %v", state.Agent, a.agent)
	}
	if state.Goal == nil && len(state.InitialPath) == 0 && state.State != Uninitialized {
		return errors.New("move state has neither a goal nor a path")
	}

	var initial, current *path.Path
	var err error
	if len(state.InitialPath) > 0 {
		if initial, err = path.New(state.InitialPath...); err != nil {
			return errors.Wrap(err, "restoring initial path")
		}
	}
	if len(state.Path) > 0 {
		if current, err = path.New(state.Path...); err != nil {
			return errors.Wrap(err, "restoring current path")
		}
	}
	var mode movement.Mode
	if state.Started {
		if mode, err = a.deps.Modes.Resolve(state.ModeID, a.agent); err != nil {
			return errors.Wrap(err, "restoring movement mode")
		}
	}

	a.releaseSideEffects()
	a.goal = state.Goal
	a.modeID = state.ModeID
	a.initialPath = initial
	a.maxMoveTime = state.MaxMoveTime
	a.started = state.Started
	a.mode = mode
	a.stuckCheck = state.StuckCheck
	a.stuckCheckOverride = state.StuckCheckOverride
	a.state = state.State
	a.reason = state.Reason
	a.err = nil
	if state.Err != "" {
		a.err = errors.New(state.Err)
	}
	a.history = []StatusChange{{State: state.State, Reason: "restored", Elapsed: state.Elapsed}}

	a.path = current
	a.seg = nil
	a.pathLength = 0
	if current != nil {
		a.seg = segmenter.FromPath(current)
		a.pathLength = a.seg.Length()
		a.seg.CutAwayPathBeforeOffset(state.Consumed)
	}
	a.consumed = state.Consumed
	a.offset = state.Offset
	a.plannedFor = state.PlannedFor
	a.relaxed = state.Relaxed
	a.elapsed = state.Elapsed
	a.retries = state.Retries
	a.replanCount = state.ReplanCount
	a.stuckAnchor = state.StuckAnchor
	a.stuckTime = state.StuckTime
	a.pauseLeft = state.PauseLeft
	a.forceWait = nil
	if state.ForceWait {
		a.forceWait = &forcedWait{distance: state.ForceWaitDistance, wait: state.ForceWaitTime}
	}
	a.trace = groundTrace{valid: state.TraceValid, lastPos: state.TraceLastPos, ground: state.TraceGround}

	// The signal is switched off on restore and turned back on by the next movement tick.
	if state.Signaled && a.deps.Signaler != nil {
		a.deps.Signaler.SetEmergencyOperations(a.agent, false)
	}
	return nil
}

// Serialize encodes the action's state with s.
func (a *MoveAction) Serialize(s Serializer) ([]byte, error) {
	data, err := s.Marshal(a.Snapshot())
	if err != nil {
		return nil, errors.Wrapf(err, "serializing move of %v", a.agent)
	}
	return data, nil
}

// Restore decodes data with s and replaces the action's state with it.
func (a *MoveAction) Restore(s Serializer, data []byte) error {
	var state PersistentState
	if err := s.Unmarshal(data, &state); err != nil {
		return errors.Wrapf(err, "deserializing move of %v", a.agent)
	}
	return a.RestoreSnapshot(state)
}
