package move

import (
	"time"

	"github.com/pkg/errors"
)

// State is the lifecycle state of a MoveAction.
type State uint8

// The states. Arrived, Failed and Aborted are terminal.
const (
	Uninitialized State = iota
	Planning
	Moving
	StuckRetry
	Arrived
	Failed
	Aborted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Planning:
		return "planning"
	case Moving:
		return "moving"
	case StuckRetry:
		return "stuck_retry"
	case Arrived:
		return "arrived"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal returns whether the state is final.
func (s State) Terminal() bool {
	return s == Arrived || s == Failed || s == Aborted
}

// FailureReason tells apart why a MoveAction failed, so callers can react differently to "cannot
// get there" and "ran out of time".
type FailureReason uint8

// The failure reasons.
const (
	NoFailure FailureReason = iota
	Unreachable
	TargetLost
	Timeout
	RetriesExhausted
	InvalidPath
	AgentLost
)

func (r FailureReason) String() string {
	switch r {
	case NoFailure:
		return "none"
	case Unreachable:
		return "unreachable"
	case TargetLost:
		return "target_lost"
	case Timeout:
		return "timeout"
	case RetriesExhausted:
		return "retries_exhausted"
	case InvalidPath:
		return "invalid_path"
	case AgentLost:
		return "agent_lost"
	default:
		return "unknown"
	}
}

var (
	// ErrTimeout is reported when the maximum move time is exceeded.
	ErrTimeout = errors.New("move timed out")
	// ErrRetriesExhausted is reported when the agent got stuck more often than allowed.
	ErrRetriesExhausted = errors.New("stuck retries exhausted")
	// ErrAgentLost is reported when the moving entity itself disappeared.
	ErrAgentLost = errors.New("moving entity lost")
	// ErrNotStarted is reported when Update runs before OnStartup.
	ErrNotStarted = errors.New("move action updated before startup")
)

// StatusChange is one entry of a MoveAction's state history.
type StatusChange struct {
	State   State
	Reason  string
	Elapsed time.Duration
}
