// Package actions is the cooperative action-scheduling framework: every entity owns a queue of
// actions, and each tick the scheduler updates the front action of every queue once, in
// ascending entity id order.
package actions

import (
	"context"
	"time"
)

// Result is what an action reports after an update.
type Result uint8

const (
	// Running means the action wants to be updated again next tick.
	Running Result = iota
	// Done means the action finished successfully.
	Done
	// Failed means the action gave up.
	Failed
)

func (r Result) String() string {
	switch r {
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal returns whether the action is finished.
func (r Result) Terminal() bool {
	return r == Done || r == Failed
}

// Clock is the game time handed to actions. Delta is already scaled by the game speed.
type Clock struct {
	Delta time.Duration
	Now   time.Duration
}

// DeltaSeconds returns Delta in seconds.
func (c Clock) DeltaSeconds() float64 {
	return c.Delta.Seconds()
}

// Action is one unit of queued behavior. OnStartup runs before the first Update; OnShutdown runs
// once after a terminal result or when the action is removed.
type Action interface {
	OnStartup(ctx context.Context) error
	Update(ctx context.Context, clock Clock) Result
	OnShutdown()
}
