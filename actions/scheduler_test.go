package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/logging"
)

// scriptedAction returns its results in order and records every call into a shared log.
type scriptedAction struct {
	name       string
	results    []Result
	startupErr error
	log        *[]string
	deltas     []time.Duration
	onUpdate   func()
}

func (a *scriptedAction) OnStartup(ctx context.Context) error {
	*a.log = append(*a.log, a.name+":startup")
	return a.startupErr
}

func (a *scriptedAction) Update(ctx context.Context, clock Clock) Result {
	*a.log = append(*a.log, a.name+":update")
	a.deltas = append(a.deltas, clock.Delta)
	if a.onUpdate != nil {
		a.onUpdate()
	}
	if len(a.results) == 0 {
		return Running
	}
	r := a.results[0]
	a.results = a.results[1:]
	return r
}

func (a *scriptedAction) OnShutdown() {
	*a.log = append(*a.log, a.name+":shutdown")
}

func TestResult(t *testing.T) {
	test.That(t, Running.Terminal(), test.ShouldBeFalse)
	test.That(t, Done.Terminal(), test.ShouldBeTrue)
	test.That(t, Failed.String(), test.ShouldEqual, "failed")
	test.That(t, Clock{Delta: 1500 * time.Millisecond}.DeltaSeconds(), test.ShouldAlmostEqual, 1.5)
}

func TestSchedulerOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	var log []string

	// Pushed out of id order; updates must run in ascending id order.
	s.Push(9, &scriptedAction{name: "nine", log: &log})
	s.Push(2, &scriptedAction{name: "two", log: &log, results: []Result{Running, Done}})
	s.Push(2, &scriptedAction{name: "two-next", log: &log})
	s.Push(5, &scriptedAction{name: "five", log: &log, results: []Result{Failed}})
	test.That(t, s.Entities(), test.ShouldResemble, []entity.ID{2, 5, 9})

	var events []Event
	s.AddListener(func(ev Event) { events = append(events, ev) })

	s.Tick(ctx, 100*time.Millisecond)
	test.That(t, log, test.ShouldResemble, []string{
		"two:startup", "two:update",
		"five:startup", "five:update", "five:shutdown",
		"nine:startup", "nine:update",
	})
	test.That(t, events, test.ShouldHaveLength, 1)
	test.That(t, events[0].Entity, test.ShouldEqual, entity.ID(5))
	test.That(t, events[0].Result, test.ShouldEqual, Failed)
	test.That(t, s.Len(5), test.ShouldEqual, 0)

	log = nil
	s.Tick(ctx, 100*time.Millisecond)
	// The next queued action of entity 2 only starts on the following tick.
	test.That(t, log, test.ShouldResemble, []string{"two:update", "two:shutdown", "nine:update"})
	test.That(t, s.Len(2), test.ShouldEqual, 1)

	log = nil
	s.Tick(ctx, 100*time.Millisecond)
	test.That(t, log, test.ShouldResemble, []string{"two-next:startup", "two-next:update", "nine:update"})
	test.That(t, s.Now(), test.ShouldEqual, 300*time.Millisecond)
}

func TestSchedulerRemove(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	var log []string

	pending := s.Push(1, &scriptedAction{name: "pending", log: &log})
	test.That(t, s.Remove(pending), test.ShouldBeTrue)
	test.That(t, s.Remove(pending), test.ShouldBeFalse)
	// Never started, so no shutdown.
	test.That(t, log, test.ShouldBeEmpty)

	running := s.Push(1, &scriptedAction{name: "running", log: &log})
	s.Push(1, &scriptedAction{name: "queued", log: &log})
	s.Tick(ctx, time.Second)
	id, _, ok := s.Current(1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, id, test.ShouldEqual, running)

	test.That(t, s.Remove(running), test.ShouldBeTrue)
	test.That(t, log[len(log)-1], test.ShouldEqual, "running:shutdown")

	s.Tick(ctx, time.Second)
	test.That(t, s.Clear(1), test.ShouldEqual, 1)
	test.That(t, log[len(log)-1], test.ShouldEqual, "queued:shutdown")
	_, _, ok = s.Current(1)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSchedulerReentrancy(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	var log []string

	victim := s.Push(3, &scriptedAction{name: "victim", log: &log})
	s.Push(1, &scriptedAction{name: "killer", log: &log, onUpdate: func() {
		// Removing another entity's action mid-tick prevents its update this tick.
		s.Remove(victim)
		s.Push(2, &scriptedAction{name: "spawned", log: &log})
	}, results: []Result{Done}})

	s.Tick(ctx, time.Second)
	test.That(t, log, test.ShouldResemble, []string{"killer:startup", "killer:update", "killer:shutdown"})
	test.That(t, s.Entities(), test.ShouldResemble, []entity.ID{2})
}

func TestSchedulerStartupFailure(t *testing.T) {
	s := NewScheduler(logging.NewTestLogger(t))
	var log []string
	var events []Event
	s.AddListener(func(ev Event) { events = append(events, ev) })

	s.Push(1, &scriptedAction{name: "broken", log: &log, startupErr: errors.New("no goal")})
	s.Tick(context.Background(), time.Second)
	test.That(t, log, test.ShouldResemble, []string{"broken:startup"})
	test.That(t, events, test.ShouldHaveLength, 1)
	test.That(t, events[0].Err, test.ShouldBeError, errors.New("no goal"))
	test.That(t, s.Len(1), test.ShouldEqual, 0)
}

func TestGameSpeed(t *testing.T) {
	s := NewScheduler(logging.NewTestLogger(t))
	var log []string
	a := &scriptedAction{name: "a", log: &log}
	s.Push(1, a)

	test.That(t, s.SetGameSpeed(-1), test.ShouldNotBeNil)
	test.That(t, s.SetGameSpeed(2), test.ShouldBeNil)
	s.Tick(context.Background(), 100*time.Millisecond)
	test.That(t, s.SetGameSpeed(0), test.ShouldBeNil)
	s.Tick(context.Background(), 100*time.Millisecond)

	test.That(t, a.deltas, test.ShouldResemble, []time.Duration{200 * time.Millisecond, 0})
	test.That(t, s.Now(), test.ShouldEqual, 200*time.Millisecond)
}
