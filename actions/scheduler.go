package actions

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/logging"
	"github.com/16tons/emergency5-sdk-sub029/utils"
)

// Event reports that an action finished.
type Event struct {
	ActionID uuid.UUID
	Entity   entity.ID
	Result   Result
	// Err is set when OnStartup failed.
	Err error
}

// Listener is called for every finished action, outside of the scheduler's lock.
type Listener func(Event)

type queued struct {
	id      uuid.UUID
	action  Action
	started bool
}

// Scheduler owns the per-entity action queues. Actions may call back into the scheduler from
// Update; the lock is not held while actions run.
type Scheduler struct {
	mu        sync.Mutex
	queues    map[entity.ID][]*queued
	owners    map[uuid.UUID]entity.ID
	now       time.Duration
	gameSpeed float64
	listeners []Listener
	logger    logging.Logger
}

// NewScheduler returns an empty scheduler running at game speed 1.
func NewScheduler(logger logging.Logger) *Scheduler {
	return &Scheduler{
		queues:    map[entity.ID][]*queued{},
		owners:    map[uuid.UUID]entity.ID{},
		gameSpeed: 1,
		logger:    logger,
	}
}

// Push appends action to the queue of ent and returns its id.
func (s *Scheduler) Push(ent entity.ID, action Action) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.queues[ent] = append(s.queues[ent], &queued{id: id, action: action})
	s.owners[id] = ent
	return id
}

// Remove aborts the action with id. A started action gets OnShutdown.
func (s *Scheduler) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	q, ok := s.unlink(id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	if q.started {
		q.action.OnShutdown()
	}
	return true
}

// unlink removes an action from its queue. Callers hold mu.
func (s *Scheduler) unlink(id uuid.UUID) (*queued, bool) {
	ent, ok := s.owners[id]
	if !ok {
		return nil, false
	}
	delete(s.owners, id)
	queue := s.queues[ent]
	idx := slices.IndexFunc(queue, func(q *queued) bool { return q.id == id })
	q := queue[idx]
	queue = slices.Delete(queue, idx, idx+1)
	if len(queue) == 0 {
		delete(s.queues, ent)
	} else {
		s.queues[ent] = queue
	}
	return q, true
}

// Clear aborts every action of ent and returns how many were removed.
func (s *Scheduler) Clear(ent entity.ID) int {
	s.mu.Lock()
	queue := s.queues[ent]
	delete(s.queues, ent)
	for _, q := range queue {
		delete(s.owners, q.id)
	}
	s.mu.Unlock()

	for _, q := range queue {
		if q.started {
			q.action.OnShutdown()
		}
	}
	return len(queue)
}

// Current returns the front action of ent.
func (s *Scheduler) Current(ent entity.ID) (uuid.UUID, Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queues[ent]
	if len(queue) == 0 {
		return uuid.Nil, nil, false
	}
	return queue[0].id, queue[0].action, true
}

// Len returns how many actions ent has queued.
func (s *Scheduler) Len(ent entity.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[ent])
}

// Entities returns every entity with queued actions in ascending id order.
func (s *Scheduler) Entities() []entity.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entitiesLocked()
}

func (s *Scheduler) entitiesLocked() []entity.ID {
	ids := lo.Keys(s.queues)
	slices.Sort(ids)
	return ids
}

// AddListener registers a listener for finished actions.
func (s *Scheduler) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// SetGameSpeed scales the delta of every following tick.
func (s *Scheduler) SetGameSpeed(speed float64) error {
	if speed < 0 {
		return utils.NewNegativeValueError("game speed", speed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameSpeed = speed
	return nil
}

// Now returns the accumulated game time.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Tick advances game time by delta scaled by the game speed and updates the front action of
// every queue exactly once, in ascending entity id order. Actions pushed during the tick run
// from the next tick on.
func (s *Scheduler) Tick(ctx context.Context, delta time.Duration) {
	s.mu.Lock()
	scaled := time.Duration(float64(delta) * s.gameSpeed)
	s.now += scaled
	clock := Clock{Delta: scaled, Now: s.now}
	type front struct {
		ent entity.ID
		q   *queued
	}
	fronts := make([]front, 0, len(s.queues))
	for _, ent := range s.entitiesLocked() {
		fronts = append(fronts, front{ent, s.queues[ent][0]})
	}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	var events []Event
	for _, f := range fronts {
		if ctx.Err() != nil {
			break
		}
		if !s.stillQueued(f.q.id) {
			continue
		}
		if ev, ok := s.step(ctx, f.ent, f.q, clock); ok {
			events = append(events, ev)
		}
	}

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}

func (s *Scheduler) stillQueued(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.owners[id]
	return ok
}

// step runs one update of q and reports an event when it finished.
func (s *Scheduler) step(ctx context.Context, ent entity.ID, q *queued, clock Clock) (Event, bool) {
	if !q.started {
		q.started = true
		if err := q.action.OnStartup(ctx); err != nil {
			s.logger.CWarnw(ctx, "action failed to start", "entity", ent, "action", q.id, "error", err)
			s.finish(q.id)
			return Event{ActionID: q.id, Entity: ent, Result: Failed, Err: err}, true
		}
	}

	result := q.action.Update(ctx, clock)
	if !result.Terminal() {
		return Event{}, false
	}
	s.logger.CDebugw(ctx, "action finished", "entity", ent, "action", q.id, "result", result.String())
	if !s.finish(q.id) {
		// Removed from inside its own Update; Remove already shut it down.
		return Event{ActionID: q.id, Entity: ent, Result: result}, true
	}
	q.action.OnShutdown()
	return Event{ActionID: q.id, Entity: ent, Result: result}, true
}

func (s *Scheduler) finish(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unlink(id)
	return ok
}
