package move

import (
	"sync"
	"time"

	"github.com/16tons/emergency5-sdk-sub029/entity"
)

type waitEntry struct {
	until     time.Duration
	requester entity.ID
}

// WaitBoard is where followers ask the entity they follow to pause. Times are game times as
// reported by actions.Clock.Now.
type WaitBoard struct {
	mu    sync.Mutex
	waits map[entity.ID]waitEntry
}

// NewWaitBoard returns an empty board.
func NewWaitBoard() *WaitBoard {
	return &WaitBoard{waits: map[entity.ID]waitEntry{}}
}

// RequestWait asks target to stand still until the given game time. A later deadline replaces an
// earlier one.
func (b *WaitBoard) RequestWait(target, requester entity.ID, until time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.waits[target]; ok && current.until >= until {
		return
	}
	b.waits[target] = waitEntry{until: until, requester: requester}
}

// MustWait returns whether id has been asked to wait at game time now.
func (b *WaitBoard) MustWait(id entity.ID, now time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.waits[id]
	if !ok {
		return false
	}
	if entry.until <= now {
		delete(b.waits, id)
		return false
	}
	return true
}

// WaitingUntil returns the deadline of the wait placed on id.
func (b *WaitBoard) WaitingUntil(id entity.ID) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.waits[id]
	return entry.until, ok
}

// Release drops every wait requested by requester.
func (b *WaitBoard) Release(requester entity.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for target, entry := range b.waits {
		if entry.requester == requester {
			delete(b.waits, target)
		}
	}
}

// Signaler switches an entity's emergency operations (sirens, lights) on and off.
type Signaler interface {
	SetEmergencyOperations(id entity.ID, on bool)
}

// SignalerFunc adapts a function to the Signaler interface.
type SignalerFunc func(id entity.ID, on bool)

// SetEmergencyOperations calls f.
func (f SignalerFunc) SetEmergencyOperations(id entity.ID, on bool) {
	f(id, on)
}
