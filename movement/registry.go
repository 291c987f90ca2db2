package movement

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/16tons/emergency5-sdk-sub029/entity"
)

// Resolver looks up the movement mode an agent moves with.
type Resolver interface {
	Resolve(id ModeID, agent entity.ID) (Mode, error)
}

// KindLookup reports the kind of an entity. entity.World satisfies it.
type KindLookup interface {
	Kind(id entity.ID) (string, bool)
}

// Registry is a Resolver over registered modes. Uninitialized ids resolve to the default mode
// for the agent's kind, then to the fallback mode.
type Registry struct {
	mu       sync.RWMutex
	kinds    KindLookup
	modes    map[ModeID]Mode
	byName   map[string]ModeID
	defaults map[string]ModeID
	fallback ModeID
}

// NewRegistry returns an empty registry. kinds may be nil when no per-kind defaults are used.
func NewRegistry(kinds KindLookup) *Registry {
	return &Registry{
		kinds:    kinds,
		modes:    map[ModeID]Mode{},
		byName:   map[string]ModeID{},
		defaults: map[string]ModeID{},
		fallback: Uninitialized,
	}
}

// Register adds a mode. Ids and names must be unique.
func (r *Registry) Register(mode Mode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modes[mode.ID]; ok {
		return errors.Errorf("movement mode id %d already registered", mode.ID)
	}
	if _, ok := r.byName[mode.Name]; ok {
		return errors.Errorf("movement mode %q already registered", mode.Name)
	}
	r.modes[mode.ID] = mode
	r.byName[mode.Name] = mode.ID
	return nil
}

// SetDefault makes id the mode for entities of kind that move with an Uninitialized mode id.
func (r *Registry) SetDefault(kind string, id ModeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modes[id]; !ok {
		return errors.Errorf("unknown movement mode id %d", id)
	}
	r.defaults[kind] = id
	return nil
}

// SetFallback makes id the mode used when an entity's kind has no default.
func (r *Registry) SetFallback(id ModeID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modes[id]; !ok {
		return errors.Errorf("unknown movement mode id %d", id)
	}
	r.fallback = id
	return nil
}

// ByName returns the mode registered under name.
func (r *Registry) ByName(name string) (Mode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return Mode{}, false
	}
	return r.modes[id], true
}

// Resolve implements Resolver.
func (r *Registry) Resolve(id ModeID, agent entity.ID) (Mode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id != Uninitialized {
		mode, ok := r.modes[id]
		if !ok {
			return Mode{}, errors.Errorf("unknown movement mode id %d", id)
		}
		return mode, nil
	}

	if r.kinds != nil {
		if kind, ok := r.kinds.Kind(agent); ok {
			if def, ok := r.defaults[kind]; ok {
				return r.modes[def], nil
			}
		}
	}
	if r.fallback != Uninitialized {
		return r.modes[r.fallback], nil
	}
	return Mode{}, errors.Errorf("no default movement mode for entity %v", agent)
}
