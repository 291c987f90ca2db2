// Package movement defines movement modes (speed, emergency operations, corner smoothing, stuck
// checking) and resolves them by id, falling back to a default per entity kind.
package movement

import (
	"math"

	"github.com/pkg/errors"
)

// ModeID identifies a movement mode.
type ModeID uint32

// Uninitialized selects the default mode for the moving entity's kind.
const Uninitialized ModeID = math.MaxUint32

// StuckCheckMode selects how eagerly a moving entity is considered stuck.
type StuckCheckMode uint8

const (
	// StuckCheckNone disables the check, for entities that may legitimately stand still.
	StuckCheckNone StuckCheckMode = iota
	// StuckCheckCivilVehicles uses a loose tolerance and long window so queuing traffic is not
	// mistaken for being stuck.
	StuckCheckCivilVehicles
	// StuckCheckSquads uses a tight tolerance so player units re-route quickly.
	StuckCheckSquads
)

var stuckCheckNames = map[StuckCheckMode]string{
	StuckCheckNone:          "none",
	StuckCheckCivilVehicles: "civil_vehicles",
	StuckCheckSquads:        "squads",
}

func (m StuckCheckMode) String() string {
	if name, ok := stuckCheckNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseStuckCheckMode is the inverse of StuckCheckMode.String. The empty string is
// StuckCheckNone.
func ParseStuckCheckMode(s string) (StuckCheckMode, error) {
	if s == "" {
		return StuckCheckNone, nil
	}
	for mode, name := range stuckCheckNames {
		if name == s {
			return mode, nil
		}
	}
	return StuckCheckNone, errors.Errorf("unknown stuck check mode %q", s)
}

// Mode is a named movement profile.
type Mode struct {
	ID   ModeID
	Name string
	// Speed in distance units per second.
	Speed float64
	// EmergencyOperations turns on sirens and lights while moving.
	EmergencyOperations bool
	// CornerRadius is requested from the router for interior path nodes.
	CornerRadius float64
	// StuckCheck is the default stuck check for actions using this mode.
	StuckCheck StuckCheckMode
}

// Validate checks that the mode can drive a movement.
func (m Mode) Validate() error {
	if m.ID == Uninitialized {
		return errors.Errorf("movement mode %q has the reserved id", m.Name)
	}
	if m.Speed <= 0 || math.IsInf(m.Speed, 0) || math.IsNaN(m.Speed) {
		return errors.Errorf("movement mode %q needs a positive speed, got %v", m.Name, m.Speed)
	}
	if m.CornerRadius < 0 {
		return errors.Errorf("movement mode %q has a negative corner radius", m.Name)
	}
	return nil
}
