package movement

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ModeConfig describes one movement mode in a config file. Modes get ids in the order they are
// listed.
type ModeConfig struct {
	Name                string  `json:"name"`
	Speed               float64 `json:"speed"`
	EmergencyOperations bool    `json:"emergency_operations,omitempty"`
	CornerRadius        float64 `json:"corner_radius,omitempty"`
	StuckCheck          string  `json:"stuck_check,omitempty" jsonschema:"enum=,enum=none,enum=civil_vehicles,enum=squads"`
}

// Validate ensures all parts of the config are valid.
func (cfg *ModeConfig) Validate(path string) error {
	if cfg.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if cfg.Speed <= 0 {
		return utils.NewConfigValidationError(path, errors.New("speed must be positive"))
	}
	if cfg.CornerRadius < 0 {
		return utils.NewConfigValidationError(path, errors.New("corner_radius cannot be negative"))
	}
	if _, err := ParseStuckCheckMode(cfg.StuckCheck); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Mode converts the config into a Mode with the given id.
func (cfg *ModeConfig) Mode(id ModeID) (Mode, error) {
	stuck, err := ParseStuckCheckMode(cfg.StuckCheck)
	if err != nil {
		return Mode{}, err
	}
	return Mode{
		ID:                  id,
		Name:                cfg.Name,
		Speed:               cfg.Speed,
		EmergencyOperations: cfg.EmergencyOperations,
		CornerRadius:        cfg.CornerRadius,
		StuckCheck:          stuck,
	}, nil
}

// NewRegistryFromConfig registers modes in order and wires per-kind defaults (kind -> mode name)
// and an optional fallback mode name.
func NewRegistryFromConfig(kinds KindLookup, modes []ModeConfig, defaults map[string]string, fallback string) (*Registry, error) {
	r := NewRegistry(kinds)
	for idx, cfg := range modes {
		if err := cfg.Validate(fmt.Sprintf("%s.%d", "movement_modes", idx)); err != nil {
			return nil, err
		}
		mode, err := cfg.Mode(ModeID(idx))
		if err != nil {
			return nil, err
		}
		if err := r.Register(mode); err != nil {
			return nil, err
		}
	}
	for kind, name := range defaults {
		mode, ok := r.ByName(name)
		if !ok {
			return nil, errors.Errorf("default movement mode %q for kind %q is not defined", name, kind)
		}
		if err := r.SetDefault(kind, mode.ID); err != nil {
			return nil, err
		}
	}
	if fallback != "" {
		mode, ok := r.ByName(fallback)
		if !ok {
			return nil, errors.Errorf("fallback movement mode %q is not defined", fallback)
		}
		if err := r.SetFallback(mode.ID); err != nil {
			return nil, err
		}
	}
	return r, nil
}
