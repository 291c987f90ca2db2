// Package config defines the navigation config file and how it is read and validated.
package config

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/16tons/emergency5-sdk-sub029/actions/move"
	"github.com/16tons/emergency5-sdk-sub029/logging"
	"github.com/16tons/emergency5-sdk-sub029/movement"
)

// The router types a config can select.
const (
	RouterDirect = "direct"
	RouterGraph  = "graph"
)

// Config is the top level of a navigation config file.
type Config struct {
	ConfigFilePath string `json:"-"`

	// Debug turns on debug logs for every logger.
	Debug    bool   `json:"debug,omitempty"`
	LogLevel string `json:"log_level,omitempty" jsonschema:"enum=,enum=debug,enum=info,enum=warn,enum=error"`

	Move          move.Config           `json:"move"`
	MovementModes []movement.ModeConfig `json:"movement_modes"`
	// DefaultModes maps an entity kind to the name of its default movement mode.
	DefaultModes map[string]string `json:"default_modes,omitempty"`
	FallbackMode string            `json:"fallback_mode,omitempty"`

	Router RouterConfig `json:"router"`
}

// RouterConfig selects and tunes the path router.
type RouterConfig struct {
	Type string `json:"type" jsonschema:"enum=direct,enum=graph"`
	// MaxSnapDistance is how far start and goal may be from the nearest waypoint of a graph.
	MaxSnapDistance float64 `json:"max_snap_distance,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *RouterConfig) Validate(path string) error {
	switch cfg.Type {
	case RouterDirect:
		return nil
	case RouterGraph:
		if cfg.MaxSnapDistance <= 0 {
			return utils.NewConfigValidationFieldRequiredError(path, "max_snap_distance")
		}
		return nil
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "type")
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown router type %q", cfg.Type))
	}
}

// Validate returns every problem of the config, not just the first one.
func (c *Config) Validate() error {
	var errs error
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			errs = multierr.Append(errs, utils.NewConfigValidationError("log_level", err))
		}
	}
	errs = multierr.Append(errs, c.Move.Validate("move"))
	errs = multierr.Append(errs, c.Router.Validate("router"))

	if len(c.MovementModes) == 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError("", "movement_modes"))
	}
	names := map[string]bool{}
	for idx := range c.MovementModes {
		mode := &c.MovementModes[idx]
		path := fmt.Sprintf("%s.%d", "movement_modes", idx)
		if err := mode.Validate(path); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if names[mode.Name] {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path,
				errors.Errorf("duplicate movement mode name %q", mode.Name)))
		}
		names[mode.Name] = true
	}

	kinds := make([]string, 0, len(c.DefaultModes))
	for kind := range c.DefaultModes {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if name := c.DefaultModes[kind]; !names[name] {
			errs = multierr.Append(errs, utils.NewConfigValidationError(
				fmt.Sprintf("%s.%s", "default_modes", kind), errors.Errorf("unknown movement mode %q", name)))
		}
	}
	if c.FallbackMode != "" && !names[c.FallbackMode] {
		errs = multierr.Append(errs, utils.NewConfigValidationError("fallback_mode",
			errors.Errorf("unknown movement mode %q", c.FallbackMode)))
	}
	return errs
}

// Level returns the configured log level, INFO when unset and DEBUG when Debug is set.
func (c *Config) Level() logging.Level {
	if c.Debug {
		return logging.DEBUG
	}
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// Registry builds the movement mode registry described by the config.
func (c *Config) Registry(kinds movement.KindLookup) (*movement.Registry, error) {
	return movement.NewRegistryFromConfig(kinds, c.MovementModes, c.DefaultModes, c.FallbackMode)
}
