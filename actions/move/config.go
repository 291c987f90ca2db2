package move

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/16tons/emergency5-sdk-sub029/movement"
)

// StuckCheckConfig is one stuck check profile: the agent is stuck when it covers no more than
// Tolerance within WindowSec seconds.
type StuckCheckConfig struct {
	Tolerance float64 `json:"tolerance"`
	WindowSec float64 `json:"window_sec"`
}

// Validate ensures all parts of the config are valid.
func (cfg *StuckCheckConfig) Validate(path string) error {
	if cfg.Tolerance <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "tolerance")
	}
	if cfg.WindowSec <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "window_sec")
	}
	return nil
}

// Window returns WindowSec as a duration.
func (cfg StuckCheckConfig) Window() time.Duration {
	return time.Duration(cfg.WindowSec * float64(time.Second))
}

// Config holds the tuning of MoveAction. There are no built-in defaults: every distance and
// window has to come from configuration.
type Config struct {
	CivilVehicles StuckCheckConfig `json:"civil_vehicles"`
	Squads        StuckCheckConfig `json:"squads"`
	// MaxRetries is how many stuck or partial-path retries are allowed before failing.
	MaxRetries    int     `json:"max_retries"`
	RetryPauseSec float64 `json:"retry_pause_sec"`
	// MinDistanceForRetry is how far the goal may move from where the current path was planned
	// for before the path is considered stale.
	MinDistanceForRetry float64 `json:"min_distance_for_retry"`
	// PlanDeviation is how far the agent may be from its expected position before it stops
	// advancing along the path.
	PlanDeviation float64 `json:"plan_deviation"`
	// GroundTraceDistance is how far the agent moves between ground lookups.
	GroundTraceDistance float64 `json:"ground_trace_distance"`
	// PathCutDistance is how much consumed path is kept before it is cut away.
	PathCutDistance float64 `json:"path_cut_distance"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if err := cfg.CivilVehicles.Validate(fmt.Sprintf("%s.%s", path, "civil_vehicles")); err != nil {
		return err
	}
	if err := cfg.Squads.Validate(fmt.Sprintf("%s.%s", path, "squads")); err != nil {
		return err
	}
	if cfg.MaxRetries < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_retries cannot be negative"))
	}
	if cfg.RetryPauseSec < 0 {
		return utils.NewConfigValidationError(path, errors.New("retry_pause_sec cannot be negative"))
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"min_distance_for_retry", cfg.MinDistanceForRetry},
		{"plan_deviation", cfg.PlanDeviation},
		{"ground_trace_distance", cfg.GroundTraceDistance},
		{"path_cut_distance", cfg.PathCutDistance},
	} {
		if field.value <= 0 {
			return utils.NewConfigValidationFieldRequiredError(path, field.name)
		}
	}
	return nil
}

// RetryPause returns RetryPauseSec as a duration.
func (cfg Config) RetryPause() time.Duration {
	return time.Duration(cfg.RetryPauseSec * float64(time.Second))
}

// stuckCheck returns the profile for mode, or false when the mode disables checking.
func (cfg Config) stuckCheck(mode movement.StuckCheckMode) (StuckCheckConfig, bool) {
	switch mode {
	case movement.StuckCheckCivilVehicles:
		return cfg.CivilVehicles, true
	case movement.StuckCheckSquads:
		return cfg.Squads, true
	default:
		return StuckCheckConfig{}, false
	}
}
