package config

import (
	"strings"
	"testing"

	"go.viam.com/test"
	"go.viam.com/utils"

	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/logging"
	"github.com/16tons/emergency5-sdk-sub029/movement"
	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
)

func TestReadExampleConfig(t *testing.T) {
	t.Setenv("NAVSIM_SNAP_DISTANCE", "12")
	cfg, err := Read("data/navigation.json5")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "data/navigation.json5")
	test.That(t, cfg.Level(), test.ShouldEqual, logging.INFO)
	test.That(t, cfg.Move.MaxRetries, test.ShouldEqual, 3)
	test.That(t, cfg.Move.Squads.Tolerance, test.ShouldEqual, 0.25)
	test.That(t, cfg.MovementModes, test.ShouldHaveLength, 3)
	test.That(t, cfg.MovementModes[2].EmergencyOperations, test.ShouldBeTrue)
	test.That(t, cfg.DefaultModes["vehicle"], test.ShouldEqual, "drive")
	test.That(t, cfg.Router.Type, test.ShouldEqual, RouterGraph)
	test.That(t, cfg.Router.MaxSnapDistance, test.ShouldEqual, 12.0)

	store := entity.NewStore(0.5)
	test.That(t, store.Add(1, "vehicle", spatialmath.NewZeroPose()), test.ShouldBeNil)
	test.That(t, store.Add(2, "civilian", spatialmath.NewZeroPose()), test.ShouldBeNil)
	registry, err := cfg.Registry(store)
	test.That(t, err, test.ShouldBeNil)

	mode, err := registry.Resolve(movement.Uninitialized, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode.Name, test.ShouldEqual, "drive")
	test.That(t, mode.StuckCheck, test.ShouldEqual, movement.StuckCheckCivilVehicles)
	mode, err = registry.Resolve(movement.Uninitialized, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode.Name, test.ShouldEqual, "walk")
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read("data/does_not_exist.json5")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFromReaderErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "not json5",
			input:    `{movement_modes: [`,
			expected: []string{"json5"},
		},
		{
			name:     "unknown key",
			input:    `{moov: {}}`,
			expected: []string{"moov"},
		},
		{
			name:  "everything missing",
			input: `{}`,
			expected: []string{
				utils.NewConfigValidationFieldRequiredError("move.civil_vehicles", "tolerance").Error(),
				utils.NewConfigValidationFieldRequiredError("router", "type").Error(),
				`"movement_modes" is required`,
			},
		},
		{
			name: "bad references",
			input: `{
				log_level: "loud",
				move: {
					civil_vehicles: {tolerance: 1, window_sec: 1},
					squads: {tolerance: 1, window_sec: 1},
					max_retries: 1,
					min_distance_for_retry: 1,
					plan_deviation: 1,
					ground_trace_distance: 1,
					path_cut_distance: 1,
				},
				movement_modes: [{name: "walk", speed: 1}, {name: "walk", speed: 2}, {name: "crawl", speed: 0}],
				default_modes: {squad: "run"},
				fallback_mode: "fly",
				router: {type: "graph"},
			}`,
			expected: []string{
				`"loud"`,
				`duplicate movement mode name "walk"`,
				"speed must be positive",
				`unknown movement mode "run"`,
				`unknown movement mode "fly"`,
				`"max_snap_distance" is required`,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader("", strings.NewReader(tc.input))
			test.That(t, err, test.ShouldNotBeNil)
			for _, substring := range tc.expected {
				test.That(t, err.Error(), test.ShouldContainSubstring, substring)
			}
		})
	}
}

func TestRouterConfigValidate(t *testing.T) {
	test.That(t, (&RouterConfig{Type: RouterDirect}).Validate("router"), test.ShouldBeNil)
	test.That(t, (&RouterConfig{Type: RouterGraph, MaxSnapDistance: 3}).Validate("router"), test.ShouldBeNil)
	test.That(t, (&RouterConfig{Type: "teleport"}).Validate("router"), test.ShouldNotBeNil)
}

func TestLevel(t *testing.T) {
	cfg := Config{LogLevel: "warn"}
	test.That(t, cfg.Level(), test.ShouldEqual, logging.WARN)
	cfg.Debug = true
	test.That(t, cfg.Level(), test.ShouldEqual, logging.DEBUG)
}

func TestSchema(t *testing.T) {
	schema := Schema()
	test.That(t, schema, test.ShouldNotBeNil)
	raw, err := schema.MarshalJSON()
	test.That(t, err, test.ShouldBeNil)
	for _, field := range []string{"movement_modes", "max_retries", "window_sec", "max_snap_distance"} {
		test.That(t, string(raw), test.ShouldContainSubstring, field)
	}
	test.That(t, string(raw), test.ShouldNotContainSubstring, "ConfigFilePath")
}

func TestUpdateFileConfigDebug(t *testing.T) {
	InitLoggingSettings(logging.NewTestLogger(t), false)
	test.That(t, logging.GlobalLogLevel.Level().String(), test.ShouldEqual, "info")
	UpdateFileConfigDebug(true)
	test.That(t, logging.GlobalLogLevel.Level().String(), test.ShouldEqual, "debug")
	UpdateFileConfigDebug(false)
	test.That(t, logging.GlobalLogLevel.Level().String(), test.ShouldEqual, "info")
}
