package movement

import (
	"testing"

	"go.viam.com/test"

	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
)

func TestStuckCheckMode(t *testing.T) {
	for _, m := range []StuckCheckMode{StuckCheckNone, StuckCheckCivilVehicles, StuckCheckSquads} {
		parsed, err := ParseStuckCheckMode(m.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, m)
	}
	parsed, err := ParseStuckCheckMode("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldEqual, StuckCheckNone)
	_, err = ParseStuckCheckMode("tanks")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRegistry(t *testing.T) {
	world := entity.NewStore(0.5)
	test.That(t, world.Add(1, "ambulance", spatialmath.NewZeroPose()), test.ShouldBeNil)
	test.That(t, world.Add(2, "civilian", spatialmath.NewZeroPose()), test.ShouldBeNil)

	r := NewRegistry(world)
	test.That(t, r.Register(Mode{ID: 0, Name: "walk", Speed: 1.5}), test.ShouldBeNil)
	test.That(t, r.Register(Mode{ID: 1, Name: "emergency", Speed: 12, EmergencyOperations: true}), test.ShouldBeNil)
	test.That(t, r.Register(Mode{ID: 1, Name: "other", Speed: 1}), test.ShouldNotBeNil)
	test.That(t, r.Register(Mode{ID: 2, Name: "walk", Speed: 1}), test.ShouldNotBeNil)
	test.That(t, r.Register(Mode{ID: 3, Name: "parked", Speed: 0}), test.ShouldNotBeNil)
	test.That(t, r.Register(Mode{ID: Uninitialized, Name: "x", Speed: 1}), test.ShouldNotBeNil)

	mode, err := r.Resolve(1, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode.Name, test.ShouldEqual, "emergency")

	_, err = r.Resolve(7, 2)
	test.That(t, err, test.ShouldNotBeNil)

	// No defaults yet.
	_, err = r.Resolve(Uninitialized, 1)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, r.SetDefault("ambulance", 1), test.ShouldBeNil)
	test.That(t, r.SetDefault("ambulance", 9), test.ShouldNotBeNil)
	test.That(t, r.SetFallback(0), test.ShouldBeNil)

	mode, err = r.Resolve(Uninitialized, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode.Name, test.ShouldEqual, "emergency")

	mode, err = r.Resolve(Uninitialized, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode.Name, test.ShouldEqual, "walk")

	// Removed agents have no kind and get the fallback.
	mode, err = r.Resolve(Uninitialized, 99)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode.Name, test.ShouldEqual, "walk")
}

func TestRegistryFromConfig(t *testing.T) {
	world := entity.NewStore(0.5)
	test.That(t, world.Add(1, "police", spatialmath.NewZeroPose()), test.ShouldBeNil)

	modes := []ModeConfig{
		{Name: "patrol", Speed: 8, CornerRadius: 3, StuckCheck: "civil_vehicles"},
		{Name: "pursuit", Speed: 14, EmergencyOperations: true, StuckCheck: "squads"},
	}
	r, err := NewRegistryFromConfig(world, modes, map[string]string{"police": "pursuit"}, "patrol")
	test.That(t, err, test.ShouldBeNil)

	mode, err := r.Resolve(Uninitialized, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldResemble, Mode{
		ID: 1, Name: "pursuit", Speed: 14, EmergencyOperations: true, StuckCheck: StuckCheckSquads,
	})
	patrol, ok := r.ByName("patrol")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, patrol.StuckCheck, test.ShouldEqual, StuckCheckCivilVehicles)

	_, err = NewRegistryFromConfig(world, modes, map[string]string{"police": "missing"}, "")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewRegistryFromConfig(world, modes, nil, "missing")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewRegistryFromConfig(world, []ModeConfig{{Name: "bad", Speed: -1}}, nil, "")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewRegistryFromConfig(world, []ModeConfig{{Speed: 1}}, nil, "")
	test.That(t, err, test.ShouldNotBeNil)
}
