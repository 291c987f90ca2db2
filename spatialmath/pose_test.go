package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestHeadingDirection(t *testing.T) {
	for _, heading := range []float64{0, math.Pi / 4, math.Pi / 2, math.Pi, -math.Pi / 3} {
		dir := DirectionFromHeading(heading)
		test.That(t, dir.Norm(), test.ShouldAlmostEqual, 1)
		test.That(t, WrapToPi(HeadingFromDirection(dir)-heading), test.ShouldAlmostEqual, 0)
	}
	test.That(t, HeadingFromDirection(r3.Vector{Z: 1}), test.ShouldEqual, 0.0)
	test.That(t, HeadingFromDirection(r3.Vector{X: 0, Y: 2, Z: 5}), test.ShouldAlmostEqual, math.Pi/2)
}

func TestWrapToPi(t *testing.T) {
	test.That(t, WrapToPi(3*math.Pi-0.25), test.ShouldAlmostEqual, math.Pi-0.25)
	test.That(t, WrapToPi(-math.Pi), test.ShouldAlmostEqual, math.Pi)
	test.That(t, WrapToPi(2*math.Pi+0.5), test.ShouldAlmostEqual, 0.5)
	test.That(t, WrapToPi(-0.5), test.ShouldAlmostEqual, -0.5)
}

func TestRotations(t *testing.T) {
	x := r3.Vector{X: 1}
	y := r3.Vector{Y: 1}
	test.That(t, R3VectorAlmostEqual(RotateZ(x, math.Pi/2), y, 1e-9), test.ShouldBeTrue)
	test.That(t, SignedAngle(x, y), test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, SignedAngle(y, x), test.ShouldAlmostEqual, -math.Pi/2)
	test.That(t, R3VectorAlmostEqual(RightOf(x), r3.Vector{Y: -1}, 1e-9), test.ShouldBeTrue)
	test.That(t, RightOf(r3.Vector{Z: 1}), test.ShouldResemble, r3.Vector{})
}

func TestPose(t *testing.T) {
	p := NewPose(r3.Vector{X: 1, Y: 2}, math.Pi/2+2*math.Pi)
	test.That(t, p.Heading, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, R3VectorAlmostEqual(p.Transform(r3.Vector{X: 2}), r3.Vector{X: 1, Y: 4}, 1e-9), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(p, Pose{Point: r3.Vector{X: 1, Y: 2}, Heading: -3 * math.Pi / 2}), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(p, NewZeroPose()), test.ShouldBeFalse)
	test.That(t, PlanarDistance(r3.Vector{Z: 10}, r3.Vector{X: 3, Y: 4}), test.ShouldAlmostEqual, 5)
}
