// Package spatialmath defines the planar poses used by navigation: a world position plus a
// heading about +Z.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

const defaultEpsilon = 1e-6

// Pose is a world position and a heading in radians, measured counter-clockwise from +X.
type Pose struct {
	Point   r3.Vector
	Heading float64
}

// NewPose returns a pose at point facing heading. The heading is wrapped to (-pi, pi].
func NewPose(point r3.Vector, heading float64) Pose {
	return Pose{Point: point, Heading: WrapToPi(heading)}
}

// NewZeroPose returns a pose at the origin facing +X.
func NewZeroPose() Pose {
	return Pose{}
}

// Direction returns the unit horizontal vector the pose faces.
func (p Pose) Direction() r3.Vector {
	return DirectionFromHeading(p.Heading)
}

// Transform maps a point given in the pose's local frame (+X forward, +Y left) into world space.
func (p Pose) Transform(local r3.Vector) r3.Vector {
	return p.Point.Add(RotateZ(local, p.Heading))
}

func (p Pose) String() string {
	return fmt.Sprintf("{X:%.3f Y:%.3f Z:%.3f Heading:%.3f}", p.Point.X, p.Point.Y, p.Point.Z, p.Heading)
}

// HeadingFromDirection returns the heading of the horizontal part of dir. A vertical or zero
// vector has heading 0.
func HeadingFromDirection(dir r3.Vector) float64 {
	if math.Abs(dir.X) < defaultEpsilon && math.Abs(dir.Y) < defaultEpsilon {
		return 0
	}
	return math.Atan2(dir.Y, dir.X)
}

// DirectionFromHeading returns the unit horizontal vector for heading.
func DirectionFromHeading(heading float64) r3.Vector {
	return r3.Vector{X: math.Cos(heading), Y: math.Sin(heading)}
}

// RotateZ rotates v counter-clockwise about +Z by angle radians.
func RotateZ(v r3.Vector, angle float64) r3.Vector {
	sin, cos := math.Sincos(angle)
	return r3.Vector{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos, Z: v.Z}
}

// RightOf returns the unit horizontal vector 90 degrees clockwise of dir.
func RightOf(dir r3.Vector) r3.Vector {
	right := r3.Vector{X: dir.Y, Y: -dir.X}
	if right.Norm() < defaultEpsilon {
		return r3.Vector{}
	}
	return right.Normalize()
}

// WrapToPi wraps an angle into (-pi, pi].
func WrapToPi(angle float64) float64 {
	wrapped := math.Mod(angle, 2*math.Pi)
	if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	} else if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// SignedAngle returns the angle in (-pi, pi] that rotates the horizontal part of a onto the
// horizontal part of b. Positive is counter-clockwise.
func SignedAngle(a, b r3.Vector) float64 {
	cross := a.X*b.Y - a.Y*b.X
	dot := a.X*b.X + a.Y*b.Y
	return math.Atan2(cross, dot)
}

// PlanarDistance is the distance between a and b ignoring Z.
func PlanarDistance(a, b r3.Vector) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, defaultEpsilon)
}

// PoseAlmostEqualEps will return a bool describing whether 2 poses are approximately the same
// within epsilon, comparing headings modulo a full turn.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point, b.Point, epsilon) && math.Abs(WrapToPi(a.Heading-b.Heading)) < epsilon
}
