// Package segmenter turns a sparse list of waypoint nodes into a continuous curve of straight and
// circular-arc segments, and answers position and direction queries against a 1-D path offset.
package segmenter

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/16tons/emergency5-sdk-sub029/navigation/path"
	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
	"github.com/16tons/emergency5-sdk-sub029/utils"
)

const (
	// positions closer than this are the same point.
	distanceEpsilon = 1e-6
	// turns smaller than this, or closer than this to a full reversal, are not rounded.
	angleEpsilon = 1e-6
)

// Segment is one straight stretch or circular arc. Angle is 0 for a straight segment; for an arc it
// is the signed turn in radians, positive counter-clockwise, and Direction is the horizontal
// tangent at Start. Climb is the change in height across an arc; straight segments carry their
// slope in Direction.
type Segment struct {
	Start     r3.Vector
	Direction r3.Vector
	Right     r3.Vector
	Angle     float64
	Climb     float64
	Offset    float64
	Length    float64
}

// IsArc returns whether the segment is curved.
func (s Segment) IsArc() bool {
	return s.Angle != 0
}

// Radius returns the arc radius, or 0 for a straight segment.
func (s Segment) Radius() float64 {
	if !s.IsArc() {
		return 0
	}
	return s.Length / math.Abs(s.Angle)
}

// End returns the offset at which the segment ends.
func (s Segment) End() float64 {
	return s.Offset + s.Length
}

// positionAt evaluates the segment at a local distance from its start.
func (s Segment) positionAt(local float64) r3.Vector {
	if s.Length <= 0 {
		return s.Start
	}
	if !s.IsArc() {
		return s.Start.Add(s.Direction.Mul(local))
	}
	frac := local / s.Length
	radius := s.Radius()
	phi := math.Abs(s.Angle) * frac
	side := s.Right
	if s.Angle > 0 {
		side = side.Mul(-1)
	}
	pos := s.Start.
		Add(s.Direction.Mul(radius * math.Sin(phi))).
		Add(side.Mul(radius * (1 - math.Cos(phi))))
	pos.Z = s.Start.Z + s.Climb*frac
	return pos
}

// directionAt returns the unit tangent at a local distance from the start.
func (s Segment) directionAt(local float64) r3.Vector {
	if !s.IsArc() || s.Length <= 0 {
		return s.Direction
	}
	frac := local / s.Length
	dir := spatialmath.RotateZ(s.Direction, s.Angle*frac)
	dir.Z = s.Climb / s.Length
	return dir.Normalize()
}

// truncated returns the part of the segment from local onwards, with Offset unchanged.
func (s Segment) truncated(local float64) Segment {
	if local <= 0 {
		return s
	}
	rest := s
	rest.Start = s.positionAt(local)
	rest.Length = s.Length - local
	if s.IsArc() {
		frac := local / s.Length
		rest.Direction = spatialmath.RotateZ(s.Direction, s.Angle*frac)
		rest.Right = spatialmath.RightOf(rest.Direction)
		rest.Angle = s.Angle * (1 - frac)
		rest.Climb = s.Climb * (1 - frac)
	}
	return rest
}

// Segmenter holds the segmented form of a path. The zero value is an empty path.
type Segmenter struct {
	segments []Segment
	length   float64
	// anchor is reported by evaluations of an empty path that was built from at least one node.
	anchor r3.Vector
	// pathPositionByNodeIndex maps every input node to its path offset.
	pathPositionByNodeIndex []float64
}

// New returns a segmenter built from nodes.
func New(nodes []path.Node) *Segmenter {
	s := &Segmenter{}
	s.BuildFromNodes(nodes)
	return s
}

// FromPath returns a segmenter built from the nodes of p.
func FromPath(p *path.Path) *Segmenter {
	return New(p.Nodes())
}

// corner is a rounded corner at an interior node: the arc runs from entry to exit.
type corner struct {
	entry, exit r3.Vector
	direction   r3.Vector
	angle       float64
	length      float64
}

// BuildFromNodes rebuilds the segments from nodes. Consecutive duplicate positions collapse into
// one point; fewer than two distinct points give an empty path of zero length.
func (s *Segmenter) BuildFromNodes(nodes []path.Node) {
	s.segments = nil
	s.length = 0
	s.anchor = r3.Vector{}
	s.pathPositionByNodeIndex = make([]float64, len(nodes))
	if len(nodes) == 0 {
		return
	}

	// Collapse duplicates, remembering which distinct point every input node maps to.
	points := []path.Node{nodes[0]}
	distinctIndex := make([]int, len(nodes))
	for i := 1; i < len(nodes); i++ {
		if nodes[i].Position.Sub(points[len(points)-1].Position).Norm() < distanceEpsilon {
			distinctIndex[i] = len(points) - 1
			continue
		}
		points = append(points, nodes[i])
		distinctIndex[i] = len(points) - 1
	}
	s.anchor = points[0].Position
	if len(points) < 2 {
		return
	}

	corners := make([]*corner, len(points))
	for j := 1; j < len(points)-1; j++ {
		corners[j] = roundCorner(points, j)
	}

	distinctPositions := make([]float64, len(points))
	current := points[0].Position
	for j := 1; j < len(points); j++ {
		legEnd := points[j].Position
		if c := corners[j]; c != nil {
			legEnd = c.entry
		}
		s.appendLinear(current, legEnd)

		c := corners[j]
		if c == nil {
			distinctPositions[j] = s.length
			current = points[j].Position
			continue
		}
		distinctPositions[j] = s.length + c.length/2
		s.segments = append(s.segments, Segment{
			Start:     c.entry,
			Direction: c.direction,
			Right:     spatialmath.RightOf(c.direction),
			Angle:     c.angle,
			Climb:     c.exit.Z - c.entry.Z,
			Offset:    s.length,
			Length:    c.length,
		})
		s.length += c.length
		current = c.exit
	}
	distinctPositions[len(points)-1] = s.length

	for i := range nodes {
		s.pathPositionByNodeIndex[i] = distinctPositions[distinctIndex[i]]
	}
}

func (s *Segmenter) appendLinear(from, to r3.Vector) {
	delta := to.Sub(from)
	length := delta.Norm()
	if length < distanceEpsilon {
		return
	}
	dir := delta.Mul(1 / length)
	s.segments = append(s.segments, Segment{
		Start:     from,
		Direction: dir,
		Right:     spatialmath.RightOf(dir),
		Offset:    s.length,
		Length:    length,
	})
	s.length += length
}

// roundCorner computes the arc replacing the corner at interior point j, or nil when the corner
// stays sharp. The tangent length is limited to half of each adjacent leg, or the whole leg when
// the leg touches the first or last point, so neighbouring arcs never overlap.
func roundCorner(points []path.Node, j int) *corner {
	radius := points[j].Radius
	if radius <= 0 {
		return nil
	}
	prev, here, next := points[j-1].Position, points[j].Position, points[j+1].Position
	in := here.Sub(prev)
	out := next.Sub(here)
	inFlat := math.Hypot(in.X, in.Y)
	outFlat := math.Hypot(out.X, out.Y)
	if inFlat < distanceEpsilon || outFlat < distanceEpsilon {
		return nil
	}

	angle := spatialmath.SignedAngle(in, out)
	if utils.Float64AlmostEqual(angle, 0, angleEpsilon) || math.Abs(angle) > math.Pi-angleEpsilon {
		return nil
	}
	halfTan := math.Tan(math.Abs(angle) / 2)

	inLimit := inFlat / 2
	if j-1 == 0 {
		inLimit = inFlat
	}
	outLimit := outFlat / 2
	if j+1 == len(points)-1 {
		outLimit = outFlat
	}
	tangent := floats.Min([]float64{radius * halfTan, inLimit, outLimit})
	if tangent < distanceEpsilon {
		return nil
	}
	effectiveRadius := tangent / halfTan

	return &corner{
		entry:     here.Sub(in.Mul(tangent / inFlat)),
		exit:      here.Add(out.Mul(tangent / outFlat)),
		direction: r3.Vector{X: in.X / inFlat, Y: in.Y / inFlat},
		angle:     angle,
		length:    effectiveRadius * math.Abs(angle),
	}
}

// Length returns the total path length, 0 for an empty path.
func (s *Segmenter) Length() float64 {
	return s.length
}

// Empty returns whether the path has no segments.
func (s *Segmenter) Empty() bool {
	return len(s.segments) == 0
}

// Segments returns a copy of the segments.
func (s *Segmenter) Segments() []Segment {
	return append([]Segment(nil), s.segments...)
}

// NodeCount returns how many nodes the path was built from.
func (s *Segmenter) NodeCount() int {
	return len(s.pathPositionByNodeIndex)
}

// locate returns the index of the segment containing offset, after clamping it to
// [0, Length()], and the local distance into that segment.
func (s *Segmenter) locate(offset float64) (int, float64) {
	offset = utils.Clamp(offset, 0, s.length)
	i := sort.Search(len(s.segments), func(i int) bool {
		return s.segments[i].End() >= offset
	})
	if i == len(s.segments) {
		i = len(s.segments) - 1
	}
	seg := s.segments[i]
	return i, utils.Clamp(offset-seg.Offset, 0, seg.Length)
}

// EvaluatePositionAt returns the position at offset. Offsets outside [0, Length()] clamp to the
// nearest end.
func (s *Segmenter) EvaluatePositionAt(offset float64) r3.Vector {
	if s.Empty() {
		return s.anchor
	}
	i, local := s.locate(offset)
	return s.segments[i].positionAt(local)
}

// EvaluateDirectionAt returns the unit direction of travel at offset, clamped like
// EvaluatePositionAt. An empty path has no direction and returns the zero vector.
func (s *Segmenter) EvaluateDirectionAt(offset float64) r3.Vector {
	if s.Empty() {
		return r3.Vector{}
	}
	i, local := s.locate(offset)
	return s.segments[i].directionAt(local)
}

// CutAwayPathBeforeOffset drops everything before offset and re-bases the remaining segments so
// the path starts at 0. Nodes that were cut away keep their now negative offsets, so node indices
// stay meaningful.
func (s *Segmenter) CutAwayPathBeforeOffset(offset float64) {
	if offset <= 0 || s.Empty() {
		return
	}
	if offset >= s.length {
		s.anchor = s.EvaluatePositionAt(s.length)
		s.segments = nil
		s.length = 0
		for i := range s.pathPositionByNodeIndex {
			s.pathPositionByNodeIndex[i] -= offset
		}
		return
	}

	first, local := s.locate(offset)
	remaining := make([]Segment, 0, len(s.segments)-first)
	if head := s.segments[first].truncated(local); head.Length >= distanceEpsilon {
		remaining = append(remaining, head)
	}
	remaining = append(remaining, s.segments[first+1:]...)

	s.anchor = s.EvaluatePositionAt(offset)
	s.segments = remaining
	s.rebase()
	for i := range s.pathPositionByNodeIndex {
		s.pathPositionByNodeIndex[i] -= offset
	}
}

// rebase recomputes segment offsets from 0 and the total length.
func (s *Segmenter) rebase() {
	lengths := make([]float64, len(s.segments))
	for i, seg := range s.segments {
		lengths[i] = seg.Length
	}
	ends := floats.CumSum(make([]float64, len(lengths)), lengths)
	for i := range s.segments {
		if i == 0 {
			s.segments[i].Offset = 0
			continue
		}
		s.segments[i].Offset = ends[i-1]
	}
	s.length = floats.Sum(lengths)
}

// CreateLinearSegmentApproximation returns a polyline through the path. Straight segments
// contribute their two end points; arcs are subdivided into ceil(|angle| * detail) pieces, so a
// higher detail gives a closer fit.
func (s *Segmenter) CreateLinearSegmentApproximation(detail float64) []r3.Vector {
	if s.Empty() {
		return nil
	}
	points := []r3.Vector{s.segments[0].Start}
	for _, seg := range s.segments {
		if seg.IsArc() {
			pieces := int(math.Ceil(math.Abs(seg.Angle) * math.Max(detail, 0)))
			for k := 1; k < pieces; k++ {
				points = append(points, seg.positionAt(seg.Length*float64(k)/float64(pieces)))
			}
		}
		points = append(points, seg.positionAt(seg.Length))
	}
	return points
}

// PathPositionByNodeIndex returns the path offset of the input node at index. A rounded corner's
// node maps to the middle of its arc.
func (s *Segmenter) PathPositionByNodeIndex(index int) (float64, error) {
	if index < 0 || index >= len(s.pathPositionByNodeIndex) {
		return 0, errors.Errorf("node index %d out of range [0, %d)", index, len(s.pathPositionByNodeIndex))
	}
	return s.pathPositionByNodeIndex[index], nil
}

// NodeIndexByPathPosition returns the fractional node index at offset by interpolating between
// the offsets of the surrounding nodes. Where several nodes share an offset the last one wins.
func (s *Segmenter) NodeIndexByPathPosition(offset float64) float64 {
	positions := s.pathPositionByNodeIndex
	if len(positions) == 0 {
		return 0
	}
	offset = utils.Clamp(offset, 0, s.length)
	i := sort.SearchFloat64s(positions, math.Nextafter(offset, math.Inf(1))) - 1
	if i < 0 {
		return 0
	}
	if i >= len(positions)-1 {
		return float64(len(positions) - 1)
	}
	return float64(i) + (offset-positions[i])/(positions[i+1]-positions[i])
}

// Project returns the offset of the point on the path closest to p.
func (s *Segmenter) Project(p r3.Vector) float64 {
	best, bestDist := 0.0, math.Inf(1)
	for _, seg := range s.segments {
		local := seg.closestLocal(p)
		if dist := seg.positionAt(local).Sub(p).Norm(); dist < bestDist {
			best, bestDist = seg.Offset+local, dist
		}
	}
	return best
}

// closestLocal returns the local distance on the segment closest to p.
func (s Segment) closestLocal(p r3.Vector) float64 {
	if !s.IsArc() {
		return utils.Clamp(p.Sub(s.Start).Dot(s.Direction), 0, s.Length)
	}
	radius := s.Radius()
	side := s.Right
	if s.Angle > 0 {
		side = side.Mul(-1)
	}
	center := s.Start.Add(side.Mul(radius))
	fromCenter := s.Start.Sub(center)
	toPoint := p.Sub(center)
	swept := spatialmath.SignedAngle(fromCenter, toPoint)
	if s.Angle < 0 {
		swept = -swept
	}
	if swept >= 0 && swept <= math.Abs(s.Angle) {
		return swept * radius
	}
	if s.Start.Sub(p).Norm() <= s.positionAt(s.Length).Sub(p).Norm() {
		return 0
	}
	return s.Length
}
