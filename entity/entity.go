// Package entity defines entity identifiers and the world access the navigation core needs: reading
// and writing an entity's pose, looking up its kind and tracing which ground it stands on.
package entity

import (
	"math"
	"strconv"

	"github.com/golang/geo/r3"

	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
)

// ID identifies an entity.
type ID uint32

// Uninitialized is the sentinel for "no entity".
const Uninitialized ID = math.MaxUint32

// IsValid returns whether the id is not the Uninitialized sentinel.
func (id ID) IsValid() bool {
	return id != Uninitialized
}

func (id ID) String() string {
	if !id.IsValid() {
		return "uninitialized"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// World is read/write access to entity transforms. Lookups of removed entities report false, so
// callers hold ids rather than references and resolve them every tick.
type World interface {
	Pose(id ID) (spatialmath.Pose, bool)
	SetPose(id ID, pose spatialmath.Pose) error
	Kind(id ID) (string, bool)
}

// GroundTracer answers which ground entity (terrain, bridge, deck) lies under a position and
// records the ground an entity is attached to.
type GroundTracer interface {
	GroundAt(pos r3.Vector) (ID, bool)
	AttachToGround(id, ground ID) error
}
