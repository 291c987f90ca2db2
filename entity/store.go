package entity

import (
	"slices"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
	"github.com/16tons/emergency5-sdk-sub029/utils"
)

// KindGround is the kind given to entities created by AddGround.
const KindGround = "ground"

// querySize is the edge length of the square used to query the ground index around a point.
const querySize = 0.01

type record struct {
	kind    string
	pose    spatialmath.Pose
	blocked bool
	ground  ID
}

type groundBox struct {
	id       ID
	min, max r3.Vector
	rect     *rtreego.Rect
}

func (g *groundBox) Bounds() *rtreego.Rect {
	return g.rect
}

func (g *groundBox) containsXY(p r3.Vector) bool {
	return p.X >= g.min.X && p.X <= g.max.X && p.Y >= g.min.Y && p.Y <= g.max.Y
}

// Store is an in-memory World and GroundTracer. Grounds are axis-aligned boxes kept in an R-tree
// over their XY footprint.
type Store struct {
	mu         sync.RWMutex
	entities   map[ID]*record
	grounds    map[ID]*groundBox
	groundTree *rtreego.Rtree
	stepHeight float64
}

// NewStore returns an empty store. stepHeight is how far above a position a ground's top may be
// and still count as being underneath it.
func NewStore(stepHeight float64) *Store {
	return &Store{
		entities:   map[ID]*record{},
		grounds:    map[ID]*groundBox{},
		groundTree: rtreego.NewTree(2, 25, 50),
		stepHeight: stepHeight,
	}
}

// Add registers a new entity.
func (s *Store) Add(id ID, kind string, pose spatialmath.Pose) error {
	if !id.IsValid() {
		return errors.New("cannot add the uninitialized entity id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; ok {
		return errors.Errorf("entity %v already exists", id)
	}
	s.entities[id] = &record{kind: kind, pose: pose, ground: Uninitialized}
	return nil
}

// AddGround registers a ground entity covering the box [min, max].
func (s *Store) AddGround(id ID, min, max r3.Vector) error {
	if max.X <= min.X || max.Y <= min.Y || max.Z < min.Z {
		return errors.Errorf("ground %v has an empty footprint", id)
	}
	rect, err := rtreego.NewRect(rtreego.Point{min.X, min.Y}, []float64{max.X - min.X, max.Y - min.Y})
	if err != nil {
		return errors.Wrapf(err, "ground %v", id)
	}
	center := min.Add(max).Mul(0.5)
	if err := s.Add(id, KindGround, spatialmath.NewPose(center, 0)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	box := &groundBox{id: id, min: min, max: max, rect: rect}
	s.grounds[id] = box
	s.groundTree.Insert(box)
	return nil
}

// Remove deletes an entity. Later lookups of id fail. Entities attached to a removed ground are
// detached.
func (s *Store) Remove(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	if box, ok := s.grounds[id]; ok {
		s.groundTree.Delete(box)
		delete(s.grounds, id)
		for _, rec := range s.entities {
			if rec.ground == id {
				rec.ground = Uninitialized
			}
		}
	}
	return true
}

// SetBlocked makes SetPose a no-op for id while blocked is true. Used to simulate an entity that
// is physically held in place.
func (s *Store) SetBlocked(id ID, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[id]
	if !ok {
		return utils.NewEntityNotFoundError(id)
	}
	rec.blocked = blocked
	return nil
}

// IDs returns all live entity ids in ascending order.
func (s *Store) IDs() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := lo.Keys(s.entities)
	slices.Sort(ids)
	return ids
}

// Pose returns the pose of id.
func (s *Store) Pose(id ID) (spatialmath.Pose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[id]
	if !ok {
		return spatialmath.Pose{}, false
	}
	return rec.pose, true
}

// SetPose moves id, unless it is blocked.
func (s *Store) SetPose(id ID, pose spatialmath.Pose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[id]
	if !ok {
		return utils.NewEntityNotFoundError(id)
	}
	if !rec.blocked {
		rec.pose = pose
	}
	return nil
}

// Kind returns the kind of id.
func (s *Store) Kind(id ID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[id]
	if !ok {
		return "", false
	}
	return rec.kind, true
}

// GroundAt returns the ground whose footprint contains pos and whose top is the highest one not
// more than the step height above pos. Ties go to the lowest id.
func (s *Store) GroundAt(pos r3.Vector) (ID, bool) {
	query, err := rtreego.NewRect(rtreego.Point{pos.X - querySize/2, pos.Y - querySize/2}, []float64{querySize, querySize})
	if err != nil {
		return Uninitialized, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	best := Uninitialized
	bestTop := 0.0
	for _, spatial := range s.groundTree.SearchIntersect(query) {
		box, ok := spatial.(*groundBox)
		if !ok || !box.containsXY(pos) || box.max.Z > pos.Z+s.stepHeight {
			continue
		}
		if !best.IsValid() || box.max.Z > bestTop || (box.max.Z == bestTop && box.id < best) {
			best = box.id
			bestTop = box.max.Z
		}
	}
	return best, best.IsValid()
}

// AttachToGround records that id currently stands on ground. Uninitialized detaches.
func (s *Store) AttachToGround(id, ground ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entities[id]
	if !ok {
		return utils.NewEntityNotFoundError(id)
	}
	if ground.IsValid() {
		if _, ok := s.grounds[ground]; !ok {
			return errors.Errorf("entity %v is not a ground", ground)
		}
	}
	rec.ground = ground
	return nil
}

// Ground returns the ground id is attached to.
func (s *Store) Ground(id ID) (ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entities[id]
	if !ok || !rec.ground.IsValid() {
		return Uninitialized, false
	}
	return rec.ground, true
}
