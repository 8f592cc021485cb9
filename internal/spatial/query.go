// Package spatial answers line-intersection queries for ability callbacks.
// It is not a physics engine: characters are spheres at their last
// committed position.
package spatial

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/ecs"
)

// Hit is the result of a raycast. Point is where the ray stopped: the
// surface of the hit entity, or the end of the ray.
type Hit struct {
	Point     mgl64.Vec3
	Entity    ecs.EntityID
	HasEntity bool
	Distance  float64
}

// Query is the line-intersection collaborator used by ability callbacks.
// Position lets validators range-check a target without locking it.
type Query interface {
	Raycast(origin, dir mgl64.Vec3, maxDist float64, exclude ...ecs.EntityID) Hit
	Position(id ecs.EntityID) (mgl64.Vec3, bool)
}

type body struct {
	id     ecs.EntityID
	center mgl64.Vec3
	radius float64
}

// SphereIndex is a Query over a per-tick snapshot of character positions.
type SphereIndex struct {
	mu     sync.RWMutex
	bodies []body
}

func NewSphereIndex() *SphereIndex {
	return &SphereIndex{}
}

// Rebuild snapshots every living character that has a Movement component.
// Called once per tick when no component updates are running.
func (s *SphereIndex) Rebuild(chars []*ecs.Character) {
	bodies := make([]body, 0, len(chars))
	for _, c := range chars {
		if !c.Alive() {
			continue
		}
		c.Lock()
		m, ok := ecs.Get[*component.Movement](c, ecs.ComponentMovement)
		if ok {
			bodies = append(bodies, body{id: c.ID(), center: m.Position, radius: m.Radius})
		}
		c.Unlock()
	}
	s.mu.Lock()
	s.bodies = bodies
	s.mu.Unlock()
}

// Position returns the snapshotted position of id.
func (s *SphereIndex) Position(id ecs.EntityID) (mgl64.Vec3, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bodies {
		if b.id == id {
			return b.center, true
		}
	}
	return mgl64.Vec3{}, false
}

func (s *SphereIndex) Raycast(origin, dir mgl64.Vec3, maxDist float64, exclude ...ecs.EntityID) Hit {
	miss := Hit{Point: origin, Distance: 0}
	if dir.Len() < 1e-9 || maxDist <= 0 {
		return miss
	}
	dir = dir.Normalize()
	best := Hit{Point: origin.Add(dir.Mul(maxDist)), Distance: maxDist}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bodies {
		if excluded(b.id, exclude) {
			continue
		}
		t, ok := intersect(origin, dir, b.center, b.radius)
		if !ok || t > maxDist || (best.HasEntity && t >= best.Distance) {
			continue
		}
		best = Hit{Point: origin.Add(dir.Mul(t)), Entity: b.id, HasEntity: true, Distance: t}
	}
	return best
}

func excluded(id ecs.EntityID, exclude []ecs.EntityID) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}

// intersect returns the distance along a normalised ray to the first point
// on the sphere, or 0 when the origin is inside it.
func intersect(origin, dir, center mgl64.Vec3, radius float64) (float64, bool) {
	m := origin.Sub(center)
	b := m.Dot(dir)
	c := m.Dot(m) - radius*radius
	if c > 0 && b > 0 {
		return 0, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 {
		t = 0
	}
	return t, true
}
