package component

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/simcore/internal/core/ecs"
)

// Movement integrates position from the desired direction. Critical.
type Movement struct {
	owner *ecs.Character

	Position  mgl64.Vec3
	Facing    mgl64.Vec3
	BaseSpeed float64 // units per second
	Radius    float64 // collision radius used by spatial queries

	direction mgl64.Vec3
}

func NewMovement(pos mgl64.Vec3, baseSpeed, radius float64) *Movement {
	return &Movement{
		Position:  pos,
		Facing:    mgl64.Vec3{1, 0, 0},
		BaseSpeed: baseSpeed,
		Radius:    radius,
	}
}

func (m *Movement) Kind() ecs.ComponentKind   { return ecs.ComponentMovement }
func (m *Movement) OnAttach(c *ecs.Character) { m.owner = c }
func (m *Movement) OnDetach()                 { m.owner = nil }

// SetDirection sets the desired travel direction; the zero vector stops.
func (m *Movement) SetDirection(dir mgl64.Vec3) {
	if dir.Len() < 1e-9 {
		m.direction = mgl64.Vec3{}
		return
	}
	m.direction = dir.Normalize()
	m.Facing = m.direction
}

func (m *Movement) Direction() mgl64.Vec3 { return m.direction }

// Speed returns the effective speed after effect modifiers, never negative.
func (m *Movement) Speed() float64 {
	speed := m.BaseSpeed
	if m.owner != nil {
		speed = m.owner.Modifiers().Apply(ecs.StatMoveSpeed, speed)
	}
	if speed < 0 {
		return 0
	}
	return speed
}

// Displace moves the character immediately by offset (dashes, knockback).
func (m *Movement) Displace(offset mgl64.Vec3) {
	m.Position = m.Position.Add(offset)
}

func (m *Movement) Update(tc ecs.TickContext) error {
	if m.owner != nil && !m.owner.Alive() {
		return nil
	}
	if m.direction.Len() == 0 {
		return nil
	}
	m.Position = m.Position.Add(m.direction.Mul(m.Speed() * tc.Seconds()))
	return nil
}
