package ecs

import (
	"errors"
	"fmt"
	"time"
)

// ComponentKind is the closed set of component variants a Character can own.
// Declaration order is update order: a kind is always updated after every
// kind declared above it.
type ComponentKind uint8

const (
	ComponentInput ComponentKind = iota
	ComponentAbility
	ComponentWeapon
	ComponentCombat
	ComponentEffect
	ComponentStamina
	ComponentHealth
	ComponentMovement

	componentKindCount
)

// ErrUnknownComponent is returned when a component kind outside the closed
// set is registered, or an instance reports a different kind than requested.
var ErrUnknownComponent = errors.New("unknown component kind")

// ComponentKinds lists every kind in update order.
func ComponentKinds() []ComponentKind {
	kinds := make([]ComponentKind, 0, componentKindCount)
	for k := ComponentKind(0); k < componentKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k ComponentKind) Valid() bool { return k < componentKindCount }

// Critical kinds are updated every tick for every active Character, even
// while the scheduler is deferring the rest of the set.
func (k ComponentKind) Critical() bool {
	switch k {
	case ComponentHealth, ComponentMovement, ComponentCombat:
		return true
	case ComponentInput, ComponentAbility, ComponentWeapon, ComponentEffect, ComponentStamina:
		return false
	default:
		return false
	}
}

func (k ComponentKind) String() string {
	switch k {
	case ComponentInput:
		return "input"
	case ComponentAbility:
		return "ability"
	case ComponentWeapon:
		return "weapon"
	case ComponentCombat:
		return "combat"
	case ComponentEffect:
		return "effect"
	case ComponentStamina:
		return "stamina"
	case ComponentHealth:
		return "health"
	case ComponentMovement:
		return "movement"
	default:
		return fmt.Sprintf("component(%d)", uint8(k))
	}
}

// TickContext is handed to every component update. DT is the simulated time
// since this component group last ran for the Character, which is longer
// than one tick when the scheduler deferred it.
type TickContext struct {
	Tick uint64
	Now  time.Duration
	DT   time.Duration
}

// Seconds returns DT as float seconds.
func (tc TickContext) Seconds() float64 { return tc.DT.Seconds() }

// Component is one piece of per-Character state and behaviour. Update is
// called with the owning Character locked; it must only touch its own
// Character's components.
type Component interface {
	Kind() ComponentKind
	OnAttach(c *Character)
	OnDetach()
	Update(tc TickContext) error
}

// Get returns the component of the given kind as its concrete type.
func Get[T Component](c *Character, kind ComponentKind) (T, bool) {
	var zero T
	comp := c.Component(kind)
	if comp == nil {
		return zero, false
	}
	t, ok := comp.(T)
	return t, ok
}
