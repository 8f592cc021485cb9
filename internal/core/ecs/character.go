package ecs

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Character is the live simulation aggregate bound to one entity. It owns
// its components exclusively.
//
// The mutex serialises component updates, ability check-and-commit and
// effect application for this Character. Holders must not call into another
// Character's locking API while holding it.
type Character struct {
	mu         sync.Mutex
	ref        EntityRef
	components [componentKindCount]Component
	alive      atomic.Bool

	lastUpdateTick uint64
	lastUpdate     time.Duration
	lastFull       time.Duration
	lastFullTick   uint64
	modifiers      Modifiers
}

func newCharacter(ref EntityRef) *Character {
	c := &Character{ref: ref}
	c.alive.Store(true)
	return c
}

func (c *Character) Ref() EntityRef { return c.ref }
func (c *Character) ID() EntityID   { return c.ref.id }

func (c *Character) Lock()   { c.mu.Lock() }
func (c *Character) Unlock() { c.mu.Unlock() }

func (c *Character) Alive() bool { return c.alive.Load() }

// SetAlive flips the alive flag. Dead characters stay registered and keep
// receiving critical updates until the lifecycle layer despawns them.
func (c *Character) SetAlive(v bool) { c.alive.Store(v) }

// Component returns the component of the given kind, or nil.
func (c *Character) Component(kind ComponentKind) Component {
	if !kind.Valid() {
		return nil
	}
	return c.components[kind]
}

// Attach installs comp under its own kind, detaching any previous instance.
func (c *Character) Attach(comp Component) error {
	if comp == nil {
		return fmt.Errorf("attach nil component: %w", ErrUnknownComponent)
	}
	kind := comp.Kind()
	if !kind.Valid() {
		return fmt.Errorf("attach %s: %w", kind, ErrUnknownComponent)
	}
	if prev := c.components[kind]; prev != nil {
		prev.OnDetach()
	}
	c.components[kind] = comp
	comp.OnAttach(c)
	return nil
}

// Detach removes the component of the given kind.
func (c *Character) Detach(kind ComponentKind) {
	if !kind.Valid() {
		return
	}
	if comp := c.components[kind]; comp != nil {
		comp.OnDetach()
		c.components[kind] = nil
	}
}

func (c *Character) detachAll() {
	for k := range c.components {
		c.Detach(ComponentKind(k))
	}
}

// Each calls fn for every attached component in update order.
func (c *Character) Each(fn func(Component)) {
	for _, comp := range c.components {
		if comp != nil {
			fn(comp)
		}
	}
}

func (c *Character) Modifiers() Modifiers     { return c.modifiers }
func (c *Character) SetModifiers(m Modifiers) { c.modifiers = m }

func (c *Character) LastUpdateTick() uint64 { return c.lastUpdateTick }

// LastFullTick is the tick of the last full update, 0 before the first.
func (c *Character) LastFullTick() uint64 { return c.lastFullTick }

// Elapsed returns the simulated time since the critical (all) and the full
// component groups last ran. A fresh Character reports zero for both.
func (c *Character) Elapsed(now time.Duration) (critical, full time.Duration) {
	if c.lastUpdateTick == 0 {
		return 0, 0
	}
	return now - c.lastUpdate, now - c.lastFull
}

// MarkUpdated records that the Character ran at tick/now; full reports
// whether the non-critical group ran too.
func (c *Character) MarkUpdated(tick uint64, now time.Duration, full bool) {
	if c.lastUpdateTick == 0 {
		c.lastFull = now
	}
	c.lastUpdateTick = tick
	c.lastUpdate = now
	if full {
		c.lastFull = now
		c.lastFullTick = tick
	}
}
