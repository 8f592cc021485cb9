package ability

import (
	"time"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/ecs"
)

// State is a character's runtime state for one ability.
type State struct {
	CooldownReadyAt time.Duration
	Active          bool
	ActiveUntil     time.Duration // channeled only
}

// Book is the Ability component: per-ability state for one character.
// All methods expect the owner's lock to be held.
type Book struct {
	owner   *ecs.Character
	catalog *Catalog
	states  map[string]*State
}

func (b *Book) Kind() ecs.ComponentKind   { return ecs.ComponentAbility }
func (b *Book) OnAttach(c *ecs.Character) { b.owner = c }
func (b *Book) OnDetach()                 { b.owner = nil }

// State returns a copy of the state for id. Unused abilities are ready.
func (b *Book) State(id string) State {
	if st, ok := b.states[id]; ok {
		return *st
	}
	return State{}
}

func (b *Book) state(id string) *State {
	st, ok := b.states[id]
	if !ok {
		st = &State{}
		b.states[id] = st
	}
	return st
}

// Cooldowns returns the ready time of every ability this character has used.
func (b *Book) Cooldowns() map[string]time.Duration {
	out := make(map[string]time.Duration, len(b.states))
	for id, st := range b.states {
		out[id] = st.CooldownReadyAt
	}
	return out
}

// ActiveSet returns the abilities currently channeling or toggled on.
func (b *Book) ActiveSet() map[string]bool {
	out := make(map[string]bool)
	for id, st := range b.states {
		if st.Active {
			out[id] = true
		}
	}
	return out
}

// Update ends finished channels and drains toggle upkeep, switching a
// toggle off when the resource runs short.
func (b *Book) Update(tc ecs.TickContext) error {
	for id, st := range b.states {
		if !st.Active {
			continue
		}
		def, ok := b.catalog.Get(id)
		if !ok {
			st.Active = false
			continue
		}
		switch def.Mode {
		case ModeChanneled:
			if tc.Now >= st.ActiveUntil {
				st.Active = false
			}
		case ModeToggle:
			if def.Upkeep <= 0 || tc.DT <= 0 {
				continue
			}
			need := def.Upkeep * tc.Seconds()
			have, ok := component.Level(b.owner, def.Resource)
			if !ok || have < need {
				st.Active = false
				continue
			}
			component.Spend(b.owner, def.Resource, need, tc.Now)
		case ModeInstant:
			st.Active = false
		}
	}
	return nil
}
