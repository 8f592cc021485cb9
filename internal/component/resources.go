package component

import (
	"fmt"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// ResourceKind names what an ability spends.
type ResourceKind uint8

const (
	ResourceNone ResourceKind = iota
	ResourceStamina
	ResourceMana
	ResourceHealth
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceNone:
		return "none"
	case ResourceStamina:
		return "stamina"
	case ResourceMana:
		return "mana"
	case ResourceHealth:
		return "health"
	default:
		return fmt.Sprintf("resource(%d)", uint8(k))
	}
}

// ParseResource maps a content name to a ResourceKind. Empty means none.
func ParseResource(name string) (ResourceKind, error) {
	switch name {
	case "", "none":
		return ResourceNone, nil
	case "stamina":
		return ResourceStamina, nil
	case "mana":
		return ResourceMana, nil
	case "health":
		return ResourceHealth, nil
	default:
		return ResourceNone, fmt.Errorf("unknown resource kind %q", name)
	}
}

// Pool is one regenerating resource bar.
type Pool struct {
	Current        float64
	Max            float64
	RegenPerSecond float64
}

func (p *Pool) regen(rate, seconds float64) {
	if p.Current >= p.Max || rate <= 0 {
		return
	}
	p.Current += rate * seconds
	if p.Current > p.Max {
		p.Current = p.Max
	}
}

// Resources holds the stamina and mana pools (component kind Stamina).
// Regeneration pauses for RegenDelay after any spend.
type Resources struct {
	owner *ecs.Character

	Stamina    Pool
	Mana       Pool
	RegenDelay time.Duration

	lastSpendAt time.Duration
	spent       bool
}

func NewResources(stamina, mana Pool) *Resources {
	return &Resources{Stamina: stamina, Mana: mana, RegenDelay: time.Second}
}

func (r *Resources) Kind() ecs.ComponentKind   { return ecs.ComponentStamina }
func (r *Resources) OnAttach(c *ecs.Character) { r.owner = c }
func (r *Resources) OnDetach()                 { r.owner = nil }

func (r *Resources) pool(kind ResourceKind) *Pool {
	switch kind {
	case ResourceStamina:
		return &r.Stamina
	case ResourceMana:
		return &r.Mana
	default:
		return nil
	}
}

func (r *Resources) Update(tc ecs.TickContext) error {
	if r.spent && tc.Now-r.lastSpendAt < r.RegenDelay {
		return nil
	}
	mods := ecs.NewModifiers()
	if r.owner != nil {
		mods = r.owner.Modifiers()
	}
	secs := tc.Seconds()
	r.Stamina.regen(mods.Apply(ecs.StatStaminaRegen, r.Stamina.RegenPerSecond), secs)
	r.Mana.regen(r.Mana.RegenPerSecond, secs)
	return nil
}

// Level returns how much of kind the character currently has.
// ok is false when the character has no component backing kind.
func Level(c *ecs.Character, kind ResourceKind) (have float64, ok bool) {
	switch kind {
	case ResourceNone:
		return 0, true
	case ResourceHealth:
		h, found := ecs.Get[*Health](c, ecs.ComponentHealth)
		if !found {
			return 0, false
		}
		return h.HP, true
	default:
		r, found := ecs.Get[*Resources](c, ecs.ComponentStamina)
		if !found {
			return 0, false
		}
		p := r.pool(kind)
		if p == nil {
			return 0, false
		}
		return p.Current, true
	}
}

// Spend deducts amount of kind. The caller must already have checked Level;
// Spend never takes a pool below zero.
func Spend(c *ecs.Character, kind ResourceKind, amount float64, now time.Duration) {
	if amount <= 0 {
		return
	}
	switch kind {
	case ResourceNone:
	case ResourceHealth:
		if h, ok := ecs.Get[*Health](c, ecs.ComponentHealth); ok {
			h.Damage(amount, now)
		}
	default:
		r, ok := ecs.Get[*Resources](c, ecs.ComponentStamina)
		if !ok {
			return
		}
		p := r.pool(kind)
		if p == nil {
			return
		}
		p.Current -= amount
		if p.Current < 0 {
			p.Current = 0
		}
		r.lastSpendAt = now
		r.spent = true
	}
}

// Levels returns every resource the character has, keyed by kind.
func Levels(c *ecs.Character) map[ResourceKind]float64 {
	out := make(map[ResourceKind]float64, 3)
	for _, k := range []ResourceKind{ResourceStamina, ResourceMana, ResourceHealth} {
		if v, ok := Level(c, k); ok {
			out[k] = v
		}
	}
	return out
}
