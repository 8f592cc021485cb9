package component

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// Health holds hit points. Critical: updated every tick.
type Health struct {
	owner *ecs.Character

	HP             float64
	Max            float64
	RegenPerSecond float64

	lastDamageAt time.Duration
	regenDelay   time.Duration
}

func NewHealth(max, regenPerSecond float64) *Health {
	return &Health{
		HP:             max,
		Max:            max,
		RegenPerSecond: regenPerSecond,
		regenDelay:     5 * time.Second,
	}
}

func (h *Health) Kind() ecs.ComponentKind   { return ecs.ComponentHealth }
func (h *Health) OnAttach(c *ecs.Character) { h.owner = c }
func (h *Health) OnDetach()                 { h.owner = nil }

// Damage removes amount hit points and reports the amount actually removed.
// Reaching zero marks the owner dead.
func (h *Health) Damage(amount float64, now time.Duration) float64 {
	if amount <= 0 || h.HP <= 0 {
		return 0
	}
	if amount > h.HP {
		amount = h.HP
	}
	h.HP -= amount
	h.lastDamageAt = now
	if h.HP <= 0 {
		h.HP = 0
		if h.owner != nil {
			h.owner.SetAlive(false)
		}
	}
	return amount
}

// Heal restores up to amount hit points on a living owner.
func (h *Health) Heal(amount float64) float64 {
	if amount <= 0 || h.HP <= 0 {
		return 0
	}
	if h.HP+amount > h.Max {
		amount = h.Max - h.HP
	}
	h.HP += amount
	return amount
}

func (h *Health) Dead() bool { return h.HP <= 0 }

func (h *Health) Update(tc ecs.TickContext) error {
	if h.HP <= 0 || h.HP >= h.Max || h.RegenPerSecond <= 0 {
		return nil
	}
	// no regen while recently hit
	if h.lastDamageAt > 0 && tc.Now-h.lastDamageAt < h.regenDelay {
		return nil
	}
	rate := h.RegenPerSecond
	if h.owner != nil {
		rate = h.owner.Modifiers().Apply(ecs.StatHealthRegen, rate)
	}
	h.HP += rate * tc.Seconds()
	if h.HP > h.Max {
		h.HP = h.Max
	}
	return nil
}
