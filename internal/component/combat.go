package component

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// Combat tracks engagement state. Critical.
type Combat struct {
	owner *ecs.Character

	Timeout time.Duration

	inCombat      bool
	lastHostileAt time.Duration
	DamageDealt   float64
	DamageTaken   float64
}

func NewCombat(timeout time.Duration) *Combat {
	return &Combat{Timeout: timeout}
}

func (c *Combat) Kind() ecs.ComponentKind    { return ecs.ComponentCombat }
func (c *Combat) OnAttach(ch *ecs.Character) { c.owner = ch }
func (c *Combat) OnDetach()                  { c.owner = nil }

func (c *Combat) InCombat() bool { return c.inCombat }

// RecordDealt notes outgoing damage at now.
func (c *Combat) RecordDealt(amount float64, now time.Duration) {
	c.DamageDealt += amount
	c.engage(now)
}

// RecordTaken notes incoming damage at now.
func (c *Combat) RecordTaken(amount float64, now time.Duration) {
	c.DamageTaken += amount
	c.engage(now)
}

func (c *Combat) engage(now time.Duration) {
	c.inCombat = true
	if now > c.lastHostileAt {
		c.lastHostileAt = now
	}
}

func (c *Combat) Update(tc ecs.TickContext) error {
	if c.inCombat && tc.Now-c.lastHostileAt >= c.Timeout {
		c.inCombat = false
	}
	return nil
}
