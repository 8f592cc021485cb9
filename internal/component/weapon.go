package component

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// WeaponStats is the equipped weapon's content definition.
type WeaponStats struct {
	ID              string
	Damage          float64
	Range           float64
	ProjectileSpeed float64 // 0 = hitscan
	Magazine        int     // 0 = unlimited
	Reload          time.Duration
}

// Weapon holds the equipped weapon and its ammunition.
type Weapon struct {
	owner *ecs.Character

	Stats WeaponStats
	Ammo  int

	reloading     bool
	reloadReadyAt time.Duration
}

func NewWeapon(stats WeaponStats) *Weapon {
	return &Weapon{Stats: stats, Ammo: stats.Magazine}
}

func (w *Weapon) Kind() ecs.ComponentKind   { return ecs.ComponentWeapon }
func (w *Weapon) OnAttach(c *ecs.Character) { w.owner = c }
func (w *Weapon) OnDetach()                 { w.owner = nil }

// CanFire reports whether a shot is available now.
func (w *Weapon) CanFire() bool {
	return w.Stats.Magazine == 0 || (!w.reloading && w.Ammo > 0)
}

func (w *Weapon) Reloading() bool { return w.reloading }

// Fire consumes one round and starts a reload when the magazine empties.
func (w *Weapon) Fire(now time.Duration) bool {
	if !w.CanFire() {
		return false
	}
	if w.Stats.Magazine == 0 {
		return true
	}
	w.Ammo--
	if w.Ammo == 0 {
		w.reloading = true
		w.reloadReadyAt = now + w.Stats.Reload
	}
	return true
}

func (w *Weapon) Update(tc ecs.TickContext) error {
	if w.reloading && tc.Now >= w.reloadReadyAt {
		w.reloading = false
		w.Ammo = w.Stats.Magazine
	}
	return nil
}
