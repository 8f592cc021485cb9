package component

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCharacter(t *testing.T, comps ...ecs.Component) *ecs.Character {
	t.Helper()
	reg := ecs.NewRegistry()
	c, err := reg.Add(ecs.NewEntityRef(ecs.KindPlayer, ecs.NewEntityID(1, 0), "tester", uuid.Nil))
	require.NoError(t, err)
	for _, comp := range comps {
		require.NoError(t, c.Attach(comp))
	}
	return c
}

func tick(now, dt time.Duration) ecs.TickContext {
	return ecs.TickContext{Tick: 1, Now: now, DT: dt}
}

func TestHealthDamageKillsOwner(t *testing.T) {
	h := NewHealth(50, 0)
	c := newCharacter(t, h)

	assert.Equal(t, 20.0, h.Damage(20, time.Second))
	assert.True(t, c.Alive())
	assert.Equal(t, 30.0, h.Damage(100, time.Second), "damage is capped at remaining hp")
	assert.True(t, h.Dead())
	assert.False(t, c.Alive())
	assert.Zero(t, h.Heal(10), "the dead are not healed")
}

func TestHealthRegenWaitsAfterDamage(t *testing.T) {
	h := NewHealth(100, 10)
	newCharacter(t, h)
	h.Damage(50, 10*time.Second)

	require.NoError(t, h.Update(tick(12*time.Second, time.Second)))
	assert.Equal(t, 50.0, h.HP)

	require.NoError(t, h.Update(tick(16*time.Second, time.Second)))
	assert.InDelta(t, 60.0, h.HP, 1e-9)
}

func TestResourcesSpendAndRegen(t *testing.T) {
	r := NewResources(Pool{Current: 100, Max: 100, RegenPerSecond: 10}, Pool{Current: 5, Max: 50})
	c := newCharacter(t, r, NewHealth(40, 0))

	have, ok := Level(c, ResourceStamina)
	require.True(t, ok)
	assert.Equal(t, 100.0, have)

	Spend(c, ResourceStamina, 20, 10*time.Second)
	have, _ = Level(c, ResourceStamina)
	assert.Equal(t, 80.0, have)

	// inside the regen delay nothing comes back
	require.NoError(t, r.Update(tick(10*time.Second+500*time.Millisecond, 500*time.Millisecond)))
	assert.Equal(t, 80.0, r.Stamina.Current)

	require.NoError(t, r.Update(tick(12*time.Second, time.Second)))
	assert.InDelta(t, 90.0, r.Stamina.Current, 1e-9)

	Spend(c, ResourceHealth, 15, 12*time.Second)
	hp, _ := Level(c, ResourceHealth)
	assert.Equal(t, 25.0, hp)

	levels := Levels(c)
	assert.Equal(t, 5.0, levels[ResourceMana])
}

func TestStaminaRegenHonoursModifiers(t *testing.T) {
	r := NewResources(Pool{Current: 0, Max: 100, RegenPerSecond: 10}, Pool{})
	c := newCharacter(t, r)
	mods := ecs.NewModifiers()
	mods.Scale(ecs.StatStaminaRegen, 2)
	c.SetModifiers(mods)

	require.NoError(t, r.Update(tick(time.Second, time.Second)))
	assert.InDelta(t, 20.0, r.Stamina.Current, 1e-9)
}

func TestLevelWithoutComponent(t *testing.T) {
	c := newCharacter(t)
	_, ok := Level(c, ResourceMana)
	assert.False(t, ok)
	v, ok := Level(c, ResourceNone)
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestParseResource(t *testing.T) {
	k, err := ParseResource("mana")
	require.NoError(t, err)
	assert.Equal(t, ResourceMana, k)
	k, err = ParseResource("")
	require.NoError(t, err)
	assert.Equal(t, ResourceNone, k)
	_, err = ParseResource("rage")
	assert.Error(t, err)
}

func TestMovementAppliesSpeedModifier(t *testing.T) {
	m := NewMovement(mgl64.Vec3{}, 4, 0.5)
	c := newCharacter(t, m)
	m.SetDirection(mgl64.Vec3{2, 0, 0})

	require.NoError(t, m.Update(tick(time.Second, time.Second)))
	assert.InDelta(t, 4.0, m.Position.X(), 1e-9)

	mods := ecs.NewModifiers()
	mods.Scale(ecs.StatMoveSpeed, 0.5)
	c.SetModifiers(mods)
	require.NoError(t, m.Update(tick(2*time.Second, time.Second)))
	assert.InDelta(t, 6.0, m.Position.X(), 1e-9)

	c.SetAlive(false)
	require.NoError(t, m.Update(tick(3*time.Second, time.Second)))
	assert.InDelta(t, 6.0, m.Position.X(), 1e-9)
}

func TestInputFeedsMovement(t *testing.T) {
	in := NewInput()
	m := NewMovement(mgl64.Vec3{}, 1, 0.5)
	newCharacter(t, in, m)

	assert.True(t, in.SetMove(mgl64.Vec3{0, 1, 0}, 1))
	assert.False(t, in.SetMove(mgl64.Vec3{1, 0, 0}, 1), "stale sequence")
	require.NoError(t, in.Update(tick(0, 0)))
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, m.Direction())
}

func TestCombatTimesOut(t *testing.T) {
	cb := NewCombat(5 * time.Second)
	newCharacter(t, cb)
	cb.RecordTaken(10, 2*time.Second)
	assert.True(t, cb.InCombat())

	require.NoError(t, cb.Update(tick(6*time.Second, time.Second)))
	assert.True(t, cb.InCombat())
	require.NoError(t, cb.Update(tick(7*time.Second, time.Second)))
	assert.False(t, cb.InCombat())
	assert.Equal(t, 10.0, cb.DamageTaken)
}

func TestWeaponReload(t *testing.T) {
	w := NewWeapon(WeaponStats{ID: "pistol", Magazine: 2, Reload: time.Second})
	newCharacter(t, w)

	assert.True(t, w.Fire(0))
	assert.True(t, w.Fire(0))
	assert.False(t, w.CanFire())
	assert.True(t, w.Reloading())

	require.NoError(t, w.Update(tick(500*time.Millisecond, 0)))
	assert.False(t, w.CanFire())
	require.NoError(t, w.Update(tick(time.Second, 0)))
	assert.True(t, w.CanFire())
	assert.Equal(t, 2, w.Ammo)

	unlimited := NewWeapon(WeaponStats{ID: "staff"})
	assert.True(t, unlimited.Fire(0))
	assert.True(t, unlimited.CanFire())
}
