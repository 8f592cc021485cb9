package data

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	"github.com/l1jgo/simcore/internal/effect"
	"github.com/l1jgo/simcore/internal/latency"
	"github.com/l1jgo/simcore/internal/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func shippedContent() config.ContentConfig {
	return config.ContentConfig{
		AbilitiesPath: "../../data/yaml/abilities.yaml",
		EffectsPath:   "../../data/yaml/effects.yaml",
		WeaponsPath:   "../../data/yaml/weapons.yaml",
		SpawnsPath:    "../../data/yaml/spawns.yaml",
		ScriptsDir:    "../../scripts",
	}
}

type fixture struct {
	clk       *clock.Manual
	content   *Content
	world     *ecs.World
	effects   *effect.Engine
	abilities *ability.Engine
	index     *spatial.SphereIndex
	latency   *latency.Compensator
	caster    *ecs.Character
	target    *ecs.Character
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	content, err := Load(shippedContent(), log)
	require.NoError(t, err)
	t.Cleanup(content.Close)

	clk := clock.NewManual(10 * time.Second)
	bus := event.NewBus()
	world := ecs.NewWorld()
	f := &fixture{
		clk:     clk,
		content: content,
		world:   world,
		effects: effect.NewEngine(content.Effects, clk, bus, log),
		index:   spatial.NewSphereIndex(),
		latency: latency.NewCompensator(log),
	}
	f.abilities = ability.NewEngine(content.Abilities, clk, bus, &ability.Services{
		Registry: world.Registry(),
		Effects:  f.effects,
		Spatial:  f.index,
		Latency:  f.latency,
	}, log)

	f.caster = f.spawn(t, ecs.KindPlayer, "caster", mgl64.Vec3{0, 0, 0})
	f.target = f.spawn(t, ecs.KindNPC, "target", mgl64.Vec3{10, 0, 0})
	f.index.Rebuild(world.Registry().ActiveList())
	return f
}

func (f *fixture) spawn(t *testing.T, kind ecs.EntityKind, name string, pos mgl64.Vec3) *ecs.Character {
	t.Helper()
	c, err := f.world.Spawn(kind, name, uuid.New())
	require.NoError(t, err)
	rifle := f.content.Weapons.Get("rifle")
	require.NotNil(t, rifle)
	for _, comp := range []ecs.Component{
		f.abilities.NewBook(),
		component.NewWeapon(*rifle),
		component.NewCombat(5 * time.Second),
		f.effects.NewHolder(),
		component.NewResources(component.Pool{Current: 100, Max: 100}, component.Pool{Current: 80, Max: 80}),
		component.NewHealth(100, 0),
		component.NewMovement(pos, 5, 0.5),
	} {
		require.NoError(t, c.Attach(comp))
	}
	return c
}

func (f *fixture) hp(c *ecs.Character) float64 {
	c.Lock()
	defer c.Unlock()
	h, _ := ecs.Get[*component.Health](c, ecs.ComponentHealth)
	return h.HP
}

func (f *fixture) moveTarget(pos mgl64.Vec3) {
	f.target.Lock()
	m, _ := ecs.Get[*component.Movement](f.target, ecs.ComponentMovement)
	m.Position = pos
	f.target.Unlock()
	f.index.Rebuild(f.world.Registry().ActiveList())
}

func east() *ability.Context {
	return &ability.Context{Direction: mgl64.Vec3{1, 0, 0}}
}

func TestShippedContentLoads(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 10, f.content.Abilities.Count())
	assert.Equal(t, 9, f.content.Effects.Count())
	assert.Equal(t, 2, f.content.Weapons.Count())
	require.NotNil(t, f.content.Spawns.Archetype("player"))
	assert.Len(t, f.content.Spawns.Spawns, 2)
	assert.Equal(t, 3, f.content.Spawns.Spawns[0].Count)
	assert.Equal(t, []string{"blink", "smite"}, f.content.Scripts.Abilities())
}

func TestProjectileCommitIsLatencyCompensated(t *testing.T) {
	f := newFixture(t)
	ctx := east()
	ctx.RoundTrip = 200 * time.Millisecond

	res := f.abilities.TryActivate(f.caster, "fireball", ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, true, res.Data["hit"])
	assert.Equal(t, uint64(f.target.ID()), res.Data["target"])
	// 9.5 units at 25/s is 380ms of flight, less half the round trip.
	assert.InDelta(t, 10.28, res.Data["impact_at"].(float64), 1e-6)
	assert.Equal(t, 1, f.latency.Pending())

	assert.Equal(t, 0, f.latency.Flush(f.clk.Advance(200*time.Millisecond)))
	assert.Equal(t, 100.0, f.hp(f.target))

	assert.Equal(t, 1, f.latency.Flush(f.clk.Advance(100*time.Millisecond)))
	assert.Equal(t, 65.0, f.hp(f.target))
}

func TestHitscanWeaponAppliesImmediately(t *testing.T) {
	f := newFixture(t)

	res := f.abilities.TryActivate(f.caster, "shoot", east())
	require.NoError(t, res.Err)
	assert.Equal(t, 88.0, f.hp(f.target))
	assert.Equal(t, 0, f.latency.Pending())

	f.caster.Lock()
	w, _ := ecs.Get[*component.Weapon](f.caster, ecs.ComponentWeapon)
	cb, _ := ecs.Get[*component.Combat](f.caster, ecs.ComponentCombat)
	assert.Equal(t, 29, w.Ammo)
	assert.True(t, cb.InCombat())
	f.caster.Unlock()
}

func TestProjectileMissLeavesTargetsAlone(t *testing.T) {
	f := newFixture(t)

	res := f.abilities.TryActivate(f.caster, "shoot", &ability.Context{Direction: mgl64.Vec3{0, 1, 0}})
	require.NoError(t, res.Err)
	assert.Equal(t, false, res.Data["hit"])
	assert.Equal(t, 100.0, f.hp(f.target))
}

func TestTargetEffectChecksRange(t *testing.T) {
	f := newFixture(t)

	f.moveTarget(mgl64.Vec3{20, 0, 0})
	res := f.abilities.TryActivate(f.caster, "ignite", &ability.Context{Target: f.target.ID()})
	assert.Equal(t, ability.CodeValidationFailed, ability.Code(res.Err))
	assert.ErrorContains(t, res.Err, "target out of range")

	f.moveTarget(mgl64.Vec3{10, 0, 0})
	res = f.abilities.TryActivate(f.caster, "ignite", &ability.Context{Target: f.target.ID()})
	require.NoError(t, res.Err)
	assert.Equal(t, "applied", res.Data["outcome"])

	f.clk.Advance(time.Second)
	f.effects.Tick(f.target, time.Second)
	assert.Equal(t, 94.0, f.hp(f.target))
}

func TestDamageHonoursDamageTaken(t *testing.T) {
	f := newFixture(t)

	_, err := f.effects.Apply(f.target, "guarded", 0.5, effect.DefaultDuration(), f.caster.ID())
	require.NoError(t, err)
	_, err = f.effects.Apply(f.target, "fire_damage", 40, effect.DefaultDuration(), f.caster.ID())
	require.NoError(t, err)
	assert.Equal(t, 80.0, f.hp(f.target))

	f.target.Lock()
	cb, _ := ecs.Get[*component.Combat](f.target, ecs.ComponentCombat)
	assert.True(t, cb.InCombat())
	assert.Equal(t, 20.0, cb.DamageTaken)
	f.target.Unlock()
}

func TestSustainedEffectFollowsToggle(t *testing.T) {
	f := newFixture(t)
	holder := func() *effect.Holder {
		h, _ := ecs.Get[*effect.Holder](f.caster, ecs.ComponentEffect)
		return h
	}

	res := f.abilities.TryActivate(f.caster, "sprint", nil)
	require.NoError(t, res.Err)
	assert.True(t, holder().Has("sprinting"))

	f.clk.Advance(400 * time.Millisecond)
	f.effects.Tick(f.caster, 400*time.Millisecond)
	f.clk.Advance(400 * time.Millisecond)
	f.effects.Tick(f.caster, 400*time.Millisecond)
	assert.True(t, holder().Has("sprinting"), "kept alive while the toggle is on")

	res = f.abilities.TryActivate(f.caster, "sprint", nil)
	require.NoError(t, res.Err)
	assert.Equal(t, false, res.Data["active"])

	f.clk.Advance(600 * time.Millisecond)
	f.effects.Tick(f.caster, 600*time.Millisecond)
	assert.False(t, holder().Has("sprinting"))
}

func TestDashDisplacesCaster(t *testing.T) {
	f := newFixture(t)

	res := f.abilities.TryActivate(f.caster, "dash", &ability.Context{Direction: mgl64.Vec3{0, 0, 2}})
	require.NoError(t, res.Err)
	assert.Equal(t, [3]float64{0, 0, 6}, res.Data["position"])
}

func TestScriptedAbilities(t *testing.T) {
	f := newFixture(t)

	res := f.abilities.TryActivate(f.caster, "smite", &ability.Context{Target: f.target.ID()})
	assert.ErrorContains(t, res.Err, "target out of range")

	f.moveTarget(mgl64.Vec3{5, 0, 0})
	res = f.abilities.TryActivate(f.caster, "smite", &ability.Context{Target: f.target.ID()})
	require.NoError(t, res.Err)
	// mana 80 - 10 is clamped to 40, so the bonus is 10
	assert.Equal(t, 70.0, f.hp(f.target))
	assert.Equal(t, 2, res.Data["actions"])

	f.target.Lock()
	h, _ := ecs.Get[*effect.Holder](f.target, ecs.ComponentEffect)
	assert.True(t, h.Has("exposed"))
	f.target.Unlock()

	res = f.abilities.TryActivate(f.caster, "blink", &ability.Context{
		Direction: mgl64.Vec3{0, 1, 0},
		Payload:   map[string]any{"distance": 50},
	})
	require.NoError(t, res.Err)
	assert.Equal(t, [3]float64{0, 12, 0}, res.Data["position"])
	assert.Equal(t, 12.0, res.Data["distance"])
}

func TestParseErrors(t *testing.T) {
	effects, err := parseEffectCatalog([]byte(`
effects:
  - id: zap
    behavior: damage
`))
	require.NoError(t, err)

	cases := map[string]string{
		"unknown behavior":  "abilities:\n  - id: a\n    behavior: teleport\n",
		"unknown effect":    "abilities:\n  - id: a\n    behavior: self_effect\n    effect: nope\n",
		"projectile effect": "abilities:\n  - id: a\n    behavior: projectile\n    range: 5\n",
		"dash distance":     "abilities:\n  - id: a\n    behavior: dash\n",
		"missing script":    "abilities:\n  - id: a\n    behavior: script\n",
		"bad resource":      "abilities:\n  - id: a\n    behavior: self_effect\n    effect: zap\n    resource: gold\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseAbilityCatalog([]byte(src), effects, nil)
			assert.Error(t, err)
		})
	}

	_, err = parseEffectCatalog([]byte("effects:\n  - id: x\n    duration: 1\n    mode: mul\n"))
	assert.ErrorContains(t, err, "needs a stat")
	_, err = parseEffectCatalog([]byte("effects:\n  - id: x\n    duration: 1\n    stat: luck\n"))
	assert.ErrorContains(t, err, "unknown stat")
	_, err = parseEffectCatalog([]byte("effects:\n  - id: x\n    behavior: damage\n    while_active: sprint\n"))
	assert.Error(t, err)

	_, err = parseSpawnTable([]byte("archetypes:\n  - name: a\n    health: { max: 10 }\nspawns:\n  - name: b\n    archetype: c\n"))
	assert.ErrorContains(t, err, "unknown archetype")
	_, err = parseWeaponTable([]byte("weapons:\n  - id: w\n  - id: w\n"))
	assert.ErrorContains(t, err, "duplicate weapon")
}
