package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	"github.com/l1jgo/simcore/internal/data"
	"github.com/l1jgo/simcore/internal/effect"
	"github.com/l1jgo/simcore/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	log := zaptest.NewLogger(t)
	content, err := data.Load(config.ContentConfig{
		AbilitiesPath: "../../data/yaml/abilities.yaml",
		EffectsPath:   "../../data/yaml/effects.yaml",
		WeaponsPath:   "../../data/yaml/weapons.yaml",
		SpawnsPath:    "../../data/yaml/spawns.yaml",
		ScriptsDir:    "../../scripts",
	}, log)
	require.NoError(t, err)
	t.Cleanup(content.Close)

	clk := clock.NewManual(0)
	bus := event.NewBus()
	w := ecs.NewWorld()
	effects := effect.NewEngine(content.Effects, clk, bus, log)
	abilities := ability.NewEngine(content.Abilities, clk, bus, &ability.Services{
		Registry: w.Registry(),
		Effects:  effects,
	}, log)
	return NewState(w, sim.NewManager(w.Registry(), bus, 1, log), content, effects, abilities, log)
}

func TestSpawnBuildsArchetypeLoadout(t *testing.T) {
	s := newTestState(t)

	c, err := s.Spawn(ecs.KindNPC, "archer", uuid.Nil, "archer", mgl64.Vec3{1, 0, 2})
	require.NoError(t, err)
	c.Lock()
	defer c.Unlock()

	m, ok := ecs.Get[*component.Movement](c, ecs.ComponentMovement)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{1, 0, 2}, m.Position)
	w, ok := ecs.Get[*component.Weapon](c, ecs.ComponentWeapon)
	require.True(t, ok)
	assert.Equal(t, "bow", w.Stats.ID)
	h, ok := ecs.Get[*component.Health](c, ecs.ComponentHealth)
	require.True(t, ok)
	assert.Equal(t, 80.0, h.Max)
	_, ok = ecs.Get[*component.Resources](c, ecs.ComponentStamina)
	assert.True(t, ok)
}

func TestSpawnDummyHasNoResourcesOrWeapon(t *testing.T) {
	s := newTestState(t)

	c, err := s.Spawn(ecs.KindNPC, "dummy", uuid.Nil, "dummy", mgl64.Vec3{})
	require.NoError(t, err)
	c.Lock()
	defer c.Unlock()
	_, ok := ecs.Get[*component.Resources](c, ecs.ComponentStamina)
	assert.False(t, ok)
	_, ok = ecs.Get[*component.Weapon](c, ecs.ComponentWeapon)
	assert.False(t, ok)
}

func TestSpawnUnknownArchetype(t *testing.T) {
	s := newTestState(t)
	_, err := s.Spawn(ecs.KindNPC, "ghost", uuid.Nil, "ghost", mgl64.Vec3{})
	assert.ErrorContains(t, err, "unknown archetype")
	assert.Zero(t, s.World().Registry().Len())
}

func TestSpawnStartupPlacesEveryCopy(t *testing.T) {
	s := newTestState(t)

	n, err := s.SpawnStartup()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, s.World().Registry().Len())

	seen := map[mgl64.Vec3]bool{}
	for _, c := range s.World().Registry().ActiveList() {
		c.Lock()
		m, _ := ecs.Get[*component.Movement](c, ecs.ComponentMovement)
		seen[m.Position] = true
		c.Unlock()
	}
	assert.Len(t, seen, 4, "copies must not overlap")
}

func TestPlayerLookupsWithoutSessions(t *testing.T) {
	s := newTestState(t)
	assert.Nil(t, s.RemovePlayer(99))
	assert.Nil(t, s.GetBySession(99))
	assert.Zero(t, s.PlayerCount())
	assert.Len(t, s.Abilities(), 10)
	assert.Contains(t, s.Abilities(), "blink")
}
