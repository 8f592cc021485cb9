package world

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/data"
	"github.com/l1jgo/simcore/internal/effect"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/sim"
	"go.uber.org/zap"
)

// PlayerArchetype is the loadout every joining client gets.
const PlayerArchetype = "player"

// PlayerInfo binds a connected session to its character.
// Accessed only from the game loop goroutine.
type PlayerInfo struct {
	SessionID uint64
	Session   *net.Session
	Entity    ecs.EntityID
	Name      string
	JoinedAt  time.Duration
}

// State owns the session↔character bindings and builds characters from
// content archetypes.
type State struct {
	world     *ecs.World
	manager   *sim.Manager
	content   *data.Content
	effects   *effect.Engine
	abilities *ability.Engine
	log       *zap.Logger

	players  map[uint64]*PlayerInfo // by session ID
	byEntity map[ecs.EntityID]*PlayerInfo
}

func NewState(w *ecs.World, manager *sim.Manager, content *data.Content, effects *effect.Engine, abilities *ability.Engine, log *zap.Logger) *State {
	return &State{
		world:     w,
		manager:   manager,
		content:   content,
		effects:   effects,
		abilities: abilities,
		log:       log,
		players:   make(map[uint64]*PlayerInfo),
		byEntity:  make(map[ecs.EntityID]*PlayerInfo),
	}
}

func (s *State) World() *ecs.World { return s.world }

// Spawn creates a character from the named archetype at pos.
func (s *State) Spawn(kind ecs.EntityKind, name string, owner uuid.UUID, archetype string, pos mgl64.Vec3) (*ecs.Character, error) {
	a := s.content.Spawns.Archetype(archetype)
	if a == nil {
		return nil, fmt.Errorf("spawn %q: unknown archetype %q", name, archetype)
	}
	c, err := s.world.Spawn(kind, name, owner)
	if err != nil {
		return nil, fmt.Errorf("spawn %q: %w", name, err)
	}
	if err := s.build(c, a, pos); err != nil {
		s.world.MarkForDestruction(c.ID())
		return nil, fmt.Errorf("spawn %q: %w", name, err)
	}
	return c, nil
}

func (s *State) build(c *ecs.Character, a *data.Archetype, pos mgl64.Vec3) error {
	comps := []ecs.Component{
		component.NewInput(),
		s.abilities.NewBook(),
		component.NewCombat(clock.Seconds(a.CombatTimeout)),
		s.effects.NewHolder(),
		component.NewHealth(a.Health.Max, a.Health.Regen),
		component.NewMovement(pos, a.Speed, a.Radius),
	}
	if w := s.content.Weapons.Get(a.Weapon); w != nil {
		comps = append(comps, component.NewWeapon(*w))
	}
	if a.Stamina.Max > 0 || a.Mana.Max > 0 {
		comps = append(comps, component.NewResources(
			component.Pool{Current: a.Stamina.Max, Max: a.Stamina.Max, RegenPerSecond: a.Stamina.Regen},
			component.Pool{Current: a.Mana.Max, Max: a.Mana.Max, RegenPerSecond: a.Mana.Regen},
		))
	}
	for _, comp := range comps {
		if err := s.manager.RegisterComponent(c, comp.Kind(), comp); err != nil {
			return err
		}
	}
	return nil
}

// SpawnStartup places every spawn from content. Multiple copies of one
// spawn are spread on a circle around its position.
func (s *State) SpawnStartup() (int, error) {
	n := 0
	for _, sp := range s.content.Spawns.Spawns {
		for i := 0; i < sp.Count; i++ {
			pos := sp.Position
			if sp.Count > 1 {
				angle := 2 * math.Pi * float64(i) / float64(sp.Count)
				pos = pos.Add(mgl64.Vec3{2 * math.Cos(angle), 0, 2 * math.Sin(angle)})
			}
			if _, err := s.Spawn(ecs.KindNPC, sp.Name, uuid.Nil, sp.Archetype, pos); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// AddPlayer spawns a player character for sess and binds them.
func (s *State) AddPlayer(sess *net.Session, name string, now time.Duration) (*PlayerInfo, error) {
	if p := s.players[sess.ID]; p != nil {
		return p, nil
	}
	c, err := s.Spawn(ecs.KindPlayer, name, sess.Owner, PlayerArchetype, mgl64.Vec3{})
	if err != nil {
		return nil, err
	}
	p := &PlayerInfo{
		SessionID: sess.ID,
		Session:   sess,
		Entity:    c.ID(),
		Name:      c.Ref().DisplayName(),
		JoinedAt:  now,
	}
	s.players[sess.ID] = p
	s.byEntity[c.ID()] = p
	sess.BindEntity(uint64(c.ID()))
	s.log.Info("player joined",
		zap.Uint64("session", sess.ID),
		zap.Stringer("entity", c.ID()),
		zap.String("name", p.Name),
	)
	return p, nil
}

// RemovePlayer unbinds the session and queues its character for
// destruction at the end of the tick.
func (s *State) RemovePlayer(sessionID uint64) *PlayerInfo {
	p := s.players[sessionID]
	if p == nil {
		return nil
	}
	delete(s.players, sessionID)
	delete(s.byEntity, p.Entity)
	s.world.MarkForDestruction(p.Entity)
	return p
}

func (s *State) GetBySession(sessionID uint64) *PlayerInfo { return s.players[sessionID] }

func (s *State) GetByEntity(id ecs.EntityID) *PlayerInfo { return s.byEntity[id] }

// Character returns the live character of a player.
func (s *State) Character(p *PlayerInfo) (*ecs.Character, bool) {
	return s.world.Registry().Get(p.Entity)
}

func (s *State) PlayerCount() int { return len(s.players) }

func (s *State) AllPlayers(fn func(*PlayerInfo)) {
	for _, p := range s.players {
		fn(p)
	}
}

// Abilities lists what the player archetype can activate.
func (s *State) Abilities() []string {
	if a := s.content.Spawns.Archetype(PlayerArchetype); a != nil && len(a.Abilities) > 0 {
		return a.Abilities
	}
	return s.content.Abilities.IDs()
}
