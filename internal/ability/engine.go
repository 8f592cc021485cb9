package ability

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	"github.com/l1jgo/simcore/internal/effect"
	"github.com/l1jgo/simcore/internal/latency"
	"github.com/l1jgo/simcore/internal/spatial"
	"go.uber.org/zap"
)

// Services are the collaborators an ability callback may use.
type Services struct {
	Registry *ecs.Registry
	Effects  *effect.Engine
	Spatial  spatial.Query
	Latency  *latency.Compensator
	Log      *zap.Logger
}

// Context is what validate and apply see for one activation.
type Context struct {
	Caster    *ecs.Character
	Now       time.Duration
	Target    ecs.EntityID
	Origin    mgl64.Vec3 // caster position, filled by the engine
	Direction mgl64.Vec3 // aim; defaults to the caster's facing
	Payload   map[string]any
	RoundTrip time.Duration
	Services  *Services
}

// Result is the outcome of TryActivate.
type Result struct {
	Success   bool
	AbilityID string
	Cooldowns map[string]time.Duration
	Data      map[string]any
	Err       error
}

// Snapshot is a copy of the state the activation checks read. The server
// takes one from the authoritative character; a predicting client keeps
// its own.
type Snapshot struct {
	Cooldowns map[string]time.Duration
	Active    map[string]bool
	Resources map[component.ResourceKind]float64
	Dead      bool
}

// Evaluate runs the cooldown, resource and validation checks against snap
// without changing anything. ctx may be nil to skip the validate callback.
func Evaluate(def *Definition, snap Snapshot, now time.Duration, ctx *Context) error {
	if ready := snap.Cooldowns[def.ID]; now < ready {
		return &CooldownError{AbilityID: def.ID, Remaining: ready - now}
	}
	// switching a toggle off is free
	if def.Mode == ModeToggle && snap.Active[def.ID] {
		return nil
	}
	if def.Cost > 0 && def.Resource != component.ResourceNone {
		have, ok := snap.Resources[def.Resource]
		if !ok || have < def.Cost {
			return &ResourceError{Kind: def.Resource, Have: have, Need: def.Cost}
		}
	}
	if snap.Dead {
		return &ValidationError{Reason: "caster is dead"}
	}
	if def.Validate != nil && ctx != nil {
		if ok, reason := def.Validate(ctx); !ok {
			if reason == "" {
				reason = "rejected"
			}
			return &ValidationError{Reason: reason}
		}
	}
	return nil
}

// Engine is the authoritative activation gate.
type Engine struct {
	catalog  *Catalog
	clock    clock.Clock
	bus      *event.Bus
	services *Services
	log      *zap.Logger
}

func NewEngine(catalog *Catalog, clk clock.Clock, bus *event.Bus, svc *Services, log *zap.Logger) *Engine {
	if svc == nil {
		svc = &Services{}
	}
	if svc.Log == nil {
		svc.Log = log
	}
	return &Engine{catalog: catalog, clock: clk, bus: bus, services: svc, log: log}
}

func (e *Engine) Catalog() *Catalog   { return e.catalog }
func (e *Engine) Services() *Services { return e.services }

// NewBook returns an empty Ability component bound to this engine's catalog.
func (e *Engine) NewBook() *Book {
	return &Book{catalog: e.catalog, states: make(map[string]*State)}
}

// Snapshot copies the check-relevant state of c. Locks c.
func (e *Engine) Snapshot(c *ecs.Character) Snapshot {
	c.Lock()
	defer c.Unlock()
	return snapshotLocked(c)
}

func snapshotLocked(c *ecs.Character) Snapshot {
	snap := Snapshot{
		Resources: component.Levels(c),
		Dead:      !c.Alive(),
	}
	if b, ok := ecs.Get[*Book](c, ecs.ComponentAbility); ok {
		snap.Cooldowns = b.Cooldowns()
		snap.Active = b.ActiveSet()
	}
	if h, ok := ecs.Get[*component.Health](c, ecs.ComponentHealth); ok && h.Dead() {
		snap.Dead = true
	}
	return snap
}

// TryActivate checks and commits abilityID for c, then runs its apply
// callback. The checks and the commit happen under c's lock, so two
// concurrent activations can never both pass the same cooldown. ctx may
// be nil.
func (e *Engine) TryActivate(c *ecs.Character, abilityID string, ctx *Context) Result {
	def, ok := e.catalog.Get(abilityID)
	if !ok {
		return Result{AbilityID: abilityID, Err: fmt.Errorf("activate %q: %w", abilityID, ErrUnknownAbility)}
	}
	if ctx == nil {
		ctx = &Context{}
	}
	now := e.clock.Now()
	ctx.Caster = c
	ctx.Now = now
	ctx.Services = e.services

	c.Lock()
	book, ok := ecs.Get[*Book](c, ecs.ComponentAbility)
	if !ok {
		c.Unlock()
		return Result{AbilityID: abilityID, Err: &ValidationError{Reason: "caster has no abilities"}}
	}
	if m, ok := ecs.Get[*component.Movement](c, ecs.ComponentMovement); ok {
		ctx.Origin = m.Position
		if ctx.Direction.Len() < 1e-9 {
			ctx.Direction = m.Facing
		}
	}
	if err := Evaluate(def, snapshotLocked(c), now, ctx); err != nil {
		cooldowns := book.Cooldowns()
		c.Unlock()
		return Result{AbilityID: abilityID, Cooldowns: cooldowns, Err: err}
	}

	st := book.state(abilityID)
	if def.Mode == ModeToggle && st.Active {
		st.Active = false
		cooldowns := book.Cooldowns()
		c.Unlock()
		e.log.Debug("ability toggled off", zap.Stringer("entity", c.ID()), zap.String("ability", abilityID))
		return Result{Success: true, AbilityID: abilityID, Cooldowns: cooldowns, Data: map[string]any{"active": false}}
	}

	component.Spend(c, def.Resource, def.Cost, now)
	if ready := now + def.Cooldown; ready > st.CooldownReadyAt {
		st.CooldownReadyAt = ready
	}
	switch def.Mode {
	case ModeChanneled:
		st.Active = true
		st.ActiveUntil = now + def.Channel
	case ModeToggle:
		st.Active = true
	case ModeInstant:
	}
	readyAt := st.CooldownReadyAt
	cooldowns := book.Cooldowns()
	c.Unlock()

	var data map[string]any
	if def.Apply != nil {
		data = e.apply(def, ctx)
	}

	event.Emit(e.bus, event.AbilityActivated{
		Entity:          c.ID(),
		AbilityID:       abilityID,
		At:              now,
		CooldownReadyAt: readyAt,
	})
	return Result{Success: true, AbilityID: abilityID, Cooldowns: cooldowns, Data: data}
}

// apply runs the callback; a panic is logged and the committed
// activation still stands.
func (e *Engine) apply(def *Definition, ctx *Context) (data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("ability apply panic recovered",
				zap.String("ability", def.ID),
				zap.Stringer("entity", ctx.Caster.ID()),
				zap.Any("panic", r),
			)
			data = nil
		}
	}()
	return def.Apply(ctx)
}

// Deactivate ends a channel or switches a toggle off early. It reports
// whether the ability was active. Locks c.
func (e *Engine) Deactivate(c *ecs.Character, abilityID string) bool {
	c.Lock()
	defer c.Unlock()
	book, ok := ecs.Get[*Book](c, ecs.ComponentAbility)
	if !ok {
		return false
	}
	st, ok := book.states[abilityID]
	if !ok || !st.Active {
		return false
	}
	st.Active = false
	return true
}
