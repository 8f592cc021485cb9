package data

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/effect"
	"github.com/l1jgo/simcore/internal/latency"
	"github.com/l1jgo/simcore/internal/scripting"
	"go.uber.org/zap"
)

// Validate callbacks run under the caster's lock and only read the caster.
// Apply callbacks run unlocked and reach other characters through
// Services.Effects, which locks each target itself.

func effectDuration(s float64) effect.Duration {
	switch {
	case s < 0:
		return effect.Forever()
	case s == 0:
		return effect.DefaultDuration()
	default:
		return effect.For(clock.Seconds(s))
	}
}

func vec(v mgl64.Vec3) [3]float64 { return [3]float64{v[0], v[1], v[2]} }

// --- projectile ---

type projectile struct {
	entry abilityEntry
}

func (p *projectile) validate(ctx *ability.Context) (bool, string) {
	if p.entry.UsesWeapon {
		w, ok := ecs.Get[*component.Weapon](ctx.Caster, ecs.ComponentWeapon)
		if !ok {
			return false, "no weapon equipped"
		}
		if !w.CanFire() {
			return false, "weapon reloading"
		}
	}
	if ctx.Direction.Len() < 1e-9 {
		return false, "no aim direction"
	}
	return true, ""
}

func (p *projectile) apply(ctx *ability.Context) map[string]any {
	svc := ctx.Services
	rng, speed, mag := p.entry.Range, p.entry.Speed, p.entry.Magnitude
	if p.entry.UsesWeapon {
		ctx.Caster.Lock()
		w, ok := ecs.Get[*component.Weapon](ctx.Caster, ecs.ComponentWeapon)
		fired := ok && w.Fire(ctx.Now)
		var stats component.WeaponStats
		if ok {
			stats = w.Stats
		}
		ctx.Caster.Unlock()
		if !fired {
			return map[string]any{"fired": false}
		}
		if rng <= 0 {
			rng = stats.Range
		}
		if speed <= 0 {
			speed = stats.ProjectileSpeed
		}
		if mag <= 0 {
			mag = stats.Damage
		}
	}

	data := map[string]any{"fired": true, "hit": false}
	if svc.Spatial == nil {
		return data
	}
	source := ctx.Caster.ID()
	hit := svc.Spatial.Raycast(ctx.Origin, ctx.Direction, rng, source)
	data["distance"] = hit.Distance
	data["point"] = vec(hit.Point)
	if !hit.HasEntity {
		return data
	}
	data["hit"] = true
	data["target"] = uint64(hit.Entity)

	target := hit.Entity
	commit := func(now time.Duration) {
		p.land(svc, source, target, mag, now)
	}
	travel := latency.TravelTime(hit.Distance, speed)
	if svc.Latency == nil || travel <= 0 {
		commit(ctx.Now)
		data["impact_at"] = ctx.Now.Seconds()
		return data
	}
	t := svc.Latency.Schedule(ctx.Now, travel, ctx.RoundTrip, commit)
	data["impact_at"] = t.DueAt.Seconds()
	return data
}

// land applies the projectile's effect to the entity the raycast hit.
// The hit stands even if the target has moved since.
func (p *projectile) land(svc *ability.Services, source, target ecs.EntityID, mag float64, now time.Duration) {
	c, ok := svc.Registry.Get(target)
	if !ok || !c.Alive() {
		return
	}
	if _, err := svc.Effects.Apply(c, p.entry.Effect, mag, effectDuration(p.entry.EffectDuration), source); err != nil {
		svc.Log.Warn("projectile effect failed",
			zap.String("ability", p.entry.ID),
			zap.Stringer("target", target),
			zap.Error(err),
		)
		return
	}
	if src, ok := svc.Registry.Get(source); ok {
		src.Lock()
		if cb, ok := ecs.Get[*component.Combat](src, ecs.ComponentCombat); ok {
			cb.RecordDealt(mag, now)
		}
		src.Unlock()
	}
}

// --- effects ---

func selfEffect(e abilityEntry) ability.ApplyFunc {
	return func(ctx *ability.Context) map[string]any {
		return applyEffect(ctx.Services, ctx.Caster, e.Effect, e.Magnitude, effectDuration(e.EffectDuration), ctx.Caster.ID())
	}
}

func targetEffect(e abilityEntry) ability.ApplyFunc {
	return func(ctx *ability.Context) map[string]any {
		c, ok := ctx.Services.Registry.Get(ctx.Target)
		if !ok || !c.Alive() {
			return map[string]any{"hit": false}
		}
		data := applyEffect(ctx.Services, c, e.Effect, e.Magnitude, effectDuration(e.EffectDuration), ctx.Caster.ID())
		data["hit"] = true
		data["target"] = uint64(ctx.Target)
		return data
	}
}

func applyEffect(svc *ability.Services, target *ecs.Character, effectID string, mag float64, dur effect.Duration, source ecs.EntityID) map[string]any {
	outcome, err := svc.Effects.Apply(target, effectID, mag, dur, source)
	if err != nil {
		svc.Log.Warn("ability effect failed", zap.String("effect", effectID), zap.Stringer("target", target.ID()), zap.Error(err))
		return map[string]any{"effect": effectID, "error": err.Error()}
	}
	return map[string]any{"effect": effectID, "outcome": outcome.String()}
}

func targetInRange(rng float64) ability.ValidateFunc {
	return func(ctx *ability.Context) (bool, string) {
		if ctx.Target.IsZero() {
			return false, "no target"
		}
		if ctx.Services.Spatial == nil {
			return true, ""
		}
		pos, ok := ctx.Services.Spatial.Position(ctx.Target)
		if !ok {
			return false, "target not found"
		}
		if rng > 0 && pos.Sub(ctx.Origin).Len() > rng {
			return false, "target out of range"
		}
		return true, ""
	}
}

// --- dash ---

func hasMovement(ctx *ability.Context) (bool, string) {
	if _, ok := ecs.Get[*component.Movement](ctx.Caster, ecs.ComponentMovement); !ok {
		return false, "cannot move"
	}
	if ctx.Direction.Len() < 1e-9 {
		return false, "no direction"
	}
	return true, ""
}

func dash(distance float64) ability.ApplyFunc {
	return func(ctx *ability.Context) map[string]any {
		pos, ok := displace(ctx.Caster, ctx.Direction, distance)
		if !ok {
			return nil
		}
		return map[string]any{"position": vec(pos)}
	}
}

func displace(c *ecs.Character, dir mgl64.Vec3, distance float64) (mgl64.Vec3, bool) {
	if dir.Len() < 1e-9 {
		return mgl64.Vec3{}, false
	}
	c.Lock()
	defer c.Unlock()
	m, ok := ecs.Get[*component.Movement](c, ecs.ComponentMovement)
	if !ok {
		return mgl64.Vec3{}, false
	}
	m.Displace(dir.Normalize().Mul(distance))
	return m.Position, true
}

// --- script ---

type scripted struct {
	id      string
	engine  *scripting.Engine
	effects *effect.Catalog
}

// scriptContext reads the caster; the caller holds its lock.
func scriptContext(ctx *ability.Context) scripting.AbilityContext {
	sc := scripting.AbilityContext{
		Caster:    uint64(ctx.Caster.ID()),
		Target:    uint64(ctx.Target),
		Now:       ctx.Now,
		Resources: make(map[string]float64, 3),
		Distance:  -1,
		Payload:   ctx.Payload,
	}
	if h, ok := ecs.Get[*component.Health](ctx.Caster, ecs.ComponentHealth); ok {
		sc.Health, sc.MaxHealth = h.HP, h.Max
	}
	for kind, v := range component.Levels(ctx.Caster) {
		sc.Resources[kind.String()] = v
	}
	if !ctx.Target.IsZero() && ctx.Services != nil && ctx.Services.Spatial != nil {
		if pos, ok := ctx.Services.Spatial.Position(ctx.Target); ok {
			sc.Distance = pos.Sub(ctx.Origin).Len()
		}
	}
	return sc
}

func (s *scripted) validate(ctx *ability.Context) (bool, string) {
	return s.engine.Validate(s.id, scriptContext(ctx))
}

func (s *scripted) apply(ctx *ability.Context) map[string]any {
	ctx.Caster.Lock()
	sc := scriptContext(ctx)
	ctx.Caster.Unlock()

	svc := ctx.Services
	actions, data, err := s.engine.Apply(s.id, sc)
	if err != nil {
		svc.Log.Warn("ability script failed", zap.String("ability", s.id), zap.Error(err))
		return map[string]any{"error": err.Error()}
	}
	if data == nil {
		data = make(map[string]any)
	}
	applied := 0
	for _, a := range actions {
		switch a.Kind {
		case "effect":
			if _, ok := s.effects.Get(a.EffectID); !ok {
				svc.Log.Warn("ability script named unknown effect", zap.String("ability", s.id), zap.String("effect", a.EffectID))
				continue
			}
			target := ctx.Caster
			if a.Target == "target" {
				c, ok := svc.Registry.Get(ctx.Target)
				if !ok || !c.Alive() {
					continue
				}
				target = c
			}
			dur := effect.DefaultDuration()
			if a.Duration > 0 {
				dur = effect.For(a.Duration)
			}
			if _, err := svc.Effects.Apply(target, a.EffectID, a.Magnitude, dur, ctx.Caster.ID()); err == nil {
				applied++
			}
		case "dash":
			if pos, ok := displace(ctx.Caster, ctx.Direction, a.Distance); ok {
				data["position"] = vec(pos)
				applied++
			}
		default:
			svc.Log.Warn("ability script returned unknown action", zap.String("ability", s.id), zap.String("kind", a.Kind))
		}
	}
	data["actions"] = applied
	return data
}
