package effect

import (
	"fmt"
	"time"

	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	"go.uber.org/zap"
)

// Outcome reports what Apply did.
type Outcome uint8

const (
	OutcomeApplied Outcome = iota
	OutcomeRefreshed
	OutcomeStacked
	OutcomeIgnored
	OutcomeInstant
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeStacked:
		return "stacked"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeInstant:
		return "instant"
	default:
		return "unknown"
	}
}

// Engine applies, ticks and expires effects. It is the only path through
// which one Character may change another's state.
type Engine struct {
	catalog *Catalog
	clock   clock.Clock
	bus     *event.Bus
	log     *zap.Logger
}

func NewEngine(catalog *Catalog, clk clock.Clock, bus *event.Bus, log *zap.Logger) *Engine {
	return &Engine{catalog: catalog, clock: clk, bus: bus, log: log}
}

func (e *Engine) Catalog() *Catalog { return e.catalog }

// NewHolder returns an Effect component bound to this engine.
func (e *Engine) NewHolder() *Holder {
	return &Holder{engine: e}
}

// Apply puts effectID on target. Locks target.
func (e *Engine) Apply(target *ecs.Character, effectID string, magnitude float64, dur Duration, source ecs.EntityID) (Outcome, error) {
	def, ok := e.catalog.Get(effectID)
	if !ok {
		return OutcomeIgnored, fmt.Errorf("apply %q: %w", effectID, ErrUnknownEffect)
	}
	now := e.clock.Now()

	target.Lock()
	outcome, err := e.applyLocked(target, def, magnitude, dur, source, now)
	target.Unlock()
	if err != nil {
		return outcome, err
	}

	event.Emit(e.bus, event.EffectApplied{
		Target:    target.ID(),
		Source:    source,
		EffectID:  effectID,
		Magnitude: magnitude,
		Outcome:   outcome.String(),
	})
	return outcome, nil
}

func (e *Engine) applyLocked(target *ecs.Character, def *Definition, magnitude float64, dur Duration, source ecs.EntityID, now time.Duration) (Outcome, error) {
	if def.Instant {
		if def.OnApply != nil {
			def.OnApply(HookContext{Target: target, Source: source, Magnitude: magnitude, Now: now})
		}
		return OutcomeInstant, nil
	}

	h, ok := ecs.Get[*Holder](target, ecs.ComponentEffect)
	if !ok {
		return OutcomeIgnored, fmt.Errorf("apply %q to %s: %w", def.ID, target.ID(), ErrNoHolder)
	}
	length, permanent := dur.resolve(def)

	outcome := OutcomeApplied
	if existing := h.find(def.ID); existing != nil {
		switch def.Stacking {
		case StackIgnore:
			return OutcomeIgnored, nil
		case StackRefresh:
			existing.Permanent = permanent
			existing.ExpiresAt = now + length
			target.SetModifiers(h.fold())
			return OutcomeRefreshed, nil
		case StackStack:
			outcome = OutcomeStacked
		}
	}

	in := &Instance{
		EffectID:  def.ID,
		Source:    source,
		Target:    target.ID(),
		AppliedAt: now,
		ExpiresAt: now + length,
		Permanent: permanent,
		Magnitude: magnitude,
		def:       def,
	}
	h.instances = append(h.instances, in)
	if def.OnApply != nil {
		def.OnApply(HookContext{Target: target, Source: source, Instance: in, Magnitude: magnitude, Now: now})
	}
	target.SetModifiers(h.fold())
	return outcome, nil
}

// Tick runs per-tick callbacks and then expires finished instances. Locks target.
func (e *Engine) Tick(target *ecs.Character, dt time.Duration) {
	target.Lock()
	defer target.Unlock()
	if h, ok := ecs.Get[*Holder](target, ecs.ComponentEffect); ok {
		e.tickLocked(target, h, e.clock.Now(), dt)
	}
}

func (e *Engine) tickLocked(target *ecs.Character, h *Holder, now, dt time.Duration) {
	if len(h.instances) == 0 {
		return
	}
	for _, in := range h.instances {
		e.runTick(target, in, now, dt)
	}

	kept := h.instances[:0]
	var expired []*Instance
	for _, in := range h.instances {
		if in.Expired(now) {
			expired = append(expired, in)
			continue
		}
		kept = append(kept, in)
	}
	for i := len(kept); i < len(h.instances); i++ {
		h.instances[i] = nil
	}
	h.instances = kept
	if len(expired) == 0 {
		return
	}

	for _, in := range expired {
		e.finish(target, in, now)
		event.Emit(e.bus, event.EffectExpired{Target: target.ID(), EffectID: in.EffectID, At: now})
	}
	target.SetModifiers(h.fold())
}

func (e *Engine) runTick(target *ecs.Character, in *Instance, now, dt time.Duration) {
	hook := in.def.OnTick
	if hook == nil {
		return
	}
	// time past expiry does not count towards periodic ticks
	if !in.Permanent && now > in.ExpiresAt {
		dt -= now - in.ExpiresAt
	}
	if dt <= 0 {
		return
	}
	interval := in.def.TickInterval
	if interval <= 0 {
		hook(HookContext{Target: target, Source: in.Source, Instance: in, Magnitude: in.Magnitude, Now: now, DT: dt})
		return
	}
	in.TickAccumulator += dt
	for in.TickAccumulator >= interval {
		in.TickAccumulator -= interval
		hook(HookContext{Target: target, Source: in.Source, Instance: in, Magnitude: in.Magnitude, Now: now, DT: interval})
	}
}

// Remove cancels every instance of effectID on target, running cleanup
// callbacks, and returns how many were removed. Locks target.
func (e *Engine) Remove(target *ecs.Character, effectID string) int {
	now := e.clock.Now()

	target.Lock()
	defer target.Unlock()
	h, ok := ecs.Get[*Holder](target, ecs.ComponentEffect)
	if !ok {
		return 0
	}
	kept := h.instances[:0]
	var removed []*Instance
	for _, in := range h.instances {
		if in.EffectID == effectID {
			removed = append(removed, in)
			continue
		}
		kept = append(kept, in)
	}
	for i := len(kept); i < len(h.instances); i++ {
		h.instances[i] = nil
	}
	h.instances = kept
	for _, in := range removed {
		e.finish(target, in, now)
	}
	if len(removed) > 0 {
		target.SetModifiers(h.fold())
		e.log.Debug("effect removed",
			zap.Stringer("target", target.ID()),
			zap.String("effect", effectID),
			zap.Int("instances", len(removed)),
		)
	}
	return len(removed)
}

func (e *Engine) finish(target *ecs.Character, in *Instance, now time.Duration) {
	if in.def.OnRemove != nil {
		in.def.OnRemove(HookContext{Target: target, Source: in.Source, Instance: in, Magnitude: in.Magnitude, Now: now})
	}
}
