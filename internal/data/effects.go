package data

import (
	"fmt"
	"os"
	"time"

	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/effect"
	"gopkg.in/yaml.v3"
)

// Built-in effect behaviours.
const (
	EffectDamage   = "damage"   // instant, magnitude is hit points, scaled by damage_taken
	EffectHeal     = "heal"     // instant
	EffectDot      = "dot"      // periodic damage
	EffectHot      = "hot"      // periodic heal
	EffectModifier = "modifier" // stat fold only
)

// --- YAML loading ---

type effectEntry struct {
	ID           string  `yaml:"id"`
	Behavior     string  `yaml:"behavior"`
	Stacking     string  `yaml:"stacking"`
	Duration     float64 `yaml:"duration"` // seconds
	Permanent    bool    `yaml:"permanent"`
	TickInterval float64 `yaml:"tick_interval"` // seconds; 0 = every tick, magnitude per second
	Stat         string  `yaml:"stat"`
	Mode         string  `yaml:"mode"`
	WhileActive  string  `yaml:"while_active"` // ability id; the effect lasts while it stays active
}

type effectListFile struct {
	Effects []effectEntry `yaml:"effects"`
}

// LoadEffectCatalog loads effect definitions from YAML.
func LoadEffectCatalog(path string) (*effect.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read effects: %w", err)
	}
	return parseEffectCatalog(raw)
}

func parseEffectCatalog(raw []byte) (*effect.Catalog, error) {
	var f effectListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse effects: %w", err)
	}
	defs := make([]*effect.Definition, 0, len(f.Effects))
	for i := range f.Effects {
		d, err := buildEffect(&f.Effects[i])
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return effect.NewCatalog(defs...)
}

func buildEffect(e *effectEntry) (*effect.Definition, error) {
	stacking, err := effect.ParseStacking(e.Stacking)
	if err != nil {
		return nil, fmt.Errorf("effect %q: %w", e.ID, err)
	}
	mode, err := effect.ParseMode(e.Mode)
	if err != nil {
		return nil, fmt.Errorf("effect %q: %w", e.ID, err)
	}
	d := &effect.Definition{
		ID:           e.ID,
		Stacking:     stacking,
		Duration:     clock.Seconds(e.Duration),
		Permanent:    e.Permanent,
		TickInterval: clock.Seconds(e.TickInterval),
		Mode:         mode,
	}
	if e.Stat != "" {
		st, ok := ecs.ParseStat(e.Stat)
		if !ok {
			return nil, fmt.Errorf("effect %q: unknown stat %q", e.ID, e.Stat)
		}
		d.Stat = st
	}
	if mode != effect.ModeNone && e.Stat == "" {
		return nil, fmt.Errorf("effect %q: mode %q needs a stat", e.ID, e.Mode)
	}

	switch e.Behavior {
	case EffectDamage:
		d.Instant = true
		d.OnApply = damageHook
	case EffectHeal:
		d.Instant = true
		d.OnApply = healHook
	case EffectDot:
		d.OnTick = periodic(d, damageHook)
	case EffectHot:
		d.OnTick = periodic(d, healHook)
	case EffectModifier, "":
	default:
		return nil, fmt.Errorf("effect %q: unknown behavior %q", e.ID, e.Behavior)
	}

	if e.WhileActive != "" {
		if d.Instant || d.Permanent {
			return nil, fmt.Errorf("effect %q: while_active needs a lasting, non-permanent effect", e.ID)
		}
		d.OnTick = chain(d.OnTick, sustain(e.WhileActive, d.Duration))
	}
	return d, nil
}

// --- Built-in hooks ---
// Hooks run with the target locked and touch only the target's components.

func damageHook(hc effect.HookContext) {
	h, ok := ecs.Get[*component.Health](hc.Target, ecs.ComponentHealth)
	if !ok {
		return
	}
	amount := hc.Target.Modifiers().Apply(ecs.StatDamageTaken, hc.Magnitude)
	dealt := h.Damage(amount, hc.Now)
	if dealt <= 0 {
		return
	}
	if c, ok := ecs.Get[*component.Combat](hc.Target, ecs.ComponentCombat); ok {
		c.RecordTaken(dealt, hc.Now)
	}
}

func healHook(hc effect.HookContext) {
	if h, ok := ecs.Get[*component.Health](hc.Target, ecs.ComponentHealth); ok {
		h.Heal(hc.Magnitude)
	}
}

// periodic scales an instant hook for OnTick. With a tick interval the
// magnitude is per pulse; without one it is per second.
func periodic(d *effect.Definition, hook effect.Hook) effect.Hook {
	return func(hc effect.HookContext) {
		if d.TickInterval <= 0 {
			hc.Magnitude *= hc.DT.Seconds()
		}
		hook(hc)
	}
}

// sustain keeps the instance alive for another lease while abilityID is
// still active on the target.
func sustain(abilityID string, lease time.Duration) effect.Hook {
	return func(hc effect.HookContext) {
		if hc.Instance == nil {
			return
		}
		b, ok := ecs.Get[*ability.Book](hc.Target, ecs.ComponentAbility)
		if !ok || !b.State(abilityID).Active {
			return
		}
		if next := hc.Now + lease; next > hc.Instance.ExpiresAt {
			hc.Instance.ExpiresAt = next
		}
	}
}

func chain(hooks ...effect.Hook) effect.Hook {
	return func(hc effect.HookContext) {
		for _, h := range hooks {
			if h != nil {
				h(hc)
			}
		}
	}
}
