package data

import (
	"fmt"
	"os"

	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/effect"
	"github.com/l1jgo/simcore/internal/scripting"
	"gopkg.in/yaml.v3"
)

// Ability behaviours bound by name from YAML.
const (
	BehaviorProjectile   = "projectile"
	BehaviorSelfEffect   = "self_effect"
	BehaviorTargetEffect = "target_effect"
	BehaviorDash         = "dash"
	BehaviorScript       = "script"
)

// --- YAML loading ---

type abilityEntry struct {
	ID       string  `yaml:"id"`
	Behavior string  `yaml:"behavior"`
	Mode     string  `yaml:"mode"`
	Cooldown float64 `yaml:"cooldown"` // seconds
	Cost     float64 `yaml:"cost"`
	Resource string  `yaml:"resource"`
	Channel  float64 `yaml:"channel"` // seconds
	Upkeep   float64 `yaml:"upkeep"`  // per second

	Range          float64 `yaml:"range"`
	Speed          float64 `yaml:"speed"` // projectile speed; 0 = hitscan
	UsesWeapon     bool    `yaml:"uses_weapon"`
	Effect         string  `yaml:"effect"`
	Magnitude      float64 `yaml:"magnitude"`
	EffectDuration float64 `yaml:"effect_duration"` // seconds; 0 = effect default, <0 = forever
	Distance       float64 `yaml:"distance"`        // dash length
	Script         string  `yaml:"script"`          // script id; defaults to the ability id
}

type abilityListFile struct {
	Abilities []abilityEntry `yaml:"abilities"`
}

// LoadAbilityCatalog loads ability definitions from YAML and binds their
// behaviours. scripts may be nil when no ability uses the script behaviour.
func LoadAbilityCatalog(path string, effects *effect.Catalog, scripts *scripting.Engine) (*ability.Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abilities: %w", err)
	}
	return parseAbilityCatalog(raw, effects, scripts)
}

func parseAbilityCatalog(raw []byte, effects *effect.Catalog, scripts *scripting.Engine) (*ability.Catalog, error) {
	var f abilityListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse abilities: %w", err)
	}
	defs := make([]*ability.Definition, 0, len(f.Abilities))
	for i := range f.Abilities {
		d, err := buildAbility(&f.Abilities[i], effects, scripts)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return ability.NewCatalog(defs...)
}

func buildAbility(e *abilityEntry, effects *effect.Catalog, scripts *scripting.Engine) (*ability.Definition, error) {
	mode, err := ability.ParseMode(e.Mode)
	if err != nil {
		return nil, fmt.Errorf("ability %q: %w", e.ID, err)
	}
	resource, err := component.ParseResource(e.Resource)
	if err != nil {
		return nil, fmt.Errorf("ability %q: %w", e.ID, err)
	}
	d := &ability.Definition{
		ID:       e.ID,
		Cooldown: clock.Seconds(e.Cooldown),
		Cost:     e.Cost,
		Resource: resource,
		Mode:     mode,
		Channel:  clock.Seconds(e.Channel),
		Upkeep:   e.Upkeep,
	}

	if e.Effect != "" {
		if _, ok := effects.Get(e.Effect); !ok {
			return nil, fmt.Errorf("ability %q: unknown effect %q", e.ID, e.Effect)
		}
	}

	switch e.Behavior {
	case BehaviorProjectile:
		if e.Effect == "" {
			return nil, fmt.Errorf("ability %q: projectile needs an effect", e.ID)
		}
		if e.Range <= 0 && !e.UsesWeapon {
			return nil, fmt.Errorf("ability %q: projectile needs a range or a weapon", e.ID)
		}
		p := &projectile{entry: *e}
		d.Validate = p.validate
		d.Apply = p.apply
	case BehaviorSelfEffect:
		if e.Effect == "" {
			return nil, fmt.Errorf("ability %q: self_effect needs an effect", e.ID)
		}
		d.Apply = selfEffect(*e)
	case BehaviorTargetEffect:
		if e.Effect == "" {
			return nil, fmt.Errorf("ability %q: target_effect needs an effect", e.ID)
		}
		d.Validate = targetInRange(e.Range)
		d.Apply = targetEffect(*e)
	case BehaviorDash:
		if e.Distance <= 0 {
			return nil, fmt.Errorf("ability %q: dash needs a distance", e.ID)
		}
		d.Validate = hasMovement
		d.Apply = dash(e.Distance)
	case BehaviorScript:
		id := e.Script
		if id == "" {
			id = e.ID
		}
		if scripts == nil || !scripts.Has(id) {
			return nil, fmt.Errorf("ability %q: no script %q", e.ID, id)
		}
		s := &scripted{id: id, engine: scripts, effects: effects}
		d.Validate = s.validate
		d.Apply = s.apply
	default:
		return nil, fmt.Errorf("ability %q: unknown behavior %q", e.ID, e.Behavior)
	}
	return d, nil
}
