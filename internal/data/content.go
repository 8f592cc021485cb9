package data

import (
	"fmt"

	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/effect"
	"github.com/l1jgo/simcore/internal/scripting"
	"go.uber.org/zap"
)

// Content is every static table the simulation is built from.
type Content struct {
	Abilities *ability.Catalog
	Effects   *effect.Catalog
	Weapons   *WeaponTable
	Spawns    *SpawnTable
	Scripts   *scripting.Engine
}

// Load reads the content tables in dependency order: effects, scripts,
// abilities, weapons, then spawns.
func Load(cfg config.ContentConfig, log *zap.Logger) (*Content, error) {
	effects, err := LoadEffectCatalog(cfg.EffectsPath)
	if err != nil {
		return nil, err
	}
	scripts, err := scripting.NewEngine(cfg.ScriptsDir, log.Named("lua"))
	if err != nil {
		return nil, fmt.Errorf("scripts: %w", err)
	}
	abilities, err := LoadAbilityCatalog(cfg.AbilitiesPath, effects, scripts)
	if err != nil {
		scripts.Close()
		return nil, err
	}
	weapons, err := LoadWeaponTable(cfg.WeaponsPath)
	if err != nil {
		scripts.Close()
		return nil, err
	}
	spawns, err := LoadSpawnTable(cfg.SpawnsPath)
	if err != nil {
		scripts.Close()
		return nil, err
	}
	c := &Content{
		Abilities: abilities,
		Effects:   effects,
		Weapons:   weapons,
		Spawns:    spawns,
		Scripts:   scripts,
	}
	if err := c.check(); err != nil {
		scripts.Close()
		return nil, err
	}

	log.Info("content loaded",
		zap.Int("abilities", abilities.Count()),
		zap.Int("effects", effects.Count()),
		zap.Int("weapons", weapons.Count()),
		zap.Int("spawns", len(spawns.Spawns)),
	)
	return c, nil
}

// check resolves the cross-table references archetypes make.
func (c *Content) check() error {
	for _, a := range c.Spawns.archetypes {
		if a.Weapon != "" && c.Weapons.Get(a.Weapon) == nil {
			return fmt.Errorf("archetype %q: unknown weapon %q", a.Name, a.Weapon)
		}
		for _, id := range a.Abilities {
			if _, ok := c.Abilities.Get(id); !ok {
				return fmt.Errorf("archetype %q: unknown ability %q", a.Name, id)
			}
		}
	}
	return nil
}

// Close releases the script VM.
func (c *Content) Close() {
	if c.Scripts != nil {
		c.Scripts.Close()
	}
}
