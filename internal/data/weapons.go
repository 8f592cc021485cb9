package data

import (
	"fmt"
	"os"

	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/clock"
	"gopkg.in/yaml.v3"
)

// WeaponTable holds weapon stats indexed by id.
type WeaponTable struct {
	weapons map[string]*component.WeaponStats
}

// Get returns a weapon by id, or nil if not found.
func (t *WeaponTable) Get(id string) *component.WeaponStats {
	if t == nil {
		return nil
	}
	return t.weapons[id]
}

// Count returns total loaded weapons.
func (t *WeaponTable) Count() int {
	if t == nil {
		return 0
	}
	return len(t.weapons)
}

// --- YAML loading ---

type weaponEntry struct {
	ID              string  `yaml:"id"`
	Damage          float64 `yaml:"damage"`
	Range           float64 `yaml:"range"`
	ProjectileSpeed float64 `yaml:"projectile_speed"`
	Magazine        int     `yaml:"magazine"`
	Reload          float64 `yaml:"reload"` // seconds
}

type weaponListFile struct {
	Weapons []weaponEntry `yaml:"weapons"`
}

// LoadWeaponTable loads weapon definitions from YAML.
func LoadWeaponTable(path string) (*WeaponTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weapons: %w", err)
	}
	return parseWeaponTable(raw)
}

func parseWeaponTable(raw []byte) (*WeaponTable, error) {
	var f weaponListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse weapons: %w", err)
	}
	t := &WeaponTable{weapons: make(map[string]*component.WeaponStats, len(f.Weapons))}
	for i := range f.Weapons {
		e := &f.Weapons[i]
		if e.ID == "" {
			return nil, fmt.Errorf("weapon %d: missing id", i)
		}
		if _, dup := t.weapons[e.ID]; dup {
			return nil, fmt.Errorf("duplicate weapon %q", e.ID)
		}
		if e.Magazine < 0 || e.Range < 0 || e.ProjectileSpeed < 0 {
			return nil, fmt.Errorf("weapon %q: negative stat", e.ID)
		}
		t.weapons[e.ID] = &component.WeaponStats{
			ID:              e.ID,
			Damage:          e.Damage,
			Range:           e.Range,
			ProjectileSpeed: e.ProjectileSpeed,
			Magazine:        e.Magazine,
			Reload:          clock.Seconds(e.Reload),
		}
	}
	return t, nil
}
