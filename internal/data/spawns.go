package data

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// PoolInfo describes one resource pool of an archetype.
type PoolInfo struct {
	Max   float64 `yaml:"max"`
	Regen float64 `yaml:"regen"` // per second
}

// Archetype is the component loadout a character is built from.
type Archetype struct {
	Name          string
	Health        PoolInfo
	Stamina       PoolInfo
	Mana          PoolInfo
	Speed         float64
	Radius        float64
	Weapon        string // weapon id, empty = unarmed
	CombatTimeout float64
	Abilities     []string
}

// Spawn places one NPC at startup.
type Spawn struct {
	Name      string
	Archetype string
	Position  mgl64.Vec3
	Count     int
}

// SpawnTable holds archetypes and the startup spawn list.
type SpawnTable struct {
	archetypes map[string]*Archetype
	Spawns     []Spawn
}

// Archetype returns an archetype by name, or nil if not found.
func (t *SpawnTable) Archetype(name string) *Archetype {
	if t == nil {
		return nil
	}
	return t.archetypes[name]
}

// --- YAML loading ---

type archetypeEntry struct {
	Name          string   `yaml:"name"`
	Health        PoolInfo `yaml:"health"`
	Stamina       PoolInfo `yaml:"stamina"`
	Mana          PoolInfo `yaml:"mana"`
	Speed         float64  `yaml:"speed"`
	Radius        float64  `yaml:"radius"`
	Weapon        string   `yaml:"weapon"`
	CombatTimeout float64  `yaml:"combat_timeout"` // seconds
	Abilities     []string `yaml:"abilities"`
}

type spawnEntry struct {
	Name      string     `yaml:"name"`
	Archetype string     `yaml:"archetype"`
	Position  [3]float64 `yaml:"position"`
	Count     int        `yaml:"count"`
}

type spawnListFile struct {
	Archetypes []archetypeEntry `yaml:"archetypes"`
	Spawns     []spawnEntry     `yaml:"spawns"`
}

// LoadSpawnTable loads archetypes and spawns from YAML.
func LoadSpawnTable(path string) (*SpawnTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawns: %w", err)
	}
	return parseSpawnTable(raw)
}

func parseSpawnTable(raw []byte) (*SpawnTable, error) {
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawns: %w", err)
	}
	t := &SpawnTable{archetypes: make(map[string]*Archetype, len(f.Archetypes))}
	for i := range f.Archetypes {
		e := &f.Archetypes[i]
		if e.Name == "" {
			return nil, fmt.Errorf("archetype %d: missing name", i)
		}
		if e.Health.Max <= 0 {
			return nil, fmt.Errorf("archetype %q: health.max must be positive", e.Name)
		}
		t.archetypes[e.Name] = &Archetype{
			Name:          e.Name,
			Health:        e.Health,
			Stamina:       e.Stamina,
			Mana:          e.Mana,
			Speed:         e.Speed,
			Radius:        e.Radius,
			Weapon:        e.Weapon,
			CombatTimeout: e.CombatTimeout,
			Abilities:     e.Abilities,
		}
	}
	for i := range f.Spawns {
		e := &f.Spawns[i]
		if t.archetypes[e.Archetype] == nil {
			return nil, fmt.Errorf("spawn %q: unknown archetype %q", e.Name, e.Archetype)
		}
		count := e.Count
		if count <= 0 {
			count = 1
		}
		t.Spawns = append(t.Spawns, Spawn{
			Name:      e.Name,
			Archetype: e.Archetype,
			Position:  mgl64.Vec3{e.Position[0], e.Position[1], e.Position[2]},
			Count:     count,
		})
	}
	return t, nil
}
