package ecs

// Stat is a derived value that active effects can modify.
type Stat uint8

const (
	StatMoveSpeed Stat = iota
	StatDamageTaken
	StatStaminaRegen
	StatHealthRegen

	statCount
)

func (s Stat) String() string {
	switch s {
	case StatMoveSpeed:
		return "move_speed"
	case StatDamageTaken:
		return "damage_taken"
	case StatStaminaRegen:
		return "stamina_regen"
	case StatHealthRegen:
		return "health_regen"
	default:
		return "unknown"
	}
}

// ParseStat maps a content name to a Stat.
func ParseStat(name string) (Stat, bool) {
	for s := Stat(0); s < statCount; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// Modifiers is a folded snapshot of every active effect's contribution.
// It is rebuilt from scratch whenever the effect set changes; the zero value
// modifies nothing.
type Modifiers struct {
	folded bool
	add    [statCount]float64
	mul    [statCount]float64
}

func NewModifiers() Modifiers {
	m := Modifiers{folded: true}
	for i := range m.mul {
		m.mul[i] = 1
	}
	return m
}

// AddFlat adds v to the stat before scaling.
func (m *Modifiers) AddFlat(s Stat, v float64) {
	if !m.folded {
		*m = NewModifiers()
	}
	m.add[s] += v
}

// Scale multiplies the stat by f.
func (m *Modifiers) Scale(s Stat, f float64) {
	if !m.folded {
		*m = NewModifiers()
	}
	m.mul[s] *= f
}

// Apply returns base with the folded modifiers applied: (base + add) * mul.
func (m Modifiers) Apply(s Stat, base float64) float64 {
	if !m.folded {
		return base
	}
	return (base + m.add[s]) * m.mul[s]
}

// Multiplier returns the stat's multiplicative factor.
func (m Modifiers) Multiplier(s Stat) float64 {
	if !m.folded {
		return 1
	}
	return m.mul[s]
}
