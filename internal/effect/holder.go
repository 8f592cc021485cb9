package effect

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// Instance is one active effect on a target.
type Instance struct {
	EffectID        string
	Source          ecs.EntityID // back-reference only
	Target          ecs.EntityID
	AppliedAt       time.Duration
	ExpiresAt       time.Duration
	Permanent       bool
	Magnitude       float64
	TickAccumulator time.Duration

	def *Definition
}

// Expired reports whether the instance has reached its expiry at now.
func (in *Instance) Expired(now time.Duration) bool {
	return !in.Permanent && now >= in.ExpiresAt
}

// Holder is the Effect component: it exclusively owns the active instances
// on its Character.
type Holder struct {
	owner     *ecs.Character
	engine    *Engine
	instances []*Instance
}

func (h *Holder) Kind() ecs.ComponentKind   { return ecs.ComponentEffect }
func (h *Holder) OnAttach(c *ecs.Character) { h.owner = c }

func (h *Holder) OnDetach() {
	h.owner = nil
	h.instances = nil
}

func (h *Holder) Update(tc ecs.TickContext) error {
	if h.owner == nil {
		return nil
	}
	h.engine.tickLocked(h.owner, h, tc.Now, tc.DT)
	return nil
}

// Instances returns copies of the active instances.
func (h *Holder) Instances() []Instance {
	out := make([]Instance, len(h.instances))
	for i, in := range h.instances {
		out[i] = *in
	}
	return out
}

// Count returns how many instances of effectID are active.
func (h *Holder) Count(effectID string) int {
	n := 0
	for _, in := range h.instances {
		if in.EffectID == effectID {
			n++
		}
	}
	return n
}

func (h *Holder) Has(effectID string) bool { return h.find(effectID) != nil }

func (h *Holder) find(effectID string) *Instance {
	for _, in := range h.instances {
		if in.EffectID == effectID {
			return in
		}
	}
	return nil
}

// fold rebuilds the derived modifiers from every active instance.
func (h *Holder) fold() ecs.Modifiers {
	mods := ecs.NewModifiers()
	for _, in := range h.instances {
		switch in.def.Mode {
		case ModeAdd:
			mods.AddFlat(in.def.Stat, in.Magnitude)
		case ModeMul:
			mods.Scale(in.def.Stat, in.Magnitude)
		case ModeNone:
		}
	}
	return mods
}
