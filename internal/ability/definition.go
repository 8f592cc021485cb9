// Package ability gates and commits ability activations: cooldown,
// resource and validation checks, then an atomic commit of cost and
// cooldown on the caster, then the ability's own apply callback.
package ability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/l1jgo/simcore/internal/component"
)

// Mode is how an ability occupies its caster once activated.
type Mode uint8

const (
	ModeInstant Mode = iota
	ModeChanneled
	ModeToggle
)

func (m Mode) String() string {
	switch m {
	case ModeInstant:
		return "instant"
	case ModeChanneled:
		return "channeled"
	case ModeToggle:
		return "toggle"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

func ParseMode(name string) (Mode, error) {
	switch name {
	case "", "instant":
		return ModeInstant, nil
	case "channeled", "channel":
		return ModeChanneled, nil
	case "toggle":
		return ModeToggle, nil
	default:
		return ModeInstant, fmt.Errorf("unknown ability mode %q", name)
	}
}

// ValidateFunc is the ability-specific precondition. It runs under the
// caster's lock and must not touch other characters or change state.
type ValidateFunc func(ctx *Context) (ok bool, reason string)

// ApplyFunc performs the ability. It runs after the commit with no locks
// held; writes to other characters go through Services.Effects.
type ApplyFunc func(ctx *Context) map[string]any

// Definition is static ability content, shared by every caster.
type Definition struct {
	ID       string
	Cooldown time.Duration
	Cost     float64
	Resource component.ResourceKind
	Mode     Mode
	Channel  time.Duration // channeled only
	Upkeep   float64       // toggle only, resource per second while active

	Validate ValidateFunc
	Apply    ApplyFunc
}

// Catalog is the immutable set of ability definitions built at startup.
type Catalog struct {
	defs map[string]*Definition
}

func NewCatalog(defs ...*Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, errors.New("ability definition without id")
		}
		if _, dup := c.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate ability %q", d.ID)
		}
		if d.Cooldown < 0 || d.Cost < 0 || d.Upkeep < 0 {
			return nil, fmt.Errorf("ability %q: negative cooldown, cost or upkeep", d.ID)
		}
		if d.Mode == ModeChanneled && d.Channel <= 0 {
			return nil, fmt.Errorf("ability %q: channeled without channel time", d.ID)
		}
		c.defs[d.ID] = d
	}
	return c, nil
}

func (c *Catalog) Get(id string) (*Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

func (c *Catalog) Count() int { return len(c.defs) }

// IDs returns every ability id, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
