package effect

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

var (
	// ErrUnknownEffect is returned when an effect id is not in the catalog.
	ErrUnknownEffect = errors.New("unknown effect")
	// ErrNoHolder is returned when a lasting effect targets a character
	// without an Effect component.
	ErrNoHolder = errors.New("target has no effect component")
)

// Stacking decides what happens when an effect is applied to a target that
// already carries it. Chosen by content, per definition.
type Stacking uint8

const (
	StackRefresh Stacking = iota // reset expiry, keep the existing magnitude
	StackStack                   // add an independent instance
	StackIgnore                  // reject the reapplication
)

func ParseStacking(name string) (Stacking, error) {
	switch name {
	case "", "refresh":
		return StackRefresh, nil
	case "stack":
		return StackStack, nil
	case "ignore":
		return StackIgnore, nil
	default:
		return 0, fmt.Errorf("unknown stacking policy %q", name)
	}
}

// Mode is how an instance's magnitude folds into its stat.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeAdd
	ModeMul
)

func ParseMode(name string) (Mode, error) {
	switch name {
	case "", "none":
		return ModeNone, nil
	case "add":
		return ModeAdd, nil
	case "mul":
		return ModeMul, nil
	default:
		return 0, fmt.Errorf("unknown modifier mode %q", name)
	}
}

// HookContext is passed to effect callbacks. The target is locked for the
// duration of the call; hooks may change the target's components but must
// not call back into the Engine for the same target.
type HookContext struct {
	Target    *ecs.Character
	Source    ecs.EntityID
	Instance  *Instance // nil for instant effects
	Magnitude float64
	Now       time.Duration
	DT        time.Duration
}

type Hook func(hc HookContext)

// Definition is read-only content describing one effect.
type Definition struct {
	ID           string
	Stacking     Stacking
	Duration     time.Duration // default duration when the caller does not override it
	Permanent    bool
	Instant      bool          // run OnApply only, keep no instance
	TickInterval time.Duration // 0 = OnTick every engine tick
	Stat         ecs.Stat
	Mode         Mode

	OnApply  Hook
	OnTick   Hook
	OnRemove Hook
}

// Catalog is the effect content registry, built once at startup.
type Catalog struct {
	defs map[string]*Definition
}

func NewCatalog(defs ...*Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("effect definition without id")
		}
		if _, dup := c.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate effect %q", d.ID)
		}
		if !d.Instant && !d.Permanent && d.Duration <= 0 {
			return nil, fmt.Errorf("effect %q: lasting effect needs a duration or permanent", d.ID)
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

// IDs returns the sorted effect ids.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Duration overrides a definition's default lifetime on Apply.
type Duration struct {
	set     bool
	forever bool
	length  time.Duration
}

// DefaultDuration uses the definition's own duration.
func DefaultDuration() Duration { return Duration{} }

// For lasts d from the moment of application.
func For(d time.Duration) Duration { return Duration{set: true, length: d} }

// Forever never expires on its own.
func Forever() Duration { return Duration{set: true, forever: true} }

func (d Duration) resolve(def *Definition) (length time.Duration, permanent bool) {
	if !d.set {
		return def.Duration, def.Permanent
	}
	return d.length, d.forever
}
