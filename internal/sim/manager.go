// Package sim drives component updates: the Manager runs them with failure
// isolation across worker goroutines, the Scheduler decides each tick who
// gets a full update and runs the phase pipeline at a fixed rate.
package sim

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Plan selects which Characters get their non-critical components updated
// this tick. Critical components always run.
type Plan struct {
	All  bool
	Full map[ecs.EntityID]struct{}
}

func (p Plan) full(id ecs.EntityID) bool {
	if p.All {
		return true
	}
	_, ok := p.Full[id]
	return ok
}

// Report summarises one Manager pass.
type Report struct {
	Characters int
	Full       int
	Failures   int
	Elapsed    time.Duration
	FullCost   time.Duration // summed wall time of characters that ran in full
}

type Manager struct {
	registry *ecs.Registry
	bus      *event.Bus
	log      *zap.Logger
	workers  int

	failures atomic.Uint64
	scratch  []*ecs.Character
}

func NewManager(registry *ecs.Registry, bus *event.Bus, workers int, log *zap.Logger) *Manager {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Manager{registry: registry, bus: bus, workers: workers, log: log}
}

// RegisterComponent attaches comp to c as kind, replacing any existing
// instance. Locks c.
func (m *Manager) RegisterComponent(c *ecs.Character, kind ecs.ComponentKind, comp ecs.Component) error {
	if !kind.Valid() {
		return fmt.Errorf("register %s on %s: %w", kind, c.ID(), ecs.ErrUnknownComponent)
	}
	if comp == nil || comp.Kind() != kind {
		return fmt.Errorf("register %s on %s: instance kind mismatch: %w", kind, c.ID(), ecs.ErrUnknownComponent)
	}
	c.Lock()
	defer c.Unlock()
	return c.Attach(comp)
}

// Failures returns the number of component failures seen so far.
func (m *Manager) Failures() uint64 { return m.failures.Load() }

// UpdateAll runs every component of every active Character.
func (m *Manager) UpdateAll(tc ecs.TickContext) Report {
	return m.Update(tc, Plan{All: true})
}

// Update runs critical components for every active Character and the
// full set for the Characters in plan. Characters are split into
// contiguous chunks, one per worker, so each is updated by one goroutine.
func (m *Manager) Update(tc ecs.TickContext, plan Plan) Report {
	start := time.Now()
	m.scratch = m.registry.AppendActive(m.scratch[:0])
	chars := m.scratch

	var (
		full     atomic.Int64
		fullCost atomic.Int64
		failures atomic.Int64
	)
	run := func(part []*ecs.Character) {
		for _, c := range part {
			isFull := plan.full(c.ID())
			t0 := time.Now()
			failures.Add(int64(m.updateCharacter(c, tc, isFull)))
			if isFull {
				full.Add(1)
				fullCost.Add(int64(time.Since(t0)))
			}
		}
	}

	if len(chars) <= 1 || m.workers == 1 {
		run(chars)
	} else {
		chunk := (len(chars) + m.workers - 1) / m.workers
		var g errgroup.Group
		g.SetLimit(m.workers)
		for lo := 0; lo < len(chars); lo += chunk {
			hi := min(lo+chunk, len(chars))
			part := chars[lo:hi]
			g.Go(func() error {
				run(part)
				return nil
			})
		}
		_ = g.Wait()
	}

	for i := range m.scratch {
		m.scratch[i] = nil
	}
	return Report{
		Characters: len(chars),
		Full:       int(full.Load()),
		Failures:   int(failures.Load()),
		Elapsed:    time.Since(start),
		FullCost:   time.Duration(fullCost.Load()),
	}
}

// updateCharacter runs one Character's components in tier order under its
// lock and returns how many failed.
func (m *Manager) updateCharacter(c *ecs.Character, tc ecs.TickContext, full bool) int {
	c.Lock()
	defer c.Unlock()

	critical, sinceFull := c.Elapsed(tc.Now)
	failed := 0
	c.Each(func(comp ecs.Component) {
		kind := comp.Kind()
		ctx := tc
		switch {
		case kind.Critical():
			if critical > 0 {
				ctx.DT = critical
			}
		case !full:
			return
		default:
			if sinceFull > 0 {
				ctx.DT = sinceFull
			}
		}
		if err := m.safeUpdate(comp, ctx); err != nil {
			failed++
			m.fail(c, kind, tc.Tick, err)
		}
	})
	c.MarkUpdated(tc.Tick, tc.Now, full)
	return failed
}

func (m *Manager) safeUpdate(comp ecs.Component, tc ecs.TickContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return comp.Update(tc)
}

func (m *Manager) fail(c *ecs.Character, kind ecs.ComponentKind, tick uint64, err error) {
	m.failures.Add(1)
	m.log.Error("component update failed",
		zap.Stringer("entity", c.ID()),
		zap.Stringer("component", kind),
		zap.Uint64("tick", tick),
		zap.Error(err),
	)
	event.Emit(m.bus, event.ComponentFailed{Entity: c.ID(), Component: kind, Tick: tick, Err: err})
}
