package sim

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"go.uber.org/zap"
)

// Policy decides when the scheduler defers non-critical updates.
type Policy uint8

const (
	PolicyAdaptive Policy = iota
	PolicyAlways
	PolicyNever
)

func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "adaptive":
		return PolicyAdaptive, nil
	case "always":
		return PolicyAlways, nil
	case "never":
		return PolicyNever, nil
	default:
		return PolicyAdaptive, fmt.Errorf("unknown batch policy %q", name)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyAlways:
		return "always"
	case PolicyNever:
		return "never"
	default:
		return "adaptive"
	}
}

type Options struct {
	TickInterval    time.Duration
	BatchSize       int
	Policy          Policy
	BudgetFraction  float64
	TelemetryWindow int
}

// Telemetry is a snapshot of scheduler health. It is informational only.
type Telemetry struct {
	Tick     uint64
	Active   int
	Batching bool
	LastTick time.Duration
	AvgTick  time.Duration // over the telemetry window
	AvgCost  time.Duration // estimated full-update cost per character
	Overruns uint64
	Failures uint64
	FullLast int
}

// Scheduler advances the simulation one tick at a time: the phase runner
// executes every registered system, and the component update runs as the
// Update phase.
type Scheduler struct {
	opts     Options
	clock    clock.Clock
	runner   *coresys.Runner
	manager  *Manager
	registry *ecs.Registry
	bus      *event.Bus
	log      *zap.Logger

	tick     uint64
	lastNow  time.Duration
	order    []*ecs.Character
	avgCost  time.Duration
	batching bool
	lastFull int

	mu      sync.Mutex
	samples []time.Duration
	next    int
	sum     time.Duration
	tel     Telemetry
}

func NewScheduler(opts Options, clk clock.Clock, runner *coresys.Runner, manager *Manager, registry *ecs.Registry, bus *event.Bus, log *zap.Logger) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / 60
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.BudgetFraction <= 0 || opts.BudgetFraction > 1 {
		opts.BudgetFraction = 0.8
	}
	if opts.TelemetryWindow <= 0 {
		opts.TelemetryWindow = 30
	}
	s := &Scheduler{
		opts:     opts,
		clock:    clk,
		runner:   runner,
		manager:  manager,
		registry: registry,
		bus:      bus,
		log:      log,
		samples:  make([]time.Duration, 0, opts.TelemetryWindow),
	}
	runner.Register(&updateSystem{s: s})
	return s
}

// updateSystem is the Update phase: the planned component pass.
type updateSystem struct{ s *Scheduler }

func (u *updateSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (u *updateSystem) Update(tc ecs.TickContext) {
	s := u.s
	plan := s.plan(s.registry.Len())
	report := s.manager.Update(tc, plan)
	s.lastFull = report.Full
	if report.Full > 0 {
		cost := report.FullCost / time.Duration(report.Full)
		if s.avgCost == 0 {
			s.avgCost = cost
		} else {
			s.avgCost = (s.avgCost*4 + cost) / 5
		}
	}
}

// budget is the share of a tick available to component updates.
func (s *Scheduler) budget() time.Duration {
	return time.Duration(float64(s.opts.TickInterval) * s.opts.BudgetFraction)
}

// plan picks this tick's full-update batch: the BatchSize Characters whose
// last full update is oldest, active-list order breaking ties. Unless new
// Characters join, each one gets a full update at least once every
// ceil(active/batch) ticks however removals reorder the active list.
func (s *Scheduler) plan(active int) Plan {
	switch s.opts.Policy {
	case PolicyAlways:
		s.batching = true
	case PolicyNever:
		s.batching = false
	default:
		s.batching = time.Duration(active)*s.avgCost > s.budget()
	}
	if !s.batching || active <= s.opts.BatchSize {
		return Plan{All: true}
	}

	// LastFullTick is only written by the Update phase, which runs after plan.
	s.order = s.registry.AppendActive(s.order[:0])
	defer clear(s.order)
	if len(s.order) <= s.opts.BatchSize {
		return Plan{All: true}
	}
	slices.SortStableFunc(s.order, func(a, b *ecs.Character) int {
		return cmp.Compare(a.LastFullTick(), b.LastFullTick())
	})
	full := make(map[ecs.EntityID]struct{}, s.opts.BatchSize)
	for _, c := range s.order[:s.opts.BatchSize] {
		full[c.ID()] = struct{}{}
	}
	return Plan{Full: full}
}

// Step runs exactly one tick.
func (s *Scheduler) Step() {
	start := time.Now()
	now := s.clock.Now()
	dt := s.opts.TickInterval
	if s.tick > 0 && now > s.lastNow {
		dt = now - s.lastNow
	}
	s.tick++
	s.lastNow = now

	s.runner.Tick(ecs.TickContext{Tick: s.tick, Now: now, DT: dt})
	s.record(time.Since(start))
}

func (s *Scheduler) record(d time.Duration) {
	s.mu.Lock()
	if len(s.samples) < s.opts.TelemetryWindow {
		s.samples = append(s.samples, d)
	} else {
		s.sum -= s.samples[s.next]
		s.samples[s.next] = d
		s.next = (s.next + 1) % s.opts.TelemetryWindow
	}
	s.sum += d
	over := d > s.opts.TickInterval
	if over {
		s.tel.Overruns++
	}
	s.tel.Tick = s.tick
	s.tel.Batching = s.batching
	s.tel.LastTick = d
	s.tel.AvgTick = s.sum / time.Duration(len(s.samples))
	s.tel.AvgCost = s.avgCost
	s.tel.FullLast = s.lastFull
	s.mu.Unlock()

	if over {
		s.log.Warn("tick overrun",
			zap.Uint64("tick", s.tick),
			zap.Duration("took", d),
			zap.Duration("interval", s.opts.TickInterval),
		)
		event.Emit(s.bus, event.TickOverrun{Tick: s.tick, Duration: d, Budget: s.opts.TickInterval})
	}
}

// Run steps at the configured rate until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	s.log.Info("simulation started",
		zap.Duration("interval", s.opts.TickInterval),
		zap.Stringer("policy", s.opts.Policy),
		zap.Int("batch_size", s.opts.BatchSize),
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("simulation stopped", zap.Uint64("tick", s.tick))
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// Telemetry returns the figures recorded at the end of the last tick.
func (s *Scheduler) Telemetry() Telemetry {
	s.mu.Lock()
	t := s.tel
	s.mu.Unlock()
	t.Active = s.registry.Len()
	t.Failures = s.manager.Failures()
	return t
}
