package system

import (
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/latency"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/reconcile"
	"github.com/l1jgo/simcore/internal/spatial"
)

// EventSystem makes last tick's events visible and dispatches them.
// Phase 1 (PreUpdate).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventSystem) Update(_ ecs.TickContext) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// CommitSystem runs after the component updates: due latency-compensated
// commits land, the spatial snapshot is refreshed for the next tick's
// ability callbacks, and starved predictions time out. Phase 3 (PostUpdate).
type CommitSystem struct {
	latency  *latency.Compensator
	index    *spatial.SphereIndex
	registry *ecs.Registry
	protocol *reconcile.Protocol
	scratch  []*ecs.Character
}

func NewCommitSystem(lat *latency.Compensator, index *spatial.SphereIndex, registry *ecs.Registry, protocol *reconcile.Protocol) *CommitSystem {
	return &CommitSystem{latency: lat, index: index, registry: registry, protocol: protocol}
}

func (s *CommitSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *CommitSystem) Update(tc ecs.TickContext) {
	s.latency.Flush(tc.Now)
	s.scratch = s.registry.AppendActive(s.scratch[:0])
	s.index.Rebuild(s.scratch)
	s.protocol.Sweep(tc.Now)
}

// OutputSystem flushes every session's buffered messages. Phase 4 (Output).
type OutputSystem struct {
	store *net.SessionStore
}

func NewOutputSystem(store *net.SessionStore) *OutputSystem {
	return &OutputSystem{store: store}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ ecs.TickContext) {
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}
