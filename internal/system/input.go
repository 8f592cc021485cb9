package system

import (
	"github.com/l1jgo/simcore/internal/core/ecs"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/reconcile"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
)

// SessionSource delivers connected and dead sessions. *net.Server is one.
type SessionSource interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
	NotifyDead(sessionID uint64)
}

// InputSystem resolves the activations queued last tick, then drains
// message queues from all sessions and dispatches them through the
// message registry. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	store      *net.SessionStore
	protocol   *reconcile.Protocol
	world      *world.State
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(
	source SessionSource,
	registry *packet.Registry,
	store *net.SessionStore,
	protocol *reconcile.Protocol,
	ws *world.State,
	maxPerTick int,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		protocol:   protocol,
		world:      ws,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(tc ecs.TickContext) {
	// Requests submitted during the previous tick's drain resolve now, so
	// every activation sees the component state of a completed tick.
	s.protocol.Process(tc.Now)

	// Accept new sessions
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	// Process dead sessions
	for {
		select {
		case id := <-s.source.DeadSessions():
			s.store.Remove(id)
		default:
			goto doneDead
		}
	}
doneDead:

	// Drain messages from each session (up to maxPerTick per session)
	for id, sess := range s.store.Raw() {
		if sess.IsClosed() {
			s.handleDisconnect(sess)
			s.source.NotifyDead(id)
			s.store.Remove(id)
			continue
		}

		for i := 0; i < s.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
					s.log.Debug("message dispatch error",
						zap.Uint64("session", sess.ID),
						zap.Error(err),
					)
				}
			default:
				goto nextSession
			}
		}
	nextSession:
	}

	// Early flush: results and welcomes produced here reach OutQueue now,
	// so writeLoop can send them while the update phase runs.
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

// handleDisconnect despawns the session's character and drops its
// unresolved predictions.
func (s *InputSystem) handleDisconnect(sess *net.Session) {
	p := s.world.RemovePlayer(sess.ID)
	if p == nil {
		s.log.Debug("session closed before join", zap.Uint64("session", sess.ID))
		return
	}
	s.protocol.Forget(p.Entity)
	s.log.Info("player left",
		zap.Uint64("session", sess.ID),
		zap.Stringer("entity", p.Entity),
		zap.String("name", p.Name),
	)
}
