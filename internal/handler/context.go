package handler

import (
	"github.com/l1jgo/simcore/internal/config"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/reconcile"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Clock    clock.Clock
	World    *world.State
	Protocol *reconcile.Protocol
}

// RegisterAll registers all message handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.TypeJoin,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, r *packet.Reader) {
			HandleJoin(sess.(*net.Session), r, deps)
		},
	)

	inWorldStates := []packet.SessionState{packet.StateInWorld}

	reg.Register(packet.TypeMove, inWorldStates,
		func(sess any, r *packet.Reader) {
			HandleMove(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.TypeActivate, inWorldStates,
		func(sess any, r *packet.Reader) {
			HandleActivate(sess.(*net.Session), r, deps)
		},
	)
}

func sendError(sess *net.Session, code, msg string) {
	sess.SendMessage(packet.TypeError, &packet.Error{Code: code, Message: msg})
}
