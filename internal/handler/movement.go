package handler

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"go.uber.org/zap"
)

// HandleMove records a movement intent on the player's Input component.
// The Movement component picks it up on the next update.
func HandleMove(sess *net.Session, r *packet.Reader, deps *Deps) {
	var m packet.Move
	if err := r.Decode(&m); err != nil {
		deps.Log.Debug("bad move message", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	p := deps.World.GetBySession(sess.ID)
	if p == nil {
		return
	}
	c, ok := deps.World.Character(p)
	if !ok {
		return
	}

	c.Lock()
	defer c.Unlock()
	if in, ok := ecs.Get[*component.Input](c, ecs.ComponentInput); ok {
		in.SetMove(mgl64.Vec3(m.Dir), m.Seq)
	}
}
