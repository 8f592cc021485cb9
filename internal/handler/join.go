package handler

import (
	"unicode/utf8"

	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"go.uber.org/zap"
)

const maxNameLength = 24

// HandleJoin admits a connected session: checks the join secret, spawns
// the player character and sends the welcome.
func HandleJoin(sess *net.Session, r *packet.Reader, deps *Deps) {
	var j packet.Join
	if err := r.Decode(&j); err != nil {
		sendError(sess, "bad_request", "malformed join")
		return
	}
	if j.Name == "" || utf8.RuneCountInString(j.Name) > maxNameLength {
		sendError(sess, "bad_name", "name must be 1-24 characters")
		return
	}
	if !net.CheckSecret(deps.Config.Network.JoinSecretHash, j.Secret) {
		deps.Log.Warn("join rejected: bad secret", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))
		sendError(sess, "unauthorized", "bad join secret")
		sess.FlushOutput()
		sess.Close()
		return
	}

	now := deps.Clock.Now()
	p, err := deps.World.AddPlayer(sess, j.Name, now)
	if err != nil {
		deps.Log.Error("spawn player", zap.Uint64("session", sess.ID), zap.Error(err))
		sendError(sess, "internal", "could not spawn")
		return
	}
	sess.Name = p.Name
	sess.SetState(packet.StateInWorld)

	sess.SendMessage(packet.TypeWelcome, &packet.Welcome{
		Entity:     uint64(p.Entity),
		ServerTime: now.Milliseconds(),
		TickRate:   deps.Config.Simulation.TickRate,
		Abilities:  deps.World.Abilities(),
	})
}
