package handler

import (
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/reconcile"
	"go.uber.org/zap"
)

// HandleActivate queues a predicted activation with the reconciliation
// protocol. The answer is sent when the protocol resolves it at the start
// of the next tick.
func HandleActivate(sess *net.Session, r *packet.Reader, deps *Deps) {
	var a packet.Activate
	if err := r.Decode(&a); err != nil {
		deps.Log.Debug("bad activate message", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	p := deps.World.GetBySession(sess.ID)
	if p == nil {
		return
	}

	req := reconcile.Request{
		PredictionID:    a.PredictionID,
		AbilityID:       a.AbilityID,
		ClientTimestamp: a.ClientTimestamp,
		Target:          ecs.EntityID(a.Target),
		Direction:       mgl64.Vec3(a.Dir),
		Payload:         a.Payload,
	}
	if a.ExpectFailure {
		req.Expect = reconcile.ExpectFailure
	}

	err := deps.Protocol.Submit(p.Entity, req, deps.Clock.Now(), sess.RoundTrip(), replyTo(sess))
	switch {
	case err == nil:
	case errors.Is(err, reconcile.ErrDuplicatePrediction):
		deps.Log.Debug("duplicate prediction dropped", zap.Uint64("session", sess.ID), zap.Uint32("pid", a.PredictionID))
	case errors.Is(err, reconcile.ErrRateLimited):
		deps.Log.Debug("activation rate limited", zap.Uint64("session", sess.ID), zap.String("ability", a.AbilityID))
	default:
		deps.Log.Warn("submit activation", zap.Uint64("session", sess.ID), zap.Error(err))
	}
}

// replyTo converts protocol responses into result messages on sess.
func replyTo(sess *net.Session) reconcile.Reply {
	return func(resp reconcile.Response) {
		sess.SendMessage(packet.TypeResult, ResultMessage(resp))
	}
}

// ResultMessage is the wire form of a protocol response. Times are server
// milliseconds; a remaining cooldown is rounded up so a client that waits
// it out is never early.
func ResultMessage(resp reconcile.Response) *packet.Result {
	msg := &packet.Result{
		PredictionID: resp.PredictionID,
		AbilityID:    resp.AbilityID,
		Status:       resp.Status.String(),
		ErrCode:      resp.ErrCode,
		Cooldowns:    millis(resp.Cooldowns),
		Data:         resp.Data,
		ServerTime:   resp.ServerTime.Milliseconds(),
	}
	var (
		cd    *ability.CooldownError
		short *ability.ResourceError
	)
	switch {
	case errors.As(resp.Err, &cd):
		msg.RemainingMs = (cd.Remaining + time.Millisecond - 1).Milliseconds()
	case errors.As(resp.Err, &short):
		msg.Shortfall = &packet.Shortfall{Resource: short.Kind.String(), Have: short.Have, Need: short.Need}
	}
	if c := resp.Correction; c != nil {
		msg.Correction = &packet.Correction{
			Resources: c.Resources,
			Cooldowns: millis(c.Cooldowns),
			Active:    c.Active,
			Rollback:  c.Rollback,
			Reason:    c.Reason,
		}
	}
	return msg
}

func millis(m map[string]time.Duration) map[string]int64 {
	if m == nil {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v.Milliseconds()
	}
	return out
}
