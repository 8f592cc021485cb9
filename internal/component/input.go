package component

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/simcore/internal/core/ecs"
)

// Input buffers the latest client intents and hands them to the other
// components at the top of the update order.
type Input struct {
	owner *ecs.Character

	move    mgl64.Vec3
	moveSeq uint32
	dirty   bool
}

func NewInput() *Input { return &Input{} }

func (in *Input) Kind() ecs.ComponentKind   { return ecs.ComponentInput }
func (in *Input) OnAttach(c *ecs.Character) { in.owner = c }
func (in *Input) OnDetach()                 { in.owner = nil }

// SetMove records a movement intent. Intents with a sequence number not
// newer than the last accepted one are dropped (reordered datagrams).
func (in *Input) SetMove(dir mgl64.Vec3, seq uint32) bool {
	if in.moveSeq != 0 && seq <= in.moveSeq {
		return false
	}
	in.move = dir
	in.moveSeq = seq
	in.dirty = true
	return true
}

func (in *Input) Update(tc ecs.TickContext) error {
	if !in.dirty || in.owner == nil {
		return nil
	}
	in.dirty = false
	if m, ok := ecs.Get[*Movement](in.owner, ecs.ComponentMovement); ok {
		m.SetDirection(in.move)
	}
	return nil
}
