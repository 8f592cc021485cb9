package system

import "github.com/l1jgo/simcore/internal/core/ecs"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain session queues, resolve queued ability requests
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseUpdate                  // 2: component updates
	PhasePostUpdate              // 3: latency-compensated commits, prediction sweep
	PhaseOutput                  // 4: flush outbound messages
	PhasePersist                 // 5: journal flush
	PhaseCleanup                 // 6: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(tc ecs.TickContext)
}
