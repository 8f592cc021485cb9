package event

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// Simulation events. Published during tick N, dispatched at the start of N+1.

type ComponentFailed struct {
	Entity    ecs.EntityID
	Component ecs.ComponentKind
	Tick      uint64
	Err       error
}

type TickOverrun struct {
	Tick     uint64
	Duration time.Duration
	Budget   time.Duration
}

type AbilityActivated struct {
	Entity          ecs.EntityID
	AbilityID       string
	At              time.Duration
	CooldownReadyAt time.Duration
}

type EffectApplied struct {
	Target    ecs.EntityID
	Source    ecs.EntityID
	EffectID  string
	Magnitude float64
	Outcome   string
}

type EffectExpired struct {
	Target   ecs.EntityID
	EffectID string
	At       time.Duration
}

type PredictionResolved struct {
	RecordID        string
	Entity          ecs.EntityID
	PredictionID    uint32
	AbilityID       string
	Status          string
	ErrCode         string
	ClientTimestamp int64
	ReceivedAt      time.Duration
	ResolvedAt      time.Duration
}
