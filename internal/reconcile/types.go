// Package reconcile turns client ability predictions into authoritative
// outcomes: confirm what the client already showed, or send the corrected
// state it must roll back to.
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/oklog/ulid/v2"
)

var (
	ErrRateLimited         = errors.New("rate limited")
	ErrTimeout             = errors.New("prediction timed out")
	ErrDuplicatePrediction = errors.New("duplicate prediction id")
)

const (
	CodeRateLimited = "rate_limited"
	CodeTimeout     = "timeout"
)

// Code extends ability.Code with the protocol's own failures.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	default:
		return ability.Code(err)
	}
}

// Expectation is what the client predicted the activation would do.
type Expectation uint8

const (
	ExpectSuccess Expectation = iota
	ExpectFailure
)

// Request is one predicted activation sent by a client.
type Request struct {
	PredictionID    uint32
	AbilityID       string
	ClientTimestamp int64 // client clock, ms; echoed, never trusted
	Expect          Expectation
	Target          ecs.EntityID
	Direction       mgl64.Vec3
	Payload         map[string]any
}

type Status uint8

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusCorrected
	StatusTimedOut
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusCorrected:
		return "corrected"
	case StatusTimedOut:
		return "timed_out"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Record is the server's bookkeeping for one prediction.
type Record struct {
	ID              ulid.ULID
	Entity          ecs.EntityID
	PredictionID    uint32
	AbilityID       string
	ClientTimestamp int64
	ReceivedAt      time.Duration
	ResolvedAt      time.Duration
	Status          Status
}

// Correction is the authoritative state a client rolls back to.
type Correction struct {
	Resources map[string]float64
	Cooldowns map[string]time.Duration
	Active    map[string]bool
	Rollback  bool // the client showed a success that did not happen
	ErrCode   string
	Reason    string
}

// Response is sent back to the predicting client.
type Response struct {
	PredictionID uint32
	AbilityID    string
	Status       Status
	Cooldowns    map[string]time.Duration
	Data         map[string]any
	Correction   *Correction
	ErrCode      string
	Err          error // the engine's failure; nil for protocol rejections
	ServerTime   time.Duration
}

// Reply delivers a Response. It must not block.
type Reply func(Response)
