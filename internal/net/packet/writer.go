package packet

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message types carried in Envelope.Type.
const (
	TypeJoin     = "join"
	TypeWelcome  = "welcome"
	TypeMove     = "move"
	TypeActivate = "activate"
	TypeResult   = "result"
	TypeError    = "error"
)

// Envelope is the single wire frame: a type tag and a msgpack body.
type Envelope struct {
	Type string             `msgpack:"t"`
	Body msgpack.RawMessage `msgpack:"b"`
}

// Encode wraps body in an Envelope of the given type.
func Encode(typ string, body any) ([]byte, error) {
	raw, err := msgpack.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", typ, err)
	}
	data, err := msgpack.Marshal(&Envelope{Type: typ, Body: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", typ, err)
	}
	return data, nil
}

// Join is the first message a client sends.
type Join struct {
	Name   string `msgpack:"name"`
	Secret string `msgpack:"secret,omitempty"`
}

type Welcome struct {
	Entity     uint64   `msgpack:"entity"`
	ServerTime int64    `msgpack:"server_time"` // ms
	TickRate   int      `msgpack:"tick_rate"`
	Abilities  []string `msgpack:"abilities"`
}

// Move sets the movement intent. Seq orders intents; stale ones are dropped.
type Move struct {
	Seq uint32     `msgpack:"seq"`
	Dir [3]float64 `msgpack:"dir"`
}

// Activate is a predicted ability activation.
type Activate struct {
	PredictionID    uint32         `msgpack:"pid"`
	AbilityID       string         `msgpack:"ability"`
	ClientTimestamp int64          `msgpack:"ts"`
	ExpectFailure   bool           `msgpack:"expect_fail,omitempty"`
	Target          uint64         `msgpack:"target,omitempty"`
	Dir             [3]float64     `msgpack:"dir"`
	Payload         map[string]any `msgpack:"payload,omitempty"`
}

type Correction struct {
	Resources map[string]float64 `msgpack:"resources"`
	Cooldowns map[string]int64   `msgpack:"cooldowns"` // ability -> ready at, server ms
	Active    map[string]bool    `msgpack:"active"`
	Rollback  bool               `msgpack:"rollback"`
	Reason    string             `msgpack:"reason,omitempty"`
}

// Shortfall details an insufficient_resource failure.
type Shortfall struct {
	Resource string  `msgpack:"resource"`
	Have     float64 `msgpack:"have"`
	Need     float64 `msgpack:"need"`
}

// Result answers an Activate. RemainingMs is set for on_cooldown and
// Shortfall for insufficient_resource.
type Result struct {
	PredictionID uint32           `msgpack:"pid"`
	AbilityID    string           `msgpack:"ability"`
	Status       string           `msgpack:"status"`
	ErrCode      string           `msgpack:"code,omitempty"`
	RemainingMs  int64            `msgpack:"remaining_ms,omitempty"`
	Shortfall    *Shortfall       `msgpack:"shortfall,omitempty"`
	Cooldowns    map[string]int64 `msgpack:"cooldowns,omitempty"`
	Data         map[string]any   `msgpack:"data,omitempty"`
	Correction   *Correction      `msgpack:"correction,omitempty"`
	ServerTime   int64            `msgpack:"server_time"`
}

type Error struct {
	Code    string `msgpack:"code"`
	Message string `msgpack:"message"`
}
