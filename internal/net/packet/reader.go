package packet

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Reader gives a handler access to one decoded envelope.
type Reader struct {
	env Envelope
}

// NewReader decodes the envelope in data.
func NewReader(data []byte) (*Reader, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	return &Reader{env: env}, nil
}

func (r *Reader) Type() string { return r.env.Type }

// Decode unmarshals the body into v.
func (r *Reader) Decode(v any) error {
	if len(r.env.Body) == 0 {
		return fmt.Errorf("%s: empty body", r.env.Type)
	}
	if err := msgpack.Unmarshal(r.env.Body, v); err != nil {
		return fmt.Errorf("%s: %w", r.env.Type, err)
	}
	return nil
}
