package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDispatchDecodesBody(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	var got Activate
	reg.Register(TypeActivate, []SessionState{StateInWorld}, func(sess any, r *Reader) {
		require.NoError(t, r.Decode(&got))
		assert.Equal(t, "session-1", sess)
	})

	data, err := Encode(TypeActivate, &Activate{PredictionID: 7, AbilityID: "dash", ClientTimestamp: 1234, Dir: [3]float64{1, 0, 0}})
	require.NoError(t, err)
	require.NoError(t, reg.Dispatch("session-1", StateInWorld, data))
	assert.Equal(t, uint32(7), got.PredictionID)
	assert.Equal(t, "dash", got.AbilityID)
	assert.Equal(t, [3]float64{1, 0, 0}, got.Dir)
}

func TestDispatchGatesOnState(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	called := false
	reg.Register(TypeActivate, []SessionState{StateInWorld}, func(any, *Reader) { called = true })

	data, err := Encode(TypeActivate, &Activate{})
	require.NoError(t, err)
	assert.Error(t, reg.Dispatch(nil, StateConnected, data))
	assert.False(t, called)
}

func TestDispatchIgnoresUnknownAndRejectsGarbage(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	data, err := Encode("mystery", map[string]int{"x": 1})
	require.NoError(t, err)
	assert.NoError(t, reg.Dispatch(nil, StateInWorld, data))

	assert.Error(t, reg.Dispatch(nil, StateInWorld, []byte{0xc1}))
	assert.Error(t, reg.Dispatch(nil, StateInWorld, nil))
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	reg.Register(TypeJoin, []SessionState{StateConnected}, func(any, *Reader) { panic("bad") })
	data, err := Encode(TypeJoin, &Join{Name: "x"})
	require.NoError(t, err)
	assert.ErrorContains(t, reg.Dispatch(nil, StateConnected, data), "panic")
}
