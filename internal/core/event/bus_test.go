package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []uint64
	Subscribe(b, func(e TickOverrun) { got = append(got, e.Tick) })

	Emit(b, TickOverrun{Tick: 1})
	b.DispatchAll()
	assert.Empty(t, got, "events are not visible before the swap")

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []uint64{1}, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []uint64{1}, got, "front buffer is cleared on the following swap")
}

func TestBusTypesAreIsolated(t *testing.T) {
	b := NewBus()
	var overruns, failures int
	Subscribe(b, func(TickOverrun) { overruns++ })
	Subscribe(b, func(ComponentFailed) { failures++ })

	Emit(b, ComponentFailed{Tick: 3})
	Emit(b, ComponentFailed{Tick: 3})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 0, overruns)
	assert.Equal(t, 2, failures)
}

func TestEmitConcurrent(t *testing.T) {
	b := NewBus()
	var n int
	Subscribe(b, func(ComponentFailed) { n++ })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Emit(b, ComponentFailed{})
			}
		}()
	}
	wg.Wait()
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, 800, n)
}

func TestEmitNilBus(t *testing.T) {
	assert.NotPanics(t, func() { Emit[TickOverrun](nil, TickOverrun{}) })
}
