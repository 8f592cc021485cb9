package scripting

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const blinkScript = `
abilities["blink"] = {
  validate = function(ctx)
    if ctx.resources.mana < 10 then
      return false, "not enough focus"
    end
    return true
  end,
  apply = function(ctx)
    local dist = ctx.payload.distance or 4
    return {
      actions = {
        { kind = "dash", distance = dist },
        { kind = "effect", target = "self", effect = "haste", magnitude = 1.5, duration = 2 },
      },
      data = { blinked = dist },
    }
  end,
}
`

const brokenScript = `
abilities["broken"] = {
  validate = function(ctx) error("boom") end,
  apply = function(ctx) error("kaboom") end,
}
abilities["passive"] = {}
`

func newEngine(t *testing.T, scripts map[string]string) *Engine {
	t.Helper()
	dir := t.TempDir()
	abDir := filepath.Join(dir, "ability")
	require.NoError(t, os.MkdirAll(abDir, 0o755))
	for name, src := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(abDir, name), []byte(src), 0o644))
	}
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestAbilitiesRegistered(t *testing.T) {
	e := newEngine(t, map[string]string{"blink.lua": blinkScript, "broken.lua": brokenScript})
	assert.Equal(t, []string{"blink", "broken", "passive"}, e.Abilities())
	assert.True(t, e.Has("blink"))
	assert.False(t, e.Has("nope"))
}

func TestValidateReturnsReason(t *testing.T) {
	e := newEngine(t, map[string]string{"blink.lua": blinkScript})

	ok, reason := e.Validate("blink", AbilityContext{Resources: map[string]float64{"mana": 3}})
	assert.False(t, ok)
	assert.Equal(t, "not enough focus", reason)

	ok, _ = e.Validate("blink", AbilityContext{Resources: map[string]float64{"mana": 30}})
	assert.True(t, ok)
}

func TestValidateScriptErrorFails(t *testing.T) {
	e := newEngine(t, map[string]string{"broken.lua": brokenScript})

	ok, reason := e.Validate("broken", AbilityContext{})
	assert.False(t, ok)
	assert.Contains(t, reason, "boom")

	ok, _ = e.Validate("passive", AbilityContext{})
	assert.True(t, ok)

	ok, reason = e.Validate("missing", AbilityContext{})
	assert.False(t, ok)
	assert.Equal(t, ErrNoScript.Error(), reason)
}

func TestApplyReturnsActions(t *testing.T) {
	e := newEngine(t, map[string]string{"blink.lua": blinkScript})

	actions, data, err := e.Apply("blink", AbilityContext{Payload: map[string]any{"distance": 6}})
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, Action{Kind: "dash", Target: "self", Distance: 6}, actions[0])
	assert.Equal(t, "haste", actions[1].EffectID)
	assert.Equal(t, 2*time.Second, actions[1].Duration)
	assert.InDelta(t, 1.5, actions[1].Magnitude, 1e-9)
	assert.Equal(t, map[string]any{"blinked": 6.0}, data)
}

func TestApplyScriptError(t *testing.T) {
	e := newEngine(t, map[string]string{"broken.lua": brokenScript})

	_, _, err := e.Apply("broken", AbilityContext{})
	assert.ErrorContains(t, err, "kaboom")

	_, _, err = e.Apply("missing", AbilityContext{})
	assert.ErrorIs(t, err, ErrNoScript)
}

func TestConcurrentCallsAreSerialised(t *testing.T) {
	e := newEngine(t, map[string]string{"blink.lua": blinkScript})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := e.Validate("blink", AbilityContext{Resources: map[string]float64{"mana": 20}})
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}

func TestLoadErrorIsReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ability"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ability", "bad.lua"), []byte("this is not lua"), 0o644))
	_, err := NewEngine(dir, zaptest.NewLogger(t))
	assert.Error(t, err)
}
