package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualNeverMovesBackwards(t *testing.T) {
	c := NewManual(time.Second)
	assert.Equal(t, 1500*time.Millisecond, c.Advance(500*time.Millisecond))
	assert.Equal(t, 1500*time.Millisecond, c.Advance(-time.Second))

	c.Set(time.Second)
	assert.Equal(t, 1500*time.Millisecond, c.Now())
	c.Set(3 * time.Second)
	assert.Equal(t, 3*time.Second, c.Now())
}

func TestMonotonicAdvances(t *testing.T) {
	c := NewMonotonic()
	a := c.Now()
	time.Sleep(time.Millisecond)
	assert.Greater(t, c.Now(), a)
}

func TestSecondsKeepsFractions(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, Seconds(1.5))
	assert.Equal(t, 250*time.Millisecond, Seconds(0.25))
	assert.Zero(t, Seconds(0))
	assert.Equal(t, -time.Second, Seconds(-1))
}
