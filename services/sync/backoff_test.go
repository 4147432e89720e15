package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyDelayDoublesUntilCap(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Max: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 200*time.Millisecond, p.Delay(1))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))
	assert.Equal(t, 800*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(4))
	assert.Equal(t, time.Second, p.Delay(10))
}

func TestPolicyDelayClampsBaseToMax(t *testing.T) {
	p := Policy{Base: 10 * time.Second, Max: 5 * time.Second}
	assert.Equal(t, p.Max, p.Delay(0))
	assert.Equal(t, p.Max, p.Delay(1))

	// A policy without a ceiling keeps its base.
	unbounded := Policy{Base: 10 * time.Second}
	assert.Equal(t, 10*time.Second, unbounded.Delay(0))
}

func TestPolicyDelayNegativeRetryCount(t *testing.T) {
	p := Policy{Base: 250 * time.Millisecond, Max: 5 * time.Second}
	assert.Equal(t, p.Base, p.Delay(-3))
}

func TestPolicyDelayNonDecreasingAndBounded(t *testing.T) {
	p := Policy{Base: 50 * time.Millisecond, Max: 30 * time.Second}

	prev := time.Duration(0)
	for retries := 0; retries <= 80; retries++ {
		d := p.Delay(retries)
		assert.GreaterOrEqual(t, d, prev, "delay decreased at retry %d", retries)
		assert.LessOrEqual(t, d, p.Max, "delay exceeded cap at retry %d", retries)
		prev = d
	}
}

func TestPolicyDelaySurvivesShiftOverflow(t *testing.T) {
	p := Policy{Base: time.Hour, Max: 2 * time.Hour}
	// Shifting an hour by 30 overflows int64 nanoseconds; the cap must hold.
	assert.Equal(t, p.Max, p.Delay(30))
}
