package arena

import (
	"math"
	"sync"
)

// DefaultChargeStep is the multiplier change applied on every meter tick.
// DefaultChargeTickMillis is the tick period driving the meter; together
// they make a full sweep of the bar take one second in each direction.
const (
	DefaultChargeStep       = 0.01
	DefaultChargeTickMillis = 10
)

// Damage computes the damage dealt by an attack of the given base strength
// at the given charge multiplier. The multiplier is clamped to [0, 1] and
// the result is never below 1: there are no zero-damage attacks.
func Damage(baseAttack int, multiplier float64) int {
	if multiplier < 0 {
		multiplier = 0
	} else if multiplier > 1 {
		multiplier = 1
	}
	dmg := int(math.Floor(float64(baseAttack) * multiplier))
	if dmg < 1 {
		return 1
	}
	return dmg
}

// ApplyDamage returns the defender's health after taking dmg, clamped at 0.
func ApplyDamage(health, dmg int) int {
	if remaining := health - dmg; remaining > 0 {
		return remaining
	}
	return 0
}

// ChargeMeter is the attack-strength minigame: a value oscillating between
// 0 and 1, advanced by a fixed step on every tick and reversing direction at
// the bounds. Stopping the meter freezes the value presented to Damage.
// The meter holds no timer of its own; the session drives Advance from its
// ticker so the pure oscillation stays testable.
type ChargeMeter struct {
	mu        sync.Mutex
	value     float64
	step      float64
	ascending bool
	stopped   bool
}

// NewChargeMeter creates a meter at 0, ascending, with the given step.
// A non-positive step falls back to DefaultChargeStep.
func NewChargeMeter(step float64) *ChargeMeter {
	if step <= 0 {
		step = DefaultChargeStep
	}
	return &ChargeMeter{step: step, ascending: true}
}

// Advance moves the meter by one tick. No-op once stopped.
func (c *ChargeMeter) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	if c.ascending {
		c.value += c.step
		if c.value >= 1 {
			c.value = 1
			c.ascending = false
		}
	} else {
		c.value -= c.step
		if c.value <= 0 {
			c.value = 0
			c.ascending = true
		}
	}
}

// Value returns the current multiplier in [0, 1].
func (c *ChargeMeter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Stop freezes the meter and returns the captured multiplier.
func (c *ChargeMeter) Stop() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return c.value
}

// Stopped reports whether the meter has been stopped.
func (c *ChargeMeter) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
