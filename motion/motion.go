// Package motion implements the Austin/Eiderman online stepper-acceleration
// recurrence: a three-state ramp (accelerate, cruise, decelerate) driven by
// successively rescheduling a single countdown timer, with no move queue.
package motion

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"syringepump/halcontract"
)

// State names the current ramp phase.
type State int

const (
	RampUp State = iota
	RampMax
	RampDown
	Idle
)

// ErrTooFast is returned by CreateProfile when the requested step rate
// would need a minimum step interval below the controller's 10us floor.
var ErrTooFast = errors.New("motion: requested step rate exceeds controller resolution")

// Controller runs one axis's step timing. It owns no GPIO of its own: each
// tick invokes stepFn to pulse the physical step output, and calls doneFn
// exactly once when the configured step count is reached; Stop never calls it.
type Controller struct {
	timer  halcontract.MicrosecondTimer
	stepFn func()
	doneFn func()

	mu sync.Mutex

	steps          int32
	stepsPerformed int32
	state          State
	n              int32
	c              float32
	cMin           float32
	decelN         int32
	decelStart     int32

	stopped atomic.Bool
}

// NewController returns a Controller. stepFn pulses the step output exactly
// once per call; doneFn is invoked from the timer goroutine when the move
// completes naturally (never when stopped via Stop).
func NewController(timer halcontract.MicrosecondTimer, stepFn func(), doneFn func()) *Controller {
	return &Controller{timer: timer, stepFn: stepFn, doneFn: doneFn, state: Idle}
}

// CreateProfile computes the ramp parameters for a finite move of steps
// steps at a target rate of stepsPerSec, accelerating at accel and
// decelerating at decel (all in steps/s and steps/s^2). It returns
// ErrTooFast if the resulting minimum step interval would be below the
// controller's 10us floor.
func (c *Controller) CreateProfile(steps int32, stepsPerSec, accel, decel float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const alpha = 1.0
	c.steps = steps
	c.stepsPerformed = 0
	c.n = 1

	c0 := 1000000.0 * float32(math.Sqrt(2.0*alpha/float64(accel)))
	c.c = c0 * 0.676
	maxSLim := (stepsPerSec * stepsPerSec) / (2.0 * alpha * accel)
	cMin := (1.0 / stepsPerSec) * 1000000.0

	accelLim := (float32(steps) * decel) / (accel + decel)
	var decelN float32
	if maxSLim < accelLim {
		decelN = -maxSLim * (accel / decel)
	} else {
		decelN = -(float32(steps) - accelLim)
	}
	c.decelN = int32(decelN)
	c.decelStart = c.decelN + steps

	if cMin < 10 {
		c.cMin = 10
		return ErrTooFast
	}
	c.cMin = cMin
	return nil
}

// CreateMaxSpeedProfile configures an open-ended move (used by MaxPull and
// MaxPush) that accelerates to stepsPerSec and then runs until Stop is
// called, e.g. by a limit-switch edge handler.
func (c *Controller) CreateMaxSpeedProfile(stepsPerSec, accel, decel float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	const alpha = 1.0
	c.stepsPerformed = 0
	c.n = 1

	c0 := 1000000.0 * float32(math.Sqrt(2.0*alpha/float64(accel)))
	c.c = c0 * 0.676
	cMin := (1.0 / stepsPerSec) * 1000000.0
	if cMin < 10 {
		cMin = 10
	}
	c.cMin = cMin
	c.steps = 2000000000
	c.decelN = 1
	c.decelStart = math.MaxInt32
}

// Run starts stepping from RampUp with the profile set by the most recent
// CreateProfile or CreateMaxSpeedProfile call.
func (c *Controller) Run() {
	c.mu.Lock()
	c.stopped.Store(false)
	c.state = RampUp
	delay := firstDelay(c.c)
	c.mu.Unlock()

	c.timer.Start(delay, c.tick)
}

// Stop halts stepping immediately without invoking doneFn.
func (c *Controller) Stop() {
	c.stopped.Store(true)
	c.timer.Stop()
	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
}

// IsActive reports whether a move is in progress.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != Idle && c.stepsPerformed < c.steps
}

// StepsPerformed returns the number of step pulses emitted so far.
func (c *Controller) StepsPerformed() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepsPerformed
}

// CurrentIntervalMicros returns the current step interval, in microseconds,
// used by status reporting to derive the instantaneous flow rate.
func (c *Controller) CurrentIntervalMicros() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int32(c.c + 0.5)
}

// tick is the timer callback: it fires the step output, advances the ramp
// state machine, and reschedules itself unless the move has ended.
func (c *Controller) tick() {
	if c.stopped.Load() {
		return
	}

	c.stepFn()

	if c.stopped.Load() {
		return
	}

	c.mu.Lock()
	c.stepsPerformed++
	done := c.stepsPerformed >= c.steps
	var delay time.Duration
	if !done {
		switch c.state {
		case RampUp:
			newC := c.c - (c.c*2)/(4*float32(c.n)+1)
			if c.stepsPerformed >= c.decelStart {
				c.state = RampDown
				c.n = c.decelN
			} else if newC <= c.cMin {
				c.state = RampMax
				newC = c.cMin
			}
			c.c = newC
		case RampDown:
			newC := c.c - (c.c*2)/(4*float32(c.n)+1)
			c.c = newC
		case RampMax:
			if c.stepsPerformed >= c.decelStart {
				c.state = RampDown
				c.n = c.decelN
			}
		}
		c.n++
		delay = firstDelay(c.c)
	} else {
		c.state = Idle
	}
	c.mu.Unlock()

	if done {
		if !c.stopped.Load() {
			c.doneFn()
		}
		return
	}
	c.timer.Start(delay, c.tick)
}

func firstDelay(c float32) time.Duration {
	return time.Duration(int32(c+0.5)) * time.Microsecond
}
