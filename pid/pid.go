// Package pid implements a conditional-integration (clamping) anti-windup
// PID loop with setpoint ramping and a feed-forward term.
package pid

import "sync"

// AntiWindup selects how the integral term behaves while the output is
// saturated.
type AntiWindup int

const (
	// None always integrates, even while saturated (matches the original
	// firmware's NONE method).
	None AntiWindup = iota
	// Clamping freezes the integral while the output is saturated in the
	// direction that would make saturation worse. Unlike the original
	// firmware's CLAMPING branch, which never updates the integral while
	// the output is within [min, max*limit] at all, this also integrates
	// normally whenever the output is in range.
	Clamping
)

// Params holds the tunable gains and limits for one loop.
type Params struct {
	Kp, Ki, Kd, Kf float64
	Min, Max       float64
	Limit          float64 // fraction of Max the output may reach, e.g. 1.0
	Step           float64 // maximum setpoint change per Calculate call
	DT             float64 // loop period in seconds
	Method         AntiWindup
}

// State holds the loop's running variables, reported back to the host for
// diagnostics.
type State struct {
	Setpoint  float64
	Error     float64
	Integral  float64
	PrevError float64
	Output    float64
	DutyCycle float64
}

// Controller is a single PID loop instance. One Controller exists per
// actuated channel (e.g. one per heater zone on the sensor board).
type Controller struct {
	mu     sync.Mutex
	params Params
	state  State
	inited bool
}

// New returns a Controller with the given parameters. The first Calculate
// call initializes the ramped setpoint to the measured process value,
// matching the original firmware's initSetpoint bumpless-start behavior.
func New(p Params) *Controller {
	return &Controller{params: p}
}

// SetParams replaces the tunable parameters without resetting the running
// state (setpoint, integral, previous error), so a gain change does not
// bump the output.
func (c *Controller) SetParams(p Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = p
}

// Params returns the current tunable parameters.
func (c *Controller) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// State returns a snapshot of the running state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset clears the running state; the next Calculate call re-initializes
// the ramped setpoint from the measured process value.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
	c.inited = false
}

// Calculate advances the loop by one period: it ramps the internal
// setpoint toward target by at most Step (the first call after New or
// Reset instead sets it to pv, without a ramp step), computes P+I+D+F against the
// measured process value pv, applies conditional-integration anti-windup,
// clamps the output to [Min, Max*Limit], and returns the clamped output.
func (c *Controller) Calculate(target, pv float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.params
	s := &c.state

	switch {
	case !c.inited:
		s.Setpoint = pv
		c.inited = true
	case s.Setpoint+p.Step < target:
		s.Setpoint += p.Step
	case s.Setpoint-p.Step >= target:
		s.Setpoint -= p.Step
	default:
		s.Setpoint = target
	}

	s.Error = s.Setpoint - pv
	pOut := p.Kp * s.Error
	tempIntegral := s.Integral + s.Error*p.DT
	iOut := p.Ki * tempIntegral
	derivative := (s.Error - s.PrevError) / p.DT
	dOut := p.Kd * derivative
	fOut := p.Kf * s.Setpoint

	output := pOut + iOut + dOut + fOut
	satMax := p.Max * p.Limit

	switch p.Method {
	case None:
		s.Integral = tempIntegral
	case Clamping:
		inRange := output <= satMax && output >= p.Min
		highAndFalling := output > satMax && s.Error < 0
		lowAndRising := output < p.Min && s.Error > 0
		if inRange || highAndFalling || lowAndRising {
			s.Integral = tempIntegral
		}
	}

	if output > satMax {
		output = satMax
	} else if output < p.Min {
		output = p.Min
	}

	s.PrevError = s.Error
	s.Output = output
	if p.Max != p.Min {
		s.DutyCycle = output / (p.Max - p.Min)
	}
	return output
}
