package sensor

import "syringepump/pid"

// zoneFor returns the PID loop for z, or nil for an out-of-range
// selector.
func (c *Controller) zoneFor(z Zone) *pid.Controller {
	if int(z) >= int(zoneCount) {
		return nil
	}
	return c.pids[z]
}

// SetPidParams replaces zone z's tunable gains and limits without
// disturbing its running state.
func (c *Controller) SetPidParams(z Zone, p pid.Params) bool {
	loop := c.zoneFor(z)
	if loop == nil {
		return false
	}
	loop.SetParams(p)
	return true
}

// GetPidParams returns zone z's current tunable gains and limits.
func (c *Controller) GetPidParams(z Zone) (pid.Params, bool) {
	loop := c.zoneFor(z)
	if loop == nil {
		return pid.Params{}, false
	}
	return loop.Params(), true
}

// SetPidSetpoint sets zone z's target temperature, ramped toward on
// subsequent GetSensorData calls.
func (c *Controller) SetPidSetpoint(z Zone, target float64) bool {
	if int(z) >= int(zoneCount) {
		return false
	}
	c.mu.Lock()
	c.targets[z] = target
	c.mu.Unlock()
	return true
}

// ResetPid zeroes zone z's integral and ramped setpoint and drives its
// heater output to 0, matching the original firmware's Reset command.
func (c *Controller) ResetPid(z Zone) bool {
	loop := c.zoneFor(z)
	if loop == nil {
		return false
	}
	loop.Reset()
	if h := c.heaters[z]; h != nil {
		_ = h.SetDutyCycle(0)
	}
	return true
}

// SetPidMethod replaces zone z's anti-windup method without disturbing
// its other tunable gains or running state.
func (c *Controller) SetPidMethod(z Zone, method pid.AntiWindup) bool {
	loop := c.zoneFor(z)
	if loop == nil {
		return false
	}
	p := loop.Params()
	p.Method = method
	loop.SetParams(p)
	return true
}
