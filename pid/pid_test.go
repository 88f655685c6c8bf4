package pid

import "testing"

func baseParams() Params {
	return Params{
		Kp: 2.0, Ki: 0.5, Kd: 0.1, Kf: 0,
		Min: 0, Max: 100, Limit: 1.0,
		Step: 5, DT: 1.0,
		Method: Clamping,
	}
}

func TestBumplessInit(t *testing.T) {
	c := New(baseParams())
	// First call initializes the ramped setpoint to pv, so error starts at 0
	// regardless of how far target is from pv.
	c.Calculate(80, 20)
	if got := c.State().Error; got != 0 {
		t.Errorf("first Calculate error = %v, want 0 (bumpless init)", got)
	}
}

func TestSetpointRampIsCapped(t *testing.T) {
	c := New(baseParams())
	c.Calculate(80, 20) // inits setpoint=20
	c.Calculate(80, 20) // should step toward 80 by at most Step=5
	if got := c.State().Setpoint; got != 25 {
		t.Errorf("Setpoint after one ramp step = %v, want 25", got)
	}
}

func TestSetpointSnapsWithinStepOfTarget(t *testing.T) {
	c := New(baseParams())
	c.Calculate(22, 20) // inits setpoint=20
	c.Calculate(22, 20) // target 22 is within Step=5 of 20
	if got := c.State().Setpoint; got != 22 {
		t.Errorf("Setpoint = %v, want 22 (snapped directly to target)", got)
	}
}

func TestOutputClampedToRange(t *testing.T) {
	c := New(baseParams())
	out := c.Calculate(1000, 0)
	if out > 100 || out < 0 {
		t.Errorf("Calculate output = %v, want within [0,100]", out)
	}
}

func TestClampingFreezesIntegralAboveMax(t *testing.T) {
	p := baseParams()
	p.Kp = 100 // force heavy saturation
	c := New(p)
	c.Calculate(1000, 0)
	firstIntegral := c.State().Integral
	c.Calculate(1000, 0)
	secondIntegral := c.State().Integral
	if secondIntegral != firstIntegral {
		t.Errorf("integral advanced from %v to %v while output saturated high and error positive, want frozen", firstIntegral, secondIntegral)
	}
}

func TestClampingIntegratesInRange(t *testing.T) {
	c := New(baseParams())
	c.Calculate(30, 20) // inits setpoint=20, error=0
	firstIntegral := c.State().Integral
	c.Calculate(30, 20) // setpoint ramps to 25, error=5, output well within range
	secondIntegral := c.State().Integral
	if secondIntegral == firstIntegral {
		t.Errorf("integral did not advance while output was in range")
	}
}

func TestResetReinitializesSetpoint(t *testing.T) {
	c := New(baseParams())
	c.Calculate(80, 20)
	c.Calculate(80, 20)
	c.Reset()
	c.Calculate(80, 50)
	if got := c.State().Setpoint; got != 50 {
		t.Errorf("Setpoint after Reset+Calculate = %v, want 50 (bumpless reinit)", got)
	}
}
