package pump

import (
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"syringepump/halcontract"
	"syringepump/stepperdrv"
)

// SetHardwareConfig validates and applies cfg, reconfigures the stepper
// driver, and clears or sets ErrStepperNotConfigured depending on whether
// the driver accepted the configuration.
func (c *Controller) SetHardwareConfig(cfg HardwareConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	driverCfg := stepperdrv.Config{
		Frequency:    cfg.PWMFrequency,
		Slope:        cfg.PWMSlope,
		Jitter:       cfg.PWMJitter,
		Direction:    cfg.Direction,
		StepMode:     cfg.StepMode,
		CurrentLimit: milliampsToCurrent(cfg.MaxDriverCurrentMA),
	}
	if err := c.driver.Configure(driverCfg); err != nil {
		c.setPumpError(ErrStepperNotConfigured)
		return errors.Wrap(err, "pump: apply hardware configuration")
	}
	c.unsetPumpError(ErrStepperNotConfigured)

	c.mu.Lock()
	c.hw = cfg
	c.mu.Unlock()
	return nil
}

// GetHardwareConfig returns the current hardware configuration.
func (c *Controller) GetHardwareConfig() HardwareConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hw
}

// SetFlowConfig validates and stores cfg as the parameters for the next
// StartPump call.
func (c *Controller) SetFlowConfig(cfg FlowConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.flow = cfg
	c.flowIsSet = true
	c.mu.Unlock()
	return nil
}

// GetFlowConfig returns the currently configured flow parameters.
func (c *Controller) GetFlowConfig() FlowConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flow
}

// ErrFlowNotConfigured is returned by StartPump when SetFlowConfig has not
// been called since the last disable.
var ErrFlowNotConfigured = errors.New("pump: flow not configured")

// ErrLimitSwitchActive is returned by StartPump/MaxPull/MaxPush when the
// limit switch for the commanded direction is already asserted.
var ErrLimitSwitchActive = errors.New("pump: limit switch active for commanded direction")

// ErrDriverFaulted is returned when the stepper driver is reporting a
// latched fault.
var ErrDriverFaulted = errors.New("pump: stepper driver fault")

// StartPump computes the motion profile from the configured flow and
// hardware parameters, verifies the limit switch and driver-fault
// preconditions, and begins stepping.
func (c *Controller) StartPump() error {
	c.mu.Lock()
	if !c.flowIsSet {
		c.mu.Unlock()
		return ErrFlowNotConfigured
	}
	flow := c.flow
	hw := c.hw
	c.mu.Unlock()

	if c.getErrors()&ErrDriverFault != 0 {
		return ErrDriverFaulted
	}
	if limitAsserted(c.limitSwitchFor(flow.Direction)) {
		return ErrLimitSwitchActive
	}

	perML := stepsPerML(hw, flow.DiameterMM)
	steps := int32(flow.VolumeML * perML)
	stepsPerSec := (flow.FlowRateMLPerMin / 60) * perML
	stepsPerRev := float32(hw.StepMode) * float32(hw.StepsPerRev)
	accel := hw.PumpAccel * stepsPerRev
	decel := hw.PumpDecel * stepsPerRev

	if err := c.motion.CreateProfile(steps, stepsPerSec, accel, decel); err != nil {
		return errors.Wrap(err, "pump: motion profile exceeds controller resolution")
	}

	if c.enablePin != nil {
		_ = c.enablePin.Out(gpio.High)
	}
	c.mu.Lock()
	c.lastStepsPerML = perML
	c.state = StatePumpRunning
	c.mu.Unlock()
	c.setPumpState(StatePumpRunning)
	c.motion.Run()
	return nil
}

// StopPump halts the current move, releases the driver enable output and
// clears the flow configuration, so the next StartPump call needs a new
// SetFlowConfig first.
func (c *Controller) StopPump() {
	c.disablePump()
}

// DisableMotorHold releases the stepper driver's holding current without
// affecting the latched errors or flow configuration.
func (c *Controller) DisableMotorHold() {
	if c.enablePin != nil {
		_ = c.enablePin.Out(gpio.Low)
	}
}

// MaxPull runs the motor at the hardware-configured max pull/push velocity
// in the pull direction, open-ended, until the min limit switch trips.
func (c *Controller) MaxPull() error { return c.runToLimit(stepperdrv.Pull) }

// MaxPush is MaxPull's push-direction counterpart.
func (c *Controller) MaxPush() error { return c.runToLimit(stepperdrv.Push) }

func (c *Controller) runToLimit(dir stepperdrv.Direction) error {
	if limitAsserted(c.limitSwitchFor(dir)) {
		return ErrLimitSwitchActive
	}

	hw := c.GetHardwareConfig()
	hw.Direction = dir
	if err := c.SetHardwareConfig(hw); err != nil {
		return err
	}
	stepsPerRev := float32(hw.StepMode) * float32(hw.StepsPerRev)
	c.motion.CreateMaxSpeedProfile(hw.MaxPullPushVelocity*stepsPerRev, hw.MaxPullPushAccel*stepsPerRev, hw.MaxPullPushAccel*stepsPerRev)

	if c.enablePin != nil {
		_ = c.enablePin.Out(gpio.High)
	}
	c.setPumpState(StatePumpRunning)
	c.motion.Run()
	return nil
}

// limitSwitchFor returns the limit switch that must not be asserted before
// moving in dir: the min-limit switch for Pull, the max-limit switch for
// Push.
func (c *Controller) limitSwitchFor(dir stepperdrv.Direction) halcontract.DigitalPin {
	if dir == stepperdrv.Pull {
		return c.minLimit
	}
	return c.maxLimit
}

// limitAsserted reports whether pin reads asserted (logic high). A nil pin
// (not wired) is treated as not asserted.
func limitAsserted(pin halcontract.DigitalPin) bool {
	if pin == nil {
		return false
	}
	return pin.Read() == gpio.High
}

// ResetPump clears all latched errors, pulses the driver reset line, and
// re-applies the current hardware configuration, then re-evaluates the
// limit switches and driver-fault input so a still-asserted condition is
// re-latched.
func (c *Controller) ResetPump() error {
	c.mu.Lock()
	c.errs = 0
	c.mu.Unlock()

	if c.resetPin != nil {
		_ = c.resetPin.Out(gpio.Low)
		time.Sleep(10 * time.Millisecond)
		_ = c.resetPin.Out(gpio.High)
	}

	hw := c.GetHardwareConfig()
	if err := c.SetHardwareConfig(hw); err != nil {
		return err
	}

	if c.minLimit != nil && c.minLimit.Read() == gpio.High {
		c.setPumpError(ErrMinLimit)
	}
	if c.maxLimit != nil && c.maxLimit.Read() == gpio.High {
		c.setPumpError(ErrMaxLimit)
	}
	if c.driverFault != nil && c.driverFault.Read() == gpio.High {
		c.setPumpError(ErrDriverFault)
	}

	c.setPumpState(StateConnected)
	return nil
}

// StepDriverError reads and decodes the stepper driver's fault-status
// registers.
func (c *Controller) StepDriverError() (stepperdrv.FaultStatus, error) {
	return c.driver.ReadFaultStatus()
}

// Status reports the pump's instantaneous operating numbers.
type Status struct {
	State          State
	Errors         Error
	SuppliedVolume float32 // mL
	FlowRate       float32 // mL/min, 0 unless actively running
}

// GetStatus computes the supplied volume and instantaneous flow rate from
// the motion controller's step count and interval, matching the original
// firmware's getStatus.
func (c *Controller) GetStatus() Status {
	state := c.getState()
	perML := c.currentStepsPerML()

	var suppliedVolume, flowRate float32
	if perML > 0 {
		suppliedVolume = float32(c.motion.StepsPerformed()) / perML
	}
	if state == StatePumpRunning && perML > 0 {
		intervalMicros := c.motion.CurrentIntervalMicros()
		if intervalMicros > 0 {
			flowRate = (1000000 / float32(intervalMicros)) / perML * 60
		}
	}

	return Status{
		State:          state,
		Errors:         c.getErrors(),
		SuppliedVolume: suppliedVolume,
		FlowRate:       flowRate,
	}
}

func (c *Controller) currentStepsPerML() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStepsPerML
}

func milliampsToCurrent(ma int) halcontract.CurrentLimit {
	return physic.ElectricCurrent(ma) * physic.MilliAmpere
}
