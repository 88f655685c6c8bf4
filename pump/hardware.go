// Package pump implements the syringe pump controller: hardware/flow
// configuration, the motion-profile-driven start/stop orchestration, limit
// switch and stepper-driver fault handling, and the pump board's FID
// table.
package pump

import (
	"math"

	"github.com/pkg/errors"

	"syringepump/stepperdrv"
)

// HardwareConfig holds the lead-screw, stepper driver and motion
// parameters. A Controller starts from DefaultHardwareConfig, so a flow can
// be configured without setting it first.
type HardwareConfig struct {
	PWMFrequency         stepperdrv.PWMFrequency
	PWMSlope             stepperdrv.PWMSlope
	PWMJitter            bool
	LeadScrewPitchMM     float32
	MaxDriverCurrentMA   int
	StepMode             uint8
	StepsPerRev          int
	Direction            stepperdrv.Direction
	MaxPullPushAccel     float32 // rev/s^2
	MaxPullPushVelocity  float32 // rev/s
	PumpAccel            float32 // rev/s^2
	PumpDecel            float32 // rev/s^2
}

// DefaultHardwareConfig returns the original firmware's initHardware
// defaults.
func DefaultHardwareConfig() HardwareConfig {
	return HardwareConfig{
		PWMFrequency:        stepperdrv.PWMFreq22_8kHz,
		PWMSlope:            0,
		PWMJitter:           false,
		LeadScrewPitchMM:    1.5,
		MaxDriverCurrentMA:  850,
		StepMode:            32,
		StepsPerRev:         400,
		Direction:           stepperdrv.Pull,
		MaxPullPushAccel:    4.0,
		MaxPullPushVelocity: 4.0,
		PumpAccel:           0.1,
		PumpDecel:           0.1,
	}
}

// Validate checks cfg's fields against the ranges enforced by the original
// firmware's setHardwareConfig.
func (cfg HardwareConfig) Validate() error {
	switch {
	case cfg.MaxDriverCurrentMA < 132 || cfg.MaxDriverCurrentMA > 3000:
		return errors.New("pump: current limit out of range [132, 3000]mA")
	case cfg.LeadScrewPitchMM <= 0 || cfg.LeadScrewPitchMM >= 10:
		return errors.New("pump: lead screw pitch out of range (0, 10)mm")
	case cfg.StepsPerRev <= 0 || cfg.StepsPerRev > 1000:
		return errors.New("pump: steps per revolution out of range (0, 1000]")
	case cfg.PWMSlope > 3:
		return errors.New("pump: PWM slope out of range [0, 3]")
	case cfg.MaxPullPushAccel <= 0 || cfg.MaxPullPushAccel > 10:
		return errors.New("pump: max pull/push acceleration out of range (0, 10]")
	case cfg.MaxPullPushVelocity <= 0 || cfg.MaxPullPushVelocity > 10:
		return errors.New("pump: max pull/push velocity out of range (0, 10]")
	case cfg.PumpAccel <= 0 || cfg.PumpAccel > 10:
		return errors.New("pump: pump acceleration out of range (0, 10]")
	case cfg.PumpDecel <= 0 || cfg.PumpDecel > 10:
		return errors.New("pump: pump deceleration out of range (0, 10]")
	case !validStepMode(cfg.StepMode):
		return errors.New("pump: step mode must be a power of two in [1, 128]")
	}
	return nil
}

func validStepMode(m uint8) bool {
	switch m {
	case 1, 2, 4, 8, 16, 32, 64, 128:
		return true
	}
	return false
}

// FlowConfig holds the desired move parameters for the next StartPump.
type FlowConfig struct {
	FlowRateMLPerMin float32
	VolumeML         float32
	DiameterMM       float32
	Direction        stepperdrv.Direction
}

// Validate checks cfg's fields against the ranges enforced by the original
// firmware's setFlowConfig.
func (cfg FlowConfig) Validate() error {
	switch {
	case cfg.FlowRateMLPerMin <= 0 || cfg.FlowRateMLPerMin > 100:
		return errors.New("pump: flow rate out of range (0, 100]mL/min")
	case cfg.VolumeML <= 0 || cfg.VolumeML > 200:
		return errors.New("pump: volume out of range (0, 200]mL")
	case cfg.DiameterMM <= 0 || cfg.DiameterMM > 100:
		return errors.New("pump: syringe diameter out of range (0, 100]mm")
	}
	return nil
}

// stepsPerML derives the stepper's steps-per-milliliter conversion factor
// from the hardware and flow configuration, matching the original
// firmware's startPump computation exactly.
func stepsPerML(hw HardwareConfig, diameterMM float32) float32 {
	radius := diameterMM / 2
	syringeAreaMM2 := float32(math.Pi) * radius * radius
	stepsPerRev := float32(hw.StepMode) * float32(hw.StepsPerRev)
	return (1000 / syringeAreaMM2) * stepsPerRev / hw.LeadScrewPitchMM
}
