// Package halcontract defines the hardware-abstraction contracts used by
// the motion, stepper driver, and probe-client packages. It names the
// narrow slice of periph.io/x/conn/v3's interfaces each component depends
// on so that production code wires real Linux-SBC buses
// (periph.io/x/host/v3) while tests substitute fakes, without either side
// importing the other's hardware backend.
package halcontract

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DigitalPin is the subset of gpio.PinIO the firmware needs: reading level
// and blocking for an edge, matching the shape exercised by
// periph.io/x/conn/v3/gpio.PinIO.WaitForEdge.
type DigitalPin interface {
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
	Out(level gpio.Level) error
}

// I2CTransactor is the subset of periph.io/x/conn/v3/i2c.Dev's Tx method
// the EZO probe client needs: a single write-then-read exchange against a
// fixed bus address.
type I2CTransactor interface {
	Tx(w, r []byte) error
}

// SPITransactor is the subset of periph.io/x/conn/v3/spi.Conn's Tx method
// the stepper driver façade needs: a full-duplex register exchange.
type SPITransactor interface {
	Tx(w, r []byte) error
}

// MicrosecondTimer abstracts the one-shot hardware timer the motion
// controller reschedules on every step. Production code backs it with
// time.AfterFunc; tests back it with a fake that fires synchronously.
type MicrosecondTimer interface {
	// Start arms the timer to fire once after d, invoking fire from its own
	// goroutine. A prior pending fire is replaced.
	Start(d time.Duration, fire func())
	// Stop cancels a pending fire. Safe to call when nothing is pending.
	Stop()
}

// PWMOutput abstracts a single PWM channel's duty cycle, matching
// periph.io/x/conn/v3/physic.RelativeHumidity-style 0..1 duty fractions
// used elsewhere in the periph.io ecosystem for analog-ish outputs.
type PWMOutput interface {
	SetDutyCycle(fraction float64) error
}

// CurrentLimit is a typed current value, replacing bare milliamp integers
// with periph.io/x/conn/v3/physic's unit type.
type CurrentLimit = physic.ElectricCurrent

// PWMFrequency is a typed frequency value for stepper driver chopper
// configuration.
type PWMFrequency = physic.Frequency
