// Package stepperdrv implements an AMIS30543-style SPI stepper driver
// façade: register writes for PWM chopper configuration, direction,
// microstep mode and current limit, plus decoded fault-status reads.
package stepperdrv

import (
	"github.com/pkg/errors"

	"periph.io/x/conn/v3/physic"

	"syringepump/halcontract"
)

// Microstep modes, as microsteps per full step; encodeStepMode maps each to
// the driver's register encoding.
const (
	Step_1   uint8 = 1
	Step_2   uint8 = 2
	Step_4   uint8 = 4
	Step_8   uint8 = 8
	Step_16  uint8 = 16
	Step_32  uint8 = 32
	Step_64  uint8 = 64
	Step_128 uint8 = 128
)

// PWM chopper frequency selector (CR2.PWMFREQ).
type PWMFrequency uint8

const (
	PWMFreq22_8kHz PWMFrequency = iota // default chopper frequency
	PWMFreq45_6kHz                     // doubled chopper frequency
)

// PWM chopper slope selector (CR2.SLAG/SLAT), 0..3.
type PWMSlope uint8

// Direction of rotation.
type Direction uint8

const (
	Pull Direction = iota
	Push
)

// Registers, named after the AMIS30543 datasheet.
const (
	regWR  = 0x00 // CR0: direction, step mode
	regCR1 = 0x01 // current limit
	regCR2 = 0x02 // PWM frequency/slope/jitter
	regCR3 = 0x03
	regSR0 = 0x04 // non-latched fault status
	regSR1 = 0x05 // latched fault status, clear on read
	regSR2 = 0x06 // latched fault status, clear on read
)

// FaultStatus decodes the named fault bits from SR0 (non-latched) and
// SR1/SR2 (latched, cleared by the read that reported them), matching the
// original firmware's getStepDrvErrorId bit names.
type FaultStatus struct {
	OpenY, OpenX, WatchdogReset, ChargePumpFail, ThermalWarning bool // SR0

	OverCurrentXNegBottom, OverCurrentXNegTop bool // SR1/SR2
	OverCurrentXPosBottom, OverCurrentXPosTop bool
	ThermalShutdown                           bool
	OverCurrentYNegBottom, OverCurrentYNegTop bool
	OverCurrentYPosBottom, OverCurrentYPosTop bool
}

// Any reports whether any fault bit is set.
func (f FaultStatus) Any() bool {
	return f.OpenY || f.OpenX || f.WatchdogReset || f.ChargePumpFail || f.ThermalWarning ||
		f.OverCurrentXNegBottom || f.OverCurrentXNegTop || f.OverCurrentXPosBottom || f.OverCurrentXPosTop ||
		f.ThermalShutdown ||
		f.OverCurrentYNegBottom || f.OverCurrentYNegTop || f.OverCurrentYPosBottom || f.OverCurrentYPosTop
}

// Config is the set of driver parameters applied by Driver.Configure,
// corresponding to the original firmware's applyHardwareConfig.
type Config struct {
	Frequency        PWMFrequency
	Slope            PWMSlope // 0..3
	Jitter           bool
	Direction        Direction
	StepMode         uint8 // one of the Step_* constants
	CurrentLimit     halcontract.CurrentLimit
}

// Driver is a façade over an AMIS30543-compatible SPI stepper driver.
type Driver struct {
	spi halcontract.SPITransactor
}

// New returns a Driver using spi for register access.
func New(spi halcontract.SPITransactor) *Driver {
	return &Driver{spi: spi}
}

func (d *Driver) writeRegister(addr, value uint8) error {
	w := []byte{0x80 | addr, value}
	r := make([]byte, 2)
	if err := d.spi.Tx(w, r); err != nil {
		return errors.Wrapf(err, "stepperdrv: write register 0x%02x", addr)
	}
	return nil
}

func (d *Driver) readRegister(addr uint8) (uint8, error) {
	w := []byte{addr, 0}
	r := make([]byte, 2)
	if err := d.spi.Tx(w, r); err != nil {
		return 0, errors.Wrapf(err, "stepperdrv: read register 0x%02x", addr)
	}
	return r[1], nil
}

// Configure writes PWM frequency/slope/jitter, direction, microstep mode
// and current limit to the driver's configuration registers.
func (d *Driver) Configure(cfg Config) error {
	cr2 := uint8(cfg.Frequency) << 5
	cr2 |= uint8(cfg.Slope&0x3) << 3
	if cfg.Jitter {
		cr2 |= 0x01
	}
	if err := d.writeRegister(regCR2, cr2); err != nil {
		return err
	}

	wr := encodeStepMode(cfg.StepMode)
	if cfg.Direction == Push {
		wr |= 0x80
	}
	if err := d.writeRegister(regWR, wr); err != nil {
		return err
	}

	return d.writeCurrentLimit(cfg.CurrentLimit)
}

func (d *Driver) writeCurrentLimit(limit halcontract.CurrentLimit) error {
	milliamps := int64(limit) / int64(physic.MilliAmpere)
	if milliamps < 132 {
		milliamps = 132
	}
	if milliamps > 3000 {
		milliamps = 3000
	}
	// Current setting is a 5-bit linear code over the 132..3000mA range,
	// per the datasheet's CR1.CUR table.
	code := uint8((milliamps - 132) * 31 / (3000 - 132))
	return d.writeRegister(regCR1, code)
}

func encodeStepMode(mode uint8) uint8 {
	switch mode {
	case Step_1:
		return 0x00
	case Step_2:
		return 0x01
	case Step_4:
		return 0x03
	case Step_8:
		return 0x05
	case Step_16:
		return 0x07
	case Step_32:
		return 0x08
	case Step_64:
		return 0x09
	case Step_128:
		return 0x0A
	default:
		return 0x07 // Step_16
	}
}

// ReadFaultStatus reads SR0 (non-latched) and SR1/SR2 (latched, cleared by
// this call) and decodes the named fault bits.
func (d *Driver) ReadFaultStatus() (FaultStatus, error) {
	sr0, err := d.readRegister(regSR0)
	if err != nil {
		return FaultStatus{}, err
	}
	sr1, err := d.readRegister(regSR1)
	if err != nil {
		return FaultStatus{}, err
	}
	sr2, err := d.readRegister(regSR2)
	if err != nil {
		return FaultStatus{}, err
	}

	return FaultStatus{
		OpenY:          sr0&0x01 != 0,
		OpenX:          sr0&0x02 != 0,
		WatchdogReset:  sr0&0x04 != 0,
		ChargePumpFail: sr0&0x08 != 0,
		ThermalWarning: sr0&0x10 != 0,

		OverCurrentXNegBottom: sr1&0x01 != 0,
		OverCurrentXNegTop:    sr1&0x02 != 0,
		OverCurrentXPosBottom: sr1&0x04 != 0,
		OverCurrentXPosTop:    sr1&0x08 != 0,
		ThermalShutdown:       sr1&0x10 != 0,

		OverCurrentYNegBottom: sr2&0x01 != 0,
		OverCurrentYNegTop:    sr2&0x02 != 0,
		OverCurrentYPosBottom: sr2&0x04 != 0,
		OverCurrentYPosTop:    sr2&0x08 != 0,
	}, nil
}
