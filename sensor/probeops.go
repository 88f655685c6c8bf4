package sensor

import "github.com/pkg/errors"

// ErrNoSuchChannel is returned by every probe-maintenance operation when
// given an out-of-range channel selector.
var ErrNoSuchChannel = errors.New("sensor: no such probe channel")

// Info returns ch's device-info string.
func (c *Controller) Info(ch Channel) (string, error) {
	p := c.probe(ch)
	if p == nil {
		return "", ErrNoSuchChannel
	}
	return p.Info()
}

// Status returns ch's last-restart/voltage status string.
func (c *Controller) Status(ch Channel) (string, error) {
	p := c.probe(ch)
	if p == nil {
		return "", ErrNoSuchChannel
	}
	return p.Status()
}

// CalibrateLow calibrates ch's low point against ref.
func (c *Controller) CalibrateLow(ch Channel, ref float64) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.CalibrateLow(ref)
}

// CalibrateMid calibrates ch's mid point against ref.
func (c *Controller) CalibrateMid(ch Channel, ref float64) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.CalibrateMid(ref)
}

// CalibrateHigh calibrates ch's high point against ref.
func (c *Controller) CalibrateHigh(ch Channel, ref float64) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.CalibrateHigh(ref)
}

// CalibrationClear clears all of ch's calibration points.
func (c *Controller) CalibrationClear(ch Channel) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.CalibrationClear()
}

// FactoryResetEZO restores ch's factory calibration.
func (c *Controller) FactoryResetEZO(ch Channel) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.FactoryReset()
}

// SetAddress changes ch's I2C address. The caller is responsible for
// rebinding that channel's bus transactor at the new address afterward.
func (c *Controller) SetAddress(ch Channel, addr int) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.SetAddress(addr)
}

// SetLED turns ch's indicator LED on or off.
func (c *Controller) SetLED(ch Channel, on bool) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.SetLED(on)
}

// GetLED returns the raw queried byte describing ch's LED state.
func (c *Controller) GetLED(ch Channel) (byte, error) {
	p := c.probe(ch)
	if p == nil {
		return 0, ErrNoSuchChannel
	}
	return p.QueryLED()
}

// SetProtocolLock enables or disables ch's I2C protocol lock.
func (c *Controller) SetProtocolLock(ch Channel, on bool) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.SetProtocolLock(on)
}

// GetProtocolLock returns the raw queried byte describing ch's
// protocol-lock state.
func (c *Controller) GetProtocolLock(ch Channel) (byte, error) {
	p := c.probe(ch)
	if p == nil {
		return 0, ErrNoSuchChannel
	}
	return p.QueryProtocolLock()
}

// SetTempCompensation writes ch's temperature compensation value.
func (c *Controller) SetTempCompensation(ch Channel, celsius float64) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.SetTemperatureCompensation(celsius)
}

// GetTempCompensation reads back ch's configured temperature
// compensation value.
func (c *Controller) GetTempCompensation(ch Channel) (float64, error) {
	p := c.probe(ch)
	if p == nil {
		return 0, ErrNoSuchChannel
	}
	return p.QueryTemperatureCompensation()
}

// SetUARTBaud switches ch to UART mode at the given baud rate.
func (c *Controller) SetUARTBaud(ch Channel, baud int) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.SetUARTBaud(baud)
}

// Sleep puts ch into low-power mode.
func (c *Controller) Sleep(ch Channel) error {
	p := c.probe(ch)
	if p == nil {
		return ErrNoSuchChannel
	}
	return p.Sleep()
}
