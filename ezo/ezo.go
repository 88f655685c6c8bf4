// Package ezo implements a client for Atlas Scientific EZO-class I2C probes
// (pH, ORP, electrical conductivity, RTD temperature), reproducing the
// command/delay/status-byte protocol from the original firmware's EZO
// driver.
package ezo

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"syringepump/halcontract"
)

// Response status byte values, per the EZO datasheet.
const (
	statusOK      = 1
	statusPending = 254
	statusNoData  = 255
	// anything else is a failure
)

// Command processing delays, from the EZO datasheet and the original
// firmware's Tcompensation/read/calibration call sites.
const (
	delayDefault     = 300 * time.Millisecond
	delayRead        = 800 * time.Millisecond
	delayCalibration = 1600 * time.Millisecond
)

var (
	// ErrPending is returned when the probe reports it is still processing
	// the previous command.
	ErrPending = errors.New("ezo: command still processing")
	// ErrNoData is returned when the probe has no data to report.
	ErrNoData = errors.New("ezo: no data to report")
	// ErrFailed is returned for any other non-success status byte.
	ErrFailed = errors.New("ezo: command failed")
)

// Client talks to a single EZO probe over I2C.
type Client struct {
	bus halcontract.I2CTransactor
}

// New returns a Client bound to bus, the probe's I2C device.
func New(bus halcontract.I2CTransactor) *Client {
	return &Client{bus: bus}
}

// command writes cmd as ASCII, waits delay for the probe to process it,
// then reads up to replyLen bytes and decodes the leading status byte.
func (c *Client) command(cmd string, delay time.Duration, replyLen int) (string, error) {
	if err := c.bus.Tx([]byte(cmd), nil); err != nil {
		return "", errors.Wrapf(err, "ezo: write %q", cmd)
	}
	time.Sleep(delay)

	resp := make([]byte, replyLen)
	if err := c.bus.Tx(nil, resp); err != nil {
		return "", errors.Wrapf(err, "ezo: read reply to %q", cmd)
	}

	switch resp[0] {
	case statusOK:
		return nullTerminatedASCII(resp[1:]), nil
	case statusPending:
		return "", ErrPending
	case statusNoData:
		return "", ErrNoData
	default:
		return "", ErrFailed
	}
}

func nullTerminatedASCII(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// Read issues a single reading command and parses the returned value.
func (c *Client) Read() (float64, error) {
	payload, err := c.command("R", delayRead, 21)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return 0, errors.Wrap(err, "ezo: parse reading")
	}
	return v, nil
}

// SendReadCmd issues the asynchronous-read variant: it writes the read
// command without waiting for or parsing a reply. A later call to
// ReceiveReading retrieves the result once the probe's conversion time has
// elapsed.
func (c *Client) SendReadCmd() error {
	if err := c.bus.Tx([]byte("R"), nil); err != nil {
		return errors.Wrap(err, "ezo: send async read command")
	}
	return nil
}

// ReceiveReading reads and parses the result of a prior SendReadCmd, with
// no additional write or delay.
func (c *Client) ReceiveReading() (float64, error) {
	resp := make([]byte, 21)
	if err := c.bus.Tx(nil, resp); err != nil {
		return 0, errors.Wrap(err, "ezo: receive reading")
	}
	switch resp[0] {
	case statusOK:
		v, err := strconv.ParseFloat(nullTerminatedASCII(resp[1:]), 64)
		if err != nil {
			return 0, errors.Wrap(err, "ezo: parse async reading")
		}
		return v, nil
	case statusPending:
		return 0, ErrPending
	case statusNoData:
		return 0, ErrNoData
	default:
		return 0, ErrFailed
	}
}

// Info returns the probe's device-info string (type and firmware version).
func (c *Client) Info() (string, error) { return c.command("I", delayDefault, 21) }

// Status returns the probe's last-restart-reason/voltage status string.
func (c *Client) Status() (string, error) { return c.command("Status", delayDefault, 21) }

// Slope returns the probe's calibration slope string.
func (c *Client) Slope() (string, error) { return c.command("Slope,?", delayDefault, 21) }

// FactoryReset restores factory calibration.
func (c *Client) FactoryReset() error {
	_, err := c.command("Factory", delayDefault, 2)
	return err
}

// Sleep puts the probe into low-power mode until it next receives a
// command.
func (c *Client) Sleep() error {
	if err := c.bus.Tx([]byte("Sleep"), nil); err != nil {
		return errors.Wrap(err, "ezo: sleep")
	}
	time.Sleep(delayDefault)
	return nil
}

// CalibrationClear clears all calibration points.
func (c *Client) CalibrationClear() error {
	_, err := c.command("Cal,clear", delayDefault, 2)
	return err
}

// CalibrateLow calibrates the low point against ref.
func (c *Client) CalibrateLow(ref float64) error {
	_, err := c.command("Cal,low,"+formatRef(ref), delayCalibration, 2)
	return err
}

// CalibrateMid calibrates the mid point against ref.
func (c *Client) CalibrateMid(ref float64) error {
	_, err := c.command("Cal,mid,"+formatRef(ref), delayCalibration, 2)
	return err
}

// CalibrateHigh calibrates the high point against ref.
func (c *Client) CalibrateHigh(ref float64) error {
	_, err := c.command("Cal,high,"+formatRef(ref), delayCalibration, 2)
	return err
}

func formatRef(ref float64) string {
	return strconv.FormatFloat(ref, 'f', 2, 64)
}

// SetLED turns the probe's indicator LED on or off.
func (c *Client) SetLED(on bool) error {
	_, err := c.command("L,"+boolDigit(on), delayDefault, 2)
	return err
}

// QueryLED returns the raw queried byte from a well-formed success
// response describing the LED state.
//
// The original firmware's QsensorLED has an unreachable return path for
// non-success statuses; this client instead returns the wrapped status
// error (ErrPending/ErrNoData/ErrFailed) for those cases, and the raw
// response byte only for a success response.
func (c *Client) QueryLED() (byte, error) {
	payload, err := c.queryRaw("L,?")
	if err != nil {
		return 0, err
	}
	return lastByteOrZero(payload), nil
}

// SetProtocolLock enables or disables I2C protocol lock (prevents
// switching to UART).
func (c *Client) SetProtocolLock(on bool) error {
	_, err := c.command("PLOCK,"+boolDigit(on), delayDefault, 2)
	return err
}

// QueryProtocolLock returns the raw queried byte from a well-formed
// success response describing the protocol-lock state, resolving the same
// way as QueryLED.
func (c *Client) QueryProtocolLock() (byte, error) {
	payload, err := c.queryRaw("PLOCK,?")
	if err != nil {
		return 0, err
	}
	return lastByteOrZero(payload), nil
}

// queryRaw issues cmd and returns the raw ASCII payload of a success
// response (status byte stripped, NUL-trimmed).
func (c *Client) queryRaw(cmd string) (string, error) {
	return c.command(cmd, delayDefault, 21)
}

func lastByteOrZero(s string) byte {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// SetTemperatureCompensation writes the probe's temperature compensation
// value in degrees Celsius.
func (c *Client) SetTemperatureCompensation(celsius float64) error {
	_, err := c.command("T,"+strconv.FormatFloat(celsius, 'f', 2, 64), delayDefault, 2)
	return err
}

// QueryTemperatureCompensation reads back the probe's configured
// temperature compensation value.
//
// The original firmware's QTcompensation left the middle byte of its
// three-byte "T,?" command buffer uninitialized; this always sends the
// full, explicit three-character command.
func (c *Client) QueryTemperatureCompensation() (float64, error) {
	payload, err := c.command("T,?", delayDefault, 10)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(stripCommaPrefix(payload), 64)
	if err != nil {
		return 0, errors.Wrap(err, "ezo: parse temperature compensation")
	}
	return v, nil
}

func stripCommaPrefix(s string) string {
	if i := strings.LastIndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}

// SetAddress changes the probe's I2C address. The probe does not reply to
// this command, so the caller must reopen its bus transactor at the new
// address before issuing any further command.
func (c *Client) SetAddress(addr int) error {
	if err := c.bus.Tx([]byte("I2C,"+strconv.Itoa(addr)), nil); err != nil {
		return errors.Wrap(err, "ezo: set address")
	}
	time.Sleep(delayDefault)
	return nil
}

// SetUARTBaud switches the probe to UART mode at the given baud rate.
//
// The original firmware's changeUART built the "SERIAL,<baud>" command by
// manually packing decimal digits into a fixed buffer, with an
// off-by-one that read past the intended digit positions for some baud
// rates. This emits the same command using ordinary base-10 formatting.
func (c *Client) SetUARTBaud(baud int) error {
	_, err := c.command("SERIAL,"+strconv.Itoa(baud), delayDefault, 2)
	return err
}
