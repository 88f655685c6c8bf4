package pump

import (
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"syringepump/halcontract"
	"syringepump/motion"
	"syringepump/stepperdrv"
)

// State names the pump board's lifecycle state, driving the status LED the
// same way the original firmware's setPumpState side effects did.
type State uint8

const (
	StateSysInit State = iota
	StateWaitForConnection
	StateConnected
	StatePumpRunning
)

// Error is a bitmask of latched pump faults.
type Error uint8

const (
	ErrMaxLimit Error = 1 << iota
	ErrMinLimit
	ErrDriverFault
	ErrStepperNotConfigured
)

// LEDs abstracts the two status indicators (green/red, or a bicolor pair)
// the original firmware drives directly; Controller owns only the on/off
// and blink-period decisions, not the GPIO.
type LEDs interface {
	SetGreen(on bool)
	SetRed(on bool)
}

// Controller owns all pump board state: hardware/flow configuration,
// latched errors, the motion profile, the stepper driver façade, and the
// limit-switch/driver-fault edge handlers.
type Controller struct {
	mu sync.Mutex

	state State
	errs  Error

	hw         HardwareConfig
	flow       FlowConfig
	flowIsSet  bool
	lastStepsPerML float32

	motion *motion.Controller
	driver *stepperdrv.Driver

	minLimit    halcontract.DigitalPin
	maxLimit    halcontract.DigitalPin
	driverFault halcontract.DigitalPin
	enablePin   halcontract.DigitalPin
	resetPin    halcontract.DigitalPin

	leds LEDs
	log  *log.Logger

	ledBlinkStop chan struct{}

	unitID string
}

// Deps bundles Controller's hardware collaborators, all of which are
// out-of-scope external interfaces per the hardware abstraction contract.
type Deps struct {
	Timer       halcontract.MicrosecondTimer
	StepFn      func() // pulses the physical step output once
	SPI         halcontract.SPITransactor
	MinLimit    halcontract.DigitalPin
	MaxLimit    halcontract.DigitalPin
	DriverFault halcontract.DigitalPin
	EnablePin   halcontract.DigitalPin
	ResetPin    halcontract.DigitalPin
	LEDs        LEDs
	Log         *log.Logger
	UnitID      string
}

// New returns a Controller with the original firmware's default hardware
// configuration and no flow configured.
func New(d Deps) *Controller {
	c := &Controller{
		hw:          DefaultHardwareConfig(),
		driver:      stepperdrv.New(d.SPI),
		minLimit:    d.MinLimit,
		maxLimit:    d.MaxLimit,
		driverFault: d.DriverFault,
		enablePin:   d.EnablePin,
		resetPin:    d.ResetPin,
		leds:        d.LEDs,
		log:         d.Log,
		unitID:      d.UnitID,
	}
	c.motion = motion.NewController(d.Timer, d.StepFn, c.onPumpingDone)
	return c
}

// Run launches the limit-switch and driver-fault edge-handler goroutines.
// It returns immediately; the goroutines run until stop is closed.
func (c *Controller) Run(stop <-chan struct{}) {
	go c.watchEdge(stop, c.minLimit, func() { c.onLimitSwitch(ErrMinLimit) })
	go c.watchEdge(stop, c.maxLimit, func() { c.onLimitSwitch(ErrMaxLimit) })
	go c.watchEdge(stop, c.driverFault, func() { c.onDriverFault() })
}

// watchEdge blocks on pin's edge, invoking onEdge each time one is
// observed, until stop is closed. This replaces the original firmware's
// GPIO interrupt vector with a dedicated goroutine per asynchronous
// source, per the concurrency model.
func (c *Controller) watchEdge(stop <-chan struct{}, pin halcontract.DigitalPin, onEdge func()) {
	if pin == nil {
		return
	}
	for {
		select {
		case <-stop:
			return
		default:
		}
		if pin.WaitForEdge(500 * time.Millisecond) {
			onEdge()
		}
	}
}

func (c *Controller) onLimitSwitch(which Error) {
	c.setPumpError(which)
	c.motion.Stop()
	c.disablePump()
}

func (c *Controller) onDriverFault() {
	c.setPumpError(ErrDriverFault)
	c.motion.Stop()
	c.disablePump()
}

// onPumpingDone is the motion controller's completion callback, invoked
// from the timer goroutine when a move finishes naturally.
func (c *Controller) onPumpingDone() {
	c.disablePump()
}

// setPumpState transitions state and applies the corresponding LED
// pattern. A single mutex replaces the original firmware's
// calledFromIRQ-guarded critical sections: every caller, whether the
// dispatch loop or an edge-handler goroutine, takes the same lock.
func (c *Controller) setPumpState(s State) {
	c.mu.Lock()
	c.state = s
	errs := c.errs
	c.mu.Unlock()

	if c.leds == nil {
		return
	}
	switch {
	case errs != 0:
		c.leds.SetGreen(false)
		c.blinkRed(250 * time.Millisecond)
	case s == StatePumpRunning:
		c.stopBlink()
		c.leds.SetGreen(false)
		c.leds.SetRed(true)
	case s == StateWaitForConnection:
		c.blinkGreen(500 * time.Millisecond)
	case s == StateConnected, s == StateSysInit:
		c.stopBlink()
		c.leds.SetGreen(true)
		c.leds.SetRed(false)
	}
}

func (c *Controller) blinkGreen(period time.Duration) { c.blink(period, true) }
func (c *Controller) blinkRed(period time.Duration)   { c.blink(period, false) }

func (c *Controller) blink(period time.Duration, green bool) {
	c.stopBlink()
	stop := make(chan struct{})
	c.mu.Lock()
	c.ledBlinkStop = stop
	c.mu.Unlock()

	go func() {
		on := false
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				on = !on
				if green {
					c.leds.SetGreen(on)
				} else {
					c.leds.SetRed(on)
				}
			}
		}
	}()
}

func (c *Controller) stopBlink() {
	c.mu.Lock()
	stop := c.ledBlinkStop
	c.ledBlinkStop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// setPumpError latches e and updates state-dependent LED indication.
func (c *Controller) setPumpError(e Error) {
	c.mu.Lock()
	c.errs |= e
	c.mu.Unlock()
	c.setPumpState(c.getState())
}

// unsetPumpError clears e.
func (c *Controller) unsetPumpError(e Error) {
	c.mu.Lock()
	c.errs &^= e
	c.mu.Unlock()
	c.setPumpState(c.getState())
}

func (c *Controller) getState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) getErrors() Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errs
}

// disablePump stops the motion controller, releases the driver enable
// output, and clears the flow-configured flag, matching the original
// firmware's disablePump.
func (c *Controller) disablePump() {
	c.motion.Stop()
	if c.enablePin != nil {
		_ = c.enablePin.Out(gpio.Low)
	}
	c.mu.Lock()
	c.flowIsSet = false
	if c.state == StatePumpRunning {
		c.state = StateConnected
	}
	c.mu.Unlock()
}
