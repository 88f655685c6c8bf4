package pump

import (
	"bytes"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"

	"syringepump/protocol"
)

type fakePin struct {
	level gpio.Level
}

func (p *fakePin) Read() gpio.Level              { return p.level }
func (p *fakePin) WaitForEdge(time.Duration) bool { return false }
func (p *fakePin) Out(level gpio.Level) error    { p.level = level; return nil }

type fakeSPI struct{}

func (fakeSPI) Tx(w, r []byte) error {
	if len(r) >= 2 {
		r[1] = 0
	}
	return nil
}

type syncTimer struct{ stopped bool }

func (t *syncTimer) Start(d time.Duration, fire func()) {
	if t.stopped {
		return
	}
	fire()
}
func (t *syncTimer) Stop() { t.stopped = true }

type fakeLEDs struct{ green, red bool }

func (l *fakeLEDs) SetGreen(on bool) { l.green = on }
func (l *fakeLEDs) SetRed(on bool)   { l.red = on }

func newTestController() (*Controller, *fakePin, *fakePin) {
	minLimit := &fakePin{level: gpio.Low}
	maxLimit := &fakePin{level: gpio.Low}
	c := New(Deps{
		Timer:       &syncTimer{},
		StepFn:      func() {},
		SPI:         fakeSPI{},
		MinLimit:    minLimit,
		MaxLimit:    maxLimit,
		DriverFault: &fakePin{level: gpio.Low},
		EnablePin:   &fakePin{},
		ResetPin:    &fakePin{},
		LEDs:        &fakeLEDs{},
		UnitID:      "test-pump",
	})
	return c, minLimit, maxLimit
}

func TestStartPumpRequiresFlowConfig(t *testing.T) {
	c, _, _ := newTestController()
	if err := c.StartPump(); err != ErrFlowNotConfigured {
		t.Fatalf("StartPump() error = %v, want ErrFlowNotConfigured", err)
	}
}

func TestStartPumpRejectsWhenLimitSwitchAsserted(t *testing.T) {
	c, minLimit, _ := newTestController()
	if err := c.SetFlowConfig(FlowConfig{FlowRateMLPerMin: 1, VolumeML: 1, DiameterMM: 10}); err != nil {
		t.Fatalf("SetFlowConfig: %v", err)
	}
	minLimit.level = gpio.High // Pull is the default direction

	if err := c.StartPump(); err != ErrLimitSwitchActive {
		t.Fatalf("StartPump() error = %v, want ErrLimitSwitchActive", err)
	}
}

func TestStartStopPumpRunsToCompletion(t *testing.T) {
	c, _, _ := newTestController()
	if err := c.SetFlowConfig(FlowConfig{FlowRateMLPerMin: 10, VolumeML: 1, DiameterMM: 10}); err != nil {
		t.Fatalf("SetFlowConfig: %v", err)
	}
	if err := c.StartPump(); err != nil {
		t.Fatalf("StartPump: %v", err)
	}
	// The fake timer fires synchronously, so StartPump has already run the
	// move to completion and disabled the pump by the time it returns.
	if got := c.getState(); got != StateConnected {
		t.Errorf("state after completed move = %v, want StateConnected", got)
	}
}

func TestOnLimitSwitchLatchesErrorAndStops(t *testing.T) {
	c, _, _ := newTestController()
	c.mu.Lock()
	c.state = StatePumpRunning
	c.mu.Unlock()
	c.onLimitSwitch(ErrMinLimit)

	if errs := c.getErrors(); errs&ErrMinLimit == 0 {
		t.Errorf("getErrors() = %v, want ErrMinLimit set", errs)
	}
	if got := c.getState(); got != StateConnected {
		t.Errorf("state after limit switch trip = %v, want StateConnected", got)
	}
}

func TestResetPumpClearsLatchedErrors(t *testing.T) {
	c, _, _ := newTestController()
	c.setPumpError(ErrDriverFault)

	if err := c.ResetPump(); err != nil {
		t.Fatalf("ResetPump: %v", err)
	}
	if errs := c.getErrors(); errs != 0 {
		t.Errorf("getErrors() after ResetPump = %v, want 0", errs)
	}
}

func TestResetPumpRelatchesStillAssertedLimit(t *testing.T) {
	c, minLimit, _ := newTestController()
	minLimit.level = gpio.High

	if err := c.ResetPump(); err != nil {
		t.Fatalf("ResetPump: %v", err)
	}
	if errs := c.getErrors(); errs&ErrMinLimit == 0 {
		t.Errorf("getErrors() = %v, want ErrMinLimit re-latched", errs)
	}
}

func TestAdmissionRejectsNonStatusFIDsWhileRunning(t *testing.T) {
	c, _, _ := newTestController()
	c.mu.Lock()
	c.state = StatePumpRunning
	c.mu.Unlock()

	if admit, code := c.Admission(protocol.FIDStartPump); admit || code != protocol.MsgErrorPumpRunning {
		t.Errorf("Admission(FIDStartPump) = (%v, %v), want (false, MsgErrorPumpRunning)", admit, code)
	}
	if admit, _ := c.Admission(protocol.FIDStopPump); !admit {
		t.Errorf("Admission(FIDStopPump) = false while running, want true")
	}
	if admit, _ := c.Admission(protocol.FIDGetStatus); !admit {
		t.Errorf("Admission(FIDGetStatus) = false while running, want true")
	}
}

func TestAdmissionAllowsEverythingWhenIdle(t *testing.T) {
	c, _, _ := newTestController()
	if admit, _ := c.Admission(protocol.FIDSetHardwareConfig); !admit {
		t.Errorf("Admission(FIDSetHardwareConfig) = false while idle, want true")
	}
}

func TestHandlerTableGetStatusRoundTrip(t *testing.T) {
	c, _, _ := newTestController()
	table := c.Table("10.0.0.5", "aa:bb:cc:dd:ee:ff")

	var buf bytes.Buffer
	if err := table[protocol.FIDGetStatus](&buf, protocol.Header{FID: protocol.FIDGetStatus}, nil); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	h, err := protocol.DecodeHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Error != protocol.MsgOK {
		t.Errorf("header error = %v, want MsgOK", h.Error)
	}
	r := protocol.NewReader(buf.Bytes()[protocol.HeaderLength:])
	if state := r.GetUint8(); State(state) != StateSysInit {
		t.Errorf("reported state = %v, want StateSysInit (fresh controller)", state)
	}
}

func TestHandlerTableGetSysInfoReportsFirmwareVersion(t *testing.T) {
	c, _, _ := newTestController()
	table := c.Table("10.0.0.5", "aa:bb:cc:dd:ee:ff")

	var buf bytes.Buffer
	if err := table[protocol.FIDGetSysInfo](&buf, protocol.Header{FID: protocol.FIDGetSysInfo}, nil); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	r := protocol.NewReader(buf.Bytes()[protocol.HeaderLength:])
	if got := r.GetFixedString(16); got != FirmwareVersion {
		t.Errorf("firmware version = %q, want %q", got, FirmwareVersion)
	}
	if got := r.GetFixedString(32); got != "test-pump" {
		t.Errorf("unit ID = %q, want %q", got, "test-pump")
	}
}

func TestHandlerTableSetGetHardwareConfigRoundTrip(t *testing.T) {
	c, _, _ := newTestController()
	table := c.Table("", "")

	req := protocol.NewWriter()
	cfg := DefaultHardwareConfig()
	cfg.MaxDriverCurrentMA = 900
	encodeHardwareConfig(req, cfg)
	body := req.Finish(protocol.FIDSetHardwareConfig, protocol.MsgOK)[protocol.HeaderLength:]

	var setReply bytes.Buffer
	if err := table[protocol.FIDSetHardwareConfig](&setReply, protocol.Header{FID: protocol.FIDSetHardwareConfig}, body); err != nil {
		t.Fatalf("FIDSetHardwareConfig handler error: %v", err)
	}
	if h, _ := protocol.DecodeHeader(setReply.Bytes()); h.Error != protocol.MsgOK {
		t.Fatalf("FIDSetHardwareConfig reply error = %v, want MsgOK", h.Error)
	}

	var getReply bytes.Buffer
	if err := table[protocol.FIDGetHardwareConfig](&getReply, protocol.Header{FID: protocol.FIDGetHardwareConfig}, nil); err != nil {
		t.Fatalf("FIDGetHardwareConfig handler error: %v", err)
	}
	r := protocol.NewReader(getReply.Bytes()[protocol.HeaderLength:])
	got := decodeHardwareConfig(r)
	if got.MaxDriverCurrentMA != 900 {
		t.Errorf("round-tripped MaxDriverCurrentMA = %d, want 900", got.MaxDriverCurrentMA)
	}
}

func TestHandlerTableRegistersEveryFID(t *testing.T) {
	c, _, _ := newTestController()
	table := c.Table("", "")
	if int(protocol.PumpFIDCount) != len(table) {
		t.Fatalf("table length = %d, want %d", len(table), protocol.PumpFIDCount)
	}
	for fid, h := range table {
		if h == nil {
			t.Errorf("FID %d has no handler registered", fid)
		}
	}
}
