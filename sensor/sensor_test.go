package sensor

import (
	"testing"
	"time"

	"syringepump/ezo"
	"syringepump/pid"
)

// fakeBus implements halcontract.I2CTransactor with a canned reply.
type fakeBus struct {
	writeLog []string
	reply    []byte
}

func (f *fakeBus) Tx(w, r []byte) error {
	if len(w) > 0 {
		f.writeLog = append(f.writeLog, string(w))
	}
	if len(r) > 0 {
		copy(r, f.reply)
	}
	return nil
}

func okReply(payload string, bufLen int) []byte {
	b := make([]byte, bufLen)
	b[0] = 1 // statusOK
	copy(b[1:], payload)
	return b
}

type fakePWM struct{ duty float64 }

func (p *fakePWM) SetDutyCycle(fraction float64) error { p.duty = fraction; return nil }

func newTestController() (*Controller, *fakeBus, *fakePWM) {
	ph := &fakeBus{reply: okReply("7.00", 21)}
	orp := &fakeBus{reply: okReply("200.0", 21)}
	ec := &fakeBus{reply: okReply("1.50", 21)}
	temp := &fakeBus{reply: okReply("25.00", 21)}
	heater := &fakePWM{}

	params := pid.Params{Kp: 9, Ki: 0.006, Max: 100, Min: 0, Limit: 1, Step: 0.1, DT: 0.5, Method: pid.Clamping}
	c := New(Deps{
		PH: ph, ORP: orp, EC: ec, Temp: temp,
		HeaterPH: heater,
		PidParams: [zoneCount]pid.Params{params, params, params},
		UnitID:    "test-sensor",
	})
	return c, temp, heater
}

func TestGetSensorDataBlocksWhileReadingPending(t *testing.T) {
	c, _, _ := newTestController()
	c.SendReadCmd()

	if _, err := c.GetSensorData(); err != ErrReadingPending {
		t.Fatalf("GetSensorData() error = %v, want ErrReadingPending", err)
	}
}

func TestGetSensorDataRefreshesAfterDeadline(t *testing.T) {
	c, _, _ := newTestController()
	c.SendReadCmd()

	c.mu.Lock()
	c.readingPending = false
	c.commandedReadDone = true
	c.mu.Unlock()

	data, err := c.GetSensorData()
	if err != nil {
		t.Fatalf("GetSensorData: %v", err)
	}
	if data.PH != 7.00 {
		t.Errorf("PH = %v, want 7.00", data.PH)
	}
	if data.Temp != 25.00 {
		t.Errorf("Temp = %v, want 25.00", data.Temp)
	}
}

func TestGetSensorDataRunsHeaterPID(t *testing.T) {
	c, _, heater := newTestController()
	c.SetPidSetpoint(ZonePH, 30)
	c.commandedReadDone = true

	// The first call only initializes each loop's setpoint to the measured 25.
	if _, err := c.GetSensorData(); err != nil {
		t.Fatalf("GetSensorData: %v", err)
	}
	if _, err := c.GetSensorData(); err != nil {
		t.Fatalf("GetSensorData: %v", err)
	}
	if heater.duty <= 0 {
		t.Errorf("heater duty = %v, want > 0 (measured 25 below setpoint ramp toward 30)", heater.duty)
	}
}

func TestSendReadCmdArmsDeadline(t *testing.T) {
	c, tempBus, _ := newTestController()
	c.SendReadCmd()

	c.mu.Lock()
	pending := c.readingPending
	c.mu.Unlock()
	if !pending {
		t.Errorf("readingPending = false immediately after SendReadCmd, want true")
	}
	if tempBus.writeLog[0] != "R" {
		t.Errorf("wrote %q to temp probe, want %q", tempBus.writeLog[0], "R")
	}

	time.Sleep(1100 * time.Millisecond)
	c.mu.Lock()
	pending = c.readingPending
	c.mu.Unlock()
	if pending {
		t.Errorf("readingPending still true after 1.1s, want the deadline to have cleared it")
	}
}

func TestSetPidParamsRejectsOutOfRangeZone(t *testing.T) {
	c, _, _ := newTestController()
	if ok := c.SetPidParams(Zone(99), pid.Params{}); ok {
		t.Errorf("SetPidParams(99, ...) = true, want false for an out-of-range zone")
	}
}

func TestProbeOpsRejectOutOfRangeChannel(t *testing.T) {
	c, _, _ := newTestController()
	if err := c.CalibrateLow(Channel(99), 7.0); err != ErrNoSuchChannel {
		t.Errorf("CalibrateLow(99, ...) error = %v, want ErrNoSuchChannel", err)
	}
}

func TestCalibrateLowSendsCalCommand(t *testing.T) {
	c, _, _ := newTestController()
	// Re-point the pH probe's bus at one that accepts the 2-byte cal reply.
	bus := &fakeBus{reply: []byte{1, 0}}
	c.probes[ChannelPH] = ezo.New(bus)

	if err := c.CalibrateLow(ChannelPH, 4.0); err != nil {
		t.Fatalf("CalibrateLow: %v", err)
	}
	if bus.writeLog[0] != "Cal,low,4.00" {
		t.Errorf("wrote %q, want %q", bus.writeLog[0], "Cal,low,4.00")
	}
}

func TestGetSystemInfoReportsUnitID(t *testing.T) {
	c, _, _ := newTestController()
	info := c.GetSystemInfo()
	if info.UnitID != "test-sensor" {
		t.Errorf("UnitID = %q, want %q", info.UnitID, "test-sensor")
	}
	if info.FirmwareVersion != FirmwareVersion {
		t.Errorf("FirmwareVersion = %q, want %q", info.FirmwareVersion, FirmwareVersion)
	}
}
