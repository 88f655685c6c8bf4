package ezo

import (
	"testing"
)

// fakeBus implements halcontract.I2CTransactor. writeLog records every
// non-empty write; reply supplies the bytes returned by the next read.
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
	b[0] = statusOK
	copy(b[1:], payload)
	return b
}

func TestReadParsesValue(t *testing.T) {
	bus := &fakeBus{reply: okReply("7.02", 21)}
	c := New(bus)

	v, err := c.Read()
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if v != 7.02 {
		t.Errorf("Read() = %v, want 7.02", v)
	}
	if bus.writeLog[0] != "R" {
		t.Errorf("wrote command %q, want %q", bus.writeLog[0], "R")
	}
}

func TestReadPendingStatus(t *testing.T) {
	bus := &fakeBus{reply: []byte{statusPending}}
	c := New(bus)
	if _, err := c.Read(); err != ErrPending {
		t.Errorf("Read() error = %v, want ErrPending", err)
	}
}

func TestReadFailedStatus(t *testing.T) {
	bus := &fakeBus{reply: []byte{7}}
	c := New(bus)
	if _, err := c.Read(); err != ErrFailed {
		t.Errorf("Read() error = %v, want ErrFailed", err)
	}
}

func TestSetTemperatureCompensationSendsFullCommand(t *testing.T) {
	bus := &fakeBus{reply: []byte{statusOK, 0}}
	c := New(bus)
	if err := c.SetTemperatureCompensation(19.5); err != nil {
		t.Fatalf("SetTemperatureCompensation: %v", err)
	}
	if bus.writeLog[0] != "T,19.50" {
		t.Errorf("wrote %q, want %q", bus.writeLog[0], "T,19.50")
	}
}

func TestQueryTemperatureCompensationSendsWellFormedQuery(t *testing.T) {
	bus := &fakeBus{reply: okReply("?T,19.50", 10)}
	c := New(bus)

	v, err := c.QueryTemperatureCompensation()
	if err != nil {
		t.Fatalf("QueryTemperatureCompensation: %v", err)
	}
	if v != 19.50 {
		t.Errorf("QueryTemperatureCompensation() = %v, want 19.5", v)
	}
	if bus.writeLog[0] != "T,?" {
		t.Errorf("wrote %q, want the fully-initialized command %q", bus.writeLog[0], "T,?")
	}
}

func TestSetUARTBaudEmitsDecimalBaud(t *testing.T) {
	bus := &fakeBus{reply: []byte{statusOK, 0}}
	c := New(bus)
	if err := c.SetUARTBaud(9600); err != nil {
		t.Fatalf("SetUARTBaud: %v", err)
	}
	if bus.writeLog[0] != "SERIAL,9600" {
		t.Errorf("wrote %q, want %q", bus.writeLog[0], "SERIAL,9600")
	}
}

func TestQueryLEDReturnsRawByteOnSuccess(t *testing.T) {
	bus := &fakeBus{reply: okReply("?L,1", 21)}
	c := New(bus)
	b, err := c.QueryLED()
	if err != nil {
		t.Fatalf("QueryLED: %v", err)
	}
	if b != '1' {
		t.Errorf("QueryLED() = %q, want '1'", b)
	}
}

func TestQueryProtocolLockPropagatesFailureStatus(t *testing.T) {
	bus := &fakeBus{reply: []byte{255}}
	c := New(bus)
	if _, err := c.QueryProtocolLock(); err != ErrNoData {
		t.Errorf("QueryProtocolLock() error = %v, want ErrNoData", err)
	}
}
