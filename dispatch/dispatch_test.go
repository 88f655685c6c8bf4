package dispatch

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"syringepump/protocol"
)

func TestDispatchRoutesToHandler(t *testing.T) {
	var gotFID uint16
	table := make(Table, 2)
	table[1] = func(conn io.Writer, h protocol.Header, body []byte) error {
		gotFID = h.FID
		ReplyError(conn, h.FID, protocol.MsgOK)
		return nil
	}

	s := &Server{Table: table}
	var out bytes.Buffer
	s.dispatch(&out, protocol.Header{FID: 1}, nil)

	if gotFID != 1 {
		t.Errorf("handler saw FID %d, want 1", gotFID)
	}
	h, err := protocol.DecodeHeader(out.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Error != protocol.MsgOK {
		t.Errorf("reply error = %d, want MsgOK", h.Error)
	}
}

func TestDispatchUnknownFIDRepliesBadFID(t *testing.T) {
	s := &Server{Table: make(Table, 1)}
	var out bytes.Buffer
	s.dispatch(&out, protocol.Header{FID: 99}, nil)

	h, err := protocol.DecodeHeader(out.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Error != protocol.MsgErrorBadFID {
		t.Errorf("reply error = %d, want MsgErrorBadFID", h.Error)
	}
}

func TestDispatchAdmissionRejects(t *testing.T) {
	called := false
	table := make(Table, 2)
	table[1] = func(conn io.Writer, h protocol.Header, body []byte) error {
		called = true
		return nil
	}
	s := &Server{
		Table: table,
		Admission: func(fid uint16) (bool, int16) {
			return false, protocol.MsgErrorPumpRunning
		},
	}

	var out bytes.Buffer
	s.dispatch(&out, protocol.Header{FID: 1}, nil)

	if called {
		t.Errorf("handler was invoked despite admission rejecting the FID")
	}
	h, err := protocol.DecodeHeader(out.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Error != protocol.MsgErrorPumpRunning {
		t.Errorf("reply error = %d, want MsgErrorPumpRunning", h.Error)
	}
}

func TestHandleConnectionReadsBodyAndRunsLifecycleHooks(t *testing.T) {
	client, serverSide := net.Pipe()
	defer client.Close()

	table := make(Table, 1)
	var gotBody []byte
	table[0] = func(conn io.Writer, h protocol.Header, body []byte) error {
		gotBody = append([]byte(nil), body...)
		ReplyError(conn, h.FID, protocol.MsgOK)
		return nil
	}

	connected := false
	disconnected := false
	s := &Server{
		Table:        table,
		OnConnect:    func() { connected = true },
		OnDisconnect: func() { disconnected = true },
	}

	done := make(chan struct{})
	go func() {
		s.handleConnection(serverSide)
		close(done)
	}()

	body := []byte{1, 2, 3, 4}
	frame := make([]byte, protocol.HeaderLength+len(body))
	protocol.EncodeHeader(frame, protocol.Header{PacketLength: uint16(len(frame)), FID: 0})
	copy(frame[protocol.HeaderLength:], body)

	if _, err := client.Write(frame); err != nil {
		t.Fatalf("client write: %v", err)
	}

	reply := make([]byte, protocol.HeaderLength)
	if _, err := io.ReadFull(client, reply); err != nil {
		t.Fatalf("client read reply: %v", err)
	}
	h, err := protocol.DecodeHeader(reply)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Error != protocol.MsgOK {
		t.Errorf("reply error = %d, want MsgOK", h.Error)
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("handler body = %v, want %v", gotBody, body)
	}
	if !connected {
		t.Errorf("OnConnect was not called")
	}

	client.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleConnection did not return after client closed")
	}
	if !disconnected {
		t.Errorf("OnDisconnect was not called")
	}
}
