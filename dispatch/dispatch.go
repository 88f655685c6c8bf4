// Package dispatch implements the generic length-prefixed frame server
// shared by the pump and sensor boards: it accepts one TCP client at a
// time, reads request frames, looks up a handler by FID, applies an
// admission policy, and writes the handler's reply.
package dispatch

import (
	"io"
	"log"
	"net"

	"syringepump/protocol"
)

// Handler processes one request frame and writes its reply (including the
// header) to the connection. body is the frame payload following the
// header, exactly packetLength-HeaderLength bytes.
type Handler func(conn io.Writer, header protocol.Header, body []byte) error

// AdmissionFunc decides whether a FID may run given the board's current
// state; it returns (true, 0) to admit, or (false, errCode) to reject with
// a header-only error reply.
type AdmissionFunc func(fid uint16) (admit bool, errCode int16)

// Table maps FIDs to handlers. Index i holds the handler for FID i; a nil
// entry or an out-of-range FID is rejected as MsgErrorBadFID, reproducing
// the original firmware's bounds-checked comMessages[] array.
type Table []Handler

// Server runs the accept-and-serve loop for one board.
type Server struct {
	Listener  net.Listener
	Table     Table
	Admission AdmissionFunc
	Log       *log.Logger

	// OnConnect/OnDisconnect fire when a client attaches/detaches,
	// mirroring the original firmware's per-connection lifecycle
	// (disablePump/initHardware on disconnect).
	OnConnect    func()
	OnDisconnect func()
}

// Serve accepts connections one at a time, for as long as the listener is
// open, matching the single-client Non-goal: a second Accept blocks until
// the first connection's handler loop returns.
func (s *Server) Serve() error {
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			return err
		}
		s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	if s.OnConnect != nil {
		s.OnConnect()
	}
	defer func() {
		if s.OnDisconnect != nil {
			s.OnDisconnect()
		}
	}()

	header := make([]byte, protocol.HeaderLength)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		h, err := protocol.DecodeHeader(header)
		if err != nil {
			return
		}

		var body []byte
		if h.PacketLength > protocol.HeaderLength {
			body = make([]byte, h.PacketLength-protocol.HeaderLength)
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
		}

		s.dispatch(conn, h, body)
	}
}

func (s *Server) dispatch(conn io.Writer, h protocol.Header, body []byte) {
	if int(h.FID) >= len(s.Table) || s.Table[h.FID] == nil {
		s.replyError(conn, h.FID, protocol.MsgErrorBadFID)
		return
	}

	if s.Admission != nil {
		if admit, errCode := s.Admission(h.FID); !admit {
			s.replyError(conn, h.FID, errCode)
			return
		}
	}

	if err := s.Table[h.FID](conn, h, body); err != nil {
		if s.Log != nil {
			s.Log.Printf("dispatch: fid=%d handler error: %v", h.FID, err)
		}
		s.replyError(conn, h.FID, protocol.MsgErrorNotSupported)
	}
}

// replyError sends a header-only reply carrying errCode, matching the
// original firmware's comReturn.
func (s *Server) replyError(w io.Writer, fid uint16, errCode int16) {
	ReplyError(w, fid, errCode)
}

// ReplyError sends a header-only reply carrying errCode. Handlers use it
// directly to short-circuit before building a full response struct.
func ReplyError(w io.Writer, fid uint16, errCode int16) {
	buf := make([]byte, protocol.HeaderLength)
	protocol.EncodeHeader(buf, protocol.Header{
		PacketLength: protocol.HeaderLength,
		FID:          fid,
		Error:        errCode,
	})
	_, _ = w.Write(buf)
}
