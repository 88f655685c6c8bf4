// Package protocol implements the length-prefixed little-endian wire format
// shared by the pump and sensor controllers.
package protocol

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// HeaderLength is the size in bytes of the common frame header.
const HeaderLength = 8

// Header is the common prefix of every request and reply frame.
type Header struct {
	PacketLength uint16 // total frame length, including this header
	FID          uint16 // function identifier
	Error        int16  // MsgOK on success, an MSG_ERROR_* code otherwise
	_            uint16 // pad, always zero on the wire
}

// Error codes, carried from the original firmware's error table.
const (
	MsgOK                          int16 = 0
	MsgErrorNotSupported           int16 = 1
	MsgErrorPumpRunning            int16 = 2
	MsgErrorFlowNotConfigured      int16 = 3
	MsgErrorLimitSwitchActive      int16 = 4
	MsgErrorStepperDriverError     int16 = 5
	MsgErrorOutOfRange             int16 = 6
	MsgErrorSwitchingOverMax       int16 = 7
	MsgErrorSensorDisconnected     int16 = 8
	MsgErrorReadingPending         int16 = 9
	MsgErrorHardwareNotConfigured  int16 = 10
	MsgErrorShortFrame             int16 = 11
	MsgErrorBadFID                 int16 = 12
)

// ErrShortRead is returned when a frame body is shorter than a handler's
// expected fixed layout.
var ErrShortRead = errors.New("protocol: short frame body")

// EncodeHeader writes h to buf in little-endian order. buf must be at least
// HeaderLength bytes.
func EncodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.PacketLength)
	binary.LittleEndian.PutUint16(buf[2:4], h.FID)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(h.Error))
	binary.LittleEndian.PutUint16(buf[6:8], 0)
}

// DecodeHeader reads a Header from the first HeaderLength bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLength {
		return Header{}, ErrShortRead
	}
	return Header{
		PacketLength: binary.LittleEndian.Uint16(buf[0:2]),
		FID:          binary.LittleEndian.Uint16(buf[2:4]),
		Error:        int16(binary.LittleEndian.Uint16(buf[4:6])),
	}, nil
}

// Writer accumulates a reply frame: a header followed by a fixed-layout
// payload, written field by field in the order the original C packed
// structs declared them.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns a Writer with the header reserved (filled by Finish).
func NewWriter() *Writer {
	w := &Writer{}
	w.buf.Write(make([]byte, HeaderLength))
	return w
}

// PutUint8 appends a single byte.
func (w *Writer) PutUint8(v uint8) { w.buf.WriteByte(v) }

// PutUint16 appends a little-endian uint16.
func (w *Writer) PutUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// PutInt16 appends a little-endian int16.
func (w *Writer) PutInt16(v int16) { w.PutUint16(uint16(v)) }

// PutUint32 appends a little-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// PutFloat32 appends a little-endian IEEE-754 float32.
func (w *Writer) PutFloat32(v float32) { w.PutUint32(math.Float32bits(v)) }

// PutFixedString appends s truncated/zero-padded to exactly n bytes.
func (w *Writer) PutFixedString(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.buf.Write(b)
}

// Finish writes the header (packet length = bytes written so far, fid, and
// error) and returns the complete frame.
func (w *Writer) Finish(fid uint16, errCode int16) []byte {
	out := w.buf.Bytes()
	EncodeHeader(out, Header{PacketLength: uint16(len(out)), FID: fid, Error: errCode})
	return out
}

// Reader walks a frame body (the bytes after the header) field by field.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader wraps body, the bytes following the frame header.
func NewReader(body []byte) *Reader { return &Reader{data: body} }

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = ErrShortRead
		return false
	}
	return true
}

// Err returns the first error encountered by any Get call.
func (r *Reader) Err() error { return r.err }

func (r *Reader) GetUint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *Reader) GetUint16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *Reader) GetInt16() int16 { return int16(r.GetUint16()) }

func (r *Reader) GetUint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *Reader) GetFloat32() float32 { return math.Float32frombits(r.GetUint32()) }

// GetFixedString reads n bytes and trims trailing NUL padding.
func (r *Reader) GetFixedString(n int) string {
	if !r.need(n) {
		return ""
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		end = len(b)
	}
	return string(b[:end])
}
