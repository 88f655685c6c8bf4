package protocol

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHeaderRoundTrip(t *testing.T) {
	c := qt.New(t)

	buf := make([]byte, HeaderLength)
	EncodeHeader(buf, Header{PacketLength: 42, FID: 7, Error: -3})

	h, err := DecodeHeader(buf)
	c.Assert(err, qt.IsNil)
	c.Assert(h.PacketLength, qt.Equals, uint16(42))
	c.Assert(h.FID, qt.Equals, uint16(7))
	c.Assert(h.Error, qt.Equals, int16(-3))
}

func TestDecodeHeaderShort(t *testing.T) {
	c := qt.New(t)

	_, err := DecodeHeader(make([]byte, HeaderLength-1))
	c.Assert(err, qt.Equals, ErrShortRead)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	c := qt.New(t)

	w := NewWriter()
	w.PutUint8(200)
	w.PutUint16(1000)
	w.PutInt16(-1000)
	w.PutUint32(123456789)
	w.PutFloat32(3.5)
	w.PutFixedString("hello", 8)
	frame := w.Finish(9, MsgOK)

	h, err := DecodeHeader(frame)
	c.Assert(err, qt.IsNil)
	c.Assert(int(h.PacketLength), qt.Equals, len(frame))
	c.Assert(h.FID, qt.Equals, uint16(9))
	c.Assert(h.Error, qt.Equals, MsgOK)

	r := NewReader(frame[HeaderLength:])
	c.Assert(r.GetUint8(), qt.Equals, uint8(200))
	c.Assert(r.GetUint16(), qt.Equals, uint16(1000))
	c.Assert(r.GetInt16(), qt.Equals, int16(-1000))
	c.Assert(r.GetUint32(), qt.Equals, uint32(123456789))
	c.Assert(r.GetFloat32(), qt.Equals, float32(3.5))
	c.Assert(r.GetFixedString(8), qt.Equals, "hello")
	c.Assert(r.Err(), qt.IsNil)
}

func TestReaderShortRead(t *testing.T) {
	c := qt.New(t)

	r := NewReader([]byte{1, 2})
	_ = r.GetUint32()
	c.Assert(r.Err(), qt.Equals, ErrShortRead)
}
