package sensor

import (
	"io"

	"syringepump/dispatch"
	"syringepump/pid"
	"syringepump/protocol"
)

// Table builds the sensor board's FID dispatch table.
func (c *Controller) Table() dispatch.Table {
	t := make(dispatch.Table, protocol.SensorFIDCount)

	t[protocol.FIDSensorGetStatus] = func(w io.Writer, h protocol.Header, body []byte) error {
		st := c.GetStatus()
		wr := protocol.NewWriter()
		for _, ok := range st.Connected {
			wr.PutUint8(boolByte(ok))
		}
		_, err := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return err
	}

	t[protocol.FIDSensorSendReadCmd] = func(w io.Writer, h protocol.Header, body []byte) error {
		c.SendReadCmd()
		return replyOK(w, h.FID)
	}

	t[protocol.FIDSensorGetSensorData] = func(w io.Writer, h protocol.Header, body []byte) error {
		data, err := c.GetSensorData()
		if err == ErrReadingPending {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorReadingPending)
			return nil
		}
		wr := protocol.NewWriter()
		wr.PutFloat32(float32(data.PH))
		wr.PutFloat32(float32(data.ORP))
		wr.PutFloat32(float32(data.EC))
		wr.PutFloat32(float32(data.Temp))
		for _, ok := range data.Connected {
			wr.PutUint8(boolByte(ok))
		}
		errCode := protocol.MsgOK
		for _, ok := range data.Connected {
			if !ok {
				errCode = protocol.MsgErrorSensorDisconnected
			}
		}
		_, werr := w.Write(wr.Finish(h.FID, errCode))
		return werr
	}

	t[protocol.FIDSensorGetSensorInfo] = channelStringHandler(c.Info)
	t[protocol.FIDSensorGetSensorStatus] = channelStringHandler(c.Status)

	t[protocol.FIDSensorGetSystemInfo] = func(w io.Writer, h protocol.Header, body []byte) error {
		info := c.GetSystemInfo()
		wr := protocol.NewWriter()
		wr.PutFixedString(info.FirmwareVersion, 16)
		wr.PutFixedString(info.UnitID, 32)
		_, err := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return err
	}

	t[protocol.FIDSensorSetPidParams] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		z := Zone(r.GetUint8())
		p := pid.Params{
			Kp:     float64(r.GetFloat32()),
			Ki:     float64(r.GetFloat32()),
			Kd:     float64(r.GetFloat32()),
			Kf:     float64(r.GetFloat32()),
			Min:    float64(r.GetFloat32()),
			Max:    float64(r.GetFloat32()),
			Limit:  float64(r.GetFloat32()),
			Step:   float64(r.GetFloat32()),
			DT:     float64(r.GetFloat32()),
			Method: pid.AntiWindup(r.GetUint8()),
		}
		if r.Err() != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorShortFrame)
			return nil
		}
		if !c.SetPidParams(z, p) {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDSensorGetPidParams] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		z := Zone(r.GetUint8())
		p, ok := c.GetPidParams(z)
		if !ok {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		wr := protocol.NewWriter()
		wr.PutFloat32(float32(p.Kp))
		wr.PutFloat32(float32(p.Ki))
		wr.PutFloat32(float32(p.Kd))
		wr.PutFloat32(float32(p.Kf))
		wr.PutFloat32(float32(p.Min))
		wr.PutFloat32(float32(p.Max))
		wr.PutFloat32(float32(p.Limit))
		wr.PutFloat32(float32(p.Step))
		wr.PutFloat32(float32(p.DT))
		wr.PutUint8(uint8(p.Method))
		_, err := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return err
	}

	t[protocol.FIDSensorSetPidSetpoint] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		z := Zone(r.GetUint8())
		target := float64(r.GetFloat32())
		if r.Err() != nil || !c.SetPidSetpoint(z, target) {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDSensorResetPid] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		z := Zone(r.GetUint8())
		if r.Err() != nil || !c.ResetPid(z) {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDSensorSetPidMethod] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		z := Zone(r.GetUint8())
		method := pid.AntiWindup(r.GetUint8())
		if r.Err() != nil || !c.SetPidMethod(z, method) {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDSensorCalibrateLow] = calibrationHandler(c.CalibrateLow)
	t[protocol.FIDSensorCalibrateMid] = calibrationHandler(c.CalibrateMid)
	t[protocol.FIDSensorCalibrateHigh] = calibrationHandler(c.CalibrateHigh)

	t[protocol.FIDSensorCalibrateClear] = channelActionHandler(c.CalibrationClear)
	t[protocol.FIDSensorFactoryResetEZO] = channelActionHandler(c.FactoryResetEZO)
	t[protocol.FIDSensorSleep] = channelActionHandler(c.Sleep)

	t[protocol.FIDSensorSetAddress] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		addr := int(r.GetUint8())
		if r.Err() != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorShortFrame)
			return nil
		}
		if err := c.SetAddress(ch, addr); err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDSensorSetLED] = channelBoolHandler(c.SetLED)
	t[protocol.FIDSensorSetProtocolLock] = channelBoolHandler(c.SetProtocolLock)

	t[protocol.FIDSensorGetLED] = channelByteQueryHandler(c.GetLED)
	t[protocol.FIDSensorGetProtocolLock] = channelByteQueryHandler(c.GetProtocolLock)

	t[protocol.FIDSensorSetTempCompensation] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		celsius := float64(r.GetFloat32())
		if r.Err() != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorShortFrame)
			return nil
		}
		if err := c.SetTempCompensation(ch, celsius); err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDSensorGetTempCompensation] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		v, err := c.GetTempCompensation(ch)
		if err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		wr := protocol.NewWriter()
		wr.PutFloat32(float32(v))
		_, werr := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return werr
	}

	t[protocol.FIDSensorSetUARTBaud] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		baud := int(r.GetUint32())
		if r.Err() != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorShortFrame)
			return nil
		}
		if err := c.SetUARTBaud(ch, baud); err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorOutOfRange)
			return nil
		}
		return replyOK(w, h.FID)
	}

	return t
}

func replyOK(w io.Writer, fid uint16) error {
	wr := protocol.NewWriter()
	_, err := w.Write(wr.Finish(fid, protocol.MsgOK))
	return err
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// channelStringHandler adapts a (Channel) (string, error) probe query into
// a dispatch.Handler that replies with a fixed 21-byte ASCII payload.
func channelStringHandler(fn func(Channel) (string, error)) dispatch.Handler {
	return func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		s, err := fn(ch)
		if err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorSensorDisconnected)
			return nil
		}
		wr := protocol.NewWriter()
		wr.PutFixedString(s, 21)
		_, werr := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return werr
	}
}

// channelActionHandler adapts a (Channel) error probe command into a
// dispatch.Handler with a header-only reply.
func channelActionHandler(fn func(Channel) error) dispatch.Handler {
	return func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		if err := fn(ch); err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorSensorDisconnected)
			return nil
		}
		return replyOK(w, h.FID)
	}
}

// channelBoolHandler adapts a (Channel, bool) error probe command into a
// dispatch.Handler with a header-only reply.
func channelBoolHandler(fn func(Channel, bool) error) dispatch.Handler {
	return func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		on := r.GetUint8() != 0
		if r.Err() != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorShortFrame)
			return nil
		}
		if err := fn(ch, on); err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorSensorDisconnected)
			return nil
		}
		return replyOK(w, h.FID)
	}
}

// channelByteQueryHandler adapts a (Channel) (byte, error) probe query
// into a dispatch.Handler that replies with a single byte payload.
func channelByteQueryHandler(fn func(Channel) (byte, error)) dispatch.Handler {
	return func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		v, err := fn(ch)
		if err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorSensorDisconnected)
			return nil
		}
		wr := protocol.NewWriter()
		wr.PutUint8(v)
		_, werr := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return werr
	}
}

// calibrationHandler adapts a (Channel, float64) error calibration
// command into a dispatch.Handler with a header-only reply.
func calibrationHandler(fn func(Channel, float64) error) dispatch.Handler {
	return func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		ch := Channel(r.GetUint8())
		ref := float64(r.GetFloat32())
		if r.Err() != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorShortFrame)
			return nil
		}
		if err := fn(ch, ref); err != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorSensorDisconnected)
			return nil
		}
		return replyOK(w, h.FID)
	}
}
