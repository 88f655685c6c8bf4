package pump

import (
	"io"

	"syringepump/dispatch"
	"syringepump/protocol"
	"syringepump/stepperdrv"
)

// Admission implements the pump board's admission policy: while the pump
// is running and no error is latched, only FIDStopPump and FIDGetStatus
// are allowed through.
func (c *Controller) Admission(fid uint16) (bool, int16) {
	if c.getState() == StatePumpRunning && c.getErrors() == 0 {
		if fid != protocol.FIDStopPump && fid != protocol.FIDGetStatus {
			return false, protocol.MsgErrorPumpRunning
		}
	}
	return true, protocol.MsgOK
}

// Table builds the pump board's FID dispatch table. ipAddr/macAddr are
// captured at server-start time for FIDGetSysInfo.
func (c *Controller) Table(ipAddr, macAddr string) dispatch.Table {
	t := make(dispatch.Table, protocol.PumpFIDCount)

	t[protocol.FIDGetStatus] = func(w io.Writer, h protocol.Header, body []byte) error {
		st := c.GetStatus()
		wr := protocol.NewWriter()
		wr.PutUint8(uint8(st.State))
		wr.PutUint8(uint8(st.Errors))
		wr.PutFloat32(st.SuppliedVolume)
		wr.PutFloat32(st.FlowRate)
		errCode := protocol.MsgOK
		if st.Errors != 0 {
			errCode = protocol.MsgErrorStepperDriverError
		}
		_, err := w.Write(wr.Finish(h.FID, errCode))
		return err
	}

	t[protocol.FIDStopPump] = func(w io.Writer, h protocol.Header, body []byte) error {
		c.StopPump()
		return replyOK(w, h.FID)
	}

	t[protocol.FIDStartPump] = func(w io.Writer, h protocol.Header, body []byte) error {
		if err := c.StartPump(); err != nil {
			return replyMapped(w, h.FID, err)
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDSetHardwareConfig] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		cfg := decodeHardwareConfig(r)
		if r.Err() != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorShortFrame)
			return nil
		}
		if err := c.SetHardwareConfig(cfg); err != nil {
			return replyMapped(w, h.FID, err)
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDGetHardwareConfig] = func(w io.Writer, h protocol.Header, body []byte) error {
		cfg := c.GetHardwareConfig()
		wr := protocol.NewWriter()
		encodeHardwareConfig(wr, cfg)
		_, err := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return err
	}

	t[protocol.FIDSetFlowConfig] = func(w io.Writer, h protocol.Header, body []byte) error {
		r := protocol.NewReader(body)
		cfg := FlowConfig{
			FlowRateMLPerMin: r.GetFloat32(),
			VolumeML:         r.GetFloat32(),
			DiameterMM:       r.GetFloat32(),
			Direction:        stepperdrv.Direction(r.GetUint8()),
		}
		if r.Err() != nil {
			dispatch.ReplyError(w, h.FID, protocol.MsgErrorShortFrame)
			return nil
		}
		if err := c.SetFlowConfig(cfg); err != nil {
			return replyMapped(w, h.FID, err)
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDGetFlowConfig] = func(w io.Writer, h protocol.Header, body []byte) error {
		cfg := c.GetFlowConfig()
		wr := protocol.NewWriter()
		wr.PutFloat32(cfg.FlowRateMLPerMin)
		wr.PutFloat32(cfg.VolumeML)
		wr.PutFloat32(cfg.DiameterMM)
		wr.PutUint8(uint8(cfg.Direction))
		_, err := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return err
	}

	t[protocol.FIDMaxPull] = func(w io.Writer, h protocol.Header, body []byte) error {
		if err := c.MaxPull(); err != nil {
			return replyMapped(w, h.FID, err)
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDMaxPush] = func(w io.Writer, h protocol.Header, body []byte) error {
		if err := c.MaxPush(); err != nil {
			return replyMapped(w, h.FID, err)
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDDisableMotorHold] = func(w io.Writer, h protocol.Header, body []byte) error {
		c.DisableMotorHold()
		return replyOK(w, h.FID)
	}

	t[protocol.FIDGetStepDrvError] = func(w io.Writer, h protocol.Header, body []byte) error {
		status, err := c.StepDriverError()
		if err != nil {
			return replyMapped(w, h.FID, err)
		}
		wr := protocol.NewWriter()
		wr.PutUint16(encodeFaultBits(status))
		errCode := protocol.MsgOK
		if status.Any() {
			errCode = protocol.MsgErrorStepperDriverError
		}
		_, err = w.Write(wr.Finish(h.FID, errCode))
		return err
	}

	t[protocol.FIDResetPump] = func(w io.Writer, h protocol.Header, body []byte) error {
		if err := c.ResetPump(); err != nil {
			return replyMapped(w, h.FID, err)
		}
		return replyOK(w, h.FID)
	}

	t[protocol.FIDGetPumpError] = func(w io.Writer, h protocol.Header, body []byte) error {
		wr := protocol.NewWriter()
		wr.PutUint8(uint8(c.getErrors()))
		_, err := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return err
	}

	t[protocol.FIDGetSysInfo] = func(w io.Writer, h protocol.Header, body []byte) error {
		info := c.GetSysInfo(ipAddr, macAddr)
		wr := protocol.NewWriter()
		wr.PutFixedString(info.FirmwareVersion, 16)
		wr.PutFixedString(info.UnitID, 32)
		wr.PutFixedString(info.IPAddress, 16)
		wr.PutFixedString(info.MACAddress, 18)
		_, err := w.Write(wr.Finish(h.FID, protocol.MsgOK))
		return err
	}

	t[protocol.FIDIdentifyItself] = func(w io.Writer, h protocol.Header, body []byte) error {
		c.IdentifyItself()
		return replyOK(w, h.FID)
	}

	return t
}

func replyOK(w io.Writer, fid uint16) error {
	wr := protocol.NewWriter()
	_, err := w.Write(wr.Finish(fid, protocol.MsgOK))
	return err
}

// replyMapped sends a header-only reply carrying the error code that best
// matches err's sentinel value, matching the original firmware's
// per-handler MSG_ERROR_* replies.
func replyMapped(w io.Writer, fid uint16, err error) error {
	code := protocol.MsgErrorOutOfRange
	switch {
	case err == ErrFlowNotConfigured:
		code = protocol.MsgErrorFlowNotConfigured
	case err == ErrLimitSwitchActive:
		code = protocol.MsgErrorLimitSwitchActive
	case err == ErrDriverFaulted:
		code = protocol.MsgErrorStepperDriverError
	}
	dispatch.ReplyError(w, fid, code)
	return nil
}

// encodeFaultBits packs a decoded FaultStatus back into the 14-bit layout
// the original firmware reported over the wire for FIDGetStepDrvError.
func encodeFaultBits(s stepperdrv.FaultStatus) uint16 {
	var v uint16
	set := func(bit uint, cond bool) {
		if cond {
			v |= 1 << bit
		}
	}
	set(0, s.OpenY)
	set(1, s.OpenX)
	set(2, s.WatchdogReset)
	set(3, s.ChargePumpFail)
	set(4, s.ThermalWarning)
	set(5, s.OverCurrentXNegBottom)
	set(6, s.OverCurrentXNegTop)
	set(7, s.OverCurrentXPosBottom)
	set(8, s.OverCurrentXPosTop)
	set(9, s.ThermalShutdown)
	set(10, s.OverCurrentYNegBottom)
	set(11, s.OverCurrentYNegTop)
	set(12, s.OverCurrentYPosBottom)
	set(13, s.OverCurrentYPosTop)
	return v
}

// decodeHardwareConfig reads a HardwareConfig in the field order declared
// by the struct, matching FIDSetHardwareConfig's request layout.
func decodeHardwareConfig(r *protocol.Reader) HardwareConfig {
	return HardwareConfig{
		PWMFrequency:        stepperdrv.PWMFrequency(r.GetUint8()),
		PWMSlope:            stepperdrv.PWMSlope(r.GetUint8()),
		PWMJitter:           r.GetUint8() != 0,
		LeadScrewPitchMM:    r.GetFloat32(),
		MaxDriverCurrentMA:  int(r.GetUint16()),
		StepMode:            r.GetUint8(),
		StepsPerRev:         int(r.GetUint16()),
		Direction:           stepperdrv.Direction(r.GetUint8()),
		MaxPullPushAccel:    r.GetFloat32(),
		MaxPullPushVelocity: r.GetFloat32(),
		PumpAccel:           r.GetFloat32(),
		PumpDecel:           r.GetFloat32(),
	}
}

// encodeHardwareConfig writes cfg in the same field order decodeHardwareConfig
// reads, for FIDGetHardwareConfig's reply.
func encodeHardwareConfig(w *protocol.Writer, cfg HardwareConfig) {
	w.PutUint8(uint8(cfg.PWMFrequency))
	w.PutUint8(uint8(cfg.PWMSlope))
	if cfg.PWMJitter {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
	w.PutFloat32(cfg.LeadScrewPitchMM)
	w.PutUint16(uint16(cfg.MaxDriverCurrentMA))
	w.PutUint8(cfg.StepMode)
	w.PutUint16(uint16(cfg.StepsPerRev))
	w.PutUint8(uint8(cfg.Direction))
	w.PutFloat32(cfg.MaxPullPushAccel)
	w.PutFloat32(cfg.MaxPullPushVelocity)
	w.PutFloat32(cfg.PumpAccel)
	w.PutFloat32(cfg.PumpDecel)
}
