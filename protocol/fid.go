package protocol

// Pump board function identifiers. Order matches the original firmware's
// comMessages dispatch table and is meaningful: FID is a dense array index,
// not an independent enum.
const (
	FIDGetStatus uint16 = iota
	FIDStopPump
	FIDStartPump
	FIDSetHardwareConfig
	FIDSetFlowConfig
	FIDGetHardwareConfig
	FIDMaxPull
	FIDMaxPush
	FIDDisableMotorHold
	FIDGetStepDrvError
	FIDGetFlowConfig
	FIDResetPump
	FIDGetPumpError
	FIDGetSysInfo
	FIDIdentifyItself

	PumpFIDCount
)

// Sensor board function identifiers. The first six preserve the original
// EZOSensors dispatch table order; the remainder are the PID-tuning and
// probe-maintenance operations the distilled specification adds.
const (
	FIDSensorGetStatus uint16 = iota
	FIDSensorSendReadCmd
	FIDSensorGetSensorData
	FIDSensorGetSensorInfo
	FIDSensorGetSensorStatus
	FIDSensorGetSystemInfo
	FIDSensorSetPidParams
	FIDSensorGetPidParams
	FIDSensorSetPidSetpoint
	FIDSensorCalibrateLow
	FIDSensorCalibrateMid
	FIDSensorCalibrateHigh
	FIDSensorCalibrateClear
	FIDSensorFactoryResetEZO
	FIDSensorSetAddress
	FIDSensorSetLED
	FIDSensorGetLED
	FIDSensorSetProtocolLock
	FIDSensorGetProtocolLock
	FIDSensorSetTempCompensation
	FIDSensorGetTempCompensation
	FIDSensorSetUARTBaud
	FIDSensorSleep
	FIDSensorResetPid
	FIDSensorSetPidMethod

	SensorFIDCount
)
