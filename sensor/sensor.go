// Package sensor implements the water-chemistry sensor/heater controller:
// polling four EZO probes (pH, ORP, electrical conductivity, temperature),
// fanning readings out to three temperature-zone PID loops, and the sensor
// board's FID table.
package sensor

import (
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"syringepump/ezo"
	"syringepump/halcontract"
	"syringepump/pid"
)

// ErrReadingPending is returned by GetSensorData while a SendReadCmd
// deadline has not yet elapsed.
var ErrReadingPending = errors.New("sensor: reading pending")

// Channel identifies one of the four EZO probes, used as a selector byte
// in probe-maintenance request bodies (calibration, LED, address, ...).
type Channel uint8

const (
	ChannelPH Channel = iota
	ChannelORP
	ChannelEC
	ChannelTemp

	channelCount
)

// Zone identifies one of the three PID-controlled heater zones, used as a
// selector byte in PID request bodies. Each zone heats the bath housing
// the correspondingly named probe, controlled from the shared temperature
// reading since the board has a single RTD input.
type Zone uint8

const (
	ZonePH Zone = iota
	ZoneORP
	ZoneEC

	zoneCount
)

// reading caches one probe's last value and connectivity.
type reading struct {
	value     float64
	connected bool
}

// Controller owns the four probe clients, the three PID loops and the
// shared read-cycle state (sendReadCmd/getSensorData async handshake).
type Controller struct {
	mu sync.Mutex

	probes [channelCount]*ezo.Client
	cached [channelCount]reading

	pids   [zoneCount]*pid.Controller
	heaters [zoneCount]halcontract.PWMOutput
	targets [zoneCount]float64

	readingPending       bool
	commandedReadDone     bool
	readTimer            *time.Timer

	log    *log.Logger
	unitID string
}

// Deps bundles Controller's hardware collaborators.
type Deps struct {
	PH, ORP, EC, Temp halcontract.I2CTransactor
	HeaterPH, HeaterORP, HeaterEC halcontract.PWMOutput
	PidParams [zoneCount]pid.Params
	Log       *log.Logger
	UnitID    string
}

// New returns a Controller with each probe client and PID loop wired to
// its hardware collaborator.
func New(d Deps) *Controller {
	c := &Controller{
		log:    d.Log,
		unitID: d.UnitID,
	}
	c.probes[ChannelPH] = ezo.New(d.PH)
	c.probes[ChannelORP] = ezo.New(d.ORP)
	c.probes[ChannelEC] = ezo.New(d.EC)
	c.probes[ChannelTemp] = ezo.New(d.Temp)

	c.heaters[ZonePH] = d.HeaterPH
	c.heaters[ZoneORP] = d.HeaterORP
	c.heaters[ZoneEC] = d.HeaterEC
	for z := range c.pids {
		c.pids[z] = pid.New(d.PidParams[z])
	}
	return c
}

// probe returns the client for ch, or nil for an out-of-range selector.
func (c *Controller) probe(ch Channel) *ezo.Client {
	if int(ch) >= int(channelCount) {
		return nil
	}
	return c.probes[ch]
}

// SendReadCmd broadcasts an asynchronous read command to all four probes
// and arms a 1s deadline after which GetSensorData may retrieve the
// results, matching the original firmware's sendReadCMD/1s soft timer.
func (c *Controller) SendReadCmd() {
	for _, p := range c.probes {
		_ = p.SendReadCmd()
	}

	c.mu.Lock()
	c.readingPending = true
	if c.readTimer != nil {
		c.readTimer.Stop()
	}
	c.readTimer = time.AfterFunc(time.Second, c.onReadDeadline)
	c.mu.Unlock()
}

func (c *Controller) onReadDeadline() {
	c.mu.Lock()
	c.readingPending = false
	c.commandedReadDone = true
	c.mu.Unlock()
}

// SensorData is the sensor board's per-probe reading snapshot.
type SensorData struct {
	PH, ORP, EC, Temp float64
	Connected         [channelCount]bool
}

// GetSensorData refreshes the cached readings from any pending async
// reads, runs the three heater PID loops against the refreshed
// temperature, and returns the snapshot. It returns ErrReadingPending
// while a SendReadCmd deadline has not yet elapsed, matching the original
// firmware's read-cycle gate.
func (c *Controller) GetSensorData() (SensorData, error) {
	c.mu.Lock()
	pending := c.readingPending
	reinit := !c.commandedReadDone
	c.mu.Unlock()

	if pending {
		return SensorData{}, ErrReadingPending
	}

	for ch, p := range c.probes {
		v, err := p.ReceiveReading()
		c.mu.Lock()
		c.cached[ch] = reading{value: v, connected: err == nil}
		c.mu.Unlock()
	}

	c.mu.Lock()
	temp := c.cached[ChannelTemp].value
	targets := c.targets
	c.mu.Unlock()

	for z, loop := range c.pids {
		if reinit {
			loop.Reset()
		}
		_ = loop.Calculate(targets[z], temp)
		if h := c.heaters[z]; h != nil {
			_ = h.SetDutyCycle(loop.State().DutyCycle)
		}
	}

	c.mu.Lock()
	data := SensorData{
		PH:   c.cached[ChannelPH].value,
		ORP:  c.cached[ChannelORP].value,
		EC:   c.cached[ChannelEC].value,
		Temp: c.cached[ChannelTemp].value,
	}
	for ch := range c.cached {
		data.Connected[ch] = c.cached[ch].connected
	}
	c.mu.Unlock()
	return data, nil
}
