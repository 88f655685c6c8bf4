// Command sensord is the water-chemistry sensor board's firmware: it
// polls four EZO probes over I2C, runs three heater-zone PID loops, and
// serves the sensor FID table over TCP.
package main

import (
	"flag"
	"log"
	"net"
	"os"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"syringepump/config"
	"syringepump/dispatch"
	"syringepump/halcontract"
	"syringepump/pid"
	"syringepump/sensor"
)

func main() {
	configPath := flag.String("config", "/etc/syringepump/sensord.json", "path to the JSON bootstrap config")
	flag.Parse()

	logger := log.New(os.Stderr, "sensord: ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.LoadSensorConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if _, err := host.Init(); err != nil {
		logger.Fatalf("init periph host: %v", err)
	}

	bus, err := i2creg.Open(cfg.I2CDevice)
	if err != nil {
		logger.Fatalf("open I2C bus %s: %v", cfg.I2CDevice, err)
	}

	heaterPH := openOutputPin(logger, cfg.HeaterPHPin)
	heaterORP := openOutputPin(logger, cfg.HeaterORPPin)
	heaterEC := openOutputPin(logger, cfg.HeaterECPin)

	defaultPid := pid.Params{Kp: 9, Ki: 0.006, Kd: 0, Kf: 0, Min: 0, Max: 100, Limit: 1, Step: 0.1, DT: 0.5, Method: pid.Clamping}
	controller := sensor.New(sensor.Deps{
		PH:        &i2c.Dev{Bus: bus, Addr: uint16(cfg.PHAddress)},
		ORP:       &i2c.Dev{Bus: bus, Addr: uint16(cfg.ORPAddress)},
		EC:        &i2c.Dev{Bus: bus, Addr: uint16(cfg.ECAddress)},
		Temp:      &i2c.Dev{Bus: bus, Addr: uint16(cfg.TempAddress)},
		HeaterPH:  &pwmPin{pin: heaterPH},
		HeaterORP: &pwmPin{pin: heaterORP},
		HeaterEC:  &pwmPin{pin: heaterEC},
		PidParams: [3]pid.Params{defaultPid, defaultPid, defaultPid},
		Log:       logger,
		UnitID:    cfg.UnitID,
	})

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatalf("listen on %s: %v", cfg.ListenAddr, err)
	}
	logger.Printf("listening on %s", cfg.ListenAddr)

	server := &dispatch.Server{
		Listener:     listener,
		Table:        controller.Table(),
		Log:          logger,
		OnConnect:    func() { logger.Print("client connected") },
		OnDisconnect: func() { logger.Print("client disconnected") },
	}
	if err := server.Serve(); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}

// pwmPin is an on/off approximation of PWM over a plain digital output pin,
// used where the board has no hardware PWM channel routed to the heater
// MOSFETs: it drives the pin high when the requested duty fraction is at
// least 0.5 and low otherwise, with no modulation within a cycle.
//
// TODO: replace with a periph.io/x/conn/v3/gpio.PinOut-backed hardware PWM
// channel once the heater board exposes one; see cfg.HeaterPHPin wiring.
type pwmPin struct {
	pin halcontract.DigitalPin
}

func (p *pwmPin) SetDutyCycle(fraction float64) error {
	if p.pin == nil {
		return nil
	}
	if fraction >= 0.5 {
		return p.pin.Out(gpio.High)
	}
	return p.pin.Out(gpio.Low)
}

func openOutputPin(logger *log.Logger, name string) halcontract.DigitalPin {
	if name == "" {
		return nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		logger.Fatalf("unknown GPIO pin %q", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		logger.Fatalf("configure output pin %q: %v", name, err)
	}
	return pin
}
