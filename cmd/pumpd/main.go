// Command pumpd is the syringe pump board's firmware: it drives the
// AMIS30543 stepper driver along Austin/Eiderman motion profiles and
// serves the pump FID table over TCP.
package main

import (
	"flag"
	"log"
	"net"
	"os"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"syringepump/config"
	"syringepump/dispatch"
	"syringepump/halcontract"
	"syringepump/pump"
)

func main() {
	configPath := flag.String("config", "/etc/syringepump/pumpd.json", "path to the JSON bootstrap config")
	flag.Parse()

	logger := log.New(os.Stderr, "pumpd: ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.LoadPumpConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if _, err := host.Init(); err != nil {
		logger.Fatalf("init periph host: %v", err)
	}

	spiPort, err := spireg.Open(cfg.SPIDevice)
	if err != nil {
		logger.Fatalf("open SPI bus %s: %v", cfg.SPIDevice, err)
	}
	spiConn, err := spiPort.Connect(1*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		logger.Fatalf("connect SPI: %v", err)
	}

	minLimit := openInputPin(logger, cfg.MinLimitPin)
	maxLimit := openInputPin(logger, cfg.MaxLimitPin)
	driverFault := openInputPin(logger, cfg.DriverFaultPin)
	enablePin := openOutputPin(logger, cfg.EnablePin)
	resetPin := openOutputPin(logger, cfg.ResetPin)
	stepPin := openOutputPin(logger, cfg.StepPin)
	greenLED := openOutputPin(logger, cfg.GreenLEDPin)
	redLED := openOutputPin(logger, cfg.RedLEDPin)

	timer := &halcontract.SystemTimer{}
	controller := pump.New(pump.Deps{
		Timer:       timer,
		StepFn:      func() { _ = stepPin.Out(gpio.High); _ = stepPin.Out(gpio.Low) },
		SPI:         spiConn,
		MinLimit:    minLimit,
		MaxLimit:    maxLimit,
		DriverFault: driverFault,
		EnablePin:   enablePin,
		ResetPin:    resetPin,
		LEDs:        &pinLEDs{green: greenLED, red: redLED},
		Log:         logger,
		UnitID:      cfg.UnitID,
	})

	stop := make(chan struct{})
	controller.Run(stop)

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatalf("listen on %s: %v", cfg.ListenAddr, err)
	}
	logger.Printf("listening on %s", cfg.ListenAddr)

	localAddr, macAddr := listener.Addr().String(), "00:00:00:00:00:00"
	server := &dispatch.Server{
		Listener:  listener,
		Table:     controller.Table(localAddr, macAddr),
		Admission: controller.Admission,
		Log:       logger,
		OnConnect: func() { logger.Print("client connected") },
		OnDisconnect: func() {
			logger.Print("client disconnected")
			controller.StopPump()
		},
	}
	if err := server.Serve(); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}

// pinLEDs adapts two gpio.PinIO outputs to the pump.LEDs contract.
type pinLEDs struct{ green, red halcontract.DigitalPin }

func (l *pinLEDs) SetGreen(on bool) { _ = l.green.Out(level(on)) }
func (l *pinLEDs) SetRed(on bool)   { _ = l.red.Out(level(on)) }

func level(on bool) gpio.Level {
	if on {
		return gpio.High
	}
	return gpio.Low
}

func openInputPin(logger *log.Logger, name string) halcontract.DigitalPin {
	if name == "" {
		return nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		logger.Fatalf("unknown GPIO pin %q", name)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		logger.Fatalf("configure input pin %q: %v", name, err)
	}
	return pin
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
