package serial

import (
	"io"
)

// Port represents a serial port interface, abstracting the debug UART
// pumpconsole attaches to (native OS serial today; a mock for testing).
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration for the debug UART exposed by
// the pump and sensor boards.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate. The firmware's debug UART runs at a fixed 115200.
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the debug UART's default configuration.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
