// Package config loads the JSON bootstrap files for cmd/pumpd and
// cmd/sensord: the listen address, bus device paths, GPIO pin names, EZO
// probe addresses and unit identifier. Default hardware and PID parameters
// are not read from these files.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// PumpConfig is cmd/pumpd's bootstrap file.
type PumpConfig struct {
	ListenAddr    string `json:"listen_addr"`
	UnitID        string `json:"unit_id"`
	SPIDevice     string `json:"spi_device"`
	MinLimitPin   string `json:"min_limit_pin"`
	MaxLimitPin   string `json:"max_limit_pin"`
	DriverFaultPin string `json:"driver_fault_pin"`
	EnablePin     string `json:"enable_pin"`
	ResetPin      string `json:"reset_pin"`
	StepPin       string `json:"step_pin"`
	GreenLEDPin   string `json:"green_led_pin"`
	RedLEDPin     string `json:"red_led_pin"`
}

func applyPumpDefaults(c *PumpConfig) {
	if c.ListenAddr == "" {
		c.ListenAddr = ":7852"
	}
	if c.UnitID == "" {
		c.UnitID = "pump-0"
	}
	if c.SPIDevice == "" {
		c.SPIDevice = "/dev/spidev0.0"
	}
}

// LoadPumpConfig reads and parses a PumpConfig from path, filling
// unset fields with their defaults.
func LoadPumpConfig(path string) (PumpConfig, error) {
	var c PumpConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "config: read pump config")
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, errors.Wrap(err, "config: parse pump config")
	}
	applyPumpDefaults(&c)
	return c, nil
}

// SensorConfig is cmd/sensord's bootstrap file.
type SensorConfig struct {
	ListenAddr  string `json:"listen_addr"`
	UnitID      string `json:"unit_id"`
	I2CDevice   string `json:"i2c_device"`
	PHAddress   int    `json:"ph_address"`
	ORPAddress  int    `json:"orp_address"`
	ECAddress   int    `json:"ec_address"`
	TempAddress int    `json:"temp_address"`
	HeaterPHPin   string `json:"heater_ph_pin"`
	HeaterORPPin  string `json:"heater_orp_pin"`
	HeaterECPin   string `json:"heater_ec_pin"`
}

func applySensorDefaults(c *SensorConfig) {
	if c.ListenAddr == "" {
		c.ListenAddr = ":7851"
	}
	if c.UnitID == "" {
		c.UnitID = "sensor-0"
	}
	if c.I2CDevice == "" {
		c.I2CDevice = "/dev/i2c-1"
	}
	if c.PHAddress == 0 {
		c.PHAddress = 0x63
	}
	if c.ORPAddress == 0 {
		c.ORPAddress = 0x62
	}
	if c.ECAddress == 0 {
		c.ECAddress = 0x64
	}
	if c.TempAddress == 0 {
		c.TempAddress = 0x66
	}
}

// LoadSensorConfig reads and parses a SensorConfig from path, filling
// unset fields with their defaults.
func LoadSensorConfig(path string) (SensorConfig, error) {
	var c SensorConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "config: read sensor config")
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, errors.Wrap(err, "config: parse sensor config")
	}
	applySensorDefaults(&c)
	return c, nil
}
