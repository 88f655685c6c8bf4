package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadPumpConfigAppliesDefaults(t *testing.T) {
	path := writeTemp(t, `{"unit_id": "pump-a1"}`)
	c, err := LoadPumpConfig(path)
	if err != nil {
		t.Fatalf("LoadPumpConfig: %v", err)
	}
	if c.UnitID != "pump-a1" {
		t.Errorf("UnitID = %q, want %q", c.UnitID, "pump-a1")
	}
	if c.ListenAddr != ":7852" {
		t.Errorf("ListenAddr = %q, want default %q", c.ListenAddr, ":7852")
	}
	if c.SPIDevice != "/dev/spidev0.0" {
		t.Errorf("SPIDevice = %q, want default", c.SPIDevice)
	}
}

func TestLoadPumpConfigMissingFile(t *testing.T) {
	if _, err := LoadPumpConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("LoadPumpConfig on a missing file returned no error")
	}
}

func TestLoadSensorConfigAppliesDefaults(t *testing.T) {
	path := writeTemp(t, `{"listen_addr": ":9000"}`)
	c, err := LoadSensorConfig(path)
	if err != nil {
		t.Fatalf("LoadSensorConfig: %v", err)
	}
	if c.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want %q", c.ListenAddr, ":9000")
	}
	if c.PHAddress != 0x63 {
		t.Errorf("PHAddress = %#x, want default 0x63", c.PHAddress)
	}
	if c.I2CDevice != "/dev/i2c-1" {
		t.Errorf("I2CDevice = %q, want default", c.I2CDevice)
	}
}
