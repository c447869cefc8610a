package gorough

import (
	"os"
	"testing"
)

func TestConfigLoad(t *testing.T) {
	cfg, err := NewConfigFromFile("config.example.yml")
	if err != nil {
		t.Error(err)
	}
	if cfg.Intervals != 4 {
		t.Error(cfg)
		data, err := os.ReadFile("config.example.yml")
		t.Error(string(data), err)
	}
	if cfg.Repeats != 10 {
		t.Error(cfg)
	}
	if cfg.GPSPort != "/dev/ttyACM0" {
		t.Error(cfg)
	}
	if _, _, err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	if _, _, err := cfg.Validate(); err == nil {
		t.Error("accepted empty config")
	}
	cfg.Host = "example.org:2002"
	if _, _, err := cfg.Validate(); err == nil {
		t.Error("accepted config without key")
	}
	cfg.Key = "AW5uAoTSTDfG5NfY1bTh08GUnOqlRb+HVhbJ3ODJvsE="
	if _, _, err := cfg.Validate(); err != nil {
		t.Error(err)
	}

	// Defaults fill in on validation.
	if cfg.Repeats != 1 || cfg.Intervals != 1 || cfg.TimeoutSec != 10 {
		t.Error(cfg)
	}
	if cfg.GPSBaud != 9600 || cfg.GPSLeapSec != 18 {
		t.Error(cfg)
	}
}

func TestConfigBadNonce(t *testing.T) {
	cfg := &Config{
		Host:  "example.org:2002",
		Key:   "AW5uAoTSTDfG5NfY1bTh08GUnOqlRb+HVhbJ3ODJvsE=",
		Nonce: "dG9vc2hvcnQ=",
	}
	if _, _, err := cfg.Validate(); err == nil {
		t.Error("accepted short nonce")
	}
}
