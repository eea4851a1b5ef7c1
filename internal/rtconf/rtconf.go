// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rtconf describes the configuration of the m5i20-rt process.
package rtconf // import "github.com/go-lpc/mesa/internal/rtconf"

import (
	"fmt"
	"time"

	"github.com/go-lpc/mesa/internal/pci"
	"github.com/go-lpc/mesa/m5i20"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// Config is the configuration of the m5i20-rt process.
// It is read once per /config command and fixed while the boards run.
type Config struct {
	Period    string `koanf:"period" yaml:"period"`             // RT thread period
	Program   bool   `koanf:"program-fpga" yaml:"program-fpga"` // program FPGAs at attach
	Bitstream string `koanf:"bitstream" yaml:"bitstream"`       // .bit or raw image
	PWMFreq   int    `koanf:"pwm-freq" yaml:"pwm-freq"`         // PWM carrier, in Hz
	MaxBoards int    `koanf:"max-boards" yaml:"max-boards"`
	SysFS     string `koanf:"sysfs" yaml:"sysfs"`
	HTTP      string `koanf:"http" yaml:"http"`     // empty disables the HTTP server
	CondDB    string `koanf:"conddb" yaml:"conddb"` // empty disables calibration
	PMon      bool   `koanf:"pmon" yaml:"pmon"`
	PMonFreq  string `koanf:"pmon-freq" yaml:"pmon-freq"`
	Alert     Alert  `koanf:"alert" yaml:"alert"`
}

// Alert configures the mails sent when a board raises an estop.
// The password is read from $MAIL_PASSWORD.
type Alert struct {
	Server string   `koanf:"server" yaml:"server"` // empty disables alerts
	Port   int      `koanf:"port" yaml:"port"`
	User   string   `koanf:"user" yaml:"user"`
	To     []string `koanf:"to" yaml:"to"`
	Every  string   `koanf:"every" yaml:"every"` // minimum interval between mails
}

// Default returns the configuration used for missing keys.
func Default() Config {
	return Config{
		Period:    "1ms",
		PWMFreq:   20000,
		MaxBoards: m5i20.MaxBoards,
		SysFS:     pci.SysFS,
		HTTP:      ":8080",
		PMonFreq:  "1s",
		Alert: Alert{
			Port:  587,
			Every: "1m",
		},
	}
}

// Load reads the configuration file fname on top of the defaults.
// An empty fname yields the defaults.
func Load(fname string) (Config, error) {
	var (
		cfg Config
		k   = koanf.New(".")
	)

	err := k.Load(structs.Provider(Default(), "koanf"), nil)
	if err != nil {
		return cfg, fmt.Errorf("rtconf: could not load default configuration: %w", err)
	}

	if fname != "" {
		err = k.Load(file.Provider(fname), yaml.Parser())
		if err != nil {
			return cfg, fmt.Errorf("rtconf: could not load configuration file %q: %w", fname, err)
		}
	}

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return cfg, fmt.Errorf("rtconf: could not decode configuration: %w", err)
	}
	if len(cfg.Alert.To) == 0 {
		cfg.Alert.To = nil
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("rtconf: invalid configuration %q: %w", fname, err)
	}

	return cfg, nil
}

// Validate checks the consistency of the configuration.
func (cfg Config) Validate() error {
	period, err := time.ParseDuration(cfg.Period)
	if err != nil {
		return fmt.Errorf("invalid period: %w", err)
	}
	if period <= 0 {
		return fmt.Errorf("invalid period %v", period)
	}

	if cfg.PWMFreq <= 0 {
		return fmt.Errorf("invalid PWM frequency %d", cfg.PWMFreq)
	}

	if cfg.MaxBoards <= 0 {
		return fmt.Errorf("invalid max-boards %d", cfg.MaxBoards)
	}

	if cfg.Program && cfg.Bitstream == "" {
		return fmt.Errorf("program-fpga requires a bitstream")
	}

	if cfg.PMon {
		_, err = time.ParseDuration(cfg.PMonFreq)
		if err != nil {
			return fmt.Errorf("invalid pmon-freq: %w", err)
		}
	}

	if cfg.Alert.Server != "" {
		if len(cfg.Alert.To) == 0 {
			return fmt.Errorf("alert mails without recipients")
		}
		_, err = time.ParseDuration(cfg.Alert.Every)
		if err != nil {
			return fmt.Errorf("invalid alert interval: %w", err)
		}
	}

	return nil
}

// PeriodDuration returns the period of the real-time thread.
func (cfg Config) PeriodDuration() time.Duration {
	v, _ := time.ParseDuration(cfg.Period)
	return v
}

// PMonDuration returns the sampling period of the process monitor.
func (cfg Config) PMonDuration() time.Duration {
	v, _ := time.ParseDuration(cfg.PMonFreq)
	return v
}

// Interval returns the minimum interval between two alert mails.
func (a Alert) Interval() time.Duration {
	v, _ := time.ParseDuration(a.Every)
	return v
}
