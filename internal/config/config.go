// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the configuration of the scd30 daemon. Values come
// from NewConfig defaults, then the YAML file, then command line flags.
package config

import (
	"io"
	"os"
	"time"

	"github.com/GermanBionicSystems/co2devices/gpiodedge"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is read when --config is not given. It may be missing.
const DefaultConfigFile = "/etc/scd30/scd30.yaml"

// Config defines the struct of global config and the struct of the
// configuration file.
type Config struct {
	Flag      FlagConfig      `yaml:"-"`
	I2C       I2CConfig       `yaml:"i2c"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Log       LogConfig       `yaml:"log"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Display   DisplayConfig   `yaml:"display"`
}

// FlagConfig defines the configured flags (parameters). Non-empty values
// override the file.
type FlagConfig struct {
	ConfigFile string
	LogLevel   string
	Bus        string
}

// I2CConfig selects the bus the sensor is connected to.
type I2CConfig struct {
	// Bus name for i2creg.Open, empty selects the first bus.
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
}

// SensorConfig defines the sensor settings applied at start. Optional
// settings are left untouched on the sensor when nil.
type SensorConfig struct {
	IntervalInt       int           `yaml:"interval"`
	Interval          time.Duration `yaml:"-"`
	Pressure          int           `yaml:"pressure"`
	Altitude          *int          `yaml:"altitude"`
	TemperatureOffset *float64      `yaml:"temperatureoffset"`
	SelfCalibration   *bool         `yaml:"selfcalibration"`
	VerifyChecksums   bool          `yaml:"verifychecksums"`

	// RDY interrupt, either a periph pin name or a gpiod line. Polling is
	// used when neither is set.
	ReadyPin  string `yaml:"readypin"`
	ReadyChip string `yaml:"readychip"`
	ReadyLine int    `yaml:"readyline"`
	ReadyBias string `yaml:"readybias"`
}

// LogConfig defines the logrus level and output.
type LogConfig struct {
	LevelString string         `yaml:"level"`
	FileString  string         `yaml:"file"`
	Level       logrus.Level   `yaml:"-"`
	File        io.WriteCloser `yaml:"-"`
}

// WebserverConfig defines the struct of the webserver and webservice
// configuration.
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration. An empty
// connection disables publishing.
type MQTTConfig struct {
	Connection  string        `yaml:"connection"`
	Topic       string        `yaml:"topic"`
	IntervalInt int           `yaml:"interval"`
	Interval    time.Duration `yaml:"-"`
	QoS         byte          `yaml:"qos"`
	Retained    bool          `yaml:"retained"`
}

// DisplayConfig defines the local outputs.
type DisplayConfig struct {
	Bar      bool   `yaml:"bar"`
	BarWidth int    `yaml:"barwidth"`
	Badge    string `yaml:"badge"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{ConfigFile: DefaultConfigFile},
		I2C:  I2CConfig{Address: 0x61},
		Sensor: SensorConfig{
			IntervalInt: 2,
			ReadyLine:   -1,
		},
		Log: LogConfig{
			LevelString: "info",
			FileString:  "stderr",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
				"metrics": true,
			},
		},
		MQTT: MQTTConfig{
			Topic:       "scd30",
			IntervalInt: 0,
		},
		Display: DisplayConfig{BarWidth: 40},
	}
}

// LoadConfig reads the configuration file, applies the flags and derives
// the computed fields.
func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return errors.Wrapf(err, "error reading config file %q", c.Flag.ConfigFile)
	}
	if c.Flag.LogLevel != "" {
		c.Log.LevelString = c.Flag.LogLevel
	}
	if c.Flag.Bus != "" {
		c.I2C.Bus = c.Flag.Bus
	}
	c.Sensor.Interval = time.Duration(c.Sensor.IntervalInt) * time.Second
	c.MQTT.Interval = time.Duration(c.MQTT.IntervalInt) * time.Second
	if err := c.Validate(); err != nil {
		return err
	}
	return c.setLogConfig()
}

func (c *Config) readConfigFile() error {
	if c.Flag.ConfigFile == "" {
		return nil
	}
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		if os.IsNotExist(err) && c.Flag.ConfigFile == DefaultConfigFile {
			return nil
		}
		return err
	}
	defer func() { _ = file.Close() }()
	return c.Decode(file)
}

// Decode reads YAML from r over the current values.
func (c *Config) Decode(r io.Reader) error {
	if err := yaml.NewDecoder(r).Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate rejects values the sensor or the daemon cannot use.
func (c *Config) Validate() error {
	s := &c.Sensor
	if s.IntervalInt < 2 || s.IntervalInt > 1800 {
		return errors.Errorf("sensor interval %ds out of range [2, 1800]", s.IntervalInt)
	}
	if s.Pressure != 0 && (s.Pressure < 700 || s.Pressure > 1200) {
		return errors.Errorf("sensor pressure %d mbar out of range [700, 1200]", s.Pressure)
	}
	if s.Altitude != nil && (*s.Altitude < 0 || *s.Altitude > 65535) {
		return errors.Errorf("sensor altitude %dm out of range [0, 65535]", *s.Altitude)
	}
	if s.TemperatureOffset != nil && (*s.TemperatureOffset < 0 || *s.TemperatureOffset > 655.35) {
		return errors.Errorf("sensor temperature offset %g°C out of range [0, 655.35]", *s.TemperatureOffset)
	}
	if s.ReadyPin != "" && s.ReadyLine >= 0 {
		return errors.New("sensor readypin and readyline are exclusive")
	}
	if _, err := gpiodedge.ParseBias(s.ReadyBias); err != nil {
		return err
	}
	if c.I2C.Address == 0 || c.I2C.Address > 0x7f {
		return errors.Errorf("i2c address 0x%x is not a 7 bit address", c.I2C.Address)
	}
	if c.MQTT.QoS > 2 {
		return errors.Errorf("mqtt qos %d must be 0, 1 or 2", c.MQTT.QoS)
	}
	if c.MQTT.IntervalInt < 0 {
		return errors.Errorf("mqtt interval %ds is negative", c.MQTT.IntervalInt)
	}
	if c.Display.BarWidth < 0 {
		return errors.Errorf("display barwidth %d is negative", c.Display.BarWidth)
	}
	if _, err := logrus.ParseLevel(c.Log.LevelString); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}

func (c *Config) setLogConfig() (err error) {
	if c.Log.Level, err = logrus.ParseLevel(c.Log.LevelString); err != nil {
		return errors.Wrap(err, "log level")
	}
	switch c.Log.FileString {
	case "", "stderr":
		c.Log.File = os.Stderr
	case "stdout":
		c.Log.File = os.Stdout
	default:
		if c.Log.File, err = os.OpenFile(c.Log.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return errors.Wrapf(err, "unable to open log file %q", c.Log.FileString)
		}
	}
	return nil
}

// Close closes the log file unless it is one of the standard streams.
func (c *Config) Close() error {
	if c.Log.File == nil || c.Log.File == os.Stderr || c.Log.File == os.Stdout {
		return nil
	}
	return c.Log.File.Close()
}
