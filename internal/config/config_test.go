// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const sample = `
i2c:
  bus: "1"
  address: 0x61
sensor:
  interval: 5
  pressure: 1013
  altitude: 520
  temperatureoffset: 2.5
  selfcalibration: false
  readyline: 17
  readybias: pullup
log:
  level: debug
  file: stdout
webserver:
  url: http://127.0.0.1:8080
  webservices:
    metrics: false
mqtt:
  connection: tcp://broker:1883/home
  topic: office/co2
  interval: 30
  qos: 1
  retained: true
display:
  bar: true
  barwidth: 20
  badge: /tmp/co2.png
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "scd30.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfigIsValid(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Validate())
	require.Equal(t, uint16(0x61), c.I2C.Address)
	require.Equal(t, -1, c.Sensor.ReadyLine)
	require.True(t, c.Webserver.Webservices["metrics"])
}

func TestLoadConfig(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, sample)
	require.NoError(t, c.LoadConfig())
	defer c.Close()

	require.Equal(t, "1", c.I2C.Bus)
	require.Equal(t, 5*time.Second, c.Sensor.Interval)
	require.Equal(t, 1013, c.Sensor.Pressure)
	require.NotNil(t, c.Sensor.Altitude)
	require.Equal(t, 520, *c.Sensor.Altitude)
	require.NotNil(t, c.Sensor.TemperatureOffset)
	require.InDelta(t, 2.5, *c.Sensor.TemperatureOffset, 1e-9)
	require.NotNil(t, c.Sensor.SelfCalibration)
	require.False(t, *c.Sensor.SelfCalibration)
	require.Equal(t, 17, c.Sensor.ReadyLine)
	require.Equal(t, logrus.DebugLevel, c.Log.Level)
	require.Equal(t, os.Stdout, c.Log.File)
	require.Equal(t, "http://127.0.0.1:8080", c.Webserver.URL)
	// Maps merge with the defaults.
	require.False(t, c.Webserver.Webservices["metrics"])
	require.True(t, c.Webserver.Webservices["data"])
	require.Equal(t, 30*time.Second, c.MQTT.Interval)
	require.Equal(t, byte(1), c.MQTT.QoS)
	require.True(t, c.MQTT.Retained)
	require.True(t, c.Display.Bar)
	require.Equal(t, 20, c.Display.BarWidth)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, sample)
	c.Flag.LogLevel = "warn"
	c.Flag.Bus = "/dev/i2c-3"
	require.NoError(t, c.LoadConfig())
	require.Equal(t, logrus.WarnLevel, c.Log.Level)
	require.Equal(t, "/dev/i2c-3", c.I2C.Bus)
}

func TestLoadConfigMissingFile(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	require.Error(t, c.LoadConfig())

	c = NewConfig()
	c.Flag.ConfigFile = ""
	require.NoError(t, c.LoadConfig())
	require.Equal(t, 2*time.Second, c.Sensor.Interval)
}

func TestLoadConfigBadYAML(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, "sensor: [")
	require.Error(t, c.LoadConfig())
}

func TestLogFile(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = ""
	c.Log.FileString = filepath.Join(t.TempDir(), "scd30.log")
	require.NoError(t, c.LoadConfig())
	_, err := c.Log.File.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestValidate(t *testing.T) {
	intp := func(i int) *int { return &i }
	floatp := func(f float64) *float64 { return &f }
	tests := []struct {
		name   string
		modify func(c *Config)
		msg    string
	}{
		{"interval low", func(c *Config) { c.Sensor.IntervalInt = 1 }, "interval"},
		{"interval high", func(c *Config) { c.Sensor.IntervalInt = 1801 }, "interval"},
		{"pressure", func(c *Config) { c.Sensor.Pressure = 699 }, "pressure"},
		{"altitude", func(c *Config) { c.Sensor.Altitude = intp(-1) }, "altitude"},
		{"offset", func(c *Config) { c.Sensor.TemperatureOffset = floatp(700) }, "offset"},
		{"ready exclusive", func(c *Config) { c.Sensor.ReadyPin = "GPIO17"; c.Sensor.ReadyLine = 17 }, "exclusive"},
		{"bias", func(c *Config) { c.Sensor.ReadyBias = "floating" }, "bias"},
		{"address", func(c *Config) { c.I2C.Address = 0x80 }, "address"},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, "qos"},
		{"mqtt interval", func(c *Config) { c.MQTT.IntervalInt = -1 }, "mqtt interval"},
		{"barwidth", func(c *Config) { c.Display.BarWidth = -1 }, "barwidth"},
		{"log level", func(c *Config) { c.Log.LevelString = "loud" }, "log level"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := NewConfig()
			test.modify(c)
			err := c.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), test.msg), err.Error())
		})
	}
	c := NewConfig()
	c.Sensor.Pressure = 700
	c.Sensor.Altitude = intp(0)
	c.Sensor.TemperatureOffset = floatp(655.35)
	require.NoError(t, c.Validate())
}
