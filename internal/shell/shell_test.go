// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package shell

import (
	"errors"
	"strings"
	"testing"

	"github.com/GermanBionicSystems/co2devices/scd30"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func wr(b ...byte) i2ctest.IO {
	return i2ctest.IO{Addr: scd30.SensorAddress, W: b}
}

func rd(b ...byte) i2ctest.IO {
	return i2ctest.IO{Addr: scd30.SensorAddress, R: b}
}

func newDev(t *testing.T, bus i2c.Bus) *scd30.Dev {
	dev, err := scd30.NewI2C(bus, scd30.SensorAddress, &scd30.Opts{ReadDelay: -1})
	require.NoError(t, err)
	return dev
}

func TestWriteCommands(t *testing.T) {
	tests := []struct {
		args  []string
		write []byte
	}{
		{[]string{"start"}, []byte{0x00, 0x10, 0x00, 0x00, 0x81}},
		{[]string{"start", "1013"}, []byte{0x00, 0x10, 0x03, 0xf5, 0xdb}},
		{[]string{"stop"}, []byte{0x01, 0x04}},
		{[]string{"interval", "100"}, []byte{0x46, 0x00, 0x00, 0x64, 0xfe}},
		{[]string{"asc", "on"}, []byte{0x53, 0x06, 0x00, 0x01, 0xb0}},
		{[]string{"asc", "off"}, []byte{0x53, 0x06, 0x00, 0x00, 0x81}},
		{[]string{"frc", "400"}, []byte{0x52, 0x04, 0x01, 0x90, 0x4c}},
		{[]string{"offset", "2.5"}, []byte{0x54, 0x03, 0x00, 0xfa, 0xd8}},
		{[]string{"altitude", "1604"}, []byte{0x51, 0x02, 0x06, 0x44, 0x22}},
		{[]string{"pressure", "1200"}, []byte{0x00, 0x10, 0x04, 0xb0, 0xbd}},
		{[]string{"pressure", "1201"}, []byte{0x00, 0x10, 0x00, 0x00, 0x81}},
		{[]string{"reset"}, []byte{0xd3, 0x04}},
	}
	for _, test := range tests {
		bus := &i2ctest.Record{}
		out, err := Exec(newDev(t, bus), test.args)
		require.NoError(t, err, test.args)
		require.Equal(t, "OK", out)
		require.Len(t, bus.Ops, 1, test.args)
		require.Equal(t, test.write, bus.Ops[0].W, test.args)
	}
}

func TestInvalidArguments(t *testing.T) {
	tests := [][]string{
		{},
		{"bogus"},
		{"start", "high"},
		{"interval", "1"},
		{"asc", "maybe"},
		{"frc", "399"},
		{"frc", "2001"},
		{"offset", "x"},
		{"offset", "-1"},
		{"altitude", "-5"},
		{"pressure"},
	}
	for _, args := range tests {
		bus := &i2ctest.Record{}
		_, err := Exec(newDev(t, bus), args)
		require.Error(t, err, args)
		require.Empty(t, bus.Ops, args)
	}
}

func TestReadCommands(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			wr(0x02, 0x02), rd(0x00, 0x01),
			wr(0x03, 0x00), rd(
				0x44, 0x00, 0x8b, 0x20, 0x00, 0x5d,
				0x41, 0xb8, 0xfa, 0xcc, 0xcd, 0x94,
				0x42, 0x40, 0xec, 0x00, 0x00, 0x81),
			wr(0x46, 0x00), rd(0x00, 0x02),
			wr(0x53, 0x06), rd(0x00, 0x00),
			wr(0x52, 0x04), rd(0x01, 0x90),
			wr(0x54, 0x03), rd(0x00, 0xfa),
			wr(0x51, 0x02), rd(0x06, 0x44),
			wr(0xd1, 0x00), rd(0x03, 0x42),
		},
		DontPanic: true,
	}
	dev := newDev(t, bus)
	expected := []struct {
		cmd string
		out string
	}{
		{"ready", "true"},
		{"r", "CO2: 512.5 ppm"},
		{"interval", "2s"},
		{"asc", "off"},
		{"frc", "400 PPM"},
		{"offset", "2.50°C"},
		{"altitude", "1604m"},
		{"firmware", "3.66"},
	}
	for _, e := range expected {
		out, err := Exec(dev, []string{e.cmd})
		require.NoError(t, err, e.cmd)
		require.True(t, strings.HasPrefix(out, e.out), "%s: %q", e.cmd, out)
	}
	require.NoError(t, bus.Close())
}

func TestConfigCommand(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			wr(0x46, 0x00), rd(0x00, 0x05),
			wr(0x53, 0x06), rd(0x00, 0x01),
			wr(0x52, 0x04), rd(0x01, 0x90),
			wr(0x54, 0x03), rd(0x00, 0x00),
			wr(0x51, 0x02), rd(0x00, 0x00),
			wr(0xd1, 0x00), rd(0x03, 0x42),
		},
		DontPanic: true,
	}
	out, err := Exec(newDev(t, bus), []string{"config"})
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 7)
	require.Equal(t, "altitude: 0m", lines[0])
	require.Contains(t, out, "interval: 5s")
	require.Contains(t, out, "asc:      true")
	require.Contains(t, out, "state:    uninitialized")
}

type failBus struct{ i2ctest.Record }

func (f *failBus) Tx(addr uint16, w, r []byte) error {
	return errors.New("bus failure")
}

func TestBusErrors(t *testing.T) {
	for _, cmd := range []string{"ready", "read", "interval", "asc", "frc", "offset", "altitude", "firmware", "config", "stop"} {
		_, err := Exec(newDev(t, &failBus{}), []string{cmd})
		require.Error(t, err, cmd)
	}
}
