// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/GermanBionicSystems/co2devices/common"
)

// Command is a 16-bit command word understood by the sensor. Commands that
// configure a setting double as the register address used to read it back.
type Command uint16

const (
	// Starts continuous measurement. Argument is the ambient pressure in
	// mBar, 0 disables pressure compensation.
	CmdStartMeasurement Command = 0x0010
	CmdStopMeasurement  Command = 0x0104
	// Argument is the interval in seconds, 2-1800.
	CmdMeasurementInterval Command = 0x4600
	CmdDataReady           Command = 0x0202
	CmdReadMeasurement     Command = 0x0300
	// Argument is 1 to enable, 0 to disable.
	CmdSelfCalibration Command = 0x5306
	// Argument is the reference CO2 concentration in ppm, 400-2000.
	CmdForcedRecalibration Command = 0x5204
	// Argument is the offset in ticks of 0.01°C.
	CmdTemperatureOffset Command = 0x5403
	// Argument is the height over sea level in metres.
	CmdAltitudeCompensation Command = 0x5102
	CmdFirmwareVersion      Command = 0xd100
	CmdSoftReset            Command = 0xd304
)

const (
	// SensorAddress is the only I²C address supported by the SCD30.
	SensorAddress uint16 = 0x61

	// Size of the read measurement response. Three floats, each sent as two
	// words followed by their CRC.
	frameSize = 18
	// Register reads return a single word. The trailing CRC is not read.
	registerSize = 2
)

func (c Command) String() string {
	return fmt.Sprintf("0x%04x", uint16(c))
}

// encodeCommand returns the bytes written for cmd. Each argument word is
// appended big-endian followed by the CRC8 of its two bytes. The command word
// itself is never covered by a CRC.
func encodeCommand(cmd Command, args ...uint16) []byte {
	w := make([]byte, 2, 2+3*len(args))
	w[0] = byte(cmd >> 8)
	w[1] = byte(cmd)
	for _, arg := range args {
		w = common.AppendWord(w, arg)
	}
	return w
}

// SendCommand writes a command without argument.
func (d *Dev) SendCommand(cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(cmd)
}

// SendCommandWithArgument writes a command followed by a 16-bit argument and
// its CRC, 5 bytes in total.
func (d *Dev) SendCommandWithArgument(cmd Command, arg uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(cmd, arg)
}

// ReadRegister writes the command word and reads back the 16-bit value. The
// value is only meaningful when err is nil.
func (d *Dev) ReadRegister(cmd Command) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readRegister(cmd)
}

// ReadMeasurement reads and decodes the measurement frame, regardless of the
// data ready status. On success the reading replaces the cached one.
func (d *Dev) ReadMeasurement() (Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readMeasurement()
}

// DataReady returns true when the sensor reports a measurement is available.
// Only a status of exactly 1 counts as ready.
func (d *Dev) DataReady() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dataReady()
}

// Callers of the functions below must hold d.mu.

func (d *Dev) write(cmd Command, args ...uint16) error {
	if err := d.d.Tx(encodeCommand(cmd, args...), nil); err != nil {
		return &BusError{Cmd: cmd, Err: err}
	}
	return nil
}

// read writes cmd, then reads len(r) bytes in a second transaction. The SCD30
// needs a stop condition between the two.
func (d *Dev) read(cmd Command, r []byte) error {
	if err := d.write(cmd); err != nil {
		return err
	}
	if d.opts.ReadDelay > 0 {
		time.Sleep(d.opts.ReadDelay)
	}
	if err := d.d.Tx(nil, r); err != nil {
		return &ShortReadError{Cmd: cmd, Want: len(r), Err: err}
	}
	return nil
}

func (d *Dev) readRegister(cmd Command) (uint16, error) {
	var r [registerSize]byte
	if err := d.read(cmd, r[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r[:]), nil
}

func (d *Dev) dataReady() (bool, error) {
	status, err := d.readRegister(CmdDataReady)
	if err != nil {
		return false, err
	}
	return status == 1, nil
}

func (d *Dev) readMeasurement() (Reading, error) {
	r := make([]byte, frameSize)
	if err := d.read(CmdReadMeasurement, r); err != nil {
		return Reading{}, err
	}
	reading, err := decodeFrame(r, d.opts.VerifyChecksums)
	if err != nil {
		return Reading{}, err
	}
	d.last.Store(&reading)
	return reading, nil
}

// decodeFrame converts the 18 byte measurement response into a Reading. The
// layout is three groups of [b0 b1 crc b2 b3 crc] for CO2, temperature and
// humidity. The CRC bytes at offsets 2, 5, 8, 11, 14 and 17 are skipped, the
// remaining four bytes of each group are the big-endian bits of a float32.
func decodeFrame(b []byte, verify bool) (Reading, error) {
	if len(b) < frameSize {
		return Reading{}, &ShortReadError{Cmd: CmdReadMeasurement, Want: frameSize, Got: len(b)}
	}
	var values [3]float32
	for ix := range values {
		group := b[ix*6 : ix*6+6]
		if verify {
			for _, off := range []int{0, 3} {
				if !common.CheckWord(group[off : off+3]) {
					return Reading{}, &ChecksumError{Cmd: CmdReadMeasurement, Offset: ix*6 + off + 2}
				}
			}
		}
		values[ix] = float32FromBytes([4]byte{group[0], group[1], group[3], group[4]})
	}
	return Reading{CO2: values[0], Temperature: values[1], Humidity: values[2]}, nil
}

// float32FromBytes reinterprets big-endian bytes as an IEEE-754 float. This is
// a bit copy, not a numeric conversion.
func float32FromBytes(b [4]byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b[:]))
}
