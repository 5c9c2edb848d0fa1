// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package scd30

import "fmt"

// BusError is returned when the sensor did not acknowledge a write.
type BusError struct {
	Cmd Command
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("scd30: command %s not acknowledged: %v", e.Cmd, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// ShortReadError is returned when the sensor acknowledged a command but did
// not return the expected number of bytes.
type ShortReadError struct {
	Cmd Command
	// Want is the number of bytes requested.
	Want int
	// Got is the number of bytes received, when known.
	Got int
	Err error
}

func (e *ShortReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scd30: command %s: reading %d bytes: %v", e.Cmd, e.Want, e.Err)
	}
	return fmt.Sprintf("scd30: command %s: short read, got %d of %d bytes", e.Cmd, e.Got, e.Want)
}

func (e *ShortReadError) Unwrap() error {
	return e.Err
}

// ValidationError is returned by setters when the argument is outside of the
// range accepted by the sensor. Nothing is written to the bus in that case.
type ValidationError struct {
	Setting string
	Value   int64
	Min     int64
	Max     int64
	Unit    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scd30: %s %d%s out of range [%d, %d]", e.Setting, e.Value, e.Unit, e.Min, e.Max)
}

// ChecksumError is returned when frame checksum verification is enabled and
// a data word does not match its CRC. Offset is the position of the CRC byte.
type ChecksumError struct {
	Cmd    Command
	Offset int
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("scd30: command %s: invalid crc at byte %d", e.Cmd, e.Offset)
}
